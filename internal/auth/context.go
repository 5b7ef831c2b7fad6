package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/picktime/picktime-api/internal/domain"
)

const principalKey = "auth_principal"

type principalCtxKey struct{}

// Principal represents the authenticated caller. It is derived only from a
// verified access token and lives for a single request.
type Principal struct {
	UserID   int64
	Username string
	Role     domain.Role
}

// setPrincipal stores the principal for the current request. The slot is
// write-once: a second write is refused.
func setPrincipal(c *fiber.Ctx, p *Principal) bool {
	if _, exists := PrincipalFromContext(c); exists {
		return false
	}
	c.Locals(principalKey, p)
	c.SetUserContext(WithPrincipal(c.UserContext(), p))
	return true
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok && principal != nil
}

// WithPrincipal attaches p to ctx so services below the transport can read it.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFrom reads the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(*Principal)
	return p, ok && p != nil
}

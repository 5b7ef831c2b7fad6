package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/picktime/picktime-api/internal/auth"
	"github.com/picktime/picktime-api/internal/config"
	"github.com/picktime/picktime-api/internal/domain"
	"github.com/picktime/picktime-api/internal/events"
	"github.com/picktime/picktime-api/internal/repository"
)

// TokenRecorder counts issued tokens.
type TokenRecorder interface {
	RecordTokenIssued(category string)
}

// IssuedToken is a signed token and its expiry.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Principal auth.Principal
	Access    IssuedToken
	Refresh   IssuedToken
}

// AuthService coordinates registration, login, access token reissue and logout.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenCodec
	dispatcher events.Dispatcher
	metrics    TokenRecorder
	logger     *zap.Logger
	bcryptCost int
	accessTTL  time.Duration
	refreshTTL time.Duration
	dummyHash  string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Tokens     *auth.TokenCodec
	Dispatcher events.Dispatcher
	Metrics    TokenRecorder
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) (*AuthService, error) {
	if deps.UserRepo == nil || deps.Tokens == nil {
		return nil, errors.New("auth service requires a user repository and a token codec")
	}
	dummy, err := auth.NewDummyHash(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
		accessTTL:  cfg.AccessTokenTTL(),
		refreshTTL: cfg.RefreshTokenTTL(),
		dummyHash:  dummy,
	}, nil
}

// Register creates a new end-user account with the default role.
func (s *AuthService) Register(ctx context.Context, username, password, name string) (*domain.User, error) {
	exists, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		Name:         name,
		Role:         domain.RoleUser,
		Level:        1,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	s.publish(ctx, events.New(events.EventUserRegistered, user.ID, events.UserRegisteredPayload{
		Username: user.Username,
		Name:     user.Name,
	}))
	return user, nil
}

// Login checks the credential pair and issues an access and a refresh token.
// Unknown users, inactive users and wrong passwords all fail with
// ErrInvalidCredentials after a full bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		_ = auth.ComparePassword(s.dummyHash, password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		if auth.IsMismatch(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("compare password for user %d: %w", user.ID, err)
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	access, err := s.issue(auth.CategoryAccess, user.ID, user.Username, user.Role, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issue(auth.CategoryRefresh, user.ID, user.Username, user.Role, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.Int64("user_id", user.ID))
	return &LoginResult{
		Principal: auth.Principal{UserID: user.ID, Username: user.Username, Role: user.Role},
		Access:    access,
		Refresh:   refresh,
	}, nil
}

// Reissue exchanges a refresh token for a new access token. The checks run
// in order: presence, signature, expiry, category. The refresh token is not
// rotated and no server-side state is read.
func (s *AuthService) Reissue(refreshToken string) (IssuedToken, error) {
	if refreshToken == "" {
		return IssuedToken{}, ErrMissingRefreshToken
	}
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	if s.tokens.IsExpired(claims) {
		return IssuedToken{}, ErrExpiredRefreshToken
	}
	if claims.Category != auth.CategoryRefresh {
		return IssuedToken{}, ErrWrongTokenCategory
	}

	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	return s.issue(auth.CategoryAccess, claims.UserID, claims.Username, role, s.accessTTL)
}

// Logout validates the refresh token the client wants to discard. Expiry is
// not checked; the caller clears the cookie on success.
func (s *AuthService) Logout(refreshToken string) error {
	if refreshToken == "" {
		return ErrNoActiveSession
	}
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	if claims.Category != auth.CategoryRefresh {
		return ErrWrongTokenCategory
	}
	s.logger.Info("user logged out", zap.Int64("user_id", claims.UserID))
	return nil
}

// Me loads the account behind the principal.
func (s *AuthService) Me(ctx context.Context, principal *auth.Principal) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, principal.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// CheckPassword confirms password belongs to the principal's account.
func (s *AuthService) CheckPassword(ctx context.Context, principal *auth.Principal, password string) error {
	user, err := s.Me(ctx, principal)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		if auth.IsMismatch(err) {
			return ErrPasswordNotMatched
		}
		return err
	}
	return nil
}

func (s *AuthService) issue(category auth.TokenCategory, userID int64, username string, role domain.Role, ttl time.Duration) (IssuedToken, error) {
	token, exp, err := s.tokens.Issue(category, userID, username, role.String(), ttl)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("issue %s token: %w", category, err)
	}
	if s.metrics != nil {
		s.metrics.RecordTokenIssued(string(category))
	}
	return IssuedToken{Value: token, ExpiresAt: exp}, nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

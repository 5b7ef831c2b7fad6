package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apihttp "github.com/picktime/picktime-api/internal/api/http"
	"github.com/picktime/picktime-api/internal/api/http/handlers"
	"github.com/picktime/picktime-api/internal/auth"
	"github.com/picktime/picktime-api/internal/config"
	"github.com/picktime/picktime-api/internal/domain"
	"github.com/picktime/picktime-api/internal/events"
	"github.com/picktime/picktime-api/internal/observability"
	"github.com/picktime/picktime-api/internal/repository"
	"github.com/picktime/picktime-api/internal/service"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	app   *fiber.App
	clock *clock
	users *repository.MemoryUserRepository
	codes map[string]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock: &clock{now: time.Date(2025, 9, 1, 18, 30, 0, 0, time.UTC)},
		users: repository.NewMemoryUserRepository(),
		codes: map[string]string{},
	}

	authCfg := config.AuthConfig{
		JWTSecret:                 "e2e-secret",
		AccessTokenTTLMinutes:     120,
		RefreshTokenTTLMinutes:    180,
		RefreshCookieName:         "refresh",
		RefreshCookieMaxAgeSecond: 86400,
		BcryptCost:                bcrypt.MinCost,
	}
	codec, err := auth.NewTokenCodec(authCfg.JWTSecret, auth.WithClock(h.clock.Now))
	require.NoError(t, err)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventVerificationRequested, func(_ context.Context, e events.Event) error {
		p := e.Payload.(events.VerificationRequestedPayload)
		h.codes[p.Username] = p.Code
		return nil
	})

	authSvc, err := service.NewAuthService(authCfg, service.AuthDependencies{
		UserRepo:   h.users,
		Tokens:     codec,
		Dispatcher: dispatcher,
		Metrics:    metrics,
	})
	require.NoError(t, err)
	verifySvc := service.NewVerificationService(h.users, repository.NewMemoryVerificationRepository(h.clock.Now), dispatcher, nil, 3*time.Minute)

	gate := auth.NewAuthMiddleware(codec, zap.NewNop(), metrics, apihttp.PublicRoutes("/api")...)
	h.app = apihttp.NewApp("picktime-test", zap.NewNop(), metrics, 5*time.Second)
	apihttp.RegisterRoutes(h.app, apihttp.RouteConfig{
		BasePath:       "/api",
		Health:         handlers.NewHealthHandler("picktime-test", "test", nil),
		Auth:           handlers.NewAuthHandler(authSvc, handlers.CookieConfig{Name: "refresh", Path: "/api", MaxAge: 86400}),
		Users:          handlers.NewUsersHandler(authSvc),
		Verification:   handlers.NewVerificationHandler(verifySvc),
		AuthMiddleware: gate,
		Metrics:        metrics.Handler(),
		MetricsPath:    "/metrics",
	})
	return h
}

type request struct {
	method  string
	path    string
	body    any
	bearer  string
	cookies []*http.Cookie
}

type response struct {
	status  int
	header  http.Header
	cookies []*http.Cookie
	body    []byte
}

func (h *harness) do(t *testing.T, r request) response {
	t.Helper()
	var body io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(r.method, r.path, body)
	if r.body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if r.bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+r.bearer)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, header: resp.Header, cookies: resp.Cookies(), body: raw}
}

func (r response) cookie(name string) *http.Cookie {
	for _, c := range r.cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (r response) errorCode(t *testing.T) (string, string) {
	t.Helper()
	var eb struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(r.body, &eb), string(r.body))
	return eb.Error.Code, eb.Error.Message
}

func (h *harness) registerAndLogin(t *testing.T, username, password string) response {
	t.Helper()
	res := h.do(t, request{method: http.MethodPost, path: "/api/user", body: map[string]string{
		"username": username, "password": password, "name": "Player One",
	}})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))

	res = h.do(t, request{method: http.MethodPost, path: "/api/login", body: map[string]string{
		"username": username, "password": password,
	}})
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	return res
}

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(t)

	login := h.registerAndLogin(t, "realuser@x.com", "s3cret")
	access := login.header.Get(handlers.HeaderAccessToken)
	require.NotEmpty(t, access)

	var loginBody map[string]any
	require.NoError(t, json.Unmarshal(login.body, &loginBody))
	assert.Equal(t, access, loginBody["accessToken"])
	assert.Equal(t, "ROLE_USER", loginBody["role"])

	refresh := login.cookie("refresh")
	require.NotNil(t, refresh)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, "/api", refresh.Path)
	assert.Equal(t, 86400, refresh.MaxAge)
	assert.NotEqual(t, access, refresh.Value)

	res := h.do(t, request{method: http.MethodGet, path: "/api/user", bearer: access})
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	assert.JSONEq(t, `{"username":"realuser@x.com","name":"Player One","level":1}`, string(res.body))

	h.clock.Advance(2*time.Hour + time.Second)
	res = h.do(t, request{method: http.MethodGet, path: "/api/user", bearer: access})
	require.Equal(t, http.StatusUnauthorized, res.status)
	code, msg := res.errorCode(t)
	assert.Equal(t, auth.CodeAccessExpired, code)
	assert.Equal(t, "access token expired", msg)

	// The stale bearer does not block the allow-listed reissue route.
	res = h.do(t, request{method: http.MethodPost, path: "/api/reissue", bearer: access,
		cookies: []*http.Cookie{{Name: "refresh", Value: refresh.Value}}})
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	renewed := res.header.Get(handlers.HeaderAccessToken)
	require.NotEmpty(t, renewed)
	assert.NotEqual(t, access, renewed)
	assert.Nil(t, res.cookie("refresh"), "refresh token is not rotated")

	res = h.do(t, request{method: http.MethodGet, path: "/api/user", bearer: renewed})
	require.Equal(t, http.StatusOK, res.status, string(res.body))

	res = h.do(t, request{method: http.MethodPost, path: "/api/logout",
		cookies: []*http.Cookie{{Name: "refresh", Value: refresh.Value}}})
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	cleared := res.cookie("refresh")
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Equal(t, "/api", cleared.Path)
	assert.True(t, cleared.Expires.Before(h.clock.Now()))
	assert.Less(t, cleared.MaxAge, 0, "Max-Age=0 parses as delete now")
	require.Len(t, res.header.Values(fiber.HeaderSetCookie), 1)
	assert.Contains(t, res.header.Get(fiber.HeaderSetCookie), "refresh=; Path=/api; Max-Age=0;")
	assert.Contains(t, res.header.Get(fiber.HeaderSetCookie), "HttpOnly")

	// The client dropped the cookie.
	res = h.do(t, request{method: http.MethodPost, path: "/api/reissue"})
	require.Equal(t, http.StatusBadRequest, res.status)
	code, _ = res.errorCode(t)
	assert.Equal(t, handlers.CodeMissingRefreshToken, code)

	// Access tokens issued before logout stay valid until they expire.
	res = h.do(t, request{method: http.MethodGet, path: "/api/user", bearer: renewed})
	assert.Equal(t, http.StatusOK, res.status)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	h := newHarness(t)
	h.registerAndLogin(t, "realuser@x.com", "s3cret")

	unknown := h.do(t, request{method: http.MethodPost, path: "/api/login", body: map[string]string{
		"username": "nobody@x.com", "password": "anything",
	}})
	wrong := h.do(t, request{method: http.MethodPost, path: "/api/login", body: map[string]string{
		"username": "realuser@x.com", "password": "wrongpassword",
	}})

	assert.Equal(t, http.StatusUnauthorized, unknown.status)
	assert.Equal(t, unknown.status, wrong.status)
	assert.Equal(t, string(unknown.body), string(wrong.body))
	assert.Nil(t, unknown.cookie("refresh"))
	assert.Empty(t, wrong.header.Get(handlers.HeaderAccessToken))
}

func TestRefreshFlowErrors(t *testing.T) {
	h := newHarness(t)
	login := h.registerAndLogin(t, "realuser@x.com", "s3cret")
	access := login.header.Get(handlers.HeaderAccessToken)
	refresh := login.cookie("refresh").Value

	tests := []struct {
		name     string
		path     string
		cookie   string
		advance  time.Duration
		wantCode string
	}{
		{name: "reissue with access token", path: "/api/reissue", cookie: access, wantCode: handlers.CodeWrongTokenCategory},
		{name: "reissue with garbage", path: "/api/reissue", cookie: "not.a.token", wantCode: handlers.CodeInvalidRefreshToken},
		{name: "logout without cookie", path: "/api/logout", wantCode: handlers.CodeNoActiveSession},
		{name: "logout with access token", path: "/api/logout", cookie: access, wantCode: handlers.CodeWrongTokenCategory},
		{name: "logout with garbage", path: "/api/logout", cookie: "garbage", wantCode: handlers.CodeInvalidRefreshToken},
		{name: "reissue with expired refresh", path: "/api/reissue", cookie: refresh, advance: 3 * time.Hour, wantCode: handlers.CodeExpiredRefreshToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.clock.Advance(tt.advance)
			req := request{method: http.MethodPost, path: tt.path}
			if tt.cookie != "" {
				req.cookies = []*http.Cookie{{Name: "refresh", Value: tt.cookie}}
			}
			res := h.do(t, req)
			require.Equal(t, http.StatusBadRequest, res.status, string(res.body))
			code, _ := res.errorCode(t)
			assert.Equal(t, tt.wantCode, code)
		})
	}

	// An expired refresh token still logs out.
	res := h.do(t, request{method: http.MethodPost, path: "/api/logout",
		cookies: []*http.Cookie{{Name: "refresh", Value: refresh}}})
	assert.Equal(t, http.StatusOK, res.status, string(res.body))
}

func TestGateOnProtectedRoutes(t *testing.T) {
	h := newHarness(t)
	login := h.registerAndLogin(t, "realuser@x.com", "s3cret")
	refresh := login.cookie("refresh").Value
	access := login.header.Get(handlers.HeaderAccessToken)

	res := h.do(t, request{method: http.MethodGet, path: "/api/user", bearer: refresh})
	require.Equal(t, http.StatusUnauthorized, res.status)
	code, _ := res.errorCode(t)
	assert.Equal(t, auth.CodeWrongCategory, code)

	res = h.do(t, request{method: http.MethodGet, path: "/api/user"})
	require.Equal(t, http.StatusUnauthorized, res.status)
	code, _ = res.errorCode(t)
	assert.Equal(t, auth.CodeAuthRequired, code)

	res = h.do(t, request{method: http.MethodGet, path: "/api/admin/ping", bearer: access})
	assert.Equal(t, http.StatusForbidden, res.status)

	res = h.do(t, request{method: http.MethodPost, path: "/api/user/password/check", bearer: access,
		body: map[string]string{"password": "s3cret"}})
	assert.Equal(t, http.StatusOK, res.status, string(res.body))

	res = h.do(t, request{method: http.MethodPost, path: "/api/user/password/check", bearer: access,
		body: map[string]string{"password": "nope"}})
	require.Equal(t, http.StatusUnauthorized, res.status)
	_, msg := res.errorCode(t)
	assert.Equal(t, "password is not matched", msg)
}

func TestAdminRoute(t *testing.T) {
	h := newHarness(t)
	hash, err := auth.HashPassword("rootpw", bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, h.users.Create(context.Background(), &domain.User{
		Username: "admin@x.com", PasswordHash: hash, Name: "Admin", Role: domain.RoleAdmin, Level: 9, IsActive: true,
	}))

	login := h.do(t, request{method: http.MethodPost, path: "/api/login", body: map[string]string{
		"username": "admin@x.com", "password": "rootpw",
	}})
	require.Equal(t, http.StatusOK, login.status, string(login.body))

	res := h.do(t, request{method: http.MethodGet, path: "/api/admin/ping", bearer: login.header.Get(handlers.HeaderAccessToken)})
	assert.Equal(t, http.StatusOK, res.status, string(res.body))
}

func TestLogoutRouteIsExact(t *testing.T) {
	h := newHarness(t)
	login := h.registerAndLogin(t, "realuser@x.com", "s3cret")
	cookie := []*http.Cookie{{Name: "refresh", Value: login.cookie("refresh").Value}}

	for _, r := range []request{
		{method: http.MethodGet, path: "/api/logout", cookies: cookie},
		{method: http.MethodPost, path: "/api/logout/", cookies: cookie},
		{method: http.MethodPost, path: "/api/Logout", cookies: cookie},
		{method: http.MethodPost, path: "/logout", cookies: cookie},
	} {
		res := h.do(t, r)
		assert.NotEqual(t, http.StatusOK, res.status, r.method+" "+r.path)
		assert.Nil(t, res.cookie("refresh"), r.method+" "+r.path)
	}
}

func TestRegistrationAndVerification(t *testing.T) {
	h := newHarness(t)
	h.registerAndLogin(t, "realuser@x.com", "s3cret")

	res := h.do(t, request{method: http.MethodPost, path: "/api/user", body: map[string]string{
		"username": "realuser@x.com", "password": "again", "name": "Dup",
	}})
	require.Equal(t, http.StatusConflict, res.status)
	_, msg := res.errorCode(t)
	assert.Equal(t, "email already registered", msg)

	res = h.do(t, request{method: http.MethodPost, path: "/api/user", body: map[string]string{
		"username": "not-an-email", "password": "pw", "name": "X",
	}})
	require.Equal(t, http.StatusBadRequest, res.status)
	code, _ := res.errorCode(t)
	assert.Equal(t, "VALIDATION_FAILED", code)

	res = h.do(t, request{method: http.MethodPost, path: "/api/verification/email", body: map[string]string{"username": "ghost@x.com"}})
	assert.Equal(t, http.StatusNotFound, res.status)

	res = h.do(t, request{method: http.MethodPost, path: "/api/verification/email", body: map[string]string{"username": "realuser@x.com"}})
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	sent := h.codes["realuser@x.com"]
	require.Len(t, sent, 4)

	wrong := "0000"
	if sent == wrong {
		wrong = "1111"
	}
	res = h.do(t, request{method: http.MethodPost, path: "/api/verification/check", body: map[string]string{
		"username": "realuser@x.com", "verificationNumber": wrong,
	}})
	require.Equal(t, http.StatusUnauthorized, res.status)
	_, msg = res.errorCode(t)
	assert.Equal(t, "failed to verify email", msg)

	res = h.do(t, request{method: http.MethodPost, path: "/api/verification/check", body: map[string]string{
		"username": "realuser@x.com", "verificationNumber": sent,
	}})
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	assert.Contains(t, string(res.body), "email verified successfully")
}

func TestHealthMetricsAndUnknownRoutes(t *testing.T) {
	h := newHarness(t)

	res := h.do(t, request{method: http.MethodGet, path: "/health/live"})
	assert.Equal(t, http.StatusOK, res.status)
	res = h.do(t, request{method: http.MethodGet, path: "/health/ready"})
	assert.Equal(t, http.StatusOK, res.status)

	res = h.do(t, request{method: http.MethodGet, path: "/api/nothing-here"})
	require.Equal(t, http.StatusNotFound, res.status)
	code, _ := res.errorCode(t)
	assert.Equal(t, "NOT_FOUND", code)
	assert.NotEmpty(t, res.header.Get(observability.HeaderRequestID))

	res = h.do(t, request{method: http.MethodGet, path: "/api/user", bearer: "garbage"})
	require.Equal(t, http.StatusUnauthorized, res.status)

	res = h.do(t, request{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, res.status)
	assert.True(t, strings.Contains(string(res.body), `picktime_auth_rejections_total{reason="MALFORMED_TOKEN"} 1`), string(res.body))
}

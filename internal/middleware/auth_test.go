package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/natours-api/internal/middleware"
	"github.com/iliyamo/natours-api/internal/model"
	"github.com/iliyamo/natours-api/internal/repository"
	"github.com/iliyamo/natours-api/internal/utils"
)

type memRevocations map[string]time.Time

func (m memRevocations) IsRevoked(_ context.Context, d string) (bool, error) {
	_, ok := m[d]
	return ok, nil
}

func (m memRevocations) Revoke(_ context.Context, d string, exp time.Time) (bool, error) {
	if _, ok := m[d]; ok {
		return false, nil
	}
	m[d] = exp
	return true, nil
}

type users map[uuid.UUID]*model.User

func (u users) FindActiveByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	if x, ok := u[id]; ok && x.Active {
		return x, nil
	}
	return nil, repository.ErrNotFound
}

type env struct {
	tokens *utils.TokenService
	users  users
	now    time.Time
}

func newEnv() *env {
	e := &env{users: users{}, now: time.Now().UTC().Truncate(time.Second)}
	e.tokens = utils.NewTokenService("secret", time.Hour, memRevocations{}).WithClock(func() time.Time { return e.now })
	return e
}

func (e *env) addUser(role string) (*model.User, string) {
	u := &model.User{ID: uuid.New(), Name: role, Role: role, Active: true}
	e.users[u.ID] = u
	raw, _, _ := e.tokens.Issue(u.ID)
	return u, raw
}

// serve runs Protect, then the given middleware, then a handler that echoes
// the identity it sees.
func (e *env) serve(raw string, extra ...echo.MiddlewareFunc) (*model.User, error) {
	ec := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if raw != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+raw)
	}
	c := ec.NewContext(req, httptest.NewRecorder())

	var seen *model.User
	h := func(c echo.Context) error {
		u, ok := middleware.Identity(c)
		if !ok {
			return errors.New("no identity")
		}
		fromCtx, ok := model.CallerFrom(c.Request().Context())
		if !ok || fromCtx != u {
			return errors.New("request context disagrees with echo context")
		}
		seen = u
		return nil
	}
	for i := len(extra) - 1; i >= 0; i-- {
		h = extra[i](h)
	}
	err := middleware.Protect(e.tokens, e.users)(h)(c)
	return seen, err
}

func TestProtect_AttachesIdentity(t *testing.T) {
	e := newEnv()
	u, raw := e.addUser(model.RoleUser)

	got, err := e.serve(raw)
	if err != nil {
		t.Fatalf("Protect() error = %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Errorf("identity = %v; want %v", got, u.ID)
	}
}

func TestProtect_Rejections(t *testing.T) {
	e := newEnv()
	_, live := e.addUser(model.RoleUser)

	gone, goneRaw := e.addUser(model.RoleUser)
	delete(e.users, gone.ID)

	inactive, inactiveRaw := e.addUser(model.RoleUser)
	inactive.Active = false

	stale, staleRaw := e.addUser(model.RoleUser)
	changed := e.now.Add(time.Second)
	stale.PasswordChangedAt = &changed

	_, revokedRaw := e.addUser(model.RoleUser)
	if err := e.tokens.Revoke(context.Background(), revokedRaw); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"no token", "", middleware.ErrMissingCredential},
		{"garbage", "abc", utils.ErrInvalidToken},
		{"deleted user", goneRaw, middleware.ErrUnknownIdentity},
		{"deactivated user", inactiveRaw, middleware.ErrUnknownIdentity},
		{"password changed", staleRaw, utils.ErrStalePassword},
		{"revoked", revokedRaw, utils.ErrRevokedToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.serve(tt.raw); !errors.Is(err, tt.want) {
				t.Errorf("Protect() error = %v; want %v", err, tt.want)
			}
		})
	}

	if _, err := e.serve(live); err != nil {
		t.Errorf("live token rejected: %v", err)
	}
}

func TestProtect_Expired(t *testing.T) {
	e := newEnv()
	_, raw := e.addUser(model.RoleUser)
	e.now = e.now.Add(2 * time.Hour)
	if _, err := e.serve(raw); !errors.Is(err, utils.ErrExpiredToken) {
		t.Errorf("Protect() error = %v; want ErrExpiredToken", err)
	}
}

func TestRestrictTo(t *testing.T) {
	e := newEnv()
	_, admin := e.addUser(model.RoleAdmin)
	_, guide := e.addUser(model.RoleGuide)
	_, user := e.addUser(model.RoleUser)

	restrict := middleware.RestrictTo(model.RoleAdmin, model.RoleLeadGuide)
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"admin", admin, nil},
		{"guide", guide, middleware.ErrForbidden},
		{"user", user, middleware.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.serve(tt.raw, restrict); !errors.Is(err, tt.want) {
				t.Errorf("RestrictTo() error = %v; want %v", err, tt.want)
			}
		})
	}
}

func TestAuthorize_WithoutIdentity(t *testing.T) {
	if err := middleware.Authorize(nil, model.RoleAdmin); !errors.Is(err, middleware.ErrMissingCredential) {
		t.Errorf("Authorize(nil) = %v; want ErrMissingCredential", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":   "abc",
		"Bearer  abc ": "abc",
		"bearer abc":   "",
		"Basic abc":    "",
		"":             "",
	}
	for header, want := range tests {
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.Request().Header.Set(echo.HeaderAuthorization, header)
		if got := middleware.BearerToken(c); got != want {
			t.Errorf("BearerToken(%q) = %q; want %q", header, got, want)
		}
	}
}

func TestSessionToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"header only", "Bearer abc", "", "abc"},
		{"cookie only", "", "xyz", "xyz"},
		{"header wins", "Bearer abc", "xyz", "abc"},
		{"neither", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "jwt", Value: tt.cookie})
			}
			c := echo.New().NewContext(req, httptest.NewRecorder())
			if got := middleware.SessionToken(c); got != tt.want {
				t.Errorf("SessionToken() = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestProtect_AcceptsCookie(t *testing.T) {
	e := newEnv()
	u, raw := e.addUser(model.RoleUser)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: raw})
	c := echo.New().NewContext(req, httptest.NewRecorder())

	var seen *model.User
	err := middleware.Protect(e.tokens, e.users)(func(c echo.Context) error {
		seen, _ = middleware.Identity(c)
		return nil
	})(c)
	if err != nil {
		t.Fatalf("Protect() error = %v", err)
	}
	if seen == nil || seen.ID != u.ID {
		t.Errorf("identity = %v; want %v", seen, u.ID)
	}
}

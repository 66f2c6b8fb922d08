package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "context"
    "errors"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/natours-api/internal/model"
    "github.com/iliyamo/natours-api/internal/repository"
    "github.com/iliyamo/natours-api/internal/utils"
)

// Access control failures raised before a handler runs.
var (
    ErrMissingCredential = errors.New("missing credential")
    ErrUnknownIdentity   = errors.New("token subject no longer exists")
)

// IdentityResolver loads the active user a session token points at.
type IdentityResolver interface {
    FindActiveByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c echo.Context) string {
    auth := c.Request().Header.Get(echo.HeaderAuthorization)
    if !strings.HasPrefix(auth, "Bearer ") {
        return ""
    }
    return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// SessionToken returns the bearer token, or the jwt cookie when the request
// carries no Authorization header.
func SessionToken(c echo.Context) string {
    if raw := BearerToken(c); raw != "" {
        return raw
    }
    if ck, err := c.Cookie("jwt"); err == nil {
        return ck.Value
    }
    return ""
}

// Protect authenticates the request.  It verifies the session token (including
// revocation), resolves the user among active accounts and rejects tokens
// issued before the user's last password change.  Failures are returned as
// errors for the HTTP error handler to render.
func Protect(tokens *utils.TokenService, users IdentityResolver) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := SessionToken(c)
            if raw == "" {
                return ErrMissingCredential
            }

            ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
            defer cancel()

            sess, err := tokens.Verify(ctx, raw)
            if err != nil {
                return err
            }
            u, err := users.FindActiveByID(ctx, sess.UserID)
            if errors.Is(err, repository.ErrNotFound) {
                return ErrUnknownIdentity
            }
            if err != nil {
                return err
            }
            if err := tokens.CheckFreshness(sess, u.PasswordChangedAt); err != nil {
                return err
            }

            SetIdentity(c, u)
            return next(c)
        }
    }
}

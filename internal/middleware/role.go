package middleware // middleware provides shared request processing for handlers

import (
    "errors"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/natours-api/internal/model"
)

// ErrForbidden is returned when the caller's role is not allowed.
var ErrForbidden = errors.New("forbidden")

// Authorize reports whether u holds one of roles.
func Authorize(u *model.User, roles ...string) error {
    if u == nil {
        return ErrMissingCredential
    }
    for _, r := range roles {
        if u.Role == r {
            return nil
        }
    }
    return ErrForbidden
}

// RestrictTo admits only callers holding one of roles.  It must run after
// Protect.
func RestrictTo(roles ...string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            u, _ := Identity(c)
            if err := Authorize(u, roles...); err != nil {
                return err
            }
            return next(c)
        }
    }
}

package middleware

// identity.go stores and retrieves the authenticated user.  Protect puts the
// user on both the echo context and the request context so that handlers
// and services see the same identity.

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/natours-api/internal/model"
)

const userKey = "user"

// SetIdentity attaches u to the request.
func SetIdentity(c echo.Context, u *model.User) {
    c.Set(userKey, u)
    c.Set("user_id", u.ID.String())
    c.SetRequest(c.Request().WithContext(model.WithCaller(c.Request().Context(), u)))
}

// Identity returns the user attached by Protect.
func Identity(c echo.Context) (*model.User, bool) {
    u, ok := c.Get(userKey).(*model.User)
    return u, ok && u != nil
}

// userID returns the caller id for key building, or "guest".
func userID(c echo.Context) string {
    if u, ok := Identity(c); ok {
        return u.ID.String()
    }
    return "guest"
}

package model

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/natours-api/internal/validate"
)

// Roles a user can hold.  RoleUser is assigned at signup.
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

// User mirrors the users table.  Fields tagged json:"-" are never bound from
// request bodies; credentials only change through the auth endpoints.
type User struct {
	ID                   uuid.UUID  `json:"-"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	Photo                string     `json:"photo"`
	Role                 string     `json:"role"`
	Password             string     `json:"-"` // bcrypt hash
	PasswordChangedAt    *time.Time `json:"-"`
	PasswordResetToken   *string    `json:"-"` // SHA-256 hex digest
	PasswordResetExpires *time.Time `json:"-"`
	Active               bool       `json:"-"`
	CreatedAt            time.Time  `json:"-"`
}

var roleRe = regexp.MustCompile(`^(user|guide|lead-guide|admin)$`)

// UserSchema holds the invariants of a stored user.
var UserSchema = validate.Schema[User]{
	Rules: []validate.Rule[User]{
		{Field: "name", Value: func(u *User) any { return u.Name }, Checks: []validate.Check{
			validate.Required("Please tell us your name!"),
		}},
		{Field: "email", Value: func(u *User) any { return u.Email }, Checks: []validate.Check{
			validate.Required("Please provide your email"),
			validate.Email("Please provide a valid email"),
		}},
		{Field: "role", Value: func(u *User) any { return u.Role }, Checks: []validate.Check{
			validate.Required("A user must have a role"),
			validate.Matches(roleRe, "Role is either: user, guide, lead-guide, admin"),
		}},
		{Field: "password", Value: func(u *User) any { return u.Password }, Checks: []validate.Check{
			validate.Required("Please provide a password"),
			validate.MinLen(8, "A password must have at least 8 characters"),
		}},
	},
}

type callerKey struct{}

// WithCaller returns a context carrying the authenticated user.
func WithCaller(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, callerKey{}, u)
}

// CallerFrom returns the authenticated user stored by WithCaller.
func CallerFrom(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(callerKey{}).(*User)
	return u, ok && u != nil
}

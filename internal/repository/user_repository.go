package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/natours-api/internal/model"
	"github.com/iliyamo/natours-api/internal/query"
)

// ActiveUsers is the predicate every user read carries; deactivated
// accounts behave as if they did not exist.
var ActiveUsers = query.Condition{Field: "active", Op: query.Eq, Value: true}

var userColumns = []Column[model.User]{
	{Field: "id", Name: "id", Kind: KindUUID, Key: true, Ref: func(u *model.User) any { return &u.ID }},
	{Field: "name", Name: "name", Kind: KindString, Ref: func(u *model.User) any { return &u.Name }},
	{Field: "email", Name: "email", Kind: KindString, Ref: func(u *model.User) any { return &u.Email }},
	{Field: "photo", Name: "photo", Kind: KindString, Ref: func(u *model.User) any { return &u.Photo }},
	{Field: "role", Name: "role", Kind: KindString, Ref: func(u *model.User) any { return &u.Role }},
	{Field: "password", Name: "password", Kind: KindString, Private: true, Ref: func(u *model.User) any { return &u.Password }},
	{Field: "passwordChangedAt", Name: "password_changed_at", Kind: KindTime, Hidden: true, Ref: func(u *model.User) any { return &u.PasswordChangedAt }},
	{Field: "passwordResetToken", Name: "password_reset_token", Kind: KindString, Private: true, Ref: func(u *model.User) any { return &u.PasswordResetToken }},
	{Field: "passwordResetExpires", Name: "password_reset_expires", Kind: KindTime, Private: true, Ref: func(u *model.User) any { return &u.PasswordResetExpires }},
	{Field: "active", Name: "active", Kind: KindBool, Hidden: true, Ref: func(u *model.User) any { return &u.Active }},
	{Field: "createdAt", Name: "created_at", Kind: KindTime, Immutable: true, Hidden: true, Ref: func(u *model.User) any { return &u.CreatedAt }},
}

// UserRepo persists users.
type UserRepo struct {
	*Table[model.User]
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{Table: NewTable(db, "users", userColumns, func(u *model.User, now time.Time) {
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		if u.Photo == "" {
			u.Photo = "default.jpg"
		}
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))
		u.Active = true
		u.CreatedAt = now
	})}
}

// FindByEmail fetches an active user by normalized email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.FindOne(ctx, query.Condition{Field: "email", Op: query.Eq, Value: email}, ActiveUsers)
}

// FindActiveByID fetches an active user by id.
func (r *UserRepo) FindActiveByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.FindByID(ctx, id, ActiveUsers)
}

// FindByResetToken fetches the active user holding an unexpired reset digest.
func (r *UserRepo) FindByResetToken(ctx context.Context, digest string, now time.Time) (*model.User, error) {
	return r.FindOne(ctx,
		query.Condition{Field: "passwordResetToken", Op: query.Eq, Value: digest},
		query.Condition{Field: "passwordResetExpires", Op: query.Gt, Value: now.UTC()},
		ActiveUsers,
	)
}

// SaveCredentials writes the password and reset columns of u.
func (r *UserRepo) SaveCredentials(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password=?, password_changed_at=?, password_reset_token=?, password_reset_expires=?
		 WHERE id=?`,
		u.Password, u.PasswordChangedAt, u.PasswordResetToken, u.PasswordResetExpires, u.ID)
	if err != nil {
		return translate(err)
	}
	return affected(res)
}

// ConsumeResetToken stores u's new credentials only if the row still holds
// digest and it has not expired.  Of two concurrent resets with the same
// token exactly one matches; the other gets ErrNotFound.
func (r *UserRepo) ConsumeResetToken(ctx context.Context, u *model.User, digest string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET password=?, password_changed_at=?, password_reset_token=NULL, password_reset_expires=NULL
		 WHERE id=? AND active=1 AND password_reset_token=? AND password_reset_expires > ?`,
		u.Password, u.PasswordChangedAt, u.ID, digest, now.UTC())
	if err != nil {
		return translate(err)
	}
	return affected(res)
}

// Deactivate soft-deletes a user.
func (r *UserRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET active=0 WHERE id=? AND active=1", id)
	if err != nil {
		return translate(err)
	}
	return affected(res)
}

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/natours-api/internal/apperror"
	"github.com/iliyamo/natours-api/internal/config"
	"github.com/iliyamo/natours-api/internal/middleware"
	"github.com/iliyamo/natours-api/internal/model"
	"github.com/iliyamo/natours-api/internal/queue"
	"github.com/iliyamo/natours-api/internal/repository"
	"github.com/iliyamo/natours-api/internal/utils"
)

// UserStore is the user persistence the auth endpoints need.
type UserStore interface {
	Insert(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByResetToken(ctx context.Context, digest string, now time.Time) (*model.User, error)
	SaveCredentials(ctx context.Context, u *model.User) error
	ConsumeResetToken(ctx context.Context, u *model.User, digest string, now time.Time) error
	Project(u *model.User, fields []string) repository.Document
}

// Mailer delivers password reset mail.
type Mailer interface {
	SendPasswordReset(ctx context.Context, m queue.PasswordResetMail) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens *utils.TokenService
	Creds  *utils.Credentials
	Mail   Mailer
	Logger *slog.Logger
	Now    func() time.Time
}

func NewAuthHandler(cfg config.Config, users UserStore, tokens *utils.TokenService, creds *utils.Credentials, mail Mailer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Tokens: tokens, Creds: creds, Mail: mail, Logger: logger, Now: time.Now}
}

// ----- DTOs -----

type signupReq struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type forgotReq struct {
	Email string `json:"email" validate:"required,email"`
}

type resetReq struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type updatePasswordReq struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func badLogin() error { return apperror.NewUnauthorized("Incorrect email or password") }

func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return err
	}
	return c.Validate(dst)
}

// createSendToken issues a session token for u, mirrors it into the jwt
// cookie and writes the auth envelope.
func (h *AuthHandler) createSendToken(c echo.Context, u *model.User, status int) error {
	token, exp, err := h.Tokens.Issue(u.ID)
	if err != nil {
		return err
	}
	cookieExp := time.Now().Add(h.Cfg.CookieTTL)
	if h.Cfg.CookieTTL <= 0 {
		cookieExp = exp
	}
	c.SetCookie(&http.Cookie{
		Name:     "jwt",
		Value:    token,
		Path:     "/",
		Expires:  cookieExp,
		HttpOnly: true,
		Secure:   h.Cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(status, echo.Map{
		"status": "success",
		"token":  token,
		"data":   echo.Map{"user": h.Users.Project(u, nil)},
	})
}

// Signup creates a regular user and logs them in.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	u := &model.User{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
		Role:  model.RoleUser,
	}
	if err := h.Creds.SetPassword(u, req.Password); err != nil {
		return err
	}
	u.PasswordChangedAt = nil // nothing to invalidate yet
	if err := model.UserSchema.Validate(u); err != nil {
		return err
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.Users.Insert(ctx, u); err != nil {
		return err
	}
	return h.createSendToken(c, u, http.StatusCreated)
}

// Login checks credentials.  Unknown email and wrong password are
// indistinguishable, in message and in timing.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := dbContext(c)
	defer cancel()

	u, err := h.Users.FindByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		h.Creds.VerifyMissing(req.Password)
		return badLogin()
	}
	if err != nil {
		return err
	}
	if !h.Creds.Verify(req.Password, u.Password) {
		return badLogin()
	}
	return h.createSendToken(c, u, http.StatusOK)
}

// Logout revokes the session token until it would have expired anyway.
func (h *AuthHandler) Logout(c echo.Context) error {
	raw := middleware.SessionToken(c)
	if raw == "" {
		return middleware.ErrMissingCredential
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.Tokens.Revoke(ctx, raw); err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{Name: "jwt", Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"message": "User successfully logged out and token revoked.",
	})
}

const forgotMessage = "If that email belongs to an account, a reset link has been sent."

// ForgotPassword issues a reset token and hands the link to the mailer.  The
// response is the same whether or not the email is known or the mail could
// be queued; a token whose mail failed is withdrawn straight away.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx, cancel := dbContext(c)
	defer cancel()

	reply := func() error {
		return c.JSON(http.StatusOK, echo.Map{"status": "success", "message": forgotMessage})
	}

	u, err := h.Users.FindByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return reply()
	}
	if err != nil {
		return err
	}

	rt, err := h.Creds.NewResetToken()
	if err != nil {
		return err
	}
	u.PasswordResetToken = &rt.Digest
	u.PasswordResetExpires = &rt.Expires
	if err := h.Users.SaveCredentials(ctx, u); err != nil {
		return err
	}

	mail := queue.PasswordResetMail{
		To:        u.Email,
		Name:      u.Name,
		From:      h.Cfg.Mail.From,
		Subject:   "Your password reset token (valid for 10 min)",
		ResetURL:  h.Cfg.PublicURL + "/api/v1/users/resetPassword/" + rt.Plain,
		ExpiresAt: rt.Expires,
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}
	if err := h.Mail.SendPasswordReset(ctx, mail); err != nil {
		u.PasswordResetToken = nil
		u.PasswordResetExpires = nil
		if clearErr := h.Users.SaveCredentials(ctx, u); clearErr != nil {
			h.Logger.Error("clear reset token after mail failure", "user_id", u.ID, "err", clearErr)
		}
		h.Logger.Error("password reset mail not queued", "user_id", u.ID, "err", err)
	}
	return reply()
}

// ResetPassword consumes a reset token and logs the user in.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	invalid := apperror.NewBadRequest("Token is invalid or has expired")
	digest := utils.HashToken(c.Param("token"))
	now := h.Now()

	ctx, cancel := dbContext(c)
	defer cancel()

	u, err := h.Users.FindByResetToken(ctx, digest, now)
	if errors.Is(err, repository.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return err
	}
	if err := h.Creds.SetPassword(u, req.Password); err != nil {
		return err
	}
	if err := h.Users.ConsumeResetToken(ctx, u, digest, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid
		}
		return err
	}
	return h.createSendToken(c, u, http.StatusOK)
}

// UpdatePassword changes the caller's password after checking the current
// one.  Sessions issued before the change stop working.
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	u, ok := middleware.Identity(c)
	if !ok {
		return middleware.ErrMissingCredential
	}
	var req updatePasswordReq
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if !h.Creds.Verify(req.PasswordCurrent, u.Password) {
		return apperror.NewUnauthorized("Your current password is wrong.")
	}
	updated := *u
	if err := h.Creds.SetPassword(&updated, req.Password); err != nil {
		return err
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.Users.SaveCredentials(ctx, &updated); err != nil {
		return err
	}
	return h.createSendToken(c, &updated, http.StatusOK)
}

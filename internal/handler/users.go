package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/natours-api/internal/apperror"
	"github.com/iliyamo/natours-api/internal/middleware"
	"github.com/iliyamo/natours-api/internal/model"
	"github.com/iliyamo/natours-api/internal/service"
)

// Deactivator soft-deletes accounts.
type Deactivator interface {
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// UserHandler serves the self-service and admin user endpoints.
type UserHandler struct {
	Users *service.Factory[model.User]
	Store Deactivator
}

func NewUserHandler(users *service.Factory[model.User], store Deactivator) *UserHandler {
	return &UserHandler{Users: users, Store: store}
}

// updateMe may only touch these fields.
var selfEditable = []string{"name", "email"}

func caller(c echo.Context) (*model.User, error) {
	u, ok := middleware.Identity(c)
	if !ok {
		return nil, middleware.ErrMissingCredential
	}
	return u, nil
}

// GetMe renders the caller's own account.
func (h *UserHandler) GetMe(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	doc, err := h.Users.GetOne(ctx, u.ID.String())
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, echo.Map{"user": doc})
}

// UpdateMe changes the caller's name or email.  Passwords go through
// updateMyPassword; every other field in the body is ignored.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	var body map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			return apperror.Wrap(apperror.BadRequest, "Invalid JSON body", err)
		}
	}
	if _, ok := body["password"]; ok {
		return apperror.NewBadRequest("This route is not for password updates. Please use /updateMyPassword.")
	}
	if _, ok := body["passwordConfirm"]; ok {
		return apperror.NewBadRequest("This route is not for password updates. Please use /updateMyPassword.")
	}
	filtered := map[string]json.RawMessage{}
	for _, k := range selfEditable {
		if v, ok := body[k]; ok {
			filtered[k] = v
		}
	}
	patch, _ := json.Marshal(filtered)

	ctx, cancel := dbContext(c)
	defer cancel()
	doc, err := h.Users.Update(ctx, u.ID.String(), JSONPatch[model.User](patch))
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, echo.Map{"user": doc})
}

// DeleteMe deactivates the caller's account.
func (h *UserHandler) DeleteMe(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.Store.Deactivate(ctx, u.ID); err != nil {
		return err
	}
	return noContent(c)
}

func (h *UserHandler) GetAllUsers() echo.HandlerFunc {
	return GetAll(h.Users, ListConfig{Key: "users"})
}
func (h *UserHandler) GetUser() echo.HandlerFunc    { return GetOne(h.Users, "user") }
func (h *UserHandler) CreateUser() echo.HandlerFunc { return CreateOne(h.Users, "user", nil) }
func (h *UserHandler) UpdateUser() echo.HandlerFunc { return UpdateOne(h.Users, "user") }
func (h *UserHandler) DeleteUser() echo.HandlerFunc { return DeleteOne(h.Users) }

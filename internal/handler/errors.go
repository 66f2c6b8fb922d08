package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/natours-api/internal/apperror"
	"github.com/iliyamo/natours-api/internal/middleware"
	"github.com/iliyamo/natours-api/internal/repository"
	"github.com/iliyamo/natours-api/internal/utils"
	"github.com/iliyamo/natours-api/internal/validate"
)

// Translate maps any error raised while serving c onto an *apperror.Error.
// Known failures become operational errors with fixed messages; anything
// else becomes Internal.
func Translate(err error, c echo.Context) *apperror.Error {
	if ae, ok := apperror.As(err); ok {
		return ae
	}
	var (
		cast  *repository.CastError
		field *repository.FieldError
		dup   *repository.DuplicateKeyError
		verrs validate.Errors
		he    *echo.HTTPError
	)
	switch {
	case errors.Is(err, middleware.ErrMissingCredential), errors.Is(err, utils.ErrMissingToken):
		return apperror.Wrap(apperror.Unauthorized, "You are not logged in! Please log in to get access.", err)
	case errors.Is(err, utils.ErrInvalidToken):
		return apperror.Wrap(apperror.Unauthorized, "Invalid token. Please log in again!", err)
	case errors.Is(err, utils.ErrExpiredToken):
		return apperror.Wrap(apperror.Unauthorized, "Your token has expired! Please log in again.", err)
	case errors.Is(err, utils.ErrRevokedToken):
		return apperror.Wrap(apperror.Unauthorized, "This token has been revoked. Please log in again.", err)
	case errors.Is(err, utils.ErrAlreadyRevoked):
		return apperror.Wrap(apperror.BadRequest, "This token has already been revoked.", err)
	case errors.Is(err, utils.ErrStalePassword):
		return apperror.Wrap(apperror.Unauthorized, "User recently changed password! Please log in again.", err)
	case errors.Is(err, middleware.ErrUnknownIdentity):
		return apperror.Wrap(apperror.Unauthorized, "The user belonging to this token does no longer exist.", err)
	case errors.Is(err, middleware.ErrForbidden):
		return apperror.Wrap(apperror.Forbidden, "You do not have permission to perform this action", err)
	case errors.Is(err, repository.ErrNotFound):
		return apperror.Wrap(apperror.NotFound, "No document found with that ID", err)
	case errors.Is(err, repository.ErrMissingReference):
		return apperror.Wrap(apperror.BadRequest, "Referenced document does not exist", err)
	case errors.As(err, &cast):
		return apperror.Wrap(apperror.BadRequest, cast.Error(), err)
	case errors.As(err, &field):
		return apperror.Wrap(apperror.BadRequest, field.Error(), err)
	case errors.As(err, &dup):
		return apperror.Wrap(apperror.Conflict,
			fmt.Sprintf("Duplicate field value: %q. Please use another value!", dup.Value), err)
	case errors.As(err, &verrs):
		return apperror.Wrap(apperror.Validation, verrs.Error(), err)
	case errors.As(err, &he):
		return translateHTTP(he, c)
	}
	return apperror.NewInternal("Something went very wrong!", err)
}

func translateHTTP(he *echo.HTTPError, c echo.Context) *apperror.Error {
	switch he.Code {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperror.Wrap(apperror.NotFound,
			fmt.Sprintf("Can't find %s on this server!", c.Request().URL.Path), he)
	case http.StatusRequestEntityTooLarge:
		return apperror.Wrap(apperror.BadRequest, "Request body too large", he)
	case http.StatusUnauthorized:
		return apperror.Wrap(apperror.Unauthorized, fmt.Sprint(he.Message), he)
	case http.StatusForbidden:
		return apperror.Wrap(apperror.Forbidden, fmt.Sprint(he.Message), he)
	case http.StatusTooManyRequests:
		return apperror.Wrap(apperror.TooManyRequests, fmt.Sprint(he.Message), he)
	}
	if he.Code >= 400 && he.Code < 500 {
		return apperror.Wrap(apperror.BadRequest, fmt.Sprint(he.Message), he)
	}
	return apperror.NewInternal("Something went very wrong!", he)
}

// ErrorHandler renders errors as the JSON error envelope.  In development
// the response carries the underlying error and stack; in production
// only operational messages reach the client and everything else is logged
// and answered with a generic 500.
func ErrorHandler(production bool, logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		ae := Translate(err, c)
		status := ae.StatusCode()

		body := echo.Map{"status": ae.Status(), "message": ae.Message}
		var verrs validate.Errors
		if errors.As(err, &verrs) {
			body["errors"] = verrs
		}
		if !ae.Operational() {
			logger.Error("unhandled error",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"err", err)
		}
		if !production {
			body["error"] = err.Error()
			body["stack"] = ae.Stack()
		} else if !ae.Operational() {
			body = echo.Map{"status": "error", "message": "Something went very wrong!"}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error("write error response", "err", err)
		}
	}
}

package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/natours-api/internal/apperror"
	"github.com/iliyamo/natours-api/internal/query"
	"github.com/iliyamo/natours-api/internal/service"
)

// ListConfig customises GetAll.
type ListConfig struct {
	Key    string                                          // envelope key, e.g. "tours"
	Params func(c echo.Context) url.Values                 // replaces the request query when set
	Scope  func(c echo.Context) ([]query.Condition, error) // extra conditions derived from the path
}

// GetAll lists documents matching the request query.
func GetAll[T any](f *service.Factory[T], cfg ListConfig) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := c.QueryParams()
		if cfg.Params != nil {
			params = cfg.Params(c)
		}
		var extra []query.Condition
		if cfg.Scope != nil {
			var err error
			if extra, err = cfg.Scope(c); err != nil {
				return err
			}
		}
		ctx, cancel := dbContext(c)
		defer cancel()

		docs, err := f.List(ctx, params, extra...)
		if err != nil {
			return err
		}
		return successList(c, cfg.Key, docs)
	}
}

// GetOne renders the document named by the :id path parameter.
func GetOne[T any](f *service.Factory[T], key string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := dbContext(c)
		defer cancel()

		doc, err := f.GetOne(ctx, c.Param("id"))
		if err != nil {
			return err
		}
		return success(c, http.StatusOK, echo.Map{key: doc})
	}
}

// CreateOne binds the body onto a fresh entity and stores it.  prepare may
// fill fields from the path or the caller before validation.
func CreateOne[T any](f *service.Factory[T], key string, prepare func(echo.Context, *T) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		e := f.New()
		if err := c.Bind(e); err != nil {
			return err
		}
		if prepare != nil {
			if err := prepare(c, e); err != nil {
				return err
			}
		}
		ctx, cancel := dbContext(c)
		defer cancel()

		doc, err := f.Create(ctx, e)
		if err != nil {
			return err
		}
		return success(c, http.StatusCreated, echo.Map{key: doc})
	}
}

// UpdateOne overlays the JSON body on the stored entity.
func UpdateOne[T any](f *service.Factory[T], key string) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		ctx, cancel := dbContext(c)
		defer cancel()

		doc, err := f.Update(ctx, c.Param("id"), JSONPatch[T](body))
		if err != nil {
			return err
		}
		return success(c, http.StatusOK, echo.Map{key: doc})
	}
}

// DeleteOne removes the document named by :id.
func DeleteOne[T any](f *service.Factory[T]) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := dbContext(c)
		defer cancel()

		if err := f.Delete(ctx, c.Param("id")); err != nil {
			return err
		}
		return noContent(c)
	}
}

// JSONPatch returns an update function that decodes body over an entity.
// Only fields with a JSON name are touched.
func JSONPatch[T any](body []byte) func(*T) error {
	return func(e *T) error {
		if len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, e); err != nil {
			return apperror.Wrap(apperror.BadRequest, "Invalid JSON body", err)
		}
		return nil
	}
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// dbTimeout bounds every storage round trip made on behalf of a request.
const dbTimeout = 5 * time.Second

func dbContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// success writes the standard success envelope.
func success(c echo.Context, status int, data echo.Map) error {
	return c.JSON(status, echo.Map{"status": "success", "data": data})
}

// successList adds the result count to the envelope.
func successList[T any](c echo.Context, key string, items []T) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"results": len(items),
		"data":    echo.Map{key: items},
	})
}

func noContent(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

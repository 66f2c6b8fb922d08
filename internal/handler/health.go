package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Pinger is anything whose liveness can be probed (the MySQL pool).
type Pinger interface {
    PingContext(ctx context.Context) error
}

// Health is a simple health-check endpoint used by load balancers and
// monitoring systems.  It reports 503 when the database does not answer.
func Health(db Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if db != nil {
            if err := db.PingContext(ctx); err != nil {
                return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "error", "db": "down"})
            }
        }
        return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
    }
}

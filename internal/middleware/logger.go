package middleware

import (
    "context"
    "log/slog"

    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
)

// RequestLogger logs one structured line per request.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogStatus:    true,
        LogURI:       true,
        LogMethod:    true,
        LogLatency:   true,
        LogRemoteIP:  true,
        LogRequestID: true,
        LogError:     true,
        HandleError:  true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            attrs := []slog.Attr{
                slog.String("method", v.Method),
                slog.String("uri", v.URI),
                slog.Int("status", v.Status),
                slog.Duration("latency", v.Latency),
                slog.String("remote_ip", v.RemoteIP),
                slog.String("request_id", v.RequestID),
                slog.String("user_id", userID(c)),
            }
            level := slog.LevelInfo
            if v.Error != nil {
                attrs = append(attrs, slog.String("err", v.Error.Error()))
                if v.Status >= 500 {
                    level = slog.LevelError
                }
            }
            logger.LogAttrs(context.Background(), level, "request", attrs...)
            return nil
        },
    })
}

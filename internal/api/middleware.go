package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spacesedan/reviewflow/internal/db"
	"github.com/spacesedan/reviewflow/internal/metrics"
	"github.com/spacesedan/reviewflow/internal/validation"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// errorHandler turns handler errors into JSON responses. Validation errors
// are 400, missing records 404, anything unexpected 500 with a generic body.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	body := errorBody{Error: "internal error"}

	var verr *validation.Error
	var herr *echo.HTTPError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		body = errorBody{Error: verr.Message, Field: verr.Field}
	case errors.Is(err, db.ErrNotFound):
		status = http.StatusNotFound
		body = errorBody{Error: "not found"}
	case errors.As(err, &herr):
		status = herr.Code
		if msg, ok := herr.Message.(string); ok {
			body = errorBody{Error: msg}
		} else {
			body = errorBody{Error: http.StatusText(herr.Code)}
		}
	default:
		slog.Error("[API] Unhandled error",
			slog.String("method", c.Request().Method),
			slog.String("path", c.Path()),
			slog.String("error", err.Error()))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		slog.Error("[API] Failed to write error response", slog.String("error", err.Error()))
	}
}

func observeRequests(sink metrics.Sink) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil && !c.Response().Committed {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			sink.ObserveRequest(route, c.Request().Method, c.Response().Status, time.Since(start))
			return err
		}
	}
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health" || c.Request().URL.Path == "/metrics"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil && v.Status >= http.StatusInternalServerError {
				slog.Error("[API] Request failed", append(attrs, slog.String("error", v.Error.Error()))...)
				return nil
			}
			slog.Info("[API] Request completed", attrs...)
			return nil
		},
	})
}

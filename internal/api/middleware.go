package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// AppError carries the HTTP status and client-facing message of a failure.
type AppError struct {
	StatusCode int
	Message    string
	Data       any
	Cause      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewAppError(statusCode int, message string, data any, cause error) *AppError {
	return &AppError{StatusCode: statusCode, Message: message, Data: data, Cause: cause}
}

// ErrorMiddleware renders handler errors and panics into the response envelope.
func ErrorMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.String("path", c.Path()),
					zap.String("panic", fmt.Sprint(r)),
				)
				err = Error(c, fiber.StatusInternalServerError, MessageInternalError, nil)
			}
		}()

		err = c.Next()
		if err == nil {
			return nil
		}

		status, msg, data := normalizeError(err)
		if status >= 500 {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Error(err),
			)
		}
		return Error(c, status, msg, data)
	}
}

func normalizeError(err error) (int, string, any) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.StatusCode
		if status <= 0 {
			return fiber.StatusInternalServerError, MessageInternalError, nil
		}
		// Internal details never reach the client.
		if status >= 500 {
			return status, defaultMessageForStatus(status), nil
		}
		return status, normalizeMessage(appErr.Message, status), appErr.Data
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status := fiberErr.Code
		if status <= 0 || status >= 500 {
			return fiber.StatusInternalServerError, MessageInternalError, nil
		}
		return status, normalizeMessage(fiberErr.Message, status), nil
	}

	return fiber.StatusInternalServerError, MessageInternalError, nil
}

// HTTPObserver records request metrics.
type HTTPObserver interface {
	ObserveHTTPRequest(route, method string, status int, elapsed time.Duration)
}

// AccessLogMiddleware tags requests with an id, logs them and feeds metrics.
func AccessLogMiddleware(logger *zap.Logger, observer HTTPObserver) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		rid := c.Get(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDHeader, rid)

		err := c.Next()

		elapsed := time.Since(start)
		status := c.Response().StatusCode()
		route := c.Route().Path

		if observer != nil {
			observer.ObserveHTTPRequest(route, c.Method(), status, elapsed)
		}

		logger.Info("http request",
			zap.String("request_id", rid),
			zap.String("method", c.Method()),
			zap.String("path", c.OriginalURL()),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", elapsed),
			zap.String("ip", c.IP()),
		)

		return err
	}
}

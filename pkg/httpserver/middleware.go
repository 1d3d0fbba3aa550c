package httpserver

import (
	"context"
	"runtime"
	"time"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rise-and-shine/filevault/pkg/logger"
	"github.com/rise-and-shine/filevault/pkg/meta"
	"go.opentelemetry.io/otel/trace"
)

// NewRecoveryMW creates a middleware that recovers from panics in the request
// handling chain and converts them to structured errors.
//
// This middleware serves as a safety net to catch any unexpected panics that may
// occur during request processing. It captures the stack trace and panic message,
// logs the information, and returns a structured error that can be handled by the
// error handler.
func NewRecoveryMW(log logger.Logger) Middleware {
	return Middleware{
		Priority: 1000,
		Handler: func(c *fiber.Ctx) (err error) {
			l := log.Named("middleware.recovery").WithContext(c.UserContext())

			defer func() {
				if r := recover(); r != nil {
					traceSize := 4096 // 4KB
					stackTrace := make([]byte, traceSize)
					stackTrace = stackTrace[:runtime.Stack(stackTrace, false)]

					l.
						With("stack_trace", string(stackTrace)).
						With("panic_message", r).
						Error("recovered from panic")

					err = errx.New("panic recovered", errx.WithDetails(errx.D{
						"stack_trace":   string(stackTrace),
						"panic_message": r,
					}))
				}
			}()

			return c.Next()
		},
	}
}

// NewTimeoutMW creates a middleware that applies a bounded handling timeout to
// each request's context.
func NewTimeoutMW(timeout time.Duration) Middleware {
	return Middleware{
		Priority: 800,
		Handler: func(c *fiber.Ctx) error {
			ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
			defer cancel()

			c.SetUserContext(ctx)
			return c.Next()
		},
	}
}

// NewMetaInjectMW creates a middleware that injects metadata into the request context.
//
// This middleware collects information from the request such as trace ID, IP address
// and user agent, and injects them into the request context using the meta package.
func NewMetaInjectMW(serviceName, serviceVersion string) Middleware {
	return Middleware{
		Priority: 700,
		Handler: func(c *fiber.Ctx) error {
			traceID := getTraceID(c.UserContext())

			metaData := map[meta.ContextKey]string{
				meta.TraceID:        traceID,
				meta.IPAddress:      c.IP(),
				meta.UserAgent:      c.Get(fiber.HeaderUserAgent),
				meta.ServiceName:    serviceName,
				meta.ServiceVersion: serviceVersion,

				// set by the authentication layer once the token is resolved
				meta.RequestUserID: "",
			}

			ctx := meta.InjectMetaToContext(c.UserContext(), metaData)
			c.SetUserContext(ctx)

			return c.Next()
		},
	}
}

// NewLoggerMW creates a middleware that logs HTTP requests and responses.
//
// The logging level is determined by the HTTP status code (info for 2xx/3xx,
// warn for 4xx, error for 5xx).
func NewLoggerMW(log logger.Logger) Middleware {
	return Middleware{
		Priority: 500,
		Handler: func(c *fiber.Ctx) error {
			l := log.Named("middleware.logger").WithContext(c.UserContext())

			start := time.Now()

			err := c.Next()

			statusCode := c.Response().StatusCode()

			l = l.
				With("http_status_code", statusCode).
				With("http_method", c.Method()).
				With("http_path", c.Path()).
				With("http_route", c.Route().Path).
				With("duration", time.Since(start).Round(time.Microsecond)).
				With("request_size", c.Request().Header.ContentLength())

			if err != nil {
				e := errx.AsErrorX(err)
				l = l.With("error", map[string]any{
					"code":    e.Code(),
					"message": e.Error(),
					"type":    e.Type().String(),
					"trace":   e.Trace(),
					"fields":  e.Fields(),
					"details": e.Details(),
				})
			}

			switch {
			case statusCode >= 500:
				l.Error("request failed")
			case statusCode >= 400:
				l.Warn("request rejected")
			default:
				l.Info("request processed successfully")
			}

			return err
		},
	}
}

// getTraceID extracts the trace ID from the current span in the context.
// If no trace ID is available, it generates a new UUID to use as a trace ID.
func getTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	traceID := span.SpanContext().TraceID()

	if traceID.IsValid() {
		return traceID.String()
	}

	return uuid.NewString()
}

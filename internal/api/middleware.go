package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/cherrin1/remote-slack-server/errors"
	"github.com/cherrin1/remote-slack-server/internal/tracing"
)

// userContextKey is the echo context key holding the authenticated record.
const userContextKey = "authenticated_user"

// TraceRequests starts a server span for every request, continuing a
// propagated trace context when the caller supplies one.
func TraceRequests() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := otel.GetTextMapPropagator().Extract(
				req.Context(), propagation.HeaderCarrier(req.Header))

			ctx, span := tracing.Tracer.Start(ctx, req.Method+" "+c.Path(),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPMethod(req.Method),
					semconv.HTTPRoute(c.Path()),
				),
			)
			defer span.End()

			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				span.RecordError(err)
			}
			span.SetAttributes(semconv.HTTPStatusCode(c.Response().Status))

			return err
		}
	}
}

// RequireAPIKey authenticates the Authorization bearer header against the
// registry and stores the record on the context. Failures return the
// structured unauthenticated error with a hint; they never leak whether the
// key once existed.
func (a *API) RequireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		if header == "" {
			return c.JSON(http.StatusUnauthorized,
				apperrors.NewUnauthenticated("missing Authorization header"))
		}

		apiKey := strings.TrimPrefix(header, "Bearer ")
		if apiKey == header || apiKey == "" {
			return c.JSON(http.StatusUnauthorized,
				apperrors.NewUnauthenticated("Authorization header must use the Bearer scheme"))
		}

		user := a.registry.GetUserByAPIKey(c.Request().Context(), apiKey)
		if user == nil {
			return c.JSON(http.StatusUnauthorized,
				apperrors.NewUnauthenticated("invalid or revoked API key"))
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

// RequireAdminKey guards the admin surface with the configured shared key.
func (a *API) RequireAdminKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		provided := c.Request().Header.Get("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(a.cfg.AdminKey)) != 1 {
			return c.JSON(http.StatusUnauthorized,
				apperrors.NewUnauthenticated("invalid admin key"))
		}
		return next(c)
	}
}

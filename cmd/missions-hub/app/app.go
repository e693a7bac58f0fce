// Package app assembles the missions hub HTTP application: echo
// instance, middleware, validation, error mapping and routes. The CLI
// serve command reuses it to run the hub in-process.
package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/cmd/missions-hub/container"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/cmd/missions-hub/routes"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
)

// ServiceName labels health responses and log lines
const ServiceName = "missions-hub"

// New builds the hub's echo application over an initialized container
func New(c *container.Container) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = errorHandler(c.Components.Logger)

	setupMiddleware(e)
	setupHealthCheck(e, c)
	registerRoutes(e, c)

	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health and liveness endpoints
func setupHealthCheck(e *echo.Echo, c *container.Container) {
	e.GET("/health", func(ctx echo.Context) error {
		if err := c.Components.Health(ctx.Request().Context()); err != nil {
			return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "degraded",
				"service": ServiceName,
			})
		}
		return ctx.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": ServiceName,
		})
	})

	e.GET("/health/liveness", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, c *container.Container) {
	routes.RegisterMissionRoutes(e, c)
	routes.RegisterWorkflowRoutes(e, c)
	routes.RegisterSignalRoutes(e, c)
}

// requestValidator adapts go-playground/validator to echo's Validator
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{validate: validator.New()}
}

// Validate reports struct-tag violations as invalid-payload errors
func (v *requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return apperr.Wrap(apperr.KindValidation, apperr.CodeInvalidPayload, "request failed validation", err)
	}
	return nil
}

// errorHandler maps errors to {"detail": CODE} bodies. Domain errors
// carry their machine code; echo's own errors (404 route miss, 405)
// pass their message through.
func errorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		detail := "INTERNAL_ERROR"

		var domainErr *apperr.Error
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &domainErr):
			status = apperr.HTTPStatus(domainErr)
			detail = domainErr.Code
		case errors.As(err, &httpErr):
			status = httpErr.Code
			detail = fmt.Sprintf("%v", httpErr.Message)
		}

		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", status,
				"error", err,
			)
		}

		if c.Request().Method == http.MethodHead {
			if err := c.NoContent(status); err != nil {
				log.Error("failed to write error response", "error", err)
			}
			return
		}
		if err := c.JSON(status, map[string]string{"detail": detail}); err != nil {
			log.Error("failed to write error response", "error", err)
		}
	}
}

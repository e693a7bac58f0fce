// Package handlers implements the HTTP endpoints of the missions hub.
// Handlers return apperr values; the app's error handler maps them to
// FastAPI-style {"detail": CODE} bodies.
package handlers

import (
	"io"

	"github.com/labstack/echo/v4"
)

// readBody drains the request body (needed for raw JSON Patch bodies
// that echo's Bind would mangle)
func readBody(c echo.Context) ([]byte, error) {
	defer c.Request().Body.Close()
	return io.ReadAll(c.Request().Body)
}

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jarvis-assistant/host/internal/websocket"
)

const serviceName = "jarvis-host"

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, logger *zap.Logger) {
	e.HTTPErrorHandler = errorHandler(logger)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: serviceName,
			Devices: len(hub.Devices()),
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")
	v1.GET("/devices", func(c echo.Context) error {
		devices := hub.Devices()
		return c.JSON(http.StatusOK, DevicesResponse{Devices: devices, Count: len(devices)})
	})

	// Device audio channel
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})
}

// errorHandler renders every failed request as an ErrorResponse
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			message = fmt.Sprint(he.Message)
		}
		if code >= http.StatusInternalServerError {
			logger.Error("Request failed",
				zap.String("path", c.Request().URL.Path),
				zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, ErrorResponse{Error: http.StatusText(code), Message: message})
		}
		if err != nil {
			logger.Warn("Failed to write error response", zap.Error(err))
		}
	}
}

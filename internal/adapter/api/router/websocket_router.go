package router

import (
	"github.com/labstack/echo/v4"

	"clipfolio/internal/adapter/api/handler"
)

// SetupWebSocketRouter registers the realtime attach endpoint. The handler
// authenticates before upgrading, so no middleware here.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/ws", wsHandler.HandleWebSocket)
}

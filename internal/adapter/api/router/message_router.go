package router

import (
	"github.com/labstack/echo/v4"

	"clipfolio/internal/adapter/api/handler"
	"clipfolio/internal/adapter/api/middleware"
)

// SetupMessageRouter registers the messaging endpoints. All of them require
// authentication.
func SetupMessageRouter(e *echo.Echo, messageHandler *handler.MessageHandler, authMiddleware *middleware.AuthMiddleware) {
	messages := e.Group("/v1/messages")
	messages.Use(authMiddleware.Authenticate)

	messages.GET("/unread", messageHandler.UnreadCounts)       // GET  /v1/messages/unread
	messages.POST("/read", messageHandler.MarkRead)            // POST /v1/messages/read
	messages.POST("/hide", messageHandler.HideMessages)        // POST /v1/messages/hide
	messages.PATCH("/:id", messageHandler.EditMessage)         // PATCH /v1/messages/:id
	messages.POST("/:id/unsend", messageHandler.UnsendMessage) // POST /v1/messages/:id/unsend

	messages.GET("/with/:userId", messageHandler.ListMessages) // GET  /v1/messages/with/:userId
	messages.POST("/with/:userId", messageHandler.SendMessage) // POST /v1/messages/with/:userId
}

package router

import (
	"github.com/labstack/echo/v4"

	"clipfolio/internal/adapter/api/handler"
	"clipfolio/internal/adapter/api/middleware"
)

func SetupDirectoryRouter(e *echo.Echo, directoryHandler *handler.DirectoryHandler, authMiddleware *middleware.AuthMiddleware) {
	contacts := e.Group("/v1/contacts")
	contacts.Use(authMiddleware.Authenticate)
	contacts.GET("", directoryHandler.ListContacts) // GET /v1/contacts?target=

	follows := e.Group("/v1/follows")
	follows.Use(authMiddleware.Authenticate)
	follows.POST("", directoryHandler.Follow)        // POST   /v1/follows
	follows.DELETE("/:id", directoryHandler.Unfollow) // DELETE /v1/follows/:id

	users := e.Group("/v1/users")
	users.Use(authMiddleware.Authenticate)
	users.GET("/search", directoryHandler.SearchCurators) // GET /v1/users/search?q=
}

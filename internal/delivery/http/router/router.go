// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"accounts/internal/delivery/http/middleware"
	"accounts/internal/delivery/http/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AccountHandler *handler.AccountHandler
	AuthMiddleware *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	accountHandler *handler.AccountHandler
	authMiddleware *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		accountHandler: params.AccountHandler,
		authMiddleware: params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
// Static segments win over /:id in echo's router, so /health and /me never reach the lookups.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)

	e.POST("/", r.accountHandler.Register)
	e.POST("/login", r.accountHandler.Login)

	e.GET("/me", r.accountHandler.GetMe, r.authMiddleware.Authenticate)

	e.GET("/:id", r.accountHandler.GetProfile)
	e.GET("/:id/preferences", r.accountHandler.GetPreferences)
	e.GET("/:id/contact", r.accountHandler.GetContact)
}

// Package router contains routing setup for the status API.
package router

import (
	"mandi/internal/delivery/http/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	StatusHandler       *handler.StatusHandler
	MatchesHandler      *handler.MatchesHandler
	NotificationHandler *handler.NotificationHandler
	StallHandler        *handler.StallHandler
}

// router holds all the handlers that need to be registered.
type router struct {
	statusHandler       *handler.StatusHandler
	matchesHandler      *handler.MatchesHandler
	notificationHandler *handler.NotificationHandler
	stallHandler        *handler.StallHandler
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		statusHandler:       params.StatusHandler,
		matchesHandler:      params.MatchesHandler,
		notificationHandler: params.NotificationHandler,
		stallHandler:        params.StallHandler,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	apiV1 := e.Group("/api/v1")
	{
		apiV1.GET("/status", r.statusHandler.GetStatus)
		apiV1.PUT("/conditions", r.statusHandler.PutConditions)

		apiV1.GET("/matches", r.matchesHandler.GetMatches)
		apiV1.GET("/quote", r.matchesHandler.GetQuote)

		apiV1.GET("/notifications", r.notificationHandler.GetNotifications)
		apiV1.DELETE("/notifications/:id", r.notificationHandler.DismissNotification)

		apiV1.POST("/orders/:id/share-location", r.notificationHandler.ShareOrderLocation)

		apiV1.GET("/stall-card", r.stallHandler.GetStallCard)
		apiV1.POST("/stall-scan", r.stallHandler.PostStallScan)
	}
}

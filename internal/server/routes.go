package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gryn010/inception/internal/server/middleware"
	"github.com/gryn010/inception/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo, gatherer prometheus.Gatherer) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Linking routes
	apiRoutes.POST("/projects/:id/link", routes.LinkHandler, middleware.RequirePermission(middleware.PermissionLink))
	apiRoutes.POST("/projects/:id/link/async", routes.LinkAsyncHandler, middleware.RequirePermission(middleware.PermissionLinkAsync))
	apiRoutes.GET("/projects/:id/kbs/:kb_id/search", routes.SearchItemsHandler, middleware.RequirePermission(middleware.PermissionSearch))
}

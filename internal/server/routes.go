package server

import (
	"github.com/labstack/echo/v4"

	"cloutgraph/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Ingestion routes
	apiRoutes.POST("/batches", routes.CreateBatchHandler)
	apiRoutes.GET("/batches/:id", routes.GetBatchHandler)

	// Scoring routes
	apiRoutes.POST("/score-runs", routes.CreateScoreRunHandler)
	apiRoutes.GET("/score-runs/:id", routes.GetScoreRunHandler)

	// Graph read routes
	apiRoutes.GET("/people", routes.GetPeopleHandler)
}

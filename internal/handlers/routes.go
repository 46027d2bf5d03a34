package handlers

import (
	"github.com/epeers/nexus/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the API on router. Mutating definition routes require a user.
func RegisterRoutes(router gin.IRouter, definitions *DefinitionHandler, users *UserHandler, runs *RunHandler) {
	// Definition routes
	router.POST("/definitions", middleware.RequireAuth(), definitions.Save)
	router.POST("/definitions/validate", definitions.Validate)
	router.POST("/definitions/components/csv", definitions.ImportComponentsCSV)
	router.GET("/definitions/:kind/:code", definitions.Get)
	router.DELETE("/definitions/:kind/:code", middleware.RequireAuth(), definitions.Delete)
	router.POST("/definitions/:kind/:code/resolve", definitions.Resolve)

	// User routes
	router.GET("/users/:user_id/definitions", users.ListDefinitions)

	// Run routes
	router.POST("/runs", runs.Start)
	router.GET("/runs/:id", runs.Status)
	router.POST("/runs/:id/confirm", runs.Confirm)
	router.DELETE("/runs/:id", runs.Cancel)
	router.POST("/holdings/csv", runs.ImportHoldingsCSV)
}

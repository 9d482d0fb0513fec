// api/router.go
package api

import (
	"github.com/devadigapratham/leveling3d/api/handlers"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPrefix is where the leveling API is mounted
const DefaultPrefix = "/api"

// SetupRouter sets up the API routes. Metrics are served when gatherer is set.
func SetupRouter(handler *handlers.Handler, prefix string, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.Use(gin.CustomRecovery(handler.Recover))
	router.Use(handler.RequestLogger())

	// Every unknown path or method answers with the same JSON 404
	router.NoRoute(handler.EndpointNotFound)
	router.NoMethod(handler.EndpointNotFound)

	if prefix == "" {
		prefix = DefaultPrefix
	}

	// API group
	api := router.Group(prefix)
	api.Use(handler.JournalLeaderMiddleware())
	{
		// Status
		api.GET("/leveling", handler.GetLevelingStatus)

		// Saved mesh slots. An empty id is answered like any other invalid one.
		api.PUT("/leveling/mesh/", handler.PutMeshSlot)
		api.DELETE("/leveling/mesh/", handler.DeleteMeshSlot)
		api.PUT("/leveling/mesh/:id", handler.PutMeshSlot)
		api.DELETE("/leveling/mesh/:id", handler.DeleteMeshSlot)
		api.PUT("/leveling/mesh/:id/activate", handler.ActivateMeshSlot)

		// Active printer mesh and settings
		api.PUT("/leveling/printer-mesh", handler.PutPrinterMesh)
		api.PUT("/leveling/settings", handler.PutSettings)
	}

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return router
}

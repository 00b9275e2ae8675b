package router

import (
	"github.com/gin-gonic/gin"

	"github.com/memgate/memgate/engine/timesync"
)

// RegisterRoutes registers all sync routes on the given group.
func RegisterRoutes(base *gin.RouterGroup, tracker *timesync.Tracker) {
	handler := NewHandler(tracker)

	base.POST("/sync", handler.Sync)
	sync := base.Group("/sync")
	{
		sync.GET("/status", handler.AllStatuses)
		sync.GET("/status/:service", handler.ServiceStatus)
		sync.POST("/compare", handler.Compare)
		sync.GET("/latest", handler.Latest)
		sync.POST("/register/:service", handler.Register)
		sync.DELETE("/register/:service", handler.Deregister)
	}
}

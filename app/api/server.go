package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates the HTTP server with all routes configured.
func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	setupRoutes(r, handler)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler) {
	r.GET("/health", handler.HealthCheck)

	api := r.Group("/api")
	{
		api.GET("/stats", handler.GetStats)

		api.GET("/items", handler.ListItems)
		api.POST("/mark_read", handler.MarkRead)
		api.POST("/toggle_bookmark", handler.ToggleBookmark)

		api.GET("/feeds", handler.ListFeeds)
		api.GET("/feeds/:id", handler.GetFeed)
		api.POST("/feeds", handler.CreateFeed)
		api.PUT("/feeds/:id", handler.UpdateFeed)
		api.DELETE("/feeds/:id", handler.DeleteFeed)
		api.POST("/feeds/:id/refresh", handler.RefreshFeed)

		api.POST("/update/start", handler.StartUpdate)
		api.GET("/update/progress", handler.UpdateProgress)
		api.POST("/update/cancel", handler.CancelUpdate)

		api.POST("/scheduler", handler.SetScheduler)

		api.GET("/opml", handler.ExportOPML)
		api.POST("/opml", handler.ImportOPML)
	}

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

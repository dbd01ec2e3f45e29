package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer creates the HTTP engine with all routes configured. gatherer
// may be nil, which leaves /metrics unregistered.
func NewServer(handler *Handler, gatherer prometheus.Gatherer) *gin.Engine {
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
		SkipPaths: []string{"/health", "/metrics"},
	}))

	r.Use(gin.Recovery())

	// CORS, the read endpoints are polled from the browser
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, If-None-Match")
		c.Header("Access-Control-Expose-Headers", "ETag")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, gatherer)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, gatherer prometheus.Gatherer) {
	api := r.Group("/api")
	{
		api.GET("/feed", handler.GetFeed)
		api.GET("/feed.head", handler.GetFeedHead)
		api.GET("/rebuild", handler.Rebuild)
		api.POST("/rebuild", handler.Rebuild)
		api.GET("/sources", handler.ListSources)
		api.GET("/sources/:id", handler.GetSourceDetails)
	}

	r.GET("/feed.rss", handler.GetRSS)
	r.GET("/health", handler.GetHealth)

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service":     "NewsFlash",
			"version":     handler.version,
			"description": "News aggregation pipeline publishing a deduplicated, summarized feed document",
			"endpoints": map[string]string{
				"feed":    "/api/feed",
				"head":    "/api/feed.head",
				"rebuild": "/api/rebuild[?dry=1]",
				"sources": "/api/sources[/<id>]",
				"rss":     "/feed.rss",
				"health":  "/health",
				"metrics": "/metrics",
			},
			"documentation": "https://github.com/oyemello/newsflash",
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

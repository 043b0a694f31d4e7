package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
func New(events *handlers.EventHandler, herd *handlers.HerdHandler, debug bool, logger *zap.Logger) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/animals", events.CreateAnimal)
	r.GET("/animals/:id/summary", herd.GetSummary)
	r.POST("/animal-events", events.CreateEvent)
	r.GET("/milking-events", events.ListMilkingEvents)
	r.GET("/milking-events/:id/milk-yield", events.GetMilkYield)
	r.POST("/reconciliations", herd.Reconcile)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

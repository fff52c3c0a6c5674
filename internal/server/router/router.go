package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mbalde7/stockly/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
func New(scan *handlers.ScanHandler, mut *handlers.MutationHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.POST("/scan/permission", scan.ReportPermission)
	r.POST("/scan/session", scan.StartSession)
	r.DELETE("/scan/session", scan.StopSession)
	r.GET("/scan/session", scan.GetSession)
	r.POST("/scan/detections", scan.ReceiveDetection)

	r.POST("/mutation/target", mut.SelectTarget)
	r.POST("/mutation/form", mut.UpdateForm)
	r.POST("/mutation/validate", mut.Validate)
	r.POST("/mutation/submit", mut.Submit)
	r.POST("/mutation/reset", mut.Reset)
	r.GET("/stock/:id", mut.GetStockLine)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

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

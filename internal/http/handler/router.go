package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/edirooss/streambed-server/internal/http/middleware"
)

type RouterOptions struct {
	// Dev enables CORS for local dashboards; otherwise secure headers
	// are applied and only TrustedProxies may set forwarding headers.
	Dev            bool
	TrustedProxies []string
	// Metrics is served on GET /metrics when set.
	Metrics http.Handler
}

// NewRouter wires middlewares and the read-only status routes.
func NewRouter(log *zap.Logger, flows *FlowsHandler, opts RouterOptions) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery()) // Recovery first (outermost)
	r.Use(mw.RequestID())

	if opts.Dev {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  []string{"http://localhost:5173", "http://localhost:4173", "http://localhost:3000", "http://127.0.0.1:3000"},
			AllowMethods:  []string{"GET", "OPTIONS"},
			AllowHeaders:  []string{"X-Request-ID", "Content-Type"},
			ExposeHeaders: []string{"X-Request-ID", "X-Total-Count"},
			MaxAge:        12 * time.Hour,
		}))
	} else {
		if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
			log.Warn("invalid trusted proxies", zap.Error(err))
		}
		r.Use(secure.New(secure.Config{
			FrameDeny:          true,
			ContentTypeNosniff: true,
		}))
	}

	r.Use(mw.AccessLog(log.Named("access")))

	r.GET("/api/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	r.GET("/api/flows", flows.GetFlowList)
	r.GET("/api/flows/:number", mw.RequireValidFlowNumber(), flows.GetFlow)
	r.GET("/api/flows/:number/logs", mw.RequireValidFlowNumber(), flows.GetFlowLogs)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	return r
}

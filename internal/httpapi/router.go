package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/ai-debate/internal/chat"
	"github.com/suPer8Hu/ai-debate/internal/common"
	"github.com/suPer8Hu/ai-debate/internal/config"
	"github.com/suPer8Hu/ai-debate/internal/httpapi/handlers"
	"github.com/suPer8Hu/ai-debate/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, svc *chat.Service, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	h := handlers.NewHandler(cfg, svc, logger)

	r.GET("/ping", h.Ping)

	// auth
	r.POST("/api/auth/signup", h.Signup)
	r.POST("/api/auth/login", h.Login)
	// processor redirect target, no token
	r.GET("/api/v1/payments/checkout/:id/complete", h.CompleteCheckout)

	authGroup := r.Group("/api")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/auth/me", h.Me)

	v1 := authGroup.Group("/v1")
	v1.POST("/session", h.CreateSession)
	v1.GET("/session/:session_id", h.GetSession)
	v1.POST("/broadcast", h.Broadcast)
	v1.GET("/history", h.History)

	v1.POST("/payments/create-checkout", h.CreateCheckout)
	v1.GET("/payments/status", h.PaymentStatus)

	v1.GET("/daily/latest", h.LatestDaily)
	v1.POST("/daily/generate", h.GenerateDaily)
	return r
}

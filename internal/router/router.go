package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prepdeck/prepdeck-backend/internal/config"
	"github.com/prepdeck/prepdeck-backend/internal/handler"
	"github.com/prepdeck/prepdeck-backend/internal/middleware"
	"github.com/prepdeck/prepdeck-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam    *handler.ExamHandler
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Session API (JWT) ──────────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireBearer(cfg.JWTSecret))
	{
		api.GET("/exams", handlers.Exam.ListExams)
		api.POST("/exams/:exam_id/attempts", handlers.Attempt.StartAttempt)

		api.GET("/attempts", handlers.Attempt.GetHistory)
		api.GET("/attempts/:attempt_id/paper", handlers.Attempt.GetPaper)
		api.GET("/attempts/:attempt_id/clock", handlers.Attempt.GetClock)
		api.PUT("/attempts/:attempt_id/answers", handlers.Attempt.SubmitAnswer)
		api.POST("/attempts/:attempt_id/submit", handlers.Attempt.SubmitExam)
		api.GET("/attempts/:attempt_id/result", handlers.Attempt.GetResult)
	}

	// ─── 2. WebSocket Group ────────────────────────────────────────────
	// Browsers cannot set Authorization headers on WebSocket upgrades, so
	// the auth middleware also accepts a ?token= query parameter here.
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireBearer(cfg.JWTSecret))
	{
		ws.GET("/attempts/:attempt_id/stream", handlers.WS.AttemptClockStream)
	}

	return router
}

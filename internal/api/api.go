package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/invengine/internal/api/handlers"
	"github.com/andresuchdata/invengine/internal/api/middleware"
	"github.com/andresuchdata/invengine/internal/service"
)

type Services struct {
	AnalysisService *service.AnalysisService
	ResolveSource   handlers.SourceResolver
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	apiGroup := router.Group("/api/v1")

	if services != nil && services.AnalysisService != nil {
		h := handlers.NewAnalysisHandler(services.AnalysisService, services.ResolveSource)
		router.GET("/health", h.Health)

		analysisGroup := apiGroup.Group("/analysis")
		{
			analysisGroup.GET("/health", h.Health)
			analysisGroup.POST("/run", h.RunAnalysis)
			analysisGroup.GET("/runs", h.GetRuns)
			analysisGroup.GET("/runs/:id", h.GetRun)
			analysisGroup.GET("/segments/:segment/profile", h.GetSegmentProfile)

			latestGroup := analysisGroup.Group("/latest")
			{
				latestGroup.GET("/summary", h.GetSummary)
				latestGroup.GET("/demand_shifts", h.GetDemandShifts)
				latestGroup.GET("/non_moving", h.GetNonMoving)
				latestGroup.GET("/segmentation", h.GetSegmentation)
				latestGroup.GET("/risk_scores", h.GetRiskScores)
				latestGroup.GET("/alerts", h.GetAlerts)
			}
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}

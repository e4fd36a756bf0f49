package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/invengine/internal/alerts"
	"github.com/andresuchdata/invengine/internal/analytics"
	"github.com/andresuchdata/invengine/internal/analytics/demandshift"
	"github.com/andresuchdata/invengine/internal/analytics/scoring"
	"github.com/andresuchdata/invengine/internal/analytics/segmentation"
	"github.com/andresuchdata/invengine/internal/config"
	"github.com/andresuchdata/invengine/internal/dataset"
	"github.com/andresuchdata/invengine/internal/domain"
	"github.com/andresuchdata/invengine/internal/drive"
	"github.com/andresuchdata/invengine/internal/repository"
	"github.com/andresuchdata/invengine/internal/service"
	"github.com/andresuchdata/invengine/internal/storage"
)

const (
	dateLayout        = "2006-01-02"
	defaultScoreLimit = 100
)

// SourceResolver builds a dataset source from a request's source name and
// location (directory or bucket prefix).
type SourceResolver func(name, location string) (service.DatasetSource, error)

type AnalysisHandler struct {
	service *service.AnalysisService
	resolve SourceResolver
}

func NewAnalysisHandler(svc *service.AnalysisService, resolve SourceResolver) *AnalysisHandler {
	return &AnalysisHandler{service: svc, resolve: resolve}
}

type runRequest struct {
	Source         string `json:"source"`
	Location       string `json:"location"`
	AnalysisDate   string `json:"analysis_date"`
	ThresholdWeeks int    `json:"threshold_weeks"`
	ByLocation     bool   `json:"by_location"`
	Persist        bool   `json:"persist"`
	Export         bool   `json:"export"`
	Upload         bool   `json:"upload"`
}

type runResponse struct {
	RunID          string            `json:"run_id"`
	AnalysisDate   string            `json:"analysis_date"`
	ThresholdWeeks int               `json:"threshold_weeks"`
	DurationMS     int64             `json:"duration_ms"`
	Summary        analytics.Summary `json:"summary"`
}

// RunAnalysis handles POST /run.
func (h *AnalysisHandler) RunAnalysis(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}
	if req.Source == "" {
		req.Source = service.SourceCSV
	}

	opts := analytics.RunOptions{ThresholdWeeks: req.ThresholdWeeks, ByLocation: req.ByLocation}
	if req.AnalysisDate != "" {
		d, err := time.Parse(dateLayout, req.AnalysisDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "analysis_date must be YYYY-MM-DD"})
			return
		}
		opts.AnalysisDate = d
	}

	src, err := h.resolve(req.Source, req.Location)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.service.Run(c.Request.Context(), service.RunRequest{
		Source:  src,
		Options: opts,
		Persist: req.Persist,
		Export:  req.Export,
		Upload:  req.Upload,
	})
	if err != nil {
		h.runError(c, err)
		return
	}

	c.JSON(http.StatusOK, runResponse{
		RunID:          report.RunID,
		AnalysisDate:   report.AnalysisDate.Format(dateLayout),
		ThresholdWeeks: report.ThresholdWeeks,
		DurationMS:     report.Duration.Milliseconds(),
		Summary:        report.Summary,
	})
}

func (h *AnalysisHandler) runError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		status = http.StatusConflict
	case errors.Is(err, config.ErrInvalidThresholdWeeks),
		errors.Is(err, dataset.ErrEmptyDataset),
		errors.Is(err, dataset.ErrMissingColumn),
		errors.Is(err, dataset.ErrInvalidValue),
		errors.Is(err, dataset.ErrDuplicatePoint),
		errors.Is(err, storage.ErrNoObjects),
		errors.Is(err, drive.ErrNoInputs),
		errors.Is(err, drive.ErrFolderNotFound),
		errors.Is(err, service.ErrNoRepository),
		errors.Is(err, service.ErrUploadDisabled):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("analysis: run failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// latest writes 404 and returns nil when no report exists yet.
func (h *AnalysisHandler) latest(c *gin.Context) *analytics.Report {
	report, err := h.service.Latest()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil
	}
	return report
}

// GetSummary handles GET /latest/summary.
func (h *AnalysisHandler) GetSummary(c *gin.Context) {
	summary, err := h.service.LatestSummary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetDemandShifts handles GET /latest/demand_shifts?detected_only=.
func (h *AnalysisHandler) GetDemandShifts(c *gin.Context) {
	report := h.latest(c)
	if report == nil {
		return
	}
	results := report.DemandShifts
	if detectedOnly, _ := strconv.ParseBool(c.DefaultQuery("detected_only", "false")); detectedOnly {
		results = demandshift.Significant(results, 0)
	}
	c.JSON(http.StatusOK, gin.H{"run_id": report.RunID, "count": len(results), "items": results})
}

// GetNonMoving handles GET /latest/non_moving?status=.
func (h *AnalysisHandler) GetNonMoving(c *gin.Context) {
	report := h.latest(c)
	if report == nil {
		return
	}
	results := report.NonMoving
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, ok := domain.ParseMovementStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of active, non_moving, on_hold"})
			return
		}
		filtered := make([]domain.NonMovingResult, 0)
		for _, r := range results {
			if r.MovementStatus == status {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}
	c.JSON(http.StatusOK, gin.H{"run_id": report.RunID, "count": len(results), "items": results})
}

// GetSegmentation handles GET /latest/segmentation?segment=.
func (h *AnalysisHandler) GetSegmentation(c *gin.Context) {
	report := h.latest(c)
	if report == nil {
		return
	}
	results := report.Segmentation
	if raw := strings.TrimSpace(c.Query("segment")); raw != "" {
		seg, err := domain.ParseSegment(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filtered := make([]domain.SegmentationResult, 0)
		for _, r := range results {
			if r.Segment == seg {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id": report.RunID,
		"count":  len(results),
		"matrix": report.Summary.SegmentMatrix,
		"items":  results,
	})
}

// GetRiskScores handles GET /latest/risk_scores?level=&limit=.
func (h *AnalysisHandler) GetRiskScores(c *gin.Context) {
	report := h.latest(c)
	if report == nil {
		return
	}
	scores := report.RiskScores
	if raw := strings.TrimSpace(c.Query("level")); raw != "" {
		level, ok := domain.ParseRiskLevel(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "level must be one of critical, high, medium, low, minimal"})
			return
		}
		scores = scoring.FilterLevel(scores, level)
	}

	limit := defaultScoreLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	scores = scoring.PriorityItems(scores, limit)
	c.JSON(http.StatusOK, gin.H{"run_id": report.RunID, "count": len(scores), "items": scores})
}

// GetAlerts handles GET /latest/alerts?priority=.
func (h *AnalysisHandler) GetAlerts(c *gin.Context) {
	report := h.latest(c)
	if report == nil {
		return
	}
	list := report.Alerts
	if raw := strings.TrimSpace(c.Query("priority")); raw != "" {
		p, ok := alerts.ParsePriority(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown priority " + raw})
			return
		}
		list = alerts.FilterPriority(list, p)
	}
	c.JSON(http.StatusOK, gin.H{"run_id": report.RunID, "count": len(list), "items": list})
}

// GetSegmentProfile handles GET /segments/:segment/profile.
func (h *AnalysisHandler) GetSegmentProfile(c *gin.Context) {
	seg, err := domain.ParseSegment(c.Param("segment"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile, ok := segmentation.Profile(seg)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown segment"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetRuns handles GET /runs?limit=.
func (h *AnalysisHandler) GetRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.service.Runs(c.Request.Context(), limit)
	if errors.Is(err, service.ErrNoRepository) {
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("analysis: list runs failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(runs), "items": runs})
}

// GetRun handles GET /runs/:id.
func (h *AnalysisHandler) GetRun(c *gin.Context) {
	run, err := h.service.RunRecord(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, service.ErrNoRepository):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		log.Error().Err(err).Str("run_id", c.Param("id")).Msg("analysis: get run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get run"})
	default:
		c.JSON(http.StatusOK, run)
	}
}

// Health handles GET /health.
func (h *AnalysisHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok", "running": h.service.Running()}
	if report, err := h.service.Latest(); err == nil {
		resp["latest_run_id"] = report.RunID
	}
	c.JSON(http.StatusOK, resp)
}

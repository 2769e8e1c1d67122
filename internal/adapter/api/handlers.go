package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/couchcryptid/wind-telemetry-etl/internal/adapter/source"
	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "wind telemetry API"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"db_host":   s.info.DBHost,
		"source_db": s.info.SourceDB,
		"target_db": s.info.TargetDB,
	})
}

// handleSourceData returns raw rows in [start, end)
// GET /source/data?start=...&end=...&variables=wind_speed&variables=power
func (s *Server) handleSourceData(c *gin.Context) {
	start, end, err := parseRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vars := domain.AllowedVariables
	if names := c.QueryArray("variables"); len(names) > 0 {
		vars, err = domain.ParseVariables(names)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	samples, err := s.source.QuerySamples(ctx, start, end, vars)
	if err != nil {
		s.logger.Error("query samples failed", "error", err, "start", start, "end", end)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query source data"})
		return
	}

	rows := make([]map[string]any, 0, len(samples))
	for _, sample := range samples {
		rows = append(rows, source.EncodeRow(sample, vars))
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleListSignals(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	signals, err := s.target.ListSignals(ctx)
	if err != nil {
		s.logger.Error("list signals failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list signals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": signals,
		"meta": gin.H{"count": len(signals)},
	})
}

// handleMeasurements returns one signal's facts in [start, end)
// GET /measurements?signal=wind_speed_mean_10m&start=...&end=...
func (s *Server) handleMeasurements(c *gin.Context) {
	name := c.Query("signal")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "signal is required"})
		return
	}
	start, end, err := parseRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	rows, err := s.target.QueryMeasurements(ctx, name, start, end)
	if err != nil {
		s.logger.Error("query measurements failed", "error", err, "signal", name)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query measurements"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": rows,
		"meta": gin.H{"signal": name, "count": len(rows)},
	})
}

func parseRange(c *gin.Context) (time.Time, time.Time, error) {
	startStr, endStr := c.Query("start"), c.Query("end")
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, errors.New("start and end are required")
	}
	start, err := source.ParseTimestamp(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err := source.ParseTimestamp(endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, errors.New("start must be before end")
	}
	return start, end, nil
}

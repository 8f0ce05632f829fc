package controllers

import (
	"context"
	"net/http"

	"statusbot/internal/models"
	"statusbot/internal/plugin"

	"github.com/gin-gonic/gin"
)

// StatusSource produces fresh host snapshots and rendered reports
type StatusSource interface {
	Snapshot(ctx context.Context) (*models.MetricsSnapshot, error)
	GenerateReport(ctx context.Context) (string, error)
}

// GetReport returns the rendered status report as plain text
func GetReport(source StatusSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := source.GenerateReport(c.Request.Context())
		if err != nil {
			c.String(http.StatusInternalServerError, plugin.FailureText(err))
			return
		}
		c.String(http.StatusOK, report)
	}
}

// GetSnapshot returns the raw metrics snapshot
func GetSnapshot(source StatusSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot, err := source.Snapshot(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

// Healthz reports liveness
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/fenilmodi00/market-quotes/jobs"
	"github.com/fenilmodi00/market-quotes/models"
	"github.com/fenilmodi00/market-quotes/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// SyncRunner is the part of the sync job the admin endpoints drive
type SyncRunner interface {
	SyncOnce(ctx context.Context) (*models.SyncReport, error)
	LastReport() *models.SyncReport
}

type AdminHandler struct {
	SyncJob SyncRunner
	Metrics []*shared.ServiceMetrics
}

func NewAdminHandler(syncJob SyncRunner, metrics ...*shared.ServiceMetrics) *AdminHandler {
	return &AdminHandler{
		SyncJob: syncJob,
		Metrics: metrics,
	}
}

// TriggerSync runs one sync and returns its report; 409 while another run is active
func (h *AdminHandler) TriggerSync(c *fiber.Ctx) error {
	logrus.Info("Manual quote sync triggered via admin endpoint")

	startTime := time.Now()
	report, err := h.SyncJob.SyncOnce(c.Context())
	if errors.Is(err, jobs.ErrSyncInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
			"data":    report,
		})
	}
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"data":     report,
		"duration": time.Since(startTime).String(),
	})
}

// GetLastSync returns the most recent sync report with service metrics
func (h *AdminHandler) GetLastSync(c *fiber.Ctx) error {
	report := h.SyncJob.LastReport()
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "no sync has completed yet",
		})
	}

	snapshots := make([]shared.MetricsSnapshot, 0, len(h.Metrics))
	for _, metrics := range h.Metrics {
		if metrics != nil {
			snapshots = append(snapshots, metrics.GetSnapshot())
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    report,
		"metrics": snapshots,
	})
}

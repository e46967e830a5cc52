package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartlipad/smartlipad-go/internal/config"
	"github.com/smartlipad/smartlipad-go/internal/database"
)

// CleanupService periodically removes data past its retention window:
// invalidated fare snapshots and superseded forecast runs. Valid fare
// history is never touched, it is the training data.
type CleanupService struct {
	pool   database.DatabasePool
	store  *database.ForecastStore
	logger *logrus.Entry
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(pool database.DatabasePool, store *database.ForecastStore, logger *logrus.Logger) *CleanupService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CleanupService{
		pool:   pool,
		store:  store,
		logger: logger.WithField("component", "cleanup"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins periodic cleanup. An initial pass runs immediately.
func (c *CleanupService) Start(cfg config.CleanupConfig) {
	c.logger.WithFields(logrus.Fields{
		"invalid_fare_retention_hours": cfg.InvalidFareRetentionHours,
		"forecast_run_retention_hours": cfg.ForecastRunRetentionHours,
		"interval_minutes":             cfg.CleanupIntervalMinutes,
	}).Info("Starting cleanup service")

	go func() {
		if err := c.runCleanup(cfg); err != nil {
			c.logger.WithError(err).Error("Initial cleanup failed")
		}
	}()

	ticker := time.NewTicker(time.Duration(cfg.CleanupIntervalMinutes) * time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				if err := c.runCleanup(cfg); err != nil {
					c.logger.WithError(err).Error("Cleanup failed")
				}
			}
		}
	}()
}

// Stop stops the cleanup service.
func (c *CleanupService) Stop() {
	c.logger.Info("Stopping cleanup service")
	c.cancel()
}

// RunCleanup performs a manual cleanup pass.
func (c *CleanupService) RunCleanup(cfg config.CleanupConfig) error {
	return c.runCleanup(cfg)
}

func (c *CleanupService) runCleanup(cfg config.CleanupConfig) error {
	if err := c.cleanupInvalidFares(cfg.InvalidFareRetentionHours); err != nil {
		return fmt.Errorf("failed to cleanup invalid fares: %w", err)
	}
	if err := c.cleanupForecastRuns(cfg.ForecastRunRetentionHours); err != nil {
		return fmt.Errorf("failed to cleanup forecast runs: %w", err)
	}
	return nil
}

// cleanupInvalidFares deletes snapshots that were invalidated longer ago than
// the retention window. They served their audit purpose by then.
func (c *CleanupService) cleanupInvalidFares(retentionHours int) error {
	cutoff := time.Now().Add(-time.Duration(retentionHours) * time.Hour)

	tag, err := c.pool.Exec(c.ctx,
		`DELETE FROM fare_snapshots WHERE is_valid = false AND created_at < $1`, cutoff)
	if err != nil {
		return err
	}

	if tag.RowsAffected() > 0 {
		c.logger.WithField("deleted", tag.RowsAffected()).Info("Cleaned up invalid fare snapshots")
	}
	return nil
}

func (c *CleanupService) cleanupForecastRuns(retentionHours int) error {
	cutoff := time.Now().Add(-time.Duration(retentionHours) * time.Hour)

	deleted, err := c.store.DeleteRunsBefore(c.ctx, cutoff)
	if err != nil {
		return err
	}

	if deleted > 0 {
		c.logger.WithField("deleted", deleted).Info("Cleaned up old forecast runs")
	}
	return nil
}

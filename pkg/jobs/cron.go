// Package jobs runs scheduled maintenance against the store.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/creatorstack/storefront/pkg/store"
)

// visitRetention is how long an unconverted visit is kept before pruning.
const visitRetention = 90 * 24 * time.Hour

// CronManager manages scheduled jobs
type CronManager struct {
	cron   *cron.Cron
	store  store.Store
	logger *log.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(st store.Store, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}

	return &CronManager{
		cron:   cron.New(),
		store:  st,
		logger: logger,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.logger.Println("Setting up cron jobs...")

	// Daily at 3 AM: prune stale unconverted visits. Converted visits stay,
	// they back the affiliate's conversion history.
	_, err := cm.cron.AddFunc("0 3 * * *", func() {
		cm.logger.Println("🕐 Running nightly visit pruning job...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		cutoff := time.Now().Add(-visitRetention)
		deleted, err := cm.store.DeleteUnconvertedVisitsBefore(ctx, cutoff)
		if err != nil {
			cm.logger.Printf("❌ Visit pruning failed: %v", err)
			return
		}

		cm.logger.Printf("✅ Visit pruning completed: %d stale visits removed", deleted)
	})
	if err != nil {
		return err
	}

	cm.logger.Println("✅ Cron jobs configured successfully")
	cm.logger.Println("  - Daily at 3 AM: Prune stale unconverted visits")

	return nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Println("🚀 Starting cron scheduler...")
	cm.cron.Start()
}

// Stop stops the cron scheduler
func (cm *CronManager) Stop() {
	cm.logger.Println("🛑 Stopping cron scheduler...")
	cm.cron.Stop()
}

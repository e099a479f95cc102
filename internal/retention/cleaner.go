// Package retention prunes delivered notifications that are older than the
// configured retention window.
package retention

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/floreteng/bundld/internal/settings"
)

const defaultCleanupInterval = 6 * time.Hour

// DeliveredDeleter removes delivered notification rows before a cutoff.
type DeliveredDeleter interface {
	DeleteDeliveredOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner periodically deletes delivered notifications past the retention window.
type Cleaner struct {
	store    DeliveredDeleter
	interval time.Duration
}

func NewCleaner(store DeliveredDeleter) *Cleaner {
	if store == nil {
		return nil
	}
	return &Cleaner{
		store:    store,
		interval: defaultCleanupInterval,
	}
}

// Start launches the cleanup loop in a background goroutine.
func (c *Cleaner) Start(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go c.run(ctx)
	log.Infof("retention cleaner started (interval=%s)", c.interval)
}

func (c *Cleaner) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.CleanupOnce(ctx)
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// CleanupOnce runs a single retention pass. Retention days come from the
// settings snapshot; a value of zero or less disables cleanup.
func (c *Cleaner) CleanupOnce(ctx context.Context) {
	if c == nil || c.store == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	retentionDays := settings.IntValue(settings.RetentionDaysKey, settings.DefaultRetentionDays)
	if retentionDays <= 0 {
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	deleted, err := c.store.DeleteDeliveredOlderThan(ctx, cutoff)
	if err != nil {
		log.WithError(err).Warn("retention cleaner: delete failed")
		return
	}
	if deleted > 0 {
		log.Infof("retention cleaner: deleted %d delivered notifications (cutoff=%s retention_days=%d)", deleted, cutoff.Format(time.RFC3339), retentionDays)
	}
}

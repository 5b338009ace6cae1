package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atinyakov/moodmap/internal/metrics"
	"go.uber.org/zap"
)

// MoodPurger deletes moods that are older than the retention period. Rows
// outside the recent window are already invisible to clients; purging only
// reclaims storage.
type MoodPurger struct {
	db        *sql.DB
	retention time.Duration
	log       *zap.Logger
	now       func() time.Time
}

// NewMoodPurger creates a purger for the moods table.
func NewMoodPurger(db *sql.DB, retention time.Duration, log *zap.Logger) *MoodPurger {
	return &MoodPurger{db: db, retention: retention, log: log, now: time.Now}
}

// PurgeOnce deletes expired rows and returns how many were removed.
func (p *MoodPurger) PurgeOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	defer func() { metrics.PurgeLatencySeconds.Observe(time.Since(start).Seconds()) }()

	cutoff := p.now().Add(-p.retention)
	res, err := p.db.ExecContext(ctx, `DELETE FROM moods WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge moods: %w", err)
	}
	rows, _ := res.RowsAffected()
	metrics.MoodsPurgedTotal.Add(float64(rows))
	return rows, nil
}

// Start runs PurgeOnce every interval until ctx is cancelled.
func (p *MoodPurger) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rows, err := p.PurgeOnce(ctx)
				if err != nil {
					p.log.Error("failed to purge expired moods", zap.Error(err))
					continue
				}
				if rows > 0 {
					p.log.Info("purged expired moods", zap.Int64("removed", rows))
				}
			}
		}
	}()
}

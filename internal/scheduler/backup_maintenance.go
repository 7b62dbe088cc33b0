package scheduler

import (
	"context"
	"time"

	"github.com/shelfmark/shelfmark/internal/backup"
	"github.com/shelfmark/shelfmark/internal/logger"
)

const (
	// DefaultSnapshotAge is the maximum time between safety snapshots,
	// independent of the change counter.
	DefaultSnapshotAge = 24 * time.Hour
)

// BackupMaintainer periodically probes the backup directory for write
// access and forces a safety snapshot when the last one is too old, so a
// slow week of edits still ends up in a dated file.
type BackupMaintainer struct {
	backup       *backup.Manager
	logger       logger.Logger
	interval     time.Duration
	snapshotAge  time.Duration
	lastSnapshot time.Time
	stopCh       chan struct{}
}

// NewBackupMaintainer creates a new maintenance worker.
func NewBackupMaintainer(
	bm *backup.Manager,
	log logger.Logger,
	interval time.Duration,
	snapshotAge time.Duration,
) *BackupMaintainer {
	if snapshotAge == 0 {
		snapshotAge = DefaultSnapshotAge
	}

	return &BackupMaintainer{
		backup:       bm,
		logger:       log,
		interval:     interval,
		snapshotAge:  snapshotAge,
		lastSnapshot: time.Now(),
		stopCh:       make(chan struct{}),
	}
}

// Start begins the periodic maintenance process.
func (bm *BackupMaintainer) Start(ctx context.Context) error {
	// Run immediately on start
	bm.Maintain(ctx)

	ticker := time.NewTicker(bm.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				bm.Maintain(ctx)
			case <-bm.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the maintenance worker.
func (bm *BackupMaintainer) Stop() {
	close(bm.stopCh)
}

// Maintain runs one maintenance pass.
func (bm *BackupMaintainer) Maintain(ctx context.Context) {
	if !bm.backup.Active() {
		bm.logger.Debug("no backup directory attached, skipping maintenance")
		return
	}

	if !bm.backup.VerifyAccess() {
		bm.logger.Warn("backup directory write access lost",
			logger.String("dir", bm.backup.Dir()))
		return
	}

	age := time.Since(bm.lastSnapshot)
	if age < bm.snapshotAge || bm.backup.Changes() == 0 {
		bm.logger.Debug("no safety snapshot needed",
			logger.Duration("age", age),
			logger.Int("pending_changes", bm.backup.Changes()))
		return
	}

	if err := bm.backup.ForceSnapshot(ctx); err != nil {
		bm.logger.Error("safety snapshot failed", logger.Error(err))
		return
	}
	bm.lastSnapshot = time.Now()
	bm.logger.Info("safety snapshot written",
		logger.Duration("since_previous", age))
}

package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/itops-console/console-backend/v1/models"
)

// Syncer runs one directory sync
type Syncer interface {
	Sync(ctx context.Context) (*models.SyncResult, error)
}

// SyncWorker runs the directory sync on a fixed interval
type SyncWorker struct {
	syncer       Syncer
	pollInterval time.Duration
	runOnStart   bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(syncer Syncer, pollInterval time.Duration, runOnStart bool) *SyncWorker {
	if pollInterval <= 0 {
		pollInterval = time.Hour
	}
	return &SyncWorker{
		syncer:       syncer,
		pollInterval: pollInterval,
		runOnStart:   runOnStart,
	}
}

// Start runs the sync loop until ctx is cancelled
func (w *SyncWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Directory sync worker started", "pollInterval", w.pollInterval)

	if w.runOnStart {
		w.runOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Directory sync worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce runs a single sync. Failures are logged and retried on the next tick.
func (w *SyncWorker) runOnce(ctx context.Context) {
	if _, err := w.syncer.Sync(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("Directory sync failed, will retry on next tick", "error", err, "nextRunIn", w.pollInterval)
	}
}

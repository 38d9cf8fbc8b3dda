// Package cleanup removes expired shares: it walks metadata rows whose
// expiry has passed, purges every object version behind them, and only then
// drops the rows. Scheduling lives here; the deletion semantics live in the
// storage package.
package cleanup

import (
	"context"
	"time"

	"github.com/dropgate/dropgate/internal/logging"
	"github.com/dropgate/dropgate/internal/server/models"
)

// sweepBatchSize bounds how many expired rows one sweep picks up.
const sweepBatchSize = 100

// FileStore is the slice of the metadata repository the sweep needs.
type FileStore interface {
	SelectExpired(ctx context.Context, now time.Time, limit int) ([]*models.File, error)
	DeleteByID(ctx context.Context, id string) error
}

// Purger runs the version-complete deletion for one key.
type Purger interface {
	Purge(ctx context.Context, bucket, key string) error
}

// Service is the periodic expiry sweep.
type Service struct {
	files    FileStore
	purger   Purger
	bucket   string
	interval time.Duration
	logger   logging.Logger
}

// New builds a cleanup service sweeping every interval.
func New(files FileStore, purger Purger, bucket string, interval time.Duration, logger logging.Logger) *Service {
	return &Service{
		files:    files,
		purger:   purger,
		bucket:   bucket,
		interval: interval,
		logger:   logger.With("module", "cleanup"),
	}
}

// Run sweeps on a ticker until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Error(ctx, "sweep finished with errors", "purged", purged, "error", err.Error())
			} else if purged > 0 {
				s.logger.Info(ctx, "sweep complete", "purged", purged)
			}
		}
	}
}

// Sweep purges one batch of expired shares and returns how many were fully
// removed. A failing key is logged and skipped; its row stays so the next
// sweep retries it. The last error encountered is returned.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	expired, err := s.files.SelectExpired(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	purged := 0
	var lastErr error
	for _, f := range expired {
		if err := s.purger.Purge(ctx, s.bucket, f.StorageKey); err != nil {
			s.logger.Error(ctx, "purge failed, keeping row for retry", "key", f.StorageKey, "error", err.Error())
			lastErr = err
			continue
		}
		if err := s.files.DeleteByID(ctx, f.ID); err != nil {
			s.logger.Error(ctx, "row delete failed after purge", "id", f.ID, "error", err.Error())
			lastErr = err
			continue
		}
		purged++
	}

	return purged, lastErr
}

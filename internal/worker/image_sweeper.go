package worker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/infrastructure/gridfs"
	"github.com/aryan0dhankhar/rentaladmin/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentaladmin/internal/reliability/retry"
)

// ObjectSweeper lists and removes stored objects
type ObjectSweeper interface {
	ListOlderThan(ctx context.Context, bucket string, cutoff time.Time) ([]gridfs.StoredObject, error)
	Delete(ctx context.Context, bucket, path string) error
}

// PropertyIndex reports which property ids still exist
type PropertyIndex interface {
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

// ImageSweeper periodically deletes property images whose property row
// never committed or was deleted. Images are uploaded before the property
// transaction, so a failed create leaves them behind.
type ImageSweeper struct {
	objects    ObjectSweeper
	properties PropertyIndex
	bucket     string
	grace      time.Duration
	interval   time.Duration
	retry      *retry.Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewImageSweeper creates a sweeper for bucket. Objects younger than grace
// are left alone so in-flight creates are never touched.
func NewImageSweeper(
	objects ObjectSweeper,
	properties PropertyIndex,
	bucket string,
	grace time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *ImageSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageSweeper{
		objects:    objects,
		properties: properties,
		bucket:     bucket,
		grace:      grace,
		interval:   interval,
		retry:      retry.DefaultConfig(),
		logger:     logger,
		now:        time.Now,
	}
}

// Start runs Sweep every interval until ctx is cancelled
func (w *ImageSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("image sweeper started",
		slog.Duration("interval", w.interval),
		slog.Duration("grace", w.grace),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("image sweeper stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns how many objects it deleted
func (w *ImageSweeper) Sweep(ctx context.Context) int {
	objects, err := w.objects.ListOlderThan(ctx, w.bucket, w.now().Add(-w.grace))
	if err != nil {
		w.logger.Error("failed to list stored images", slog.String("error", err.Error()))
		return 0
	}
	if len(objects) == 0 {
		return 0
	}

	byProperty := make(map[string][]string)
	ids := make([]string, 0, len(objects))
	for _, o := range objects {
		id, _, ok := strings.Cut(o.Path, "/")
		if !ok || id == "" {
			continue
		}
		if _, seen := byProperty[id]; !seen {
			ids = append(ids, id)
		}
		byProperty[id] = append(byProperty[id], o.Path)
	}

	existing, err := w.properties.ExistingIDs(ctx, ids)
	if err != nil {
		w.logger.Error("failed to check property ids", slog.String("error", err.Error()))
		return 0
	}

	deleted := 0
	for _, id := range ids {
		if existing[id] {
			continue
		}
		for _, path := range byProperty[id] {
			logger := w.logger.With(slog.String("path", path))
			_, err := retry.Do(ctx, w.retry, logger, "delete orphaned image", func(ctx context.Context) (struct{}, error) {
				return struct{}{}, w.objects.Delete(ctx, w.bucket, path)
			})
			if err != nil {
				logger.Error("failed to delete orphaned image", slog.String("error", err.Error()))
				metrics.ObserveOrphanSweep("error")
				continue
			}
			logger.Info("deleted orphaned image", slog.String("property_id", id))
			metrics.ObserveOrphanSweep("deleted")
			deleted++
		}
	}
	return deleted
}

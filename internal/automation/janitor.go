package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"whatsapp-assistant/internal/metrics"

	"github.com/robfig/cron/v3"
)

type PositionPruner interface {
	PruneStalePositions(ctx context.Context, before time.Time) (int64, error)
}

// PositionJanitor resets contacts idle in a submenu for longer than ttl back
// to the root menu.
type PositionJanitor struct {
	store    PositionPruner
	ttl      time.Duration
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
	now      func() time.Time
}

func NewPositionJanitor(store PositionPruner, ttl time.Duration, schedule string, logger *slog.Logger) *PositionJanitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PositionJanitor{
		store:    store,
		ttl:      ttl,
		schedule: schedule,
		logger:   logger.With("component", "position_janitor"),
		now:      time.Now,
	}
}

// Start registers the sweep on the cron schedule. A non-positive ttl
// disables the janitor.
func (j *PositionJanitor) Start() error {
	if j.ttl <= 0 {
		j.logger.Info("position expiry disabled")
		return nil
	}
	j.cron = cron.New()
	if _, err := j.cron.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := j.Sweep(ctx); err != nil {
			j.logger.Error("position sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", j.schedule, err)
	}
	j.cron.Start()
	j.logger.Info("position janitor started", "schedule", j.schedule, "ttl", j.ttl.String())
	return nil
}

// Stop waits for a running sweep to finish.
func (j *PositionJanitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

func (j *PositionJanitor) Sweep(ctx context.Context) (int64, error) {
	n, err := j.store.PruneStalePositions(ctx, j.now().Add(-j.ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.PositionsPruned.Add(float64(n))
		j.logger.Info("idle positions reset", "count", n)
	}
	return n, nil
}

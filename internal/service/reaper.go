package service

import (
	"context"
	"time"

	"github.com/dtroode/cardbook-server/internal/logger"
)

// Purger drops expired entries.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}

// PurgeMetrics counts purged entries.
type PurgeMetrics interface {
	RevocationPurged(n int)
}

// Reaper periodically purges expired revocation entries.
type Reaper struct {
	store    Purger
	interval time.Duration
	metrics  PurgeMetrics
	logger   *logger.Logger
}

// NewReaper creates a Reaper. metrics may be nil.
func NewReaper(store Purger, interval time.Duration, metrics PurgeMetrics, logger *logger.Logger) *Reaper {
	return &Reaper{
		store:    store,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run purges every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Reaper: started", "interval", r.interval.String())

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reaper: stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one purge and reports how many entries were dropped.
func (r *Reaper) Sweep(ctx context.Context) int {
	n, err := r.store.Purge(ctx)
	if err != nil {
		r.logger.Error("Reaper: failed to purge revocations", "error", err.Error())
		return 0
	}

	if n > 0 {
		r.logger.Debug("Reaper: purged revocations", "count", n)
	}
	if r.metrics != nil {
		r.metrics.RevocationPurged(n)
	}

	return n
}

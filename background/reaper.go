// Package background provides background processing for peerdiffx.
package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Purger removes expired locks and exports. *vcs.Service implements it.
type Purger interface {
	Reap() (locks, exports int64, err error)
}

// Reaper periodically purges expired locks and exports.
type Reaper struct {
	purger   Purger
	log      *slog.Logger
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewReaper creates a reaper that runs every interval.
func NewReaper(p Purger, interval time.Duration, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		purger:   p,
		log:      logger,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the background loop.
func (r *Reaper) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop signals the reaper to stop and waits for the loop to exit.
// It must only be called after Start.
func (r *Reaper) Stop() {
	r.once.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Reaper) run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.reapOnce()
		}
	}
}

func (r *Reaper) reapOnce() {
	locks, exports, err := r.purger.Reap()
	if err != nil {
		r.log.Error("reaping expired entries", "error", err)
		return
	}
	if locks > 0 || exports > 0 {
		r.log.Info("reaped expired entries", "locks", locks, "exports", exports)
	}
}

package worker

import (
	"context"
	"sync"
	"time"

	"storefront/internal/util"

	"go.uber.org/zap"
)

// Evictor drops idle browsing contexts.
type Evictor interface {
	EvictIdle(ctx context.Context, idleAfter time.Duration) int
}

// Purger deletes expired persisted sessions.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Janitor periodically evicts idle browsing contexts and purges expired
// sessions from the persistent backend.
type Janitor struct {
	contexts  Evictor
	sessions  Purger
	interval  time.Duration
	idleAfter time.Duration
	logger    *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewJanitor creates a new janitor. sessions may be nil when the backend
// expires entries on its own.
func NewJanitor(contexts Evictor, sessions Purger, interval, idleAfter time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{
		contexts:  contexts,
		sessions:  sessions,
		interval:  interval,
		idleAfter: idleAfter,
		logger:    util.GetLogger(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the janitor until ctx is cancelled or Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	j.logger.Info("Starting session janitor",
		zap.Duration("interval", j.interval),
		zap.Duration("idle_after", j.idleAfter))
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-j.stop:
			return nil
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one cleanup pass.
func (j *Janitor) Sweep(ctx context.Context) {
	if j.idleAfter > 0 {
		if n := j.contexts.EvictIdle(ctx, j.idleAfter); n > 0 {
			j.logger.Info("Evicted idle browsing contexts", zap.Int("count", n))
		}
	}

	if j.sessions == nil {
		return
	}
	n, err := j.sessions.PurgeExpired(ctx)
	if err != nil {
		j.logger.Error("Failed to purge expired sessions", zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("Purged expired sessions", zap.Int64("count", n))
	}
}

// Stop stops the janitor and waits for Start to return
func (j *Janitor) Stop() {
	j.logger.Info("Stopping session janitor")
	j.stopOnce.Do(func() { close(j.stop) })
	<-j.done
}

package domaincache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is how often expired entries are removed when no
// interval is configured.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically removes expired entries from every store in a
// Registry, whether or not those entries are ever read again.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper returns a stopped Sweeper. A non-positive interval selects
// DefaultSweepInterval.
func NewSweeper(registry *Registry, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		registry: registry,
		interval: interval,
		logger:   logger,
	}
}

// Interval returns the sweep period.
func (s *Sweeper) Interval() time.Duration { return s.interval }

// Start launches the sweep loop. It is a no-op if the sweeper already runs.
// The loop ends when ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
	s.logger.Info("cache sweeper started", zap.Duration("interval", s.interval))
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce()
		}
	}
}

// Stop ends the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("cache sweeper stopped")
}

// RunOnce performs a single sweep and returns the removed count per domain.
func (s *Sweeper) RunOnce() map[Domain]int {
	removed := s.registry.CleanupExpired()

	total := 0
	fields := make([]zap.Field, 0, len(removed)+1)
	for _, d := range allDomains {
		total += removed[d]
		fields = append(fields, zap.Int(string(d), removed[d]))
	}
	fields = append(fields, zap.Int("total", total))

	if total > 0 {
		s.logger.Info("expired cache entries removed", fields...)
	} else {
		s.logger.Debug("cache sweep found nothing to remove", fields...)
	}
	return removed
}

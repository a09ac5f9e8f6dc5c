package device

import (
	"context"
	"time"
)

// Sweeper defaults, matching deployed behaviour.
const (
	DefaultSweepInterval     = 10 * time.Second
	DefaultInactivityTimeout = 5 * time.Minute
)

// Sweeper periodically evicts devices that have gone quiet.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	timeout  time.Duration
	onEvict  func(removed []Record)
	logger   Logger
}

// NewSweeper creates a sweeper over registry. onEvict is called after a
// sweep that removed at least one record, never for an empty sweep.
// Non-positive durations fall back to the defaults.
func NewSweeper(registry *Registry, interval, timeout time.Duration, onEvict func(removed []Record)) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if timeout <= 0 {
		timeout = DefaultInactivityTimeout
	}
	return &Sweeper{
		registry: registry,
		interval: interval,
		timeout:  timeout,
		onEvict:  onEvict,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the sweeper.
func (s *Sweeper) SetLogger(logger Logger) {
	s.logger = logger
}

// Timeout returns the configured inactivity timeout.
func (s *Sweeper) Timeout() time.Duration {
	return s.timeout
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("eviction sweeper started", "interval", s.interval, "timeout", s.timeout)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep performs one eviction pass and returns what was removed.
func (s *Sweeper) Sweep() []Record {
	removed := s.registry.EvictStale(s.registry.Now(), s.timeout)
	if len(removed) == 0 {
		return nil
	}

	for _, rec := range removed {
		s.logger.Info("device evicted after inactivity",
			"key", rec.Key().String(),
			"last_seen", rec.LastSeen,
		)
	}
	if s.onEvict != nil {
		s.onEvict(removed)
	}
	return removed
}

package editguard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"editguard/pkg/guard"
)

const (
	defaultSweepInterval = 24 * time.Hour
	defaultRetention     = 7 * 24 * time.Hour
)

// Sweeper periodically purges ledger records older than the retention horizon.
//
// A failed sweep is logged and retried on the next tick; it never stops the
// loop.
type Sweeper struct {
	ledger    guard.Ledger
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	clock     func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewSweeper creates a retention sweeper over the ledger.
func NewSweeper(
	ledger guard.Ledger,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
) (*Sweeper, error) {
	if ledger == nil {
		return nil, fmt.Errorf("new sweeper: nil ledger")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if retention <= 0 {
		retention = defaultRetention
	}

	return &Sweeper{
		ledger:    ledger,
		logger:    logger,
		interval:  interval,
		retention: retention,
		clock:     time.Now,
	}, nil
}

// Start launches the sweep loop. It returns immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("start sweeper: already started")
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	go s.run(loopCtx)

	return nil
}

// Stop cancels the sweep loop and waits for it to exit.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	done := s.done
	s.started = false
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop sweeper: %w", ctx.Err())
	}
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := s.clock().UTC().Add(-s.retention)

	removed, err := s.ledger.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.WarnContext(ctx,
			"retention sweep failed, retrying next interval",
			"cutoff", cutoff,
			"error", err,
		)
		return
	}

	s.logger.InfoContext(ctx,
		"retention sweep completed",
		"cutoff", cutoff,
		"removed", removed,
	)
}

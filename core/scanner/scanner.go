package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/pkg/logger"
	"github.com/veil-network/pool-scanner/pkg/logger/slogx"
)

const defaultScanInterval = 60 * time.Second

// Worker is a long-running module started by the run command.
type Worker interface {
	Run(ctx context.Context) error
}

// Passer performs one full scan pass when the scanner ticks.
type Passer interface {
	Name() string

	// Pass runs a single scan pass over every configured scope.
	Pass(ctx context.Context) error

	// Interval is the delay between passes. Zero means the default.
	Interval() time.Duration

	Shutdown(ctx context.Context) error
}

// Scanner drives a Passer on a fixed interval until stopped.
type Scanner struct {
	Passer Passer

	quitOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

func New(passer Passer) *Scanner {
	return &Scanner{
		Passer: passer,

		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (s *Scanner) Shutdown() error {
	return s.ShutdownWithContext(context.Background())
}

func (s *Scanner) ShutdownWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.ShutdownWithContext(ctx)
}

func (s *Scanner) ShutdownWithContext(ctx context.Context) (err error) {
	s.quitOnce.Do(func() {
		close(s.quit)
		select {
		case <-s.done:
		case <-time.After(180 * time.Second):
			err = errors.Wrap(errs.Timeout, "scanner shutdown timeout")
		case <-ctx.Done():
			err = errors.Wrap(ctx.Err(), "scanner shutdown context canceled")
		}
	})
	return
}

func (s *Scanner) Run(ctx context.Context) (err error) {
	defer close(s.done)

	ctx = logger.WithContext(ctx,
		slogx.String("package", "scanner"),
		slogx.String("passer", s.Passer.Name()),
	)

	interval := s.Passer.Interval()
	if interval <= 0 {
		interval = defaultScanInterval
	}

	// first pass runs immediately, then on every tick
	if err := s.Passer.Pass(ctx); err != nil {
		logger.ErrorContext(ctx, "Scanner failed while processing", slogx.Error(err))
		return errors.Wrap(err, "pass failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			logger.InfoContext(ctx, "Got quit signal, stopping scanner")
			if err := s.Passer.Shutdown(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown passer", slogx.Error(err))
				return errors.Wrap(err, "passer shutdown failed")
			}
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Passer.Pass(ctx); err != nil {
				logger.ErrorContext(ctx, "Scanner failed while processing", slogx.Error(err))
				return errors.Wrap(err, "pass failed")
			}
			logger.DebugContext(ctx, "Waiting for next scan interval")
		}
	}
}

package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often the worker runs a recovery scan.
const DefaultSweepInterval = time.Minute

// Sweeper runs Scan on a fixed interval until its context ends.
type Sweeper struct {
	scanner  *Scanner
	interval time.Duration
	logger   zerolog.Logger
}

// NewSweeper builds a Sweeper. A non-positive interval uses DefaultSweepInterval.
func NewSweeper(scanner *Scanner, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{scanner: scanner, interval: interval, logger: logger}
}

// Run scans once immediately and then on every tick. Scan errors are logged
// and never stop the loop.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("sweeper: started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.scanner.Scan(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("sweeper: scan failed")
		}
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper: stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

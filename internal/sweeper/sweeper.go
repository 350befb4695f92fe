// Package sweeper periodically purges messages past their self-destruct
// time. It is the only authoritative deletion path for read messages;
// clients merely hide them locally once their clock passes expiresAt.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sathvikchoudar61/EduStealth/internal/metrics"
	"github.com/sathvikchoudar61/EduStealth/internal/models"
	"github.com/sathvikchoudar61/EduStealth/internal/store"
)

// Purger drives the coordinator's purge transition for one expired message.
type Purger interface {
	Purge(ctx context.Context, msg models.Message) error
}

// Sweeper runs a recurring expiry sweep. Ticks are serialized by running
// the loop in a single goroutine, so a slow sweep coalesces missed ticks
// instead of overlapping with the next one.
type Sweeper struct {
	store    store.MessageStore
	purger   Purger
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates a sweeper with the given interval.
func New(st store.MessageStore, purger Purger, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:    st,
		purger:   purger,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled. Sweep failures are
// logged and retried on the next tick; they never stop the loop.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("expiry sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("expiry sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				metrics.SweepErrors.Inc()
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// Sweep performs one pass: find everything past its self-destruct time and
// drive each through the purge transition. A failure on one message does
// not abort the rest; the first error is reported after the pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	expired, err := s.store.FindExpired(ctx, s.now().UTC())
	if err != nil {
		return err
	}

	var firstErr error
	purged := 0
	for _, msg := range expired {
		if err := s.purger.Purge(ctx, msg); err != nil {
			s.logger.Error().Err(err).Str("message_id", msg.ID).Msg("purge failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		purged++
	}

	if purged > 0 {
		s.logger.Info().Int("purged", purged).Msg("purged expired messages")
	}
	return firstErr
}

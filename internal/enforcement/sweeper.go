package enforcement

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"haven/internal/database/sqlitestore"
	"haven/internal/metrics"
	"haven/internal/tracing"
)

// DefaultSweepBatchSize bounds how many rows one sweep statement touches
const DefaultSweepBatchSize = 500

// Sweeper deactivates warnings and restrictions whose expiry has passed.
// It runs outside any content transaction and selects rows with a
// conditional predicate, so overlapping runs are safe and a second run in
// the same instant touches zero rows. Rows with a null expiry are permanent
// and never swept.
type Sweeper struct {
	store     *sqlitestore.Store
	interval  time.Duration
	batchSize int
}

// NewSweeper creates an expiry sweeper running at the given interval
func NewSweeper(store *sqlitestore.Store, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		interval:  interval,
		batchSize: DefaultSweepBatchSize,
	}
}

// Run sweeps on a fixed cadence until the context is cancelled. A failed
// run is logged and retried on the next tick; it cannot leave rows in an
// inconsistent state since the sweep only flips is_active conditionally.
func (s *Sweeper) Run(ctx context.Context) error {
	log.Info().Dur("interval", s.interval).Msg("expiry sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("expiry sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				log.Error().Err(err).Msg("expiry sweep failed")
				metrics.SweepRunsTotal.WithLabelValues("error").Inc()
				continue
			}
			metrics.SweepRunsTotal.WithLabelValues("ok").Inc()
		}
	}
}

// SweepOnce runs one full sweep across both tables and returns the total
// number of rows deactivated.
func (s *Sweeper) SweepOnce(ctx context.Context) (total int64, err error) {
	ctx, span := tracing.SweepSpan(ctx, "enforcement_expiry")
	defer func() {
		tracing.EndWithError(span, err)
		span.End()
	}()

	start := time.Now()
	now := sqlitestore.FormatTime(start)

	warnings, err := s.sweepTable(ctx, "user_warnings", now)
	if err != nil {
		return warnings, fmt.Errorf("sweep warnings: %w", err)
	}
	restrictions, err := s.sweepTable(ctx, "user_restrictions", now)
	if err != nil {
		return warnings + restrictions, fmt.Errorf("sweep restrictions: %w", err)
	}

	metrics.SweptRowsTotal.WithLabelValues("warning").Add(float64(warnings))
	metrics.SweptRowsTotal.WithLabelValues("restriction").Add(float64(restrictions))
	metrics.SweepDuration.Observe(time.Since(start).Seconds())

	if warnings+restrictions > 0 {
		log.Info().
			Int64("warnings", warnings).
			Int64("restrictions", restrictions).
			Msg("expired enforcement records deactivated")
	}
	return warnings + restrictions, nil
}

// sweepTable expires rows in batches so a large backlog does not hold the
// database for one long statement. A failed batch leaves earlier batches
// committed; the remainder is picked up on the next run.
func (s *Sweeper) sweepTable(ctx context.Context, table, now string) (int64, error) {
	var total int64
	for {
		res, err := s.store.DB().ExecContext(ctx, `
			UPDATE `+table+` SET is_active = 0
			WHERE id IN (
				SELECT id FROM `+table+`
				WHERE is_active = 1 AND expires_at IS NOT NULL AND expires_at < ?
				LIMIT ?
			)
		`, now, s.batchSize)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(s.batchSize) {
			return total, nil
		}
	}
}

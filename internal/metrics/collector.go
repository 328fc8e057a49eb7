package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsSource provides functions to retrieve current counts for gauge metrics.
// A nil function leaves its gauge untouched.
type StatsSource struct {
	PendingReports     func() int
	ActiveWarnings     func() int
	ActiveRestrictions func() int
	StagedReactions    func() int
}

// StartCollector launches a goroutine that periodically updates gauge metrics.
// It runs every interval until the context is cancelled.
func StartCollector(ctx context.Context, src StatsSource, interval time.Duration) {
	// Do an initial collection immediately
	collect(src)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect(src)
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("Metrics collector started")
}

func collect(src StatsSource) {
	if src.PendingReports != nil {
		PendingReportsGauge.Set(float64(src.PendingReports()))
	}
	if src.ActiveWarnings != nil {
		ActiveWarningsGauge.Set(float64(src.ActiveWarnings()))
	}
	if src.ActiveRestrictions != nil {
		ActiveRestrictionsGauge.Set(float64(src.ActiveRestrictions()))
	}
	if src.StagedReactions != nil {
		StagedReactionsGauge.Set(float64(src.StagedReactions()))
	}
}

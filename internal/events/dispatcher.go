// Package events binds the counter maintainer and the notification engine
// to content events. The storage layer calls Dispatch* inside the
// transaction of the triggering write; a failure in any consumer aborts the
// whole transaction, so side effects and the original mutation commit or
// roll back together.
package events

import (
	"context"
	"database/sql"

	"haven/internal/counters"
	"haven/internal/metrics"
	"haven/internal/models"
	"haven/internal/notify"
	"haven/internal/tracing"
)

// Dispatcher routes content events to their synchronous consumers
type Dispatcher struct {
	counters *counters.Maintainer
	notify   *notify.Engine
}

// NewDispatcher creates a dispatcher over the given consumers
func NewDispatcher(c *counters.Maintainer, n *notify.Engine) *Dispatcher {
	return &Dispatcher{counters: c, notify: n}
}

// PostCreated handles a post insertion: nesting validation, thread counters,
// then the reply notification.
func (d *Dispatcher) PostCreated(ctx context.Context, tx *sql.Tx, ev models.PostCreated) error {
	return d.dispatch(ctx, "post_created", ev.PostID, func(ctx context.Context) error {
		if err := d.counters.PostCreated(ctx, tx, ev); err != nil {
			return err
		}
		return d.notify.ReplyCreated(ctx, tx, ev)
	})
}

// PostEdited handles a content change: word count recompute and edit history
func (d *Dispatcher) PostEdited(ctx context.Context, tx *sql.Tx, ev models.PostEdited) error {
	return d.dispatch(ctx, "post_edited", ev.PostID, func(ctx context.Context) error {
		return d.counters.PostEdited(ctx, tx, ev)
	})
}

// PostDeleted handles a soft delete: thread counter reversal
func (d *Dispatcher) PostDeleted(ctx context.Context, tx *sql.Tx, ev models.PostDeleted) error {
	return d.dispatch(ctx, "post_deleted", ev.PostID, func(ctx context.Context) error {
		return d.counters.PostDeleted(ctx, tx, ev)
	})
}

// ReactionAdded handles a new reaction: uniqueness, counters, reputation,
// and batch staging.
func (d *Dispatcher) ReactionAdded(ctx context.Context, tx *sql.Tx, ev models.ReactionAdded) error {
	return d.dispatch(ctx, "reaction_added", ev.PostID, func(ctx context.Context) error {
		if err := d.counters.ReactionAdded(ctx, tx, ev); err != nil {
			return err
		}
		return d.notify.ReactionAdded(ctx, tx, ev)
	})
}

// ReactionRemoved handles a reaction removal: counter and reputation
// reversal, and withdrawal of any unflushed batch entry.
func (d *Dispatcher) ReactionRemoved(ctx context.Context, tx *sql.Tx, ev models.ReactionRemoved) error {
	return d.dispatch(ctx, "reaction_removed", ev.PostID, func(ctx context.Context) error {
		if err := d.counters.ReactionRemoved(ctx, tx, ev); err != nil {
			return err
		}
		return d.notify.ReactionRemoved(ctx, tx, ev)
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, event, subjectID string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.EventSpan(ctx, event, subjectID)
	defer span.End()

	if err := fn(ctx); err != nil {
		tracing.EndWithError(span, err)
		metrics.ContentEventErrorsTotal.WithLabelValues(event).Inc()
		return err
	}
	metrics.ContentEventsTotal.WithLabelValues(event).Inc()
	return nil
}

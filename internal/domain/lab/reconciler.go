package lab

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OrderCompleter persists the promotion of a single order to COMPLETED.
type OrderCompleter interface {
	MarkCompleted(ctx context.Context, orderID uuid.UUID, completedAt time.Time) error
}

// Reconciler brings order-level status in line with the true state of
// each order's tests: an order whose tests are all individually
// completed with a recorded result is promoted to COMPLETED and stamped
// with a completion time.
type Reconciler struct {
	completer OrderCompleter
	logger    zerolog.Logger
	now       func() time.Time
}

func NewReconciler(completer OrderCompleter, logger zerolog.Logger) *Reconciler {
	return &Reconciler{completer: completer, logger: logger, now: time.Now}
}

// ReconcileReport summarises one reconciliation run.
type ReconcileReport struct {
	Scanned  int                  `json:"scanned"`
	Promoted []uuid.UUID          `json:"promoted"`
	Failed   map[uuid.UUID]string `json:"failed,omitempty"`
}

// AllComplete reports whether every test on the order is COMPLETED with
// a recorded result. An order with zero tests has nothing to reconcile
// and is never considered complete. Test-level CANCELLED does not count
// as complete, so orders whose tests were all individually cancelled
// stay pending.
func AllComplete(o *LabOrder) bool {
	if len(o.Tests) == 0 {
		return false
	}
	for _, t := range o.Tests {
		if t.Status != TestCompleted || !t.HasResult() {
			return false
		}
	}
	return true
}

// Run scans the given orders and promotes every eligible one. Orders
// already COMPLETED or CANCELLED are never touched. Persistence
// failures are recorded per order and do not stop the run, so one bad
// record cannot silently abort the rest. Re-running after all eligible
// orders have been promoted finds zero candidates.
func (r *Reconciler) Run(ctx context.Context, orders []*LabOrder) ReconcileReport {
	report := ReconcileReport{Failed: make(map[uuid.UUID]string)}

	for _, o := range orders {
		if o.Status.Terminal() {
			continue
		}
		report.Scanned++
		if !AllComplete(o) {
			continue
		}

		completedAt := r.now()
		if err := r.completer.MarkCompleted(ctx, o.ID, completedAt); err != nil {
			report.Failed[o.ID] = err.Error()
			r.logger.Error().Err(err).
				Str("order_id", o.ID.String()).
				Str("order_number", o.OrderNumber).
				Msg("failed to promote order")
			continue
		}

		o.Status = OrderCompleted
		o.CompletedAt = &completedAt
		report.Promoted = append(report.Promoted, o.ID)
		r.logger.Info().
			Str("order_id", o.ID.String()).
			Str("order_number", o.OrderNumber).
			Int("tests", len(o.Tests)).
			Msg("order promoted to COMPLETED")
	}

	return report
}

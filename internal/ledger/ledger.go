// Package ledger provides the idempotent order state store keyed by
// merchant transaction id.
package ledger

import (
	"context"

	"github.com/benx421/payment-reconciler/internal/models"
)

// Ledger is the order state store. Implementations must serialize
// concurrent mutations per merchant transaction id; operations on
// different ids are independent.
type Ledger interface {
	// Create inserts a new PENDING order. Returns
	// models.ErrDuplicateTransaction if the id already exists.
	Create(ctx context.Context, req *models.PaymentRequest, result *models.GatewayResult) (*models.Order, error)

	// ApplyOutcome applies an authenticated payment outcome to the order
	// it references. Idempotent: re-applying an outcome that maps to the
	// order's current terminal status is a no-op. An outcome that would
	// flip one terminal status to the other is rejected with
	// models.ErrConflictingOutcome (alongside the unchanged order) and
	// recorded for audit. Returns models.ErrOrderNotFound if no order
	// exists for the outcome's transaction id.
	ApplyOutcome(ctx context.Context, outcome models.PaymentOutcome) (*models.Order, error)

	// Get returns the order for the given merchant transaction id or
	// models.ErrOrderNotFound.
	Get(ctx context.Context, merchantTransactionID string) (*models.Order, error)

	// List returns all orders, oldest first.
	List(ctx context.Context) ([]*models.Order, error)
}

// transition classifies what an incoming outcome does to an order
type transition int

const (
	// transitionApply writes the incoming status to a PENDING order
	transitionApply transition = iota
	// transitionRefresh leaves a PENDING order PENDING, touching only
	// the timestamp and last observed code
	transitionRefresh
	// transitionNoop leaves the order untouched (duplicate terminal
	// outcome, or a stale PENDING observation after a terminal result)
	transitionNoop
	// transitionConflict rejects a terminal-to-different-terminal flip
	transitionConflict
)

// decide is the single transition function both ledger implementations
// share. First terminal result wins; PENDING observations never downgrade
// a terminal order.
func decide(current, incoming models.OrderStatus) transition {
	if !current.Terminal() {
		if incoming == models.OrderStatusPending {
			return transitionRefresh
		}
		return transitionApply
	}

	if incoming == current || incoming == models.OrderStatusPending {
		return transitionNoop
	}

	return transitionConflict
}

package models

import "errors"

// Domain errors shared across the ledger, gateway client and protocol
var (
	// ErrDuplicateTransaction indicates an order with the same merchant
	// transaction id already exists
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrOrderNotFound indicates the referenced order does not exist
	ErrOrderNotFound = errors.New("order not found")

	// ErrConflictingOutcome indicates an outcome tried to move a terminal
	// order to a different terminal status; the first result is kept
	ErrConflictingOutcome = errors.New("conflicting terminal outcome")

	// ErrGatewayUnavailable indicates the gateway could not be reached or
	// returned an unparseable response. Never a payment outcome.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
)

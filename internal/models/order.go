package models

import (
	"time"
)

// OrderStatus represents the reconciliation state of an order
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusPaid    OrderStatus = "PAID"
	OrderStatusFailed  OrderStatus = "FAILED"
)

// Terminal reports whether the status permits no further transition
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusPaid || s == OrderStatusFailed
}

// Order represents a merchant order and its reconciled payment state.
// Owned exclusively by the ledger; mutated only through an accepted
// PaymentOutcome.
type Order struct {
	CreatedAt             time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at" db:"updated_at"`
	MerchantTransactionID string      `json:"merchant_transaction_id" db:"merchant_transaction_id"`
	CustomerName          string      `json:"customer_name" db:"customer_name"`
	CustomerEmail         string      `json:"customer_email" db:"customer_email"`
	CustomerPhone         string      `json:"customer_phone" db:"customer_phone"`
	GatewayTransactionID  string      `json:"gateway_transaction_id" db:"gateway_transaction_id"`
	LastOutcomeCode       string      `json:"last_outcome_code" db:"last_outcome_code"`
	Status                OrderStatus `json:"status" db:"status"`
	AmountMinorUnits      int64       `json:"amount_minor_units" db:"amount_minor_units"`
}

// PaymentRequest carries everything needed to initiate a payment with the
// gateway. Constructed once per order; the amount is already converted to
// the currency's smallest unit.
type PaymentRequest struct {
	MerchantID            string
	MerchantTransactionID string
	MerchantUserID        string
	AmountMinorUnits      int64
	CallbackURL           string
	RedirectURL           string
	InstrumentType        string
	CustomerName          string
	CustomerEmail         string
	CustomerPhone         string
}

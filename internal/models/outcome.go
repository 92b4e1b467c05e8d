package models

import "time"

// Gateway status codes shared by callback payloads and status-query
// responses. The mapping to an OrderStatus is total: anything not listed
// here resolves to FAILED.
const (
	CodePaymentSuccess     = "PAYMENT_SUCCESS"
	CodePaymentPending     = "PAYMENT_PENDING"
	CodePaymentError       = "PAYMENT_ERROR"
	CodePaymentDeclined    = "PAYMENT_DECLINED"
	CodeVerificationFailed = "VERIFICATION_FAILED"
)

// OutcomeSource identifies which reconciliation path produced an outcome
type OutcomeSource string

const (
	OutcomeSourceCallback OutcomeSource = "CALLBACK"
	OutcomeSourcePoll     OutcomeSource = "POLL"
)

// PaymentOutcome is a single authenticated observation of a transaction's
// status, produced by either the push or the pull path. Immutable once
// constructed.
type PaymentOutcome struct {
	ObservedAt            time.Time     `json:"observed_at"`
	MerchantTransactionID string        `json:"merchant_transaction_id"`
	Code                  string        `json:"code"`
	GatewayTransactionID  string        `json:"gateway_transaction_id"`
	Source                OutcomeSource `json:"source"`
}

// Status maps the gateway code carried by the outcome onto an order status.
// Unknown codes fail closed to FAILED, never PAID.
func (o PaymentOutcome) Status() OrderStatus {
	switch o.Code {
	case CodePaymentSuccess:
		return OrderStatusPaid
	case CodePaymentPending:
		return OrderStatusPending
	default:
		return OrderStatusFailed
	}
}

// GatewayResult is the normalized shape of any gateway response
type GatewayResult struct {
	Raw                  map[string]any
	Code                 string
	Message              string
	RedirectURL          string
	GatewayTransactionID string
	Success              bool
}

// OutcomeConflict records an outcome that disagreed with an order's earlier
// terminal result. Kept for manual audit; never applied to the order.
type OutcomeConflict struct {
	ObservedAt            time.Time     `json:"observed_at"`
	MerchantTransactionID string        `json:"merchant_transaction_id"`
	ExistingStatus        OrderStatus   `json:"existing_status"`
	AttemptedStatus       OrderStatus   `json:"attempted_status"`
	Code                  string        `json:"code"`
	Source                OutcomeSource `json:"source"`
}

// Package service implements the merchant-facing checkout flow: order
// creation and payment initiation against the gateway.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/benx421/payment-reconciler/internal/ledger"
	"github.com/benx421/payment-reconciler/internal/models"
)

// Initiator starts a payment with the gateway
type Initiator interface {
	Initiate(ctx context.Context, req *models.PaymentRequest) (*models.GatewayResult, error)
}

// Notifier receives order snapshots after ledger mutations
type Notifier interface {
	Notify(record *models.Order)
}

// CheckoutService creates orders and initiates payments
type CheckoutService struct {
	ledger  ledger.Ledger
	gateway Initiator
	sinks   Notifier
	logger  *slog.Logger
}

// NewCheckoutService creates a new CheckoutService
func NewCheckoutService(l ledger.Ledger, gateway Initiator, sinks Notifier, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		ledger:  l,
		gateway: gateway,
		sinks:   sinks,
		logger:  logger,
	}
}

// CheckoutInput is the merchant-side request to start a payment. Amount is
// a decimal currency string, e.g. "499.00".
type CheckoutInput struct {
	Name   string
	Email  string
	Phone  string
	Amount string
}

// CheckoutResult is a successfully initiated payment
type CheckoutResult struct {
	Order       *models.Order
	RedirectURL string
}

// Checkout validates the input, initiates a payment with the gateway and
// records the order PENDING in the ledger.
func (s *CheckoutService) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if err := ValidateCustomer(input.Name, input.Email); err != nil {
		return nil, &ServiceError{Code: ErrCodeInvalidCustomer, Message: err.Error()}
	}

	amount, err := AmountToMinorUnits(input.Amount)
	if err != nil {
		return nil, &ServiceError{Code: ErrCodeInvalidAmount, Message: err.Error()}
	}

	req := &models.PaymentRequest{
		MerchantTransactionID: "TXN-" + uuid.New().String(),
		MerchantUserID:        "USER-" + uuid.New().String(),
		AmountMinorUnits:      amount,
		CustomerName:          input.Name,
		CustomerEmail:         input.Email,
		CustomerPhone:         input.Phone,
	}

	result, err := s.gateway.Initiate(ctx, req)
	if err != nil {
		if errors.Is(err, models.ErrGatewayUnavailable) {
			return nil, &ServiceError{
				Code:    ErrCodeGatewayUnavailable,
				Message: "payment gateway is unavailable",
				Err:     err,
			}
		}
		return nil, &ServiceError{Code: ErrCodeInternalError, Message: "failed to initiate payment", Err: err}
	}

	if !result.Success || result.RedirectURL == "" {
		s.logger.Warn("gateway rejected payment initiation",
			"merchant_transaction_id", req.MerchantTransactionID,
			"code", result.Code,
			"message", result.Message,
		)
		return nil, &ServiceError{
			Code:    ErrCodeGatewayRejected,
			Message: "gateway rejected the payment: " + result.Code,
		}
	}

	order, err := s.ledger.Create(ctx, req, result)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateTransaction) {
			return nil, &ServiceError{Code: ErrCodeDuplicateTransaction, Message: "transaction id already exists"}
		}
		return nil, &ServiceError{Code: ErrCodeInternalError, Message: "failed to record order", Err: err}
	}

	s.sinks.Notify(order)

	s.logger.Info("order created",
		"merchant_transaction_id", order.MerchantTransactionID,
		"amount_minor_units", order.AmountMinorUnits,
	)

	return &CheckoutResult{Order: order, RedirectURL: result.RedirectURL}, nil
}

// Status returns the ledger's current record for a transaction id
func (s *CheckoutService) Status(ctx context.Context, merchantTransactionID string) (*models.Order, error) {
	return s.ledger.Get(ctx, merchantTransactionID)
}

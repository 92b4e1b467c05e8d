// Package reconcile implements the dual-path status-resolution protocol:
// authenticated gateway callbacks (push) and browser redirects that trigger
// an active status query (pull) both converge on the order ledger.
package reconcile

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/benx421/payment-reconciler/internal/ledger"
	"github.com/benx421/payment-reconciler/internal/models"
)

// StatusQuerier re-derives a transaction's status from the gateway
type StatusQuerier interface {
	QueryStatus(ctx context.Context, merchantTransactionID string) (*models.GatewayResult, error)
}

// Verifier authenticates inbound signed payloads
type Verifier interface {
	Verify(payload []byte, presented string) bool
}

// Notifier receives order snapshots after ledger mutations
type Notifier interface {
	Notify(record *models.Order)
}

// Protocol drives one inbound event from received to resolved or rejected.
// It holds no per-transaction state; that lives in the ledger.
type Protocol struct {
	ledger  ledger.Ledger
	gateway StatusQuerier
	codec   Verifier
	sinks   Notifier
	logger  *slog.Logger
	now     func() time.Time
}

// NewProtocol creates a Protocol with injected collaborators
func NewProtocol(l ledger.Ledger, gateway StatusQuerier, codec Verifier, sinks Notifier, logger *slog.Logger) *Protocol {
	return &Protocol{
		ledger:  l,
		gateway: gateway,
		codec:   codec,
		sinks:   sinks,
		logger:  logger,
		now:     time.Now,
	}
}

// Resolution is the result of a successfully resolved inbound event
type Resolution struct {
	// Order is the ledger's current record after the event
	Order *models.Order
	// Outcome is the authenticated observation this event produced
	Outcome models.PaymentOutcome
	// Applied reports whether the ledger changed
	Applied bool
	// Conflict reports a rejected terminal-to-terminal flip
	Conflict bool
	// Verified is false only when the gateway could not be reached and the
	// outcome is VERIFICATION_FAILED
	Verified bool
}

// callbackBody is the outer shape of a gateway callback request
type callbackBody struct {
	Response string `json:"response"`
}

// callbackPayload is the decoded, authenticated callback content
type callbackPayload struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MerchantTransactionID string `json:"merchantTransactionId"`
		TransactionID         string `json:"transactionId"`
	} `json:"data"`
}

// HandleCallback processes a server-to-server callback (push path). The
// signature header is mandatory and must verify before any byte of the
// payload is trusted. Nothing is mutated on rejection.
func (p *Protocol) HandleCallback(ctx context.Context, body []byte, presentedSignature string) (*Resolution, error) {
	if presentedSignature == "" {
		p.logger.Warn("callback without signature rejected")
		return nil, &ProtocolError{
			Code:    ErrCodeMissingSignature,
			Message: "callback is missing the signature header",
		}
	}

	var outer callbackBody
	if err := json.Unmarshal(body, &outer); err != nil || outer.Response == "" {
		return nil, &ProtocolError{
			Code:    ErrCodeMalformedPayload,
			Message: "callback body is not a valid response envelope",
		}
	}

	payload, err := base64.StdEncoding.DecodeString(outer.Response)
	if err != nil {
		return nil, &ProtocolError{
			Code:    ErrCodeMalformedPayload,
			Message: "callback payload is not valid base64",
		}
	}

	if !p.codec.Verify(payload, presentedSignature) {
		p.logger.Warn("callback signature verification failed")
		return nil, &ProtocolError{
			Code:    ErrCodeInvalidSignature,
			Message: "callback signature did not verify",
		}
	}

	var decoded callbackPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, &ProtocolError{
			Code:    ErrCodeMalformedPayload,
			Message: "callback payload is not valid JSON",
		}
	}
	if decoded.Data.MerchantTransactionID == "" {
		return nil, &ProtocolError{
			Code:    ErrCodeMalformedPayload,
			Message: "callback payload is missing the merchant transaction id",
		}
	}

	outcome := models.PaymentOutcome{
		MerchantTransactionID: decoded.Data.MerchantTransactionID,
		Code:                  decoded.Code,
		GatewayTransactionID:  decoded.Data.TransactionID,
		Source:                models.OutcomeSourceCallback,
		ObservedAt:            p.now(),
	}

	return p.resolve(ctx, outcome)
}

// HandleRedirect processes a browser redirect (pull path). The redirect's
// transaction id is attacker-influenceable, so the outcome is always
// re-derived with an authenticated status query; any status claim embedded
// in the redirect is ignored by construction.
func (p *Protocol) HandleRedirect(ctx context.Context, merchantTransactionID string) (*Resolution, error) {
	if merchantTransactionID == "" {
		return nil, &ProtocolError{
			Code:    ErrCodeMalformedPayload,
			Message: "redirect is missing the transaction id",
		}
	}

	result, err := p.gateway.QueryStatus(ctx, merchantTransactionID)
	if err != nil {
		// Unreachable gateway is not a payment outcome. The order keeps its
		// current (typically PENDING) status for a later re-query and the
		// caller gets a non-terminal verification failure.
		order, lookupErr := p.ledger.Get(ctx, merchantTransactionID)
		if errors.Is(lookupErr, models.ErrOrderNotFound) {
			return nil, &ProtocolError{
				Code:    ErrCodeOrderNotFound,
				Message: "no order exists for this transaction id",
			}
		}
		if lookupErr != nil {
			return nil, &ProtocolError{
				Code:    ErrCodeInternalError,
				Message: "failed to look up order",
				Err:     lookupErr,
			}
		}

		p.logger.Warn("status verification failed, order left unresolved",
			"merchant_transaction_id", merchantTransactionID,
			"error", err,
		)

		return &Resolution{
			Order: order,
			Outcome: models.PaymentOutcome{
				MerchantTransactionID: merchantTransactionID,
				Code:                  models.CodeVerificationFailed,
				Source:                models.OutcomeSourcePoll,
				ObservedAt:            p.now(),
			},
		}, nil
	}

	outcome := models.PaymentOutcome{
		MerchantTransactionID: merchantTransactionID,
		Code:                  result.Code,
		GatewayTransactionID:  result.GatewayTransactionID,
		Source:                models.OutcomeSourcePoll,
		ObservedAt:            p.now(),
	}

	return p.resolve(ctx, outcome)
}

// resolve is the single outcome-application step both paths converge on
func (p *Protocol) resolve(ctx context.Context, outcome models.PaymentOutcome) (*Resolution, error) {
	order, err := p.ledger.ApplyOutcome(ctx, outcome)

	var conflict bool
	switch {
	case errors.Is(err, models.ErrOrderNotFound):
		return nil, &ProtocolError{
			Code:    ErrCodeOrderNotFound,
			Message: "no order exists for this transaction id",
		}
	case errors.Is(err, models.ErrConflictingOutcome):
		conflict = true
	case err != nil:
		return nil, &ProtocolError{
			Code:    ErrCodeInternalError,
			Message: "failed to apply outcome",
			Err:     err,
		}
	}

	// UpdatedAt carries the outcome's timestamp exactly when the ledger
	// accepted a write for this event.
	applied := order.UpdatedAt.Equal(outcome.ObservedAt)

	if applied {
		p.sinks.Notify(order)
	} else if outcome.Status() != order.Status {
		p.logger.Warn("stale outcome observed after terminal result",
			"merchant_transaction_id", outcome.MerchantTransactionID,
			"order_status", order.Status,
			"observed_code", outcome.Code,
			"source", outcome.Source,
		)
	}

	p.logger.Info("event resolved",
		"merchant_transaction_id", outcome.MerchantTransactionID,
		"code", outcome.Code,
		"source", outcome.Source,
		"order_status", order.Status,
		"applied", applied,
		"conflict", conflict,
	)

	return &Resolution{
		Order:    order,
		Outcome:  outcome,
		Applied:  applied,
		Conflict: conflict,
		Verified: true,
	}, nil
}

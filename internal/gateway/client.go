// Package gateway implements the outbound client for the payment gateway:
// signed payment initiation and signed status queries.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/benx421/payment-reconciler/internal/config"
	"github.com/benx421/payment-reconciler/internal/models"
	"github.com/benx421/payment-reconciler/internal/signature"
)

const (
	headerVerify     = "X-VERIFY"
	headerMerchantID = "X-MERCHANT-ID"

	instrumentPayPage = "PAY_PAGE"
)

// Client talks to the gateway's pay and status endpoints. Status queries
// are read-only on the gateway side and safe to repeat.
type Client struct {
	http           *resty.Client
	codec          *signature.Codec
	logger         *slog.Logger
	merchantID     string
	payEndpoint    string
	statusEndpoint string
	callbackURL    string
	redirectURL    string
}

// NewClient creates a gateway client with a bounded request timeout
func NewClient(cfg *config.GatewayConfig, codec *signature.Codec, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:           httpClient,
		codec:          codec,
		logger:         logger,
		merchantID:     cfg.MerchantID,
		payEndpoint:    cfg.PayEndpoint,
		statusEndpoint: cfg.StatusEndpoint,
		callbackURL:    cfg.CallbackURL,
		redirectURL:    cfg.RedirectURL,
	}
}

// payPayload is the gateway's payment-initiation request body before
// base64 encoding
type payPayload struct {
	MerchantID            string            `json:"merchantId"`
	MerchantTransactionID string            `json:"merchantTransactionId"`
	MerchantUserID        string            `json:"merchantUserId"`
	Amount                int64             `json:"amount"`
	RedirectURL           string            `json:"redirectUrl"`
	RedirectMode          string            `json:"redirectMode"`
	CallbackURL           string            `json:"callbackUrl"`
	MobileNumber          string            `json:"mobileNumber,omitempty"`
	PaymentInstrument     paymentInstrument `json:"paymentInstrument"`
}

type paymentInstrument struct {
	Type string `json:"type"`
}

// envelope is the common JSON shape of gateway responses
type envelope struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MerchantTransactionID string `json:"merchantTransactionId"`
		TransactionID         string `json:"transactionId"`
		InstrumentResponse    struct {
			RedirectInfo struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	} `json:"data"`
}

// Initiate signs and submits a payment-initiation request. Transport and
// parse failures surface as models.ErrGatewayUnavailable so callers never
// read "unreachable" as "payment failed".
func (c *Client) Initiate(ctx context.Context, req *models.PaymentRequest) (*models.GatewayResult, error) {
	instrument := req.InstrumentType
	if instrument == "" {
		instrument = instrumentPayPage
	}

	payload, err := json.Marshal(payPayload{
		MerchantID:            c.merchantID,
		MerchantTransactionID: req.MerchantTransactionID,
		MerchantUserID:        req.MerchantUserID,
		Amount:                req.AmountMinorUnits,
		RedirectURL:           c.redirectURL,
		RedirectMode:          "POST",
		CallbackURL:           c.callbackURL,
		MobileNumber:          req.CustomerPhone,
		PaymentInstrument:     paymentInstrument{Type: instrument},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pay payload: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(payload)

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerVerify, c.codec.Sign(payload, c.payEndpoint)).
		SetBody(map[string]string{"request": encoded}).
		Post(c.payEndpoint)
	if err != nil {
		c.logger.Error("gateway pay request failed",
			"merchant_transaction_id", req.MerchantTransactionID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: pay request: %v", models.ErrGatewayUnavailable, err)
	}
	if resp.IsError() {
		c.logger.Error("gateway pay request rejected",
			"merchant_transaction_id", req.MerchantTransactionID,
			"status", resp.StatusCode(),
		)
		return nil, fmt.Errorf("%w: pay request returned %d", models.ErrGatewayUnavailable, resp.StatusCode())
	}

	result, err := c.parseResponse(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: pay response: %v", models.ErrGatewayUnavailable, err)
	}

	c.logger.Info("gateway pay response",
		"merchant_transaction_id", req.MerchantTransactionID,
		"code", result.Code,
		"success", result.Success,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// QueryStatus issues a signed status query for a merchant transaction id.
// Safe to call repeatedly; has no side effects on the gateway.
func (c *Client) QueryStatus(ctx context.Context, merchantTransactionID string) (*models.GatewayResult, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", c.statusEndpoint, c.merchantID, merchantTransactionID)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerVerify, c.codec.SignEndpoint(endpoint)).
		SetHeader(headerMerchantID, c.merchantID).
		Get(endpoint)
	if err != nil {
		c.logger.Error("gateway status query failed",
			"merchant_transaction_id", merchantTransactionID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: status query: %v", models.ErrGatewayUnavailable, err)
	}
	// A non-2xx answer is an unavailable gateway, not a payment outcome,
	// even when its body parses as JSON.
	if resp.IsError() {
		c.logger.Error("gateway status query rejected",
			"merchant_transaction_id", merchantTransactionID,
			"status", resp.StatusCode(),
		)
		return nil, fmt.Errorf("%w: status query returned %d", models.ErrGatewayUnavailable, resp.StatusCode())
	}

	result, err := c.parseResponse(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: status response: %v", models.ErrGatewayUnavailable, err)
	}

	c.logger.Debug("gateway status response",
		"merchant_transaction_id", merchantTransactionID,
		"code", result.Code,
	)

	return result, nil
}

func (c *Client) parseResponse(body []byte) (*models.GatewayResult, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unparseable gateway response: %v", err)
	}

	var raw map[string]any
	// Already known to be valid JSON
	_ = json.Unmarshal(body, &raw)

	return &models.GatewayResult{
		Success:              env.Success,
		Code:                 env.Code,
		Message:              env.Message,
		RedirectURL:          env.Data.InstrumentResponse.RedirectInfo.URL,
		GatewayTransactionID: env.Data.TransactionID,
		Raw:                  raw,
	}, nil
}

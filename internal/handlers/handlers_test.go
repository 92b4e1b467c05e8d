package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benx421/payment-reconciler/internal/config"
	"github.com/benx421/payment-reconciler/internal/ledger"
	"github.com/benx421/payment-reconciler/internal/models"
	"github.com/benx421/payment-reconciler/internal/signature"
	"github.com/benx421/payment-reconciler/internal/sink"
)

const (
	testSaltKey   = "test-salt-key"
	testSaltIndex = "1"
)

// gatewayStub is a controllable stand-in for the payment gateway
type gatewayStub struct {
	mu         sync.Mutex
	refuse     bool   // respond with a connection-level failure
	statusCode string // code returned by status queries
	payFails   bool
}

func (g *gatewayStub) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /pg/v1/pay", func(w http.ResponseWriter, _ *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.refuse {
			panic(http.ErrAbortHandler)
		}
		if g.payFails {
			_, _ = w.Write([]byte(`{"success": false, "code": "KEY_NOT_CONFIGURED", "message": "bad key"}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"success": true,
			"code": "PAYMENT_INITIATED",
			"data": {"instrumentResponse": {"redirectInfo": {"url": "https://pay.example.com/r/abc"}}}
		}`))
	})

	mux.HandleFunc("GET /pg/v1/status/{merchantID}/{txnID}", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.refuse {
			panic(http.ErrAbortHandler)
		}
		_, _ = fmt.Fprintf(w, `{
			"success": true,
			"code": %q,
			"data": {"merchantTransactionId": %q, "transactionId": "GW-POLL-1"}
		}`, g.statusCode, r.PathValue("txnID"))
	})

	return mux
}

type testEnv struct {
	server  *httptest.Server
	gateway *gatewayStub
	ledger  *ledger.Memory
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stub := &gatewayStub{statusCode: models.CodePaymentPending}
	gatewaySrv := httptest.NewServer(stub.handler())
	t.Cleanup(gatewaySrv.Close)

	cfg := &config.Config{
		Gateway: config.GatewayConfig{
			BaseURL:        gatewaySrv.URL,
			MerchantID:     "MERCHANT1",
			SaltKey:        testSaltKey,
			SaltIndex:      testSaltIndex,
			PayEndpoint:    "/pg/v1/pay",
			StatusEndpoint: "/pg/v1/status",
			CallbackURL:    "http://merchant.test/api/v1/callback",
			RedirectURL:    "http://merchant.test/api/v1/redirect",
			Timeout:        2 * time.Second,
		},
	}

	l := ledger.NewMemory(logger)
	fanout := sink.NewFanout(logger, 16)
	t.Cleanup(fanout.Close)

	server := httptest.NewServer(NewRouter(cfg, l, fanout, logger))
	t.Cleanup(server.Close)

	return &testEnv{server: server, gateway: stub, ledger: l}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func (e *testEnv) createOrder(t *testing.T, id string) {
	t.Helper()
	_, err := e.ledger.Create(context.Background(), &models.PaymentRequest{
		MerchantTransactionID: id,
		AmountMinorUnits:      49900,
	}, nil)
	require.NoError(t, err)
}

func signedCallbackRequest(t *testing.T, serverURL, merchantTxnID, code string) *http.Request {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"success": code == models.CodePaymentSuccess,
		"code":    code,
		"data": map[string]any{
			"merchantTransactionId": merchantTxnID,
			"transactionId":         "GW-CB-1",
		},
	})
	require.NoError(t, err)

	body, err := json.Marshal(map[string]string{
		"response": base64.StdEncoding.EncodeToString(payload),
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, serverURL+"/api/v1/callback", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", signature.Sign(payload, "", testSaltKey, testSaltIndex))
	return req
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck // test cleanup
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	env := setupEnv(t)

	resp, err := http.Get(env.server.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "healthy", body["status"])
}

func TestCheckoutEndpoint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := setupEnv(t)

		resp := env.postJSON(t, "/api/v1/checkout", map[string]string{
			"name":   "Asha",
			"email":  "asha@example.com",
			"amount": "499.00",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		body := decodeBody[checkoutResponse](t, resp)
		assert.Equal(t, "https://pay.example.com/r/abc", body.RedirectURL)
		assert.Equal(t, "PENDING", body.Status)

		order, err := env.ledger.Get(context.Background(), body.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, int64(49900), order.AmountMinorUnits)
	})

	t.Run("invalid amount", func(t *testing.T) {
		env := setupEnv(t)

		resp := env.postJSON(t, "/api/v1/checkout", map[string]string{"name": "Asha", "amount": "-5"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		body := decodeBody[errorResponse](t, resp)
		assert.Equal(t, "invalid_amount", body.Error)
	})

	t.Run("gateway rejected", func(t *testing.T) {
		env := setupEnv(t)
		env.gateway.payFails = true

		resp := env.postJSON(t, "/api/v1/checkout", map[string]string{"name": "Asha", "amount": "10.00"})
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("gateway unreachable", func(t *testing.T) {
		env := setupEnv(t)
		env.gateway.refuse = true

		resp := env.postJSON(t, "/api/v1/checkout", map[string]string{"name": "Asha", "amount": "10.00"})
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

		body := decodeBody[errorResponse](t, resp)
		assert.Equal(t, "gateway_unavailable", body.Error)
	})
}

func TestCallbackEndpoint(t *testing.T) {
	t.Run("valid signature settles order", func(t *testing.T) {
		env := setupEnv(t)
		env.createOrder(t, "TXN-1")

		req := signedCallbackRequest(t, env.server.URL, "TXN-1", models.CodePaymentSuccess)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody[callbackResponse](t, resp)
		assert.Equal(t, "PAID", body.Status)
		assert.True(t, body.Applied)
	})

	t.Run("missing signature", func(t *testing.T) {
		env := setupEnv(t)
		env.createOrder(t, "TXN-1")

		req := signedCallbackRequest(t, env.server.URL, "TXN-1", models.CodePaymentSuccess)
		req.Header.Del("X-VERIFY")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		order, err := env.ledger.Get(context.Background(), "TXN-1")
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusPending, order.Status)
	})

	t.Run("tampered signature", func(t *testing.T) {
		env := setupEnv(t)
		env.createOrder(t, "TXN-1")

		req := signedCallbackRequest(t, env.server.URL, "TXN-1", models.CodePaymentSuccess)
		req.Header.Set("X-VERIFY", "0000000000000000000000000000000000000000000000000000000000000000###1")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		env := setupEnv(t)

		req := signedCallbackRequest(t, env.server.URL, "TXN-9", models.CodePaymentSuccess)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		env := setupEnv(t)

		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/v1/callback", bytes.NewReader([]byte("junk")))
		require.NoError(t, err)
		req.Header.Set("X-VERIFY", "deadbeef###1")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRedirectEndpoint(t *testing.T) {
	t.Run("verified success", func(t *testing.T) {
		env := setupEnv(t)
		env.createOrder(t, "TXN-1")
		env.gateway.statusCode = models.CodePaymentSuccess

		resp, err := http.Get(env.server.URL + "/api/v1/redirect?transactionId=TXN-1")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody[redirectResponse](t, resp)
		assert.True(t, body.Paid)
		assert.True(t, body.Verified)
		assert.Equal(t, "PAID", body.Status)
	})

	t.Run("missing transaction id", func(t *testing.T) {
		env := setupEnv(t)

		resp, err := http.Get(env.server.URL + "/api/v1/redirect")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown transaction id", func(t *testing.T) {
		env := setupEnv(t)

		resp, err := http.Get(env.server.URL + "/api/v1/redirect?transactionId=TXN-9")
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("gateway unreachable fails closed", func(t *testing.T) {
		env := setupEnv(t)
		env.createOrder(t, "TXN-2")
		env.gateway.refuse = true

		resp, err := http.Get(env.server.URL + "/api/v1/redirect?transactionId=TXN-2")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody[redirectResponse](t, resp)
		assert.False(t, body.Paid)
		assert.False(t, body.Verified)
		assert.Equal(t, models.CodeVerificationFailed, body.OutcomeCode)
		assert.Equal(t, "PENDING", body.Status, "order stays pending for a later re-query")
	})
}

func TestOrdersEndpoint(t *testing.T) {
	env := setupEnv(t)
	env.createOrder(t, "TXN-1")

	resp, err := http.Get(env.server.URL + "/api/v1/orders/TXN-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	order := decodeBody[models.Order](t, resp)
	assert.Equal(t, "TXN-1", order.MerchantTransactionID)

	resp, err = http.Get(env.server.URL + "/api/v1/orders/TXN-404")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(env.server.URL + "/api/v1/orders")
	require.NoError(t, err)
	orders := decodeBody[[]models.Order](t, resp)
	assert.Len(t, orders, 1)
}

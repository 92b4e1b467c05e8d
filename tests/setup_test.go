//nolint:errcheck // unchecked errors are acceptable in test files
package tests

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/benx421/payment-reconciler/internal/config"
	"github.com/benx421/payment-reconciler/internal/handlers"
	"github.com/benx421/payment-reconciler/internal/ledger"
	"github.com/benx421/payment-reconciler/internal/models"
	"github.com/benx421/payment-reconciler/internal/signature"
	"github.com/benx421/payment-reconciler/internal/sink"
)

const (
	saltKey   = "integration-salt"
	saltIndex = "1"
)

// fakeGateway simulates the payment gateway for end-to-end tests. Status
// responses are scripted per transaction id; unknown ids answer PENDING.
type fakeGateway struct {
	mu       sync.Mutex
	server   *httptest.Server
	statuses map[string]string
	down     bool
	degraded bool
}

func newFakeGateway() *fakeGateway {
	g := &fakeGateway{statuses: make(map[string]string)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /pg/v1/pay", func(w http.ResponseWriter, _ *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.down {
			panic(http.ErrAbortHandler)
		}
		_, _ = w.Write([]byte(`{
			"success": true,
			"code": "PAYMENT_INITIATED",
			"data": {"instrumentResponse": {"redirectInfo": {"url": "https://pay.example.com/r/e2e"}}}
		}`))
	})
	mux.HandleFunc("GET /pg/v1/status/{merchantID}/{txnID}", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.down {
			panic(http.ErrAbortHandler)
		}
		if g.degraded {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"success": false, "message": "service temporarily unavailable"}`))
			return
		}
		code, ok := g.statuses[r.PathValue("txnID")]
		if !ok {
			code = models.CodePaymentPending
		}
		_, _ = fmt.Fprintf(w, `{
			"success": true,
			"code": %q,
			"data": {"merchantTransactionId": %q, "transactionId": "GW-%s"}
		}`, code, r.PathValue("txnID"), r.PathValue("txnID"))
	})

	g.server = httptest.NewServer(mux)
	return g
}

func (g *fakeGateway) setStatus(txnID, code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[txnID] = code
}

func (g *fakeGateway) setDown(down bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.down = down
}

func (g *fakeGateway) setDegraded(degraded bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.degraded = degraded
}

// TestServer wraps the reconciler, its ledger and the fake gateway
type TestServer struct {
	Server  *httptest.Server
	Gateway *fakeGateway
	Ledger  *ledger.Memory
	Fanout  *sink.Fanout
	t       *testing.T
}

// SetupTest creates a full in-process reconciler wired to a fake gateway
func SetupTest(t *testing.T) *TestServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := newFakeGateway()

	cfg := &config.Config{
		Gateway: config.GatewayConfig{
			BaseURL:        gw.server.URL,
			MerchantID:     "MERCHANT1",
			SaltKey:        saltKey,
			SaltIndex:      saltIndex,
			PayEndpoint:    "/pg/v1/pay",
			StatusEndpoint: "/pg/v1/status",
			CallbackURL:    "http://merchant.test/api/v1/callback",
			RedirectURL:    "http://merchant.test/api/v1/redirect",
			Timeout:        2 * time.Second,
		},
	}

	memLedger := ledger.NewMemory(logger)

	jsonSink, err := sink.NewJSONFile(filepath.Join(t.TempDir(), "orders.json"))
	require.NoError(t, err)
	fanout := sink.NewFanout(logger, 16, jsonSink)

	server := httptest.NewServer(handlers.NewRouter(cfg, memLedger, fanout, logger))

	return &TestServer{
		Server:  server,
		Gateway: gw,
		Ledger:  memLedger,
		Fanout:  fanout,
		t:       t,
	}
}

// Close shuts down the reconciler and the fake gateway
func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.Gateway.server.Close()
	ts.Fanout.Close()
}

// Checkout creates an order through the API and returns its transaction id
func (ts *TestServer) Checkout(amount string) string {
	ts.t.Helper()

	body, _ := json.Marshal(map[string]string{
		"name":   "Asha",
		"email":  "asha@example.com",
		"phone":  "9999999999",
		"amount": amount,
	})
	resp, err := http.Post(ts.Server.URL+"/api/v1/checkout", "application/json", bytes.NewReader(body))
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	require.Equal(ts.t, http.StatusCreated, resp.StatusCode)

	var result struct {
		TransactionID string `json:"transaction_id"`
	}
	require.NoError(ts.t, json.NewDecoder(resp.Body).Decode(&result))
	return result.TransactionID
}

// PostCallback delivers a signed gateway callback for the transaction
func (ts *TestServer) PostCallback(txnID, code string) *http.Response {
	ts.t.Helper()

	payload, _ := json.Marshal(map[string]any{
		"success": code == models.CodePaymentSuccess,
		"code":    code,
		"data": map[string]any{
			"merchantTransactionId": txnID,
			"transactionId":         "GW-" + txnID,
		},
	})
	body, _ := json.Marshal(map[string]string{
		"response": base64.StdEncoding.EncodeToString(payload),
	})

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/api/v1/callback", bytes.NewReader(body))
	require.NoError(ts.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VERIFY", signature.Sign(payload, "", saltKey, saltIndex))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(ts.t, err)
	return resp
}

// Redirect simulates the browser returning from the gateway
func (ts *TestServer) Redirect(query string) *http.Response {
	ts.t.Helper()
	resp, err := http.Get(ts.Server.URL + "/api/v1/redirect?" + query)
	require.NoError(ts.t, err)
	return resp
}

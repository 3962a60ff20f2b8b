package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geomint/internal/contract"
	"github.com/roach88/geomint/internal/geo"
	"github.com/roach88/geomint/internal/metrics"
	"github.com/roach88/geomint/internal/mint"
	"github.com/roach88/geomint/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, w *testutil.ScriptedWallet, opts Options) (*Server, *mint.Minter) {
	t.Helper()
	mopts := []mint.Option{
		mint.WithLogger(quietLogger()),
		mint.WithAttemptIDs(mint.NewFixedGenerator("attempt-1")),
	}
	var m *mint.Minter
	if w == nil {
		m = mint.New(nil, mopts...)
	} else {
		m = mint.New(w, mopts...)
	}
	opts.Logger = quietLogger()
	return New(m, opts), m
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "203.0.113.7:51000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestMint_Success(t *testing.T) {
	w := testutil.NewScriptedWallet(contract.DefaultAddress, 21)
	s, _ := newTestServer(t, w, Options{})

	rec := do(t, s, http.MethodPost, "/api/mint", `{"address":"Shibuya Crossing","lat":35.6595,"lng":139.7005}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, "21", body["tokenId"])
	assert.Equal(t, "Shibuya Crossing", body["address"])
	assert.Equal(t, testutil.DefaultOwner.Hex(), body["owner"])
	assert.Equal(t, 35.6595, body["lat"])
	assert.Equal(t, contract.ExplorerTxURL(testutil.DefaultTxHash.Hex()), body["explorerUrl"])
}

func TestMint_Failures(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		script       func(w *testutil.ScriptedWallet)
		noWallet     bool
		wantStatus   int
		wantCategory string
	}{
		{name: "empty body", body: "", wantStatus: http.StatusBadRequest, wantCategory: "no_selection"},
		{name: "empty object", body: "{}", wantStatus: http.StatusBadRequest, wantCategory: "no_selection"},
		{name: "malformed json", body: "{", wantStatus: http.StatusBadRequest, wantCategory: "bad_request"},
		{
			name: "out of range", body: `{"address":"x","lat":100,"lng":0}`,
			wantStatus: http.StatusBadRequest, wantCategory: "invalid_selection",
		},
		{
			name: "no wallet", body: `{"address":"x","lat":1,"lng":1}`, noWallet: true,
			wantStatus: http.StatusServiceUnavailable, wantCategory: "no_wallet",
		},
		{
			name: "wrong network", body: `{"address":"x","lat":1,"lng":1}`,
			script:     func(w *testutil.ScriptedWallet) { w.Chain = big.NewInt(1) },
			wantStatus: http.StatusServiceUnavailable, wantCategory: "wrong_network",
		},
		{
			name: "rejected", body: `{"address":"x","lat":1,"lng":1}`,
			script:     func(w *testutil.ScriptedWallet) { w.SendErr = errors.New("insufficient funds for gas") },
			wantStatus: http.StatusBadGateway, wantCategory: "rejected",
		},
		{
			name: "missing transfer", body: `{"address":"x","lat":1,"lng":1}`,
			script:     func(w *testutil.ScriptedWallet) { w.Receipt.Logs = nil },
			wantStatus: http.StatusBadGateway, wantCategory: "missing_transfer_event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w *testutil.ScriptedWallet
			if !tt.noWallet {
				w = testutil.NewScriptedWallet(contract.DefaultAddress, 1)
				if tt.script != nil {
					tt.script(w)
				}
			}
			s, _ := newTestServer(t, w, Options{})

			rec := do(t, s, http.MethodPost, "/api/mint", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			body := decode(t, rec)
			assert.Equal(t, tt.wantCategory, body["category"])
			assert.NotEmpty(t, body["message"])
			assert.NotContains(t, rec.Body.String(), "insufficient funds", "diagnostics must not leak")
		})
	}
}

func TestMint_InFlightReturnsConflict(t *testing.T) {
	w := testutil.NewScriptedWallet(contract.DefaultAddress, 1)
	entered := make(chan struct{})
	release := make(chan struct{})
	w.BeforeWait = func(context.Context) {
		close(entered)
		<-release
	}
	s, _ := newTestServer(t, w, Options{})

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- do(t, s, http.MethodPost, "/api/mint", `{"address":"x","lat":1,"lng":1}`)
	}()
	<-entered

	status := do(t, s, http.MethodGet, "/api/status", "")
	assert.Equal(t, "submitting", decode(t, status)["state"])

	rec := do(t, s, http.MethodPost, "/api/mint", `{"address":"y","lat":2,"lng":2}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "in_flight", decode(t, rec)["category"])

	close(release)
	assert.Equal(t, http.StatusOK, (<-done).Code)
	assert.Len(t, w.Sent(), 1)
}

func TestStatus(t *testing.T) {
	w := testutil.NewScriptedWallet(contract.DefaultAddress, 4)
	s, _ := newTestServer(t, w, Options{})

	rec := do(t, s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", decode(t, rec)["state"])

	do(t, s, http.MethodPost, "/api/mint", `{"address":"x","lat":1,"lng":1}`)

	body := decode(t, do(t, s, http.MethodGet, "/api/status", ""))
	assert.Equal(t, "confirmed", body["state"])
	assert.Equal(t, "attempt-1", body["attemptId"])
	token, ok := body["token"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "4", token["tokenId"])
}

func TestTokens(t *testing.T) {
	w := testutil.NewScriptedWallet(contract.DefaultAddress, 1)
	out, err := contract.AddressNFT.Methods[contract.MethodAddressData].Outputs.Pack(
		"Brandenburger Tor", geo.Encode(52.5163), geo.Encode(13.3777),
	)
	require.NoError(t, err)
	w.CallOutput = out
	s, _ := newTestServer(t, w, Options{})

	rec := do(t, s, http.MethodGet, "/api/tokens/9", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "9", body["tokenId"])
	assert.Equal(t, "Brandenburger Tor", body["address"])
	assert.InDelta(t, 52.5163, body["lat"], 1e-6)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/tokens/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/tokens/-3", "").Code)

	w.CallErr = errors.New("execution reverted")
	assert.Equal(t, http.StatusBadGateway, do(t, s, http.MethodGet, "/api/tokens/9", "").Code)
}

func TestTokens_NoWallet(t *testing.T) {
	s, _ := newTestServer(t, nil, Options{})
	rec := do(t, s, http.MethodGet, "/api/tokens/1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "no_wallet", decode(t, rec)["category"])
}

func TestRateLimit(t *testing.T) {
	w := testutil.NewScriptedWallet(contract.DefaultAddress, 1)
	now := time.Unix(1_700_000_000, 0)
	s, _ := newTestServer(t, w, Options{RatePerSec: 1, Burst: 2, Now: func() time.Time { return now }})

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/tokens/x", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/tokens/x", "").Code)

	rec := do(t, s, http.MethodGet, "/api/tokens/x", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Status polling is not limited.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/status", "").Code)

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/tokens/x", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := metrics.NewRecorder()
	w := testutil.NewScriptedWallet(contract.DefaultAddress, 1)
	m := mint.New(w, mint.WithLogger(quietLogger()), mint.WithRecorder(rec))
	s := New(m, Options{Metrics: rec.Handler(), Logger: quietLogger()})

	do(t, s, http.MethodPost, "/api/mint", `{"address":"x","lat":1,"lng":1}`)

	res := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `geomint_mint_attempts_total{outcome="confirmed"} 1`)
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, nil, Options{AllowedOrigins: []string{"https://geomint.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/mint", nil)
	req.Header.Set("Origin", "https://geomint.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, "https://geomint.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestIPLimiter_Evicts(t *testing.T) {
	l := newIPLimiter(10, 1, time.Minute)
	start := time.Unix(0, 0)
	assert.True(t, l.allow("10.0.0.1", start))

	later := start.Add(time.Hour)
	for i := 0; i < 511; i++ {
		l.allow("10.0.0.2", later)
	}
	assert.Equal(t, 1, l.size())

	var nilLimiter *ipLimiter
	assert.True(t, nilLimiter.allow("anything", start))
	assert.Nil(t, newIPLimiter(0, 1, 0))
}

func TestMint_PartialSelectionNeverTouchesWallet(t *testing.T) {
	bodies := map[string]string{
		"address only":     `{"address":"Eiffel Tower"}`,
		"missing lng":      `{"address":"Eiffel Tower","lat":48.8584}`,
		"coordinates only": `{"lat":48.8584,"lng":2.2945}`,
		"zero lat omitted": `{"address":"Null Island","lng":0}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			w := testutil.NewScriptedWallet(contract.DefaultAddress, 1)
			s, m := newTestServer(t, w, Options{})

			rec := do(t, s, http.MethodPost, "/api/mint", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "invalid_selection", decode(t, rec)["category"])
			assert.Empty(t, w.Calls())
			assert.Empty(t, w.Sent())
			assert.Equal(t, mint.StateIdle, m.Status().State)
		})
	}
}

func TestMint_ClientDisconnectAfterSubmissionStillConfirms(t *testing.T) {
	w := testutil.NewScriptedWallet(contract.DefaultAddress, 13)
	ctx, cancel := context.WithCancel(context.Background())
	w.BeforeWait = func(context.Context) { cancel() }
	s, m := newTestServer(t, w, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/mint",
		strings.NewReader(`{"address":"Eiffel Tower","lat":48.8584,"lng":2.2945}`)).WithContext(ctx)
	req.RemoteAddr = "203.0.113.7:51000"
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := m.Status()
	assert.Equal(t, mint.StateConfirmed, st.State)
	require.NotNil(t, st.Token)
	assert.Equal(t, "13", st.Token.TokenID)
	assert.Len(t, w.Sent(), 1)
}

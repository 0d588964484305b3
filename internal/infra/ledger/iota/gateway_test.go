package iota

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/vietddude/cycler/internal/core/domain"
	"github.com/vietddude/cycler/internal/infra/ledger"
	"github.com/vietddude/cycler/internal/infra/rpc"
	"github.com/vietddude/cycler/internal/infra/rpc/provider"
)

type testKey struct {
	priv ed25519.PrivateKey
}

func newTestKey() testKey {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return testKey{priv: ed25519.NewKeyFromSeed(seed)}
}

func (k testKey) PublicKey() ed25519.PublicKey { return k.priv.Public().(ed25519.PublicKey) }
func (k testKey) Sign(d []byte) []byte         { return ed25519.Sign(k.priv, d) }

// rpcRecorder is a fake fullnode answering by method name.
type rpcRecorder struct {
	mu       sync.Mutex
	requests []map[string]any
	handlers map[string]func(params []any) (any, *provider.RPCError)
}

func (r *rpcRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.mu.Lock()
	r.requests = append(r.requests, body)
	r.mu.Unlock()

	method, _ := body["method"].(string)
	params, _ := body["params"].([]any)
	resp := map[string]any{"jsonrpc": "2.0", "id": body["id"]}

	h, ok := r.handlers[method]
	if !ok {
		resp["error"] = provider.RPCError{Code: -32601, Message: "Method not found"}
	} else if result, rpcErr := h(params); rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	json.NewEncoder(w).Encode(resp)
}

func (r *rpcRecorder) methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.requests))
	for i, req := range r.requests {
		out[i], _ = req["method"].(string)
	}
	return out
}

func (r *rpcRecorder) params(method string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if req["method"] == method {
			p, _ := req["params"].([]any)
			return p
		}
	}
	return nil
}

func newGateway(t *testing.T, rec *rpcRecorder) *Gateway {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	client := rpc.NewClientWithProviders([]provider.Provider{
		provider.NewHTTPProvider("test", srv.URL, 5*time.Second),
	}, 0, 1)
	return NewGateway(client, nil, 0)
}

// =============================================================================
// Balance
// =============================================================================

func TestGateway_GetBalance(t *testing.T) {
	rec := &rpcRecorder{handlers: map[string]func([]any) (any, *provider.RPCError){
		"iotax_getBalance": func(p []any) (any, *provider.RPCError) {
			return map[string]any{"coinType": "0x2::iota::IOTA", "totalBalance": "1500000000"}, nil
		},
	}}
	g := newGateway(t, rec)

	bal, err := g.GetBalance(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if bal != 1_500_000_000 {
		t.Errorf("Expected 1.5 IOTA, got %d", bal)
	}
	if p := rec.params("iotax_getBalance"); len(p) != 1 || p[0] != "0xabc" {
		t.Errorf("unexpected params %v", p)
	}
}

func TestGateway_GetBalance_TransportError(t *testing.T) {
	rec := &rpcRecorder{handlers: map[string]func([]any) (any, *provider.RPCError){
		"iotax_getBalance": func(p []any) (any, *provider.RPCError) {
			return map[string]any{"totalBalance": "not-a-number"}, nil
		},
	}}
	g := newGateway(t, rec)

	if _, err := g.GetBalance(context.Background(), "0xabc"); !errors.Is(err, domain.ErrTransport) {
		t.Errorf("Expected transport error, got %v", err)
	}
}

// =============================================================================
// Submission
// =============================================================================

func submitHandlers(status, failure string) map[string]func([]any) (any, *provider.RPCError) {
	txBytes := base64.StdEncoding.EncodeToString([]byte("tx-bytes"))
	return map[string]func([]any) (any, *provider.RPCError){
		"iotax_getCoins": func(p []any) (any, *provider.RPCError) {
			return map[string]any{"data": []map[string]string{
				{"coinObjectId": "0xc1", "balance": "100"},
				{"coinObjectId": "0xc2", "balance": "200"},
			}}, nil
		},
		"unsafe_payIota": func(p []any) (any, *provider.RPCError) {
			return map[string]string{"txBytes": txBytes}, nil
		},
		"unsafe_requestAddStake": func(p []any) (any, *provider.RPCError) {
			return map[string]string{"txBytes": txBytes}, nil
		},
		"iota_executeTransactionBlock": func(p []any) (any, *provider.RPCError) {
			return map[string]any{
				"digest": "D1",
				"effects": map[string]any{
					"status": map[string]string{"status": status, "error": failure},
				},
			}, nil
		},
	}
}

func TestGateway_SubmitTransfer(t *testing.T) {
	rec := &rpcRecorder{handlers: submitHandlers("success", "")}
	g := newGateway(t, rec)
	key := newTestKey()

	res, err := g.SubmitTransaction(context.Background(), key, ledger.TxSpec{
		Kind:      ledger.TxKindTransfer,
		Sender:    "0xsender",
		Recipient: "0xrecipient",
		Amount:    1234,
	})
	if err != nil {
		t.Fatalf("SubmitTransaction failed: %v", err)
	}
	if res.Digest != "D1" {
		t.Errorf("Expected digest D1, got %s", res.Digest)
	}

	want := []string{"iotax_getCoins", "unsafe_payIota", "iota_executeTransactionBlock"}
	got := rec.methods()
	if len(got) != len(want) {
		t.Fatalf("Expected calls %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: want %s, got %s", i, want[i], got[i])
		}
	}

	pay := rec.params("unsafe_payIota")
	if pay[0] != "0xsender" || pay[4] != "50000000" {
		t.Errorf("unexpected pay params %v", pay)
	}
	if amounts, _ := pay[3].([]any); len(amounts) != 1 || amounts[0] != "1234" {
		t.Errorf("unexpected amounts %v", pay[3])
	}

	exec := rec.params("iota_executeTransactionBlock")
	sigs, _ := exec[1].([]any)
	if len(sigs) != 1 {
		t.Fatalf("Expected one signature, got %v", exec[1])
	}
	if exec[3] != "WaitForLocalExecution" {
		t.Errorf("unexpected request type %v", exec[3])
	}
}

func TestGateway_SubmitStake(t *testing.T) {
	rec := &rpcRecorder{handlers: submitHandlers("success", "")}
	g := newGateway(t, rec)

	_, err := g.SubmitTransaction(context.Background(), newTestKey(), ledger.TxSpec{
		Kind:      ledger.TxKindStake,
		Sender:    "0xsender",
		Validator: "0xvalidator",
		Amount:    2_000_000_000,
	})
	if err != nil {
		t.Fatalf("SubmitTransaction failed: %v", err)
	}

	p := rec.params("unsafe_requestAddStake")
	if p[2] != "2000000000" || p[3] != "0xvalidator" || p[4] != nil {
		t.Errorf("unexpected stake params %v", p)
	}
}

func TestGateway_SubmitFailedEffects(t *testing.T) {
	rec := &rpcRecorder{handlers: submitHandlers("failure", "InsufficientGas")}
	g := newGateway(t, rec)

	_, err := g.SubmitTransaction(context.Background(), newTestKey(), ledger.TxSpec{
		Kind: ledger.TxKindTransfer, Sender: "0xs", Recipient: "0xr", Amount: 1,
	})
	var txErr *ledger.TransactionError
	if !errors.As(err, &txErr) {
		t.Fatalf("Expected TransactionError, got %v", err)
	}
	if txErr.Digest != "D1" || txErr.Message != "InsufficientGas" {
		t.Errorf("unexpected error %+v", txErr)
	}
}

func TestGateway_SubmitRejectedByNode(t *testing.T) {
	handlers := submitHandlers("success", "")
	handlers["unsafe_payIota"] = func(p []any) (any, *provider.RPCError) {
		return nil, &provider.RPCError{Code: -32002, Message: "Balance of gas object 10 is lower than the needed amount"}
	}
	g := newGateway(t, &rpcRecorder{handlers: handlers})

	_, err := g.SubmitTransaction(context.Background(), newTestKey(), ledger.TxSpec{
		Kind: ledger.TxKindTransfer, Sender: "0xs", Recipient: "0xr", Amount: 1,
	})
	var txErr *ledger.TransactionError
	if !errors.As(err, &txErr) {
		t.Fatalf("Expected TransactionError, got %v", err)
	}
}

func TestGateway_NoCoins(t *testing.T) {
	handlers := submitHandlers("success", "")
	handlers["iotax_getCoins"] = func(p []any) (any, *provider.RPCError) {
		return map[string]any{"data": []any{}}, nil
	}
	g := newGateway(t, &rpcRecorder{handlers: handlers})

	_, err := g.SubmitTransaction(context.Background(), newTestKey(), ledger.TxSpec{
		Kind: ledger.TxKindTransfer, Sender: "0xs", Recipient: "0xr", Amount: 1,
	})
	var txErr *ledger.TransactionError
	if !errors.As(err, &txErr) {
		t.Fatalf("Expected TransactionError, got %v", err)
	}
}

// =============================================================================
// Signing
// =============================================================================

func TestSignTransaction(t *testing.T) {
	key := newTestKey()
	tx := []byte{1, 2, 3, 4}

	raw, err := base64.StdEncoding.DecodeString(SignTransaction(key, tx))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 1+ed25519.SignatureSize+ed25519.PublicKeySize {
		t.Fatalf("unexpected signature length %d", len(raw))
	}
	if raw[0] != 0x00 {
		t.Errorf("Expected ed25519 flag, got 0x%02x", raw[0])
	}

	digest := blake2b.Sum256(append([]byte{0, 0, 0}, tx...))
	sig := raw[1 : 1+ed25519.SignatureSize]
	pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])
	if !ed25519.Verify(pub, digest[:], sig) {
		t.Error("signature must verify over the intent digest")
	}
}

// =============================================================================
// Faucet
// =============================================================================

func TestFaucet_RequestClaim(t *testing.T) {
	var (
		gotHeaders http.Header
		gotBody    map[string]map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `{"task":"abc"}`)
	}))
	defer srv.Close()

	f, err := NewFaucetClient(domain.NetworkTestnet, srv.URL, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := f.RequestClaim(context.Background(), "0xme", nil, "test-agent")
	if err != nil {
		t.Fatalf("RequestClaim failed: %v", err)
	}
	if resp.Status != http.StatusAccepted || !resp.OK() || resp.Body != `{"task":"abc"}` {
		t.Errorf("unexpected response %+v", resp)
	}
	if gotBody["FixedAmountRequest"]["recipient"] != "0xme" {
		t.Errorf("unexpected body %v", gotBody)
	}
	for k, v := range map[string]string{
		"User-Agent":     "test-agent",
		"Accept":         "application/json",
		"Sec-Fetch-Mode": "cors",
		"Dnt":            "1",
	} {
		if gotHeaders.Get(k) != v {
			t.Errorf("header %s = %q, want %q", k, gotHeaders.Get(k), v)
		}
	}
}

func TestFaucet_NonSuccessIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, "Too many requests")
	}))
	defer srv.Close()

	f, _ := NewFaucetClient(domain.NetworkDevnet, srv.URL, 5*time.Second)
	resp, err := f.RequestClaim(context.Background(), "0xme", nil, "ua")
	if err != nil {
		t.Fatalf("non-2xx must not be an error: %v", err)
	}
	if resp.Status != http.StatusTooManyRequests || resp.OK() {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestFaucet_ThroughProxy(t *testing.T) {
	var proxied string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied = r.URL.String()
		w.WriteHeader(http.StatusOK)
	}))
	defer proxy.Close()

	u, _ := url.Parse(proxy.URL)
	desc, err := parseTestProxy(u)
	if err != nil {
		t.Fatal(err)
	}

	f, _ := NewFaucetClient(domain.NetworkTestnet, "http://faucet.invalid/v1/gas", 5*time.Second)
	resp, err := f.RequestClaim(context.Background(), "0xme", desc, "ua")
	if err != nil {
		t.Fatalf("RequestClaim failed: %v", err)
	}
	if resp.Status != http.StatusOK || proxied != "http://faucet.invalid/v1/gas" {
		t.Errorf("request did not go through the proxy: status %d, url %q", resp.Status, proxied)
	}
}

func TestFaucet_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	f, _ := NewFaucetClient(domain.NetworkTestnet, srv.URL, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.RequestClaim(ctx, "0xme", nil, "ua")
	if !errors.Is(err, domain.ErrTransport) || !errors.Is(err, domain.ErrTimeout) {
		t.Errorf("Expected transport timeout, got %v", err)
	}
}

func TestFaucet_Mainnet(t *testing.T) {
	if _, err := NewFaucetClient(domain.NetworkMainnet, "", time.Second); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("Expected configuration error, got %v", err)
	}
	g := NewGateway(nil, nil, 0)
	if _, err := g.RequestClaim(context.Background(), "0x", nil, "ua"); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("Expected configuration error without faucet, got %v", err)
	}
}

func parseTestProxy(u *url.URL) (*domain.ProxyDescriptor, error) {
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return nil, err
	}
	p := &domain.ProxyDescriptor{Scheme: "http", Host: u.Hostname(), Port: port, Format: domain.ProxyFormatURL}
	return p, p.Validate()
}

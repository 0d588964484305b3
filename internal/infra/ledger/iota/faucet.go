package iota

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/cycler/internal/core/domain"
	"github.com/vietddude/cycler/internal/infra/ledger"
)

const maxClaimBody = 64 << 10

// FaucetClient posts gas requests to the network faucet.
type FaucetClient struct {
	url     string
	timeout time.Duration
}

// NewFaucetClient resolves the faucet URL for network. A non-empty override
// wins over the built-in URL.
func NewFaucetClient(network domain.Network, override string, timeout time.Duration) (*FaucetClient, error) {
	url := override
	if url == "" {
		url = domain.NetworkFaucetURL[network]
	}
	if url == "" {
		return nil, fmt.Errorf("%w: network %s has no faucet", domain.ErrConfiguration, network)
	}
	return &FaucetClient{url: url, timeout: timeout}, nil
}

// URL returns the faucet endpoint.
func (f *FaucetClient) URL() string {
	return f.url
}

// RequestClaim sends one claim request, routed through proxy when set.
func (f *FaucetClient) RequestClaim(
	ctx context.Context,
	address string,
	proxy *domain.ProxyDescriptor,
	userAgent string,
) (ledger.ClaimResponse, error) {
	payload, err := json.Marshal(map[string]any{
		"FixedAmountRequest": map[string]string{"recipient": address},
	})
	if err != nil {
		return ledger.ClaimResponse{}, fmt.Errorf("marshal claim: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return ledger.ClaimResponse{}, fmt.Errorf("create claim request: %w", err)
	}
	setBrowserHeaders(req, userAgent)

	transport := &http.Transport{
		DisableKeepAlives:   true,
		TLSHandshakeTimeout: 15 * time.Second,
	}
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy.URL())
	}
	client := &http.Client{Transport: transport, Timeout: f.timeout}
	defer transport.CloseIdleConnections()

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return ledger.ClaimResponse{}, fmt.Errorf("%w: %w: %w", domain.ErrTransport, domain.ErrTimeout, err)
		}
		return ledger.ClaimResponse{}, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxClaimBody))
	if err != nil {
		return ledger.ClaimResponse{}, fmt.Errorf("%w: read claim response: %w", domain.ErrTransport, err)
	}
	return ledger.ClaimResponse{Status: resp.StatusCode, Body: string(body)}, nil
}

// Accept-Encoding is left to the transport so gzip bodies are decoded.
func setBrowserHeaders(req *http.Request, userAgent string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("DNT", "1")
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPProvider implements Provider for JSON-RPC over HTTP.
type HTTPProvider struct {
	name       string
	endpoint   string
	httpClient *http.Client
	nextID     atomic.Uint64

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
	failureCount int
	requestCount int

	Monitor *ProviderMonitor
}

// NewHTTPProvider creates a new HTTP-based RPC provider.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		health: HealthStatus{
			Available:     true,
			LastSuccessAt: time.Now(),
		},
		Monitor: NewProviderMonitor(),
	}
}

// maxResponseBytes caps how much of a node reply is read.
const maxResponseBytes = 8 << 20

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Call sends one JSON-RPC request. Throttling in any form (429, 403, a
// cooling-down endpoint, throttle text in the reply) wraps ErrThrottled; an
// error object from the node is returned as *RPCError.
func (p *HTTPProvider) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if err := p.admit(); err != nil {
		return nil, err
	}
	if params == nil {
		params = []any{}
	}

	payload, err := json.Marshal(request{JSONRPC: "2.0", ID: p.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return nil, p.fail(fmt.Errorf("encode %s: %w", method, err))
	}

	start := time.Now()
	status, header, body, err := p.post(ctx, payload)
	if err != nil {
		return nil, p.fail(fmt.Errorf("%s: %w", method, err))
	}
	latency := time.Since(start)

	if err := p.checkStatus(status, header, body); err != nil {
		return nil, p.fail(err)
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, p.fail(fmt.Errorf("decode %s response: %w", method, err))
	}
	if resp.Error != nil {
		if p.Monitor.DetectThrottlePattern(resp.Error.Message) {
			return nil, p.fail(fmt.Errorf("%w: %w", ErrThrottled, resp.Error))
		}
		return nil, p.fail(resp.Error)
	}

	p.Monitor.RecordRequest(latency)
	p.recordSuccess(latency)
	return resp.Result, nil
}

// admit refuses calls while the endpoint is cooling down.
func (p *HTTPProvider) admit() error {
	switch p.Monitor.CheckProviderStatus() {
	case StatusThrottled:
		return fmt.Errorf("%w: %s cooling down for %v", ErrThrottled, p.name, p.Monitor.GetRetryAfter())
	case StatusBlocked:
		return fmt.Errorf("%w: %s blocked (403) for %v", ErrThrottled, p.name, p.Monitor.GetRetryAfter())
	}
	return nil
}

func (p *HTTPProvider) post(ctx context.Context, payload []byte) (int, http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, resp.Header, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

// checkStatus turns a non-200 reply into an error and feeds the monitor.
func (p *HTTPProvider) checkStatus(status int, header http.Header, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		retryAfter := header.Get("Retry-After")
		p.Monitor.RecordThrottle(status, retryAfter)
		return fmt.Errorf("%w: http 429, retry after %q", ErrThrottled, retryAfter)
	case status == http.StatusForbidden:
		p.Monitor.RecordThrottle(status, "")
		return fmt.Errorf("%w: http 403, endpoint blocked", ErrThrottled)
	case p.Monitor.DetectThrottlePattern(string(body)):
		return fmt.Errorf("%w: throttle detected in http %d reply: %s", ErrThrottled, status, body)
	default:
		return fmt.Errorf("http %d: %s", status, body)
	}
}

// GetName returns the provider's name.
func (p *HTTPProvider) GetName() string {
	return p.name
}

// GetHealth returns the provider's health status.
func (p *HTTPProvider) GetHealth() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h := p.health
	stats := p.Monitor.GetStats()
	h.MonitorStats = &stats
	return h
}

// Close cleans up resources.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// IsAvailable checks if the provider is available.
func (p *HTTPProvider) IsAvailable() bool {
	status := p.Monitor.CheckProviderStatus()
	return status == StatusHealthy || status == StatusDegraded
}

func (p *HTTPProvider) recordSuccess(latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.successCount++
	p.requestCount++
	p.totalLatency += latency
	p.health.LastSuccessAt = time.Now()
	p.health.Available = true

	if p.requestCount > 0 {
		p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)
	}
	if p.successCount > 0 {
		p.health.Latency = p.totalLatency / time.Duration(p.successCount)
	}
}

// fail records a failed request and returns err unchanged.
func (p *HTTPProvider) fail(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failureCount++
	p.requestCount++
	p.health.LastFailureAt = time.Now()

	if p.requestCount > 0 {
		p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)
	}

	if p.health.ErrorRate > 0.5 {
		p.health.Available = false
	}
	return err
}

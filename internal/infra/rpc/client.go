// Package rpc provides a resilient JSON-RPC client over several endpoints.
//
// Calls pass a shared rate limiter, then go to the preferred provider. Each
// provider is tried once per call: a failed provider rotates to the back of
// the order and the next one is tried, while request errors (JSON-RPC
// -32600..-32700, node rejections) are returned immediately. Retrying a
// whole call is left to the caller.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/cycler/internal/infra/metrics"
	"github.com/vietddude/cycler/internal/infra/rpc/provider"
	"github.com/vietddude/cycler/internal/infra/rpc/routing"
)

var ErrNoProviders = errors.New("no rpc providers configured")

// ProviderConfig names one endpoint.
type ProviderConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Config holds client settings.
type Config struct {
	Providers         []ProviderConfig `yaml:"providers"`
	Timeout           time.Duration    `yaml:"timeout"`
	RequestsPerSecond float64          `yaml:"requests_per_second"`
	Burst             int              `yaml:"burst"`
	GasBudget         uint64           `yaml:"gas_budget"`
}

// Client is the high-level interface for making RPC calls.
type Client struct {
	selector *routing.Selector
	limiter  *rate.Limiter
	log      *slog.Logger
}

// NewClient creates HTTP providers for every configured endpoint.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Providers) == 0 {
		return nil, ErrNoProviders
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	providers := make([]provider.Provider, 0, len(cfg.Providers))
	for i, pc := range cfg.Providers {
		name := pc.Name
		if name == "" {
			name = fmt.Sprintf("provider-%d", i+1)
		}
		providers = append(providers, provider.NewHTTPProvider(name, pc.URL, timeout))
	}
	return NewClientWithProviders(providers, cfg.RequestsPerSecond, cfg.Burst), nil
}

// NewClientWithProviders builds a client from existing providers. rps <= 0
// disables rate limiting.
func NewClientWithProviders(providers []provider.Provider, rps float64, burst int) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &Client{
		selector: routing.NewSelector(providers),
		limiter:  rate.NewLimiter(limit, burst),
		log:      slog.Default(),
	}
}

// Call invokes method and decodes the result into out (when non-nil).
func (c *Client) Call(ctx context.Context, method string, params []any, out any) error {
	if c.selector.Len() == 0 {
		return ErrNoProviders
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for _, p := range c.selector.Order() {
		raw, err := c.callProvider(ctx, p, method, params)
		if err == nil {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
			return nil
		}

		lastErr = err
		if routing.ClassifyError(err) == routing.ActionFatal || ctx.Err() != nil {
			return fmt.Errorf("%s via %s: %w", method, p.GetName(), err)
		}

		c.log.Warn("RPC provider failed, trying next",
			"provider", p.GetName(),
			"method", method,
			"error", err,
		)
		c.selector.Rotate(p.GetName())
	}

	return fmt.Errorf("all providers failed: %w", lastErr)
}

// Providers exposes the health of every endpoint.
func (c *Client) Providers() map[string]provider.HealthStatus {
	out := make(map[string]provider.HealthStatus)
	for _, p := range c.selector.Order() {
		out[p.GetName()] = p.GetHealth()
	}
	return out
}

// Close releases provider resources.
func (c *Client) Close() error {
	var errs []error
	for _, p := range c.selector.Order() {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

func (c *Client) callProvider(ctx context.Context, p provider.Provider, method string, params []any) (json.RawMessage, error) {
	start := time.Now()
	metrics.RPCCallsTotal.WithLabelValues(p.GetName(), method).Inc()
	result, err := p.Call(ctx, method, params)
	metrics.RPCLatency.WithLabelValues(p.GetName(), method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(p.GetName(), routing.ClassifyError(err).String()).Inc()
	}
	return result, err
}

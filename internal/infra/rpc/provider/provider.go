// Package provider implements JSON-RPC endpoints.
//
// This package contains:
//   - Provider interface: core abstraction for an RPC endpoint
//   - HTTPProvider: JSON-RPC 2.0 over HTTP
//   - ProviderMonitor: latency and throttle tracking
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrThrottled marks failures caused by the endpoint refusing service:
// rate limiting, IP blocks or quota exhaustion.
var ErrThrottled = errors.New("endpoint throttled")

// Provider defines one JSON-RPC endpoint.
type Provider interface {
	// GetName returns the provider identifier (e.g., "iota-foundation")
	GetName() string

	// GetHealth returns current health metrics
	GetHealth() HealthStatus

	// IsAvailable checks if the provider is healthy enough to use
	IsAvailable() bool

	// Call makes a single RPC request and returns the raw result
	Call(ctx context.Context, method string, params []any) (json.RawMessage, error)

	// Close cleans up resources
	Close() error
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available     bool
	Latency       time.Duration
	ErrorRate     float64
	LastSuccessAt time.Time
	LastFailureAt time.Time
	MonitorStats  *MonitorStats `json:"monitor_stats,omitempty"`
}

// RPCError is an error object returned inside a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsRequestError reports a malformed request (JSON-RPC -32700..-32600).
// Every endpoint would reject it the same way.
func (e *RPCError) IsRequestError() bool {
	return e.Code >= -32700 && e.Code <= -32600
}

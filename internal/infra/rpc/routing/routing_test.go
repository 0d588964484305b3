package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/vietddude/cycler/internal/infra/rpc/provider"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		expect ErrorAction
	}{
		{errors.New("429 Too Many Requests"), ActionFailover},
		{errors.New("project rate limit exceeded"), ActionFailover},
		{errors.New("quota exceeded"), ActionFailover},
		{errors.New("daily request count exceeded"), ActionFailover},
		{errors.New("403 Forbidden"), ActionFailover},
		{errors.New("provider throttled, retry after: 30s"), ActionFailover},
		{errors.New("Invalid JSON-RPC request -32600"), ActionFatal},
		{errors.New("Method not found -32601"), ActionFatal},
		{errors.New("Parse error -32700"), ActionFatal},
		{fmt.Errorf("rpc call: %w", context.Canceled), ActionFatal},
		{&provider.RPCError{Code: -32002, Message: "Insufficient gas"}, ActionFatal},
		{fmt.Errorf("throttle in rpc error: %w", &provider.RPCError{Code: -32005, Message: "rate limit exceeded"}), ActionFailover},
		{fmt.Errorf("%w: node-a cooling down for 30s", provider.ErrThrottled), ActionFailover},
		{fmt.Errorf("%w: %w", provider.ErrThrottled, &provider.RPCError{Code: -32000, Message: "slow down"}), ActionFailover},
		{fmt.Errorf("getCoins: %w", &provider.RPCError{Code: -32603, Message: "internal"}), ActionFatal},
		{errors.New("connection reset by peer"), ActionRetry},
		{errors.New("timeout"), ActionRetry},
		{errors.New("500 Internal Server Error"), ActionRetry},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.expect {
			t.Errorf("ClassifyError(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

type stubProvider struct {
	name      string
	available bool
}

func (s *stubProvider) GetName() string                  { return s.name }
func (s *stubProvider) GetHealth() provider.HealthStatus { return provider.HealthStatus{Available: s.available} }
func (s *stubProvider) IsAvailable() bool                { return s.available }
func (s *stubProvider) Close() error                     { return nil }
func (s *stubProvider) Call(context.Context, string, []any) (json.RawMessage, error) {
	return nil, nil
}

func names(ps []provider.Provider) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.GetName()
	}
	return out
}

func TestSelector_Order(t *testing.T) {
	a := &stubProvider{name: "a", available: true}
	b := &stubProvider{name: "b", available: false}
	c := &stubProvider{name: "c", available: true}
	s := NewSelector([]provider.Provider{a, b, c})

	if got := fmt.Sprint(names(s.Order())); got != "[a c b]" {
		t.Errorf("unavailable providers go last, got %s", got)
	}

	s.Rotate("a")
	if got := fmt.Sprint(names(s.Order())); got != "[c a b]" {
		t.Errorf("after rotating away from a, got %s", got)
	}

	b.available = true
	s.Rotate("c")
	if got := fmt.Sprint(names(s.Order())); got != "[a b c]" {
		t.Errorf("rotation wraps around, got %s", got)
	}
}

// Package routing decides how an RPC failure is handled and which provider
// serves the next call.
package routing

import (
	"context"
	"errors"
	"strings"

	"github.com/vietddude/cycler/internal/infra/rpc/provider"
)

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFailover
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFailover:
		return "failover"
	case ActionFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry // Should not happen
	}
	if errors.Is(err, context.Canceled) {
		return ActionFatal
	}
	if errors.Is(err, provider.ErrThrottled) {
		return ActionFailover
	}
	var rpcErr *provider.RPCError
	if errors.As(err, &rpcErr) && rpcErr.IsRequestError() {
		return ActionFatal
	}

	s := err.Error()
	sLower := strings.ToLower(s)

	// Fatal (Code or Request issues)
	// -32700: Parse error, -32600: Invalid Request, -32601: Method not found, -32602: Invalid params
	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") {
		return ActionFatal
	}

	// Failover (Provider specific issues)
	if strings.Contains(s, "429") || strings.Contains(sLower, "too many requests") ||
		strings.Contains(s, "403") || strings.Contains(sLower, "forbidden") ||
		strings.Contains(sLower, "quota") || strings.Contains(sLower, "throttle") ||
		strings.Contains(sLower, "blocked") ||
		strings.Contains(sLower, "rate limit") ||
		strings.Contains(sLower, "count exceeded") {
		return ActionFailover
	}

	// The endpoint answered with an error object; another attempt gets the same answer.
	if rpcErr != nil {
		return ActionFatal
	}

	// Default to Retry (Network, 5xx, etc)
	return ActionRetry
}

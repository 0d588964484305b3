package domain

import "errors"

// Error taxonomy shared by the claim engine, operation runner and scheduler.
var (
	// ErrInsufficientBalance is a local precondition failure; nothing was submitted.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrTransport covers connection level failures and timeouts.
	ErrTransport = errors.New("transport error")
	// ErrTimeout is a transport failure caused by a deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrRateLimited means the remote signalled quota or cooldown.
	ErrRateLimited = errors.New("rate limited")
	// ErrFalseSuccess means the remote reported success with no observable effect.
	ErrFalseSuccess = errors.New("false success")
	// ErrHardFailure is any other non-success outcome.
	ErrHardFailure = errors.New("hard failure")
	// ErrConfiguration is bad pool, validator or interval input.
	ErrConfiguration = errors.New("configuration error")
)

package domain

import "time"

type OperationKind string

const (
	OperationClaim    OperationKind = "claim"
	OperationTransfer OperationKind = "transfer"
	OperationStake    OperationKind = "stake"
)

type Classification string

const (
	ClassRealSuccess         Classification = "REAL_SUCCESS"
	ClassFalseSuccess        Classification = "FALSE_SUCCESS"
	ClassRateLimited         Classification = "RATE_LIMITED"
	ClassHardFailure         Classification = "HARD_FAILURE"
	ClassInsufficientBalance Classification = "INSUFFICIENT_BALANCE"
)

// OperationOutcome is the result of one attempted network action.
// Never mutated after creation.
type OperationOutcome struct {
	Kind           OperationKind
	Account        int
	Counterparty   string // recipient address or validator
	Success        bool
	Verified       bool
	Classification Classification
	Amount         int64 // nanos; observed delta for claims, may be <= 0
	Digest         string
	Attempts       int
	Err            error
	BalanceBefore  uint64
	BalanceAfter   uint64
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Aborted reports an operation abandoned by a stop request before anything
// was submitted. It has no classification and is never counted.
func (o OperationOutcome) Aborted() bool {
	return o.Classification == "" && o.Err != nil
}

// Duration is the wall time spent producing the outcome.
func (o OperationOutcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// ErrorText returns the error message or an empty string.
func (o OperationOutcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

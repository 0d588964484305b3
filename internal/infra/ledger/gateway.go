package ledger

import (
	"context"
	"fmt"

	"github.com/vietddude/cycler/internal/core/domain"
)

// Gateway is the boundary between the orchestrator and the remote ledger.
type Gateway interface {
	BalanceReader
	Submitter
	Claimer
}

// BalanceReader reads live balances.
type BalanceReader interface {
	// GetBalance returns the smallest-unit balance of address.
	// Failures wrap domain.ErrTransport.
	GetBalance(ctx context.Context, address string) (uint64, error)
}

// Submitter builds, signs and executes transactions.
type Submitter interface {
	// SubmitTransaction fails with *TransactionError or a transport error.
	SubmitTransaction(ctx context.Context, cred domain.Credential, spec TxSpec) (TxResult, error)
}

// Claimer performs resource-claim requests against the dispensing service.
type Claimer interface {
	// RequestClaim never fails for non-2xx responses; the caller inspects
	// Status and Body. Only transport failures are returned as errors.
	RequestClaim(ctx context.Context, address string, proxy *domain.ProxyDescriptor, userAgent string) (ClaimResponse, error)
}

type TxKind string

const (
	TxKindTransfer TxKind = "transfer"
	TxKindStake    TxKind = "stake"
)

// TxSpec describes one transaction to submit.
type TxSpec struct {
	Kind      TxKind
	Sender    string
	Recipient string // transfer only
	Validator string // stake only
	Amount    uint64
}

// TxResult is returned for an executed transaction.
type TxResult struct {
	Digest string
}

// ClaimResponse is the raw faucet reply.
type ClaimResponse struct {
	Status int
	Body   string
}

// OK reports a 2xx status.
func (r ClaimResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// TransactionError carries the ledger's rejection message.
type TransactionError struct {
	Digest  string
	Message string
}

func (e *TransactionError) Error() string {
	if e.Digest != "" {
		return fmt.Sprintf("transaction %s failed: %s", e.Digest, e.Message)
	}
	return fmt.Sprintf("transaction failed: %s", e.Message)
}

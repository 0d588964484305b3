// Package iota implements the ledger gateway against an IOTA fullnode
// (JSON-RPC) and its gas faucet (HTTP).
package iota

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/vietddude/cycler/internal/core/domain"
	"github.com/vietddude/cycler/internal/infra/ledger"
	"github.com/vietddude/cycler/internal/infra/rpc/provider"
)

// DefaultGasBudget is used when no budget is configured (0.05 IOTA).
const DefaultGasBudget uint64 = 50_000_000

const coinPageSize = 50

// Caller is the JSON-RPC surface the gateway needs.
type Caller interface {
	Call(ctx context.Context, method string, params []any, out any) error
}

// Gateway talks to one network.
type Gateway struct {
	rpc       Caller
	faucet    *FaucetClient
	gasBudget uint64
	log       *slog.Logger
}

var _ ledger.Gateway = (*Gateway)(nil)

// NewGateway creates a gateway. faucet may be nil on networks without one.
func NewGateway(rpc Caller, faucet *FaucetClient, gasBudget uint64) *Gateway {
	if gasBudget == 0 {
		gasBudget = DefaultGasBudget
	}
	return &Gateway{
		rpc:       rpc,
		faucet:    faucet,
		gasBudget: gasBudget,
		log:       slog.Default(),
	}
}

type balanceResult struct {
	CoinType     string `json:"coinType"`
	TotalBalance string `json:"totalBalance"`
}

// GetBalance implements ledger.BalanceReader.
func (g *Gateway) GetBalance(ctx context.Context, address string) (uint64, error) {
	var res balanceResult
	if err := g.rpc.Call(ctx, "iotax_getBalance", []any{address}, &res); err != nil {
		return 0, fmt.Errorf("%w: get balance of %s: %w", domain.ErrTransport, address, err)
	}
	bal, err := strconv.ParseUint(res.TotalBalance, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid balance %q: %w", domain.ErrTransport, res.TotalBalance, err)
	}
	return bal, nil
}

type coinPage struct {
	Data []struct {
		CoinObjectID string `json:"coinObjectId"`
		Balance      string `json:"balance"`
	} `json:"data"`
}

type txBytesResult struct {
	TxBytes string `json:"txBytes"`
}

type executeResult struct {
	Digest  string `json:"digest"`
	Effects *struct {
		Status struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"status"`
	} `json:"effects"`
}

// SubmitTransaction implements ledger.Submitter.
func (g *Gateway) SubmitTransaction(ctx context.Context, cred domain.Credential, spec ledger.TxSpec) (ledger.TxResult, error) {
	coins, err := g.gasCoins(ctx, spec.Sender)
	if err != nil {
		return ledger.TxResult{}, err
	}

	txBytes, err := g.build(ctx, spec, coins)
	if err != nil {
		return ledger.TxResult{}, err
	}

	raw, err := base64.StdEncoding.DecodeString(txBytes)
	if err != nil {
		return ledger.TxResult{}, &ledger.TransactionError{Message: fmt.Sprintf("invalid tx bytes: %v", err)}
	}
	sig := SignTransaction(cred, raw)

	var res executeResult
	err = g.rpc.Call(ctx, "iota_executeTransactionBlock", []any{
		txBytes,
		[]string{sig},
		map[string]bool{"showEffects": true},
		"WaitForLocalExecution",
	}, &res)
	if err != nil {
		return ledger.TxResult{}, rejection("execute", err)
	}
	if res.Effects == nil {
		return ledger.TxResult{}, &ledger.TransactionError{Digest: res.Digest, Message: "missing effects"}
	}
	if res.Effects.Status.Status != "success" {
		return ledger.TxResult{}, &ledger.TransactionError{Digest: res.Digest, Message: res.Effects.Status.Error}
	}

	g.log.Debug("Transaction executed", "kind", spec.Kind, "digest", res.Digest)
	return ledger.TxResult{Digest: res.Digest}, nil
}

// RequestClaim implements ledger.Claimer.
func (g *Gateway) RequestClaim(
	ctx context.Context,
	address string,
	proxy *domain.ProxyDescriptor,
	userAgent string,
) (ledger.ClaimResponse, error) {
	if g.faucet == nil {
		return ledger.ClaimResponse{}, fmt.Errorf("%w: no faucet configured", domain.ErrConfiguration)
	}
	return g.faucet.RequestClaim(ctx, address, proxy, userAgent)
}

func (g *Gateway) gasCoins(ctx context.Context, owner string) ([]string, error) {
	var page coinPage
	if err := g.rpc.Call(ctx, "iotax_getCoins", []any{owner, nil, nil, coinPageSize}, &page); err != nil {
		return nil, fmt.Errorf("%w: get coins of %s: %w", domain.ErrTransport, owner, err)
	}
	if len(page.Data) == 0 {
		return nil, &ledger.TransactionError{Message: "no coins available for gas"}
	}
	ids := make([]string, len(page.Data))
	for i, c := range page.Data {
		ids[i] = c.CoinObjectID
	}
	return ids, nil
}

func (g *Gateway) build(ctx context.Context, spec ledger.TxSpec, coins []string) (string, error) {
	amount := strconv.FormatUint(spec.Amount, 10)
	budget := strconv.FormatUint(g.gasBudget, 10)

	var (
		method string
		params []any
	)
	switch spec.Kind {
	case ledger.TxKindTransfer:
		method = "unsafe_payIota"
		params = []any{spec.Sender, coins, []string{spec.Recipient}, []string{amount}, budget}
	case ledger.TxKindStake:
		method = "unsafe_requestAddStake"
		params = []any{spec.Sender, coins, amount, spec.Validator, nil, budget}
	default:
		return "", fmt.Errorf("unknown transaction kind %q", spec.Kind)
	}

	var res txBytesResult
	if err := g.rpc.Call(ctx, method, params, &res); err != nil {
		return "", rejection("build "+string(spec.Kind), err)
	}
	return res.TxBytes, nil
}

// rejection maps JSON-RPC error objects to TransactionError and everything
// else to a transport error.
func rejection(stage string, err error) error {
	var rpcErr *provider.RPCError
	if errors.As(err, &rpcErr) {
		return &ledger.TransactionError{Message: fmt.Sprintf("%s: %s", stage, rpcErr.Message)}
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrTransport, stage, err)
}

package operation

import (
	"context"
	"crypto/ed25519"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/cycler/internal/core/domain"
	"github.com/vietddude/cycler/internal/core/pacing"
	"github.com/vietddude/cycler/internal/core/retry"
	"github.com/vietddude/cycler/internal/infra/ledger"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeGateway struct {
	mu          sync.Mutex
	balances    map[string]uint64
	balanceErr  error
	failFirst   int // number of submissions that fail before one succeeds
	alwaysFail  bool
	onBalance   func()
	submissions []ledger.TxSpec
}

func (g *fakeGateway) GetBalance(ctx context.Context, address string) (uint64, error) {
	if g.onBalance != nil {
		g.onBalance()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.balanceErr != nil {
		return 0, g.balanceErr
	}
	return g.balances[address], nil
}

func (g *fakeGateway) SubmitTransaction(ctx context.Context, cred domain.Credential, spec ledger.TxSpec) (ledger.TxResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submissions = append(g.submissions, spec)
	if g.alwaysFail || len(g.submissions) <= g.failFirst {
		return ledger.TxResult{}, &ledger.TransactionError{Message: "object version unavailable"}
	}
	return ledger.TxResult{Digest: "digest-1"}, nil
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

type nopCredential struct{}

func (nopCredential) PublicKey() ed25519.PublicKey { return make(ed25519.PublicKey, ed25519.PublicKeySize) }
func (nopCredential) Sign(digest []byte) []byte    { return make([]byte, ed25519.SignatureSize) }

var (
	alice = domain.Account{Index: 1, Address: "0xa11ce", Credential: nopCredential{}}
	bob   = domain.Account{Index: 2, Address: "0xb0b", Credential: nopCredential{}}
)

func newTestRunner(gw Gateway, cfg Config) (*Runner, *recordingSleeper) {
	sleeper := &recordingSleeper{}
	return NewRunner(gw, cfg, Deps{Sleeper: sleeper, Rand: rand.New(rand.NewPCG(7, 9))}), sleeper
}

// =============================================================================
// Transfer
// =============================================================================

func TestTransfer_InsufficientBalanceSkipsSubmission(t *testing.T) {
	cfg := DefaultConfig()
	amount := uint64(5_000_000)
	// one nano short of amount + gas buffer
	gw := &fakeGateway{balances: map[string]uint64{alice.Address: amount + cfg.GasBufferNanos - 1}}
	r, _ := newTestRunner(gw, cfg)

	out := r.Transfer(context.Background(), alice, bob, amount)

	if len(gw.submissions) != 0 {
		t.Fatalf("Expected no submission, got %d", len(gw.submissions))
	}
	if out.Classification != domain.ClassInsufficientBalance {
		t.Errorf("Expected INSUFFICIENT_BALANCE, got %s", out.Classification)
	}
	if !errors.Is(out.Err, domain.ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", out.Err)
	}
}

func TestTransfer_ExactBalanceSubmits(t *testing.T) {
	cfg := DefaultConfig()
	amount := uint64(5_000_000)
	gw := &fakeGateway{balances: map[string]uint64{alice.Address: amount + cfg.GasBufferNanos}}
	r, _ := newTestRunner(gw, cfg)

	out := r.Transfer(context.Background(), alice, bob, amount)

	if out.Classification != domain.ClassRealSuccess || !out.Success {
		t.Fatalf("Expected success, got %+v", out)
	}
	if out.Amount != int64(amount) || out.Digest != "digest-1" {
		t.Errorf("unexpected outcome %+v", out)
	}
	if len(gw.submissions) != 1 {
		t.Fatalf("Expected 1 submission, got %d", len(gw.submissions))
	}
	spec := gw.submissions[0]
	if spec.Kind != ledger.TxKindTransfer || spec.Recipient != bob.Address || spec.Sender != alice.Address {
		t.Errorf("unexpected spec %+v", spec)
	}
}

func TestTransfer_RetriesThenSucceeds(t *testing.T) {
	gw := &fakeGateway{balances: map[string]uint64{alice.Address: 1_000_000_000}, failFirst: 2}
	r, sleeper := newTestRunner(gw, DefaultConfig())

	out := r.Transfer(context.Background(), alice, bob, 1_000_000)

	if out.Classification != domain.ClassRealSuccess {
		t.Fatalf("Expected success, got %s (%v)", out.Classification, out.Err)
	}
	if out.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", out.Attempts)
	}
	if len(sleeper.delays) != 2 || sleeper.delays[0] != 3*time.Second {
		t.Errorf("Expected two fixed 3s delays, got %v", sleeper.delays)
	}
}

func TestTransfer_ExhaustedRetries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retry = retry.Config{MaxAttempts: 4, Delay: time.Second}
	gw := &fakeGateway{balances: map[string]uint64{alice.Address: 1_000_000_000}, alwaysFail: true}
	r, sleeper := newTestRunner(gw, cfg)

	out := r.Transfer(context.Background(), alice, bob, 1_000_000)

	if out.Classification != domain.ClassHardFailure {
		t.Fatalf("Expected HARD_FAILURE, got %s", out.Classification)
	}
	if len(gw.submissions) != 4 || len(sleeper.delays) != 3 {
		t.Errorf("Expected 4 submissions and 3 delays, got %d / %d", len(gw.submissions), len(sleeper.delays))
	}
	var txErr *ledger.TransactionError
	if !errors.As(out.Err, &txErr) {
		t.Errorf("Expected last TransactionError to be kept, got %v", out.Err)
	}
	if !errors.Is(out.Err, domain.ErrHardFailure) {
		t.Errorf("Expected ErrHardFailure, got %v", out.Err)
	}
}

func TestTransfer_BalanceReadFailure(t *testing.T) {
	gw := &fakeGateway{balanceErr: errors.New("timeout")}
	r, _ := newTestRunner(gw, DefaultConfig())

	out := r.Transfer(context.Background(), alice, bob, 1)
	if out.Classification != domain.ClassHardFailure || !errors.Is(out.Err, domain.ErrTransport) {
		t.Errorf("Expected transport hard failure, got %s / %v", out.Classification, out.Err)
	}
	if len(gw.submissions) != 0 {
		t.Error("nothing may be submitted without a balance")
	}
}

// =============================================================================
// Stake
// =============================================================================

func TestStake_ReservePrecheck(t *testing.T) {
	cfg := DefaultConfig()
	amount := uint64(2_000_000_000)
	gw := &fakeGateway{balances: map[string]uint64{alice.Address: amount + cfg.StakeReserveNanos - 1}}
	r, _ := newTestRunner(gw, cfg)

	out := r.Stake(context.Background(), alice, "0xval", amount)
	if out.Classification != domain.ClassInsufficientBalance || len(gw.submissions) != 0 {
		t.Errorf("Expected insufficient balance without submission, got %s / %d", out.Classification, len(gw.submissions))
	}
}

func TestStakeAll_SequentialWithDelays(t *testing.T) {
	gw := &fakeGateway{balances: map[string]uint64{alice.Address: 100_000_000_000}}
	r, sleeper := newTestRunner(gw, DefaultConfig())

	validators := []string{"0xv1", "0xv2", "0xv3"}
	var recorded []domain.OperationOutcome
	err := r.StakeAll(context.Background(), alice, validators, func(o domain.OperationOutcome) {
		recorded = append(recorded, o)
	})
	if err != nil {
		t.Fatalf("StakeAll failed: %v", err)
	}

	if len(recorded) != 3 {
		t.Fatalf("Expected 3 outcomes, got %d", len(recorded))
	}
	for i, spec := range gw.submissions {
		if spec.Kind != ledger.TxKindStake || spec.Validator != validators[i] {
			t.Errorf("submission %d: unexpected spec %+v", i, spec)
		}
		if spec.Amount < 1_000_000_000 || spec.Amount > 3_000_000_000 {
			t.Errorf("stake amount %d outside [1, 3] IOTA", spec.Amount)
		}
	}
	if len(sleeper.delays) != 2 {
		t.Fatalf("Expected 2 inter-stake delays, got %v", sleeper.delays)
	}
	for _, d := range sleeper.delays {
		if d < 2*time.Second || d > 7*time.Second {
			t.Errorf("stake delay %v outside [2s, 7s]", d)
		}
	}
}

func TestStakeAll_StopCheckedPerValidator(t *testing.T) {
	stop := pacing.NewStopFlag()
	gw := &fakeGateway{balances: map[string]uint64{alice.Address: 100_000_000_000}}
	r := NewRunner(gw, DefaultConfig(), Deps{Sleeper: &recordingSleeper{}, Stop: stop})

	err := r.StakeAll(context.Background(), alice, []string{"0xv1", "0xv2"}, func(o domain.OperationOutcome) {
		stop.Request()
	})
	if !errors.Is(err, pacing.ErrStopRequested) {
		t.Errorf("Expected ErrStopRequested, got %v", err)
	}
	if len(gw.submissions) != 1 {
		t.Errorf("in-flight stake completes, next one never starts: got %d submissions", len(gw.submissions))
	}
}

// =============================================================================
// Amounts
// =============================================================================

func TestAmountRange_PickWithinBoundsAndPrecision(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 1))
	r := AmountRange{Min: 0.001, Max: 0.01}
	lo, hi := decimal.NewFromFloat(0.001), decimal.NewFromFloat(0.01)

	for i := 0; i < 2000; i++ {
		v := r.Pick(rnd)
		if v.LessThan(lo) || v.GreaterThan(hi) {
			t.Fatalf("amount %s outside [0.001, 0.01]", v)
		}
		if !v.Equal(v.Round(AmountPrecision)) {
			t.Fatalf("amount %s has more than 6 decimals", v)
		}
		n := ToNanos(v)
		if n%1000 != 0 {
			t.Fatalf("nanos %d not aligned to 6 decimals", n)
		}
	}
}

func TestToNanosAndFormat(t *testing.T) {
	if got := ToNanos(decimal.RequireFromString("1.5")); got != 1_500_000_000 {
		t.Errorf("ToNanos(1.5) = %d", got)
	}
	if got := ToNanos(decimal.RequireFromString("-1")); got != 0 {
		t.Errorf("negative amounts clamp to 0, got %d", got)
	}
	if got := FormatIOTA(50_000_000); got != "0.050000" {
		t.Errorf("FormatIOTA = %s", got)
	}
}

// =============================================================================
// Stop requests
// =============================================================================

func TestTransfer_StopDuringBalanceReadIsNotCounted(t *testing.T) {
	stop := pacing.NewStopFlag()
	gw := &fakeGateway{
		balances:  map[string]uint64{alice.Address: 10_000_000_000},
		onBalance: stop.Request,
	}
	r := NewRunner(gw, DefaultConfig(), Deps{Sleeper: &recordingSleeper{}, Stop: stop})

	out := r.Transfer(context.Background(), alice, bob, 5_000_000)

	if len(gw.submissions) != 0 {
		t.Fatalf("Expected no submission after stop, got %d", len(gw.submissions))
	}
	if !out.Aborted() {
		t.Fatalf("Expected an aborted outcome, got %+v", out)
	}
	if out.Classification != "" || out.Attempts != 0 {
		t.Errorf("aborted outcome must be unclassified, got %s after %d attempts", out.Classification, out.Attempts)
	}
	if !errors.Is(out.Err, pacing.ErrStopRequested) {
		t.Errorf("Expected ErrStopRequested, got %v", out.Err)
	}

	stats := domain.NewCycleStatistics("c", domain.CycleModeCircular, time.Time{})
	stats.Record(out)
	if stats.Transfers != (domain.Counters{}) {
		t.Errorf("aborted transfer must not be counted, got %+v", stats.Transfers)
	}
}

func TestStakeAll_StopDuringBalanceRead(t *testing.T) {
	stop := pacing.NewStopFlag()
	gw := &fakeGateway{
		balances:  map[string]uint64{alice.Address: 100_000_000_000},
		onBalance: stop.Request,
	}
	r := NewRunner(gw, DefaultConfig(), Deps{Sleeper: &recordingSleeper{}, Stop: stop})

	var recorded []domain.OperationOutcome
	err := r.StakeAll(context.Background(), alice, []string{"0xv1", "0xv2"}, func(o domain.OperationOutcome) {
		recorded = append(recorded, o)
	})
	if !errors.Is(err, pacing.ErrStopRequested) {
		t.Fatalf("Expected ErrStopRequested, got %v", err)
	}
	if len(recorded) != 0 || len(gw.submissions) != 0 {
		t.Errorf("Expected nothing recorded or submitted, got %d outcomes and %d submissions", len(recorded), len(gw.submissions))
	}
}

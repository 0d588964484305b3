// Package control wires the orchestrator together and supervises the
// long-running cycle loop.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vietddude/cycler/internal/claim"
	"github.com/vietddude/cycler/internal/core/config"
	"github.com/vietddude/cycler/internal/core/domain"
	"github.com/vietddude/cycler/internal/core/pacing"
	"github.com/vietddude/cycler/internal/core/wallet"
	"github.com/vietddude/cycler/internal/cycle"
	"github.com/vietddude/cycler/internal/infra/health"
	"github.com/vietddude/cycler/internal/infra/ledger"
	"github.com/vietddude/cycler/internal/infra/ledger/iota"
	"github.com/vietddude/cycler/internal/infra/metrics"
	redisclient "github.com/vietddude/cycler/internal/infra/redis"
	"github.com/vietddude/cycler/internal/infra/rpc"
	"github.com/vietddude/cycler/internal/operation"
)

// App is the main application struct that owns every component.
type App struct {
	cfg       *config.AppConfig
	network   domain.Network
	mode      domain.CycleMode
	loader    *wallet.Loader
	gateway   ledger.Gateway
	rpcClient *rpc.Client
	claims    *claim.Engine
	runner    *operation.Runner
	scheduler *cycle.Scheduler
	store     config.LoopStore

	supervisor   *Supervisor
	healthServer *health.Server
	redisClient  *redisclient.Client
	stop         *pacing.StopFlag
	log          *slog.Logger
}

// Options override collaborators, mostly for tests.
type Options struct {
	Gateway ledger.Gateway
	Store   config.LoopStore
	Display Display
	Sleeper pacing.Sleeper
	Rand    pacing.Rand
}

// NewApp creates an App with all dependencies initialized.
func NewApp(cfg *config.AppConfig, opts Options) (*App, error) {
	network, err := domain.ParseNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	mode, err := domain.ParseCycleMode(cfg.Cycle.Mode)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		network: network,
		mode:    mode,
		loader:  wallet.NewLoader(cfg.Files.Files, network),
		stop:    pacing.NewStopFlag(),
		log:     slog.Default(),
	}

	// 1. Ledger gateway
	a.gateway = opts.Gateway
	if a.gateway == nil {
		a.rpcClient, err = rpc.NewClient(cfg.RPC)
		if err != nil {
			return nil, fmt.Errorf("failed to init rpc client: %w", err)
		}

		var faucet *iota.FaucetClient
		if network.HasFaucet() || cfg.Faucet.URL != "" {
			faucet, err = iota.NewFaucetClient(network, cfg.Faucet.URL, cfg.Faucet.Timeout)
			if err != nil {
				return nil, err
			}
		}
		a.gateway = iota.NewGateway(a.rpcClient, faucet, cfg.RPC.GasBudget)
	}

	// 2. Loop record store
	a.store = opts.Store
	if a.store == nil {
		a.store, err = a.newLoopStore()
		if err != nil {
			return nil, err
		}
	}

	// 3. Engines
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = pacing.NewSleeper(a.stop)
	}
	a.claims = claim.NewEngine(a.gateway, cfg.ClaimConfig(), claim.Deps{
		Sleeper: sleeper,
		Rand:    opts.Rand,
		Stop:    a.stop,
	})
	a.runner = operation.NewRunner(a.gateway, cfg.OperationConfig(), operation.Deps{
		Sleeper: sleeper,
		Rand:    opts.Rand,
		Stop:    a.stop,
	})
	a.scheduler = cycle.NewScheduler(a.runner, a.claims, cfg.SchedulerConfig(), cycle.Deps{
		Sleeper:   sleeper,
		Rand:      opts.Rand,
		Stop:      a.stop,
		OnOutcome: recordOutcome,
	})

	// 4. Supervisor and health endpoints
	display := opts.Display
	if display == nil {
		display = NewConsoleDisplay()
	}
	a.supervisor = NewSupervisor(a, a.store, SupervisorConfig{
		FallbackDelay: cfg.Cycle.FallbackDelay,
		CountdownTick: cfg.Cycle.CountdownTick,
	}, SupervisorDeps{
		Stop:    a.stop,
		Sleeper: sleeper,
		Display: display,
	})

	if cfg.Server.Enabled {
		var providers health.ProviderSource
		if a.rpcClient != nil {
			providers = a.rpcClient
		}
		a.healthServer = health.NewServer(a.supervisor, providers, cfg.Server.Port)
	}

	return a, nil
}

func (a *App) newLoopStore() (config.LoopStore, error) {
	if a.cfg.Redis.URL == "" {
		return config.NewFileStore(a.cfg.Files.LoopConfig), nil
	}

	client, err := redisclient.NewClient(redisclient.Config{
		URL:      a.cfg.Redis.URL,
		Password: a.cfg.Redis.Password,
	})
	if err != nil {
		a.log.Warn("Failed to connect to Redis, using loop config file", "error", err)
		return config.NewFileStore(a.cfg.Files.LoopConfig), nil
	}
	a.redisClient = client
	a.log.Info("Using Redis loop config store", "key", a.cfg.Redis.Key)
	return redisclient.NewLoopStore(client, a.cfg.Redis.Key), nil
}

// Start starts the health server and the supervisor loop.
func (a *App) Start(ctx context.Context) error {
	if a.healthServer != nil {
		go func() {
			if err := a.healthServer.Start(); err != nil {
				a.log.Error("Health server failed", "error", err)
			}
		}()
	}
	return a.supervisor.Start(ctx)
}

// Stop stops the supervisor and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping cycler...")

	var errs []error
	if err := a.supervisor.Stop(ctx); err != nil {
		errs = append(errs, err)
	}

	a.Close()

	// Stop Health Server
	if a.healthServer != nil {
		if err := a.healthServer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases the ledger and store connections. Used directly by
// one-shot commands that never start the supervisor.
func (a *App) Close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
		a.redisClient = nil
	}
	if a.rpcClient != nil {
		_ = a.rpcClient.Close()
		a.rpcClient = nil
	}
}

// RequestStop sets the cooperative stop flag without waiting.
func (a *App) RequestStop() {
	a.stop.Request()
}

// Supervisor returns the loop supervisor.
func (a *App) Supervisor() *Supervisor {
	return a.supervisor
}

// Store returns the loop record store.
func (a *App) Store() config.LoopStore {
	return a.store
}

// Network returns the configured network.
func (a *App) Network() domain.Network {
	return a.network
}

// RunCycle implements CycleRunner with the configured mode.
func (a *App) RunCycle(ctx context.Context, loop config.LoopConfig) (*domain.CycleStatistics, error) {
	return a.run(ctx, a.mode, loop)
}

// RunClaims runs one faucet pass over the pool.
func (a *App) RunClaims(ctx context.Context) (*domain.CycleStatistics, error) {
	loop := config.DefaultLoopConfig()
	loop.AutoLoop.EnableStaking = false
	return a.run(ctx, domain.CycleModeFaucet, loop)
}

func (a *App) run(ctx context.Context, mode domain.CycleMode, loop config.LoopConfig) (*domain.CycleStatistics, error) {
	pool, err := a.loader.LoadPool()
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: no valid accounts in %s", domain.ErrConfiguration, a.cfg.Files.PrivateKeys)
	}

	plan := cycle.Plan{
		Mode:       mode,
		Claim:      loop.AutoLoop.EnableFaucet,
		Stake:      loop.AutoLoop.EnableStaking && mode != domain.CycleModeFaucet,
		UserAgents: a.loader.LoadUserAgents(),
	}
	if (plan.Claim || mode == domain.CycleModeFaucet) && !a.network.HasFaucet() && a.cfg.Faucet.URL == "" {
		return nil, fmt.Errorf("%w: network %s has no faucet", domain.ErrConfiguration, a.network)
	}
	if plan.Stake {
		plan.Validators, err = a.loader.LoadValidators()
		if err != nil {
			return nil, err
		}
		if len(plan.Validators) == 0 {
			return nil, fmt.Errorf("%w: staking enabled but no validators configured", domain.ErrConfiguration)
		}
	}

	return a.scheduler.Run(ctx, pool, plan)
}

// AccountBalance is one row of the balance report.
type AccountBalance struct {
	Account domain.Account
	Balance uint64
	Err     error
}

// Balances reads the live balance of every account.
func (a *App) Balances(ctx context.Context) ([]AccountBalance, error) {
	pool, err := a.loader.LoadPool()
	if err != nil {
		return nil, err
	}

	rows := make([]AccountBalance, 0, len(pool))
	for _, acct := range pool {
		if err := a.stop.Check(); err != nil {
			return rows, err
		}
		bal, err := a.gateway.GetBalance(ctx, acct.Address)
		rows = append(rows, AccountBalance{Account: acct, Balance: bal, Err: err})
	}
	return rows, nil
}

func recordOutcome(o domain.OperationOutcome) {
	metrics.OperationsTotal.WithLabelValues(string(o.Kind), strings.ToLower(string(o.Classification))).Inc()
	if o.Attempts > 1 {
		metrics.RetriesTotal.WithLabelValues(string(o.Kind)).Add(float64(o.Attempts - 1))
	}
}

// ShutdownTimeout bounds how long Stop waits for the in-flight unit of work.
const ShutdownTimeout = 2 * time.Minute

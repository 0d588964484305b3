package config

import (
	"time"

	"github.com/vietddude/cycler/internal/claim"
	"github.com/vietddude/cycler/internal/core/pacing"
	"github.com/vietddude/cycler/internal/core/retry"
	"github.com/vietddude/cycler/internal/core/wallet"
	"github.com/vietddude/cycler/internal/cycle"
	"github.com/vietddude/cycler/internal/infra/rpc"
	"github.com/vietddude/cycler/internal/operation"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Network  string         `yaml:"network"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Files    FilesConfig    `yaml:"files"`
	RPC      rpc.Config     `yaml:"rpc"`
	Faucet   FaucetConfig   `yaml:"faucet"`
	Transfer TransferConfig `yaml:"transfer"`
	Stake    StakeConfig    `yaml:"stake"`
	Pacing   PacingConfig   `yaml:"pacing"`
	Cycle    CycleConfig    `yaml:"cycle"`
	Redis    RedisConfig    `yaml:"redis"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port    int  `yaml:"port"`
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// FilesConfig locates pool inputs and the loop record.
type FilesConfig struct {
	wallet.Files `yaml:",inline"`
	LoopConfig   string `yaml:"loop_config"`
}

// FaucetConfig is the claim policy plus an optional faucet URL override.
type FaucetConfig struct {
	URL          string `yaml:"url"`
	claim.Config `yaml:",inline"`
}

// TransferConfig holds transfer counts, amounts and retry policy.
type TransferConfig struct {
	CircularPerAccount    int    `yaml:"circular_per_account"`
	PairwisePerAccount    int    `yaml:"pairwise_per_account"`
	GasBufferNanos        uint64 `yaml:"gas_buffer_nanos"`
	operation.AmountRange `yaml:",inline"`
	retry.Config          `yaml:",inline"`
}

// StakeConfig holds stake amounts and pacing.
type StakeConfig struct {
	operation.AmountRange `yaml:",inline"`
	ReserveNanos          uint64       `yaml:"reserve_nanos"`
	Delay                 pacing.Range `yaml:"delay"`
}

// PacingConfig holds the randomized waits of a cycle.
type PacingConfig struct {
	TransferDelay      pacing.Range  `yaml:"transfer_delay"`
	AccountDelay       pacing.Range  `yaml:"account_delay"`
	PhaseDelay         pacing.Range  `yaml:"phase_delay"`
	FaucetAccountDelay time.Duration `yaml:"faucet_account_delay"`
}

// CycleConfig holds supervisor settings.
type CycleConfig struct {
	Mode          string        `yaml:"mode"` // circular, pairwise, faucet
	FallbackDelay time.Duration `yaml:"fallback_delay"`
	CountdownTick time.Duration `yaml:"countdown_tick"`
}

// RedisConfig selects the Redis loop store when URL is set.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Key      string `yaml:"key"`
}

// Default returns the configuration used for keys absent from the file.
func Default() AppConfig {
	op := operation.DefaultConfig()
	sched := cycle.DefaultConfig()

	return AppConfig{
		Network: "testnet",
		Server:  ServerConfig{Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Files: FilesConfig{
			Files: wallet.Files{
				PrivateKeys: "pk.txt",
				Proxies:     "proxy.txt",
				Validators:  "validators.txt",
				UserAgents:  "user_agents.txt",
			},
			LoopConfig: "loop-config.json",
		},
		RPC: rpc.Config{
			Timeout:           30 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
			GasBudget:         50_000_000,
		},
		Faucet: FaucetConfig{Config: claim.DefaultConfig()},
		Transfer: TransferConfig{
			CircularPerAccount: sched.CircularTransfers,
			PairwisePerAccount: sched.PairwiseTransfers,
			GasBufferNanos:     op.GasBufferNanos,
			AmountRange:        op.Transfer,
			Config:             op.Retry,
		},
		Stake: StakeConfig{
			AmountRange:  op.Stake,
			ReserveNanos: op.StakeReserveNanos,
			Delay:        op.StakeDelay,
		},
		Pacing: PacingConfig{
			TransferDelay:      sched.TransferDelay,
			AccountDelay:       sched.AccountDelay,
			PhaseDelay:         sched.PhaseDelay,
			FaucetAccountDelay: sched.FaucetAccountDelay,
		},
		Cycle: CycleConfig{
			Mode:          "circular",
			FallbackDelay: 60 * time.Second,
			CountdownTick: time.Second,
		},
		Redis: RedisConfig{Key: "cycler:loop-config"},
	}
}

// ClaimConfig returns the claim engine policy.
func (c *AppConfig) ClaimConfig() claim.Config {
	return c.Faucet.Config
}

// OperationConfig returns the transfer/stake runner policy.
func (c *AppConfig) OperationConfig() operation.Config {
	return operation.Config{
		Transfer:          c.Transfer.AmountRange,
		Stake:             c.Stake.AmountRange,
		GasBufferNanos:    c.Transfer.GasBufferNanos,
		StakeReserveNanos: c.Stake.ReserveNanos,
		StakeDelay:        c.Stake.Delay,
		Retry:             c.Transfer.Config,
	}
}

// SchedulerConfig returns the cycle scheduler policy.
func (c *AppConfig) SchedulerConfig() cycle.Config {
	return cycle.Config{
		CircularTransfers:  c.Transfer.CircularPerAccount,
		PairwiseTransfers:  c.Transfer.PairwisePerAccount,
		TransferDelay:      c.Pacing.TransferDelay,
		AccountDelay:       c.Pacing.AccountDelay,
		PhaseDelay:         c.Pacing.PhaseDelay,
		FaucetAccountDelay: c.Pacing.FaucetAccountDelay,
	}
}

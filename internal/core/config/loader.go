package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/cycler/internal/core/domain"
	"github.com/vietddude/cycler/internal/infra/rpc"
)

// Load reads configuration from a YAML file. Keys missing from the file keep
// their Default values.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of the defaults.
func Parse(data []byte) (*AppConfig, error) {
	cfg := Default()

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if len(cfg.RPC.Providers) == 0 {
		network, err := domain.ParseNetwork(cfg.Network)
		if err == nil {
			cfg.RPC.Providers = append(cfg.RPC.Providers, defaultProvider(network))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would break a cycle at run time.
func (c *AppConfig) Validate() error {
	if _, err := domain.ParseNetwork(c.Network); err != nil {
		return err
	}
	if _, err := domain.ParseCycleMode(c.Cycle.Mode); err != nil {
		return err
	}

	ranges := map[string]bool{
		"stake.delay":           c.Stake.Delay.Valid(),
		"pacing.transfer_delay": c.Pacing.TransferDelay.Valid(),
		"pacing.account_delay":  c.Pacing.AccountDelay.Valid(),
		"pacing.phase_delay":    c.Pacing.PhaseDelay.Valid(),
		"faucet.backoff":        c.Faucet.Backoff.Valid(),
	}
	for name, ok := range ranges {
		if !ok {
			return fmt.Errorf("%w: %s must satisfy 0 <= min <= max", domain.ErrConfiguration, name)
		}
	}

	if !c.Transfer.AmountRange.Valid() {
		return fmt.Errorf("%w: transfer amounts must satisfy 0 < min_amount <= max_amount", domain.ErrConfiguration)
	}
	if !c.Stake.AmountRange.Valid() {
		return fmt.Errorf("%w: stake amounts must satisfy 0 < min_amount <= max_amount", domain.ErrConfiguration)
	}
	if c.Transfer.MaxAttempts < 1 {
		return fmt.Errorf("%w: transfer.retries must be at least 1", domain.ErrConfiguration)
	}
	if c.Faucet.HardFailureLimit < 1 || c.Faucet.TargetSuccesses < 1 {
		return fmt.Errorf("%w: faucet.hard_failure_limit and faucet.target_successes must be at least 1", domain.ErrConfiguration)
	}
	return nil
}

func defaultProvider(network domain.Network) rpc.ProviderConfig {
	return rpc.ProviderConfig{Name: string(network) + "-fullnode", URL: domain.NetworkFullnodeURL[network]}
}

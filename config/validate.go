package config

import (
	"fmt"
	"strings"

	"rebasechain/native/policy"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Validate checks the daemon configuration for values that cannot be served.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: missing")
	}
	if _, err := cfg.Admin(); err != nil {
		return err
	}
	if _, _, err := cfg.OrchestratorIdentity(); err != nil {
		return err
	}
	supply, err := cfg.GenesisSupply()
	if err != nil {
		return err
	}
	if supply.Cmp(policy.MaxSupply()) > 0 {
		return fmt.Errorf("config: InitialSupply exceeds max supply")
	}
	switch strings.ToLower(cfg.History.Driver) {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("config: history.Driver %q unsupported", cfg.History.Driver)
	}
	if strings.TrimSpace(cfg.History.DSN) == "" {
		return fmt.Errorf("config: history.DSN required")
	}
	if cfg.RateLimit.RequestsPerSecond < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("config: rate_limit values must be non-negative")
	}
	if _, err := cfg.RateLimit.Proxies(); err != nil {
		return err
	}
	if cfg.Orchestrator.PollInterval.Duration <= 0 {
		return fmt.Errorf("config: orchestrator.PollInterval must be positive")
	}
	if cfg.Orchestrator.Enabled && strings.TrimSpace(cfg.OrchestratorAddress) == "" {
		return fmt.Errorf("config: orchestrator.Enabled requires OrchestratorAddress")
	}
	if cfg.Logging.MaxSizeMB < 0 || cfg.Logging.MaxBackups < 0 || cfg.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("config: logging rotation values must be non-negative")
	}
	return nil
}

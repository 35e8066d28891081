package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Config is the rebased daemon configuration.
type Config struct {
	ServiceName         string `toml:"ServiceName"`
	Environment         string `toml:"Environment"`
	DataDir             string `toml:"DataDir"`
	Token               string `toml:"Token"`
	InitialSupply       string `toml:"InitialSupply"`
	AdminAddress        string `toml:"AdminAddress"`
	OrchestratorAddress string `toml:"OrchestratorAddress"`
	ParamsFile          string `toml:"ParamsFile"`

	HTTP         HTTP         `toml:"http"`
	Logging      Logging      `toml:"logging"`
	Telemetry    Telemetry    `toml:"telemetry"`
	History      History      `toml:"history"`
	Auth         Auth         `toml:"auth"`
	RateLimit    RateLimit    `toml:"rate_limit"`
	Orchestrator Orchestrator `toml:"orchestrator"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err = createDefault(path)
		if err != nil {
			return nil, err
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh installation.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "rebased"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "dev"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./rebase-data"
	}
	if strings.TrimSpace(cfg.Token) == "" {
		cfg.Token = "AMPL"
	}
	if strings.TrimSpace(cfg.InitialSupply) == "" {
		cfg.InitialSupply = "0"
	}
	if cfg.HTTP.ListenAddress == "" {
		cfg.HTTP.ListenAddress = ":7080"
	}
	if cfg.HTTP.ReadHeaderTimeout.Duration == 0 {
		cfg.HTTP.ReadHeaderTimeout.Duration = 5 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout.Duration == 0 {
		cfg.HTTP.ShutdownTimeout.Duration = 10 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 3
	}
	if cfg.Logging.MaxAgeDays == 0 {
		cfg.Logging.MaxAgeDays = 28
	}
	if cfg.History.Driver == "" {
		cfg.History.Driver = DriverSQLite
	}
	if cfg.History.DSN == "" && cfg.History.Driver == DriverSQLite {
		cfg.History.DSN = filepath.Join(cfg.DataDir, "history.db")
	}
	if cfg.Auth.HMACSecretEnv == "" {
		cfg.Auth.HMACSecretEnv = "REBASED_JWT_SECRET"
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "rebased"
	}
	if cfg.Auth.AllowedClockSkew.Duration == 0 {
		cfg.Auth.AllowedClockSkew.Duration = 30 * time.Second
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 20
	}
	if cfg.Orchestrator.PollInterval.Duration == 0 {
		cfg.Orchestrator.PollInterval.Duration = 30 * time.Second
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Admin returns the configured policy admin identity.
func (c *Config) Admin() (ethcommon.Address, error) {
	return parseAddress("AdminAddress", c.AdminAddress)
}

// OrchestratorIdentity returns the configured orchestrator identity and
// whether one is set.
func (c *Config) OrchestratorIdentity() (ethcommon.Address, bool, error) {
	if strings.TrimSpace(c.OrchestratorAddress) == "" {
		return ethcommon.Address{}, false, nil
	}
	addr, err := parseAddress("OrchestratorAddress", c.OrchestratorAddress)
	if err != nil {
		return ethcommon.Address{}, false, err
	}
	return addr, true, nil
}

// GenesisSupply parses InitialSupply as a non-negative base-10 integer.
func (c *Config) GenesisSupply() (*big.Int, error) {
	raw := strings.TrimSpace(c.InitialSupply)
	if raw == "" {
		return big.NewInt(0), nil
	}
	supply, ok := new(big.Int).SetString(raw, 10)
	if !ok || supply.Sign() < 0 {
		return nil, fmt.Errorf("config: InitialSupply %q must be a non-negative integer", c.InitialSupply)
	}
	return supply, nil
}

// Secret resolves the HMAC secret, preferring the environment variable.
func (a Auth) Secret() (string, error) {
	if env := strings.TrimSpace(a.HMACSecretEnv); env != "" {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			return value, nil
		}
	}
	if secret := strings.TrimSpace(a.HMACSecret); secret != "" {
		return secret, nil
	}
	return "", fmt.Errorf("config: auth secret not configured (set %s or auth.HMACSecret)", a.HMACSecretEnv)
}

func parseAddress(field, raw string) (ethcommon.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ethcommon.Address{}, fmt.Errorf("config: %s required", field)
	}
	if !ethcommon.IsHexAddress(trimmed) {
		return ethcommon.Address{}, fmt.Errorf("config: %s %q is not a hex address", field, raw)
	}
	return ethcommon.HexToAddress(trimmed), nil
}

// Package config loads service configuration from the environment and
// optional YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Chain    ChainConfig
	Purchase PurchaseConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST,default=0.0.0.0"`
	Port            int           `env:"SERVER_PORT,default=8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
}

// DatabaseConfig configures the purchase journal store. An empty DSN selects
// the in-memory store.
type DatabaseConfig struct {
	Driver          string `env:"DATABASE_DRIVER,default=postgres"`
	DSN             string `env:"DATABASE_DSN,default="`
	MaxOpenConns    int    `env:"DATABASE_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int    `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime int    `env:"DATABASE_CONN_MAX_LIFETIME,default=300"` // seconds
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
	Output string `env:"LOG_OUTPUT,default=stdout"`
}

// ChainConfig configures the Neo N3 RPC client and contract bindings.
type ChainConfig struct {
	RPCURL        string        `env:"CHAIN_RPC_URL,default=http://localhost:20332"`
	NetworkID     uint32        `env:"CHAIN_NETWORK_ID,default=894710606"`
	Timeout       time.Duration `env:"CHAIN_TIMEOUT,default=30s"`
	TokenHash     string        `env:"CONTRACT_TOKEN_HASH,default="`
	LotteryHash   string        `env:"CONTRACT_LOTTERY_HASH,default="`
	TokenDecimals int32         `env:"TOKEN_DECIMALS,default=8"`
	ContractsFile string        `env:"CONTRACTS_FILE,default="`
}

// PurchaseConfig configures purchase flow behavior.
type PurchaseConfig struct {
	Account                string        `env:"PURCHASE_ACCOUNT,default="`
	RoundRefreshSpec       string        `env:"ROUND_REFRESH_SPEC,default=@every 1m"`
	BalanceRefreshInterval time.Duration `env:"BALANCE_REFRESH_INTERVAL,default=15s"`
	UnlimitedApproval      bool          `env:"UNLIMITED_APPROVAL,default=true"`
}

// ContractsFile mirrors the optional YAML contract-address file. Entries
// override the environment.
type ContractsFile struct {
	Contracts struct {
		Token   string `yaml:"token"`
		Lottery string `yaml:"lottery"`
	} `yaml:"contracts"`
	TokenDecimals int32 `yaml:"token_decimals"`
}

// Load reads configuration from a .env file (if present) and the
// environment, then applies the optional contracts file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if cfg.Chain.ContractsFile != "" {
		if err := cfg.applyContractsFile(cfg.Chain.ContractsFile); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) applyContractsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read contracts file: %w", err)
	}

	var file ContractsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse contracts file: %w", err)
	}

	if file.Contracts.Token != "" {
		c.Chain.TokenHash = file.Contracts.Token
	}
	if file.Contracts.Lottery != "" {
		c.Chain.LotteryHash = file.Contracts.Lottery
	}
	if file.TokenDecimals != 0 {
		c.Chain.TokenDecimals = file.TokenDecimals
	}
	return nil
}

// Validate checks that the configuration is complete enough to start.
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain RPC URL is required")
	}
	if c.Chain.TokenHash == "" {
		return fmt.Errorf("token contract hash is required")
	}
	if c.Chain.LotteryHash == "" {
		return fmt.Errorf("lottery contract hash is required")
	}
	if c.Purchase.Account == "" {
		return fmt.Errorf("purchase account is required")
	}
	return nil
}

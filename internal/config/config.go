package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// DeploymentConfig represents deployments.json: the chain artifacts the
// client needs to talk to the marketplace contracts.
type DeploymentConfig struct {
	ChainID   int64 `json:"chainId"`
	Contracts struct {
		Stablecoin  string `json:"Stablecoin"`
		Marketplace string `json:"Marketplace"`
	} `json:"contracts"`
	Stablecoin struct {
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	} `json:"stablecoin"`
}

// AppConfig ties together deployment info and derived values.
type AppConfig struct {
	Deployment  DeploymentConfig
	Backend     BackendConfig
	Chain       ChainConfig
	Session     SessionConfig
	Poll        PollConfig
	MetricsAddr string
}

type BackendConfig struct {
	BaseURL      string
	SpotPriceURL string
	QuoteTimeout time.Duration
}

type ChainConfig struct {
	RPCURL           string
	PrivateKey       string
	AllowanceTimeout time.Duration
}

type SessionConfig struct {
	StorePath   string
	PostgresDSN string
}

type PollConfig struct {
	Interval time.Duration
	MaxWait  time.Duration
}

const defaultDeploymentsPath = "deployments.json"

// Load aggregates configuration from disk and environment.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	deploymentsPath := envOr("DEPLOYMENTS_PATH", defaultDeploymentsPath)
	deployCfg, err := loadDeployments(deploymentsPath)
	if err != nil {
		return nil, fmt.Errorf("load deployments: %w", err)
	}

	backendCfg := BackendConfig{
		BaseURL:      envOr("BACKEND_BASE_URL", "http://localhost:3000/api"),
		SpotPriceURL: envOr("SPOT_PRICE_URL", ""),
		QuoteTimeout: time.Duration(envOrInt("QUOTE_TIMEOUT_SECONDS", 15)) * time.Second,
	}

	chainCfg := ChainConfig{
		RPCURL:           envOr("CHAIN_RPC_URL", "http://localhost:8545"),
		PrivateKey:       envOr("CHAIN_PRIVATE_KEY", ""),
		AllowanceTimeout: time.Duration(envOrInt("ALLOWANCE_TIMEOUT_SECONDS", 10)) * time.Second,
	}

	sessionCfg := SessionConfig{
		StorePath:   envOr("SESSION_STORE_PATH", filepath.Join(os.TempDir(), "giftrails-session.json")),
		PostgresDSN: envOr("SESSION_POSTGRES_DSN", ""),
	}

	pollCfg := PollConfig{
		Interval: time.Duration(envOrInt("MINT_POLL_INTERVAL_SECONDS", 10)) * time.Second,
		MaxWait:  time.Duration(envOrInt("MINT_POLL_MAX_WAIT_SECONDS", 600)) * time.Second,
	}

	return &AppConfig{
		Deployment:  *deployCfg,
		Backend:     backendCfg,
		Chain:       chainCfg,
		Session:     sessionCfg,
		Poll:        pollCfg,
		MetricsAddr: envOr("METRICS_LISTEN_ADDR", ""),
	}, nil
}

func loadDeployments(path string) (*DeploymentConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg DeploymentConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rcollins22/rugchekr/internal/risk"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "json" or "text"

	// Block explorer (required for analysis)
	EtherscanAPIKey  string
	EtherscanBaseURL string
	EtherscanRPS     float64
	ChainID          int64

	// Optional providers
	BitqueryAPIKey     string
	BitqueryURL        string
	DexScreenerBaseURL string
	GoPlusBaseURL      string
	CoinGeckoBaseURL   string
	CoinGeckoPlatform  string
	RPCURL             string // enables on-chain owner/balance reads

	// Explanation generator
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Timing
	AnalysisTimeout time.Duration // global per-analysis deadline
	ProviderTimeout time.Duration
	HoneypotTimeout time.Duration

	// Risk level cut-offs on the 0-100 score
	RiskHighThreshold   int
	RiskMediumThreshold int

	// Storage
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)
	RedisURL    string // optional analysis cache
	CacheTTL    time.Duration

	// Edge
	RateLimitRPM   int
	AllowedOrigins []string
	OTLPEndpoint   string
}

// Defaults
const (
	DefaultPort               = "8080"
	DefaultEnv                = "development"
	DefaultLogLevel           = "info"
	DefaultEtherscanBaseURL   = "https://api.etherscan.io/v2/api"
	DefaultEtherscanRPS       = 5
	DefaultChainID            = 1
	DefaultBitqueryURL        = "https://streaming.bitquery.io/graphql"
	DefaultDexScreenerBaseURL = "https://api.dexscreener.com"
	DefaultGoPlusBaseURL      = "https://api.gopluslabs.io"
	DefaultCoinGeckoBaseURL   = "https://api.coingecko.com/api/v3"
	DefaultCoinGeckoPlatform  = "ethereum"
	DefaultOpenAIBaseURL      = "https://api.openai.com/v1"
	DefaultOpenAIModel        = "gpt-3.5-turbo"
	DefaultAnalysisTimeout    = 20 * time.Second
	DefaultProviderTimeout    = 8 * time.Second
	DefaultHoneypotTimeout    = 10 * time.Second
	DefaultCacheTTL           = 5 * time.Minute
	DefaultRateLimitRPM       = 60
	DefaultRiskHigh           = risk.DefaultHighThreshold
	DefaultRiskMedium         = risk.DefaultMediumThreshold
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:           os.Getenv("LOG_FORMAT"),
		EtherscanAPIKey:     os.Getenv("ETHERSCAN_API_KEY"),
		EtherscanBaseURL:    getEnv("ETHERSCAN_BASE_URL", DefaultEtherscanBaseURL),
		EtherscanRPS:        getEnvFloat("ETHERSCAN_RPS", DefaultEtherscanRPS),
		ChainID:             getEnvInt64("CHAIN_ID", DefaultChainID),
		BitqueryAPIKey:      os.Getenv("BITQUERY_API_KEY"),
		BitqueryURL:         getEnv("BITQUERY_URL", DefaultBitqueryURL),
		DexScreenerBaseURL:  getEnv("DEXSCREENER_BASE_URL", DefaultDexScreenerBaseURL),
		GoPlusBaseURL:       getEnv("GOPLUS_BASE_URL", DefaultGoPlusBaseURL),
		CoinGeckoBaseURL:    getEnv("COINGECKO_BASE_URL", DefaultCoinGeckoBaseURL),
		CoinGeckoPlatform:   getEnv("COINGECKO_PLATFORM", DefaultCoinGeckoPlatform),
		RPCURL:              os.Getenv("RPC_URL"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", DefaultOpenAIBaseURL),
		OpenAIModel:         getEnv("OPENAI_MODEL", DefaultOpenAIModel),
		AnalysisTimeout:     getEnvDuration("ANALYSIS_TIMEOUT", DefaultAnalysisTimeout),
		ProviderTimeout:     getEnvDuration("PROVIDER_TIMEOUT", DefaultProviderTimeout),
		HoneypotTimeout:     getEnvDuration("HONEYPOT_TIMEOUT", DefaultHoneypotTimeout),
		RiskHighThreshold:   int(getEnvInt64("RISK_HIGH_THRESHOLD", DefaultRiskHigh)),
		RiskMediumThreshold: int(getEnvInt64("RISK_MEDIUM_THRESHOLD", DefaultRiskMedium)),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		CacheTTL:            getEnvDuration("CACHE_TTL", DefaultCacheTTL),
		RateLimitRPM:        int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimitRPM)),
		AllowedOrigins:      getEnvList("ALLOWED_ORIGINS"),
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
		if cfg.IsProduction() {
			cfg.LogFormat = "json"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent. A
// missing explorer key is not an error here: the server still starts and
// each analysis reports the configuration problem.
func (c *Config) Validate() error {
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", c.Port)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	if c.AnalysisTimeout <= 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT must be positive")
	}
	if c.ProviderTimeout <= 0 || c.HoneypotTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT and HONEYPOT_TIMEOUT must be positive")
	}
	if c.ProviderTimeout > c.AnalysisTimeout || c.HoneypotTimeout > c.AnalysisTimeout {
		return fmt.Errorf("provider timeouts must not exceed ANALYSIS_TIMEOUT (%s)", c.AnalysisTimeout)
	}
	if c.EtherscanRPS <= 0 {
		return fmt.Errorf("ETHERSCAN_RPS must be positive")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive")
	}
	if c.RiskMediumThreshold <= 0 || c.RiskMediumThreshold >= c.RiskHighThreshold || c.RiskHighThreshold > 100 {
		return fmt.Errorf("risk thresholds must satisfy 0 < RISK_MEDIUM_THRESHOLD < RISK_HIGH_THRESHOLD <= 100, got %d and %d",
			c.RiskMediumThreshold, c.RiskHighThreshold)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative")
	}
	return nil
}

// HasExplorerKey reports whether the block-explorer credential is set.
func (c *Config) HasExplorerKey() bool {
	return c.EtherscanAPIKey != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15s") or bare seconds ("15").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

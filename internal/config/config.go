// Package config loads the server configuration from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

// Config is the complete server configuration
type Config struct {
	Port              int           `yaml:"port"`
	DBPath            string        `yaml:"db-path"`
	AdminWallet       string        `yaml:"admin-wallet"`
	LogLevel          string        `yaml:"log-level"`
	LogFormat         string        `yaml:"log-format"`
	HTTPLogging       bool          `yaml:"http-logging"`
	AllowedOrigins    []string      `yaml:"allowed-origins"`
	TrustWalletHeader bool          `yaml:"trust-wallet-header"`
	SessionExpiry     time.Duration `yaml:"session-expiry"`
	ChallengeExpiry   time.Duration `yaml:"challenge-expiry"`
	StatusInterval    time.Duration `yaml:"status-interval"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Port:            8080,
		DBPath:          "blockvote.db",
		LogLevel:        "info",
		LogFormat:       "text",
		SessionExpiry:   24 * time.Hour,
		ChallengeExpiry: 5 * time.Minute,
		StatusInterval:  time.Second,
	}
}

// LoadFile reads path over the defaults. Unknown keys are rejected.
func LoadFile(path string) (Config, error) {
	config := Default()

	file, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.SetStrict(true)
	if err := decoder.Decode(&config); err != nil {
		return config, fmt.Errorf("parse %s: %w", path, err)
	}

	return config, nil
}

// Admin returns the configured administrator wallet
func (c Config) Admin() common.Address {
	return common.HexToAddress(c.AdminWallet)
}

// Addr returns the listen address
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate reports the first problem that would prevent startup
func (c Config) Validate() error {
	if !common.IsHexAddress(c.AdminWallet) || c.Admin() == (common.Address{}) {
		return fmt.Errorf("admin-wallet must be a non-zero hex address, got %q", c.AdminWallet)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db-path must be set")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log-level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log-format %q", c.LogFormat)
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"session-expiry", c.SessionExpiry},
		{"challenge-expiry", c.ChallengeExpiry},
		{"status-interval", c.StatusInterval},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}

	return nil
}

// Package hostconfig reads the configuration for a period-host process from
// its environment.
package hostconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for a period-host process.
type Config struct {
	// Consensus network identity.
	ChainID     string
	ValidatorID string

	// CometBFT networking.
	P2PPort int
	RPCPort int
	DataDir string

	// Ed25519 identity key path. Validate requires it to be set; the
	// CometBFT node's validator key is loaded from CometBFT's own
	// priv-validator key file, not from this path.
	Ed25519KeyPath string

	// BLS identity key used to sign this validator's share of a
	// terminated round's result attestation (see pkg/attest). Empty
	// disables attestation entirely.
	BLSKeyPath string

	// Genesis participant roster (yaml), used to seed ConsensusParams.
	GenesisParticipantsPath string

	// Operator-facing surfaces.
	MetricsAddr string
	HealthAddr  string
	LogLevel    string

	// Audit trail database (see pkg/audit).
	DatabaseURL         string
	DatabaseMaxOpenConns int
	DatabaseMaxIdleConns int
	DatabaseConnMaxLifetime time.Duration
	DatabaseRequired    bool

	// BLS attestation domain tag. It is read from the environment but
	// not consulted elsewhere: pkg/attest always signs and verifies
	// under bls.DomainResult.
	AttestationDomain string
}

// Load reads configuration from environment variables.
//
// Required variables have no defaults and must be set explicitly; call
// Validate after Load to enforce that.
func Load() (*Config, error) {
	cfg := &Config{
		ChainID:     getEnv("PERIOD_HOST_CHAIN_ID", "period-host"),
		ValidatorID: getEnv("PERIOD_HOST_VALIDATOR_ID", ""),

		P2PPort: getEnvInt("PERIOD_HOST_P2P_PORT", 26656),
		RPCPort: getEnvInt("PERIOD_HOST_RPC_PORT", 26657),
		DataDir: getEnv("PERIOD_HOST_DATA_DIR", "./data"),

		Ed25519KeyPath:          getEnv("PERIOD_HOST_ED25519_KEY_PATH", ""),
		BLSKeyPath:              getEnv("PERIOD_HOST_BLS_KEY_PATH", ""),
		GenesisParticipantsPath: getEnv("PERIOD_HOST_GENESIS_PARTICIPANTS", "./genesis_participants.yaml"),

		MetricsAddr: getEnv("PERIOD_HOST_METRICS_ADDR", "0.0.0.0:9090"),
		HealthAddr:  getEnv("PERIOD_HOST_HEALTH_ADDR", "0.0.0.0:8081"),
		LogLevel:    getEnv("PERIOD_HOST_LOG_LEVEL", "info"),

		DatabaseURL:             getEnv("PERIOD_HOST_DATABASE_URL", ""),
		DatabaseMaxOpenConns:    getEnvInt("PERIOD_HOST_DATABASE_MAX_OPEN_CONNS", 25),
		DatabaseMaxIdleConns:    getEnvInt("PERIOD_HOST_DATABASE_MAX_IDLE_CONNS", 5),
		DatabaseConnMaxLifetime: getEnvDuration("PERIOD_HOST_DATABASE_CONN_MAX_LIFETIME", time.Hour),
		DatabaseRequired:        getEnvBool("PERIOD_HOST_DATABASE_REQUIRED", false),

		AttestationDomain: getEnv("PERIOD_HOST_ATTESTATION_DOMAIN", "PERIOD_HOST_RESULT_V1"),
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var errs []string

	if c.ValidatorID == "" {
		errs = append(errs, "PERIOD_HOST_VALIDATOR_ID is required but not set")
	}
	if c.Ed25519KeyPath == "" {
		errs = append(errs, "PERIOD_HOST_ED25519_KEY_PATH is required but not set")
	}
	if c.DatabaseRequired && c.DatabaseURL == "" {
		errs = append(errs, "PERIOD_HOST_DATABASE_URL is required but not set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

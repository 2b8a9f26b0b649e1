// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backend identifiers
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config represents the complete server configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	RelyingParty RelyingPartyConfig `yaml:"relying_party"`
	Storage      StorageConfig      `yaml:"storage"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Health       HealthConfig       `yaml:"health"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RelyingPartyConfig identifies the WebAuthn relying party. Origins
// lists the web origins allowed to complete ceremonies; when empty it
// is derived from the RP ID.
type RelyingPartyConfig struct {
	ID                      string        `yaml:"id"`
	DisplayName             string        `yaml:"display_name"`
	Origins                 []string      `yaml:"origins"`
	ChallengeTTL            time.Duration `yaml:"challenge_ttl"`
	RequireUserVerification bool          `yaml:"require_user_verification"`
}

// StorageConfig selects the credential store backend
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory, postgres
	DSN     string `yaml:"dsn"`
}

// MetricsConfig controls the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HealthConfig controls the health check endpoint
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns a configuration with sensible defaults for local
// development: memory storage, localhost relying party, text logging.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		RelyingParty: RelyingPartyConfig{
			ID:                      "localhost",
			DisplayName:             "Passkey Demo",
			ChallengeTTL:            2 * time.Minute,
			RequireUserVerification: true,
		},
		Storage: StorageConfig{
			Backend: StorageMemory,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Health: HealthConfig{
			Enabled: true,
			Path:    "/health",
		},
	}
}

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	// Read the config file
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so omitted fields keep working values
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads configuration from path when it is non-empty,
// otherwise returns the default configuration with environment
// overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	cfg := Default()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	// Server settings
	if host := os.Getenv("PASSKEY_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portEnv := os.Getenv("PASSKEY_PORT"); portEnv != "" {
		port, err := strconv.Atoi(portEnv)
		if err != nil {
			log.Printf("Warning: invalid PASSKEY_PORT value %q, using default %d: %v",
				portEnv, cfg.Server.Port, err)
		} else if port < 1 || port > 65535 {
			log.Printf("Warning: invalid PASSKEY_PORT value %q (out of range 1-65535), using default %d",
				portEnv, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}

	// Logging
	if level := os.Getenv("PASSKEY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("PASSKEY_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Relying party
	if rpID := os.Getenv("PASSKEY_RP_ID"); rpID != "" {
		cfg.RelyingParty.ID = rpID
	}
	if rpName := os.Getenv("PASSKEY_RP_DISPLAY_NAME"); rpName != "" {
		cfg.RelyingParty.DisplayName = rpName
	}
	if origins := os.Getenv("PASSKEY_RP_ORIGINS"); origins != "" {
		var parsed []string
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				parsed = append(parsed, origin)
			}
		}
		cfg.RelyingParty.Origins = parsed
	}
	if uv := os.Getenv("PASSKEY_REQUIRE_USER_VERIFICATION"); uv != "" {
		parsed, err := strconv.ParseBool(uv)
		if err != nil {
			log.Printf("Warning: invalid PASSKEY_REQUIRE_USER_VERIFICATION value %q, using default %v: %v",
				uv, cfg.RelyingParty.RequireUserVerification, err)
		} else {
			cfg.RelyingParty.RequireUserVerification = parsed
		}
	}
	if ttl := os.Getenv("PASSKEY_CHALLENGE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			log.Printf("Warning: invalid PASSKEY_CHALLENGE_TTL value %q, using default %v: %v",
				ttl, cfg.RelyingParty.ChallengeTTL, err)
		} else {
			cfg.RelyingParty.ChallengeTTL = d
		}
	}

	// Storage
	if backend := os.Getenv("PASSKEY_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if dsn := os.Getenv("PASSKEY_STORAGE_DSN"); dsn != "" {
		cfg.Storage.DSN = dsn
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	// Validate relying party
	if c.RelyingParty.ID == "" {
		return fmt.Errorf("relying party id must be specified")
	}
	if c.RelyingParty.DisplayName == "" {
		return fmt.Errorf("relying party display_name must be specified")
	}
	if c.RelyingParty.ChallengeTTL < 0 {
		return fmt.Errorf("challenge_ttl must not be negative")
	}
	for _, origin := range c.RelyingParty.Origins {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("invalid relying party origin: %s", origin)
		}
	}

	// Validate storage
	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be memory or postgres)", c.Storage.Backend)
	}

	return nil
}

// RPOrigins returns the configured web origins, deriving a single
// https origin from the relying party ID when none are configured.
// Localhost gets an http origin for local development.
func (c *Config) RPOrigins() []string {
	if len(c.RelyingParty.Origins) > 0 {
		return c.RelyingParty.Origins
	}
	if c.RelyingParty.ID == "localhost" {
		return []string{fmt.Sprintf("http://localhost:%d", c.Server.Port)}
	}
	return []string{"https://" + c.RelyingParty.ID}
}

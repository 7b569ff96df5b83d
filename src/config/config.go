package config

import (
	"fmt"
	"os"
	"strconv"

	"vessel-tracker/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from a YAML file, then applies
// environment overrides. Optional settings (stream API key, store host and
// credentials) may stay empty; the affected feature degrades instead of the
// process aborting.
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()
	config.applyEnvOverrides()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 3000
	}
	if c.Stream.URL == "" {
		c.Stream.URL = "wss://stream.aisstream.io/v0/stream"
	}
	if c.Stream.KeepaliveSeconds == 0 {
		c.Stream.KeepaliveSeconds = 25
	}
	if c.Stream.InactivityMinutes == 0 {
		c.Stream.InactivityMinutes = 5
	}
	if c.Store.Collection == "" {
		c.Store.Collection = "vessel-logs"
	}
	if c.Store.CoordinateOrder == "" {
		c.Store.CoordinateOrder = "lonlat"
	}
	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = 30
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = 30
	}
}

// -----------------------------------------------------------------------------

// applyEnvOverrides lets deployment environment variables win over the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AISSTREAM_API_KEY"); v != "" {
		c.Stream.APIKey = v
	}
	if v := os.Getenv("TRACKED_MMSI"); v != "" {
		c.Stream.MMSI = v
	}
	if v := os.Getenv("STORE_HOST"); v != "" {
		c.Store.Host = v
	}
	if v := os.Getenv("STORE_EMAIL"); v != "" {
		c.Store.Email = v
	}
	if v := os.Getenv("STORE_PASSWORD"); v != "" {
		c.Store.Password = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d", c.Port)
	}

	if c.Stream.URL == "" {
		return fmt.Errorf("stream url cannot be empty")
	}
	if c.Stream.MMSI == "" {
		return fmt.Errorf("tracked vessel mmsi cannot be empty")
	}
	if c.Stream.KeepaliveSeconds <= 0 {
		return fmt.Errorf("keepalive interval must be greater than 0")
	}
	if c.Stream.InactivityMinutes <= 0 {
		return fmt.Errorf("inactivity interval must be greater than 0")
	}

	if c.Store.CoordinateOrder != "lonlat" && c.Store.CoordinateOrder != "latlon" {
		return fmt.Errorf("invalid coordinate order: %s (must be lonlat or latlon)", c.Store.CoordinateOrder)
	}

	if c.Storage.DBType != "" {
		if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
		if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	}

	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}

// Package config defines the per-slot configuration shape: exactly
// {id, connection, publication, slot_name}, loaded from JSON with no
// dynamic reflection.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ConnectionConfig is the upstream Postgres connection parameter set.
type ConnectionConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSL      bool   `json:"ssl"`
}

// SlotConfig is one replication slot's full configuration.
type SlotConfig struct {
	ID          string           `json:"id"`
	Connection  ConnectionConfig `json:"connection"`
	Publication string           `json:"publication"`
	SlotName    string           `json:"slot_name"`
}

// DSN renders the connection parameters as a libpq-style connection
// string suitable for pgconn.ParseConfig / pgxpool.ParseConfig.
func (c ConnectionConfig) DSN() string {
	sslmode := "disable"
	if c.SSL {
		sslmode = "require"
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, sslmode,
	)
}

// Load parses a single SlotConfig from JSON.
func Load(r io.Reader) (SlotConfig, error) {
	var cfg SlotConfig
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return SlotConfig{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return SlotConfig{}, err
	}
	return cfg, nil
}

// LoadFile reads and parses a SlotConfig from a JSON file at path.
func LoadFile(path string) (SlotConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return SlotConfig{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

func (c SlotConfig) validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("config: id is required")
	case c.SlotName == "":
		return fmt.Errorf("config: slot_name is required")
	case c.Publication == "":
		return fmt.Errorf("config: publication is required")
	case c.Connection.Host == "":
		return fmt.Errorf("config: connection.host is required")
	case c.Connection.Database == "":
		return fmt.Errorf("config: connection.database is required")
	}
	return nil
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig `json:"basic_config"`
	Database    Database    `json:"database"`
	Redis       Redis       `json:"redis"`
	Worker      Worker      `json:"worker"`
	Uploads     Uploads     `json:"uploads"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
}

// Database selects the SQL backend. Driver is "sqlite3" or "mysql"; DSN is a
// file path for sqlite and a full DSN for mysql.
type Database struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

type Redis struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Worker sizes the extraction pool.
type Worker struct {
	MinWorkers  int `json:"min_workers"`
	MaxWorkers  int `json:"max_workers"`
	QueueSize   int `json:"queue_size"`
	IdleSeconds int `json:"idle_seconds"`
}

// Uploads controls storage of user files.
type Uploads struct {
	BaseDir   string `json:"base_dir"`
	TTLHours  int    `json:"ttl_hours"`
	MaxSizeMB int    `json:"max_size_mb"`
}

// IdleTimeout converts the configured idle seconds to a duration.
func (w Worker) IdleTimeout() time.Duration {
	return time.Duration(w.IdleSeconds) * time.Second
}

// TTL converts the configured upload TTL hours to a duration.
func (u Uploads) TTL() time.Duration {
	return time.Duration(u.TTLHours) * time.Hour
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyDefaults()

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database.dsn must be configured")
	}
	if cfg.Database.Driver == "sqlite3" && !filepath.IsAbs(cfg.Database.DSN) {
		cfg.Database.DSN = filepath.Join(filepath.Dir(absPath), cfg.Database.DSN)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":8080"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite3"
	}
	if c.Worker.MinWorkers <= 0 {
		c.Worker.MinWorkers = 2
	}
	if c.Worker.MaxWorkers < c.Worker.MinWorkers {
		c.Worker.MaxWorkers = c.Worker.MinWorkers * 4
	}
	if c.Worker.QueueSize <= 0 {
		c.Worker.QueueSize = 64
	}
	if c.Worker.IdleSeconds <= 0 {
		c.Worker.IdleSeconds = 60
	}
	if c.Uploads.BaseDir == "" {
		c.Uploads.BaseDir = "uploads"
	}
	if c.Uploads.TTLHours <= 0 {
		c.Uploads.TTLHours = 24
	}
	if c.Uploads.MaxSizeMB <= 0 {
		c.Uploads.MaxSizeMB = 50
	}
}

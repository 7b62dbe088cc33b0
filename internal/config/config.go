package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenPort      string        // ex: "127.0.0.1:9870"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	DataDir   string // directory holding the bookmarks database
	BackupDir string // mirrored backup directory (optional, empty = backups disabled)

	SnapshotThreshold   int           // change-log appends before rolling into a snapshot
	LargeImportBytes    int64         // inputs above this size take the streaming import path
	MaintenanceInterval time.Duration // backup access probe / daily snapshot check interval
}

// fileConfig is the optional YAML config file shape. Any non-zero field
// overrides the environment.
type fileConfig struct {
	ListenPort          string `yaml:"listen_port"`
	LogLevel            string `yaml:"log_level"`
	DataDir             string `yaml:"data_dir"`
	BackupDir           string `yaml:"backup_dir"`
	SnapshotThreshold   int    `yaml:"snapshot_threshold"`
	MaintenanceInterval string `yaml:"maintenance_interval"`
}

func Load() *Config {
	// Best effort: a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		ListenPort:      getenv("SHELFMARK_LISTEN_PORT", "127.0.0.1:9870"),
		ShutdownTimeout: mustDuration("SHELFMARK_SHUTDOWN_TIMEOUT", 5*time.Second),

		LogLevel:  getenv("SHELFMARK_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SHELFMARK_PRETTY_LOG", true),

		DataDir:   getenv("SHELFMARK_DATA_DIR", defaultDataDir()),
		BackupDir: getenv("SHELFMARK_BACKUP_DIR", ""),

		SnapshotThreshold:   getenvInt("SHELFMARK_SNAPSHOT_THRESHOLD", 100),
		LargeImportBytes:    getenvInt64("SHELFMARK_LARGE_IMPORT_BYTES", 50*1024*1024),
		MaintenanceInterval: mustDuration("SHELFMARK_MAINTENANCE_INTERVAL", 1*time.Hour),
	}

	if path := os.Getenv("SHELFMARK_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			panic(fmt.Sprintf("❌ FATAL: failed to load config file %s: %v", path, err))
		}
	}

	if cfg.SnapshotThreshold <= 0 {
		panic("❌ FATAL: SHELFMARK_SNAPSHOT_THRESHOLD must be positive")
	}

	return cfg
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config yaml: %w", err)
	}

	if fc.ListenPort != "" {
		c.ListenPort = fc.ListenPort
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.DataDir != "" {
		c.DataDir = fc.DataDir
	}
	if fc.BackupDir != "" {
		c.BackupDir = fc.BackupDir
	}
	if fc.SnapshotThreshold != 0 {
		c.SnapshotThreshold = fc.SnapshotThreshold
	}
	if fc.MaintenanceInterval != "" {
		d, err := time.ParseDuration(fc.MaintenanceInterval)
		if err != nil {
			return fmt.Errorf("invalid maintenance_interval: %w", err)
		}
		c.MaintenanceInterval = d
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home + "/.shelfmark"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

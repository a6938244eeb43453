package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the root configuration structure for the application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	GC          GCConfig          `mapstructure:"gc"`
	Log         LogConfig         `mapstructure:"log"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Admin       AdminConfig       `mapstructure:"admin"`
}

// GCConfig controls the idle actor collector.
// ScanInterval and IdleTimeout are the raw values from file/ENV; Settings is the validated pair built by Load
type GCConfig struct {
	Enabled      bool       `mapstructure:"enabled"`
	ScanInterval int64      `mapstructure:"scan_interval"` // seconds between two scans
	IdleTimeout  int64      `mapstructure:"idle_timeout"`  // seconds an actor may stay unused
	Settings     GCSettings `mapstructure:"-"`
}

// ServerConfig holds the network settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// StorageConfig defines the internal structure of the activation table
type StorageConfig struct {
	Shards uint `mapstructure:"shards"`
}

// LogConfig defines logging verbosity and output style
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// PersistenceConfig defines settings of the journal and the snapshots
type PersistenceConfig struct {
	AOF      AOFConfig      `mapstructure:"aof"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
}

// AOFConfig defines settings of the activation journal
type AOFConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Filename string `mapstructure:"filename"`
	Fsync    string `mapstructure:"fsync"` // always, everysec, no
}

// SnapshotConfig defines where and how often the activation table is dumped
type SnapshotConfig struct {
	Enabled  bool        `mapstructure:"enabled"`
	Backend  string      `mapstructure:"backend"` // file, redis
	Filename string      `mapstructure:"filename"`
	Interval string      `mapstructure:"interval"`
	Redis    RedisConfig `mapstructure:"redis"`
}

// RedisConfig points the redis snapshot backend at a server
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// AdminConfig defines the HTTP status endpoint
type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads the configuration from a file, overrides it with environment variables
// and validates the gc section
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AddConfigPath(".")

	v.SetEnvPrefix("ACTORHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	settings, err := NewGCSettings(cfg.GC.IdleTimeout, cfg.GC.ScanInterval)
	if err != nil {
		return nil, fmt.Errorf("gc (idle_timeout=%d, scan_interval=%d): %w", cfg.GC.IdleTimeout, cfg.GC.ScanInterval, err)
	}
	cfg.GC.Settings = settings

	return &cfg, nil
}

// setDefaults populates viper with fallback values if they are not provided via file or ENV
func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "6390")

	// Storage
	v.SetDefault("storage.shards", 32)

	// GC
	v.SetDefault("gc.enabled", true)
	v.SetDefault("gc.scan_interval", DefaultScanInterval)
	v.SetDefault("gc.idle_timeout", DefaultIdleTimeout)

	// Logger
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Persistence
	v.SetDefault("persistence.aof.enabled", false)
	v.SetDefault("persistence.aof.filename", "actors.aof")
	v.SetDefault("persistence.aof.fsync", "everysec")

	v.SetDefault("persistence.snapshot.enabled", true)
	v.SetDefault("persistence.snapshot.backend", "file")
	v.SetDefault("persistence.snapshot.filename", "actors.rdb")
	v.SetDefault("persistence.snapshot.interval", "30s")
	v.SetDefault("persistence.snapshot.redis.addr", "127.0.0.1:6379")
	v.SetDefault("persistence.snapshot.redis.password", "")
	v.SetDefault("persistence.snapshot.redis.db", 0)
	v.SetDefault("persistence.snapshot.redis.key", "actorhost:snapshot")

	// Admin
	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.addr", "127.0.0.1:8390")
}

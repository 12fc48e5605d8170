package config

import (
	"errors"
	"time"
)

// Config represents the restore engine configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Node         NodeConfig         `mapstructure:"node"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Gossip       GossipConfig       `mapstructure:"gossip"`
	Repositories RepositoriesConfig `mapstructure:"repositories"`
	Restore      RestoreConfig      `mapstructure:"restore"`
	Features     FeaturesConfig     `mapstructure:"features"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig represents the admin HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// NodeConfig identifies this node in the cluster
type NodeConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
	// FormatVersion is the newest snapshot format this node understands.
	FormatVersion int `mapstructure:"format_version"`
	// MinCompatibleVersion is the oldest snapshot format this node accepts.
	MinCompatibleVersion int  `mapstructure:"min_compatible_version"`
	DataNode             bool `mapstructure:"data_node"`
}

// DatabaseConfig represents the PostgreSQL restore history store configuration
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig represents the Redis manifest cache configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// GossipConfig represents memberlist cluster membership configuration
type GossipConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	BindPort int      `mapstructure:"bind_port"`
	Seeds    []string `mapstructure:"seeds"`
}

// RepositoriesConfig controls snapshot repository access
type RepositoriesConfig struct {
	// RefreshUUIDs enables the best-effort repository identity refresh
	// before metadata resolution.
	RefreshUUIDs bool `mapstructure:"refresh_uuids"`
	// FetchWorkers sizes the worker pool used for snapshot metadata reads.
	FetchWorkers int `mapstructure:"fetch_workers"`
	// FetchQueueSize bounds the metadata fetch queue.
	FetchQueueSize int `mapstructure:"fetch_queue_size"`
	// CacheTTL bounds how long cached manifests stay valid.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// RestoreConfig tunes restore acceptance
type RestoreConfig struct {
	// MaxShards caps the cluster-wide number of open shards; 0 disables
	// the check.
	MaxShards int `mapstructure:"max_shards"`
	// ProgressFlushInterval is how often accumulated shard events are
	// committed to cluster state.
	ProgressFlushInterval time.Duration `mapstructure:"progress_flush_interval"`
}

// FeaturesConfig locates the installed feature registry
type FeaturesConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if c.Node.ID == "" {
		return errors.New("node.id is required")
	}
	if c.Node.FormatVersion <= 0 {
		return errors.New("node.format_version must be positive")
	}
	if c.Node.MinCompatibleVersion <= 0 || c.Node.MinCompatibleVersion > c.Node.FormatVersion {
		return errors.New("node.min_compatible_version must be positive and not exceed node.format_version")
	}
	if c.Database.Enabled {
		if c.Database.Host == "" {
			return errors.New("database.host is required when database.enabled is set")
		}
		if c.Database.Database == "" {
			return errors.New("database.database is required when database.enabled is set")
		}
		if c.Database.User == "" {
			return errors.New("database.user is required when database.enabled is set")
		}
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return errors.New("redis.host is required when redis.enabled is set")
	}
	if c.Gossip.Enabled && c.Gossip.BindPort <= 0 {
		return errors.New("gossip.bind_port must be positive when gossip.enabled is set")
	}
	if c.Repositories.FetchWorkers <= 0 {
		return errors.New("repositories.fetch_workers must be positive")
	}
	if c.Restore.ProgressFlushInterval <= 0 {
		return errors.New("restore.progress_flush_interval must be positive")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Node: NodeConfig{
			ID:                   "snaprestore-1",
			Name:                 "snaprestore-1",
			FormatVersion:        2,
			MinCompatibleVersion: 1,
			DataNode:             true,
		},
		Database: DatabaseConfig{
			Enabled:         false,
			Host:            "localhost",
			Port:            5432,
			Database:        "snaprestore_history",
			User:            "snaprestore",
			Password:        "",
			MaxConnections:  20,
			MinConnections:  2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     6379,
			Password: "",
			DB:       0,
		},
		Gossip: GossipConfig{
			Enabled:  false,
			BindPort: 7946,
		},
		Repositories: RepositoriesConfig{
			RefreshUUIDs:   true,
			FetchWorkers:   4,
			FetchQueueSize: 64,
			CacheTTL:       5 * time.Minute,
		},
		Restore: RestoreConfig{
			MaxShards:             0,
			ProgressFlushInterval: time.Second,
		},
		Features: FeaturesConfig{
			RegistryPath: "",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

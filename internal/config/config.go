// Package config provides configuration management for a replicator node.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all configuration for a node.
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Cluster        ClusterConfig        `mapstructure:"cluster"`
	Replication    ReplicationConfig    `mapstructure:"replication"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Storage        StorageConfig        `mapstructure:"storage"`
	Hints          HintsConfig          `mapstructure:"hints"`
	Database       DatabaseConfig       `mapstructure:"database"`
	RateLimiter    RateLimiterConfig    `mapstructure:"rate_limiter"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
	Health         HealthConfig         `mapstructure:"health"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	SelfURL         string        `mapstructure:"self_url"` // must match one of cluster.shards
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
}

// ClusterConfig holds the static shard set.
type ClusterConfig struct {
	Shards []string `mapstructure:"shards"`
}

// ReplicationConfig holds replica dispatch configuration.
type ReplicationConfig struct {
	ReplicaTimeout time.Duration `mapstructure:"replica_timeout"`
	NodeWorkers    int           `mapstructure:"node_workers"`
	NodeQueueSize  int           `mapstructure:"node_queue_size"`
	LocalWorkers   int           `mapstructure:"local_workers"`
	LocalQueueSize int           `mapstructure:"local_queue_size"`
}

// CircuitBreakerConfig holds the per-peer circuit breaker configuration.
type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// StorageConfig selects the local entity store.
type StorageConfig struct {
	Backend        string        `mapstructure:"backend"` // memory or redis
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Redis          RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds Redis entity store configuration.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// HintsConfig holds hinted handoff configuration.
type HintsConfig struct {
	Backend         string        `mapstructure:"backend"` // memory or postgres
	MaxPerNode      int           `mapstructure:"max_per_node"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Workers         int           `mapstructure:"workers"`
	QueueSize       int           `mapstructure:"queue_size"`
	SubmitTimeout   time.Duration `mapstructure:"submit_timeout"`
}

// DatabaseConfig holds PostgreSQL hint store configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxConnections  int32         `mapstructure:"max_connections"`
	MinConnections  int32         `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig holds the probe server configuration.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks the configuration and fills derived values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.SelfURL == "" {
		c.Server.SelfURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be positive")
	}
	if c.Server.MaxBodySize <= 0 {
		return errors.New("server.max_body_size must be positive")
	}

	if len(c.Cluster.Shards) == 0 {
		return errors.New("cluster.shards must list at least one node")
	}
	if !c.selfInCluster() {
		return fmt.Errorf("server.self_url %q is not in cluster.shards", c.Server.SelfURL)
	}

	if c.Replication.ReplicaTimeout <= 0 {
		return errors.New("replication.replica_timeout must be positive")
	}
	if c.Replication.NodeWorkers <= 0 || c.Replication.NodeQueueSize <= 0 {
		return errors.New("replication.node_workers and replication.node_queue_size must be positive")
	}
	if c.Replication.LocalWorkers <= 0 || c.Replication.LocalQueueSize <= 0 {
		return errors.New("replication.local_workers and replication.local_queue_size must be positive")
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureRatio <= 0 || c.CircuitBreaker.FailureRatio > 1 {
			return errors.New("circuit_breaker.failure_ratio must be in (0, 1]")
		}
	}

	switch c.Storage.Backend {
	case "memory":
	case "redis":
		if c.Storage.Redis.Host == "" {
			return errors.New("storage.redis.host is required")
		}
	default:
		return fmt.Errorf("storage.backend must be one of: memory, redis (got %q)", c.Storage.Backend)
	}

	switch c.Hints.Backend {
	case "memory":
	case "postgres":
		if c.Database.Host == "" {
			return errors.New("database.host is required")
		}
		if c.Database.Database == "" {
			return errors.New("database.database is required")
		}
		if c.Database.User == "" {
			return errors.New("database.user is required")
		}
	default:
		return fmt.Errorf("hints.backend must be one of: memory, postgres (got %q)", c.Hints.Backend)
	}
	if c.Hints.TTL <= 0 || c.Hints.CleanupInterval <= 0 {
		return errors.New("hints.ttl and hints.cleanup_interval must be positive")
	}

	if c.RateLimiter.Enabled {
		if c.RateLimiter.RequestsPerSecond <= 0 {
			return errors.New("rate limiter requests per second must be positive")
		}
		if c.RateLimiter.BurstSize <= 0 {
			return errors.New("rate limiter burst size must be positive")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

func (c *Config) selfInCluster() bool {
	for _, shard := range c.Cluster.Shards {
		if shard == c.Server.SelfURL {
			return true
		}
	}
	return false
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full node configuration, loaded from clawster.yaml with
// CLAWSTER_-prefixed environment overrides. The store password is read
// from the environment only and never belongs in the file.
type Config struct {
	Node      NodeConfig      `mapstructure:"node"`
	API       APIConfig       `mapstructure:"api"`
	Store     StoreConfig     `mapstructure:"store"`
	Election  ElectionConfig  `mapstructure:"election"`
	Gossip    GossipConfig    `mapstructure:"gossip"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Failover  FailoverConfig  `mapstructure:"failover"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Log       LogConfig       `mapstructure:"log"`
}

// NodeConfig identifies this node in the mesh.
type NodeConfig struct {
	ID           string            `mapstructure:"id"`
	Address      string            `mapstructure:"address"`
	Capabilities []string          `mapstructure:"capabilities"`
	Labels       map[string]string `mapstructure:"labels"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// StoreConfig selects and configures the shared coordination store.
type StoreConfig struct {
	// Backend is "etcd" or "memory". The memory backend is single-process
	// and exists for tests and local development.
	Backend     string        `mapstructure:"backend"`
	Endpoints   []string      `mapstructure:"endpoints"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// ElectionConfig tunes the leader lease.
type ElectionConfig struct {
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// GossipConfig tunes the dissemination engine.
type GossipConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	Fanout          int           `mapstructure:"fanout"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
}

// HeartbeatConfig tunes the liveness loop.
type HeartbeatConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// FailoverConfig tunes the leader's failure sweep.
type FailoverConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// MemoryConfig tunes the relevance decay filter and its persistence.
type MemoryConfig struct {
	HalfLifeDays float64 `mapstructure:"half_life_days"`
	Threshold    float64 `mapstructure:"threshold"`
	DataDir      string  `mapstructure:"data_dir"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Load reads configuration from the given file (or the default search
// paths when path is empty), applies defaults, and overlays environment
// variables with the CLAWSTER_ prefix (dots become underscores, e.g.
// CLAWSTER_STORE_PASSWORD).
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CLAWSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("clawster")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/clawster")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine when no explicit path was given; the
		// defaults plus environment carry a complete configuration.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the node cannot run with.
func (c *Config) Validate() error {
	if c.Node.ID == "" {
		return fmt.Errorf("node.id is required")
	}
	if c.Store.Backend != "etcd" && c.Store.Backend != "memory" {
		return fmt.Errorf("store.backend must be etcd or memory, got %q", c.Store.Backend)
	}
	if c.Store.Backend == "etcd" && len(c.Store.Endpoints) == 0 {
		return fmt.Errorf("store.endpoints is required for the etcd backend")
	}
	if c.Gossip.Fanout < 1 {
		return fmt.Errorf("gossip.fanout must be at least 1")
	}
	if c.Election.LockTTL < time.Second {
		return fmt.Errorf("election.lock_ttl must be at least 1s")
	}
	if c.Heartbeat.TTL <= c.Heartbeat.Interval {
		return fmt.Errorf("heartbeat.ttl must exceed heartbeat.interval")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.id", "")
	v.SetDefault("node.address", "127.0.0.1:7946")
	v.SetDefault("api.listen_addr", ":7946")
	v.SetDefault("store.backend", "etcd")
	v.SetDefault("store.endpoints", []string{"127.0.0.1:2379"})
	v.SetDefault("store.dial_timeout", 5*time.Second)
	// Registered with empty defaults so environment overrides bind; the
	// password is expected to arrive via CLAWSTER_STORE_PASSWORD.
	v.SetDefault("store.username", "")
	v.SetDefault("store.password", "")
	v.SetDefault("election.lock_ttl", 10*time.Second)
	v.SetDefault("gossip.interval", 30*time.Second)
	v.SetDefault("gossip.fanout", 3)
	v.SetDefault("gossip.dispatch_timeout", 5*time.Second)
	v.SetDefault("heartbeat.interval", 5*time.Second)
	v.SetDefault("heartbeat.ttl", 15*time.Second)
	v.SetDefault("failover.check_interval", 10*time.Second)
	v.SetDefault("memory.half_life_days", 30.0)
	v.SetDefault("memory.threshold", 0.3)
	v.SetDefault("memory.data_dir", "/var/lib/clawster")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)
}

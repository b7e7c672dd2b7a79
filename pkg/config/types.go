package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
	Fanout    FanoutConfig    `yaml:"fanout"`
	Presence  PresenceConfig  `yaml:"presence"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
	Directory DirectoryConfig `yaml:"directory"`
}

// ServerConfig holds http and storage settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	DBPath  string    `yaml:"db_path"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SecurityConfig holds CORS and rate limit settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// FanoutConfig tunes the realtime fanout pipeline.
type FanoutConfig struct {
	// QueueCapacity bounds the in-memory notify queue between committers and
	// the dispatch worker.
	QueueCapacity int `yaml:"queue_capacity"`
	// ReplayBatch is the max events loaded per replay round per subscriber.
	ReplayBatch int `yaml:"replay_batch"`
	// MaxEventBytes bounds pooled event payload buffers.
	MaxEventBytes SizeBytes `yaml:"max_event_bytes"`
}

// PresenceConfig tunes typing/presence signal lifetimes.
type PresenceConfig struct {
	TypingTTL     Duration `yaml:"typing_ttl"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// SweeperConfig holds configuration for the scheduled maintenance runner.
type SweeperConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	// EventTTL is the resume window for the durable event log; older entries
	// are pruned.
	EventTTL Duration `yaml:"event_ttl"`
	// IdleArchiveAfter archives threads with no activity for this long.
	IdleArchiveAfter Duration `yaml:"idle_archive_after"`
	BatchSize        int      `yaml:"batch_size"`
}

// DirectoryConfig seeds the static directory adapter used in dev and tests;
// production deployments point the engine at a real directory service.
type DirectoryConfig struct {
	CacheSize int              `yaml:"cache_size"`
	Users     []DirectoryEntry `yaml:"users"`
}

// DirectoryEntry is one seeded user profile.
type DirectoryEntry struct {
	ID          string `yaml:"id"`
	Tenant      string `yaml:"tenant"`
	DisplayName string `yaml:"display_name"`
	Role        string `yaml:"role"`
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	host := c.Server.Address
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly
// strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration wraps time.Duration and supports YAML parsing from strings like
// "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults applied after file+env merge.
const (
	defaultPort          = 8080
	defaultDBPath        = "./data/msgsync"
	defaultQueueCap      = 64 * 1024
	defaultReplayBatch   = 256
	defaultMaxEventBytes = 256 * 1024
	defaultTypingTTL     = 6 * time.Second
	defaultSweep         = time.Second
	defaultCacheSize     = 1024
)

// ParseCommandFlags parses the server's command-line flags and reports which
// were explicitly set, so flags can win over file/env values.
func ParseCommandFlags() (addr, db, cfgPath string, set map[string]bool) {
	addrF := flag.String("addr", "", "listen address (host:port)")
	dbF := flag.String("db", "", "pebble database path")
	cfgF := flag.String("config", "", "path to config file")
	flag.Parse()
	set = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return *addrF, *dbF, *cfgF, set
}

// ResolveConfigPath picks the config file path: explicit flag wins, then the
// MSGSYNC_CONFIG env var, then ./msgsync.yaml if present.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet && flagVal != "" {
		return flagVal
	}
	if p := os.Getenv("MSGSYNC_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("msgsync.yaml"); err == nil {
		return "msgsync.yaml"
	}
	return ""
}

// Load reads the YAML config file (optional), applies environment overrides
// and defaults, and returns the effective config.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := unmarshalStrict(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MSGSYNC_ADDR"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MSGSYNC_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("MSGSYNC_DB_PATH"); v != "" {
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("MSGSYNC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.Server.DBPath == "" {
		cfg.Server.DBPath = defaultDBPath
	}
	if cfg.Fanout.QueueCapacity <= 0 {
		cfg.Fanout.QueueCapacity = defaultQueueCap
	}
	if cfg.Fanout.ReplayBatch <= 0 {
		cfg.Fanout.ReplayBatch = defaultReplayBatch
	}
	if cfg.Fanout.MaxEventBytes <= 0 {
		cfg.Fanout.MaxEventBytes = defaultMaxEventBytes
	}
	if cfg.Presence.TypingTTL.Duration() <= 0 {
		cfg.Presence.TypingTTL = Duration(defaultTypingTTL)
	}
	if cfg.Presence.SweepInterval.Duration() <= 0 {
		cfg.Presence.SweepInterval = Duration(defaultSweep)
	}
	if cfg.Directory.CacheSize <= 0 {
		cfg.Directory.CacheSize = defaultCacheSize
	}
	if cfg.Sweeper.BatchSize <= 0 {
		cfg.Sweeper.BatchSize = 512
	}
}

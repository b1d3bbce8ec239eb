// Package config parses the service adapter's on-disk configuration: bind
// address, per-chain RPC endpoints and backend choice, cache settings, the
// per-request timeout, and sandbox passthrough limits. A subset of fields
// (see applyEnv) is overridable by SLOTFIND_-prefixed environment variables, the convention
// the teacher ecosystem uses for env-overridable TOML config.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/naoina/toml"
)

// Defaults mirror the source service's (DEFAULT_HOST, DEFAULT_PORT,
// DEFAULT_TIMEOUT_MS).
const (
	DefaultBindAddr  = "127.0.0.1:3000"
	DefaultTimeoutMS = 5000
)

// Backend selects how a chain's RpcClient is constructed.
type Backend string

const (
	BackendGeth  Backend = "geth"
	BackendLocal Backend = "local"
)

// Config is the root configuration document.
type Config struct {
	BindAddr  string        `toml:"bind_addr"`
	TimeoutMS int64         `toml:"timeout_ms"`
	Chains    []ChainConfig `toml:"chains"`
	Cache     CacheConfig   `toml:"cache"`
	Sandbox   SandboxConfig `toml:"sandbox"`
}

// ChainConfig binds one recognized chain label to its endpoints.
type ChainConfig struct {
	Label        string  `toml:"label"`
	Endpoint     string  `toml:"endpoint"`
	ForkEndpoint string  `toml:"fork_endpoint"`
	Backend      Backend `toml:"backend"`
}

// CacheConfig is the §6 cache protocol's connection surface. Enabled gates
// the Redis-backed tier; the in-process LRU/bloom tier always runs.
type CacheConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Password string `toml:"password"`
	TLS      bool   `toml:"tls"`
}

// SandboxConfig is passthrough-only: these fields configure the external
// forked-node sandbox process this repo doesn't spawn (see SPEC_FULL.md
// §4.8's non-goals), kept here only so the config surface's enumeration
// stays complete.
type SandboxConfig struct {
	ComputeBudget int64 `toml:"compute_budget"`
	MemoryLimitMB int64 `toml:"memory_limit_mb"`
	TimeoutMS     int64 `toml:"timeout_ms"`
}

// tomlSettings matches field names to TOML keys verbatim, same convention
// the upstream go-ethereum CLI's dumpconfig command uses.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("config: field %q is not defined in %s", field, rt.String())
	},
}

// Load reads path as TOML, defaults unset fields, then applies any
// SLOTFIND_-prefixed environment overrides.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		var lineErr *toml.LineError
		if errors.As(err, &lineErr) {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BindAddr == "" {
		cfg.BindAddr = DefaultBindAddr
	}
	if cfg.TimeoutMS == 0 {
		cfg.TimeoutMS = DefaultTimeoutMS
	}
	for i := range cfg.Chains {
		if cfg.Chains[i].Backend == "" {
			cfg.Chains[i].Backend = BackendGeth
		}
	}
	if cfg.Cache.Port == 0 {
		cfg.Cache.Port = 6379
	}
}

// applyEnv overrides a small, frequently-tuned subset of fields — bind
// address, timeout, and cache connection details — from SLOTFIND_-prefixed
// environment variables. Per-chain endpoints stay TOML-only since a chain
// set can't be meaningfully named by a flat env var.
func applyEnv(cfg *Config) {
	if v, ok := lookupEnv("BIND_ADDR"); ok {
		cfg.BindAddr = v
	}
	if v, ok := lookupEnvInt64("TIMEOUT_MS"); ok {
		cfg.TimeoutMS = v
	}
	if v, ok := lookupEnvBool("CACHE_ENABLED"); ok {
		cfg.Cache.Enabled = v
	}
	if v, ok := lookupEnv("CACHE_HOST"); ok {
		cfg.Cache.Host = v
	}
	if v, ok := lookupEnvInt("CACHE_PORT"); ok {
		cfg.Cache.Port = v
	}
	if v, ok := lookupEnv("CACHE_PASSWORD"); ok {
		cfg.Cache.Password = v
	}
	if v, ok := lookupEnvBool("CACHE_TLS"); ok {
		cfg.Cache.TLS = v
	}
}

const envPrefix = "SLOTFIND_"

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func lookupEnvBool(name string) (bool, bool) {
	v, ok := lookupEnv(name)
	if !ok {
		return false, false
	}
	return v == "1" || strings.EqualFold(v, "true"), true
}

func lookupEnvInt(name string) (int, bool) {
	v, ok := lookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupEnvInt64(name string) (int64, bool) {
	v, ok := lookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

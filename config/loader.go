package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	clientcache "github.com/always-cache/client-cache"
	"github.com/always-cache/client-cache/cache"
)

// EnvPrefix prefixes environment variables overriding configuration keys,
// e.g. CLIENTCACHE_STORAGE_BACKEND for storage.backend.
const EnvPrefix = "CLIENTCACHE"

// Load reads the configuration file at path (YAML, TOML or JSON by
// extension), applies environment overrides and validates the result.
// With an empty path only defaults and the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		modeDecodeHook(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "default")
	v.SetDefault("bestEffortStore", false)
	v.SetDefault("cacheStatus", "client-cache")
	v.SetDefault("listen", ":8080")
	v.SetDefault("upstream.timeout", "30s")
	v.SetDefault("storage.backend", BackendSQLite)
	v.SetDefault("storage.path", cache.DefaultSQLitePath)
	v.SetDefault("storage.maxEntries", 0)
	v.SetDefault("policy.shared", true)
	v.SetDefault("policy.heuristicFraction", 0.1)
	v.SetDefault("policy.maxHeuristic", "0s")
	v.SetDefault("policy.immutableMinTTL", "24h")
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.file", "")
	v.SetDefault("log.maxSize", 100)
	v.SetDefault("log.maxBackups", 10)
	v.SetDefault("log.compress", true)
}

func modeDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(clientcache.CacheMode(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return clientcache.ParseMode(strings.TrimSpace(v))
		case clientcache.CacheMode:
			return v, nil
		default:
			return nil, fmt.Errorf("unsupported cache mode type: %T", v)
		}
	}
}

// Validate checks the configuration for values the cache cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Mode.MarshalText(); err != nil {
		errs = append(errs, err)
	}
	switch c.Storage.Backend {
	case BackendSQLite, BackendDisk, BackendLevelDB:
		if c.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path required for backend %s", c.Storage.Backend))
		}
	case BackendMemory:
		if c.Storage.MaxEntries < 0 {
			errs = append(errs, errors.New("storage.maxEntries must not be negative"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage backend %q", c.Storage.Backend))
	}
	if c.Storage.Backend == BackendDisk && c.Storage.Path == MemoryPath {
		errs = append(errs, errors.New("disk backend cannot be in memory"))
	}
	if c.Policy.HeuristicFraction < 0 || c.Policy.HeuristicFraction > 1 {
		errs = append(errs, fmt.Errorf("policy.heuristicFraction %v not within [0, 1]", c.Policy.HeuristicFraction))
	}
	if c.Policy.MaxHeuristic < 0 || c.Policy.ImmutableMinTTL < 0 || c.Upstream.Timeout < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// Package config loads the configuration of the client-cache command and
// builds the cache, storage and logger from it.
package config

import (
	"time"

	clientcache "github.com/always-cache/client-cache"
	responsetransformer "github.com/always-cache/client-cache/pkg/response-transformer"
)

// Storage backends.
const (
	BackendSQLite  = "sqlite"
	BackendMemory  = "memory"
	BackendDisk    = "disk"
	BackendLevelDB = "leveldb"
)

// MemoryPath selects an in-memory database for the sqlite and leveldb backends.
const MemoryPath = ":memory:"

type Config struct {
	Mode            clientcache.CacheMode     `mapstructure:"mode"`
	BestEffortStore bool                      `mapstructure:"bestEffortStore"`
	CacheStatus     string                    `mapstructure:"cacheStatus"`
	Listen          string                    `mapstructure:"listen"`
	Upstream        UpstreamConfig            `mapstructure:"upstream"`
	Storage         StorageConfig             `mapstructure:"storage"`
	Policy          PolicyConfig              `mapstructure:"policy"`
	Log             LogConfig                 `mapstructure:"log"`
	Rules           responsetransformer.Rules `mapstructure:"rules"`
}

type UpstreamConfig struct {
	// Timeout of a single network request, zero for none.
	Timeout time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	// Path of the database file (sqlite) or directory (disk, leveldb).
	Path string `mapstructure:"path"`
	// MaxEntries bounds the memory backend, zero for unbounded.
	MaxEntries int `mapstructure:"maxEntries"`
}

type PolicyConfig struct {
	Shared            bool          `mapstructure:"shared"`
	HeuristicFraction float64       `mapstructure:"heuristicFraction"`
	MaxHeuristic      time.Duration `mapstructure:"maxHeuristic"`
	ImmutableMinTTL   time.Duration `mapstructure:"immutableMinTTL"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// File receives JSON logs in addition to the console if set.
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	Compress   bool   `mapstructure:"compress"`
}

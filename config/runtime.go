package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	clientcache "github.com/always-cache/client-cache"
	"github.com/always-cache/client-cache/cache"
	"github.com/always-cache/client-cache/rfc9111"
)

// Storage is a storage backend as opened by OpenStorage.
type Storage interface {
	cache.Manager
	cache.Clearer
	io.Closer
}

// OpenStorage opens the configured storage backend.
func (c *Config) OpenStorage() (Storage, error) {
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.Path == MemoryPath {
			return cache.NewInMemorySQLiteCache()
		}
		return cache.NewSQLiteCache(c.Storage.Path)
	case BackendMemory:
		return cache.NewMemCache(c.Storage.MaxEntries), nil
	case BackendDisk:
		return cache.NewDiskCache(c.Storage.Path)
	case BackendLevelDB:
		if c.Storage.Path == MemoryPath {
			return cache.NewInMemoryLevelDBCache()
		}
		return cache.NewLevelDBCache(c.Storage.Path)
	}
	return nil, fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
}

// NewLogger creates the logger writing to console and, if configured, to a
// rotating log file. The returned function closes the log file.
func (c *Config) NewLogger(console io.Writer) (zerolog.Logger, func() error, error) {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("log.level: %w", err)
	}
	if console == nil {
		console = os.Stdout
	}
	consoleWriter := zerolog.ConsoleWriter{Out: console}
	if c.Log.File == "" {
		return zerolog.New(consoleWriter).Level(level).With().Timestamp().Logger(), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(c.Log.File), 0o755); err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("creating log directory: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   c.Log.File,
		MaxSize:    c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		Compress:   c.Log.Compress,
		LocalTime:  true,
	}
	logger := zerolog.New(zerolog.MultiLevelWriter(consoleWriter, rotator)).
		Level(level).
		With().Timestamp().
		Logger()
	return logger, rotator.Close, nil
}

// Oracle returns the policy oracle for the configured policy options.
func (c *Config) Oracle() rfc9111.Oracle {
	return rfc9111.Oracle{
		Shared:            c.Policy.Shared,
		HeuristicFraction: c.Policy.HeuristicFraction,
		MaxHeuristic:      c.Policy.MaxHeuristic,
		ImmutableMinTTL:   c.Policy.ImmutableMinTTL,
	}
}

// CacheConfig returns the cache configuration using storage and logger.
func (c *Config) CacheConfig(storage cache.Manager, logger *zerolog.Logger) clientcache.Config {
	return clientcache.Config{
		Storage:         storage,
		Oracle:          c.Oracle(),
		Mode:            c.Mode,
		BestEffortStore: c.BestEffortStore,
		CacheStatus:     c.CacheStatus,
		Rules:           c.Rules,
		Logger:          logger,
	}
}

// ClearStorage removes all entries from the configured storage.
func (c *Config) ClearStorage(ctx context.Context) error {
	storage, err := c.OpenStorage()
	if err != nil {
		return err
	}
	defer storage.Close()
	return storage.Clear(ctx)
}

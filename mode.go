package clientcache

import (
	"context"
	"fmt"
)

// CacheMode selects how a request interacts with the cache.
type CacheMode int

const (
	// Default serves fresh entries, revalidates stale ones and stores
	// storable responses.
	Default CacheMode = iota
	// NoStore bypasses the cache completely.
	NoStore
	// Reload always fetches and stores the result if storable.
	Reload
	// NoCache revalidates every stored entry, fresh or not.
	NoCache
	// ForceCache serves any stored entry regardless of freshness.
	ForceCache
	// OnlyIfCached serves any stored entry and never touches the network.
	OnlyIfCached
	// IgnoreRules serves any stored entry and stores every 200 response.
	IgnoreRules
)

var modeNames = [...]string{
	Default:      "default",
	NoStore:      "no-store",
	Reload:       "reload",
	NoCache:      "no-cache",
	ForceCache:   "force-cache",
	OnlyIfCached: "only-if-cached",
	IgnoreRules:  "ignore-rules",
}

func (m CacheMode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("CacheMode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode returns the mode for its kebab-case name.
// The empty string parses as Default.
func ParseMode(name string) (CacheMode, error) {
	if name == "" {
		return Default, nil
	}
	for m, n := range modeNames {
		if n == name {
			return CacheMode(m), nil
		}
	}
	return Default, fmt.Errorf("unknown cache mode %q", name)
}

func (m CacheMode) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(modeNames) {
		return nil, fmt.Errorf("unknown cache mode %d", int(m))
	}
	return []byte(modeNames[m]), nil
}

func (m *CacheMode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

type key int

var modeKey key

// WithMode returns a context that overrides the configured cache mode for
// requests run with it.
func WithMode(parent context.Context, mode CacheMode) context.Context {
	return context.WithValue(parent, modeKey, mode)
}

// ModeFromContext returns the mode set with WithMode.
func ModeFromContext(ctx context.Context) (mode CacheMode, ok bool) {
	if val := ctx.Value(modeKey); val != nil {
		mode, ok = val.(CacheMode)
	}
	return
}

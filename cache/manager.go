// Package cache contains the storage backends of the response cache.
//
// Backends store one opaque blob per cache key. They know nothing about HTTP
// caching rules: the cache engine decides what gets stored and when.
package cache

import (
	"context"
	"errors"
	"net/url"

	"github.com/rs/zerolog/log"

	cachekey "github.com/always-cache/client-cache/pkg/cache-key"
	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
	serializer "github.com/always-cache/client-cache/pkg/response-serializer"
)

var ErrCorruptEntry = errors.New("corrupt cache entry")

// Entry is a stored response together with its policy record.
type Entry struct {
	Response httpmessage.Response
	Policy   httpmessage.Policy
}

// Manager is the storage contract used by the cache engine.
//
// Implementations must be safe for concurrent use. Concurrent writes to the
// same key may interleave, but each write replaces the entry atomically.
type Manager interface {
	// Get returns the entry stored for method and URL.
	// A missing or undecodable entry is reported as a miss (ok == false) with
	// a nil error; errors are only returned for I/O failures.
	Get(ctx context.Context, method string, u *url.URL) (Entry, bool, error)
	// Put stores the response and policy, replacing any existing entry, and
	// returns the response unchanged.
	Put(ctx context.Context, method string, u *url.URL, res httpmessage.Response, policy httpmessage.Policy) (httpmessage.Response, error)
	// Delete removes the entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, method string, u *url.URL) error
}

// Clearer is implemented by backends that can remove all entries at once.
type Clearer interface {
	Clear(ctx context.Context) error
}

func encodeEntry(res httpmessage.Response, policy httpmessage.Policy) ([]byte, error) {
	return serializer.Marshal(res, policy)
}

// decodeEntry decodes a stored blob. Failures are logged and reported as
// ErrCorruptEntry.
func decodeEntry(key string, blob []byte) (Entry, error) {
	res, policy, err := serializer.Unmarshal(blob)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Could not decode cache entry")
		return Entry{}, ErrCorruptEntry
	}
	return Entry{Response: res, Policy: policy}, nil
}

func key(method string, u *url.URL) string {
	return cachekey.Key(method, u)
}

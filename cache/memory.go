package cache

import (
	"bytes"
	"context"
	"math"
	"net/url"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
)

// MemCache keeps encoded entries in memory. With a positive maxEntries, the
// least recently used entry is evicted when the limit is exceeded.
type MemCache struct {
	// writeMutex serializes writers with the compare-and-delete of corrupt
	// entries; lookups only take the LRU's own lock.
	writeMutex *sync.Mutex
	entries    *lru.Cache[string, []byte]
}

func NewMemCache(maxEntries int) *MemCache {
	if maxEntries <= 0 {
		maxEntries = math.MaxInt
	}
	entries, err := lru.New[string, []byte](maxEntries)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &MemCache{
		writeMutex: &sync.Mutex{},
		entries:    entries,
	}
}

func (m *MemCache) Get(ctx context.Context, method string, u *url.URL) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	k := key(method, u)
	blob, ok := m.entries.Get(k)
	if !ok {
		return Entry{}, false, nil
	}
	entry, err := decodeEntry(k, blob)
	if err != nil {
		m.purgeCorrupt(k, blob)
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (m *MemCache) Put(ctx context.Context, method string, u *url.URL, res httpmessage.Response, policy httpmessage.Policy) (httpmessage.Response, error) {
	if err := ctx.Err(); err != nil {
		return res, err
	}
	blob, err := encodeEntry(res, policy)
	if err != nil {
		return res, err
	}
	m.put(key(method, u), blob)
	return res, nil
}

func (m *MemCache) put(k string, blob []byte) {
	m.writeMutex.Lock()
	defer m.writeMutex.Unlock()
	m.entries.Add(k, blob)
}

func (m *MemCache) Delete(ctx context.Context, method string, u *url.URL) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.entries.Remove(key(method, u))
	return nil
}

func (m *MemCache) Clear(ctx context.Context) error {
	m.entries.Purge()
	return nil
}

// Len returns the number of stored entries.
func (m *MemCache) Len() int {
	return m.entries.Len()
}

func (m *MemCache) Close() error {
	return nil
}

func (m *MemCache) purgeCorrupt(k string, blob []byte) {
	m.writeMutex.Lock()
	defer m.writeMutex.Unlock()
	if current, ok := m.entries.Peek(k); ok && bytes.Equal(current, blob) {
		m.entries.Remove(k)
	}
}

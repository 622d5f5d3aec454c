package cache

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"

	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
)

type backend interface {
	Manager
	Clearer
	Close() error
}

type backendFactory struct {
	name string
	open func(t *testing.T) backend
	// corrupt replaces the stored blob for k
	corrupt func(t *testing.T, b backend, k string, blob []byte)
}

func backends() []backendFactory {
	return []backendFactory{
		{
			name: "sqlite-memory",
			open: func(t *testing.T) backend {
				c, err := NewInMemorySQLiteCache()
				require.NoError(t, err)
				return c
			},
			corrupt: func(t *testing.T, b backend, k string, blob []byte) {
				_, err := b.(*SQLiteCache).db.Exec("UPDATE cache SET store = ? WHERE req_key = ?", blob, k)
				require.NoError(t, err)
			},
		},
		{
			name: "sqlite-file",
			open: func(t *testing.T) backend {
				c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
				require.NoError(t, err)
				return c
			},
			corrupt: func(t *testing.T, b backend, k string, blob []byte) {
				_, err := b.(*SQLiteCache).db.Exec("UPDATE cache SET store = ? WHERE req_key = ?", blob, k)
				require.NoError(t, err)
			},
		},
		{
			name: "memory",
			open: func(t *testing.T) backend {
				return NewMemCache(0)
			},
			corrupt: func(t *testing.T, b backend, k string, blob []byte) {
				b.(*MemCache).put(k, blob)
			},
		},
		{
			name: "disk",
			open: func(t *testing.T) backend {
				c, err := NewDiskCache(t.TempDir())
				require.NoError(t, err)
				return c
			},
			corrupt: func(t *testing.T, b backend, k string, blob []byte) {
				require.NoError(t, os.WriteFile(b.(*DiskCache).path(k), appendEnvelope(nil, k, blob), 0o644))
			},
		},
		{
			name: "leveldb-memory",
			open: func(t *testing.T) backend {
				c, err := NewInMemoryLevelDBCache()
				require.NoError(t, err)
				return c
			},
			corrupt: func(t *testing.T, b backend, k string, blob []byte) {
				require.NoError(t, b.(*LevelDBCache).db.Put([]byte(k), blob, nil))
			},
		},
		{
			name: "leveldb-file",
			open: func(t *testing.T) backend {
				c, err := NewLevelDBCache(t.TempDir())
				require.NoError(t, err)
				return c
			},
			corrupt: func(t *testing.T, b backend, k string, blob []byte) {
				require.NoError(t, b.(*LevelDBCache).db.Put([]byte(k), blob, nil))
			},
		},
	}
}

func testURL(t *testing.T, raw string) *url.URL {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func testResponse(t *testing.T, body string) httpmessage.Response {
	return httpmessage.Response{
		StatusCode: 200,
		Header:     http.Header{"Cache-Control": {"max-age=60"}, "Content-Type": {"text/plain"}},
		Body:       []byte(body),
		URL:        testURL(t, "https://example.test/a"),
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
	}
}

func TestBackendContract(t *testing.T) {
	for _, f := range backends() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			b := f.open(t)
			defer b.Close()
			u := testURL(t, "https://example.test/a")

			_, ok, err := b.Get(ctx, "GET", u)
			require.NoError(t, err)
			assert.False(t, ok, "empty backend reports a hit")

			res := testResponse(t, "hello")
			policy := httpmessage.Policy("policy")
			returned, err := b.Put(ctx, "GET", u, res, policy)
			require.NoError(t, err)
			assert.Equal(t, res, returned, "Put changed the response")

			entry, ok, err := b.Get(ctx, "GET", u)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, res.StatusCode, entry.Response.StatusCode)
			assert.Equal(t, res.Header, entry.Response.Header)
			assert.Equal(t, res.Body, entry.Response.Body)
			assert.Equal(t, res.URL.String(), entry.Response.URL.String())
			assert.Equal(t, policy, entry.Policy)

			// method is part of the key
			_, ok, err = b.Get(ctx, "HEAD", u)
			require.NoError(t, err)
			assert.False(t, ok)

			// equivalent URL maps to the same entry
			_, ok, err = b.Get(ctx, "get", testURL(t, "HTTPS://example.test:443/a#frag"))
			require.NoError(t, err)
			assert.True(t, ok)

			// upsert replaces
			_, err = b.Put(ctx, "GET", u, testResponse(t, "world"), policy)
			require.NoError(t, err)
			entry, ok, err = b.Get(ctx, "GET", u)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "world", string(entry.Response.Body))

			require.NoError(t, b.Delete(ctx, "GET", u))
			_, ok, err = b.Get(ctx, "GET", u)
			require.NoError(t, err)
			assert.False(t, ok)

			// deleting a missing entry is a no-op
			require.NoError(t, b.Delete(ctx, "GET", u))
			require.NoError(t, b.Delete(ctx, "GET", testURL(t, "https://example.test/never")))
		})
	}
}

func TestBackendIdempotentPut(t *testing.T) {
	for _, f := range backends() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			b := f.open(t)
			defer b.Close()
			u := testURL(t, "https://example.test/a")
			res := testResponse(t, "hello")

			_, err := b.Put(ctx, "GET", u, res, nil)
			require.NoError(t, err)
			_, err = b.Put(ctx, "GET", u, res, nil)
			require.NoError(t, err)

			entry, ok, err := b.Get(ctx, "GET", u)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "hello", string(entry.Response.Body))

			if s, ok := b.(*SQLiteCache); ok {
				var n int
				require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM cache").Scan(&n))
				assert.Equal(t, 1, n)
			}
			if m, ok := b.(*MemCache); ok {
				assert.Equal(t, 1, m.Len())
			}
		})
	}
}

// oversizedHeaderBlob is an entry whose header claims a value array far
// larger than the blob itself.
func oversizedHeaderBlob() []byte {
	b := msgp.AppendMapHeader(nil, 1)
	b = msgp.AppendString(b, "header")
	b = msgp.AppendMapHeader(b, 1)
	b = msgp.AppendString(b, "X")
	return msgp.AppendArrayHeader(b, 0x7fffffff)
}

func TestBackendCorruptEntryIsMiss(t *testing.T) {
	blobs := map[string][]byte{
		"garbage":         []byte("garbage"),
		"oversized count": oversizedHeaderBlob(),
	}
	for _, f := range backends() {
		f := f
		for blobName, blob := range blobs {
			blob := blob
			t.Run(f.name+"/"+blobName, func(t *testing.T) {
				ctx := context.Background()
				b := f.open(t)
				defer b.Close()
				u := testURL(t, "https://example.test/a")

				_, err := b.Put(ctx, "GET", u, testResponse(t, "hello"), nil)
				require.NoError(t, err)
				f.corrupt(t, b, key("GET", u), blob)

				_, ok, err := b.Get(ctx, "GET", u)
				require.NoError(t, err)
				assert.False(t, ok, "corrupt entry reported as hit")

				// the corrupt entry is gone and the key can be used again
				_, err = b.Put(ctx, "GET", u, testResponse(t, "again"), nil)
				require.NoError(t, err)
				entry, ok, err := b.Get(ctx, "GET", u)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, "again", string(entry.Response.Body))
			})
		}
	}
}

func TestBackendClear(t *testing.T) {
	for _, f := range backends() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			b := f.open(t)
			defer b.Close()
			for i := 0; i < 5; i++ {
				_, err := b.Put(ctx, "GET", testURL(t, fmt.Sprintf("https://example.test/%d", i)), testResponse(t, "x"), nil)
				require.NoError(t, err)
			}
			require.NoError(t, b.Clear(ctx))
			for i := 0; i < 5; i++ {
				_, ok, err := b.Get(ctx, "GET", testURL(t, fmt.Sprintf("https://example.test/%d", i)))
				require.NoError(t, err)
				assert.False(t, ok)
			}
		})
	}
}

func TestBackendConcurrentWriters(t *testing.T) {
	for _, f := range backends() {
		f := f
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			b := f.open(t)
			defer b.Close()
			u := testURL(t, "https://example.test/a")

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := b.Put(ctx, "GET", u, testResponse(t, fmt.Sprintf("body-%d", i)), nil)
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			entry, ok, err := b.Get(ctx, "GET", u)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Regexp(t, `^body-\d$`, string(entry.Response.Body))
		})
	}
}

func TestMemCacheEviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemCache(2)
	a := testURL(t, "https://example.test/a")
	b := testURL(t, "https://example.test/b")
	c := testURL(t, "https://example.test/c")

	_, _ = m.Put(ctx, "GET", a, testResponse(t, "a"), nil)
	_, _ = m.Put(ctx, "GET", b, testResponse(t, "b"), nil)
	// touch a so b becomes the least recently used entry
	_, ok, _ := m.Get(ctx, "GET", a)
	require.True(t, ok)
	_, _ = m.Put(ctx, "GET", c, testResponse(t, "c"), nil)

	assert.Equal(t, 2, m.Len())
	_, ok, _ = m.Get(ctx, "GET", b)
	assert.False(t, ok, "least recently used entry not evicted")
	_, ok, _ = m.Get(ctx, "GET", a)
	assert.True(t, ok)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemCache(0)
	_, err := m.Put(ctx, "GET", testURL(t, "https://example.test/a"), testResponse(t, "a"), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, m.Len())
}

func TestDiskCacheClearDuringWrites(t *testing.T) {
	ctx := context.Background()
	d, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 400)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				u := testURL(t, fmt.Sprintf("https://example.test/%d/%d", w, i))
				if _, err := d.Put(ctx, "GET", u, testResponse(t, "x"), nil); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, d.Clear(ctx))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestSQLitePragmasOnEveryConnection(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer s.Close()

	// hold the first connection so the pool opens a second one
	first, err := s.db.Conn(ctx)
	require.NoError(t, err)
	defer first.Close()
	second, err := s.db.Conn(ctx)
	require.NoError(t, err)
	defer second.Close()

	for _, conn := range []*sql.Conn{first, second} {
		var timeout int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, 5000, timeout)
		var mode string
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode)
	}
}

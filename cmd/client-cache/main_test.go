package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/always-cache/client-cache/config"
)

type origin struct {
	*httptest.Server
	hits atomic.Int32
}

func newOrigin(t *testing.T) *origin {
	o := &origin{}
	o.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.hits.Add(1)
		w.Header().Set("Cache-Control", "max-age=60")
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("hello"))
	}))
	t.Cleanup(o.Close)
	return o
}

func testConfig(t *testing.T, storage config.StorageConfig) *config.Config {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage = storage
	return cfg
}

func newTestServer(t *testing.T) *server {
	cfg := testConfig(t, config.StorageConfig{Backend: config.BackendMemory})
	storage, err := cfg.OpenStorage()
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	s, err := newServer(cfg, storage, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func serve(s *server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func fetchPath(u, mode string) string {
	q := url.Values{"url": {u}}
	if mode != "" {
		q.Set("mode", mode)
	}
	return "/fetch?" + q.Encode()
}

func entryPath(u string) string {
	return "/entries?" + url.Values{"url": {u}}.Encode()
}

func TestServeFetch(t *testing.T) {
	o := newOrigin(t)
	s := newTestServer(t)
	target := o.URL + "/a"

	rec := serve(s, http.MethodGet, fetchPath(target, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Cache-Status"), "fwd=uri-miss")

	rec = serve(s, http.MethodGet, fetchPath(target, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Cache-Status"), "hit")
	assert.Equal(t, int32(1), o.hits.Load())

	rec = serve(s, http.MethodGet, fetchPath(target, "reload"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(2), o.hits.Load())
}

func TestServeFetchErrors(t *testing.T) {
	o := newOrigin(t)
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodGet, "/fetch").Code)
	assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodGet, fetchPath("/relative", "")).Code)
	assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodGet, fetchPath(o.URL, "sometimes")).Code)
	assert.Equal(t, http.StatusGatewayTimeout, serve(s, http.MethodGet, fetchPath(o.URL+"/x", "only-if-cached")).Code)
	assert.Equal(t, int32(0), o.hits.Load())
}

func TestServeEntries(t *testing.T) {
	o := newOrigin(t)
	s := newTestServer(t)
	target := o.URL + "/a"

	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, entryPath(target)).Code)
	require.Equal(t, http.StatusOK, serve(s, http.MethodGet, fetchPath(target, "")).Code)

	rec := serve(s, http.MethodGet, entryPath(target))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var entry struct {
		Key    string              `json:"key"`
		Status int                 `json:"status"`
		URL    string              `json:"url"`
		Header map[string][]string `json:"header"`
		Body   []byte              `json:"body"`
		Fresh  bool                `json:"fresh"`
		TTL    int                 `json:"ttl"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, "GET:"+target, entry.Key)
	assert.Equal(t, http.StatusOK, entry.Status)
	assert.Equal(t, target, entry.URL)
	assert.Equal(t, []string{"max-age=60"}, entry.Header["Cache-Control"])
	assert.Equal(t, "hello", string(entry.Body))
	assert.True(t, entry.Fresh)
	assert.InDelta(t, 60, entry.TTL, 2)

	assert.Equal(t, http.StatusNoContent, serve(s, http.MethodDelete, entryPath(target)).Code)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, entryPath(target)).Code)

	require.Equal(t, http.StatusOK, serve(s, http.MethodGet, fetchPath(target, "")).Code)
	assert.Equal(t, http.StatusNoContent, serve(s, http.MethodDelete, "/entries/all").Code)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, entryPath(target)).Code)
}

func TestServeMetrics(t *testing.T) {
	o := newOrigin(t)
	s := newTestServer(t)
	serve(s, http.MethodGet, fetchPath(o.URL+"/m", ""))
	serve(s, http.MethodGet, fetchPath(o.URL+"/m", ""))

	rec := serve(s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clientcache_hit_total")
	assert.Contains(t, rec.Body.String(), "clientcache_miss_total")
}

func TestRunCommands(t *testing.T) {
	o := newOrigin(t)
	cfg := testConfig(t, config.StorageConfig{
		Backend: config.BackendSQLite,
		Path:    filepath.Join(t.TempDir(), "cache.db"),
	})
	ctx := context.Background()
	target := o.URL + "/cli"
	logger := zerolog.Nop()

	var out bytes.Buffer
	require.NoError(t, run(ctx, cfg, logger, []string{"fetch", "-H", "Accept: text/plain", target}, &out))
	assert.True(t, strings.HasPrefix(out.String(), "HTTP/1.1 200 OK\r\n"), out.String())
	assert.True(t, strings.HasSuffix(out.String(), "\r\n\r\nhello"), out.String())

	out.Reset()
	require.NoError(t, run(ctx, cfg, logger, []string{"get", target}, &out))
	assert.Contains(t, out.String(), `"key":"GET:`+target+`"`)

	out.Reset()
	require.NoError(t, run(ctx, cfg, logger, []string{"fetch", "-mode", "only-if-cached", target}, &out))
	assert.Contains(t, out.String(), "hello")
	assert.Equal(t, int32(1), o.hits.Load())

	require.NoError(t, run(ctx, cfg, logger, []string{"delete", target}, &out))
	assert.Error(t, run(ctx, cfg, logger, []string{"get", target}, &out))

	require.NoError(t, run(ctx, cfg, logger, []string{"fetch", target}, &out))
	require.NoError(t, run(ctx, cfg, logger, []string{"clear"}, &out))
	assert.Error(t, run(ctx, cfg, logger, []string{"get", target}, &out))

	assert.Error(t, run(ctx, cfg, logger, []string{"unknown"}, &out))
	assert.Error(t, run(ctx, cfg, logger, []string{"fetch"}, &out))
	assert.Error(t, run(ctx, cfg, logger, []string{"fetch", "-H", "nocolon", target}, &out))
}

func TestHeaderFlags(t *testing.T) {
	h := headerFlags{}
	require.NoError(t, h.Set("Accept: text/html"))
	require.NoError(t, h.Set("accept:  application/json "))
	assert.Equal(t, []string{"text/html", "application/json"}, http.Header(h).Values("Accept"))
	assert.Error(t, h.Set(": value"))
}

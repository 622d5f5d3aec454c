package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mailru/easyjson"
	"github.com/pascaldekloe/metrics"
	"github.com/rs/zerolog"

	clientcache "github.com/always-cache/client-cache"
	"github.com/always-cache/client-cache/config"
	"github.com/always-cache/client-cache/rfc9111"
	nethttpadapter "github.com/always-cache/client-cache/transport/nethttp-adapter"
)

// server exposes the cache and its storage over HTTP.
type server struct {
	cache   *clientcache.Cache[*http.Request]
	storage config.Storage
	oracle  rfc9111.Oracle
	timeout time.Duration
	log     zerolog.Logger
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/fetch", s.fetch)
	r.Get("/entries", s.getEntry)
	r.Delete("/entries", s.deleteEntry)
	r.Delete("/entries/all", s.clearEntries)
	r.Get("/metrics", metrics.ServeHTTP)
	return r
}

// fetch runs a GET for the url query parameter through the cache.
func (s *server) fetch(w http.ResponseWriter, r *http.Request) {
	target, err := targetURL(r.URL.Query().Get("url"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	if modeName := r.URL.Query().Get("mode"); modeName != "" {
		mode, err := clientcache.ParseMode(modeName)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ctx = clientcache.WithMode(ctx, mode)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	copyHeader(req.Header, r.Header)

	result, err := s.cache.Run(ctx, req)
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return
	}
	if result.StoreErr != nil {
		s.log.Warn().Err(result.StoreErr).Str("url", target.String()).Msg("Response not stored")
	}
	copyHeader(w.Header(), result.Response.Header)
	w.Header().Del("Content-Length")
	w.WriteHeader(result.Response.StatusCode)
	if _, err := w.Write(result.Response.Body); err != nil {
		s.log.Error().Err(err).Msg("Could not write response body to client")
	}
}

func (s *server) getEntry(w http.ResponseWriter, r *http.Request) {
	method, target, err := entryQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entry, ok, err := s.storage.Get(r.Context(), method, target)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, _, err := easyjson.MarshalToHTTPResponseWriter(newEntryJSON(method, target, entry, s.oracle, time.Now()), w); err != nil {
		s.log.Error().Err(err).Msg("Could not write entry")
	}
}

func (s *server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	method, target, err := entryQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.storage.Delete(r.Context(), method, target); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) clearEntries(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Clear(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func newServer(cfg *config.Config, storage config.Storage, logger zerolog.Logger) (*server, error) {
	c, err := clientcache.New[*http.Request](cfg.CacheConfig(storage, &logger), nethttpadapter.New())
	if err != nil {
		return nil, err
	}
	return &server{
		cache:   c,
		storage: storage,
		oracle:  cfg.Oracle(),
		timeout: cfg.Upstream.Timeout,
		log:     logger,
	}, nil
}

func runServe(ctx context.Context, cfg *config.Config, storage config.Storage, logger zerolog.Logger) error {
	s, err := newServer(cfg, storage, logger)
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: cfg.Listen, Handler: s.routes()}

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Listen).Msg("Serving cache")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func errorStatus(err error) int {
	switch {
	case clientcache.IsKind(err, clientcache.KindCacheMiss):
		return http.StatusGatewayTimeout
	case clientcache.IsKind(err, clientcache.KindTransport):
		return http.StatusBadGateway
	case clientcache.IsKind(err, clientcache.KindRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func entryQuery(r *http.Request) (string, *url.URL, error) {
	method := r.URL.Query().Get("method")
	if method == "" {
		method = http.MethodGet
	}
	target, err := targetURL(r.URL.Query().Get("url"))
	return method, target, err
}

func targetURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("url parameter missing")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("url must be an absolute http(s) URL")
	}
	return u, nil
}

// copyHeader copies all fields except hop-by-hop and forwarding fields.
func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		switch http.CanonicalHeaderKey(k) {
		case "Connection", "Keep-Alive", "Proxy-Connection", "Transfer-Encoding", "Upgrade", "Te", "Trailer",
			"X-Forwarded-For", "X-Forwarded-Proto", "X-Forwarded-Host", "Host":
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

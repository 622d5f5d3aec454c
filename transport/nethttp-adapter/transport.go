package nethttpadapter

import (
	"net/http"

	clientcache "github.com/always-cache/client-cache"
	tee "github.com/always-cache/client-cache/pkg/response-writer-tee"
)

// Transport is an http.RoundTripper that answers requests from the cache.
type Transport struct {
	cache *clientcache.Cache[*http.Request]
}

// NewTransport returns a round tripper that runs requests through c.
func NewTransport(c *clientcache.Cache[*http.Request]) *Transport {
	return &Transport{cache: c}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	result, err := t.cache.Run(req.Context(), req)
	if err != nil {
		return nil, err
	}
	return ToHTTPResponse(req, result.Response), nil
}

// NewClient returns an http.Client whose requests go through a new cache
// configured with config and sent with next (http.DefaultTransport if nil).
func NewClient(config clientcache.Config, next http.RoundTripper) (*http.Client, *clientcache.Cache[*http.Request], error) {
	if next == nil {
		next = http.DefaultTransport
	}
	c, err := clientcache.New[*http.Request](config, NewWithTransport(next))
	if err != nil {
		return nil, nil, err
	}
	return &http.Client{Transport: NewTransport(c)}, c, nil
}

// HandlerRoundTripper sends requests to an in-process handler instead of
// the network.
type HandlerRoundTripper struct {
	Handler http.Handler
}

// RoundTrip implements http.RoundTripper.
func (h HandlerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	rw := tee.NewResponseSaver(nil)
	h.Handler.ServeHTTP(rw, req)
	return ToHTTPResponse(req, rw.Response(req.URL)), nil
}

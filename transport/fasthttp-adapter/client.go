package fasthttpadapter

import (
	"context"

	"github.com/valyala/fasthttp"

	clientcache "github.com/always-cache/client-cache"
)

// Client sends fasthttp requests through the cache.
type Client struct {
	cache *clientcache.Cache[*fasthttp.Request]
}

// NewClient returns a client with a new cache configured with config,
// sending requests with doer.
func NewClient(config clientcache.Config, doer Doer) (*Client, error) {
	c, err := clientcache.New[*fasthttp.Request](config, New(doer))
	if err != nil {
		return nil, err
	}
	return &Client{cache: c}, nil
}

// Do answers req into resp, from the cache if possible.
func (c *Client) Do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) (*clientcache.Result, error) {
	result, err := c.cache.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	WriteResponse(result.Response, resp)
	return result, nil
}

package clientcache

import (
	"net/http"
	"net/url"

	cachekey "github.com/always-cache/client-cache/pkg/cache-key"
	cacheupdate "github.com/always-cache/client-cache/pkg/cache-update"
	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
	"github.com/always-cache/client-cache/rfc9111"
)

// invalidate deletes the responses stored for the target URI of a
// successful unsafe request, for the same-origin URIs in its Location and
// Content-Location fields, and for the paths listed in Cache-Update.
func (c *Cache[R]) invalidate(r *request[R], res httpmessage.Response) {
	if err := r.ctx.Err(); err != nil {
		r.log.Trace().Err(err).Msg("Request done, not invalidating")
		return
	}
	for _, u := range invalidatedURIs(r.parts.URL, res.Header) {
		r.log.Trace().Str("uri", u.String()).Msg("Invalidating stored response")
		metricInvalidated.Add(1)
		for _, method := range []string{http.MethodGet, http.MethodHead} {
			if err := c.storage.Delete(r.ctx, method, u); err != nil {
				r.log.Warn().Err(err).Str("uri", u.String()).Msg("Could not invalidate stored response")
			}
		}
	}
}

// invalidatedURIs returns the distinct URIs to invalidate, target first.
func invalidatedURIs(target *url.URL, header http.Header) []*url.URL {
	candidates := []*url.URL{target}
	candidates = append(candidates, rfc9111.InvalidatedURIs(target, header)...)
	candidates = append(candidates, cacheupdate.Targets(target, header)...)

	seen := make(map[string]bool, len(candidates))
	uris := make([]*url.URL, 0, len(candidates))
	for _, u := range candidates {
		k := cachekey.Normalize(u).String()
		if seen[k] {
			continue
		}
		seen[k] = true
		uris = append(uris, u)
	}
	return uris
}

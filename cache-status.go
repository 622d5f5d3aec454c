package clientcache

import (
	"net/http"
	"time"

	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
	"github.com/always-cache/client-cache/rfc9211"
)

// status returns a new Cache-Status member of this cache.
func (c *Cache[R]) status() *rfc9211.CacheStatus {
	return rfc9211.New(c.cacheStatus)
}

// ttl sets the remaining freshness lifetime of the policy on cs, if the
// oracle can tell it.
func (c *Cache[R]) ttl(cs *rfc9211.CacheStatus, policy httpmessage.Policy, now time.Time) {
	if c.cacheStatus == "" {
		return
	}
	if o, ok := c.oracle.(timeToLive); ok {
		if ttl, err := o.TimeToLive(policy, now); err == nil {
			cs.TTL(ttl)
		}
	}
}

// finish adds the Cache-Status field to the returned response if enabled.
// The stored response is never annotated.
func (c *Cache[R]) finish(result *Result, cs *rfc9211.CacheStatus) *Result {
	if c.cacheStatus == "" {
		return result
	}
	cs.Stored(result.Stored)
	header := result.Response.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Add(rfc9211.HeaderName, cs.String())
	result.Response = result.Response.WithHeader(header)
	return result
}

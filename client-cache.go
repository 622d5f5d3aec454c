// Package clientcache is an HTTP response cache for outbound requests.
//
// A Cache sits between an application and its HTTP client. It serves stored
// responses while they are fresh, revalidates them with the origin when they
// are stale and stores new responses when the caching rules allow it. The
// cache works with any client through an Adapter for its request type;
// adapters for net/http and fasthttp live under transport/.
package clientcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/always-cache/client-cache/cache"
	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
	responsetransformer "github.com/always-cache/client-cache/pkg/response-transformer"
	"github.com/always-cache/client-cache/rfc9111"
	"github.com/always-cache/client-cache/rfc9211"
)

type Config struct {
	// Storage for cache entries. Required.
	Storage cache.Manager
	// Oracle deciding storability and freshness.
	// rfc9111.DefaultOracle() is used if nil.
	Oracle PolicyOracle
	// Mode used for requests whose context carries no mode (see WithMode).
	Mode CacheMode
	// Only log storage write failures instead of reporting them in
	// Result.StoreErr.
	BestEffortStore bool
	// Name of the cache in the Cache-Status header added to responses.
	// No header is added if empty.
	CacheStatus string
	// Rules for transforming fetched responses before they are considered
	// for storage.
	Rules responsetransformer.Rules
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Clock returns the current time. time.Now is used if nil.
	Clock func() time.Time
}

// Cache runs requests of type R through the cache.
// It is safe for concurrent use.
type Cache[R any] struct {
	storage         cache.Manager
	oracle          PolicyOracle
	adapter         Adapter[R]
	mode            CacheMode
	bestEffortStore bool
	cacheStatus     string
	rules           responsetransformer.Rules
	log             zerolog.Logger
	now             func() time.Time
}

// New creates a cache that sends requests through adapter.
func New[R any](config Config, adapter Adapter[R]) (*Cache[R], error) {
	if config.Storage == nil {
		return nil, errors.New("client-cache: storage not configured")
	}
	if adapter == nil {
		return nil, errors.New("client-cache: adapter not configured")
	}
	if _, err := config.Mode.MarshalText(); err != nil {
		return nil, fmt.Errorf("client-cache: %w", err)
	}

	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	c := &Cache[R]{
		storage:         config.Storage,
		oracle:          config.Oracle,
		adapter:         adapter,
		mode:            config.Mode,
		bestEffortStore: config.BestEffortStore,
		cacheStatus:     config.CacheStatus,
		rules:           config.Rules,
		log:             logger,
		now:             config.Clock,
	}
	if c.oracle == nil {
		c.oracle = rfc9111.DefaultOracle()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// request is the state of a single Run.
type request[R any] struct {
	ctx   context.Context
	req   R
	parts httpmessage.RequestParts
	mode  CacheMode
	log   zerolog.Logger
}

// Run answers req from the cache or the network.
//
// Errors are of type *Error. A failed storage write does not fail the
// request; it is reported in Result.StoreErr instead.
func (c *Cache[R]) Run(ctx context.Context, req R) (*Result, error) {
	parts, err := c.adapter.RequestParts(req)
	if err != nil {
		metricFailed.Add(1)
		return nil, newError("request", KindRequest, err)
	}
	if parts.Method == "" || parts.URL == nil {
		metricFailed.Add(1)
		return nil, newError("request", KindRequest, errors.New("request method or URL missing"))
	}

	mode := c.mode
	if m, ok := ModeFromContext(ctx); ok {
		mode = m
	}

	// create a child logger and add request details
	r := &request[R]{
		ctx:   ctx,
		req:   req,
		parts: parts,
		mode:  mode,
		log: c.log.With().
			Str("req_id", uuid.NewString()).
			Str("method", parts.Method).
			Str("url", parts.URL.String()).
			Stringer("mode", mode).
			Logger(),
	}

	result, err := c.run(r)
	if err != nil {
		metricFailed.Add(1)
		r.log.Debug().Err(err).Msg("Request failed")
		return nil, err
	}
	countOutcome(result)
	r.log.Debug().
		Stringer("outcome", result.Outcome).
		Int("status", result.Response.StatusCode).
		Bool("stored", result.Stored).
		AnErr("storeErr", result.StoreErr).
		Msg("Sending response")
	return result, nil
}

func (c *Cache[R]) run(r *request[R]) (*Result, error) {
	if !cacheableMethod(r.parts.Method) || r.mode == NoStore {
		return c.bypass(r)
	}
	if r.mode == Reload {
		return c.fetchAndStore(r, rfc9211.FwdReasonRequest)
	}

	entry, ok := c.lookup(r)
	if !ok {
		if r.mode == OnlyIfCached {
			return nil, newError("get", KindCacheMiss, ErrCacheMiss)
		}
		return c.fetchAndStore(r, rfc9211.FwdReasonUriMiss)
	}

	switch r.mode {
	case ForceCache, OnlyIfCached, IgnoreRules:
		r.log.Trace().Msg("Serving stored response regardless of freshness")
		return c.serveStored(r, entry, false)
	}

	matches, err := c.oracle.Matches(entry.Policy, r.parts)
	if err != nil {
		return c.discard(r, err)
	}
	if !matches {
		r.log.Trace().Msg("Stored response does not match request header fields")
		return c.fetchAndStore(r, rfc9211.FwdReasonVaryMiss)
	}

	fresh, err := c.oracle.IsFresh(entry.Policy, c.now())
	if err != nil {
		return c.discard(r, err)
	}
	if fresh && r.mode != NoCache {
		return c.serveStored(r, entry, true)
	}
	reason := rfc9211.FwdReasonStale
	if fresh {
		reason = rfc9211.FwdReasonRequest
	}
	return c.revalidate(r, entry, reason)
}

// discard deletes an entry whose stored policy record cannot be read and
// fetches the response as if nothing was stored.
func (c *Cache[R]) discard(r *request[R], err error) (*Result, error) {
	r.log.Warn().Err(err).Msg("Discarding cache entry with unreadable policy")
	c.delete(r)
	return c.fetchAndStore(r, rfc9211.FwdReasonUriMiss)
}

// bypass sends the request without consulting the cache. Successful unsafe
// requests invalidate the responses stored for the affected URIs.
func (c *Cache[R]) bypass(r *request[R]) (*Result, error) {
	res, err := c.fetch(r, r.req)
	if err != nil {
		return nil, err
	}
	reason := rfc9211.FwdReasonMethod
	if r.mode == NoStore {
		reason = rfc9211.FwdReasonBypass
	} else if rfc9111.UnsafeMethod(r.parts.Method) && rfc9111.NonErrorStatus(res.StatusCode) {
		c.invalidate(r, res)
	}
	result := &Result{Outcome: Bypass, Response: res}
	return c.finish(result, c.status().Forward(reason)), nil
}

// fetchAndStore fetches the response and stores it if allowed.
func (c *Cache[R]) fetchAndStore(r *request[R], reason rfc9211.FwdReason) (*Result, error) {
	res, err := c.fetch(r, r.req)
	if err != nil {
		return nil, err
	}
	return c.storeFetched(r, res, MissFetched, c.status().Forward(reason))
}

// storeFetched stores a response received from the network if the oracle
// allows it. On revalidation, an entry replaced by an unstorable response
// is deleted.
func (c *Cache[R]) storeFetched(r *request[R], res httpmessage.Response, outcome Outcome, cs *rfc9211.CacheStatus) (*Result, error) {
	res = c.rules.Apply(r.parts, res)
	now := c.now()
	policy, err := c.oracle.NewPolicy(r.parts, res.Parts(), now)
	if err != nil {
		return nil, newError("policy", KindPolicy, err)
	}
	storable, err := c.oracle.IsStorable(policy)
	if err != nil {
		return nil, newError("storable", KindPolicy, err)
	}
	if r.mode == IgnoreRules && res.StatusCode == http.StatusOK {
		storable = true
	}

	result := &Result{Outcome: outcome, Response: res}
	if storable {
		c.put(r, res, policy, result)
		c.ttl(cs, policy, now)
	} else {
		r.log.Trace().Int("status", res.StatusCode).Msg("Non-storable response")
		if outcome == RevalidatedReplaced {
			c.delete(r)
		}
	}
	return c.finish(result, cs), nil
}

// serveStored returns the stored response, optionally with a current Age.
func (c *Cache[R]) serveStored(r *request[R], entry cache.Entry, withAge bool) (*Result, error) {
	res := entry.Response
	now := c.now()
	if withAge {
		age, err := c.oracle.Age(entry.Policy, now)
		if err != nil {
			return c.discard(r, err)
		}
		header := res.Header.Clone()
		if header == nil {
			header = make(http.Header)
		}
		header.Set("Age", strconv.FormatInt(int64(age/time.Second), 10))
		res = res.WithHeader(header)
	}
	r.log.Trace().Msg("Cache hit and serving")
	cs := c.status().Hit()
	c.ttl(cs, entry.Policy, now)
	return c.finish(&Result{Outcome: Hit, Response: res}, cs), nil
}

// revalidate sends a conditional request for the stored response.
func (c *Cache[R]) revalidate(r *request[R], entry cache.Entry, reason rfc9211.FwdReason) (*Result, error) {
	req, err := c.adapter.CloneRequest(r.req)
	if err != nil {
		if !errors.Is(err, ErrRequestClone) {
			err = fmt.Errorf("%w: %v", ErrRequestClone, err)
		}
		return nil, newError("clone", KindRequestClone, err)
	}
	header, err := c.oracle.RevalidationHeaders(entry.Policy, r.parts)
	if err != nil {
		return c.discard(r, err)
	}
	if err := c.adapter.ApplyHeaders(req, header); err != nil {
		return nil, newError("revalidation headers", KindRequest, err)
	}
	if r.mode == NoCache {
		c.adapter.ForceNoCache(req)
	}

	r.log.Trace().Str("reason", string(reason)).Msg("Revalidating stored response")
	res, err := c.fetch(r, req)
	if err != nil {
		return nil, err
	}
	cs := c.status().Forward(reason).FwdStatus(res.StatusCode)

	if res.StatusCode != http.StatusNotModified {
		return c.storeFetched(r, res, RevalidatedReplaced, cs)
	}

	now := c.now()
	policy, err := c.oracle.Merge(entry.Policy, r.parts, res.Parts(), now)
	if err != nil {
		return nil, newError("merge", KindPolicy, err)
	}
	merged := entry.Response.Freshen(res.Header)
	result := &Result{Outcome: RevalidatedUnchanged, Response: merged}
	c.put(r, merged, policy, result)
	c.ttl(cs, policy, now)
	return c.finish(result, cs), nil
}

func (c *Cache[R]) fetch(r *request[R], req R) (httpmessage.Response, error) {
	r.log.Trace().Msg("Fetching from network")
	res, err := c.adapter.Fetch(r.ctx, req)
	if err != nil {
		return httpmessage.Response{}, newError("fetch", KindTransport, err)
	}
	return res, nil
}

// lookup reads the stored entry. Read failures are logged and count as a miss.
func (c *Cache[R]) lookup(r *request[R]) (cache.Entry, bool) {
	entry, ok, err := c.storage.Get(r.ctx, r.parts.Method, r.parts.URL)
	if err != nil {
		r.log.Warn().Err(err).Msg("Could not read from cache")
		return cache.Entry{}, false
	}
	r.log.Trace().Bool("found", ok).Msg("Cache lookup")
	return entry, ok
}

// put writes the entry unless the request context is done.
func (c *Cache[R]) put(r *request[R], res httpmessage.Response, policy httpmessage.Policy, result *Result) {
	if err := r.ctx.Err(); err != nil {
		r.log.Trace().Err(err).Msg("Request done, not writing to cache")
		return
	}
	if _, err := c.storage.Put(r.ctx, r.parts.Method, r.parts.URL, res, policy); err != nil {
		metricStoreFailed.Add(1)
		r.log.Warn().Err(err).Msg("Could not write to cache")
		if !c.bestEffortStore {
			result.StoreErr = newError("put", KindStorageWrite, err)
		}
		return
	}
	r.log.Trace().Msg("Cache write")
	result.Stored = true
}

func (c *Cache[R]) delete(r *request[R]) {
	if err := r.ctx.Err(); err != nil {
		return
	}
	if err := c.storage.Delete(r.ctx, r.parts.Method, r.parts.URL); err != nil {
		r.log.Warn().Err(err).Msg("Could not delete from cache")
	}
}

func cacheableMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

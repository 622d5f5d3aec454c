package clientcache

import (
	"context"
	"net/http"
	"time"

	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
)

// Adapter connects the cache to an HTTP client whose requests are of type R.
type Adapter[R any] interface {
	// CloneRequest returns an independent copy of req. Requests whose body
	// cannot be replayed fail with ErrRequestClone.
	CloneRequest(req R) (R, error)
	// Fetch sends req over the network and returns the buffered response.
	// Redirects are not followed.
	Fetch(ctx context.Context, req R) (httpmessage.Response, error)
	RequestParts(req R) (httpmessage.RequestParts, error)
	// ApplyHeaders sets every field of header on req, replacing fields of
	// the same name.
	ApplyHeaders(req R, header http.Header) error
	// ForceNoCache makes req ask intermediaries for an end-to-end revalidation.
	ForceNoCache(req R)
}

// PolicyOracle interprets HTTP caching semantics. Policies are opaque to
// the cache and only ever passed back to the oracle that created them.
type PolicyOracle interface {
	NewPolicy(req httpmessage.RequestParts, res httpmessage.ResponseParts, now time.Time) (httpmessage.Policy, error)
	IsStorable(p httpmessage.Policy) (bool, error)
	IsFresh(p httpmessage.Policy, now time.Time) (bool, error)
	// Matches reports whether the stored response may be selected for req,
	// i.e. whether the request header fields nominated by Vary match.
	Matches(p httpmessage.Policy, req httpmessage.RequestParts) (bool, error)
	// RevalidationHeaders returns the conditional request fields to send
	// when revalidating the stored response.
	RevalidationHeaders(p httpmessage.Policy, req httpmessage.RequestParts) (http.Header, error)
	// Merge returns the policy of the stored response freshened by a 304.
	Merge(p httpmessage.Policy, req httpmessage.RequestParts, res httpmessage.ResponseParts, now time.Time) (httpmessage.Policy, error)
	// Age returns the current age of the stored response.
	Age(p httpmessage.Policy, now time.Time) (time.Duration, error)
}

// timeToLive is implemented by oracles that can tell the remaining
// freshness of a policy.
type timeToLive interface {
	TimeToLive(p httpmessage.Policy, now time.Time) (time.Duration, error)
}

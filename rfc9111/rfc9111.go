// Package rfc9111 implements the cache policy decisions of RFC 9111 (HTTP
// Caching) for a client-side cache: whether a response may be stored, whether
// a stored response is fresh, how to validate it and how to freshen it.
//
// Files are named after the RFC sections they implement and quote the
// relevant text with a leading "§".
package rfc9111

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
)

var ErrInvalidPolicy = errors.New("invalid policy record")

// Oracle computes cache policy records and answers questions about them.
// The zero value is a private cache without heuristic freshness.
type Oracle struct {
	// Shared makes the oracle apply the rules for shared caches
	// (s-maxage, private, Authorization).
	Shared bool
	// HeuristicFraction of the time since Last-Modified used as freshness
	// lifetime when the response has no explicit expiration. Zero disables
	// heuristic freshness.
	HeuristicFraction float64
	// MaxHeuristic caps the heuristic freshness lifetime if non-zero.
	MaxHeuristic time.Duration
	// ImmutableMinTTL is the minimum freshness lifetime of responses marked
	// immutable that lack a max-age directive.
	ImmutableMinTTL time.Duration
}

// DefaultOracle returns the oracle with the default cache options:
// shared, 10% heuristic freshness and a one day lifetime for immutable
// responses.
func DefaultOracle() Oracle {
	return Oracle{
		Shared:            true,
		HeuristicFraction: 0.1,
		ImmutableMinTTL:   24 * time.Hour,
	}
}

// NewPolicy creates the policy record for a response received at now.
func (o Oracle) NewPolicy(req httpmessage.RequestParts, res httpmessage.ResponseParts, now time.Time) (httpmessage.Policy, error) {
	if req.Method == "" {
		return nil, fmt.Errorf("%w: request method empty", ErrInvalidPolicy)
	}
	if req.URL == nil {
		return nil, fmt.Errorf("%w: request URL empty", ErrInvalidPolicy)
	}
	if res.StatusCode < 100 || res.StatusCode > 999 {
		return nil, fmt.Errorf("%w: status code %d", ErrInvalidPolicy, res.StatusCode)
	}
	p := policy{
		Method:         req.Method,
		URL:            req.URL.String(),
		StatusCode:     res.StatusCode,
		RequestHeader:  nominatedRequestHeader(req.Header, res.Header),
		Authorized:     req.Header.Get("Authorization") != "",
		ResponseHeader: storableHeader(res.Header),
		ResponseTime:   now,
	}
	return p.marshal(), nil
}

// IsStorable reports whether the response the policy was created for may be
// stored.
func (o Oracle) IsStorable(record httpmessage.Policy) (bool, error) {
	p, err := unmarshalPolicy(record)
	if err != nil {
		return false, err
	}
	return !o.mustNotStore(p), nil
}

// IsFresh reports whether the stored response can be used at now without
// validation.
func (o Oracle) IsFresh(record httpmessage.Policy, now time.Time) (bool, error) {
	p, err := unmarshalPolicy(record)
	if err != nil {
		return false, err
	}
	return o.isFresh(p, now), nil
}

// Matches reports whether the stored response may be selected for req, i.e.
// whether the request header fields nominated by Vary match.
func (o Oracle) Matches(record httpmessage.Policy, req httpmessage.RequestParts) (bool, error) {
	p, err := unmarshalPolicy(record)
	if err != nil {
		return false, err
	}
	return headerFieldsMatch(p, req.Header), nil
}

// RevalidationHeaders returns the precondition header fields to add to req in
// order to validate the stored response.
func (o Oracle) RevalidationHeaders(record httpmessage.Policy, req httpmessage.RequestParts) (http.Header, error) {
	p, err := unmarshalPolicy(record)
	if err != nil {
		return nil, err
	}
	return validationHeader(p), nil
}

// Merge returns the policy of the stored response freshened with a 304 (Not
// Modified) response received at now.
func (o Oracle) Merge(record httpmessage.Policy, req httpmessage.RequestParts, res httpmessage.ResponseParts, now time.Time) (httpmessage.Policy, error) {
	p, err := unmarshalPolicy(record)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusNotModified {
		return nil, fmt.Errorf("%w: cannot merge status %d", ErrInvalidPolicy, res.StatusCode)
	}
	return freshen(p, req, res, now).marshal(), nil
}

// Age returns the current age of the stored response at now.
func (o Oracle) Age(record httpmessage.Policy, now time.Time) (time.Duration, error) {
	p, err := unmarshalPolicy(record)
	if err != nil {
		return 0, err
	}
	return current_age(p, now), nil
}

// TimeToLive returns how long the stored response stays fresh after now.
// It is negative for stale responses.
func (o Oracle) TimeToLive(record httpmessage.Policy, now time.Time) (time.Duration, error) {
	p, err := unmarshalPolicy(record)
	if err != nil {
		return 0, err
	}
	return o.freshness_lifetime(p) - current_age(p, now), nil
}

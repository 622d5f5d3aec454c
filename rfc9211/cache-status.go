// Package rfc9211 builds values of the Cache-Status response header field
// (RFC 9211).
package rfc9211

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const HeaderName = "Cache-Status"

type Status string

const (
	StatusHit Status = "hit"
	StatusFwd Status = "fwd"
)

type FwdReason string

const (
	// The cache was configured to not handle this request.
	FwdReasonBypass FwdReason = "bypass"

	// The request method's semantics require the request to be
	// forwarded.
	FwdReasonMethod FwdReason = "method"

	// The cache did not contain any responses that matched the
	// request URI.
	FwdReasonUriMiss FwdReason = "uri-miss"

	// The cache contained a response that matched the request
	// URI, but it could not select a response based upon this request's
	// header fields and stored Vary header fields.
	FwdReasonVaryMiss FwdReason = "vary-miss"

	// The cache did not contain any responses that could be used to
	// satisfy this request (to be used when an implementation cannot
	// distinguish between uri-miss and vary-miss).
	FwdReasonMiss FwdReason = "miss"

	// The cache was able to select a fresh response for the
	// request, but the request's semantics (e.g., Cache-Control request
	// directives) did not allow its use.
	FwdReasonRequest FwdReason = "request"

	// The cache was able to select a response for the request, but
	// it was stale.
	FwdReasonStale FwdReason = "stale"

	// The cache was able to select a partial response for the
	// request, but it did not contain all of the requested ranges (or
	// the request was for the complete response).
	FwdReasonPartial FwdReason = "partial"
)

// CacheStatus is the Cache-Status member of a single cache.
//
// §     Each member of the list represents a cache that has handled the
// §     request.  The first member of the list represents the cache closest
// §     to the origin server, and the last member of the list represents the
// §     cache closest to the user
//
// A client cache is closest to the user, so its member is appended last.
type CacheStatus struct {
	name      string
	status    Status
	fwdReason FwdReason
	fwdStatus int
	ttl       *time.Duration
	stored    bool
	detail    string
}

// New returns the Cache-Status member for the cache with the given name.
func New(name string) *CacheStatus {
	return &CacheStatus{name: name}
}

func (cs *CacheStatus) Hit() *CacheStatus {
	cs.status = StatusHit
	return cs
}

func (cs *CacheStatus) Forward(reason FwdReason) *CacheStatus {
	cs.status = StatusFwd
	cs.fwdReason = reason
	return cs
}

// §  2.3.  The fwd-status Parameter
// §
// §     "fwd-status" indicates what status code the next hop server returned
// §     in response to the forwarded request.
func (cs *CacheStatus) FwdStatus(statusCode int) *CacheStatus {
	cs.fwdStatus = statusCode
	return cs
}

// §  2.4.  The ttl Parameter
// §
// §     "ttl" indicates the response's remaining freshness lifetime as
// §     calculated by the cache, as an integer number of seconds, measured
// §     when the response header section is sent by the cache.
func (cs *CacheStatus) TTL(ttl time.Duration) *CacheStatus {
	cs.ttl = &ttl
	return cs
}

// §  2.5.  The stored Parameter
// §
// §     "stored" indicates whether the cache stored the response.
func (cs *CacheStatus) Stored(stored bool) *CacheStatus {
	cs.stored = stored
	return cs
}

func (cs *CacheStatus) Detail(detail string) *CacheStatus {
	cs.detail = detail
	return cs
}

func (cs *CacheStatus) String() string {
	var b strings.Builder
	b.WriteString(cacheName(cs.name))
	b.WriteString("; ")
	b.WriteString(string(cs.status))
	if cs.status == StatusFwd && cs.fwdReason != "" {
		b.WriteString("=" + string(cs.fwdReason))
	}
	if cs.fwdStatus != 0 {
		b.WriteString("; fwd-status=" + strconv.Itoa(cs.fwdStatus))
	}
	if cs.ttl != nil {
		b.WriteString("; ttl=" + strconv.FormatInt(int64(*cs.ttl/time.Second), 10))
	}
	if cs.stored {
		b.WriteString("; stored")
	}
	if cs.detail != "" {
		b.WriteString("; detail=" + quoteString(cs.detail))
	}
	return b.String()
}

// cacheName returns the name as a token if possible, as a quoted string otherwise.
func cacheName(name string) string {
	if isToken(name) {
		return name
	}
	return quoteString(name)
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	if !(c == '*' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !strings.ContainsRune("!#$%&'*+-.^_`|~:/", rune(s[i])) &&
			!(s[i] >= '0' && s[i] <= '9') && !(s[i] >= 'a' && s[i] <= 'z') && !(s[i] >= 'A' && s[i] <= 'Z') {
			return false
		}
	}
	return true
}

func quoteString(s string) string {
	return fmt.Sprintf("%q", s)
}

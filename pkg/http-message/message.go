// Package httpmessage holds the transport-neutral HTTP values that flow between
// the cache engine, its transport adapters, the policy oracle and storage.
package httpmessage

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RequestParts is the read-only view of an outgoing request.
type RequestParts struct {
	Method string
	URL    *url.URL
	Header http.Header
}

// ResponseParts is the status and header view of a response, without body.
type ResponseParts struct {
	StatusCode int
	Header     http.Header
}

// Response is a fully buffered response as fetched from the network or read
// back from storage.
//
// Values are treated as immutable: methods return modified copies and the
// body is never written to after construction.
type Response struct {
	StatusCode int
	// Header names are kept in canonical MIME form, values in received order.
	Header http.Header
	Body   []byte
	// URL is the effective URL of the response.
	URL        *url.URL
	Proto      string
	ProtoMajor int
	ProtoMinor int
}

// Policy is the opaque serialized state produced by the policy oracle.
type Policy []byte

// Parts returns the status and header view of the response.
func (r Response) Parts() ResponseParts {
	return ResponseParts{StatusCode: r.StatusCode, Header: r.Header}
}

// Status returns the status line text, e.g. "200 OK".
func (r Response) Status() string {
	return fmt.Sprintf("%d %s", r.StatusCode, http.StatusText(r.StatusCode))
}

// WithHeader returns a copy of the response with the header replaced.
func (r Response) WithHeader(header http.Header) Response {
	r.Header = header
	return r
}

// Clone returns a deep copy of the response.
func (r Response) Clone() Response {
	c := r
	c.Header = r.Header.Clone()
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	if r.URL != nil {
		u := *r.URL
		c.URL = &u
	}
	return c
}

// Freshen returns a copy of the stored response whose header fields are
// updated from the header of a 304 (Not Modified) response.
func (r Response) Freshen(notModified http.Header) Response {
	return r.WithHeader(MergeHeader(r.Header, notModified))
}

// MergeHeader returns the stored header with every field present in received
// replacing the stored field of the same name. Content-Length and hop-by-hop
// fields of received are ignored. A stored Age field only survives if received
// carries one. Neither input is modified.
func MergeHeader(stored, received http.Header) http.Header {
	merged := stored.Clone()
	if merged == nil {
		merged = make(http.Header)
	}
	merged.Del("Age")
	skip := hopByHop(received)
	skip["Content-Length"] = true
	for name, values := range received {
		name = http.CanonicalHeaderKey(name)
		if skip[name] {
			continue
		}
		merged[name] = append([]string(nil), values...)
	}
	return merged
}

// CanonicalHeader returns a copy of h with all names in canonical form.
// Values of names that only differ in case are joined in iteration order.
func CanonicalHeader(h http.Header) http.Header {
	c := make(http.Header, len(h))
	for name, values := range h {
		key := http.CanonicalHeaderKey(name)
		c[key] = append(c[key], values...)
	}
	return c
}

func hopByHop(h http.Header) map[string]bool {
	fields := map[string]bool{
		"Connection":          true,
		"Keep-Alive":          true,
		"Proxy-Connection":    true,
		"Proxy-Authenticate":  true,
		"Proxy-Authorization": true,
		"Te":                  true,
		"Trailer":             true,
		"Transfer-Encoding":   true,
		"Upgrade":             true,
	}
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				fields[http.CanonicalHeaderKey(name)] = true
			}
		}
	}
	return fields
}

// Package nethttpadapter runs net/http requests through the client cache.
package nethttpadapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/net/http/httpguts"

	clientcache "github.com/always-cache/client-cache"
	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
)

// Adapter is the clientcache.Adapter for *http.Request.
type Adapter struct {
	client *http.Client
}

// New returns an adapter that sends requests with http.DefaultTransport.
func New() *Adapter {
	return NewWithTransport(http.DefaultTransport)
}

// NewWithTransport returns an adapter that sends requests with rt.
// Redirects are returned to the caller, not followed.
func NewWithTransport(rt http.RoundTripper) *Adapter {
	return &Adapter{
		client: &http.Client{
			Transport: rt,
			// do not follow redirects
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// CloneRequest returns a deep copy of req. A request body is replayed with
// GetBody; requests with a body but no GetBody cannot be cloned.
func (a *Adapter) CloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("%w: body of %s %s cannot be replayed", clientcache.ErrRequestClone, req.Method, req.URL)
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", clientcache.ErrRequestClone, err)
	}
	clone.Body = body
	return clone, nil
}

// Fetch sends req and buffers the response.
func (a *Adapter) Fetch(ctx context.Context, req *http.Request) (httpmessage.Response, error) {
	res, err := a.client.Do(req.WithContext(ctx))
	if err != nil {
		return httpmessage.Response{}, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return httpmessage.Response{}, fmt.Errorf("reading response body: %w", err)
	}
	u := req.URL
	if res.Request != nil && res.Request.URL != nil {
		u = res.Request.URL
	}
	return httpmessage.Response{
		StatusCode: res.StatusCode,
		Header:     httpmessage.CanonicalHeader(res.Header),
		Body:       body,
		URL:        u,
		Proto:      res.Proto,
		ProtoMajor: res.ProtoMajor,
		ProtoMinor: res.ProtoMinor,
	}, nil
}

func (a *Adapter) RequestParts(req *http.Request) (httpmessage.RequestParts, error) {
	if req.URL == nil {
		return httpmessage.RequestParts{}, fmt.Errorf("request has no URL")
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return httpmessage.RequestParts{
		Method: method,
		URL:    req.URL,
		Header: req.Header.Clone(),
	}, nil
}

// ApplyHeaders sets all fields of header on req. Invalid field names or
// values are rejected before req is modified.
func (a *Adapter) ApplyHeaders(req *http.Request, header http.Header) error {
	for name, values := range header {
		if !httpguts.ValidHeaderFieldName(name) {
			return fmt.Errorf("invalid header field name %q", name)
		}
		for _, value := range values {
			if !httpguts.ValidHeaderFieldValue(value) {
				return fmt.Errorf("invalid value for header field %s", name)
			}
		}
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	for name, values := range header {
		req.Header[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	return nil
}

func (a *Adapter) ForceNoCache(req *http.Request) {
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	req.Header.Set("Cache-Control", "no-cache")
}

// ToHTTPResponse converts a cached response back into an *http.Response
// for req.
func ToHTTPResponse(req *http.Request, res httpmessage.Response) *http.Response {
	header := res.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	proto, major, minor := res.Proto, res.ProtoMajor, res.ProtoMinor
	if proto == "" {
		proto, major, minor = "HTTP/1.1", 1, 1
	}
	return &http.Response{
		Status:        res.Status(),
		StatusCode:    res.StatusCode,
		Proto:         proto,
		ProtoMajor:    major,
		ProtoMinor:    minor,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(res.Body)),
		ContentLength: int64(len(res.Body)),
		Request:       req,
	}
}

// Package fasthttpadapter runs fasthttp requests through the client cache.
package fasthttpadapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/net/http/httpguts"

	clientcache "github.com/always-cache/client-cache"
	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
)

// Doer sends fasthttp requests. *fasthttp.Client and *fasthttp.HostClient
// implement it.
type Doer interface {
	Do(req *fasthttp.Request, resp *fasthttp.Response) error
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
}

// Adapter is the clientcache.Adapter for *fasthttp.Request.
type Adapter struct {
	doer Doer
}

// New returns an adapter sending requests with doer.
// A zero fasthttp.Client is used if doer is nil.
func New(doer Doer) *Adapter {
	if doer == nil {
		doer = &fasthttp.Client{}
	}
	return &Adapter{doer: doer}
}

// CloneRequest copies req. Streamed bodies cannot be replayed.
func (a *Adapter) CloneRequest(req *fasthttp.Request) (*fasthttp.Request, error) {
	if req.IsBodyStream() {
		return nil, fmt.Errorf("%w: streamed request body", clientcache.ErrRequestClone)
	}
	clone := &fasthttp.Request{}
	req.CopyTo(clone)
	return clone, nil
}

// Fetch sends req. The context deadline, if any, bounds the request;
// fasthttp cannot abort a request on cancellation alone.
func (a *Adapter) Fetch(ctx context.Context, req *fasthttp.Request) (httpmessage.Response, error) {
	if err := ctx.Err(); err != nil {
		return httpmessage.Response{}, err
	}
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = a.doer.DoDeadline(req, resp, deadline)
	} else {
		err = a.doer.Do(req, resp)
	}
	if err != nil {
		return httpmessage.Response{}, err
	}

	u, err := requestURL(req)
	if err != nil {
		return httpmessage.Response{}, err
	}
	header := make(http.Header)
	resp.Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	res := httpmessage.Response{
		StatusCode: resp.StatusCode(),
		Header:     httpmessage.CanonicalHeader(header),
		Body:       append([]byte(nil), resp.Body()...),
		URL:        u,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
	}
	if !resp.Header.IsHTTP11() {
		res.Proto, res.ProtoMinor = "HTTP/1.0", 0
	}
	return res, nil
}

func (a *Adapter) RequestParts(req *fasthttp.Request) (httpmessage.RequestParts, error) {
	u, err := requestURL(req)
	if err != nil {
		return httpmessage.RequestParts{}, err
	}
	header := make(http.Header)
	req.Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return httpmessage.RequestParts{
		Method: string(req.Header.Method()),
		URL:    u,
		Header: httpmessage.CanonicalHeader(header),
	}, nil
}

// ApplyHeaders sets all fields of header on req. Invalid field names or
// values are rejected before req is modified.
func (a *Adapter) ApplyHeaders(req *fasthttp.Request, header http.Header) error {
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
	for name, values := range header {
		req.Header.Del(name)
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	return nil
}

func (a *Adapter) ForceNoCache(req *fasthttp.Request) {
	req.Header.Set("Cache-Control", "no-cache")
}

// WriteResponse copies a cached response into resp.
func WriteResponse(res httpmessage.Response, resp *fasthttp.Response) {
	resp.Reset()
	resp.SetStatusCode(res.StatusCode)
	for name, values := range res.Header {
		if name == "Content-Length" {
			continue
		}
		for _, value := range values {
			resp.Header.Add(name, value)
		}
	}
	resp.SetBody(res.Body)
}

func requestURL(req *fasthttp.Request) (*url.URL, error) {
	u, err := url.Parse(string(req.URI().FullURI()))
	if err != nil {
		return nil, fmt.Errorf("request URL: %w", err)
	}
	return u, nil
}

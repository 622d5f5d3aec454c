package tee

import (
	"bytes"
	"net/http"
	"net/url"

	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
)

// ResponseSaver is a wrapper around http.ResponseWriter that saves the response to a buffer.
// It optionally writes the response to the underlying http.ResponseWriter.
type ResponseSaver struct {
	rw           http.ResponseWriter
	b            *bytes.Buffer
	header       http.Header
	status       int
	wroteHeaders bool
	statusFilter int
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Header() http.Header {
	return t.header
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) WriteHeader(statusCode int) {
	if t.wroteHeaders {
		return
	}
	// do not write to underlying rw if status code equals filter
	if statusCode == t.statusFilter {
		t.rw = nil
	}
	// remember that we wrote the headers
	t.wroteHeaders = true
	// set the status code so we can return it later
	t.status = statusCode
	// write to underlying http.ResponseWriter if not nil
	if t.rw != nil {
		copyHeader(t.rw.Header(), t.header)
		t.rw.WriteHeader(statusCode)
	}
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Write(b []byte) (int, error) {
	// write headers if not already written
	if !t.wroteHeaders {
		t.WriteHeader(http.StatusOK)
	}
	// write to underlying http.ResponseWriter if not nil
	if t.rw != nil {
		t.rw.Write(b)
	}
	// write to buffer and return written bytes
	return t.b.Write(b)
}

// Body returns the recorded response body.
func (t *ResponseSaver) Body() []byte {
	return t.b.Bytes()
}

// StatusCode returns the status code of the response.
func (t *ResponseSaver) StatusCode() int {
	if !t.wroteHeaders {
		return http.StatusOK
	}
	return t.status
}

// Response returns the recorded response as an HTTP/1.1 message for u.
func (t *ResponseSaver) Response(u *url.URL) httpmessage.Response {
	return httpmessage.Response{
		StatusCode: t.StatusCode(),
		Header:     httpmessage.CanonicalHeader(t.header),
		Body:       append([]byte(nil), t.b.Bytes()...),
		URL:        u,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
	}
}

// NewResponseSaver returns a new ResponseSaver.
// If rw is not nil, the response will be written (tee'd) to it in addition to saving to buffer.
// A response with the optional filter status is saved but not written to rw.
func NewResponseSaver(w http.ResponseWriter, statusFilter ...int) *ResponseSaver {
	rs := &ResponseSaver{
		rw:     w,
		b:      &bytes.Buffer{},
		header: http.Header{},
	}
	if len(statusFilter) == 1 {
		rs.statusFilter = statusFilter[0]
	}
	return rs
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

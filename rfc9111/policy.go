package rfc9111

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tinylib/msgp/msgp"

	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
)

const policyVersion = 1

// policy is the decoded form of a policy record.
type policy struct {
	Method     string
	URL        string
	StatusCode int
	// RequestHeader holds the request fields nominated by Vary and the
	// request Cache-Control field.
	RequestHeader http.Header
	// Authorized is set if the request carried an Authorization field.
	Authorized     bool
	ResponseHeader http.Header
	// ResponseTime is the clock value when the response was received.
	ResponseTime time.Time
}

func (p policy) cacheControl() CacheControl {
	return ParseCacheControl(p.ResponseHeader.Values("Cache-Control"))
}

func (p policy) requestCacheControl() CacheControl {
	return ParseCacheControl(p.RequestHeader.Values("Cache-Control"))
}

func (p policy) marshal() httpmessage.Policy {
	b := msgp.AppendMapHeader(nil, 8)
	b = msgp.AppendString(b, "v")
	b = msgp.AppendInt(b, policyVersion)
	b = msgp.AppendString(b, "method")
	b = msgp.AppendString(b, p.Method)
	b = msgp.AppendString(b, "url")
	b = msgp.AppendString(b, p.URL)
	b = msgp.AppendString(b, "status")
	b = msgp.AppendInt(b, p.StatusCode)
	b = msgp.AppendString(b, "reqHeader")
	b = httpmessage.AppendHeader(b, p.RequestHeader)
	b = msgp.AppendString(b, "authorized")
	b = msgp.AppendBool(b, p.Authorized)
	b = msgp.AppendString(b, "resHeader")
	b = httpmessage.AppendHeader(b, p.ResponseHeader)
	b = msgp.AppendString(b, "responseTime")
	b = msgp.AppendTime(b, p.ResponseTime)
	return b
}

func unmarshalPolicy(record httpmessage.Policy) (policy, error) {
	var p policy
	b := []byte(record)
	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	version := 0
	for i := uint32(0); i < sz; i++ {
		var field []byte
		field, b, err = msgp.ReadMapKeyZC(b)
		if err != nil {
			return p, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
		}
		switch string(field) {
		case "v":
			version, b, err = msgp.ReadIntBytes(b)
		case "method":
			p.Method, b, err = msgp.ReadStringBytes(b)
		case "url":
			p.URL, b, err = msgp.ReadStringBytes(b)
		case "status":
			p.StatusCode, b, err = msgp.ReadIntBytes(b)
		case "reqHeader":
			p.RequestHeader, b, err = httpmessage.ReadHeaderBytes(b)
		case "authorized":
			p.Authorized, b, err = msgp.ReadBoolBytes(b)
		case "resHeader":
			p.ResponseHeader, b, err = httpmessage.ReadHeaderBytes(b)
		case "responseTime":
			p.ResponseTime, b, err = msgp.ReadTimeBytes(b)
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return p, fmt.Errorf("%w: field %s: %v", ErrInvalidPolicy, field, err)
		}
	}
	if version != policyVersion {
		return p, fmt.Errorf("%w: version %d", ErrInvalidPolicy, version)
	}
	if p.StatusCode < 100 || p.StatusCode > 999 {
		return p, fmt.Errorf("%w: status code %d", ErrInvalidPolicy, p.StatusCode)
	}
	if p.RequestHeader == nil {
		p.RequestHeader = make(http.Header)
	}
	if p.ResponseHeader == nil {
		p.ResponseHeader = make(http.Header)
	}
	return p, nil
}

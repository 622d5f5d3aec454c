// Package serializer converts stored responses and their policy records to and
// from the blobs kept by the storage backends.
package serializer

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/tinylib/msgp/msgp"

	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
)

// formatVersion is bumped whenever the blob layout changes. Blobs written with
// another version fail to decode and are thereby treated as a cache miss.
const formatVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported blob version")

// Marshal encodes the response and its policy record into one blob.
func Marshal(res httpmessage.Response, policy httpmessage.Policy) ([]byte, error) {
	if res.StatusCode < 100 || res.StatusCode > 999 {
		return nil, fmt.Errorf("invalid status code %d", res.StatusCode)
	}
	b := make([]byte, 0, len(res.Body)+len(policy)+256)
	b = msgp.AppendMapHeader(b, 8)
	b = msgp.AppendString(b, "v")
	b = msgp.AppendInt(b, formatVersion)
	b = msgp.AppendString(b, "status")
	b = msgp.AppendInt(b, res.StatusCode)
	b = msgp.AppendString(b, "proto")
	b = msgp.AppendString(b, res.Proto)
	b = msgp.AppendString(b, "protoVersion")
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendInt(b, res.ProtoMajor)
	b = msgp.AppendInt(b, res.ProtoMinor)
	b = msgp.AppendString(b, "url")
	if res.URL != nil {
		b = msgp.AppendString(b, res.URL.String())
	} else {
		b = msgp.AppendString(b, "")
	}
	b = msgp.AppendString(b, "header")
	b = httpmessage.AppendHeader(b, res.Header)
	b = msgp.AppendString(b, "body")
	b = msgp.AppendBytes(b, res.Body)
	b = msgp.AppendString(b, "policy")
	b = msgp.AppendBytes(b, policy)
	return b, nil
}

// Unmarshal decodes a blob written by Marshal.
func Unmarshal(b []byte) (httpmessage.Response, httpmessage.Policy, error) {
	var res httpmessage.Response
	var policy httpmessage.Policy
	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return res, nil, err
	}
	versionSeen := false
	for i := uint32(0); i < sz; i++ {
		var field []byte
		field, b, err = msgp.ReadMapKeyZC(b)
		if err != nil {
			return res, nil, err
		}
		switch string(field) {
		case "v":
			var v int
			v, b, err = msgp.ReadIntBytes(b)
			if err == nil && v != formatVersion {
				err = fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
			}
			versionSeen = true
		case "status":
			res.StatusCode, b, err = msgp.ReadIntBytes(b)
		case "proto":
			res.Proto, b, err = msgp.ReadStringBytes(b)
		case "protoVersion":
			var n uint32
			n, b, err = msgp.ReadArrayHeaderBytes(b)
			if err == nil && n != 2 {
				err = fmt.Errorf("protoVersion has %d elements", n)
			}
			if err == nil {
				res.ProtoMajor, b, err = msgp.ReadIntBytes(b)
			}
			if err == nil {
				res.ProtoMinor, b, err = msgp.ReadIntBytes(b)
			}
		case "url":
			var raw string
			raw, b, err = msgp.ReadStringBytes(b)
			if err == nil && raw != "" {
				res.URL, err = url.Parse(raw)
			}
		case "header":
			res.Header, b, err = httpmessage.ReadHeaderBytes(b)
		case "body":
			res.Body, b, err = msgp.ReadBytesBytes(b, nil)
		case "policy":
			var p []byte
			p, b, err = msgp.ReadBytesBytes(b, nil)
			policy = p
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return res, nil, fmt.Errorf("field %s: %w", field, err)
		}
	}
	if !versionSeen {
		return res, nil, ErrUnsupportedVersion
	}
	if res.StatusCode < 100 || res.StatusCode > 999 {
		return res, nil, fmt.Errorf("invalid status code %d", res.StatusCode)
	}
	if res.Header == nil {
		res.Header = make(map[string][]string)
	}
	return res, policy, nil
}

package main

import (
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/mailru/easyjson/jwriter"

	"github.com/always-cache/client-cache/cache"
	cachekey "github.com/always-cache/client-cache/pkg/cache-key"
	"github.com/always-cache/client-cache/rfc9111"
)

// entryJSON is the JSON view of a stored entry.
type entryJSON struct {
	Key    string
	Status int
	Proto  string
	URL    string
	Header http.Header
	Body   []byte
	Fresh  bool
	TTL    time.Duration
}

func newEntryJSON(method string, u *url.URL, entry cache.Entry, oracle rfc9111.Oracle, now time.Time) entryJSON {
	e := entryJSON{
		Key:    cachekey.Key(method, u),
		URL:    u.String(),
		Status: entry.Response.StatusCode,
		Proto:  entry.Response.Proto,
		Header: entry.Response.Header,
		Body:   entry.Response.Body,
	}
	if entry.Response.URL != nil {
		e.URL = entry.Response.URL.String()
	}
	// an undecodable policy shows as stale
	e.Fresh, _ = oracle.IsFresh(entry.Policy, now)
	e.TTL, _ = oracle.TimeToLive(entry.Policy, now)
	return e
}

// MarshalEasyJSON implements easyjson.Marshaler.
func (e entryJSON) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"key":`)
	w.String(e.Key)
	w.RawString(`,"status":`)
	w.Int(e.Status)
	w.RawString(`,"proto":`)
	w.String(e.Proto)
	w.RawString(`,"url":`)
	w.String(e.URL)
	w.RawString(`,"header":`)
	writeHeader(w, e.Header)
	w.RawString(`,"body":`)
	w.Base64Bytes(e.Body)
	w.RawString(`,"fresh":`)
	w.Bool(e.Fresh)
	w.RawString(`,"ttl":`)
	w.Int64(int64(e.TTL / time.Second))
	w.RawByte('}')
}

func writeHeader(w *jwriter.Writer, header http.Header) {
	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}
	sort.Strings(names)

	w.RawByte('{')
	for i, name := range names {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(name)
		w.RawByte(':')
		w.RawByte('[')
		for j, value := range header[name] {
			if j > 0 {
				w.RawByte(',')
			}
			w.String(value)
		}
		w.RawByte(']')
	}
	w.RawByte('}')
}

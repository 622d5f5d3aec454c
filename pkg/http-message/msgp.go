package httpmessage

import (
	"net/http"
	"sort"

	"github.com/tinylib/msgp/msgp"
)

// AppendHeader appends h to b as a MessagePack map of string arrays.
// Names are written in sorted order so equal headers encode equally.
func AppendHeader(b []byte, h http.Header) []byte {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	b = msgp.AppendMapHeader(b, uint32(len(names)))
	for _, name := range names {
		b = msgp.AppendString(b, name)
		b = msgp.AppendArrayHeader(b, uint32(len(h[name])))
		for _, v := range h[name] {
			b = msgp.AppendString(b, v)
		}
	}
	return b
}

// ReadHeaderBytes reads a header written by AppendHeader and returns the
// remaining bytes. Counts exceeding the remaining input are rejected before
// anything is allocated.
func ReadHeaderBytes(b []byte) (http.Header, []byte, error) {
	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, b, err
	}
	// each name takes at least two bytes: a string and an array header
	if uint64(sz)*2 > uint64(len(b)) {
		return nil, b, msgp.ErrShortBytes
	}
	h := make(http.Header, sz)
	for i := uint32(0); i < sz; i++ {
		var name string
		name, b, err = msgp.ReadStringBytes(b)
		if err != nil {
			return nil, b, err
		}
		var n uint32
		n, b, err = msgp.ReadArrayHeaderBytes(b)
		if err != nil {
			return nil, b, err
		}
		if uint64(n) > uint64(len(b)) {
			return nil, b, msgp.ErrShortBytes
		}
		values := make([]string, 0, n)
		for j := uint32(0); j < n; j++ {
			var v string
			v, b, err = msgp.ReadStringBytes(b)
			if err != nil {
				return nil, b, err
			}
			values = append(values, v)
		}
		h[name] = values
	}
	return h, b, nil
}

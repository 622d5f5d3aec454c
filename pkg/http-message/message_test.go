package httpmessage

import (
	"net/http"
	"testing"

	"github.com/tinylib/msgp/msgp"
)

func TestMergeHeaderReplacesFields(t *testing.T) {
	stored := http.Header{
		"Cache-Control":  {"max-age=10"},
		"Content-Length": {"5"},
		"Etag":           {`"a"`},
		"X-Kept":         {"yes"},
	}
	received := http.Header{
		"Cache-Control":  {"max-age=60"},
		"Content-Length": {"0"},
		"Connection":     {"X-Hop"},
		"X-Hop":          {"1"},
		"Date":           {"Mon, 19 Oct 2026 10:00:00 GMT"},
	}
	merged := MergeHeader(stored, received)
	if cc := merged.Get("Cache-Control"); cc != "max-age=60" {
		t.Fatalf("Cache-Control is %s", cc)
	}
	if cl := merged.Get("Content-Length"); cl != "5" {
		t.Fatalf("Content-Length is %s", cl)
	}
	if merged.Get("X-Hop") != "" || merged.Get("Connection") != "" {
		t.Fatalf("Hop-by-hop fields merged: %v", merged)
	}
	if merged.Get("X-Kept") != "yes" || merged.Get("Date") == "" {
		t.Fatalf("Merged header is %v", merged)
	}
	if stored.Get("Cache-Control") != "max-age=10" {
		t.Fatal("Stored header was modified")
	}
}

func TestFreshenKeepsBody(t *testing.T) {
	res := Response{StatusCode: 200, Header: http.Header{"Etag": {`"a"`}}, Body: []byte("hello")}
	fresh := res.Freshen(http.Header{"Etag": {`"b"`}})
	if string(fresh.Body) != "hello" || fresh.StatusCode != 200 {
		t.Fatalf("Freshened response is %+v", fresh)
	}
	if fresh.Header.Get("Etag") != `"b"` || res.Header.Get("Etag") != `"a"` {
		t.Fatalf("Etags are %s and %s", fresh.Header.Get("Etag"), res.Header.Get("Etag"))
	}
}

func TestHeaderEncoding(t *testing.T) {
	h := http.Header{"Set-Cookie": {"a=1", "b=2"}, "Content-Type": {"text/plain"}}
	b := AppendHeader(nil, h)
	decoded, rest, err := ReadHeaderBytes(b)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("%d bytes left", len(rest))
	}
	if v := decoded.Values("Set-Cookie"); len(v) != 2 || v[0] != "a=1" || v[1] != "b=2" {
		t.Fatalf("Set-Cookie is %v", v)
	}
}

func TestHeaderDecodingRejectsOversizedCounts(t *testing.T) {
	values := msgp.AppendMapHeader(nil, 1)
	values = msgp.AppendString(values, "X")
	values = msgp.AppendArrayHeader(values, 0x7fffffff)

	for name, b := range map[string][]byte{
		"names":  msgp.AppendMapHeader(nil, 0x7fffffff),
		"values": values,
	} {
		if _, _, err := ReadHeaderBytes(b); err == nil {
			t.Fatalf("%s: decoded a %d byte header", name, len(b))
		}
	}
}

package rfc9111

import (
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func testRequest(method string, header http.Header) httpmessage.RequestParts {
	u, _ := url.Parse("https://example.test/a")
	if header == nil {
		header = make(http.Header)
	}
	return httpmessage.RequestParts{Method: method, URL: u, Header: header}
}

func testPolicy(t *testing.T, o Oracle, req httpmessage.RequestParts, status int, header http.Header) httpmessage.Policy {
	t.Helper()
	p, err := o.NewPolicy(req, httpmessage.ResponseParts{StatusCode: status, Header: header}, testNow)
	if err != nil {
		t.Fatalf("Error creating policy: %v", err)
	}
	return p
}

func TestMaxAgeFreshness(t *testing.T) {
	o := DefaultOracle()
	p := testPolicy(t, o, testRequest("GET", nil), 200, http.Header{"Cache-Control": {"max-age=60"}})
	if storable, _ := o.IsStorable(p); !storable {
		t.Fatal("Response not storable")
	}
	if fresh, _ := o.IsFresh(p, testNow.Add(59*time.Second)); !fresh {
		t.Fatal("Response not fresh after 59s")
	}
	if fresh, _ := o.IsFresh(p, testNow.Add(61*time.Second)); fresh {
		t.Fatal("Response fresh after 61s")
	}
	if age, _ := o.Age(p, testNow.Add(10*time.Second)); age != 10*time.Second {
		t.Fatalf("Age is %v", age)
	}
}

func TestAgeHeaderCounts(t *testing.T) {
	o := DefaultOracle()
	p := testPolicy(t, o, testRequest("GET", nil), 200, http.Header{
		"Cache-Control": {"max-age=60"},
		"Age":           {"50"},
	})
	if fresh, _ := o.IsFresh(p, testNow.Add(11*time.Second)); fresh {
		t.Fatal("Response with Age 50 fresh after 11s")
	}
}

func TestSharedSMaxAge(t *testing.T) {
	header := http.Header{"Cache-Control": {"max-age=0, s-maxage=600"}}
	shared := DefaultOracle()
	private := Oracle{}
	req := testRequest("GET", nil)
	if fresh, _ := shared.IsFresh(testPolicy(t, shared, req, 200, header), testNow.Add(time.Minute)); !fresh {
		t.Fatal("Shared cache ignores s-maxage")
	}
	if fresh, _ := private.IsFresh(testPolicy(t, private, req, 200, header), testNow.Add(time.Minute)); fresh {
		t.Fatal("Private cache uses s-maxage")
	}
}

func TestExpires(t *testing.T) {
	o := Oracle{}
	p := testPolicy(t, o, testRequest("GET", nil), 200, http.Header{
		"Date":    {formatHttpDate(testNow)},
		"Expires": {formatHttpDate(testNow.Add(time.Hour))},
	})
	if fresh, _ := o.IsFresh(p, testNow.Add(59*time.Minute)); !fresh {
		t.Fatal("Response not fresh before Expires")
	}
	p = testPolicy(t, o, testRequest("GET", nil), 200, http.Header{"Expires": {"0"}})
	if fresh, _ := o.IsFresh(p, testNow); fresh {
		t.Fatal("Invalid Expires treated as fresh")
	}
}

func TestHeuristicFreshness(t *testing.T) {
	header := http.Header{
		"Date":          {formatHttpDate(testNow)},
		"Last-Modified": {formatHttpDate(testNow.Add(-100 * time.Hour))},
	}
	o := DefaultOracle()
	p := testPolicy(t, o, testRequest("GET", nil), 200, header)
	if fresh, _ := o.IsFresh(p, testNow.Add(9*time.Hour)); !fresh {
		t.Fatal("Heuristic freshness not applied")
	}
	if fresh, _ := o.IsFresh(p, testNow.Add(11*time.Hour)); fresh {
		t.Fatal("Heuristic freshness too long")
	}
	o.MaxHeuristic = time.Hour
	if fresh, _ := o.IsFresh(p, testNow.Add(2*time.Hour)); fresh {
		t.Fatal("Heuristic freshness not capped")
	}
	if fresh, _ := (Oracle{}).IsFresh(p, testNow.Add(time.Minute)); fresh {
		t.Fatal("Heuristic freshness used when disabled")
	}
}

func TestImmutable(t *testing.T) {
	o := DefaultOracle()
	p := testPolicy(t, o, testRequest("GET", nil), 200, http.Header{"Cache-Control": {"public, immutable"}})
	if fresh, _ := o.IsFresh(p, testNow.Add(23*time.Hour)); !fresh {
		t.Fatal("Immutable response not fresh")
	}
}

func TestNoCacheNeverFresh(t *testing.T) {
	o := DefaultOracle()
	p := testPolicy(t, o, testRequest("GET", nil), 200, http.Header{"Cache-Control": {"max-age=60, no-cache"}})
	if storable, _ := o.IsStorable(p); !storable {
		t.Fatal("no-cache response not storable")
	}
	if fresh, _ := o.IsFresh(p, testNow); fresh {
		t.Fatal("no-cache response fresh")
	}
}

func TestMustNotStore(t *testing.T) {
	shared := DefaultOracle()
	cases := []struct {
		name   string
		oracle Oracle
		req    httpmessage.RequestParts
		status int
		header http.Header
	}{
		{"no-store", shared, testRequest("GET", nil), 200, http.Header{"Cache-Control": {"no-store, max-age=60"}}},
		{"request no-store", shared, testRequest("GET", http.Header{"Cache-Control": {"no-store"}}), 200, http.Header{"Cache-Control": {"max-age=60"}}},
		{"private in shared", shared, testRequest("GET", nil), 200, http.Header{"Cache-Control": {"private, max-age=60"}}},
		{"authorization", shared, testRequest("GET", http.Header{"Authorization": {"Bearer x"}}), 200, http.Header{"Cache-Control": {"max-age=60"}}},
		{"post", shared, testRequest("POST", nil), 200, http.Header{"Cache-Control": {"max-age=60"}}},
		{"partial", shared, testRequest("GET", nil), 206, http.Header{"Cache-Control": {"max-age=60"}}},
		{"not modified", shared, testRequest("GET", nil), 304, http.Header{"Cache-Control": {"max-age=60"}}},
		{"not cacheable status", shared, testRequest("GET", nil), 500, http.Header{}},
		{"vary star", shared, testRequest("GET", nil), 200, http.Header{"Cache-Control": {"max-age=60"}, "Vary": {"*"}}},
	}
	for _, c := range cases {
		p := testPolicy(t, c.oracle, c.req, c.status, c.header)
		if storable, err := c.oracle.IsStorable(p); err != nil || storable {
			t.Fatalf("%s: storable %v (%v)", c.name, storable, err)
		}
	}
}

func TestMayStore(t *testing.T) {
	cases := []struct {
		name   string
		oracle Oracle
		req    httpmessage.RequestParts
		status int
		header http.Header
	}{
		{"private in private cache", Oracle{}, testRequest("GET", nil), 200, http.Header{"Cache-Control": {"private, max-age=60"}}},
		{"authorization with public", DefaultOracle(), testRequest("GET", http.Header{"Authorization": {"Bearer x"}}), 200, http.Header{"Cache-Control": {"public, max-age=60"}}},
		{"heuristic status", DefaultOracle(), testRequest("GET", nil), 404, http.Header{}},
		{"head", DefaultOracle(), testRequest("HEAD", nil), 200, http.Header{"Cache-Control": {"max-age=60"}}},
		{"public 500", DefaultOracle(), testRequest("GET", nil), 500, http.Header{"Cache-Control": {"public"}}},
	}
	for _, c := range cases {
		p := testPolicy(t, c.oracle, c.req, c.status, c.header)
		if storable, err := c.oracle.IsStorable(p); err != nil || !storable {
			t.Fatalf("%s: storable %v (%v)", c.name, storable, err)
		}
	}
}

func TestVaryMatches(t *testing.T) {
	o := DefaultOracle()
	req := testRequest("GET", http.Header{"Accept-Encoding": {"gzip, br"}})
	p := testPolicy(t, o, req, 200, http.Header{"Cache-Control": {"max-age=60"}, "Vary": {"Accept-Encoding"}})

	same := testRequest("GET", http.Header{"Accept-Encoding": {"gzip,br"}})
	if ok, _ := o.Matches(p, same); !ok {
		t.Fatal("Equivalent request does not match")
	}
	other := testRequest("GET", http.Header{"Accept-Encoding": {"identity"}})
	if ok, _ := o.Matches(p, other); ok {
		t.Fatal("Different request matches")
	}
	absent := testRequest("GET", nil)
	if ok, _ := o.Matches(p, absent); ok {
		t.Fatal("Request without field matches")
	}
}

func TestRevalidationHeaders(t *testing.T) {
	o := DefaultOracle()
	lastModified := formatHttpDate(testNow.Add(-time.Hour))
	p := testPolicy(t, o, testRequest("GET", nil), 200, http.Header{
		"Etag":          {`"v1"`},
		"Last-Modified": {lastModified},
	})
	h, err := o.RevalidationHeaders(p, testRequest("GET", nil))
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if h.Get("If-None-Match") != `"v1"` || h.Get("If-Modified-Since") != lastModified {
		t.Fatalf("Revalidation headers are %v", h)
	}
	p = testPolicy(t, o, testRequest("GET", nil), 200, http.Header{"Cache-Control": {"max-age=1"}})
	if h, _ := o.RevalidationHeaders(p, testRequest("GET", nil)); len(h) != 0 {
		t.Fatalf("Revalidation headers without validators are %v", h)
	}
}

func TestMergeFreshens(t *testing.T) {
	o := DefaultOracle()
	req := testRequest("GET", nil)
	p := testPolicy(t, o, req, 200, http.Header{
		"Cache-Control": {"max-age=60"},
		"Date":          {formatHttpDate(testNow)},
		"Etag":          {`"v1"`},
	})
	later := testNow.Add(time.Hour)
	if fresh, _ := o.IsFresh(p, later); fresh {
		t.Fatal("Policy still fresh")
	}
	merged, err := o.Merge(p, req, httpmessage.ResponseParts{StatusCode: 304, Header: http.Header{"Etag": {`"v1"`}}}, later)
	if err != nil {
		t.Fatalf("Error merging: %v", err)
	}
	if fresh, _ := o.IsFresh(merged, later); !fresh {
		t.Fatal("Merged policy not fresh")
	}
	if fresh, _ := o.IsFresh(merged, later.Add(61*time.Second)); fresh {
		t.Fatal("Merged policy fresh for too long")
	}
	if _, err := o.Merge(p, req, httpmessage.ResponseParts{StatusCode: 200}, later); err == nil {
		t.Fatal("Merged a 200 response")
	}
}

func TestMergeUpdatesLifetime(t *testing.T) {
	o := DefaultOracle()
	req := testRequest("GET", nil)
	p := testPolicy(t, o, req, 200, http.Header{"Cache-Control": {"max-age=60"}})
	merged, err := o.Merge(p, req, httpmessage.ResponseParts{StatusCode: 304, Header: http.Header{"Cache-Control": {"max-age=3600"}}}, testNow)
	if err != nil {
		t.Fatalf("Error merging: %v", err)
	}
	if ttl, _ := o.TimeToLive(merged, testNow.Add(time.Minute)); ttl != 59*time.Minute {
		t.Fatalf("TTL is %v", ttl)
	}
}

func TestInvalidRecords(t *testing.T) {
	o := DefaultOracle()
	if _, err := o.IsFresh(httpmessage.Policy("garbage"), testNow); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("Error is %v", err)
	}
	if _, err := o.NewPolicy(testRequest("GET", nil), httpmessage.ResponseParts{StatusCode: 42}, testNow); err == nil {
		t.Fatal("Created policy for status 42")
	}
}

func TestInvalidatedURIs(t *testing.T) {
	target, _ := url.Parse("https://example.test/items")
	header := http.Header{
		"Location":         {"/items/1"},
		"Content-Location": {"https://other.test/items/1"},
	}
	uris := InvalidatedURIs(target, header)
	if len(uris) != 1 || uris[0].String() != "https://example.test/items/1" {
		t.Fatalf("Invalidated URIs are %v", uris)
	}
	if UnsafeMethod("GET") || !UnsafeMethod("POST") || !UnsafeMethod("PURGE") {
		t.Fatal("UnsafeMethod is wrong")
	}
}

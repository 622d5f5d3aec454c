package rfc9211

import (
	"testing"
	"time"
)

func TestHit(t *testing.T) {
	if s := New("ExampleCache").Hit().TTL(376 * time.Second).String(); s != "ExampleCache; hit; ttl=376" {
		t.Fatalf("Cache-Status is %s", s)
	}
}

func TestForward(t *testing.T) {
	s := New("ExampleCache").Forward(FwdReasonStale).FwdStatus(304).Stored(true).String()
	if s != "ExampleCache; fwd=stale; fwd-status=304; stored" {
		t.Fatalf("Cache-Status is %s", s)
	}
}

func TestQuotedName(t *testing.T) {
	if s := New("CDN Company Here").Forward(FwdReasonUriMiss).String(); s != `"CDN Company Here"; fwd=uri-miss` {
		t.Fatalf("Cache-Status is %s", s)
	}
}

func TestNegativeTTL(t *testing.T) {
	if s := New("c").Hit().TTL(-412 * time.Second).String(); s != "c; hit; ttl=-412" {
		t.Fatalf("Cache-Status is %s", s)
	}
}

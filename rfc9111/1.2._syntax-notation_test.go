package rfc9111

import (
	"testing"
	"time"
)

func TestToDeltaSeconds(t *testing.T) {
	fiveSeconds := 5 * time.Second
	if s := toDeltaSeconds(fiveSeconds); s != "5" {
		t.Fatalf("Delta seconds is %s", s)
	}
}

func TestHttpDateRFC850(t *testing.T) {
	_, err := httpDate("Thursday, 18-Aug-50 02:01:18 GMT")
	if err != nil {
		t.Fatalf("Error parsing date %+v", err)
	}
}

func TestHttpDateTZCase(t *testing.T) {
	_, err := httpDate("Thu, 18 Aug 2050 02:01:18 gMT")
	if err != nil {
		t.Fatalf("Error parsing date %+v", err)
	}
}

func TestHttpDateNotGMT(t *testing.T) {
	if _, err := httpDate("Thu, 18 Aug 2050 02:01:18 CET"); err == nil {
		t.Fatal("Expected error for non-GMT date")
	}
}

func TestDeltaSeconds(t *testing.T) {
	if d, err := deltaSeconds("60"); err != nil || d != time.Minute {
		t.Fatalf("Delta seconds is %v (%v)", d, err)
	}
	if _, err := deltaSeconds("6O"); err == nil {
		t.Fatal("Expected error for invalid delta-seconds")
	}
	if d, err := deltaSeconds("99999999999999999999999"); err != nil || d != maxDeltaSeconds*time.Second {
		t.Fatalf("Overflowing delta seconds is %v (%v)", d, err)
	}
}

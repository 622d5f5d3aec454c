package clientcache

import httpmessage "github.com/always-cache/client-cache/pkg/http-message"

// Outcome tells how a response was produced.
type Outcome int

const (
	// Bypass: the cache was not consulted (unsafe method or NoStore).
	Bypass Outcome = iota
	// Hit: a stored response was served without contacting the network.
	Hit
	// MissFetched: nothing usable was stored, the response was fetched.
	MissFetched
	// RevalidatedUnchanged: the origin confirmed the stored response (304).
	RevalidatedUnchanged
	// RevalidatedReplaced: the origin answered a revalidation with a new response.
	RevalidatedReplaced
)

var outcomeNames = [...]string{
	Bypass:               "bypass",
	Hit:                  "hit",
	MissFetched:          "miss",
	RevalidatedUnchanged: "revalidated",
	RevalidatedReplaced:  "replaced",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// Result is the successful result of Run.
type Result struct {
	Outcome  Outcome
	Response httpmessage.Response
	// Stored is true if the response was written to storage.
	Stored bool
	// StoreErr is a storage write failure. The response is still valid.
	StoreErr error
}

package clientcache

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheMiss is returned in OnlyIfCached mode when nothing is stored.
	ErrCacheMiss = errors.New("no cached response")
	// ErrRequestClone is returned when a request needed for revalidation
	// cannot be cloned, e.g. because its body can only be read once.
	ErrRequestClone = errors.New("request cannot be cloned")
)

// Kind classifies an Error.
type Kind int

const (
	KindCacheMiss Kind = iota + 1
	KindRequestClone
	KindTransport
	KindPolicy
	KindRequest
	KindStorageWrite
)

func (k Kind) String() string {
	switch k {
	case KindCacheMiss:
		return "cache miss"
	case KindRequestClone:
		return "request clone"
	case KindTransport:
		return "transport"
	case KindPolicy:
		return "policy"
	case KindRequest:
		return "request"
	case KindStorageWrite:
		return "storage write"
	}
	return "unknown"
}

// Error is the error type returned by the cache engine.
type Error struct {
	// Op is the operation that failed, e.g. "fetch" or "put".
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("client-cache: %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

package cachekey

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

const methodSeparator = ":"

var ErrorMalformedKey = fmt.Errorf("Malformed key")

// Key returns the cache key for the given method and URL, in the form
// "{METHOD}:{URL}". The key only depends on the method and the normalized URL,
// never on request headers.
func Key(method string, u *url.URL) string {
	return strings.ToUpper(method) + methodSeparator + Normalize(u).String()
}

// Normalize returns a copy of u that compares equal for equivalent URLs:
// scheme and host are lower-cased, the default port is dropped, an empty path
// becomes "/" and the fragment is removed.
func Normalize(u *url.URL) *url.URL {
	n := *u
	n.User = nil
	if u.User != nil {
		user := *u.User
		n.User = &user
	}
	n.Scheme = strings.ToLower(u.Scheme)
	n.Host = normalizeHost(n.Scheme, u.Host)
	if n.Path == "" && n.Opaque == "" && n.Host != "" {
		n.Path = "/"
		n.RawPath = ""
	}
	n.Fragment = ""
	n.RawFragment = ""
	return &n
}

// Parse splits a key back into its method and URL.
func Parse(key string) (string, *url.URL, error) {
	method, rawURL, found := strings.Cut(key, methodSeparator)
	if !found || method == "" {
		return "", nil, fmt.Errorf("%w: %s", ErrorMalformedKey, key)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrorMalformedKey, key, err)
	}
	return method, u, nil
}

func normalizeHost(scheme, host string) string {
	host = strings.ToLower(host)
	h, port, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		if strings.Contains(h, ":") {
			return "[" + h + "]"
		}
		return h
	}
	return host
}

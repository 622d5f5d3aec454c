// Package cacheupdate reads the `Cache-Update` response header field.
//
// An origin may list resources affected by an unsafe request, e.g.
//
//	Cache-Update: /articles/1; delay=5, /articles
//
// Each entry is a path, optionally followed by semicolon separated
// parameters. Paths are resolved against the request URL.
package cacheupdate

import (
	"net/http"
	"net/url"
	"strings"
)

const HeaderName = "Cache-Update"

// Targets returns the URLs listed in the `Cache-Update` fields of header,
// resolved against reqURL. Entries that cannot be parsed are skipped.
func Targets(reqURL *url.URL, header http.Header) []*url.URL {
	targets := make([]*url.URL, 0)
	for _, value := range header.Values(HeaderName) {
		for _, update := range strings.Split(value, ",") {
			path := getPath(update)
			if path == "" {
				continue
			}
			ref, err := url.Parse(path)
			if err != nil {
				continue
			}
			// only the path (and query) of the update is used
			target := reqURL.ResolveReference(&url.URL{Path: ref.Path, RawPath: ref.RawPath, RawQuery: ref.RawQuery})
			targets = append(targets, target)
		}
	}
	return targets
}

// getPath returns the path from a `Cache-Update` entry.
// The path is the first parameter in the entry (separated by a semicolon).
func getPath(update string) string {
	if i := strings.Index(update, ";"); i != -1 {
		update = update[:i]
	}
	return strings.TrimSpace(update)
}

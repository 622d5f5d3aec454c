package rfc9111

import (
	"net/http"
	"strings"
)

// §  4.1.  Calculating Cache Keys with the Vary Header Field
// §
// §     When a cache receives a request that can be satisfied by a stored
// §     response and that stored response contains a Vary header field
// §     (Section 12.5.5 of [HTTP]), the cache MUST NOT use that stored
// §     response without revalidation unless all the presented request header
// §     fields nominated by that Vary field value match those fields in the
// §     original request (i.e., the request that caused the cached response
// §     to be stored).
func headerFieldsMatch(p policy, reqHeader http.Header) bool {
	// §     A stored response with a Vary header field value containing a member
	// §     "*" always fails to match.
	if varyAll(p.ResponseHeader) {
		return false
	}
	for _, name := range GetListHeader(p.ResponseHeader, "Vary") {
		// §     If (after any normalization that might take place) a header field is
		// §     absent from a request, it can only match another request if it is
		// §     also absent there.
		if FieldAbsent(reqHeader, name) != FieldAbsent(p.RequestHeader, name) {
			return false
		}
		if normalizedField(reqHeader, name) != normalizedField(p.RequestHeader, name) {
			return false
		}
	}
	return true
}

// nominatedRequestHeader returns the request fields that need to be kept in
// order to match later requests against the stored response.
func nominatedRequestHeader(reqHeader, resHeader http.Header) http.Header {
	h := make(http.Header)
	for _, name := range GetListHeader(resHeader, "Vary") {
		if name == "*" {
			continue
		}
		if values := reqHeader.Values(name); len(values) > 0 {
			h[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
		}
	}
	if cc := reqHeader.Values("Cache-Control"); len(cc) > 0 {
		h["Cache-Control"] = append([]string(nil), cc...)
	}
	return h
}

func varyAll(resHeader http.Header) bool {
	for _, name := range GetListHeader(resHeader, "Vary") {
		if name == "*" {
			return true
		}
	}
	return false
}

// FieldAbsent reports whether the header does not contain the field.
func FieldAbsent(header http.Header, name string) bool {
	return len(header.Values(name)) == 0
}

// §     The header fields from two requests are defined to match if and only
// §     if those in the first request can be transformed to those in the
// §     second request by applying any of the following:
// §
// §     *  adding or removing whitespace, where allowed in the header field's
// §        syntax
// §
// §     *  combining multiple header field lines with the same field name
// §        (see Section 5.2 of [HTTP])
func normalizedField(header http.Header, name string) string {
	values := make([]string, 0)
	for _, v := range header.Values(name) {
		for _, item := range strings.Split(v, ",") {
			values = append(values, strings.TrimSpace(item))
		}
	}
	return strings.Join(values, ",")
}

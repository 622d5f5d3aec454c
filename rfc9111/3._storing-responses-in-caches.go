package rfc9111

import "net/http"

// §  3.  Storing Responses in Caches
// §
// §     A cache MUST NOT store a response to a request unless:
func (o Oracle) mustNotStore(p policy) bool {
	resCacheControl := p.cacheControl()
	// §  *  the request method is understood by the cache;
	if !requestMethodIsUnderstood(p.Method) {
		return true
	}
	// §  *  the response status code is final (see Section 15 of [HTTP]);
	if !responseStatusCodeIsFinal(p.StatusCode) {
		return true
	}
	// §  *  if the response status code is 206 or 304, or the must-understand
	// §     cache directive (see Section 5.2.2.3) is present: the cache
	// §     understands the response status code;
	if !statusCodeUnderstoodIfNeeded(p.StatusCode, resCacheControl) {
		return true
	}
	// §  *  the no-store cache directive is not present in the response (see
	// §     Section 5.2.2.5);
	if resCacheControl.HasDirective("no-store") || p.requestCacheControl().HasDirective("no-store") {
		return true
	}
	// §  *  if the cache is shared: the private response directive is either
	// §     not present or allows a shared cache to store a modified response;
	// §     see Section 5.2.2.7);
	//
	// the second part of the or is a "MAY" - we don't do that
	if o.Shared && resCacheControl.HasDirective("private") {
		return true
	}
	// §  *  if the cache is shared: the Authorization header field is not
	// §     present in the request (see Section 11.6.2 of [HTTP]) or a
	// §     response directive is present that explicitly allows shared
	// §     caching (see Section 3.5); and
	if o.Shared && p.Authorized && !mayUseResponseForAuthenticatedRequest(resCacheControl) {
		return true
	}
	// a stored response with "Vary: *" can never be selected (Section 4.1)
	if varyAll(p.ResponseHeader) {
		return true
	}
	// §  *  the response contains at least one of the following:
	// §      -  a public response directive (see Section 5.2.2.9);
	// §      -  a private response directive, if the cache is not shared (see
	// §         Section 5.2.2.7);
	// §      -  an Expires header field (see Section 5.3);
	// §      -  a max-age response directive (see Section 5.2.2.1);
	// §      -  if the cache is shared: an s-maxage response directive (see
	// §         Section 5.2.2.10);
	// §      -  a cache extension that allows it to be cached (see
	// §         Section 5.2.3); or
	// §      -  a status code that is defined as heuristically cacheable (see
	// §         Section 4.2.2).
	mayStore := resCacheControl.HasDirective("public") ||
		(!o.Shared && resCacheControl.HasDirective("private")) ||
		p.ResponseHeader.Get("Expires") != "" ||
		resCacheControl.HasDirective("max-age") ||
		(o.Shared && resCacheControl.HasDirective("s-maxage")) ||
		heuristicallyCacheable(p.StatusCode)
	return !mayStore
}

// statusCodeUnderstoodIfNeeded checks if the response status code needs to be understood and is.
// It returns false if the response status code needs to be understood but isn't.
// It returns true if the response status code needs to be understood and is.
// It returns true if understanding response status code is not needed.
func statusCodeUnderstoodIfNeeded(statusCode int, resCacheControl CacheControl) bool {
	if statusCode == http.StatusPartialContent || statusCode == http.StatusNotModified || resCacheControl.HasDirective("must-understand") {
		return responseStatusCodeIsUnderstood(statusCode)
	}
	return true
}

func requestMethodIsUnderstood(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead:
		return true
	}
	return false
}

// Partial content is not combined and 304 responses only ever update stored
// responses, so neither is understood for storage.
func responseStatusCodeIsUnderstood(statusCode int) bool {
	switch statusCode {
	case http.StatusPartialContent, http.StatusNotModified:
		return false
	}
	return heuristicallyCacheable(statusCode)
}

func responseStatusCodeIsFinal(statusCode int) bool {
	return statusCode >= 200 && statusCode <= 999
}

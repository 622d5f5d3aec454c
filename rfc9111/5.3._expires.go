package rfc9111

import (
	"net/http"
	"time"
)

// §  5.3.  Expires
// §
// §     The "Expires" response header field gives the date/time after which
// §     the response is considered stale.  See Section 4.2 for further
// §     discussion of the freshness model.
// §
// §     The presence of an Expires header field does not imply that the
// §     original resource will change or cease to exist at, before, or after
// §     that time.
// §
// §     The Expires field value is an HTTP-date timestamp, as defined in
// §     Section 5.6.7 of [HTTP].  See also Section 4.2 for parsing
// §     requirements specific to caches.
// §
// §       Expires = HTTP-date
// §
// §     For example
// §
// §     Expires: Thu, 01 Dec 1994 16:00:00 GMT
// §
// §     A cache recipient MUST interpret invalid date formats, especially the
// §     value "0", as representing a time in the past (i.e., "already
// §     expired").
// §
// §     If a response includes a Cache-Control header field with the max-age
// §     directive (Section 5.2.2.1), a recipient MUST ignore the Expires
// §     header field.  Likewise, if a response includes the s-maxage
// §     directive (Section 5.2.2.10), a shared cache recipient MUST ignore
// §     the Expires header field.  In both these cases, the value in Expires
// §     is only intended for recipients that have not yet implemented the
// §     Cache-Control header field.
func getExpires(header http.Header) (time.Time, bool) {
	values := header.Values("Expires")
	if len(values) == 0 {
		return time.Time{}, false
	}
	// invalid values, especially "0", represent a time in the past
	exp, err := httpDate(values[0])
	if err != nil {
		return time.Time{}, true
	}
	return exp, true
}

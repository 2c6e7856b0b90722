package http

import (
	"net/http"
	"strings"
)

// UnknownClient is the shared bucket for requests that carry no client address header
const UnknownClient = "unknown"

// ClientIdentity derives the rate-limit identity of a request.
//
// The first entry of X-Forwarded-For wins, then X-Real-IP. Neither header is
// verified: the service must sit behind a proxy that overwrites them. Requests
// with neither header all share the UnknownClient bucket.
func ClientIdentity(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	return UnknownClient
}

// UserAgent returns the client user agent, truncated for storage
func UserAgent(r *http.Request) string {
	ua := r.Header.Get("User-Agent")
	if len(ua) > 512 {
		ua = ua[:512]
	}
	return ua
}

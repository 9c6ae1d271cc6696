package fetch

import (
	"net/http"
	"strings"
)

// droppedHeaders are security and tracking headers that say nothing about
// the document itself.
var droppedHeaders = map[string]struct{}{
	"set-cookie":                          {},
	"x-xss-protection":                    {},
	"strict-transport-security":           {},
	"content-security-policy":             {},
	"x-content-security-policy":           {},
	"vary":                                {},
	"referrer-policy":                     {},
	"x-referrer-policy":                   {},
	"x-frame-options":                     {},
	"x-content-type-options":              {},
	"origin-trial":                        {},
	"content-security-policy-report-only": {},
	"p3p":                                 {},
	"permissions-policy":                  {},
	"report-to":                           {},
}

// FilterHeaders lowercases header names and drops the denylisted ones.
// Repeated headers keep every value in arrival order.
func FilterHeaders(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for name, values := range h {
		key := strings.ToLower(name)
		if _, drop := droppedHeaders[key]; drop {
			continue
		}
		out[key] = append(out[key], values...)
	}
	return out
}

// internal/utils/domain.go
package utils

import "strings"

// NormalizeDomain reduces user input such as "HTTPS://WWW.Example.com/" to the
// stored form "example.com".
//
// The single-step rewrite is repeated until it no longer changes the value, so
// NormalizeDomain(NormalizeDomain(x)) == NormalizeDomain(x) holds even for
// inputs like "http://http://a.com" or "a.com//".
func NormalizeDomain(raw string) string {
	d := raw
	for {
		next := normalizeDomainOnce(d)
		if next == d {
			return d
		}
		d = next
	}
}

func normalizeDomainOnce(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "www.")
	d = strings.TrimSuffix(d, "/")
	return strings.TrimSpace(d)
}

// Package dedup implements Deduplication + Upsert (spec.md §4.7): three
// matching strategies run in order against a user's existing grants,
// merged field-wise on hit, inserted on miss, all inside one transaction
// per candidate.
package dedup

import (
	"net/url"
	"regexp"
	"strings"
)

var utmParam = regexp.MustCompile(`^utm_`)

// NormalizeURL implements §4.7 strategy 1's normalization: "strip
// trailing slash, lowercase host, drop query fragments utm_*".
func NormalizeURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.ToLower(strings.TrimSuffix(raw, "/"))
	}
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Fragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if utmParam.MatchString(strings.ToLower(key)) {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeTitle implements §4.7 strategy 2's normalization: "case
// insensitive, whitespace-collapsed".
func NormalizeTitle(title string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(title)), " ")
}

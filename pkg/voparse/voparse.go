// Package voparse splits a raw URL-shaped string into scheme, authority and
// path, the same permissive way vos.py's homegrown urlparse class does —
// no percent-decoding, no query/fragment handling, missing parts come back
// as empty strings rather than nil.
package voparse

import "regexp"

var pattern = regexp.MustCompile(`^(?:(?P<scheme>[a-zA-Z]*):)?(?://(?P<authority>[^/]*))?(?P<path>/?.*)?$`)

// URL is the result of splitting a raw URL-shaped string. Fields are always
// plain strings, never nil, even when the corresponding part was absent.
type URL struct {
	Scheme    string
	Authority string
	Path      string
}

// Parse splits raw into scheme, authority and path. The regex is anchored
// and matches any input without a newline, including the empty string;
// input it does not match yields an empty URL, so Parse never fails.
func Parse(raw string) URL {
	m := pattern.FindStringSubmatch(raw)
	if m == nil {
		return URL{}
	}
	u := URL{}
	for i, name := range pattern.SubexpNames() {
		switch name {
		case "scheme":
			u.Scheme = m[i]
		case "authority":
			u.Authority = m[i]
		case "path":
			u.Path = m[i]
		}
	}
	return u
}

// String renders the parsed parts back into a human-readable summary, used
// only for logging and error messages.
func (u URL) String() string {
	return "[scheme: " + u.Scheme + ", authority: " + u.Authority + ", path: " + u.Path + "]"
}

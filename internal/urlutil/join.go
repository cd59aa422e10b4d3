// Package urlutil builds and checks the URLs exchanged between authd,
// calendar-front and Google.
package urlutil

import (
	"fmt"
	"net/url"
)

// JoinPath appends path segments to base. Each segment is escaped as a
// single path element, so values such as session states cannot add or
// remove path levels.
func JoinPath(base string, segments ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	escaped := make([]string, len(segments))
	for i, s := range segments {
		if s == "" || s == "." || s == ".." {
			return "", fmt.Errorf("invalid path segment %q", s)
		}
		escaped[i] = url.PathEscape(s)
	}
	return u.JoinPath(escaped...).String(), nil
}

// Absolute parses raw and requires a scheme and host. field names the
// value in the returned error.
func Absolute(field, raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s must be an absolute URL", field)
	}
	return u, nil
}

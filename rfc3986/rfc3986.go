// Package rfc3986 resolves and normalizes the URI references found in
// preload hints, following RFC 3986 (URI Generic Syntax).
package rfc3986

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrInvalidReference is returned for strings that are not URI references,
	// or that cannot be resolved to an absolute URI.
	ErrInvalidReference = errors.New("invalid URI reference")
	// ErrUnsupportedScheme is returned when the resolved URI is not http(s).
	ErrUnsupportedScheme = errors.New("unsupported URI scheme")
)

// Resolve resolves href against base and normalizes the result.
// Absolute references ignore base (and base may be nil for them).
func Resolve(href string, base *url.URL) (*url.URL, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidReference, href, err)
	}
	if base == nil {
		if !ref.IsAbs() {
			return nil, fmt.Errorf("%w %q: no base URI", ErrInvalidReference, href)
		}
		return Normalize(ref)
	}
	return Normalize(resolve(base, ref))
}

// ResolveString is Resolve for callers that only need the serialized URI.
func ResolveString(href string, base *url.URL) (string, error) {
	u, err := Resolve(href, base)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

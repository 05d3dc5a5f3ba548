package rfc3986

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// §  6.2.2.  Syntax-Based Normalization
// §
// §     Implementations may use logic based on the definitions provided by
// §     this specification to reduce the probability of false negatives.
// §     This processing is moderately higher in cost than character-for-
// §     character string comparison.
// §
// §  6.2.2.1.  Case Normalization
// §
// §     For all URIs, the hexadecimal digits within a percent-encoding
// §     triplet (e.g., "%3a" versus "%3A") are case-insensitive and therefore
// §     should be normalized to use uppercase digits for the digits A-F.
// §
// §     When a URI uses components of the generic syntax, the component
// §     syntax equivalence rules always apply; namely, that the scheme and
// §     host are case-insensitive and therefore should be normalized to
// §     lowercase.
//
// Normalize returns a copy of u suitable for use as a cache identity:
// lowercase scheme and host, IDNA hosts in ASCII form, no dot segments,
// no fragment and a non-empty path. Only absolute http(s) URIs with a host are accepted.
func Normalize(u *url.URL) (*url.URL, error) {
	n := *u
	n.Scheme = strings.ToLower(n.Scheme)
	if n.Scheme != "http" && n.Scheme != "https" {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedScheme, u.Scheme)
	}
	if n.Host == "" {
		return nil, fmt.Errorf("%w %q: missing host", ErrInvalidReference, u.String())
	}
	host, err := normalizeHost(&n)
	if err != nil {
		return nil, err
	}
	n.Host = host
	// §  6.2.2.3.  Path Segment Normalization
	// §
	// §     The complete path segments "." and ".." are intended only for use
	// §     within relative references (Section 4.1) and are removed as part of
	// §     the reference resolution process (Section 5.2).  However, some
	// §     deployed implementations incorrectly assume that reference
	// §     resolution is not necessary when the reference is already a URI and
	// §     thus fail to remove dot-segments when they occur in non-relative
	// §     paths.  URI normalizers should remove dot-segments by applying the
	// §     remove_dot_segments algorithm to the path, as described in
	// §     Section 5.2.4.
	//
	// Resolving an absolute reference against itself runs remove_dot_segments.
	if n.Opaque == "" {
		n = *n.ResolveReference(&n)
	}
	// §  6.2.3.  Scheme-Based Normalization
	// §
	// §     [...] Normalization should not remove delimiters when their
	// §     associated component is empty unless licensed to do so by the
	// §     scheme specification.  For example, the URI "http://example.com/?"
	// §     cannot be assumed to be equivalent to any of the examples above.
	// §
	// §     Likewise, an empty path component is equivalent to an absolute path
	// §     of "/", so the normal form is to provide a path of "/" instead.
	if n.Path == "" && n.RawPath == "" && n.Opaque == "" {
		n.Path = "/"
	}
	// the fragment is never sent to the origin
	n.Fragment = ""
	n.RawFragment = ""
	return &n, nil
}

func normalizeHost(u *url.URL) (string, error) {
	host := strings.ToLower(u.Hostname())
	if !isASCII(host) {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return "", fmt.Errorf("%w %q: %w", ErrInvalidReference, u.Host, err)
		}
		host = ascii
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" {
		return host + ":" + port, nil
	}
	return host, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

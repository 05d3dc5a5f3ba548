// Package rfc8288 implements the subset of RFC 8288 (Web Linking) needed to
// discover preload hints in HTTP responses.
//
// The parser is deliberately simpler than the grammar in section 3: a link-value
// is recognised when its target is followed, before the next comma, by a quoted
// rel parameter. Commas inside quoted parameter values are not supported.
package rfc8288

import "net/http"

// Parse returns the links found in a single Link header value.
// Entries without a quoted rel parameter, or that are otherwise malformed,
// do not produce a link. Parse never fails; garbage yields an empty slice.
func Parse(headerValue string) []Link {
	return parseLinkValues(headerValue)
}

// ParseAll parses every given Link header value and returns the links
// in the order they appear.
func ParseAll(headerValues []string) []Link {
	links := make([]Link, 0)
	for _, value := range headerValues {
		links = append(links, parseLinkValues(value)...)
	}
	return links
}

// FromHeader parses all Link fields of the given header.
func FromHeader(header http.Header) []Link {
	return ParseAll(header.Values("Link"))
}

// Filter returns the links that have the given relation type.
func Filter(links []Link, rel string) []Link {
	filtered := make([]Link, 0, len(links))
	for _, link := range links {
		if link.HasRel(rel) {
			filtered = append(filtered, link)
		}
	}
	return filtered
}

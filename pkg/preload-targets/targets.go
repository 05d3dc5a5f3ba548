package preloadtargets

import (
	"net/http"
	"net/url"

	"github.com/always-cache/preload/rfc3986"
	"github.com/always-cache/preload/rfc8288"
)

// PreloadRel is the relation type that marks a link as a preload hint.
const PreloadRel = "preload"

// Target represents a single preload hint.
type Target struct {
	// Target as written in the Link header. Used to report preloads back to the caller.
	Href string
	// Absolute, normalized target URL.
	URL *url.URL
}

// Skipped represents a preload hint whose target could not be resolved.
type Skipped struct {
	Href string
	Err  error
}

// Find gets the preload targets advertised by the Link fields of a response.
// The target URI of the request is used in order to resolve relative hrefs.
// Every href is returned once, in order of first appearance, even if several
// Link fields repeat it. Hrefs that cannot be resolved are returned as skipped.
func Find(base *url.URL, header http.Header) ([]Target, []Skipped) {
	links := rfc8288.Filter(rfc8288.FromHeader(header), PreloadRel)
	targets := make([]Target, 0, len(links))
	skipped := make([]Skipped, 0)
	seen := make(map[string]bool, len(links))
	for _, link := range links {
		if seen[link.Href] {
			continue
		}
		seen[link.Href] = true
		u, err := rfc3986.Resolve(link.Href, base)
		if err != nil {
			skipped = append(skipped, Skipped{Href: link.Href, Err: err})
			continue
		}
		targets = append(targets, Target{Href: link.Href, URL: u})
	}
	return targets, skipped
}

package rfc3986

import "net/url"

// §  5.1.  Establishing a Base URI
// §
// §     The term "relative" implies that a "base URI" exists against which
// §     the relative reference is applied.  Aside from fragment-only
// §     references (Section 4.4), relative references are only usable when a
// §     base URI is known.
//
// The base URI of a preload hint is the target URI of the request whose
// response carried the Link header.

// §  5.2.  Relative Resolution
// §
// §     This section describes an algorithm for converting a URI reference
// §     that might be relative to a given base URI into the parsed components
// §     of the reference's target.  The components can then be recomposed,
// §     as described in Section 5.3, to form the target URI.  This algorithm
// §     provides definitive results that can be used to test the output of
// §     other implementations.
// §
// §     A URI reference is first parsed into the five URI components:
// §
// §        (R.scheme, R.authority, R.path, R.query, R.fragment) = parse(R);
// §
// §     If the base URI's path is empty, or the reference is a network-path
// §     reference, the merge and dot-segment removal steps of 5.2.2 - 5.2.4
// §     apply as written.
//
// net/url implements 5.2.2 (including remove_dot_segments) in ResolveReference.
func resolve(base, ref *url.URL) *url.URL {
	return base.ResolveReference(ref)
}

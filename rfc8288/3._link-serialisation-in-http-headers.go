package rfc8288

import (
	"regexp"
	"strings"
)

// §  3.  Link Serialisation in HTTP Headers
// §
// §     The Link header field provides a means for serialising one or more
// §     links into HTTP headers.
// §
// §     The ABNF for the field value is:
// §
// §       Link       = #link-value
// §       link-value = "<" URI-Reference ">" *( OWS ";" OWS link-param )
// §       link-param = token BWS [ "=" BWS ( token / quoted-string ) ]
// §
// §     Note that any "link-param" can be generated with values using either
// §     the "token" or the "quoted-string" syntax; therefore, recipients MUST
// §     be able to parse both forms.
//
// Only the quoted-string form of rel is recognised. Everything between the
// target and the next comma is scanned, so a comma inside a quoted parameter
// value ends the link-value early.
var linkValueRegexp = regexp.MustCompile(`<(?P<href>[^>]+)>[^,]*?;\s*rel="(?P<rel>[^"]*)"[^,]*,?`)

func parseLinkValues(headerValue string) []Link {
	matches := linkValueRegexp.FindAllStringSubmatch(headerValue, -1)
	links := make([]Link, 0, len(matches))
	hrefIdx := linkValueRegexp.SubexpIndex("href")
	relIdx := linkValueRegexp.SubexpIndex("rel")
	for _, match := range matches {
		href := strings.TrimSpace(match[hrefIdx])
		rels := relationTypes(match[relIdx])
		if href == "" || len(rels) == 0 {
			continue
		}
		links = append(links, Link{Href: href, Rels: rels})
	}
	return links
}

// §  3.1.  Link Target
// §
// §     Each link-value conveys one target IRI as a URI-Reference (after
// §     conversion to one, if necessary; see [RFC3987], Section 3.1) inside
// §     angle brackets ("<>").  If the URI-Reference is relative, parsers
// §     MUST resolve it as per [RFC3986], Section 5.  Note that any base IRI
// §     appearing in the message's content is not applied.
//
// Resolution is left to the caller (see package rfc3986), since only the
// caller knows the target URI of the request.

// §  3.3.  Relation Type
// §
// §     The relation type of a link conveyed in the Link header field is
// §     conveyed in the "rel" parameter's value.  The rel parameter MUST be
// §     present but MUST NOT appear more than once in a given link-value;
// §     occurrences after the first MUST be ignored by parsers.
// §
// §     The rel parameter can, however, contain multiple link relation
// §     types.  When this occurs, it establishes multiple links that share
// §     the same context, target, and target attributes.
// §
// §     The ABNF for the rel parameter value is:
// §
// §       relation-type *( 1*SP relation-type )
func relationTypes(rel string) []string {
	return strings.Fields(rel)
}

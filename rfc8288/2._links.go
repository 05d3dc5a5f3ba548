package rfc8288

import "strings"

// §  2.  Links
// §
// §     In this specification, a link is a typed connection between two
// §     resources and is comprised of:
// §
// §     o  a link context,
// §
// §     o  a link relation type (Section 2.1),
// §
// §     o  a link target, and
// §
// §     o  optionally, target attributes (Section 2.2).
// §
// §     A link can be viewed as a statement of the form "link context has a
// §     link relation type resource at link target, which has target
// §     attributes".
//
// The link context is always the response the header was received with,
// and target attributes are not kept.
type Link struct {
	// Target as it appears in the header, possibly relative.
	Href string
	// Relation types from the rel parameter.
	Rels []string
}

// §  2.1.1.  Registered Relation Types
// §
// §     Well-defined relation types can be registered as tokens for
// §     convenience and/or to promote reuse by other applications, using the
// §     procedure in Section 2.1.1.1.
// §
// §     Registered relation type names MUST conform to the reg-rel-type rule
// §     (see Section 3.3) and MUST be compared character by character in a
// §     case-insensitive fashion.
func (l Link) HasRel(rel string) bool {
	for _, r := range l.Rels {
		if strings.EqualFold(r, rel) {
			return true
		}
	}
	return false
}

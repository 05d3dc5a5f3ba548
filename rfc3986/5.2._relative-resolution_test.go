package rfc3986

import (
	"errors"
	"net/url"
	"testing"
)

func mustParse(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

// Examples from RFC 3986 section 5.4.1, with base "http://a/b/c/d;p?q".
func TestNormalExamples(t *testing.T) {
	base := mustParse(t, "http://a/b/c/d;p?q")
	examples := map[string]string{
		"g":       "http://a/b/c/g",
		"./g":     "http://a/b/c/g",
		"g/":      "http://a/b/c/g/",
		"/g":      "http://a/g",
		"//g":     "http://g/",
		"?y":      "http://a/b/c/d;p?y",
		"g?y":     "http://a/b/c/g?y",
		"#s":      "http://a/b/c/d;p?q",
		"g#s":     "http://a/b/c/g",
		";x":      "http://a/b/c/;x",
		"":        "http://a/b/c/d;p?q",
		".":       "http://a/b/c/",
		"..":      "http://a/b/",
		"../g":    "http://a/b/g",
		"../../g": "http://a/g",
	}
	for href, expected := range examples {
		resolved, err := ResolveString(href, base)
		if err != nil {
			t.Fatalf("%q: %v", href, err)
		}
		if resolved != expected {
			t.Fatalf("%q resolved to %s, expected %s", href, resolved, expected)
		}
	}
}

func TestAbsoluteReferencePassesThrough(t *testing.T) {
	base := mustParse(t, "https://example.com/page")
	resolved, err := ResolveString("https://cdn.example.net/app.js?v=1", base)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "https://cdn.example.net/app.js?v=1" {
		t.Fatalf("Resolved to %s", resolved)
	}
}

func TestAbsoluteReferenceWithoutBase(t *testing.T) {
	resolved, err := ResolveString("HTTPS://Example.COM", nil)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "https://example.com/" {
		t.Fatalf("Resolved to %s", resolved)
	}
}

func TestDotSegmentsRemovedWithOrWithoutBase(t *testing.T) {
	base := mustParse(t, "http://a/b/c/d;p?q")
	examples := map[string]string{
		"http://a/b/../c":        "http://a/c",
		"http://a/./b/./c":       "http://a/b/c",
		"http://a/b/c/../../g?y": "http://a/g?y",
		"http://a/..":            "http://a/",
	}
	for href, expected := range examples {
		withBase, err := ResolveString(href, base)
		if err != nil {
			t.Fatalf("%q: %v", href, err)
		}
		withoutBase, err := ResolveString(href, nil)
		if err != nil {
			t.Fatalf("%q: %v", href, err)
		}
		if withBase != expected || withoutBase != expected {
			t.Fatalf("%q resolved to %s (base) and %s (no base), expected %s", href, withBase, withoutBase, expected)
		}
	}
}

func TestRelativeReferenceWithoutBase(t *testing.T) {
	if _, err := Resolve("/style.css", nil); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("Error is %v", err)
	}
}

func TestInvalidReference(t *testing.T) {
	base := mustParse(t, "https://example.com/")
	for _, href := range []string{"%zz", "http://[::1", "/a\x7fb"} {
		if _, err := Resolve(href, base); !errors.Is(err, ErrInvalidReference) {
			t.Fatalf("Error for %q is %v", href, err)
		}
	}
}

func TestUnsupportedScheme(t *testing.T) {
	base := mustParse(t, "https://example.com/")
	for _, href := range []string{"data:text/css,body{}", "mailto:a@example.com", "ftp://example.com/a"} {
		if _, err := Resolve(href, base); !errors.Is(err, ErrUnsupportedScheme) {
			t.Fatalf("Error for %q is %v", href, err)
		}
	}
}

func TestNormalizeKeepsPortAndQuery(t *testing.T) {
	n, err := Normalize(mustParse(t, "http://LOCALHOST:8080/A?B=C#frag"))
	if err != nil {
		t.Fatal(err)
	}
	if n.String() != "http://localhost:8080/A?B=C" {
		t.Fatalf("Normalized to %s", n)
	}
}

func TestNormalizeIPv6(t *testing.T) {
	n, err := Normalize(mustParse(t, "http://[::1]:9000"))
	if err != nil {
		t.Fatal(err)
	}
	if n.String() != "http://[::1]:9000/" {
		t.Fatalf("Normalized to %s", n)
	}
}

func TestNormalizeIDNA(t *testing.T) {
	n, err := Normalize(mustParse(t, "https://bücher.example/"))
	if err != nil {
		t.Fatal(err)
	}
	if n.Host != "xn--bcher-kva.example" {
		t.Fatalf("Host is %s", n.Host)
	}
}

func TestNormalizeDoesNotMutate(t *testing.T) {
	u := mustParse(t, "HTTP://Example.com#x")
	if _, err := Normalize(u); err != nil {
		t.Fatal(err)
	}
	if u.Scheme != "http" || u.Host != "Example.com" || u.Fragment != "x" {
		t.Fatalf("Input changed: %#v", u)
	}
}

package cachekey

import "testing"

func TestMethodIsCaseInsensitive(t *testing.T) {
	url := "https://example.com/style.css"
	upper := New("GET", url)
	if lower := New("get", url); lower != upper {
		t.Fatalf("Key for get is %s, for GET %s", lower, upper)
	}
	if mixed := New("gEt", url); mixed != upper {
		t.Fatalf("Key for gEt is %s, for GET %s", mixed, upper)
	}
}

func TestURLIsCaseSensitive(t *testing.T) {
	if New("GET", "https://example.com/a") == New("GET", "https://example.com/A") {
		t.Fatal("Keys for different paths are equal")
	}
}

func TestDifferentInputsDiffer(t *testing.T) {
	keys := map[Key]string{}
	inputs := [][2]string{
		{"GET", "https://example.com/a.css"},
		{"POST", "https://example.com/a.css"},
		{"GET", "http://example.com/a.css"},
		{"GET", "https://example.org/a.css"},
		{"GET", "https://example.com/a.css?v=1"},
	}
	for _, in := range inputs {
		key := New(in[0], in[1])
		if prev, ok := keys[key]; ok {
			t.Fatalf("Key collision between %s and %s %s", prev, in[0], in[1])
		}
		keys[key] = in[0] + " " + in[1]
	}
}

func TestKeyIsFixedLength(t *testing.T) {
	for _, url := range []string{"", "https://x/", "https://example.com/" + string(make([]byte, 4096))} {
		if l := len(New("GET", url)); l != 64 {
			t.Fatalf("Key length for %q is %d", url, l)
		}
	}
}

func TestShort(t *testing.T) {
	key := New("GET", "https://example.com/")
	if short := key.Short(); len(short) != 12 || string(key[:12]) != short {
		t.Fatalf("Short key is %s", short)
	}
}

package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key identifies a (method, URL) pair in the preload cache.
// It is the hex encoded SHA-256 digest of the upper cased method followed by the URL.
type Key string

// New returns the key for the given method and absolute URL.
// Only the method is case-insensitive, the URL is hashed as given.
func New(method, url string) Key {
	sum := sha256.Sum256([]byte(strings.ToUpper(method) + url))
	return Key(hex.EncodeToString(sum[:]))
}

func (k Key) String() string {
	return string(k)
}

// Short returns a prefix of the key, long enough for log correlation.
func (k Key) Short() string {
	if len(k) < 12 {
		return string(k)
	}
	return string(k[:12])
}

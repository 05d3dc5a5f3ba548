package preload

import (
	"time"

	cachekey "github.com/always-cache/preload/pkg/cache-key"
)

// Hook is notified about the preload activity of a client.
// Methods are called synchronously from the goroutine doing the work, so they must not block.
type Hook interface {
	// CacheHit is called when a sub-request is answered with a preloaded response.
	CacheHit(HitEvent)
	// Discovered is called once the preload hints of a response have been processed.
	// It is not called for responses without hints.
	Discovered(DiscoveryEvent)
}

type HitEvent struct {
	Time time.Time
	// Key of the response the sub-request was made from.
	OriginalKey cachekey.Key
	// Key of the sub-request.
	Key cachekey.Key
	URL string
}

type DiscoveryEvent struct {
	Time time.Time
	// ID of the response the hints were found in.
	ID     string
	Method string
	URL    string
	Key    cachekey.Key
	// Preloaded targets, in order of appearance.
	Targets []DiscoveredTarget
	// Hints that were not followed.
	Skipped []SkippedTarget
}

type DiscoveredTarget struct {
	Href string
	URL  string
	Key  cachekey.Key
	// True if the target was already in the cache, e.g. because the application
	// requested it before the hint arrived.
	Reused bool
}

type SkippedTarget struct {
	Href string
	Err  error
}

type hooks []Hook

func (h hooks) CacheHit(e HitEvent) {
	for _, hook := range h {
		if hook != nil {
			hook.CacheHit(e)
		}
	}
}

func (h hooks) Discovered(e DiscoveryEvent) {
	for _, hook := range h {
		if hook != nil {
			hook.Discovered(e)
		}
	}
}

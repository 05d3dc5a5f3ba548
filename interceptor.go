package preload

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	cachekey "github.com/always-cache/preload/pkg/cache-key"
	preloadtargets "github.com/always-cache/preload/pkg/preload-targets"
)

// interceptor requests the preload hints of a response as soon as its headers arrive.
// It fires at most once per response.
type interceptor struct {
	client *Client
	// context of the preload requests; outlives the primary request
	ctx context.Context
	// options of the preload requests
	options Options
	once    sync.Once
}

func (i *interceptor) onHeaders(res *Response) {
	i.once.Do(func() {
		i.preload(res)
	})
}

func (i *interceptor) preload(res *Response) {
	c := i.client
	logger := c.log.With().Str("id", res.ID()).Str("primary_url", res.URL()).Logger()

	targets, skipped := preloadtargets.Find(res.url, res.raw.Header)

	event := DiscoveryEvent{
		Time:   time.Now(),
		ID:     res.ID(),
		Method: res.Method(),
		URL:    res.URL(),
		Key:    res.Key(),
	}
	for _, s := range skipped {
		logger.Debug().Err(s.Err).Str("href", s.Href).Msg("Could not resolve preload target")
		event.Skipped = append(event.Skipped, SkippedTarget{Href: s.Href, Err: s.Err})
	}

	preloads := make(map[string]*Response, len(targets))
	for _, target := range targets {
		key := cachekey.New(http.MethodGet, target.URL.String())
		preload, reused := c.cache.Get(res.Key(), key)
		if !reused {
			var err error
			preload, reused, err = c.request(i.ctx, http.MethodGet, target.URL.String(), i.options, res)
			if err != nil {
				logger.Debug().Err(err).Str("href", target.Href).Msg("Could not request preload target")
				event.Skipped = append(event.Skipped, SkippedTarget{Href: target.Href, Err: err})
				continue
			}
		}
		preloads[target.Href] = preload
		event.Targets = append(event.Targets, DiscoveredTarget{
			Href:   target.Href,
			URL:    target.URL.String(),
			Key:    key,
			Reused: reused,
		})
	}
	res.setPreloads(preloads)

	level := zerolog.InfoLevel
	if len(preloads) == 0 {
		level = zerolog.DebugLevel
	}
	logger.WithLevel(level).Int("preload_count", len(preloads)).Msg("Preloading")

	if len(event.Targets) > 0 || len(event.Skipped) > 0 {
		c.hook.Discovered(event)
	}
}

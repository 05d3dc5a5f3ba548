// Package preload provides an HTTP client that prefetches the resources advertised by
// `Link: <href>; rel="preload"` response headers.
//
// A request made with preloading enabled is scanned for preload hints as soon as its
// headers arrive. Every hinted resource is requested right away, before the primary body
// has been read, and the resulting response handles are kept in memory under the key of
// the primary request. When the application later asks for one of those resources as a
// sub-request of the same primary response (Client.RequestFrom), it gets the preloaded
// handle instead of a new network request.
//
// Cached handles live until Client.ClearPreloadedCache is called for their primary
// response, or until the client is discarded. There is no expiry and no size bound.
//
//	c := preload.New(preload.Config{})
//	page, err := c.Request(ctx, http.MethodGet, "https://example.com/", preload.WithPreload(true))
//	if err != nil {
//		// invalid method or URL
//	}
//	defer c.ClearPreloadedCache(page)
//	html, err := page.Body(ctx)
//	// ...
//	css, err := c.RequestFrom(ctx, page, http.MethodGet, "https://example.com/style.css")
package preload

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/always-cache/preload/cache"
)

// Doer sends HTTP requests and returns their responses as soon as the headers are read.
// *http.Client implements it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

type Config struct {
	// Client used for all requests, preloads included.
	// Redirects, timeouts and connection reuse are its business.
	// If nil, a client with its own transport cloned from http.DefaultTransport is used.
	HTTPClient Doer
	// Options applied to every request, before the per-request options.
	Defaults Options
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
	// Hooks notified about cache hits and discovered preload hints.
	Hooks []Hook
}

// Client is an HTTP client which preloads Link header hints.
// It is safe for concurrent use. Every client owns its own preload cache.
type Client struct {
	doer     Doer
	defaults Options
	cache    *cache.Store[*Response]
	log      zerolog.Logger
	hook     Hook
}

// New creates a preloading client.
func New(config Config) *Client {
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = log.Logger
	} else {
		logger = *config.Logger
	}
	logger = logger.With().Str("component", "preload").Logger()

	doer := config.HTTPClient
	if doer == nil {
		doer = &http.Client{Transport: cloneDefaultTransport()}
	}

	return &Client{
		doer:     doer,
		defaults: config.Defaults.clone(),
		cache:    cache.NewStore[*Response](),
		log:      logger,
		hook:     hooks(config.Hooks),
	}
}

// CacheStats reports the size of the preload cache.
type CacheStats struct {
	// Number of primary responses with preloads in the cache.
	Primaries int
	// Number of cached preload responses.
	Preloads int
}

func (c *Client) CacheStats() CacheStats {
	return CacheStats{
		Primaries: c.cache.Buckets(),
		Preloads:  c.cache.Len(),
	}
}

func cloneDefaultTransport() http.RoundTripper {
	if t, ok := http.DefaultTransport.(*http.Transport); ok && t != nil {
		return t.Clone()
	}
	return http.DefaultTransport
}

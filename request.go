package preload

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"

	cachekey "github.com/always-cache/preload/pkg/cache-key"
	"github.com/always-cache/preload/rfc3986"
)

// Request sends a request and returns its handle right away.
//
// If preloading is enabled for the request (WithPreload), the preload hints of the
// response are requested as soon as its headers arrive, and cached for RequestFrom.
// The only errors returned are ErrInvalidMethod and ErrInvalidURL; transport errors
// surface through the handle. Cancelling ctx cancels the request, but not its preloads.
func (c *Client) Request(ctx context.Context, method, rawURL string, opts ...RequestOption) (*Response, error) {
	res, _, err := c.request(ctx, method, rawURL, c.options(opts), nil)
	return res, err
}

// RequestFrom sends a request on behalf of the original response, e.g. for a resource
// referenced by the original body. A GET request for a resource preloaded by the
// original response returns the preloaded handle without touching the network.
// Other GET requests are cached as well, so that a later preload hint for the same
// resource reuses them. Cached requests are not cancelled with ctx, since other holders
// may share them; ctx still bounds the waits of the caller.
//
// A nil original makes RequestFrom behave like Request.
func (c *Client) RequestFrom(ctx context.Context, original *Response, method, rawURL string, opts ...RequestOption) (*Response, error) {
	res, _, err := c.request(ctx, method, rawURL, c.options(opts), original)
	return res, err
}

// ClearPreloadedCache drops every cached preload of the given responses.
// Responses already handed out stay usable.
func (c *Client) ClearPreloadedCache(responses ...*Response) {
	for _, res := range responses {
		if res == nil {
			continue
		}
		c.cache.Clear(res.Key())
		c.log.Debug().Str("cacheKey", res.Key().Short()).Str("url", res.URL()).Msg("Cleared preloaded responses")
	}
}

// request implements Request and RequestFrom.
// The boolean reports whether the handle came from the cache.
func (c *Client) request(ctx context.Context, method, rawURL string, options Options, original *Response) (*Response, bool, error) {
	if !httpguts.ValidHeaderFieldName(method) {
		return nil, false, fmt.Errorf("%w %q", ErrInvalidMethod, method)
	}
	u, err := requestURL(rawURL, options)
	if err != nil {
		return nil, false, err
	}

	if original == nil || !strings.EqualFold(method, http.MethodGet) {
		res := newResponse(method, u, options)
		c.start(ctx, res)
		return res, false, nil
	}

	originalKey := original.Key()
	key := cachekey.New(method, u.String())
	res, created := c.cache.LoadOrCreate(originalKey, key, func() *Response {
		return newResponse(method, u, options)
	})
	if !created {
		c.log.Info().
			Str("originalCacheKey", originalKey.Short()).
			Str("cacheKey", key.Short()).
			Str("url", u.String()).
			Msg("Request matched preloaded response")
		c.hook.CacheHit(HitEvent{
			Time:        time.Now(),
			OriginalKey: originalKey,
			Key:         key,
			URL:         u.String(),
		})
		return res, true, nil
	}
	// cached handles are shared: only the caller's own waits obey its cancellation
	c.start(context.WithoutCancel(ctx), res)
	return res, false, nil
}

// start sends the request of a new handle in the background.
func (c *Client) start(ctx context.Context, res *Response) {
	req, err := res.newHTTPRequest(ctx)
	if err != nil {
		c.log.Warn().Err(err).Str("url", res.URL()).Msg("Could not create request")
		res.fail(err)
		return
	}

	var onHeaders func(*Response)
	if res.options.FetchPreload {
		i := &interceptor{
			client:  c,
			ctx:     context.WithoutCancel(ctx),
			options: res.options.forPreload(),
		}
		onHeaders = i.onHeaders
	}

	c.log.Trace().Str("id", res.ID()).Str("method", res.Method()).Str("url", res.URL()).Msg("Sending request")
	go res.run(c.doer, req, onHeaders)
}

// requestURL builds the absolute, normalized request URL.
func requestURL(rawURL string, options Options) (*url.URL, error) {
	var base *url.URL
	if options.BaseURL != "" {
		var err error
		if base, err = url.Parse(options.BaseURL); err != nil {
			return nil, fmt.Errorf("%w: base URL %q: %w", ErrInvalidURL, options.BaseURL, err)
		}
	}
	u, err := rfc3986.Resolve(rawURL, base)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if len(options.Query) > 0 {
		query := u.Query()
		for k, v := range options.Query {
			query[k] = append([]string(nil), v...)
		}
		u.RawQuery = query.Encode()
	}
	return u, nil
}

package preload

import (
	"net/http"
	"net/url"
)

// Options configure a single request.
type Options struct {
	// Base URL for resolving relative request URLs.
	BaseURL string
	// Request headers.
	Header http.Header
	// Query parameters merged into the request URL.
	Query url.Values
	// Request body.
	Body []byte
	// Scan the response for preload hints and request them as soon as the headers arrive.
	FetchPreload bool
	// Also scan the preloaded responses for hints. Without it, preloading stops after one level.
	FetchPreloadRecursive bool
}

// RequestOption changes the options of a single request.
type RequestOption func(*Options)

// WithBaseURL sets the URL that relative request URLs are resolved against.
func WithBaseURL(baseURL string) RequestOption {
	return func(o *Options) {
		o.BaseURL = baseURL
	}
}

// WithHeader sets a request header, replacing any default value.
func WithHeader(key, value string) RequestOption {
	return func(o *Options) {
		if o.Header == nil {
			o.Header = http.Header{}
		}
		o.Header.Set(key, value)
	}
}

// WithQuery sets a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(o *Options) {
		if o.Query == nil {
			o.Query = url.Values{}
		}
		o.Query.Set(key, value)
	}
}

// WithBody sets the request body.
func WithBody(body []byte) RequestOption {
	return func(o *Options) {
		o.Body = body
	}
}

// WithPreload enables or disables preloading of Link header hints.
func WithPreload(enabled bool) RequestOption {
	return func(o *Options) {
		o.FetchPreload = enabled
	}
}

// WithRecursivePreload enables or disables preloading the hints of preloaded responses.
// Enabling it also enables preloading for the request itself.
func WithRecursivePreload(enabled bool) RequestOption {
	return func(o *Options) {
		o.FetchPreloadRecursive = enabled
		if enabled {
			o.FetchPreload = true
		}
	}
}

func (o Options) clone() Options {
	c := o
	if o.Header != nil {
		c.Header = o.Header.Clone()
	}
	if o.Query != nil {
		c.Query = make(url.Values, len(o.Query))
		for k, v := range o.Query {
			c.Query[k] = append([]string(nil), v...)
		}
	}
	if o.Body != nil {
		c.Body = append([]byte(nil), o.Body...)
	}
	return c
}

// forPreload returns the options of the preload requests issued on behalf of a response
// that was requested with o. Preloads are plain GET requests: the body, the query and the
// body headers do not carry over. Hints of preloaded responses are only followed if
// recursion was asked for.
func (o Options) forPreload() Options {
	p := o.clone()
	p.FetchPreload = o.FetchPreloadRecursive
	p.Body = nil
	p.Query = nil
	if p.Header != nil {
		p.Header.Del("Content-Type")
		p.Header.Del("Content-Length")
	}
	return p
}

// options applies the request options on top of the client defaults.
func (c *Client) options(opts []RequestOption) Options {
	o := c.defaults.clone()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&o)
	}
	return o
}

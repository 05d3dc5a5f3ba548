package preload

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	cachekey "github.com/always-cache/preload/pkg/cache-key"
	tee "github.com/always-cache/preload/pkg/response-body-tee"
)

// State is the lifecycle stage of a response handle.
type State int32

const (
	// The request has been created, and possibly sent, but no headers have arrived yet.
	StateIssued State = iota
	// The headers have arrived and are being scanned for preload hints.
	StateHeadersReceived
	// The body is being downloaded.
	StateStreaming
	// The body is complete, or the request failed.
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIssued:
		return "issued"
	case StateHeadersReceived:
		return "headers-received"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

// Response is a handle to a request in flight.
//
// The request is sent as soon as the handle is created. Headers and body become
// available asynchronously; the accessors block until they do, or until their context
// is done. The body is downloaded once and kept in memory, so a handle can be read any
// number of times, by any number of goroutines, including the preloaded handles shared
// between the cache and the application.
type Response struct {
	id      string
	method  string
	url     *url.URL
	key     cachekey.Key
	options Options
	state   atomic.Int32

	// closed once raw or err is set
	headers chan struct{}
	raw     *http.Response
	err     error
	body    *tee.Buffer

	preloadsMutex sync.RWMutex
	preloads      map[string]*Response
}

func newResponse(method string, u *url.URL, options Options) *Response {
	return &Response{
		id:      uuid.NewString(),
		method:  method,
		url:     u,
		key:     cachekey.New(method, u.String()),
		options: options,
		headers: make(chan struct{}),
		body:    tee.NewBuffer(),
	}
}

// ID uniquely identifies the handle in logs and hook events.
func (r *Response) ID() string {
	return r.id
}

func (r *Response) Method() string {
	return r.method
}

// URL returns the normalized request URL. It is the URL the cache key is computed from,
// even if the request was redirected.
func (r *Response) URL() string {
	return r.url.String()
}

// Key returns the cache key of the request.
func (r *Response) Key() cachekey.Key {
	return r.key
}

func (r *Response) State() State {
	return State(r.state.Load())
}

// Wait blocks until the response headers have arrived.
// It returns the transport error, unchanged, if the request failed.
func (r *Response) Wait(ctx context.Context) error {
	select {
	case <-r.headers:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StatusCode waits for the headers and returns the status code.
func (r *Response) StatusCode(ctx context.Context) (int, error) {
	if err := r.Wait(ctx); err != nil {
		return 0, err
	}
	return r.raw.StatusCode, nil
}

// Header waits for the headers and returns them. The header is shared and must not be modified.
func (r *Response) Header(ctx context.Context) (http.Header, error) {
	if err := r.Wait(ctx); err != nil {
		return nil, err
	}
	return r.raw.Header, nil
}

// FinalURL waits for the headers and returns the URL of the last request sent,
// which differs from URL if redirects were followed.
func (r *Response) FinalURL(ctx context.Context) (string, error) {
	if err := r.Wait(ctx); err != nil {
		return "", err
	}
	if r.raw.Request == nil || r.raw.Request.URL == nil {
		return r.URL(), nil
	}
	return r.raw.Request.URL.String(), nil
}

// Body waits for the whole body and returns it. The slice is shared and must not be modified.
func (r *Response) Body(ctx context.Context) ([]byte, error) {
	if err := r.Wait(ctx); err != nil {
		return nil, err
	}
	return r.body.Bytes(ctx)
}

// NewReader waits for the headers and returns a reader over the body, starting at the
// first byte. Reads block while the body is downloading.
func (r *Response) NewReader(ctx context.Context) (io.Reader, error) {
	if err := r.Wait(ctx); err != nil {
		return nil, err
	}
	return r.body.NewReader(ctx), nil
}

// Done returns a channel that is closed when the response is complete, whether
// it succeeded or not.
func (r *Response) Done() <-chan struct{} {
	return r.body.Done()
}

// Preloads returns the responses preloaded for the hints of this response, keyed by the
// target as written in the Link header. It is nil until the headers have been scanned,
// and for responses requested without preloading.
func (r *Response) Preloads() map[string]*Response {
	r.preloadsMutex.RLock()
	defer r.preloadsMutex.RUnlock()
	if r.preloads == nil {
		return nil
	}
	preloads := make(map[string]*Response, len(r.preloads))
	for href, p := range r.preloads {
		preloads[href] = p
	}
	return preloads
}

func (r *Response) setPreloads(preloads map[string]*Response) {
	r.preloadsMutex.Lock()
	defer r.preloadsMutex.Unlock()
	r.preloads = preloads
}

func (r *Response) newHTTPRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if len(r.options.Body) > 0 {
		body = bytes.NewReader(r.options.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url.String(), body)
	if err != nil {
		return nil, err
	}
	for k, v := range r.options.Header {
		req.Header[k] = append([]string(nil), v...)
	}
	return req, nil
}

// run sends the request and downloads the body. onHeaders, if set, is called with the
// headers available and before any waiter is released.
func (r *Response) run(doer Doer, req *http.Request, onHeaders func(*Response)) {
	res, err := doer.Do(req)
	if err != nil {
		r.fail(err)
		return
	}
	defer res.Body.Close()

	r.raw = res
	r.state.Store(int32(StateHeadersReceived))
	if onHeaders != nil {
		onHeaders(r)
	}
	r.state.Store(int32(StateStreaming))
	close(r.headers)

	r.body.ReadFrom(res.Body)
	r.state.Store(int32(StateCompleted))
}

func (r *Response) fail(err error) {
	r.err = err
	r.body.CloseWithError(err)
	r.state.Store(int32(StateCompleted))
	close(r.headers)
}

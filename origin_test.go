package preload

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// origin is a test server counting the requests per path.
type origin struct {
	*httptest.Server
	mutex  sync.Mutex
	counts map[string]*atomic.Int32
}

func newOrigin(t *testing.T, routes func(chi.Router)) *origin {
	t.Helper()
	o := &origin{counts: make(map[string]*atomic.Int32)}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			o.counter(r.URL.Path).Add(1)
			next.ServeHTTP(w, r)
		})
	})
	routes(r)
	o.Server = httptest.NewServer(r)
	t.Cleanup(o.Close)
	return o
}

func (o *origin) counter(path string) *atomic.Int32 {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	c, ok := o.counts[path]
	if !ok {
		c = &atomic.Int32{}
		o.counts[path] = c
	}
	return c
}

func (o *origin) count(path string) int {
	return int(o.counter(path).Load())
}

// serve returns a handler writing the body with the given Link header values.
func serve(body string, links ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, link := range links {
			w.Header().Add("Link", link)
		}
		w.Write([]byte(body))
	}
}

func newTestClient(hooks ...Hook) *Client {
	logger := zerolog.Nop()
	return New(Config{Logger: &logger, Hooks: hooks})
}

// recorder is a Hook keeping every event.
type recorder struct {
	mutex       sync.Mutex
	hits        []HitEvent
	discoveries []DiscoveryEvent
}

func (r *recorder) CacheHit(e HitEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.hits = append(r.hits, e)
}

func (r *recorder) Discovered(e DiscoveryEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.discoveries = append(r.discoveries, e)
}

func (r *recorder) events() ([]HitEvent, []DiscoveryEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]HitEvent(nil), r.hits...), append([]DiscoveryEvent(nil), r.discoveries...)
}

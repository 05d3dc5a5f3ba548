package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/always-cache/preload"
	"github.com/always-cache/preload/journal"
)

type fixture struct {
	origin *httptest.Server
	server *httptest.Server
	client *preload.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	origin := chi.NewRouter()
	origin.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Link", `</style.css>; rel="preload"; as="style"`)
		w.Header().Add("Link", `</app.js>; rel="preload"; as="script"`)
		io.WriteString(w, "page")
	})
	origin.Get("/style.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Link", `</font.woff2>; rel="preload"`)
		io.WriteString(w, "css")
	})
	origin.Get("/app.js", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "js")
	})
	origin.Get("/font.woff2", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "font")
	})
	originServer := httptest.NewServer(origin)
	t.Cleanup(originServer.Close)

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	registry := prometheus.NewRegistry()
	logger := zerolog.Nop()
	client := preload.New(preload.Config{
		Logger: &logger,
		Hooks:  []preload.Hook{j, preload.NewMetrics(registry)},
	})
	s := httptest.NewServer(New(Config{
		Client:   client,
		Journal:  j,
		Gatherer: registry,
		Logger:   &logger,
	}))
	t.Cleanup(s.Close)

	return &fixture{origin: originServer, server: s, client: client}
}

func (f *fixture) get(t *testing.T, path string, v any) int {
	t.Helper()
	res, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	defer res.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(v))
	}
	return res.StatusCode
}

func TestFetch(t *testing.T) {
	f := newFixture(t)

	var report Report
	status := f.get(t, "/fetch?url="+url.QueryEscape(f.origin.URL+"/"), &report)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, f.origin.URL+"/", report.URL)
	assert.Equal(t, http.StatusOK, report.Status)
	assert.Equal(t, len("page"), report.Bytes)
	require.Len(t, report.Preloads, 2)
	assert.Equal(t, "/app.js", report.Preloads[0].Href)
	assert.Equal(t, "/style.css", report.Preloads[1].Href)
	assert.Equal(t, len("css"), report.Preloads[1].Bytes)
	assert.Empty(t, report.Preloads[1].Preloads, "not recursive by default")

	assert.Equal(t, preload.CacheStats{}, f.client.CacheStats(), "fetch clears its preloads")
}

func TestFetchRecursive(t *testing.T) {
	f := newFixture(t)

	var report Report
	status := f.get(t, "/fetch?recursive=1&url="+url.QueryEscape(f.origin.URL+"/"), &report)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, report.Preloads, 2)
	style := report.Preloads[1]
	require.Len(t, style.Preloads, 1)
	assert.Equal(t, "/font.woff2", style.Preloads[0].Href)
	assert.Equal(t, f.origin.URL+"/font.woff2", style.Preloads[0].URL)
	assert.Equal(t, preload.CacheStats{}, f.client.CacheStats())
}

func TestFetchBadRequest(t *testing.T) {
	f := newFixture(t)

	var body errorBody
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/fetch", &body))
	assert.NotEmpty(t, body.Error)
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/fetch?url=not-absolute", &body))
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/fetch?url="+url.QueryEscape("ftp://example.com/"), &body))
}

func TestJournal(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.get(t, "/fetch?url="+url.QueryEscape(f.origin.URL+"/"), nil))

	var body journalBody
	status := f.get(t, "/journal?url="+url.QueryEscape(f.origin.URL+"/"), &body)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body.Discoveries, 2)
	for _, d := range body.Discoveries {
		assert.Equal(t, journal.OutcomeDispatched, d.Outcome)
	}
	assert.Empty(t, body.Hits)

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/journal?limit=x", nil))
}

func TestMetricsAndHealth(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.get(t, "/fetch?url="+url.QueryEscape(f.origin.URL+"/"), nil))

	res, err := http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), `preload_targets_total{outcome="dispatched"} 2`), string(b))

	var h health
	require.Equal(t, http.StatusOK, f.get(t, "/healthz", &h))
	assert.Equal(t, "ok", h.Status)
}

func TestOptionalRoutes(t *testing.T) {
	logger := zerolog.Nop()
	s := httptest.NewServer(New(Config{Client: preload.New(preload.Config{Logger: &logger}), Logger: &logger}))
	defer s.Close()

	for _, path := range []string{"/journal", "/metrics"} {
		res, err := http.Get(s.URL + path)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusNotFound, res.StatusCode, path)
	}
}

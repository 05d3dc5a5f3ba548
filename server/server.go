// Package server exposes a preloading client over HTTP for inspection: fetch a page and
// see what it preloaded, browse the journal, scrape the metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/always-cache/preload"
	"github.com/always-cache/preload/journal"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	// Client used for fetches.
	Client *preload.Client
	// Journal served under /journal. The route is not mounted if nil.
	Journal *journal.Journal
	// Metrics served under /metrics. The route is not mounted if nil.
	Gatherer prometheus.Gatherer
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
	// Maximum time spent on a fetch, preloads included. Defaults to 30 seconds.
	Timeout time.Duration
}

type server struct {
	client  *preload.Client
	journal *journal.Journal
	timeout time.Duration
}

// New returns the handler of the inspection server.
func New(config Config) http.Handler {
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}
	s := &server{
		client:  config.Client,
		journal: config.Journal,
		timeout: config.Timeout,
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}

	r := chi.NewRouter()
	r.Use(hlog.NewHandler(logger.With().Str("component", "server").Logger()))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	}))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Get("/fetch", s.fetch)
	if config.Journal != nil {
		r.Get("/journal", s.journalEntries)
	}
	if config.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type health struct {
	Status    string `json:"status"`
	Primaries int    `json:"primaries"`
	Preloads  int    `json:"preloads"`
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	stats := s.client.CacheStats()
	writeJSON(w, r, http.StatusOK, health{Status: "ok", Primaries: stats.Primaries, Preloads: stats.Preloads})
}

// Report describes a fetched response and, recursively, its preloads.
type Report struct {
	Href       string    `json:"href,omitempty"`
	URL        string    `json:"url"`
	FinalURL   string    `json:"finalUrl,omitempty"`
	Status     int       `json:"status,omitempty"`
	Bytes      int       `json:"bytes"`
	DurationMs int64     `json:"durationMs"`
	Error      string    `json:"error,omitempty"`
	Preloads   []*Report `json:"preloads,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// fetch requests the url query parameter with preloading enabled and reports
// the response and its preloads once they are complete.
func (s *server) fetch(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)
	target := r.URL.Query().Get("url")
	if target == "" {
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "missing url parameter"})
		return
	}
	opts := []preload.RequestOption{preload.WithPreload(true)}
	if recursive, _ := strconv.ParseBool(r.URL.Query().Get("recursive")); recursive {
		opts = append(opts, preload.WithRecursivePreload(true))
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.client.Request(ctx, http.MethodGet, target, opts...)
	if errors.Is(err, preload.ErrInvalidURL) || errors.Is(err, preload.ErrInvalidMethod) {
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	} else if err != nil {
		logger.Error().Err(err).Str("url", target).Msg("Could not fetch")
		writeJSON(w, r, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	seen := make(map[*preload.Response]bool)
	report := buildReport(ctx, "", res, start, seen)

	visited := make([]*preload.Response, 0, len(seen))
	for handle := range seen {
		visited = append(visited, handle)
	}
	s.client.ClearPreloadedCache(visited...)

	writeJSON(w, r, http.StatusOK, report)
}

// buildReport waits for res to complete, then reports on it and its preloads.
// Responses already in seen are reported without their preloads.
func buildReport(ctx context.Context, href string, res *preload.Response, start time.Time, seen map[*preload.Response]bool) *Report {
	report := &Report{Href: href, URL: res.URL()}
	first := !seen[res]
	seen[res] = true

	body, err := res.Body(ctx)
	report.DurationMs = time.Since(start).Milliseconds()
	report.Bytes = len(body)
	if err != nil {
		report.Error = err.Error()
	}
	if status, err := res.StatusCode(ctx); err == nil {
		report.Status = status
	}
	if final, err := res.FinalURL(ctx); err == nil && final != report.URL {
		report.FinalURL = final
	}
	if !first {
		return report
	}

	preloads := res.Preloads()
	hrefs := make([]string, 0, len(preloads))
	for href := range preloads {
		hrefs = append(hrefs, href)
	}
	sort.Strings(hrefs)
	for _, href := range hrefs {
		report.Preloads = append(report.Preloads, buildReport(ctx, href, preloads[href], start, seen))
	}
	return report
}

type journalBody struct {
	Discoveries []journal.Discovery `json:"discoveries"`
	Hits        []journal.Hit       `json:"hits"`
}

func (s *server) journalEntries(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		if limit, err = strconv.Atoi(l); err != nil {
			writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "invalid limit"})
			return
		}
	}
	// entries of completed fetches may still be queued
	if err := s.journal.Sync(r.Context()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Could not sync journal")
		writeJSON(w, r, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
		return
	}
	discoveries, err := s.journal.Discoveries(r.URL.Query().Get("url"), limit)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Could not read journal")
		writeJSON(w, r, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	hits, err := s.journal.Hits(limit)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Could not read journal")
		writeJSON(w, r, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, r, http.StatusOK, journalBody{Discoveries: discoveries, Hits: hits})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Could not write response")
	}
}

// Package journal records the preload activity of a client in SQLite: which preload
// hints every primary response advertised and which sub-requests were answered from the
// preload cache. It never stores response bodies.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/always-cache/preload"
)

// Outcomes of a discovered preload hint.
const (
	OutcomeDispatched = "dispatched"
	OutcomeReused     = "reused"
	OutcomeSkipped    = "skipped"
)

// Discovery is a preload hint found in a primary response.
type Discovery struct {
	ID         string    `json:"id"`
	ResponseID string    `json:"responseId"`
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	Key        string    `json:"cacheKey"`
	Href       string    `json:"href"`
	TargetURL  string    `json:"targetUrl,omitempty"`
	TargetKey  string    `json:"targetKey,omitempty"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	Time       time.Time `json:"time"`
}

// ErrClosed is returned by Sync once the journal is closed.
var ErrClosed = errors.New("journal closed")

// Maximum number of events waiting to be written. Events arriving at a full queue are dropped.
const queueSize = 1024

// Hit is a sub-request answered with a preloaded response.
type Hit struct {
	ID          string    `json:"id"`
	OriginalKey string    `json:"originalCacheKey"`
	Key         string    `json:"cacheKey"`
	URL         string    `json:"url"`
	Time        time.Time `json:"time"`
}

// Journal is a preload.Hook persisting events to SQLite.
// Hook events are queued and written by a single goroutine, so that the client
// never waits for the db. It is safe for concurrent use.
type Journal struct {
	db         *sql.DB
	writeMutex *sync.Mutex
	log        zerolog.Logger

	queue      chan any
	done       chan struct{}
	closeMutex sync.RWMutex
	closed     bool
}

// flush is queued by Sync and closed by the writer once reached.
type flush chan struct{}

var _ preload.Hook = (*Journal)(nil)

// Open opens the journal with the given filename as the db, creating the tables if needed.
// If file name is empty, a shared in-memory db is opened.
func Open(filename string) (*Journal, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", filename, err)
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS discoveries (
			id TEXT PRIMARY KEY,
			response_id TEXT,
			method TEXT,
			url TEXT,
			cache_key TEXT,
			href TEXT,
			target_url TEXT,
			target_key TEXT,
			outcome TEXT,
			error TEXT,
			discovered_at INTEGER
		)`,
		"CREATE INDEX IF NOT EXISTS discoveries_url_idx ON discoveries (url)",
		`CREATE TABLE IF NOT EXISTS hits (
			id TEXT PRIMARY KEY,
			original_key TEXT,
			cache_key TEXT,
			url TEXT,
			hit_at INTEGER
		)`,
		"PRAGMA journal_mode=WAL",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initialize journal %s: %w", filename, err)
		}
	}
	j := &Journal{
		db:         db,
		writeMutex: &sync.Mutex{},
		log:        log.Logger.With().Str("component", "journal").Logger(),
		queue:      make(chan any, queueSize),
		done:       make(chan struct{}),
	}
	go j.run()
	return j, nil
}

// Close writes the queued events and closes the db.
func (j *Journal) Close() error {
	j.closeMutex.Lock()
	if j.closed {
		j.closeMutex.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.closeMutex.Unlock()

	<-j.done
	return j.db.Close()
}

// Sync waits until every event queued before the call is written.
func (j *Journal) Sync(ctx context.Context) error {
	reached := make(flush)
	j.closeMutex.RLock()
	if j.closed {
		j.closeMutex.RUnlock()
		return ErrClosed
	}
	select {
	case j.queue <- reached:
	case <-ctx.Done():
		j.closeMutex.RUnlock()
		return ctx.Err()
	}
	j.closeMutex.RUnlock()

	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Implementation of preload.Hook
func (j *Journal) Discovered(e preload.DiscoveryEvent) {
	j.enqueue(e, e.URL)
}

// Implementation of preload.Hook
func (j *Journal) CacheHit(e preload.HitEvent) {
	j.enqueue(e, e.URL)
}

func (j *Journal) enqueue(event any, url string) {
	j.closeMutex.RLock()
	defer j.closeMutex.RUnlock()
	if j.closed {
		j.log.Warn().Str("url", url).Msg("Could not record event, journal closed")
		return
	}
	select {
	case j.queue <- event:
	default:
		j.log.Warn().Str("url", url).Msg("Could not record event, queue full")
	}
}

// run writes the queued events until the queue is closed.
func (j *Journal) run() {
	defer close(j.done)
	for event := range j.queue {
		switch e := event.(type) {
		case preload.DiscoveryEvent:
			if err := j.PutDiscovery(e); err != nil {
				j.log.Error().Err(err).Str("url", e.URL).Msg("Could not record preload discovery")
			}
		case preload.HitEvent:
			if err := j.PutHit(e); err != nil {
				j.log.Error().Err(err).Str("url", e.URL).Msg("Could not record preload cache hit")
			}
		case flush:
			close(e)
		}
	}
}

// PutDiscovery stores one row per target and skipped hint of the event.
func (j *Journal) PutDiscovery(e preload.DiscoveryEvent) error {
	j.writeMutex.Lock()
	defer j.writeMutex.Unlock()

	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO discoveries
		(id, response_id, method, url, cache_key, href, target_url, target_key, outcome, error, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	at := e.Time.UnixMilli()
	for _, t := range e.Targets {
		outcome := OutcomeDispatched
		if t.Reused {
			outcome = OutcomeReused
		}
		if _, err := stmt.Exec(uuid.NewString(), e.ID, e.Method, e.URL, e.Key.String(),
			t.Href, t.URL, t.Key.String(), outcome, "", at); err != nil {
			tx.Rollback()
			return err
		}
	}
	for _, s := range e.Skipped {
		var msg string
		if s.Err != nil {
			msg = s.Err.Error()
		}
		if _, err := stmt.Exec(uuid.NewString(), e.ID, e.Method, e.URL, e.Key.String(),
			s.Href, "", "", OutcomeSkipped, msg, at); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (j *Journal) PutHit(e preload.HitEvent) error {
	j.writeMutex.Lock()
	defer j.writeMutex.Unlock()
	_, err := j.db.Exec("INSERT INTO hits (id, original_key, cache_key, url, hit_at) VALUES (?, ?, ?, ?, ?)",
		uuid.NewString(), e.OriginalKey.String(), e.Key.String(), e.URL, e.Time.UnixMilli())
	return err
}

// Discoveries returns the most recent discoveries first.
// An empty primaryURL returns the discoveries of all primaries. A limit <= 0 means no limit.
func (j *Journal) Discoveries(primaryURL string, limit int) ([]Discovery, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT
		id, response_id, method, url, cache_key, href, target_url, target_key, outcome, error, discovered_at
		FROM discoveries`
	args := []any{}
	if primaryURL != "" {
		query += " WHERE url = ?"
		args = append(args, primaryURL)
	}
	query += " ORDER BY discovered_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	discoveries := make([]Discovery, 0)
	for rows.Next() {
		var d Discovery
		var at int64
		if err := rows.Scan(&d.ID, &d.ResponseID, &d.Method, &d.URL, &d.Key, &d.Href,
			&d.TargetURL, &d.TargetKey, &d.Outcome, &d.Error, &at); err != nil {
			return discoveries, err
		}
		d.Time = time.UnixMilli(at)
		discoveries = append(discoveries, d)
	}
	return discoveries, rows.Err()
}

// Hits returns the most recent cache hits first. A limit <= 0 means no limit.
func (j *Journal) Hits(limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.Query(`SELECT id, original_key, cache_key, url, hit_at
		FROM hits ORDER BY hit_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := make([]Hit, 0)
	for rows.Next() {
		var h Hit
		var at int64
		if err := rows.Scan(&h.ID, &h.OriginalKey, &h.Key, &h.URL, &at); err != nil {
			return hits, err
		}
		h.Time = time.UnixMilli(at)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Purge removes every entry recorded before the given time.
func (j *Journal) Purge(before time.Time) error {
	j.writeMutex.Lock()
	defer j.writeMutex.Unlock()
	_, err := j.db.Exec("DELETE FROM discoveries WHERE discovered_at < ?", before.UnixMilli())
	_, hitsErr := j.db.Exec("DELETE FROM hits WHERE hit_at < ?", before.UnixMilli())
	return errors.Join(err, hitsErr)
}

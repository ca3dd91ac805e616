// Package record provides a sink that persists every report into a SQLite
// database, for offline analysis of instrumented runs.
package record

import (
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	// SQLite driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/zoobzio/clockz"

	"github.com/probekit/probe/sink"
)

const (
	createReportsTable = `CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		time INTEGER NOT NULL,
		level TEXT NOT NULL,
		tags TEXT,
		message TEXT NOT NULL,
		attributes TEXT
	)`

	createSpansTable = `CREATE TABLE IF NOT EXISTS spans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tags TEXT,
		start_time INTEGER NOT NULL,
		end_time INTEGER NOT NULL,
		attributes TEXT
	)`

	insertReport = `INSERT INTO reports (id, time, level, tags, message, attributes) VALUES (?, ?, ?, ?, ?, ?)`
	insertSpan   = `INSERT INTO spans (id, name, tags, start_time, end_time, attributes) VALUES (?, ?, ?, ?, ?, ?)`
)

type (
	// Options contains optional options for Recorder
	Options struct {
		Clock clockz.Clock
	}

	// Recorder is a sink that writes every report into a SQLite database
	Recorder struct {
		db    *sql.DB
		clock clockz.Clock
		tags  []string
		mu    *sync.Mutex
	}

	recordedSpan struct {
		rec   *Recorder
		name  string
		attrs sink.Attributes
		start time.Time
	}
)

// NewRecorder opens (or creates) the database at path and prepares the
// report and span tables.
func NewRecorder(path string, opts Options) (*Recorder, error) {
	if opts.Clock == nil {
		opts.Clock = clockz.RealClock
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	for _, query := range []string{createReportsTable, createSpansTable} {
		if _, err := db.Exec(query); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Recorder{
		db:    db,
		clock: opts.Clock,
		mu:    &sync.Mutex{},
	}, nil
}

// Close closes the underlying database
func (r *Recorder) Close() error {
	return r.db.Close()
}

func encodeAttributes(attrs sink.Attributes) string {
	if len(attrs) == 0 {
		return ""
	}

	encoded := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case []error:
			messages := make([]string, len(val))
			for i, e := range val {
				messages[i] = e.Error()
			}
			encoded[k] = messages
		case error:
			encoded[k] = val.Error()
		default:
			encoded[k] = v
		}
	}

	b, err := json.Marshal(encoded)
	if err != nil {
		return ""
	}

	return string(b)
}

func (r *Recorder) insertReport(level sink.Level, message string, attrs sink.Attributes) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.db.Exec(insertReport,
		uuid.New().String(),
		r.clock.Now().UnixNano(),
		string(level),
		strings.Join(r.tags, ","),
		message,
		encodeAttributes(attrs),
	)
}

// Log records a report row
func (r *Recorder) Log(level sink.Level, message string, attrs sink.Attributes) {
	r.insertReport(level, message, attrs)
}

// Exception records an instrumentation failure as an error-level report
func (r *Recorder) Exception(message string) {
	r.insertReport(sink.Error, message, nil)
}

// Span starts a span that is written on End
func (r *Recorder) Span(name string, attrs sink.Attributes) sink.Span {
	return &recordedSpan{
		rec:   r,
		name:  name,
		attrs: attrs,
		start: r.clock.Now(),
	}
}

// WithTags returns a derived recorder annotating all subsequent rows with the given tags
func (r *Recorder) WithTags(tags ...string) sink.Sink {
	derived := *r
	derived.tags = append(append([]string{}, r.tags...), tags...)
	return &derived
}

func (s *recordedSpan) End() {
	end := s.rec.clock.Now()

	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()

	s.rec.db.Exec(insertSpan,
		uuid.New().String(),
		s.name,
		strings.Join(s.rec.tags, ","),
		s.start.UnixNano(),
		end.UnixNano(),
		encodeAttributes(s.attrs),
	)
}

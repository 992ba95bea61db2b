// Package codedb is an append-only store of named code snippets.
//
// Every write appends one JSON record to a log file and syncs it to disk
// before the in-memory cache changes. Opening a store replays the whole log
// in order, so the last record for a key is its current value.
package codedb

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Travis-Britz/playbot/metrics"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

var (
	// ErrLocked is returned for writes to a locked key.
	ErrLocked = errors.New("codedb: entry is locked")

	// ErrClosed is returned for writes after Close.
	ErrClosed = errors.New("codedb: store closed")

	// ErrCorrupt indicates a record in the log could not be decoded.
	ErrCorrupt = errors.New("codedb: corrupt record")
)

// logFile is the part of *os.File the store writes through.
type logFile interface {
	io.WriteCloser
	Sync() error
	Truncate(size int64) error
}

// DB is a snippet store backed by a single log file.
// It is safe for concurrent use; writes are serialized.
type DB struct {
	path string

	mu      sync.RWMutex
	file    logFile
	size    int64
	cache   map[string]Value
	entropy io.Reader
	closed  bool

	now     func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger for write diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(db *DB) { db.logger = l }
}

// WithMetrics records writes to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(db *DB) { db.metrics = m }
}

// WithClock sets the time source for record dates.
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

// Open opens the log at path, creating it if needed, and replays it.
// Any record that cannot be decoded, including a partial last record, fails the open.
func Open(path string, opts ...Option) (*DB, error) {
	db := &DB{
		path:    path,
		cache:   make(map[string]Value),
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(db)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("codedb: create directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("codedb: open %s: %w", path, err)
	}

	n, err := db.replay(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("codedb: replay %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("codedb: stat %s: %w", path, err)
	}

	db.file = f
	db.size = stat.Size()
	db.logger.Info().
		Str("path", path).
		Int("records", n).
		Int("keys", len(db.cache)).
		Msg("snippet store opened")
	if db.metrics != nil {
		db.metrics.CodeDBEntries.Set(float64(len(db.cache)))
	}
	return db, nil
}

// replay decodes every record of r into the cache and returns how many there were.
func (db *DB) replay(r io.Reader) (int, error) {
	dec := json.NewDecoder(r)
	var n int
	for {
		var e Entry
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("%w: record %d: %v", ErrCorrupt, n+1, err)
		}
		if e.Key == "" {
			return n, fmt.Errorf("%w: record %d has no key", ErrCorrupt, n+1)
		}
		db.cache[e.Key] = e.Value
		n++
	}
}

// Lookup returns the function body stored under key.
// ok is false when the key is absent, locked, or deleted.
func (db *DB) Lookup(key string) (body string, ok bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.cache[key]
	if !ok || v.Kind != Function {
		return "", false
	}
	return v.Body, true
}

// Get returns the current value of key.
func (db *DB) Get(key string) (Value, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.cache[key]
	return v, ok
}

// Len returns the number of keys in the store, in any state.
func (db *DB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.cache)
}

// Insert stores body under key. modifiedBy identifies the writer.
// Writing to a locked key fails with ErrLocked.
func (db *DB) Insert(key, body, modifiedBy string) error {
	return db.write("insert", key, Value{Kind: Function, Body: body}, modifiedBy)
}

// Lock prevents any further writes to key.
func (db *DB) Lock(key, modifiedBy string) error {
	return db.write("lock", key, Value{Kind: Locked}, modifiedBy)
}

// Delete removes the function stored under key. The key may be defined again later.
func (db *DB) Delete(key, modifiedBy string) error {
	return db.write("delete", key, Value{Kind: Deleted}, modifiedBy)
}

func (db *DB) write(op, key string, v Value, modifiedBy string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}
	if old, ok := db.cache[key]; ok && old.Kind == Locked {
		db.metrics.RecordCodeDBWrite(op, "locked", len(db.cache))
		return fmt.Errorf("%s %q: %w", op, key, ErrLocked)
	}

	now := db.now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), db.entropy)
	if err != nil {
		return fmt.Errorf("codedb: generate id: %w", err)
	}
	data, err := json.Marshal(Entry{
		ID:         id.String(),
		Key:        key,
		Value:      v,
		ModifiedBy: modifiedBy,
		Date:       now,
	})
	if err != nil {
		return fmt.Errorf("codedb: encode %q: %w", key, err)
	}
	data = append(data, '\n')

	if err := db.appendSync(data); err != nil {
		db.metrics.RecordCodeDBWrite(op, "error", len(db.cache))
		db.logger.Error().Err(err).Str("op", op).Str("key", key).Msg("snippet store write failed")
		return fmt.Errorf("codedb: %s %q: %w", op, key, err)
	}

	db.cache[key] = v
	db.metrics.RecordCodeDBWrite(op, "ok", len(db.cache))
	db.logger.Info().
		Str("op", op).
		Str("key", key).
		Str("modified_by", modifiedBy).
		Msg("snippet store write")
	return nil
}

// appendSync writes data in a single call and syncs it.
// On failure the file is cut back to its previous size so that later records stay readable.
func (db *DB) appendSync(data []byte) error {
	n, err := db.file.Write(data)
	if err == nil {
		err = db.file.Sync()
	}
	if err != nil {
		if n > 0 {
			if terr := db.file.Truncate(db.size); terr != nil {
				err = errors.Join(err, fmt.Errorf("truncate: %w", terr))
			}
		}
		return err
	}
	db.size += int64(n)
	return nil
}

// Close closes the log file. Reads keep working from the cache.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	return db.file.Close()
}

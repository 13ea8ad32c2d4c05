// Package cachefile persists the quote cache across restarts of the host
// process. The layout is a single JSON document holding the shared refresh
// deadline and one record per symbol; the whole file is rewritten on save.
package cachefile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tswhison/ticker/internal/provider"
)

// Entry is the in-memory cache: all quotes plus one process-wide refresh
// deadline. The portfolio refreshes as a unit, so there is a single
// deadline rather than one per symbol.
type Entry struct {
	NextRefresh time.Time
	Quotes      map[string]provider.Quote
}

// Expired reports whether the entry is stale at the given instant.
func (e Entry) Expired(now time.Time) bool { return !now.Before(e.NextRefresh) }

// document is the on-disk shape. Unknown fields are ignored on load for
// forward compatibility.
type document struct {
	NextRefreshUnixTime int64                     `json:"next_refresh_unix_time"`
	Quotes              map[string]provider.Quote `json:"quotes"`
}

// Load reads the cache at path. It never fails the caller: a missing,
// unreadable, or structurally invalid file yields an empty entry with a
// zero deadline, so the first access refreshes. A cold cache must never
// crash the host.
func Load(path string) Entry {
	empty := Entry{Quotes: map[string]provider.Quote{}}
	b, err := os.ReadFile(path)
	if err != nil {
		return empty
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return empty
	}
	e := Entry{Quotes: doc.Quotes}
	if e.Quotes == nil {
		e.Quotes = map[string]provider.Quote{}
	}
	if doc.NextRefreshUnixTime > 0 {
		e.NextRefresh = time.Unix(doc.NextRefreshUnixTime, 0)
	}
	return e
}

// Save rewrites the cache file, creating the parent directory if needed.
// A save failure leaves the caller's in-memory entry untouched; the engine
// keeps serving from memory and reports the error.
func Save(path string, e Entry) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	doc := document{Quotes: e.Quotes}
	if !e.NextRefresh.IsZero() {
		doc.NextRefreshUnixTime = e.NextRefresh.Unix()
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

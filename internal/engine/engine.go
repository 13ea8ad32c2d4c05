// Package engine is the quote cache and refresh engine: it decides when
// cached quotes are stale, fetches fresh ones from the provider, persists
// them across restarts, and hands the presentation layer ready-to-render
// strings.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tswhison/ticker/internal/cachefile"
	"github.com/tswhison/ticker/internal/format"
	"github.com/tswhison/ticker/internal/provider"
)

// Watch pairs a portfolio symbol with its format template source.
type Watch struct {
	Symbol string
	Format string
}

// Config is the engine configuration.
type Config struct {
	// RefreshInterval is how long a successful refresh stays fresh.
	// Must be at least one minute.
	RefreshInterval time.Duration
	// CacheFile is the path of the durable quote cache.
	CacheFile string
	// RetryDelay is how long the background loop waits after a failed
	// refresh before trying again. Defaults to 30s.
	RetryDelay time.Duration
}

// Line is one rendered portfolio row. Up selects the up color; it is
// derived from the sign of the day's percent change, with zero counting
// as up. Rows for symbols the cache has no quote for carry the no-data
// sentinel text and Up=true.
type Line struct {
	Symbol string
	Text   string
	Up     bool
}

type watch struct {
	symbol string
	tmpl   *format.Template
}

// Engine owns the single process-wide cache entry and its refresh
// deadline. All access to the entry is serialized through one mutex;
// refreshes are coalesced so at most one is in flight at a time.
type Engine struct {
	cfg       Config
	p         provider.Provider
	portfolio []watch
	symbols   []string

	now func() time.Time

	mu      sync.Mutex
	cache   cachefile.Entry
	fetched map[string]struct{} // symbol set of the last successful refresh
	cancel  context.CancelFunc

	sf singleflight.Group
	wg sync.WaitGroup
}

// New compiles the portfolio's templates (invalid templates fail here, at
// configuration time), loads the cache file, and returns a ready engine.
// Portfolio order is preserved in DisplayData output.
func New(cfg Config, p provider.Provider, watches []Watch) (*Engine, error) {
	if p == nil {
		return nil, errors.New("engine: nil provider")
	}
	if cfg.RefreshInterval < time.Minute {
		return nil, fmt.Errorf("engine: refresh interval %v is below the 1m minimum", cfg.RefreshInterval)
	}
	if cfg.CacheFile == "" {
		return nil, errors.New("engine: cache file path required")
	}
	if len(watches) == 0 {
		return nil, errors.New("engine: empty portfolio")
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}

	e := &Engine{
		cfg: cfg,
		p:   p,
		now: time.Now,
	}
	seen := make(map[string]struct{}, len(watches))
	for _, w := range watches {
		if w.Symbol == "" {
			return nil, errors.New("engine: empty symbol in portfolio")
		}
		if _, dup := seen[w.Symbol]; dup {
			return nil, fmt.Errorf("engine: duplicate symbol %s in portfolio", w.Symbol)
		}
		seen[w.Symbol] = struct{}{}
		tmpl, err := format.Compile(w.Format)
		if err != nil {
			return nil, fmt.Errorf("engine: template for %s: %w", w.Symbol, err)
		}
		e.portfolio = append(e.portfolio, watch{symbol: w.Symbol, tmpl: tmpl})
		e.symbols = append(e.symbols, w.Symbol)
	}

	e.cache = cachefile.Load(cfg.CacheFile)
	e.fetched = make(map[string]struct{}, len(e.cache.Quotes))
	for s := range e.cache.Quotes {
		e.fetched[s] = struct{}{}
	}
	return e, nil
}

// DisplayData returns one rendered line per portfolio symbol, in portfolio
// order. If the cache is stale it refreshes synchronously first; the
// refresh error, if any, is returned alongside whatever can still be
// rendered from the previous cache (no-data sentinels when there is
// nothing at all).
func (e *Engine) DisplayData(ctx context.Context) ([]Line, error) {
	var refreshErr error
	if e.needsRefresh() {
		refreshErr = e.refresh(ctx, false)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	lines := make([]Line, 0, len(e.portfolio))
	for _, w := range e.portfolio {
		q, ok := e.cache.Quotes[w.symbol]
		if !ok {
			lines = append(lines, Line{Symbol: w.symbol, Text: format.NoData(w.symbol), Up: true})
			continue
		}
		lines = append(lines, Line{Symbol: w.symbol, Text: w.tmpl.Render(w.symbol, q), Up: q.Up()})
	}
	return lines, refreshErr
}

// RefreshNow forces a refresh regardless of the deadline. If a refresh is
// already in flight it waits for that one instead of starting a second.
func (e *Engine) RefreshNow(ctx context.Context) error {
	return e.refresh(ctx, true)
}

// needsRefresh reports whether the deadline has passed or the tracked
// symbol set has changed since the cache was last populated.
func (e *Engine) needsRefresh() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cache.Expired(e.now()) {
		return true
	}
	for _, s := range e.symbols {
		if _, ok := e.fetched[s]; !ok {
			return true
		}
	}
	return false
}

// refresh performs one all-or-nothing refresh. Concurrent callers are
// coalesced onto a single provider fetch and all observe its outcome;
// unless force is set, a flight that finds the cache fresh again (another
// refresh won the race) fetches nothing. On
// success the deadline advances to now+interval (it never moves backward)
// and the cache is persisted; on failure entry and deadline are left
// untouched so the next access retries immediately.
func (e *Engine) refresh(ctx context.Context, force bool) error {
	_, err, _ := e.sf.Do("refresh", func() (any, error) {
		// A refresh that completed between the caller's staleness check and
		// this flight starting already satisfied it.
		if !force && !e.needsRefresh() {
			return nil, nil
		}
		quotes, err := e.p.FetchAll(ctx, e.symbols)
		if err != nil {
			return nil, err
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		if next := e.now().Add(e.cfg.RefreshInterval); next.After(e.cache.NextRefresh) {
			e.cache.NextRefresh = next
		}
		e.cache.Quotes = quotes
		e.fetched = make(map[string]struct{}, len(e.symbols))
		for _, s := range e.symbols {
			e.fetched[s] = struct{}{}
		}
		// Persisting inside the same serialized region as the cache update
		// keeps the file consistent with memory. A write failure is not a
		// refresh failure: the fresh quotes stay served from memory.
		if err := cachefile.Save(e.cfg.CacheFile, e.cache); err != nil {
			log.Printf("ticker: save quote cache: %v", err)
		}
		return nil, nil
	})
	return err
}

// StartBackgroundRefresh launches the recurring refresh loop. Calling it
// while the loop is already active is a no-op.
func (e *Engine) StartBackgroundRefresh() {
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(ctx)
}

// StopBackgroundRefresh cancels the pending timer and waits for the loop
// to exit. Safe to call when the loop is not running.
func (e *Engine) StopBackgroundRefresh() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
		e.wg.Wait()
	}
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()
	for {
		var wait time.Duration
		if e.needsRefresh() {
			if err := e.refresh(ctx, false); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("ticker: background refresh: %v", err)
				wait = e.cfg.RetryDelay
			}
		}
		if wait == 0 {
			e.mu.Lock()
			deadline := e.cache.NextRefresh
			e.mu.Unlock()
			wait = deadline.Sub(e.now())
		}
		if wait < time.Second {
			wait = time.Second
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

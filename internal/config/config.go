package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Engine holds the refresh engine settings.
type Engine struct {
	RefreshIntervalMinutes int    `json:"refresh_interval_minutes" yaml:"refresh_interval_minutes"`
	QuoteCacheFile         string `json:"quote_cache_file" yaml:"quote_cache_file"`
	RetryDelaySec          int    `json:"retry_delay_sec" yaml:"retry_delay_sec"`
}

// Finnhub holds the market-data provider settings.
type Finnhub struct {
	APIKey                string `json:"api_key" yaml:"api_key"`
	APIKeyFile            string `json:"api_key_file" yaml:"api_key_file"`
	Endpoint              string `json:"endpoint" yaml:"endpoint"`
	RequestTimeoutSec     int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
	MaxConcurrency        int    `json:"max_concurrency" yaml:"max_concurrency"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec" yaml:"min_request_interval_sec"`
	Burst                 int    `json:"burst" yaml:"burst"`
}

// Watch is one portfolio row: a ticker symbol and the template used to
// render its quote. Portfolio order is display order.
type Watch struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Format string `json:"format" yaml:"format"`
}

type Config struct {
	Engine    Engine  `json:"engine" yaml:"engine"`
	Finnhub   Finnhub `json:"finnhub" yaml:"finnhub"`
	Portfolio []Watch `json:"portfolio" yaml:"portfolio"`
}

func Default() Config {
	cacheFile := "ticker_cache.json"
	if home, err := os.UserHomeDir(); err == nil {
		cacheFile = filepath.Join(home, ".cache", "ticker", "quotes.json")
	}
	return Config{
		Engine: Engine{
			RefreshIntervalMinutes: 120,
			QuoteCacheFile:         cacheFile,
			RetryDelaySec:          30,
		},
		Finnhub: Finnhub{
			RequestTimeoutSec:    10,
			MaxConcurrency:       4,
			MaxRequestsPerMinute: 30, // half the free-tier ceiling
			Burst:                2,
		},
	}
}

// Load reads config from path (YAML when the extension is .yaml/.yml,
// JSON otherwise). If path is empty it falls back to ticker.json in the
// working directory when present, else defaults. Environment variables
// override select fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("ticker.json"); err == nil {
			path = "ticker.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			switch strings.ToLower(filepath.Ext(path)) {
			case ".yaml", ".yml":
				err = yaml.Unmarshal(b, &cfg)
			default:
				err = json.Unmarshal(b, &cfg)
			}
			if err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if err := normalize(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// normalize validates what can be checked without the network and
// uppercases portfolio symbols.
func normalize(cfg *Config) error {
	if cfg.Engine.RefreshIntervalMinutes < 1 {
		return fmt.Errorf("refresh_interval_minutes must be >= 1, got %d", cfg.Engine.RefreshIntervalMinutes)
	}
	if cfg.Engine.QuoteCacheFile == "" {
		return errors.New("quote_cache_file must not be empty")
	}
	seen := make(map[string]struct{}, len(cfg.Portfolio))
	for i := range cfg.Portfolio {
		sym := strings.ToUpper(strings.TrimSpace(cfg.Portfolio[i].Symbol))
		if sym == "" {
			return fmt.Errorf("portfolio entry %d: empty symbol", i)
		}
		if _, dup := seen[sym]; dup {
			return fmt.Errorf("portfolio entry %d: duplicate symbol %s", i, sym)
		}
		seen[sym] = struct{}{}
		cfg.Portfolio[i].Symbol = sym
	}
	return nil
}

// ResolveAPIKey resolves the provider credential in precedence order:
// explicit config value, FINNHUB_API_KEY, first line of api_key_file.
// Empty when none is set; the engine then fails the first refresh with an
// auth error.
func (f Finnhub) ResolveAPIKey() string {
	if f.APIKey != "" {
		return f.APIKey
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		return v
	}
	if f.APIKeyFile != "" {
		if b, err := os.ReadFile(f.APIKeyFile); err == nil {
			line, _, _ := strings.Cut(string(b), "\n")
			return strings.TrimSpace(line)
		}
	}
	return ""
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TICKER_REFRESH_MINUTES"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Engine.RefreshIntervalMinutes = x
		}
	}
	if v := os.Getenv("TICKER_CACHE_FILE"); v != "" {
		cfg.Engine.QuoteCacheFile = v
	}
	if v := os.Getenv("TICKER_RETRY_DELAY_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Engine.RetryDelaySec = x
		}
	}
	if v := os.Getenv("FINNHUB_API_KEY_FILE"); v != "" {
		cfg.Finnhub.APIKeyFile = v
	}
	if v := os.Getenv("FINNHUB_ENDPOINT"); v != "" {
		cfg.Finnhub.Endpoint = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Finnhub.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("FINNHUB_MAX_CONCURRENCY"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Finnhub.MaxConcurrency = x
		}
	}
	if v := os.Getenv("FINNHUB_MAX_RPM"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Finnhub.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("FINNHUB_MIN_INTERVAL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Finnhub.MinRequestIntervalSec = x
		}
	}
	if v := os.Getenv("FINNHUB_BURST"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Finnhub.Burst = x
		}
	}
}

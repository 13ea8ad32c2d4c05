// Command ticker prints the configured stock portfolio using cached quotes,
// refreshing them from Finnhub when stale. With -watch it keeps the quotes
// fresh in the background and reprints on every interval, the way the vim
// overlay drives the engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tswhison/ticker/internal/config"
	"github.com/tswhison/ticker/internal/engine"
	"github.com/tswhison/ticker/internal/httpx"
	"github.com/tswhison/ticker/internal/provider"
	"github.com/tswhison/ticker/internal/provider/finnhub"
	"github.com/tswhison/ticker/internal/provider/ratelimit"
)

const (
	colorUp    = "\033[32m"
	colorDown  = "\033[31m"
	colorReset = "\033[0m"
)

func main() {
	var (
		configPath string
		forceNow   bool
		watchMode  bool
		noColor    bool
	)
	flag.StringVar(&configPath, "config", getenv("TICKER_CONFIG", ""), "path to ticker.json or ticker.yaml")
	flag.BoolVar(&forceNow, "refresh", false, "force a refresh before printing, ignoring the cache deadline")
	flag.BoolVar(&watchMode, "watch", false, "keep refreshing in the background and reprint every interval")
	flag.BoolVar(&noColor, "no-color", false, "disable up/down ANSI colors")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if len(cfg.Portfolio) == 0 {
		log.Fatal("no portfolio configured; add symbols to the config file")
	}

	apiKey := cfg.Finnhub.ResolveAPIKey()
	if apiKey == "" {
		log.Println("warning: no Finnhub credential set; refreshes will fail until FINNHUB_API_KEY is provided")
	}

	httpClient := httpx.New(time.Duration(cfg.Finnhub.RequestTimeoutSec) * time.Second)

	opts := []finnhub.Option{
		finnhub.WithHTTPClient(httpClient),
		finnhub.WithMaxConcurrency(cfg.Finnhub.MaxConcurrency),
	}
	if cfg.Finnhub.Endpoint != "" {
		opts = append(opts, finnhub.WithBaseURL(cfg.Finnhub.Endpoint))
	}
	var p provider.Provider = finnhub.New(apiKey, opts...)
	// Keep a small portfolio comfortably under Finnhub's free-tier request
	// ceiling. A refresh costs one token but issues len(portfolio) requests,
	// so the configured RPM is divided by the portfolio size.
	if cfg.Finnhub.MaxRequestsPerMinute > 0 {
		rate := float64(cfg.Finnhub.MaxRequestsPerMinute) / 60.0 / float64(len(cfg.Portfolio))
		burst := cfg.Finnhub.Burst
		if burst <= 0 {
			burst = 1
		}
		p = &ratelimit.TokenBucketProvider{P: p, TB: ratelimit.NewTokenBucket(rate, burst)}
	} else if cfg.Finnhub.MinRequestIntervalSec > 0 {
		interval := time.Duration(cfg.Finnhub.MinRequestIntervalSec) * time.Second
		p = &ratelimit.MinInterval{P: p, Interval: interval}
	}

	watches := make([]engine.Watch, 0, len(cfg.Portfolio))
	for _, w := range cfg.Portfolio {
		watches = append(watches, engine.Watch{Symbol: w.Symbol, Format: w.Format})
	}

	eng, err := engine.New(engine.Config{
		RefreshInterval: time.Duration(cfg.Engine.RefreshIntervalMinutes) * time.Minute,
		CacheFile:       cfg.Engine.QuoteCacheFile,
		RetryDelay:      time.Duration(cfg.Engine.RetryDelaySec) * time.Second,
	}, p, watches)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if forceNow {
		if err := eng.RefreshNow(ctx); err != nil {
			log.Printf("refresh: %v", err)
		}
	}
	printLines(ctx, eng, !noColor)

	if !watchMode {
		return
	}

	eng.StartBackgroundRefresh()
	defer eng.StopBackgroundRefresh()

	tick := time.NewTicker(time.Duration(cfg.Engine.RefreshIntervalMinutes) * time.Minute)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			printLines(ctx, eng, !noColor)
		}
	}
}

func printLines(ctx context.Context, eng *engine.Engine, color bool) {
	lines, err := eng.DisplayData(ctx)
	if err != nil {
		log.Printf("refresh: %v", err)
	}
	for _, l := range lines {
		if !color {
			fmt.Println(l.Text)
			continue
		}
		c := colorDown
		if l.Up {
			c = colorUp
		}
		fmt.Printf("%s%s%s\n", c, l.Text, colorReset)
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

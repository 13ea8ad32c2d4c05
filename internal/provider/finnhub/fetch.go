package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/tswhison/ticker/internal/provider"
)

// FetchAll fetches current quotes for symbols. Finnhub has no multi-symbol
// batch endpoint, so requests go out one per symbol with bounded
// concurrency, but the call is logically a single refresh: if any symbol
// fails, the whole call fails and no partial map is returned.
//
// Symbols Finnhub has no data for (it answers 200 with an all-zero body)
// are omitted from the result rather than failing the refresh.
func (c *Client) FetchAll(ctx context.Context, symbols []string) (map[string]provider.Quote, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, fmt.Errorf("%w: missing api key", provider.ErrAuth)
	}

	uniq := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			uniq = append(uniq, s)
		}
	}

	maxConc := c.maxConcurrency
	if maxConc <= 0 {
		maxConc = 1
	}
	sem := make(chan struct{}, maxConc)
	var wg sync.WaitGroup
	var mu sync.Mutex
	out := make(map[string]provider.Quote, len(uniq))
	var firstErr error

	for _, sym := range uniq {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			q, ok, err := c.quote(ctx, sym)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("quote %s: %w", sym, err)
				}
				return
			}
			if ok {
				out[sym] = q
			}
		}(sym)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrNetwork, err)
	}
	return out, nil
}

// quoteResponse is the Finnhub /quote body:
//
//	{"c": 47.08, "d": 1.32, "dp": 2.8846, "h": 47.116,
//	 "l": 46.02, "o": 46.48, "pc": 45.76, "t": 1703192401}
type quoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	PercentChange float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

func (c *Client) quote(ctx context.Context, symbol string) (provider.Quote, bool, error) {
	u := fmt.Sprintf("%s/quote?symbol=%s", c.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return provider.Quote{}, false, fmt.Errorf("%w: creating request: %v", provider.ErrNetwork, err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Finnhub-Token", c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return provider.Quote{}, false, fmt.Errorf("%w: %v", provider.ErrNetwork, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
		break

	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return provider.Quote{}, false, fmt.Errorf("%w: status %d", provider.ErrAuth, res.StatusCode)

	case res.StatusCode == http.StatusTooManyRequests:
		return provider.Quote{}, false, fmt.Errorf("%w: status %d", provider.ErrRateLimited, res.StatusCode)

	case res.StatusCode >= 500:
		return provider.Quote{}, false, fmt.Errorf("%w: status %d", provider.ErrNetwork, res.StatusCode)

	default:
		return provider.Quote{}, false, fmt.Errorf("%w: unexpected status %d", provider.ErrMalformedResponse, res.StatusCode)
	}

	var body quoteResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return provider.Quote{}, false, fmt.Errorf("%w: decoding quote: %v", provider.ErrMalformedResponse, err)
	}

	// All-zero body: Finnhub's answer for symbols it does not know.
	if body.Current == 0 && body.High == 0 && body.Low == 0 && body.Open == 0 && body.PreviousClose == 0 {
		return provider.Quote{}, false, nil
	}

	return provider.Quote{
		Current:       body.Current,
		Change:        body.Change,
		PercentChange: body.PercentChange,
		High:          body.High,
		Low:           body.Low,
		Open:          body.Open,
		PreviousClose: body.PreviousClose,
	}, true, nil
}

package cachefile_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tswhison/ticker/internal/cachefile"
	"github.com/tswhison/ticker/internal/provider"
)

func testEntry() cachefile.Entry {
	return cachefile.Entry{
		NextRefresh: time.Unix(1703192401, 0),
		Quotes: map[string]provider.Quote{
			"AAPL": {Current: 150.25, Change: 1.32, PercentChange: 0.88, High: 151, Low: 149.5, Open: 149.9, PreviousClose: 148.93},
			"MSFT": {Current: 370.1, Change: -2.4, PercentChange: -0.64, High: 373, Low: 369, Open: 372.5, PreviousClose: 372.5},
		},
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ticker", "cache.json")
	want := testEntry()
	require.NoError(t, cachefile.Save(path, want))

	got := cachefile.Load(path)
	require.True(t, got.NextRefresh.Equal(want.NextRefresh), "deadline: got %v want %v", got.NextRefresh, want.NextRefresh)
	require.Equal(t, want.Quotes, got.Quotes)

	// Saving what we loaded and loading again is a fixed point.
	require.NoError(t, cachefile.Save(path, got))
	again := cachefile.Load(path)
	require.Equal(t, got.Quotes, again.Quotes)
	require.True(t, again.NextRefresh.Equal(got.NextRefresh))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	e := cachefile.Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NotNil(t, e.Quotes)
	require.Empty(t, e.Quotes)
	if !e.Expired(time.Now()) {
		t.Fatal("missing file must load as expired")
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	t.Parallel()

	for _, body := range []string{"", "{not json", `"just a string"`, "[1,2,3]"} {
		path := filepath.Join(t.TempDir(), "cache.json")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		e := cachefile.Load(path)
		require.Emptyf(t, e.Quotes, "body %q", body)
		if !e.Expired(time.Now()) {
			t.Fatalf("corrupt file %q must load as expired", body)
		}
	}
}

func TestLoad_IgnoresUnknownFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.json")
	body := `{
  "next_refresh_unix_time": 1703192401,
  "schema_version": 7,
  "quotes": {
    "AAPL": {"current": 1.5, "change": 0.1, "percent_change": 0.2, "high": 2, "low": 1, "open": 1.2, "previous_close": 1.4, "vendor_extra": true}
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	e := cachefile.Load(path)
	require.Len(t, e.Quotes, 1)
	require.Equal(t, 1.5, e.Quotes["AAPL"].Current)
	require.Equal(t, int64(1703192401), e.NextRefresh.Unix())
}

func TestExpired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	e := cachefile.Entry{NextRefresh: now.Add(time.Minute)}
	if e.Expired(now) {
		t.Fatal("future deadline must not be expired")
	}
	// The deadline instant itself counts as expired (now >= deadline).
	if !e.Expired(now.Add(time.Minute)) {
		t.Fatal("deadline instant must be expired")
	}
	if !(cachefile.Entry{}).Expired(now) {
		t.Fatal("zero deadline must be expired")
	}
}

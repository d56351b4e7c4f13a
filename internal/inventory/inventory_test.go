package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleister1102/waymirror/internal/config"
	"github.com/aleister1102/waymirror/internal/httpclient"
	"github.com/aleister1102/waymirror/internal/progress"
	"github.com/aleister1102/waymirror/internal/wayback"
)

func newTestMerger(t *testing.T, handler http.Handler) *Merger {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpCfg := config.NewDefaultHTTPClientConfig()
	httpCfg.TimeoutSecs = 5
	httpCfg.MaxRetries = 0
	httpCfg.BaseDelayMs = 1
	client, err := httpclient.NewHTTPClientBuilder(zerolog.Nop()).WithConfig(httpCfg).Build()
	require.NoError(t, err)

	cdx := wayback.NewCDXClient(client, config.WaybackConfig{
		CDXAPIURL:          server.URL + "/cdx",
		AvailabilityAPIURL: server.URL + "/available",
		RawBaseURL:         server.URL + "/web",
	}, zerolog.Nop())
	return NewMerger(cdx, zerolog.Nop())
}

func TestMergeUnionsVariants(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		successOnly := q.Get("filter") == "statuscode:200"
		rows := [][]string{{"timestamp"}}
		switch q.Get("url") {
		case "https://example.com/":
			rows = append(rows, []string{"20240102030405"}, []string{"20230101000000"})
			if successOnly {
				rows = [][]string{{"timestamp"}, {"20240102030405"}}
			}
		case "https://www.example.com/":
			rows = append(rows, []string{"20220505050505"})
			if successOnly {
				rows = [][]string{{"timestamp"}, {"20220505050505"}}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows)
	})

	merger := newTestMerger(t, handler)
	merged, err := merger.Merge(context.Background(), "https://example.com/", 20000, progress.Hooks{})
	require.NoError(t, err)

	assert.Equal(t, []string{"20220505050505", "20230101000000", "20240102030405"}, merged.All)
	assert.Equal(t, []string{"20220505050505", "20240102030405"}, merged.OK)
	assert.Equal(t, 4, merged.VariantCount)
	assert.Len(t, merged.Variants, 4)
	assert.Zero(t, merged.FailedVariants)
	assert.False(t, merged.AllVariantsFailed())

	// Every OK timestamp must appear in the full set.
	allSet := make(map[string]bool)
	for _, ts := range merged.All {
		allSet[ts] = true
	}
	for _, ts := range merged.OK {
		assert.True(t, allSet[ts], "ok timestamp %s missing from full set", ts)
	}
}

func TestMergeCountsFailedVariants(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	})

	merger := newTestMerger(t, handler)

	merged, err := merger.Merge(context.Background(), "https://blog.example.com/", 20000, progress.Hooks{})
	require.NoError(t, err)
	assert.Empty(t, merged.All)
	assert.Empty(t, merged.OK)
	assert.Equal(t, merged.VariantCount, merged.FailedVariants)
	assert.True(t, merged.AllVariantsFailed())
}

func TestMergeAbortStopsEarly(t *testing.T) {
	merger := newTestMerger(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[["timestamp"]]`))
	}))

	hooks := progress.Hooks{ShouldAbort: func() bool { return true }}
	_, err := merger.Merge(context.Background(), "https://example.com/", 20000, hooks)
	require.Error(t, err)
}

func TestMergedSnapshotsScope(t *testing.T) {
	merged := &MergedSnapshots{
		Variants: []VariantCaptures{
			{URL: "https://example.com/"},
			{URL: "http://www.example.com/"},
		},
	}

	hosts := merged.AllowedHosts()
	assert.True(t, hosts["example.com"])
	assert.True(t, hosts["www.example.com"])

	assert.Equal(t, []string{"https://example.com/*", "http://www.example.com/*"}, merged.Wildcards())
}

func TestChooseSnapshot(t *testing.T) {
	candidates := []string{"20220101000000", "20230101000000", "20240102030405"}

	assert.Equal(t, "20240102030405", ChooseSnapshot(candidates, ""))
	assert.Equal(t, "20230101000000", ChooseSnapshot(candidates, "20230101000000"))
	// Unknown request falls back to the newest candidate.
	assert.Equal(t, "20240102030405", ChooseSnapshot(candidates, "20210101000000"))
	assert.Equal(t, "", ChooseSnapshot(nil, "20230101000000"))
}

func rowsFixture() []wayback.InventoryRow {
	return []wayback.InventoryRow{
		{Original: "https://example.com/wp-content/uploads/big.jpg", MimeType: "image/jpeg"},
		{Original: "https://example.com/", MimeType: "text/html"},
		{Original: "https://example.com/site.css", MimeType: "text/css"},
		{Original: "https://example.com/about", MimeType: "text/html"},
		{Original: "https://cdn.other.com/lib.js", MimeType: "application/javascript"},
		{Original: "https://example.com/about", MimeType: "text/html"},
	}
}

func TestPrioritizeRows(t *testing.T) {
	allowed := map[string]bool{"example.com": true}
	ordered := PrioritizeRows(rowsFixture(), allowed)

	// Root page: page(30) + root(20) + short(5) = 55.
	// About page: page(30) + short(5) = 35.
	// Stylesheet: css(15) + short(5) = 20.
	// Upload image: -10 + short(5) = -5.
	assert.Equal(t, []string{
		"https://example.com/",
		"https://example.com/about",
		"https://example.com/site.css",
		"https://example.com/wp-content/uploads/big.jpg",
	}, ordered)
}

func TestExpectedURLsFiltersAndDedupes(t *testing.T) {
	allowed := map[string]bool{"example.com": true}
	expected := ExpectedURLs(rowsFixture(), allowed)

	assert.Equal(t, []string{
		"https://example.com/wp-content/uploads/big.jpg",
		"https://example.com/",
		"https://example.com/site.css",
		"https://example.com/about",
	}, expected)
}

func TestInventorySize(t *testing.T) {
	rows := []wayback.InventoryRow{{Length: 100}, {Length: 0}, {Length: 250}, {Length: -5}}
	assert.Equal(t, int64(350), InventorySize(rows))
}

func TestSeedCount(t *testing.T) {
	assert.Equal(t, 50, SeedCount(10))
	assert.Equal(t, 800, SeedCount(400))
	assert.Equal(t, 2000, SeedCount(5000))
}

func TestBuildCalendar(t *testing.T) {
	calendar := BuildCalendar([]string{
		"20230101080000",
		"20230101120000",
		"20230215000000",
		"20240310000000",
		"bogus",
	})

	require.Len(t, calendar, 2)
	assert.Equal(t, "2024", calendar[0].Year)
	assert.Equal(t, "2023", calendar[1].Year)

	require.Len(t, calendar[1].Months, 2)
	assert.Equal(t, "02", calendar[1].Months[0].Month)
	assert.Equal(t, "Feb", calendar[1].Months[0].MonthLabel)
	assert.Equal(t, "01", calendar[1].Months[1].Month)

	jan := calendar[1].Months[1].Days
	require.Len(t, jan, 1)
	assert.Equal(t, 2, jan[0].Count)
	assert.Equal(t, "20230101120000", jan[0].Timestamp)
	require.Len(t, jan[0].Times, 2)
	assert.Equal(t, "08:00:00", jan[0].Times[0].Label)
	assert.Equal(t, "12:00:00", jan[0].Times[1].Label)
}

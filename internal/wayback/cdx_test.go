package wayback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleister1102/waymirror/internal/config"
	"github.com/aleister1102/waymirror/internal/errorwrapper"
	"github.com/aleister1102/waymirror/internal/httpclient"
	"github.com/aleister1102/waymirror/internal/progress"
)

func newTestCDXClient(t *testing.T, handler http.Handler) (*CDXClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpCfg := config.NewDefaultHTTPClientConfig()
	httpCfg.TimeoutSecs = 5
	httpCfg.MaxRetries = 0
	httpCfg.BaseDelayMs = 1
	client, err := httpclient.NewHTTPClientBuilder(zerolog.Nop()).WithConfig(httpCfg).Build()
	require.NoError(t, err)

	cdx := NewCDXClient(client, config.WaybackConfig{
		CDXAPIURL:          server.URL + "/cdx",
		AvailabilityAPIURL: server.URL + "/available",
		RawBaseURL:         server.URL + "/web",
	}, zerolog.Nop())
	cdx.adaptiveRetrySleep = 0
	return cdx, server
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestListSnapshots(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filter") == "statuscode:200" {
			writeJSON(w, [][]string{{"timestamp"}, {"20240102030405"}})
			return
		}
		writeJSON(w, [][]string{
			{"timestamp"},
			{"20240102030405"},
			{"20230101000000"},
			{"20230101000000"},
			{"not-a-timestamp"},
		})
	})

	cdx, _ := newTestCDXClient(t, handler)

	all, err := cdx.ListSnapshots(context.Background(), "https://example.com/", false, 1000)
	require.NoError(t, err)
	assert.Equal(t, []string{"20230101000000", "20240102030405"}, all)

	ok, err := cdx.ListSnapshots(context.Background(), "https://example.com/", true, 1000)
	require.NoError(t, err)
	assert.Equal(t, []string{"20240102030405"}, ok)
}

func TestListSnapshotsEmpty(t *testing.T) {
	cdx, _ := newTestCDXClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, [][]string{{"timestamp"}})
	}))

	timestamps, err := cdx.ListSnapshots(context.Background(), "https://example.com/", true, 1000)
	require.NoError(t, err)
	assert.Empty(t, timestamps)
}

func TestListSnapshotsAdaptiveShrinksBudget(t *testing.T) {
	var limits []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := r.URL.Query().Get("limit")
		limits = append(limits, limit)
		if limit == "20000" || limit == "10000" {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		writeJSON(w, [][]string{{"timestamp"}, {"20240102030405"}})
	})

	cdx, _ := newTestCDXClient(t, handler)

	timestamps, err := cdx.ListSnapshotsAdaptive(context.Background(), "https://example.com/", true, 20000)
	require.NoError(t, err)
	assert.Equal(t, []string{"20240102030405"}, timestamps)
	assert.Equal(t, []string{"20000", "10000", "800"}, limits)
}

func TestListSnapshotsAdaptiveExhausted(t *testing.T) {
	var calls int
	cdx, _ := newTestCDXClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusGatewayTimeout)
	}))

	_, err := cdx.ListSnapshotsAdaptive(context.Background(), "https://example.com/", true, 2000)
	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestListSnapshots503MapsToUpstreamUnavailable(t *testing.T) {
	cdx, _ := newTestCDXClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := cdx.ListSnapshots(context.Background(), "https://example.com/", true, 1000)
	require.Error(t, err)
	assert.True(t, errorwrapper.IsUpstreamUnavailable(err))
	assert.True(t, cdx.IsUpstreamUnavailableRecent())
}

func TestCollectRowsDedupesFirstWriteWins(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wildcard := r.URL.Query().Get("url")
		if strings.HasPrefix(wildcard, "https://") {
			writeJSON(w, [][]string{
				{"timestamp", "original", "mimetype", "length", "urlkey"},
				{"20240102030405", "https://example.com/", "text/html", "1200", "com,example)/"},
				{"20240102030405", "https://example.com/site.css", "text/css", "300", "com,example)/site.css"},
			})
			return
		}
		writeJSON(w, [][]string{
			{"timestamp", "original", "mimetype", "length", "urlkey"},
			// Same identity as the https row, earlier variant must win.
			{"20230101000000", "https://example.com/", "text/html", "999", "com,example)/"},
			{"20240102030405", "http://example.com/app.js", "application/javascript", "800", "com,example)/app.js"},
		})
	})

	cdx, _ := newTestCDXClient(t, handler)

	rows, err := cdx.CollectRows(
		context.Background(),
		[]string{"https://example.com/*", "http://example.com/*"},
		"20240102030405", 60000, progress.Hooks{}, progress.StageInventory,
	)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byOriginal := make(map[string]InventoryRow)
	for _, row := range rows {
		byOriginal[row.Original] = row
	}
	assert.Equal(t, "20240102030405", byOriginal["https://example.com/"].Timestamp)
	assert.Equal(t, int64(1200), byOriginal["https://example.com/"].Length)
	assert.Contains(t, byOriginal, "https://example.com/site.css")
	assert.Contains(t, byOriginal, "http://example.com/app.js")
}

func TestCollectRowsSkipsFailingWildcard(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Query().Get("url"), "https://") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, [][]string{
			{"timestamp", "original", "mimetype", "length", "urlkey"},
			{"20240102030405", "http://example.com/", "text/html", "1200", "com,example)/"},
		})
	})

	cdx, _ := newTestCDXClient(t, handler)

	rows, err := cdx.CollectRows(
		context.Background(),
		[]string{"https://example.com/*", "http://example.com/*"},
		"20240102030405", 60000, progress.Hooks{}, progress.StageInventory,
	)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "http://example.com/", rows[0].Original)
}

func TestCollectRowsPerVariantBudget(t *testing.T) {
	var limits []string
	cdx, _ := newTestCDXClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limits = append(limits, r.URL.Query().Get("limit"))
		writeJSON(w, [][]string{{"timestamp", "original", "mimetype", "length", "urlkey"}})
	}))

	wildcards := []string{"https://a/*", "https://b/*", "https://c/*", "https://d/*"}
	_, err := cdx.CollectRows(context.Background(), wildcards, "20240102030405", 1000, progress.Hooks{}, progress.StageInventory)
	require.NoError(t, err)

	// 1000/4 = 250, raised to the 300 floor.
	assert.Equal(t, []string{"300", "300", "300", "300"}, limits)
}

func TestCollectRowsAbort(t *testing.T) {
	cdx, _ := newTestCDXClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, [][]string{{"timestamp", "original", "mimetype", "length", "urlkey"}})
	}))

	hooks := progress.Hooks{ShouldAbort: func() bool { return true }}
	_, err := cdx.CollectRows(context.Background(), []string{"https://a/*"}, "20240102030405", 1000, hooks, progress.StageInventory)
	require.Error(t, err)
	assert.True(t, errorwrapper.IsCancelled(err))
}

func TestTimestampsForURLMemoized(t *testing.T) {
	var calls int
	cdx, _ := newTestCDXClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, [][]string{
			{"timestamp"},
			{"20230101000000"},
			{"20240102030405"},
		})
	}))

	first := cdx.TimestampsForURL(context.Background(), "https://example.com/x")
	assert.Equal(t, []string{"20240102030405", "20230101000000"}, first)

	second := cdx.TimestampsForURL(context.Background(), "https://example.com/x")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	cdx.ResetCaches()
	cdx.TimestampsForURL(context.Background(), "https://example.com/x")
	assert.Equal(t, 2, calls)
}

func TestClosestTimestamp(t *testing.T) {
	cdx, _ := newTestCDXClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"archived_snapshots": map[string]any{
				"closest": map[string]any{"timestamp": "20240102030405"},
			},
		})
	}))

	assert.Equal(t, "20240102030405", cdx.ClosestTimestamp(context.Background(), "https://example.com/"))
}

func TestClosestTimestampNoAnswer(t *testing.T) {
	cdx, _ := newTestCDXClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"archived_snapshots": map[string]any{}})
	}))

	assert.Equal(t, "", cdx.ClosestTimestamp(context.Background(), "https://example.com/"))
}

func TestDownloadAtTimestamp(t *testing.T) {
	cdx, _ := newTestCDXClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/web/20240102030405id_/https://example.com/", r.URL.Path)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html></html>"))
	}))

	result, err := cdx.DownloadAtTimestamp(context.Background(), "https://example.com/", "20240102030405")
	require.NoError(t, err)
	assert.Equal(t, "text/html", result.Mime)
	assert.Equal(t, "20240102030405", result.Timestamp)
	assert.Equal(t, []byte("<html></html>"), result.Body)
}

func TestDownloadAtTimestampEmptyBodyIsMissing(t *testing.T) {
	cdx, _ := newTestCDXClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	_, err := cdx.DownloadAtTimestamp(context.Background(), "https://example.com/", "20240102030405")
	require.Error(t, err)
	assert.True(t, errorwrapper.IsNotFound(err))
}

func TestDownloadWithRepairFallsBackToOlderCapture(t *testing.T) {
	cdx, _ := newTestCDXClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/cdx"):
			writeJSON(w, [][]string{
				{"timestamp"},
				{"20230601000000"},
				{"20230101000000"},
				{"20250101000000"},
			})
		case strings.Contains(r.URL.Path, "20240102030405"):
			w.WriteHeader(http.StatusNotFound)
		case strings.Contains(r.URL.Path, "20230601000000"):
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	result, err := cdx.DownloadWithRepair(context.Background(), "https://example.com/logo.png", "20240102030405")
	require.NoError(t, err)
	// Newest capture at or before the target wins; the 2025 capture is ignored.
	assert.Equal(t, "20230601000000", result.Timestamp)
	assert.Equal(t, "image/png", result.Mime)
}

func TestDownloadWithRepairAllMissing(t *testing.T) {
	cdx, _ := newTestCDXClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/cdx") {
			writeJSON(w, [][]string{{"timestamp"}})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := cdx.DownloadWithRepair(context.Background(), "https://example.com/x", "20240102030405")
	require.Error(t, err)
	assert.True(t, errorwrapper.IsNotFound(err))
}

func TestParseInventoryRow(t *testing.T) {
	row, ok := parseInventoryRow([]string{"20240102030405", "https://example.com/", "text/html", "1200", "com,example)/"})
	require.True(t, ok)
	assert.Equal(t, int64(1200), row.Length)
	assert.Equal(t, "https://example.com/|com,example)/", row.DedupeKey())

	_, ok = parseInventoryRow([]string{"timestamp", "original", "mimetype", "length", "urlkey"})
	assert.False(t, ok)

	_, ok = parseInventoryRow([]string{"20240102030405", "https://example.com/"})
	assert.False(t, ok)
}

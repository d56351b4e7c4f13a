package wayback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleister1102/waymirror/internal/config"
	"github.com/aleister1102/waymirror/internal/errorwrapper"
	"github.com/aleister1102/waymirror/internal/httpclient"
	"github.com/aleister1102/waymirror/internal/progress"
)

// CDXClient talks to a capture index (CDX API plus the availability
// endpoint) and downloads raw archived payloads. It memoizes per-URL
// timestamp listings so repair lookups hit the index at most once per URL
// within an operation.
type CDXClient struct {
	http   *httpclient.HTTPClient
	cfg    config.WaybackConfig
	logger zerolog.Logger

	mu      sync.Mutex
	tsCache map[string][]string

	// adaptiveRetrySleep separates ladder attempts; shortened in tests.
	adaptiveRetrySleep time.Duration
}

// NewCDXClient creates a capture-index client.
func NewCDXClient(client *httpclient.HTTPClient, cfg config.WaybackConfig, logger zerolog.Logger) *CDXClient {
	return &CDXClient{
		http:               client,
		cfg:                cfg,
		logger:             logger.With().Str("component", "CDXClient").Logger(),
		tsCache:            make(map[string][]string),
		adaptiveRetrySleep: 200 * time.Millisecond,
	}
}

// ResetCaches clears the per-URL timestamp memo and the unavailability
// window. Called at the start of each engine operation.
func (c *CDXClient) ResetCaches() {
	c.mu.Lock()
	c.tsCache = make(map[string][]string)
	c.mu.Unlock()
	c.http.Gate().Reset()
}

// IsUpstreamUnavailableRecent reports whether the index answered 503
// within the hold-off window.
func (c *CDXClient) IsUpstreamUnavailableRecent() bool {
	return c.http.Gate().IsUnavailableRecent()
}

func (c *CDXClient) cdxQuery(ctx context.Context, params url.Values) ([][]string, error) {
	resp, err := c.http.GetWithBackoff(ctx, c.cfg.CDXAPIURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	if !resp.IsOK() {
		if resp.StatusCode == http.StatusServiceUnavailable || c.IsUpstreamUnavailableRecent() {
			return nil, errorwrapper.WrapError(errorwrapper.ErrUpstreamUnavailable, "capture index answered "+strconv.Itoa(resp.StatusCode))
		}
		return nil, errorwrapper.NewHTTPErrorWithURL(resp.StatusCode, "capture index query failed", resp.URL)
	}

	var rows [][]string
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return nil, errorwrapper.WrapError(err, "decoding capture index response")
	}
	return rows, nil
}

// ListSnapshots lists capture timestamps for one exact URL, sorted
// ascending and deduplicated. With successOnly, only HTTP-200 captures
// count.
func (c *CDXClient) ListSnapshots(ctx context.Context, targetURL string, successOnly bool, maxRows int) ([]string, error) {
	params := url.Values{}
	params.Set("url", targetURL)
	params.Set("output", "json")
	params.Set("fl", "timestamp")
	params.Set("limit", strconv.Itoa(maxRows))
	if successOnly {
		params.Set("filter", "statuscode:200")
	}

	rows, err := c.cdxQuery(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var timestamps []string
	for _, row := range rows[1:] {
		if len(row) == 0 || !IsTimestamp(row[0]) {
			continue
		}
		if _, ok := seen[row[0]]; ok {
			continue
		}
		seen[row[0]] = struct{}{}
		timestamps = append(timestamps, row[0])
	}
	sort.Strings(timestamps)
	return timestamps, nil
}

// ListSnapshotsAdaptive retries ListSnapshots down a shrinking row-budget
// ladder, so a listing that times out at full size still has a chance to
// answer with a smaller window.
func (c *CDXClient) ListSnapshotsAdaptive(ctx context.Context, targetURL string, successOnly bool, maxRows int) ([]string, error) {
	halved := maxRows / 2
	if halved < 800 {
		halved = 800
	}
	attempts := []int{maxRows, halved, 800, 500}

	var lastErr error
	for _, rows := range attempts {
		timestamps, err := c.ListSnapshots(ctx, targetURL, successOnly, rows)
		if err == nil {
			return timestamps, nil
		}
		if errorwrapper.IsCancelled(err) {
			return nil, err
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, errorwrapper.WrapError(errorwrapper.ErrCancelled, "snapshot listing aborted")
		case <-time.After(c.adaptiveRetrySleep):
		}
	}
	return nil, errorwrapper.WrapError(lastErr, "snapshot listing exhausted row-budget ladder")
}

// CollectRows scans the capture index for every wildcard in order and
// merges the answers into one deduplicated inventory. The first row seen
// for a dedupe key wins, so earlier wildcards take precedence. A wildcard
// whose query fails is skipped rather than failing the whole collection.
func (c *CDXClient) CollectRows(ctx context.Context, wildcards []string, toTimestamp string, limit int, hooks progress.Hooks, stage progress.Stage) ([]InventoryRow, error) {
	if len(wildcards) == 0 {
		return nil, nil
	}
	perVariant := limit / len(wildcards)
	if perVariant < 300 {
		perVariant = 300
	}

	dedup := make(map[string]struct{})
	var out []InventoryRow

	for idx, wildcard := range wildcards {
		if err := hooks.Checkpoint(wildcard); err != nil {
			return nil, err
		}
		hooks.Emit(progress.Update{
			Stage:       stage,
			Percent:     progress.ScalePercent(idx, len(wildcards), 8, 24),
			Message:     "Scanning archive index",
			CurrentItem: wildcard,
			Counts: progress.Counts{
				VariantsDone:  idx,
				VariantsTotal: len(wildcards),
				Found:         len(out),
			},
		})

		params := url.Values{}
		params.Set("url", wildcard)
		params.Set("output", "json")
		params.Set("fl", "timestamp,original,mimetype,length,urlkey")
		params.Set("filter", "statuscode:200")
		params.Set("collapse", "urlkey")
		params.Set("to", toTimestamp)
		params.Set("limit", strconv.Itoa(perVariant))

		rows, err := c.cdxQuery(ctx, params)
		if err != nil {
			if errorwrapper.IsCancelled(err) {
				return nil, err
			}
			c.logger.Warn().Str("wildcard", wildcard).Err(err).Msg("Wildcard index scan failed, skipping")
			continue
		}

		for _, row := range rows {
			parsed, ok := parseInventoryRow(row)
			if !ok {
				continue
			}
			key := parsed.DedupeKey()
			if _, dup := dedup[key]; dup {
				continue
			}
			dedup[key] = struct{}{}
			out = append(out, parsed)
		}

		hooks.Emit(progress.Update{
			Stage:       stage,
			Percent:     progress.ScalePercent(idx+1, len(wildcards), 8, 24),
			Message:     "Archive index chunk complete",
			CurrentItem: wildcard,
			Counts: progress.Counts{
				VariantsDone:  idx + 1,
				VariantsTotal: len(wildcards),
				Found:         len(out),
			},
		})
	}

	return out, nil
}

// parseInventoryRow converts one tabular CDX row. The header row and
// malformed rows report false.
func parseInventoryRow(row []string) (InventoryRow, bool) {
	if len(row) < 5 || !IsTimestamp(row[0]) {
		return InventoryRow{}, false
	}
	length, _ := strconv.ParseInt(row[3], 10, 64)
	return InventoryRow{
		Timestamp: row[0],
		Original:  row[1],
		MimeType:  row[2],
		Length:    length,
		URLKey:    row[4],
	}, true
}

// TimestampsForURL lists the HTTP-200 capture timestamps of one URL,
// newest first. Answers (including failures) are memoized for the life of
// the client's cache.
func (c *CDXClient) TimestampsForURL(ctx context.Context, targetURL string) []string {
	c.mu.Lock()
	if cached, ok := c.tsCache[targetURL]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	params := url.Values{}
	params.Set("url", targetURL)
	params.Set("output", "json")
	params.Set("fl", "timestamp")
	params.Set("filter", "statuscode:200")

	var timestamps []string
	if rows, err := c.cdxQuery(ctx, params); err == nil && len(rows) > 1 {
		seen := make(map[string]struct{})
		for _, row := range rows[1:] {
			if len(row) == 0 || !IsTimestamp(row[0]) {
				continue
			}
			if _, ok := seen[row[0]]; ok {
				continue
			}
			seen[row[0]] = struct{}{}
			timestamps = append(timestamps, row[0])
		}
		sort.Sort(sort.Reverse(sort.StringSlice(timestamps)))
	}

	c.mu.Lock()
	c.tsCache[targetURL] = timestamps
	c.mu.Unlock()
	return timestamps
}

// ClosestTimestamp asks the availability endpoint for the capture nearest
// to now. Returns "" when the endpoint has no usable answer.
func (c *CDXClient) ClosestTimestamp(ctx context.Context, targetURL string) string {
	params := url.Values{}
	params.Set("url", targetURL)

	resp, err := c.http.GetWithBackoff(ctx, c.cfg.AvailabilityAPIURL+"?"+params.Encode())
	if err != nil || !resp.IsOK() {
		return ""
	}

	var payload struct {
		ArchivedSnapshots struct {
			Closest struct {
				Timestamp string `json:"timestamp"`
			} `json:"closest"`
		} `json:"archived_snapshots"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return ""
	}
	if ts := payload.ArchivedSnapshots.Closest.Timestamp; IsTimestamp(ts) {
		return ts
	}
	return ""
}

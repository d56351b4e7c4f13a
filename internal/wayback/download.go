package wayback

import (
	"context"
	"strings"

	"github.com/aleister1102/waymirror/internal/errorwrapper"
)

// DownloadAtTimestamp fetches the raw (unrewritten) archived payload of a
// URL at one capture timestamp. An empty body counts as missing.
func (c *CDXClient) DownloadAtTimestamp(ctx context.Context, targetURL, timestamp string) (*DownloadResult, error) {
	rawURL := c.cfg.RawBaseURL + "/" + timestamp + "id_/" + targetURL

	resp, err := c.http.GetWithBackoff(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !resp.IsOK() || len(resp.Body) == 0 {
		return nil, errorwrapper.WrapError(errorwrapper.ErrNotFound, "no payload at "+timestamp+" for "+targetURL)
	}

	return &DownloadResult{
		Body:      resp.Body,
		Mime:      normalizeMime(resp.ContentType),
		Timestamp: timestamp,
	}, nil
}

// DownloadWithRepair fetches a URL at the chosen snapshot timestamp and,
// when that capture is missing, walks the URL's own capture history
// looking for the nearest older timestamp that still answers. The result
// records which timestamp actually served the bytes so callers can count
// recovered files.
func (c *CDXClient) DownloadWithRepair(ctx context.Context, targetURL, latestTimestamp string) (*DownloadResult, error) {
	candidates := []string{latestTimestamp}
	for _, ts := range c.TimestampsForURL(ctx, targetURL) {
		if ts != latestTimestamp && ts <= latestTimestamp {
			candidates = append(candidates, ts)
		}
	}

	var lastErr error
	for _, ts := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, errorwrapper.WrapError(errorwrapper.ErrCancelled, "download aborted")
		}
		result, err := c.DownloadAtTimestamp(ctx, targetURL, ts)
		if err == nil {
			return result, nil
		}
		if errorwrapper.IsCancelled(err) {
			return nil, err
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errorwrapper.ErrNotFound
	}
	return nil, errorwrapper.WrapError(lastErr, "no retrievable capture for "+targetURL)
}

// normalizeMime reduces a Content-Type header to its lowercased media
// type.
func normalizeMime(contentType string) string {
	mime := contentType
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = mime[:idx]
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	if mime == "" {
		return "application/octet-stream"
	}
	return mime
}

package archiver

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// HumanSize renders a byte count in the largest sensible unit.
func HumanSize(size int64) string {
	if size <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(size)
	for i, unit := range units {
		if value < 1024 || i == len(units)-1 {
			if unit == "B" {
				return fmt.Sprintf("%d %s", int64(value), unit)
			}
			return fmt.Sprintf("%.2f %s", value, unit)
		}
		value /= 1024
	}
	return fmt.Sprintf("%d B", size)
}

var siteTypeLabels = map[string]string{
	"wordpress": "WordPress",
	"wix":       "Wix",
	"shopify":   "Shopify",
	"php":       "PHP site",
	"spa":       "SPA/React-like",
}

// guessSiteType picks the most frequent platform signal.
func guessSiteType(signals []string) string {
	if len(signals) == 0 {
		return "Static/Unknown"
	}
	counts := make(map[string]int)
	for _, s := range signals {
		counts[s]++
	}

	best := ""
	bestCount := -1
	for signal, count := range counts {
		if count > bestCount || (count == bestCount && signal < best) {
			best = signal
			bestCount = count
		}
	}
	if label, ok := siteTypeLabels[best]; ok {
		return label
	}
	return "Static/Unknown"
}

// topBuckets sorts a histogram descending by count and keeps the largest
// n entries. Equal counts order by key so output is deterministic.
func topBuckets(buckets map[string]int, n int) []BucketCount {
	out := make([]BucketCount, 0, len(buckets))
	for key, count := range buckets {
		out = append(out, BucketCount{Key: key, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// extractWPSlug pulls the path segment following a marker like
// "/wp-content/themes/".
func extractWPSlug(path, marker string) string {
	idx := strings.Index(path, marker)
	if idx < 0 {
		return ""
	}
	tail := path[idx+len(marker):]
	slug := tail
	if slash := strings.Index(tail, "/"); slash >= 0 {
		slug = tail[:slash]
	}
	return strings.TrimSpace(slug)
}

// extractWPJSONRoute pulls the REST route following "/wp-json/".
func extractWPJSONRoute(path string) (string, bool) {
	marker := "/wp-json/"
	idx := strings.Index(path, marker)
	if idx < 0 {
		return "", false
	}
	return strings.Trim(path[idx+len(marker):], "/"), true
}

var blogPostPathRegex = regexp.MustCompile(`/\d{4}/\d{2}/[^/]+/?$`)

// sortedSlice converts a string set to a sorted slice.
func sortedSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// capStrings returns at most n leading items of a slice.
func capStrings(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// unquotePathSegment decodes percent-escapes in a slug, keeping the raw
// text when decoding fails.
func unquotePathSegment(slug string) string {
	if decoded, err := url.PathUnescape(slug); err == nil {
		return decoded
	}
	return slug
}

package inventory

import (
	"sort"
	"strings"

	"github.com/aleister1102/waymirror/internal/urlhandler"
	"github.com/aleister1102/waymirror/internal/wayback"
)

// PrioritizeRows orders inventory URLs by how valuable they are as crawl
// seeds. Pages rank above assets, stylesheets and scripts above media,
// roots and index pages highest, and bulk upload folders lowest. Ties keep
// inventory order; the result is deduplicated.
func PrioritizeRows(rows []wayback.InventoryRow, allowedHosts map[string]bool) []string {
	type scoredURL struct {
		score int
		url   string
	}

	var scored []scoredURL
	for _, row := range rows {
		if !urlhandler.IsAllowedHost(allowedHosts, row.Original) {
			continue
		}
		mime := strings.ToLower(row.MimeType)
		path := urlhandler.PathOf(row.Original)

		score := 0
		if urlhandler.LooksLikePage(path, mime) {
			score += 30
		}
		if strings.Contains(strings.ToLower(path), "/wp-content/uploads/") {
			score -= 10
		}
		if ext := urlhandler.ExtensionOfURL(row.Original); ext == ".css" || ext == ".js" {
			score += 15
		}
		if path == "/" || strings.HasSuffix(path, "/index.html") {
			score += 20
		}
		if len(path) < 35 {
			score += 5
		}
		scored = append(scored, scoredURL{score: score, url: urlhandler.CleanURL(row.Original)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	seen := make(map[string]struct{}, len(scored))
	out := make([]string, 0, len(scored))
	for _, item := range scored {
		if _, dup := seen[item.url]; dup {
			continue
		}
		seen[item.url] = struct{}{}
		out = append(out, item.url)
	}
	return out
}

// ExpectedURLs extracts the cleaned, deduplicated in-scope URLs of an
// inventory, preserving inventory order.
func ExpectedURLs(rows []wayback.InventoryRow, allowedHosts map[string]bool) []string {
	seen := make(map[string]struct{}, len(rows))
	var out []string
	for _, row := range rows {
		if !urlhandler.IsAllowedHost(allowedHosts, row.Original) {
			continue
		}
		cleaned := urlhandler.CleanURL(row.Original)
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		out = append(out, cleaned)
	}
	return out
}

// InventorySize sums the recorded byte lengths of an inventory.
func InventorySize(rows []wayback.InventoryRow) int64 {
	var total int64
	for _, row := range rows {
		if row.Length > 0 {
			total += row.Length
		}
	}
	return total
}

// SeedCount derives how many prioritized inventory URLs to seed the crawl
// with for a given file budget.
func SeedCount(maxFiles int) int {
	count := maxFiles * 2
	if count > 2000 {
		count = 2000
	}
	if count < 50 {
		count = 50
	}
	return count
}

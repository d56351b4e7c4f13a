package archiver

import (
	"context"
	"strings"

	"github.com/aleister1102/waymirror/internal/extractor"
	"github.com/aleister1102/waymirror/internal/inventory"
	"github.com/aleister1102/waymirror/internal/progress"
	"github.com/aleister1102/waymirror/internal/urlhandler"
	"github.com/aleister1102/waymirror/internal/wayback"
)

// Analyze estimates the shape of an archived site at one snapshot: file
// and byte counts, mime/extension/folder histograms, page candidates,
// platform detection, and WordPress structure mined from the inventory.
// The inventory is persisted for later audits; persistence failure only
// logs.
func (e *Engine) Analyze(ctx context.Context, opts AnalyzeOptions, hooks progress.Hooks) (*AnalyzeResult, error) {
	normalized, err := urlhandler.NormalizeTarget(opts.TargetURL)
	if err != nil {
		return nil, err
	}
	e.cdx.ResetCaches()

	cdxLimit := opts.CDXLimit
	if cdxLimit <= 0 {
		cdxLimit = e.cfg.ArchiveConfig.AnalyzeCDXLimit
	}
	if cdxLimit < 1000 {
		cdxLimit = 1000
	}

	merged, err := e.merger.Merge(ctx, normalized, e.cfg.ArchiveConfig.InspectCDXLimit, progress.Hooks{
		WaitIfPaused: hooks.WaitIfPaused,
		ShouldAbort:  hooks.ShouldAbort,
	})
	if err != nil {
		return nil, err
	}

	snapshots := merged.All
	if len(snapshots) == 0 {
		if ts := e.closestFallback(ctx, normalized); ts != "" {
			snapshots = []string{ts}
		} else {
			return nil, e.noSnapshotsError(merged)
		}
	}

	chosen := inventory.ChooseSnapshot(snapshots, strings.TrimSpace(opts.SelectedSnapshot))

	hooks.Emit(progress.Update{Stage: progress.StagePrepare, Percent: 8, Message: "Preparing analysis"})
	rows, err := e.cdx.CollectRows(ctx, merged.Wildcards(), chosen, cdxLimit, hooks, progress.StageInventory)
	if err != nil {
		return nil, err
	}

	e.persistInventory(normalized, chosen, rows)

	mimeBuckets := make(map[string]int)
	extBuckets := make(map[string]int)
	folderCounts := make(map[string]int)
	var signals []string
	pageCandidates := make(map[string]struct{})
	var totalSize int64

	wpThemes := make(map[string]struct{})
	wpPlugins := make(map[string]struct{})
	wpCategories := make(map[string]struct{})
	wpTags := make(map[string]struct{})
	wpPostTypes := make(map[string]struct{})
	wpBlogPosts := make(map[string]struct{})
	wpJSONRoutes := make(map[string]struct{})

	for idx, row := range rows {
		if idx%20 == 0 {
			if err := hooks.Checkpoint("analyze"); err != nil {
				return nil, err
			}
		}
		if idx%50 == 0 {
			hooks.Emit(progress.Update{
				Stage:   progress.StageAnalyze,
				Percent: progress.ScalePercent(idx, len(rows), 25, 96),
				Message: "Analyzing discovered files",
				Counts:  progress.Counts{Processed: idx, Total: len(rows)},
			})
		}

		mime := strings.ToLower(row.MimeType)
		if mime == "" {
			mime = "unknown"
		}
		path := urlhandler.PathOf(row.Original)
		lowerPath := strings.ToLower(path)
		lowerURL := strings.ToLower(row.Original)

		mimeBuckets[mime]++
		extBuckets[urlhandler.ExtensionOfURL(row.Original)]++
		if row.Length > 0 {
			totalSize += row.Length
		}

		if strings.Contains(lowerURL, "/wp-content/") || strings.Contains(lowerURL, "/wp-includes/") || strings.Contains(lowerURL, "/wp-json/") {
			signals = append(signals, "wordpress")
		}
		if strings.Contains(lowerURL, "wixstatic.com") || strings.Contains(lowerURL, "parastorage.com") {
			signals = append(signals, "wix")
		}
		if strings.Contains(lowerURL, "cdn.shopify.com") || strings.Contains(lowerURL, "shopify") {
			signals = append(signals, "shopify")
		}
		if strings.HasSuffix(lowerURL, ".php") {
			signals = append(signals, "php")
		}

		folderCounts[urlhandler.FolderOfPath(path)]++
		if urlhandler.LooksLikePage(path, mime) {
			pageCandidates[path] = struct{}{}
		}

		if theme := extractWPSlug(lowerPath, "/wp-content/themes/"); theme != "" {
			wpThemes[theme] = struct{}{}
		}
		if plugin := extractWPSlug(lowerPath, "/wp-content/plugins/"); plugin != "" {
			wpPlugins[plugin] = struct{}{}
		}
		if category := extractWPSlug(lowerPath, "/category/"); category != "" {
			wpCategories[unquotePathSegment(category)] = struct{}{}
		}
		if tag := extractWPSlug(lowerPath, "/tag/"); tag != "" {
			wpTags[unquotePathSegment(tag)] = struct{}{}
		}
		if route, ok := extractWPJSONRoute(lowerPath); ok && route != "" {
			wpJSONRoutes[route] = struct{}{}
			parts := strings.Split(route, "/")
			if len(parts) >= 3 && parts[0] == "wp" && parts[1] == "v2" {
				wpPostTypes[parts[2]] = struct{}{}
			}
		}
		if blogPostPathRegex.MatchString(lowerPath) {
			wpBlogPosts[path] = struct{}{}
		}
	}

	// Sample the landing page for platform fingerprints the inventory
	// alone cannot show.
	if result, err := e.cdx.DownloadAtTimestamp(ctx, normalized, chosen); err == nil && urlhandler.IsHTMLMime(result.Mime) {
		body := strings.ToLower(extractor.DecodeText(result.Body))
		if strings.Contains(body, "wp-content") || strings.Contains(body, "wordpress") {
			signals = append(signals, "wordpress")
		}
		if strings.Contains(body, "wix") || strings.Contains(body, "wixstatic") {
			signals = append(signals, "wix")
		}
		if strings.Contains(body, "shopify") {
			signals = append(signals, "shopify")
		}
		if strings.Contains(body, `<div id="root"`) || strings.Contains(body, "__next") {
			signals = append(signals, "spa")
		}
	}

	siteType := guessSiteType(signals)
	sitePages := sortedSlice(pageCandidates)

	hooks.Emit(progress.Update{Stage: progress.StageDone, Percent: 100, Message: "Analysis complete"})
	return &AnalyzeResult{
		TargetURL:          normalized,
		SelectedSnapshot:   chosen,
		EstimatedFiles:     len(rows),
		EstimatedSizeBytes: totalSize,
		EstimatedSizeHuman: HumanSize(totalSize),
		SiteType:           siteType,
		TopMimeTypes:       topBuckets(mimeBuckets, 8),
		TopExtensions:      topBuckets(extBuckets, 8),
		TopFolders:         topBuckets(folderCounts, 25),
		SitePages:          capStrings(sitePages, 200),
		VariantsChecked:    merged.Variants,
		WordPress: WordPressInsights{
			Detected:     siteType == "WordPress" || len(wpThemes) > 0 || len(wpPlugins) > 0 || len(wpJSONRoutes) > 0,
			Themes:       sortedSlice(wpThemes),
			Plugins:      sortedSlice(wpPlugins),
			Categories:   sortedSlice(wpCategories),
			Tags:         sortedSlice(wpTags),
			PostTypes:    sortedSlice(wpPostTypes),
			BlogPosts:    capStrings(sortedSlice(wpBlogPosts), 80),
			WPJSONRoutes: capStrings(sortedSlice(wpJSONRoutes), 120),
		},
	}, nil
}

// closestFallback asks the availability endpoint for a usable timestamp
// of the target, then of its root.
func (e *Engine) closestFallback(ctx context.Context, normalizedURL string) string {
	if ts := e.cdx.ClosestTimestamp(ctx, normalizedURL); ts != "" {
		return ts
	}
	if rootURL := urlhandler.RootURL(normalizedURL); rootURL != normalizedURL {
		return e.cdx.ClosestTimestamp(ctx, rootURL)
	}
	return ""
}

// persistInventory stores the collected rows for later reference.
// Failures only log: operation results do not depend on the datastore.
func (e *Engine) persistInventory(normalizedURL, snapshot string, rows []wayback.InventoryRow) {
	hostSlug := urlhandler.SanitizeName(urlhandler.HostOf(normalizedURL))
	if _, err := e.invStore.SaveInventory(hostSlug, snapshot, rows); err != nil {
		e.logger.Warn().
			Str("host", hostSlug).
			Str("snapshot", snapshot).
			Err(err).
			Msg("Inventory persistence failed")
	}
}

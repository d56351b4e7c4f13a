package archiver

import (
	"context"
	"sort"

	"github.com/aleister1102/waymirror/internal/errorwrapper"
	"github.com/aleister1102/waymirror/internal/inventory"
	"github.com/aleister1102/waymirror/internal/progress"
	"github.com/aleister1102/waymirror/internal/urlhandler"
)

// Inspect surveys the capture history of a target: how many captures
// exist across every URL variant, when the first and latest happened, and
// a calendar for browsing them. When the exact target has no captures the
// site root is inspected instead, and when even listings fail the
// availability endpoint supplies a last-resort timestamp.
func (e *Engine) Inspect(ctx context.Context, opts InspectOptions, hooks progress.Hooks) (*InspectResult, error) {
	normalized, err := urlhandler.NormalizeTarget(opts.TargetURL)
	if err != nil {
		return nil, err
	}
	e.cdx.ResetCaches()

	displayLimit := opts.DisplayLimit
	if displayLimit <= 0 {
		displayLimit = e.cfg.ArchiveConfig.DisplayLimit
	}
	if displayLimit < 5 {
		displayLimit = 5
	}
	cdxLimit := opts.CDXLimit
	if cdxLimit <= 0 {
		cdxLimit = e.cfg.ArchiveConfig.InspectCDXLimit
	}
	if cdxLimit < 500 {
		cdxLimit = 500
	}

	merged, err := e.merger.Merge(ctx, normalized, cdxLimit, hooks)
	if err != nil {
		return nil, err
	}

	inspectedScope := normalized
	if len(merged.All) == 0 {
		if rootURL := urlhandler.RootURL(normalized); rootURL != normalized {
			mergedRoot, err := e.merger.Merge(ctx, rootURL, cdxLimit, hooks)
			if err != nil {
				return nil, err
			}
			if len(mergedRoot.All) > 0 {
				merged = mergedRoot
				inspectedScope = rootURL
			}
		}
	}

	allSnapshots := merged.All
	okSnapshots := merged.OK
	fallbackUsed := false

	if len(allSnapshots) == 0 {
		fallback := e.fallbackVariantTimestamps(ctx, normalized)
		if len(fallback) > 0 {
			allSnapshots = fallback
			okSnapshots = fallback
			fallbackUsed = true
		} else {
			return nil, e.noSnapshotsError(merged)
		}
	}

	totalAll := len(allSnapshots)
	totalOK := len(okSnapshots)
	if totalAll < totalOK {
		totalAll = totalOK
	}

	latestOK := allSnapshots[len(allSnapshots)-1]
	if len(okSnapshots) > 0 {
		latestOK = okSnapshots[len(okSnapshots)-1]
	}

	recent := allSnapshots
	if len(recent) > displayLimit {
		recent = recent[len(recent)-displayLimit:]
	}
	reversed := make([]string, len(recent))
	for i, ts := range recent {
		reversed[len(recent)-1-i] = ts
	}

	return &InspectResult{
		TargetURL:        normalized,
		InspectedScope:   inspectedScope,
		TotalSnapshots:   totalAll,
		TotalOKSnapshots: totalOK,
		LatestSnapshot:   allSnapshots[len(allSnapshots)-1],
		LatestOKSnapshot: latestOK,
		FirstSnapshot:    allSnapshots[0],
		Snapshots:        reversed,
		Calendar:         inventory.BuildCalendar(allSnapshots),
		Variants:         merged.Variants,
		DisplayLimit:     displayLimit,
		CDXLimit:         cdxLimit,
		LimitedMode:      true,
		FallbackUsed:     fallbackUsed,
	}, nil
}

// fallbackVariantTimestamps asks the availability endpoint for the
// closest capture of every variant of the target and its root, returning
// the sorted union.
func (e *Engine) fallbackVariantTimestamps(ctx context.Context, normalizedURL string) []string {
	candidates := urlhandler.BuildVariants(normalizedURL)
	if rootURL := urlhandler.RootURL(normalizedURL); rootURL != normalizedURL {
		candidates = append(candidates, urlhandler.BuildVariants(rootURL)...)
	}

	seen := make(map[string]struct{})
	set := make(map[string]struct{})
	for _, candidate := range candidates {
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		if ts := e.cdx.ClosestTimestamp(ctx, candidate); ts != "" {
			set[ts] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for ts := range set {
		out = append(out, ts)
	}
	sort.Strings(out)
	return out
}

// noSnapshotsError classifies an empty capture history: an active
// unavailability window or a total listing failure blames the upstream,
// anything else means the target genuinely has no captures.
func (e *Engine) noSnapshotsError(merged *inventory.MergedSnapshots) error {
	if e.cdx.IsUpstreamUnavailableRecent() {
		return errorwrapper.WrapError(errorwrapper.ErrUpstreamUnavailable, "capture index is temporarily unavailable, retry in a few minutes")
	}
	if merged != nil && merged.AllVariantsFailed() {
		return errorwrapper.WrapError(errorwrapper.ErrUpstreamUnavailable, "capture index did not answer for any URL variant")
	}
	return errorwrapper.WrapError(errorwrapper.ErrNotFound, "no archived snapshots found for this URL")
}

package inventory

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aleister1102/waymirror/internal/errorwrapper"
	"github.com/aleister1102/waymirror/internal/progress"
	"github.com/aleister1102/waymirror/internal/urlhandler"
	"github.com/aleister1102/waymirror/internal/wayback"
)

// VariantCaptures summarizes the capture counts of one URL variant.
type VariantCaptures struct {
	URL        string `json:"url"`
	Captures   int    `json:"captures"`
	OKCaptures int    `json:"ok_captures"`
}

// MergedSnapshots is the union of capture timestamps across every URL
// variant of a target.
type MergedSnapshots struct {
	All            []string
	OK             []string
	Variants       []VariantCaptures
	FailedVariants int
	VariantCount   int
	FallbackUsed   bool
}

// AllowedHosts builds the host set downloads are confined to.
func (m *MergedSnapshots) AllowedHosts() map[string]bool {
	hosts := make(map[string]bool, len(m.Variants))
	for _, v := range m.Variants {
		if host := urlhandler.HostOf(v.URL); host != "" {
			hosts[host] = true
		}
	}
	return hosts
}

// Wildcards returns the host-wide index query URL of every variant, in
// variant order.
func (m *MergedSnapshots) Wildcards() []string {
	out := make([]string, 0, len(m.Variants))
	for _, v := range m.Variants {
		out = append(out, urlhandler.WildcardURL(v.URL))
	}
	return out
}

// AllVariantsFailed reports whether no variant answered at all.
func (m *MergedSnapshots) AllVariantsFailed() bool {
	return m.VariantCount > 0 && m.FailedVariants >= m.VariantCount
}

// Merger combines per-variant snapshot listings into one target-wide view.
type Merger struct {
	cdx    *wayback.CDXClient
	logger zerolog.Logger
}

// NewMerger creates a snapshot merger.
func NewMerger(cdx *wayback.CDXClient, logger zerolog.Logger) *Merger {
	return &Merger{
		cdx:    cdx,
		logger: logger.With().Str("component", "SnapshotMerger").Logger(),
	}
}

// Merge expands the normalized target into its URL variants and unions
// their capture timestamps. A variant whose listings both fail counts as
// failed but never aborts the merge; the sets stay sorted ascending and
// the OK set is always a subset of the full set.
func (m *Merger) Merge(ctx context.Context, normalizedURL string, cdxLimit int, hooks progress.Hooks) (*MergedSnapshots, error) {
	variants := urlhandler.BuildVariants(normalizedURL)
	if cdxLimit < 500 {
		cdxLimit = 500
	}

	allSet := make(map[string]struct{})
	okSet := make(map[string]struct{})
	merged := &MergedSnapshots{VariantCount: len(variants)}

	hooks.Emit(progress.Update{
		Stage:   progress.StagePrepare,
		Percent: 2,
		Message: "Preparing URL variants",
		Counts:  progress.Counts{VariantsTotal: len(variants)},
	})

	for idx, variant := range variants {
		if err := hooks.Checkpoint(variant); err != nil {
			return nil, err
		}
		hooks.Emit(progress.Update{
			Stage:       progress.StageVariant,
			Percent:     progress.ScalePercent(idx, len(variants), 0, 95),
			Message:     "Checking capture list for variant",
			CurrentItem: variant,
			Counts: progress.Counts{
				VariantsDone:  idx,
				VariantsTotal: len(variants),
				Total:         len(allSet),
				Found:         len(okSet),
			},
		})

		variantFailed := false

		allList, err := m.cdx.ListSnapshotsAdaptive(ctx, variant, false, cdxLimit)
		if err != nil {
			if errorwrapper.IsCancelled(err) {
				return nil, err
			}
			m.logger.Warn().Str("variant", variant).Err(err).Msg("Full capture listing failed")
			variantFailed = true
		}

		okList, err := m.cdx.ListSnapshotsAdaptive(ctx, variant, true, cdxLimit)
		if err != nil {
			if errorwrapper.IsCancelled(err) {
				return nil, err
			}
			m.logger.Warn().Str("variant", variant).Err(err).Msg("OK capture listing failed")
			variantFailed = true
		}

		if variantFailed {
			merged.FailedVariants++
		}
		for _, ts := range allList {
			allSet[ts] = struct{}{}
		}
		for _, ts := range okList {
			okSet[ts] = struct{}{}
		}
		merged.Variants = append(merged.Variants, VariantCaptures{
			URL:        variant,
			Captures:   len(allList),
			OKCaptures: len(okList),
		})

		hooks.Emit(progress.Update{
			Stage:       progress.StageVariant,
			Percent:     progress.ScalePercent(idx+1, len(variants), 0, 96),
			Message:     "Variant checked",
			CurrentItem: variant,
			Counts: progress.Counts{
				VariantsDone:  idx + 1,
				VariantsTotal: len(variants),
				Total:         len(allSet),
				Found:         len(okSet),
			},
		})
	}

	// OK captures are HTTP-200 captures, so the full set must contain them.
	for ts := range okSet {
		allSet[ts] = struct{}{}
	}

	merged.All = sortedKeys(allSet)
	merged.OK = sortedKeys(okSet)

	hooks.Emit(progress.Update{
		Stage:   progress.StageDone,
		Percent: 100,
		Message: "Archive inspection complete",
		Counts: progress.Counts{
			VariantsDone:  len(variants),
			VariantsTotal: len(variants),
			Total:         len(merged.All),
			Found:         len(merged.OK),
		},
	})
	return merged, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ChooseSnapshot picks the working snapshot: the requested one when it
// exists in the candidate set, otherwise the newest candidate.
func ChooseSnapshot(candidates []string, requested string) string {
	if len(candidates) == 0 {
		return ""
	}
	if requested != "" {
		for _, ts := range candidates {
			if ts == requested {
				return requested
			}
		}
	}
	return candidates[len(candidates)-1]
}

package archiver

import (
	"context"
	"sort"
	"strings"

	"github.com/aleister1102/waymirror/internal/inventory"
	"github.com/aleister1102/waymirror/internal/progress"
	"github.com/aleister1102/waymirror/internal/urlhandler"
)

// Audit diffs an archive copy against the capture index at its snapshot:
// which expected resources the copy has, which are missing, and which
// downloaded files the index no longer expects.
func (e *Engine) Audit(ctx context.Context, opts AuditOptions, hooks progress.Hooks) (*AuditResult, error) {
	normalized, err := urlhandler.NormalizeTarget(opts.TargetURL)
	if err != nil {
		return nil, err
	}
	e.cdx.ResetCaches()

	merged, err := e.merger.Merge(ctx, normalized, e.cfg.ArchiveConfig.InspectCDXLimit, progress.Hooks{
		WaitIfPaused: hooks.WaitIfPaused,
		ShouldAbort:  hooks.ShouldAbort,
	})
	if err != nil {
		return nil, err
	}
	if len(merged.OK) == 0 {
		return nil, e.noSnapshotsError(merged)
	}

	chosen := inventory.ChooseSnapshot(merged.OK, strings.TrimSpace(opts.SelectedSnapshot))
	hostSlug := urlhandler.SanitizeName(urlhandler.HostOf(normalized))
	outputDir := e.store.ResolveOutputDir(opts.OutputRoot, hostSlug, chosen)

	m, err := e.store.Load(outputDir)
	if err != nil {
		return nil, err
	}

	downloaded := make(map[string]struct{})
	for _, record := range m.Files {
		if record.URL == "" {
			continue
		}
		downloaded[urlhandler.CleanURL(record.URL)] = struct{}{}
	}

	allowedHosts := merged.AllowedHosts()
	hooks.Emit(progress.Update{Stage: progress.StagePrepare, Percent: 10, Message: "Loading audit inventory"})
	rows, err := e.cdx.CollectRows(ctx, merged.Wildcards(), chosen, e.cfg.ArchiveConfig.AuditCDXLimit, hooks, progress.StageInventory)
	if err != nil {
		return nil, err
	}

	expected := make(map[string]struct{})
	for _, u := range inventory.ExpectedURLs(rows, allowedHosts) {
		expected[u] = struct{}{}
	}

	var haveURLs, missingURLs, extraURLs []string
	for u := range expected {
		if _, ok := downloaded[u]; ok {
			haveURLs = append(haveURLs, u)
		} else {
			missingURLs = append(missingURLs, u)
		}
	}
	for u := range downloaded {
		if _, ok := expected[u]; !ok {
			extraURLs = append(extraURLs, u)
		}
	}
	sort.Strings(haveURLs)
	sort.Strings(missingURLs)
	sort.Strings(extraURLs)

	coverage := 0.0
	if len(expected) > 0 {
		coverage = roundPercent(float64(len(haveURLs)) / float64(len(expected)) * 100)
	}

	var downloadedBytes int64
	for idx, record := range m.Files {
		if idx%20 == 0 {
			if err := hooks.Checkpoint("audit"); err != nil {
				return nil, err
			}
		}
		if record.LocalPath == "" {
			continue
		}
		downloadedBytes += e.store.ResourceSize(outputDir, record.LocalPath)
	}

	hooks.Emit(progress.Update{Stage: progress.StageDone, Percent: 100, Message: "Check complete"})
	return &AuditResult{
		TargetURL:           normalized,
		Snapshot:            chosen,
		OutputDir:           outputDir,
		ExpectedCount:       len(expected),
		DownloadedCount:     len(downloaded),
		HaveCount:           len(haveURLs),
		MissingCount:        len(missingURLs),
		ExtraCount:          len(extraURLs),
		CoveragePercent:     coverage,
		DownloadedSizeBytes: downloadedBytes,
		DownloadedSizeHuman: HumanSize(downloadedBytes),
		HaveURLs:            capStrings(haveURLs, 300),
		MissingURLs:         capStrings(missingURLs, 500),
		ExtraURLs:           capStrings(extraURLs, 200),
	}, nil
}

package archiver

import (
	"context"
	"strings"
	"time"

	"github.com/aleister1102/waymirror/internal/errorwrapper"
	"github.com/aleister1102/waymirror/internal/inventory"
	"github.com/aleister1102/waymirror/internal/manifest"
	"github.com/aleister1102/waymirror/internal/progress"
	"github.com/aleister1102/waymirror/internal/urlhandler"
)

// RepairMissing downloads resources the capture index expects but the
// archive copy lacks, up to a per-pass limit, and folds the additions
// into the manifest. Repeated passes converge: a repaired file never
// counts as missing again.
func (e *Engine) RepairMissing(ctx context.Context, opts RepairOptions, hooks progress.Hooks) (*RepairResult, error) {
	started := time.Now()

	normalized, err := urlhandler.NormalizeTarget(opts.TargetURL)
	if err != nil {
		return nil, err
	}
	e.cdx.ResetCaches()

	limit := opts.Limit
	if limit <= 0 {
		limit = e.cfg.ArchiveConfig.RepairLimit
	}

	variantHooks := progress.Hooks{
		OnProgress: func(u progress.Update) {
			hooks.Emit(progress.Update{
				Stage:       progress.StageVariant,
				Percent:     progress.ScalePercent(u.Percent, 100, 2, 25),
				Message:     "Checking archive variants for missing recovery",
				CurrentItem: u.CurrentItem,
				Counts: progress.Counts{
					Total:         limit,
					VariantsDone:  u.Counts.VariantsDone,
					VariantsTotal: u.Counts.VariantsTotal,
					TotalExpected: u.Counts.Total,
				},
			})
		},
		WaitIfPaused: hooks.WaitIfPaused,
		ShouldAbort:  hooks.ShouldAbort,
	}

	merged, err := e.merger.Merge(ctx, normalized, e.cfg.ArchiveConfig.InspectCDXLimit, variantHooks)
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

	// Preserve manifest order; additions go to the tail.
	recordIndex := make(map[string]int, len(m.Files))
	for idx, record := range m.Files {
		if record.URL == "" {
			continue
		}
		recordIndex[urlhandler.CleanURL(record.URL)] = idx
	}

	hooks.Emit(progress.Update{
		Stage:   progress.StagePrepare,
		Percent: 30,
		Message: "Loading manifest and downloaded files list",
		Counts:  progress.Counts{Total: limit, VariantsDone: len(merged.Variants), VariantsTotal: len(merged.Variants)},
	})

	allowedHosts := merged.AllowedHosts()
	hooks.Emit(progress.Update{
		Stage:   progress.StageInventory,
		Percent: 42,
		Message: "Scanning archive index for expected files",
		Counts:  progress.Counts{Total: limit},
	})
	rows, err := e.cdx.CollectRows(ctx, merged.Wildcards(), chosen, e.cfg.ArchiveConfig.RepairCDXLimit, hooks, progress.StageInventory)
	if err != nil {
		return nil, err
	}

	expectedURLs := inventory.ExpectedURLs(rows, allowedHosts)
	var missingURLs []string
	for _, u := range expectedURLs {
		if _, ok := recordIndex[u]; !ok {
			missingURLs = append(missingURLs, u)
		}
	}
	targets := missingURLs
	if len(targets) > limit {
		targets = targets[:limit]
	}

	hooks.Emit(progress.Update{
		Stage:   progress.StagePlan,
		Percent: 55,
		Message: "Missing file plan ready",
		Counts: progress.Counts{
			Total:         len(targets),
			TotalExpected: len(expectedURLs),
			MissingFound:  len(missingURLs),
		},
	})

	added := 0
	failed := 0
	recovered := 0
	var bytesAdded int64

	for idx, target := range targets {
		if err := hooks.Checkpoint(target); err != nil {
			return nil, err
		}
		hooks.Emit(progress.Update{
			Stage:       progress.StageDownload,
			Percent:     progress.ScalePercent(idx+1, len(targets), 55, 98),
			Message:     "Downloading missing files",
			CurrentItem: target,
			Counts: progress.Counts{
				Attempted:       idx,
				Total:           len(targets),
				Added:           added,
				Failed:          failed,
				BytesDownloaded: bytesAdded,
				TotalExpected:   len(expectedURLs),
				MissingFound:    len(missingURLs),
			},
		})

		result, err := e.cdx.DownloadWithRepair(ctx, target, chosen)
		if err != nil {
			if errorwrapper.IsCancelled(err) {
				return nil, err
			}
			failed++
			if !opts.SkipErrors {
				return nil, err
			}
			continue
		}

		localRel, err := e.store.WriteResource(outputDir, target, result.Body, result.Mime)
		if err != nil {
			failed++
			if !opts.SkipErrors {
				return nil, err
			}
			continue
		}

		record := manifest.FileRecord{
			URL:       target,
			LocalPath: localRel,
			Mime:      result.Mime,
			Timestamp: result.Timestamp,
		}
		if pos, ok := recordIndex[target]; ok {
			m.Files[pos] = record
		} else {
			recordIndex[target] = len(m.Files)
			m.Files = append(m.Files, record)
		}

		added++
		bytesAdded += int64(len(result.Body))
		if result.Timestamp != chosen {
			recovered++
		}
	}

	seconds := roundSeconds(time.Since(started))
	m.FilesDownloaded = len(m.Files)
	m.FilesRecovered += recovered
	m.LastMissingRepair = &manifest.RepairSummary{
		Snapshot:   chosen,
		Attempted:  len(targets),
		Added:      added,
		Failed:     failed,
		Recovered:  recovered,
		BytesAdded: bytesAdded,
		Seconds:    seconds,
	}
	if err := e.store.Save(outputDir, m); err != nil {
		return nil, err
	}

	hooks.Emit(progress.Update{
		Stage:   progress.StageDone,
		Percent: 100,
		Message: "Missing files download completed",
		Counts: progress.Counts{
			Attempted:     len(targets),
			Total:         len(targets),
			Added:         added,
			Failed:        failed,
			TotalExpected: len(expectedURLs),
			MissingFound:  len(missingURLs),
		},
	})

	return &RepairResult{
		Snapshot:        chosen,
		OutputDir:       outputDir,
		Attempted:       len(targets),
		Added:           added,
		Failed:          failed,
		Recovered:       recovered,
		BytesAdded:      bytesAdded,
		BytesAddedHuman: HumanSize(bytesAdded),
		Seconds:         seconds,
	}, nil
}

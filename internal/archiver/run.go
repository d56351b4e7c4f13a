package archiver

import (
	"container/list"
	"context"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/aleister1102/waymirror/internal/errorwrapper"
	"github.com/aleister1102/waymirror/internal/inventory"
	"github.com/aleister1102/waymirror/internal/manifest"
	"github.com/aleister1102/waymirror/internal/progress"
	"github.com/aleister1102/waymirror/internal/urlhandler"
	"github.com/aleister1102/waymirror/internal/wayback"
)

// Run reconstructs an offline copy of the target at its chosen snapshot:
// crawl outward from the landing page while topping up from the
// prioritized inventory, save every payload under its deterministic local
// path, rewrite internal references to relative links, and record the
// result in a manifest.
func (e *Engine) Run(ctx context.Context, opts RunOptions, hooks progress.Hooks) (*manifest.Manifest, error) {
	started := time.Now()

	normalized, err := urlhandler.NormalizeTarget(opts.TargetURL)
	if err != nil {
		return nil, err
	}
	e.cdx.ResetCaches()

	maxFiles := opts.MaxFiles
	if maxFiles <= 0 {
		maxFiles = e.cfg.ArchiveConfig.MaxFiles
	}
	outputRoot := opts.OutputRoot
	if outputRoot == "" {
		outputRoot = e.cfg.ArchiveConfig.OutputRoot
	}

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

	latest := merged.OK[len(merged.OK)-1]
	if wayback.IsTimestamp(opts.PreferredSnapshot) {
		latest = opts.PreferredSnapshot
	}

	allowedHosts := merged.AllowedHosts()
	inventoryLimit := maxFiles * 8
	if inventoryLimit < 5000 {
		inventoryLimit = 5000
	}
	rows, err := e.cdx.CollectRows(ctx, merged.Wildcards(), latest, inventoryLimit, hooks, progress.StageInventory)
	if err != nil {
		return nil, err
	}
	e.persistInventory(normalized, latest, rows)

	expectedURLs := inventory.ExpectedURLs(rows, allowedHosts)
	prioritized := inventory.PrioritizeRows(rows, allowedHosts)
	inventorySize := inventory.InventorySize(rows)

	hostSlug := urlhandler.SanitizeName(urlhandler.HostOf(normalized))
	outputDir := filepath.Join(outputRoot, hostSlug+"_"+latest)

	seeds := append([]string{normalized}, prioritized[:min(len(prioritized), inventory.SeedCount(maxFiles))]...)
	queue := list.New()
	queued := make(map[string]struct{})
	for _, seed := range seeds {
		cleaned := urlhandler.CleanURL(seed)
		if _, dup := queued[cleaned]; dup {
			continue
		}
		queued[cleaned] = struct{}{}
		queue.PushBack(cleaned)
	}

	seen := make(map[string]struct{})
	files := make(map[string]manifest.FileRecord)
	var fileOrder []string
	var missing []string
	var totalBytes int64

	hooks.Emit(progress.Update{
		Stage:       progress.StagePrepare,
		Percent:     1,
		Message:     "Starting download...",
		CurrentItem: normalized,
		Counts:      progress.Counts{MaxFiles: maxFiles, QueueSize: queue.Len()},
	})

	recoveredCount := func() int {
		n := 0
		for _, record := range files {
			if record.Timestamp != latest {
				n++
			}
		}
		return n
	}

	for queue.Len() > 0 && len(files) < maxFiles {
		front := queue.Front()
		queue.Remove(front)
		currentURL := urlhandler.CleanURL(front.Value.(string))

		if err := hooks.Checkpoint(currentURL); err != nil {
			return nil, err
		}
		if _, dup := seen[currentURL]; dup {
			continue
		}
		seen[currentURL] = struct{}{}

		hooks.Emit(progress.Update{
			Stage:       progress.StageDownload,
			Percent:     progress.ScalePercent(len(files), maxFiles, 0, 96),
			Message:     "Downloading archived files",
			CurrentItem: currentURL,
			Counts: progress.Counts{
				FilesDownloaded: len(files),
				MaxFiles:        maxFiles,
				BytesDownloaded: totalBytes,
				RecoveredFiles:  recoveredCount(),
				QueueSize:       queue.Len(),
			},
		})

		result, err := e.cdx.DownloadWithRepair(ctx, currentURL, latest)
		if err != nil {
			if errorwrapper.IsCancelled(err) {
				return nil, err
			}
			missing = append(missing, currentURL)
			continue
		}

		localRel, err := e.store.WriteResource(outputDir, currentURL, result.Body, result.Mime)
		if err != nil {
			return nil, err
		}
		totalBytes += int64(len(result.Body))
		files[currentURL] = manifest.FileRecord{
			URL:       currentURL,
			LocalPath: localRel,
			Mime:      result.Mime,
			Timestamp: result.Timestamp,
		}
		fileOrder = append(fileOrder, currentURL)

		if e.limiter.ShouldThrottle() {
			continue
		}
		for _, link := range e.extractor.DiscoverLinks(currentURL, result.Body, result.Mime) {
			if len(files)+queue.Len() >= maxFiles {
				break
			}
			if !urlhandler.IsAllowedHost(allowedHosts, link) {
				continue
			}
			if _, dup := seen[link]; dup {
				continue
			}
			if _, dup := queued[link]; dup {
				continue
			}
			queued[link] = struct{}{}
			queue.PushBack(link)
		}
	}

	// Crawl alone rarely fills the budget; top up from the prioritized
	// inventory.
	if len(files) < maxFiles {
		for _, candidate := range prioritized {
			if len(files) >= maxFiles {
				break
			}
			candidate = urlhandler.CleanURL(candidate)
			if _, dup := seen[candidate]; dup {
				continue
			}
			seen[candidate] = struct{}{}

			if err := hooks.Checkpoint(candidate); err != nil {
				return nil, err
			}
			if e.limiter.ShouldThrottle() {
				break
			}

			result, err := e.cdx.DownloadWithRepair(ctx, candidate, latest)
			if err != nil {
				if errorwrapper.IsCancelled(err) {
					return nil, err
				}
				missing = append(missing, candidate)
				continue
			}

			localRel, err := e.store.WriteResource(outputDir, candidate, result.Body, result.Mime)
			if err != nil {
				return nil, err
			}
			totalBytes += int64(len(result.Body))
			files[candidate] = manifest.FileRecord{
				URL:       candidate,
				LocalPath: localRel,
				Mime:      result.Mime,
				Timestamp: result.Timestamp,
			}
			fileOrder = append(fileOrder, candidate)
		}
	}

	hooks.Emit(progress.Update{
		Stage:   progress.StageRewrite,
		Percent: 97,
		Message: "Rewriting links for offline use",
		Counts: progress.Counts{
			FilesDownloaded: len(files),
			MaxFiles:        maxFiles,
			BytesDownloaded: totalBytes,
			RecoveredFiles:  recoveredCount(),
		},
	})

	urlToLocal := make(map[string]string, len(files))
	for u, record := range files {
		urlToLocal[u] = record.LocalPath
	}
	for _, u := range fileOrder {
		if err := hooks.Checkpoint(u); err != nil {
			return nil, err
		}
		record := files[u]
		if err := e.rewriter.RewriteFile(outputDir, record.LocalPath, u, record.Mime, urlToLocal); err != nil {
			e.logger.Warn().Str("url", u).Err(err).Msg("Offline rewrite failed, file kept as downloaded")
		}
	}

	expectedSet := make(map[string]struct{}, len(expectedURLs))
	for _, u := range expectedURLs {
		expectedSet[u] = struct{}{}
	}
	covered := 0
	for u := range files {
		if _, ok := expectedSet[u]; ok {
			covered++
		}
	}
	coverage := 0.0
	if len(expectedSet) > 0 {
		coverage = roundPercent(float64(covered) / float64(len(expectedSet)) * 100)
	}
	var missingExpected []string
	for u := range expectedSet {
		if _, ok := files[u]; !ok {
			missingExpected = append(missingExpected, u)
		}
	}
	sort.Strings(missingExpected)
	missingExpected = capStrings(missingExpected, 300)

	orderedFiles := make([]manifest.FileRecord, 0, len(fileOrder))
	for _, u := range fileOrder {
		orderedFiles = append(orderedFiles, files[u])
	}

	m := &manifest.Manifest{
		TargetURL:               normalized,
		LatestSnapshot:          latest,
		TotalSnapshots:          len(merged.OK),
		OutputDir:               outputDir,
		FilesDownloaded:         len(files),
		FilesRecovered:          recoveredCount(),
		ExpectedSampleFiles:     len(expectedSet),
		ExpectedSampleSizeBytes: inventorySize,
		CoveragePercent:         coverage,
		MissingCount:            len(missing),
		MissingURLs:             missing,
		MissingExpectedCount:    len(missingExpected),
		MissingExpectedURLs:     missingExpected,
		Seconds:                 roundSeconds(time.Since(started)),
		Files:                   orderedFiles,
	}
	if err := e.store.Save(outputDir, m); err != nil {
		return nil, err
	}

	hooks.Emit(progress.Update{
		Stage:   progress.StageDone,
		Percent: 100,
		Message: "Download finished",
		Counts: progress.Counts{
			FilesDownloaded: len(files),
			MaxFiles:        maxFiles,
			BytesDownloaded: totalBytes,
			RecoveredFiles:  m.FilesRecovered,
		},
	})
	return m, nil
}

func roundPercent(value float64) float64 {
	return math.Round(value*100) / 100
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}


package progress

import "github.com/aleister1102/waymirror/internal/errorwrapper"

// Stage identifies which phase of an operation an update belongs to.
type Stage string

const (
	StagePrepare   Stage = "PREPARE"
	StageVariant   Stage = "VARIANT"
	StageInventory Stage = "INVENTORY"
	StageAnalyze   Stage = "ANALYZE"
	StagePlan      Stage = "PLAN"
	StageDownload  Stage = "DOWNLOAD"
	StageRewrite   Stage = "REWRITE"
	StageDone      Stage = "DONE"
)

// Counts carries the per-stage counters. All operations populate the same
// shape; fields a stage does not use stay zero.
type Counts struct {
	Processed       int   `json:"processed"`
	Total           int   `json:"total"`
	VariantsDone    int   `json:"variants_done"`
	VariantsTotal   int   `json:"variants_total"`
	FilesDownloaded int   `json:"files_downloaded"`
	MaxFiles        int   `json:"max_files"`
	QueueSize       int   `json:"queue_size"`
	RecoveredFiles  int   `json:"recovered_files"`
	Attempted       int   `json:"attempted"`
	Added           int   `json:"added"`
	Failed          int   `json:"failed"`
	Found           int   `json:"found"`
	MissingFound    int   `json:"missing_found"`
	TotalExpected   int   `json:"total_expected"`
	BytesDownloaded int64 `json:"bytes_downloaded"`
}

// Update is one structured progress snapshot handed to the caller's callback.
type Update struct {
	Stage       Stage  `json:"stage"`
	Percent     int    `json:"percent"`
	Message     string `json:"message"`
	CurrentItem string `json:"current_item"`
	LastError   string `json:"last_error,omitempty"`
	Counts      Counts `json:"counts"`
}

// Callback receives progress updates. Implementations must be fast and must
// never block the operation.
type Callback func(Update)

// PauseFunc blocks the calling goroutine while the caller holds the
// operation paused. The current item is passed for display purposes.
type PauseFunc func(item string)

// AbortFunc reports whether the caller requested cancellation.
type AbortFunc func() bool

// Hooks bundles the external collaborators injected into every operation.
// A zero Hooks value is valid: all checks become no-ops.
type Hooks struct {
	OnProgress   Callback
	WaitIfPaused PauseFunc
	ShouldAbort  AbortFunc
}

// Emit sends one update if a callback is attached.
func (h Hooks) Emit(u Update) {
	if h.OnProgress == nil {
		return
	}
	if u.Percent < 0 {
		u.Percent = 0
	}
	if u.Percent > 100 {
		u.Percent = 100
	}
	h.OnProgress(u)
}

// Pause blocks until the caller unpauses, if a pause hook is attached.
func (h Hooks) Pause(item string) {
	if h.WaitIfPaused != nil {
		h.WaitIfPaused(item)
	}
}

// Checkpoint pauses if requested and returns ErrCancelled when the abort
// hook has tripped. Loops call this at bounded intervals.
func (h Hooks) Checkpoint(item string) error {
	if h.ShouldAbort != nil && h.ShouldAbort() {
		return errorwrapper.ErrCancelled
	}
	h.Pause(item)
	if h.ShouldAbort != nil && h.ShouldAbort() {
		return errorwrapper.ErrCancelled
	}
	return nil
}

// ScalePercent maps done/total onto [floor, ceil].
func ScalePercent(done, total, floor, ceil int) int {
	if total <= 0 {
		return floor
	}
	p := floor + int(float64(done)/float64(total)*float64(ceil-floor))
	if p > ceil {
		return ceil
	}
	if p < floor {
		return floor
	}
	return p
}

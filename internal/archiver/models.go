package archiver

import (
	"github.com/aleister1102/waymirror/internal/inventory"
)

// InspectResult summarizes the capture history of a target.
type InspectResult struct {
	TargetURL        string                      `json:"target_url"`
	InspectedScope   string                      `json:"inspected_scope"`
	TotalSnapshots   int                         `json:"total_snapshots"`
	TotalOKSnapshots int                         `json:"total_ok_snapshots"`
	LatestSnapshot   string                      `json:"latest_snapshot"`
	LatestOKSnapshot string                      `json:"latest_ok_snapshot"`
	FirstSnapshot    string                      `json:"first_snapshot"`
	Snapshots        []string                    `json:"snapshots"`
	Calendar         []inventory.CalendarYear    `json:"calendar"`
	Variants         []inventory.VariantCaptures `json:"variants"`
	DisplayLimit     int                         `json:"display_limit"`
	CDXLimit         int                         `json:"cdx_limit"`
	LimitedMode      bool                        `json:"limited_mode"`
	FallbackUsed     bool                        `json:"fallback_used"`
}

// BucketCount is one histogram bucket of the analysis.
type BucketCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// WordPressInsights collects the WordPress structure visible in a capture
// inventory.
type WordPressInsights struct {
	Detected     bool     `json:"detected"`
	Themes       []string `json:"themes"`
	Plugins      []string `json:"plugins"`
	Categories   []string `json:"categories"`
	Tags         []string `json:"tags"`
	PostTypes    []string `json:"post_types"`
	BlogPosts    []string `json:"blog_posts"`
	WPJSONRoutes []string `json:"wp_json_routes"`
}

// AnalyzeResult estimates the size and shape of an archived site at one
// snapshot.
type AnalyzeResult struct {
	TargetURL          string                      `json:"target_url"`
	SelectedSnapshot   string                      `json:"selected_snapshot"`
	EstimatedFiles     int                         `json:"estimated_files"`
	EstimatedSizeBytes int64                       `json:"estimated_size_bytes"`
	EstimatedSizeHuman string                      `json:"estimated_size_human"`
	SiteType           string                      `json:"site_type"`
	TopMimeTypes       []BucketCount               `json:"top_mime_types"`
	TopExtensions      []BucketCount               `json:"top_extensions"`
	TopFolders         []BucketCount               `json:"top_folders"`
	SitePages          []string                    `json:"site_pages"`
	VariantsChecked    []inventory.VariantCaptures `json:"variants_checked"`
	WordPress          WordPressInsights           `json:"wordpress"`
}

// AuditResult compares an archive copy against the capture index.
type AuditResult struct {
	TargetURL           string   `json:"target_url"`
	Snapshot            string   `json:"snapshot"`
	OutputDir           string   `json:"output_dir"`
	ExpectedCount       int      `json:"expected_count"`
	DownloadedCount     int      `json:"downloaded_count"`
	HaveCount           int      `json:"have_count"`
	MissingCount        int      `json:"missing_count"`
	ExtraCount          int      `json:"extra_count"`
	CoveragePercent     float64  `json:"coverage_percent"`
	DownloadedSizeBytes int64    `json:"downloaded_size_bytes"`
	DownloadedSizeHuman string   `json:"downloaded_size_human"`
	HaveURLs            []string `json:"have_urls"`
	MissingURLs         []string `json:"missing_urls"`
	ExtraURLs           []string `json:"extra_urls"`
}

// RepairResult summarizes one missing-file repair pass.
type RepairResult struct {
	Snapshot        string  `json:"snapshot"`
	OutputDir       string  `json:"output_dir"`
	Attempted       int     `json:"attempted"`
	Added           int     `json:"added"`
	Failed          int     `json:"failed"`
	Recovered       int     `json:"recovered"`
	BytesAdded      int64   `json:"bytes_added"`
	BytesAddedHuman string  `json:"bytes_added_human"`
	Seconds         float64 `json:"seconds"`
}

// RunOptions configures a full archive run.
type RunOptions struct {
	TargetURL         string
	OutputRoot        string
	MaxFiles          int
	PreferredSnapshot string
}

// InspectOptions configures an inspection.
type InspectOptions struct {
	TargetURL    string
	DisplayLimit int
	CDXLimit     int
}

// AnalyzeOptions configures an analysis.
type AnalyzeOptions struct {
	TargetURL        string
	SelectedSnapshot string
	CDXLimit         int
}

// AuditOptions configures an audit.
type AuditOptions struct {
	TargetURL        string
	OutputRoot       string
	SelectedSnapshot string
}

// RepairOptions configures a missing-file repair pass.
type RepairOptions struct {
	TargetURL        string
	OutputRoot       string
	SelectedSnapshot string
	Limit            int
	SkipErrors       bool
}

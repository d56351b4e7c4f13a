package manifest

// FileRecord describes one downloaded resource inside an archive copy.
type FileRecord struct {
	URL       string `json:"url"`
	LocalPath string `json:"local_path"`
	Mime      string `json:"mime"`
	Timestamp string `json:"timestamp"`
}

// RepairSummary records the outcome of the most recent missing-file
// repair pass.
type RepairSummary struct {
	Snapshot   string  `json:"snapshot"`
	Attempted  int     `json:"attempted"`
	Added      int     `json:"added"`
	Failed     int     `json:"failed"`
	Recovered  int     `json:"recovered"`
	BytesAdded int64   `json:"bytes_added"`
	Seconds    float64 `json:"seconds"`
}

// Manifest is the durable record of an archive copy, written next to the
// downloaded files as manifest.json.
type Manifest struct {
	TargetURL               string         `json:"target_url"`
	LatestSnapshot          string         `json:"latest_snapshot"`
	TotalSnapshots          int            `json:"total_snapshots"`
	OutputDir               string         `json:"output_dir"`
	FilesDownloaded         int            `json:"files_downloaded"`
	FilesRecovered          int            `json:"files_recovered"`
	ExpectedSampleFiles     int            `json:"expected_sample_files"`
	ExpectedSampleSizeBytes int64          `json:"expected_sample_size_bytes"`
	CoveragePercent         float64        `json:"coverage_percent"`
	MissingCount            int            `json:"missing_count"`
	MissingURLs             []string       `json:"missing_urls"`
	MissingExpectedCount    int            `json:"missing_expected_count"`
	MissingExpectedURLs     []string       `json:"missing_expected_urls"`
	Seconds                 float64        `json:"seconds"`
	Files                   []FileRecord   `json:"files"`
	LastMissingRepair       *RepairSummary `json:"last_missing_repair,omitempty"`
}

// DownloadedURLs returns the set of cleaned URLs the manifest records as
// downloaded.
func (m *Manifest) DownloadedURLs() map[string]FileRecord {
	out := make(map[string]FileRecord, len(m.Files))
	for _, f := range m.Files {
		if f.URL == "" {
			continue
		}
		out[f.URL] = f
	}
	return out
}

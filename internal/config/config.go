package config

const (
	// Log defaults
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultLogFile       = ""
	DefaultMaxLogSizeMB  = 100
	DefaultMaxLogBackups = 3

	// HTTP client defaults
	DefaultHTTPTimeoutSecs         = 45
	DefaultHTTPMaxRetries          = 2
	DefaultHTTPBaseDelayMs         = 600
	DefaultHTTPMaxDelayMs          = 10000
	DefaultHTTPUnavailableHoldSecs = 120
	DefaultHTTPUserAgent           = "waymirror/1.0 (+https://github.com/aleister1102/waymirror)"

	// Capture index endpoints
	DefaultCDXAPIURL          = "https://web.archive.org/cdx/search/cdx"
	DefaultAvailabilityAPIURL = "https://archive.org/wayback/available"
	DefaultRawBaseURL         = "https://web.archive.org/web"

	// Archive engine defaults
	DefaultOutputRoot        = "archives"
	DefaultMaxFiles          = 400
	DefaultInspectCDXLimit   = 20000
	DefaultAnalyzeCDXLimit   = 15000
	DefaultAuditCDXLimit     = 60000
	DefaultRepairCDXLimit    = 70000
	DefaultRepairLimit       = 300
	DefaultDisplayLimit      = 120
	DefaultMaxMemoryPercent  = 90.0
	DefaultMemoryCheckEveryN = 25

	// Storage defaults
	DefaultStorageParquetBasePath  = "database"
	DefaultStorageCompressionCodec = "zstd"
)

// GlobalConfig aggregates every configurable section of the tool.
type GlobalConfig struct {
	LogConfig        LogConfig        `json:"log_config,omitempty" yaml:"log_config,omitempty"`
	HTTPClientConfig HTTPClientConfig `json:"http_client_config,omitempty" yaml:"http_client_config,omitempty"`
	WaybackConfig    WaybackConfig    `json:"wayback_config,omitempty" yaml:"wayback_config,omitempty"`
	ArchiveConfig    ArchiveConfig    `json:"archive_config,omitempty" yaml:"archive_config,omitempty"`
	StorageConfig    StorageConfig    `json:"storage_config,omitempty" yaml:"storage_config,omitempty"`
	LimiterConfig    LimiterConfig    `json:"limiter_config,omitempty" yaml:"limiter_config,omitempty"`
}

// HTTPClientConfig tunes the retrying HTTP client shared by all
// capture-index calls.
type HTTPClientConfig struct {
	TimeoutSecs         int    `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty" validate:"omitempty,min=1"`
	MaxRetries          int    `json:"max_retries,omitempty" yaml:"max_retries,omitempty" validate:"omitempty,min=0"`
	BaseDelayMs         int    `json:"base_delay_ms,omitempty" yaml:"base_delay_ms,omitempty" validate:"omitempty,min=1"`
	MaxDelayMs          int    `json:"max_delay_ms,omitempty" yaml:"max_delay_ms,omitempty" validate:"omitempty,min=1"`
	UnavailableHoldSecs int    `json:"unavailable_hold_secs,omitempty" yaml:"unavailable_hold_secs,omitempty" validate:"omitempty,min=30"`
	UserAgent           string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
}

// WaybackConfig holds the capture-index endpoint locations. Overridable so
// tests can point the engine at a local fake.
type WaybackConfig struct {
	CDXAPIURL          string `json:"cdx_api_url,omitempty" yaml:"cdx_api_url,omitempty" validate:"omitempty,url"`
	AvailabilityAPIURL string `json:"availability_api_url,omitempty" yaml:"availability_api_url,omitempty" validate:"omitempty,url"`
	RawBaseURL         string `json:"raw_base_url,omitempty" yaml:"raw_base_url,omitempty" validate:"omitempty,url"`
}

// ArchiveConfig tunes the engine operations.
type ArchiveConfig struct {
	OutputRoot      string `json:"output_root,omitempty" yaml:"output_root,omitempty"`
	MaxFiles        int    `json:"max_files,omitempty" yaml:"max_files,omitempty" validate:"omitempty,min=1"`
	InspectCDXLimit int    `json:"inspect_cdx_limit,omitempty" yaml:"inspect_cdx_limit,omitempty" validate:"omitempty,min=500"`
	AnalyzeCDXLimit int    `json:"analyze_cdx_limit,omitempty" yaml:"analyze_cdx_limit,omitempty" validate:"omitempty,min=500"`
	AuditCDXLimit   int    `json:"audit_cdx_limit,omitempty" yaml:"audit_cdx_limit,omitempty" validate:"omitempty,min=500"`
	RepairCDXLimit  int    `json:"repair_cdx_limit,omitempty" yaml:"repair_cdx_limit,omitempty" validate:"omitempty,min=500"`
	RepairLimit     int    `json:"repair_limit,omitempty" yaml:"repair_limit,omitempty" validate:"omitempty,min=1"`
	DisplayLimit    int    `json:"display_limit,omitempty" yaml:"display_limit,omitempty" validate:"omitempty,min=5"`
}

// StorageConfig configures the Parquet inventory datastore.
type StorageConfig struct {
	ParquetBasePath  string `json:"parquet_base_path,omitempty" yaml:"parquet_base_path,omitempty"`
	CompressionCodec string `json:"compression_codec,omitempty" yaml:"compression_codec,omitempty" validate:"omitempty,oneof=zstd gzip snappy none"`
}

// LimiterConfig configures the memory pressure guard.
type LimiterConfig struct {
	Enabled          bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	MaxMemoryPercent float64 `json:"max_memory_percent,omitempty" yaml:"max_memory_percent,omitempty" validate:"omitempty,gt=0,lte=100"`
	CheckEveryN      int     `json:"check_every_n,omitempty" yaml:"check_every_n,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultGlobalConfig creates a GlobalConfig with all defaults applied.
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		LogConfig:        NewDefaultLogConfig(),
		HTTPClientConfig: NewDefaultHTTPClientConfig(),
		WaybackConfig:    NewDefaultWaybackConfig(),
		ArchiveConfig:    NewDefaultArchiveConfig(),
		StorageConfig:    NewDefaultStorageConfig(),
		LimiterConfig:    NewDefaultLimiterConfig(),
	}
}

// NewDefaultHTTPClientConfig creates default HTTP client configuration
func NewDefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		TimeoutSecs:         DefaultHTTPTimeoutSecs,
		MaxRetries:          DefaultHTTPMaxRetries,
		BaseDelayMs:         DefaultHTTPBaseDelayMs,
		MaxDelayMs:          DefaultHTTPMaxDelayMs,
		UnavailableHoldSecs: DefaultHTTPUnavailableHoldSecs,
		UserAgent:           DefaultHTTPUserAgent,
	}
}

// NewDefaultWaybackConfig creates default capture-index endpoint configuration
func NewDefaultWaybackConfig() WaybackConfig {
	return WaybackConfig{
		CDXAPIURL:          DefaultCDXAPIURL,
		AvailabilityAPIURL: DefaultAvailabilityAPIURL,
		RawBaseURL:         DefaultRawBaseURL,
	}
}

// NewDefaultArchiveConfig creates default engine configuration
func NewDefaultArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		OutputRoot:      DefaultOutputRoot,
		MaxFiles:        DefaultMaxFiles,
		InspectCDXLimit: DefaultInspectCDXLimit,
		AnalyzeCDXLimit: DefaultAnalyzeCDXLimit,
		AuditCDXLimit:   DefaultAuditCDXLimit,
		RepairCDXLimit:  DefaultRepairCDXLimit,
		RepairLimit:     DefaultRepairLimit,
		DisplayLimit:    DefaultDisplayLimit,
	}
}

// NewDefaultStorageConfig creates default storage configuration
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		ParquetBasePath:  DefaultStorageParquetBasePath,
		CompressionCodec: DefaultStorageCompressionCodec,
	}
}

// NewDefaultLimiterConfig creates default limiter configuration
func NewDefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		Enabled:          true,
		MaxMemoryPercent: DefaultMaxMemoryPercent,
		CheckEveryN:      DefaultMemoryCheckEveryN,
	}
}

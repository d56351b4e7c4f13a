package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aleister1102/waymirror/internal/errorwrapper"
)

// GetConfigPath determines the configuration file path.
// Priority:
// 1. the explicit flag value, when the file exists
// 2. WAYMIRROR_CONFIG_PATH environment variable
// 3. config.yaml / config.json in the working directory
// 4. config.yaml / config.json next to the executable
func GetConfigPath(configFilePathFlag string) string {
	if configFilePathFlag != "" {
		if _, err := os.Stat(configFilePathFlag); err == nil {
			return configFilePathFlag
		}
	}

	envPath := os.Getenv("WAYMIRROR_CONFIG_PATH")
	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	cwd, errCwd := os.Getwd()
	exePath, errExe := os.Executable()
	exeDir := ""
	if errExe == nil {
		exeDir = filepath.Dir(exePath)
	}

	defaultFiles := []string{"config.yaml", "config.json"}
	locations := []string{}

	if errCwd == nil {
		locations = append(locations, cwd)
	}
	if errExe == nil && exeDir != "" && (errCwd != nil || exeDir != cwd) {
		locations = append(locations, exeDir)
	}

	for _, loc := range locations {
		for _, file := range defaultFiles {
			path := filepath.Join(loc, file)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadGlobalConfig loads configuration from the given path, applying defaults
// for every unset field. An empty path yields the pure-default config.
func LoadGlobalConfig(configPath string) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to read config file '"+configPath+"'")
	}

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errorwrapper.WrapError(err, "failed to parse YAML config '"+configPath+"'")
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errorwrapper.WrapError(err, "failed to parse JSON config '"+configPath+"'")
		}
	default:
		return nil, errorwrapper.NewError("unsupported config file extension: %s", configPath)
	}

	applyMissingDefaults(cfg)
	return cfg, nil
}

// applyMissingDefaults fills zero-valued fields that must never be zero.
func applyMissingDefaults(cfg *GlobalConfig) {
	def := NewDefaultGlobalConfig()

	if cfg.HTTPClientConfig.TimeoutSecs <= 0 {
		cfg.HTTPClientConfig.TimeoutSecs = def.HTTPClientConfig.TimeoutSecs
	}
	if cfg.HTTPClientConfig.BaseDelayMs <= 0 {
		cfg.HTTPClientConfig.BaseDelayMs = def.HTTPClientConfig.BaseDelayMs
	}
	if cfg.HTTPClientConfig.MaxDelayMs <= 0 {
		cfg.HTTPClientConfig.MaxDelayMs = def.HTTPClientConfig.MaxDelayMs
	}
	if cfg.HTTPClientConfig.UnavailableHoldSecs <= 0 {
		cfg.HTTPClientConfig.UnavailableHoldSecs = def.HTTPClientConfig.UnavailableHoldSecs
	}
	if cfg.HTTPClientConfig.UserAgent == "" {
		cfg.HTTPClientConfig.UserAgent = def.HTTPClientConfig.UserAgent
	}
	if cfg.WaybackConfig.CDXAPIURL == "" {
		cfg.WaybackConfig.CDXAPIURL = def.WaybackConfig.CDXAPIURL
	}
	if cfg.WaybackConfig.AvailabilityAPIURL == "" {
		cfg.WaybackConfig.AvailabilityAPIURL = def.WaybackConfig.AvailabilityAPIURL
	}
	if cfg.WaybackConfig.RawBaseURL == "" {
		cfg.WaybackConfig.RawBaseURL = def.WaybackConfig.RawBaseURL
	}
	if cfg.ArchiveConfig.OutputRoot == "" {
		cfg.ArchiveConfig.OutputRoot = def.ArchiveConfig.OutputRoot
	}
	if cfg.ArchiveConfig.MaxFiles <= 0 {
		cfg.ArchiveConfig.MaxFiles = def.ArchiveConfig.MaxFiles
	}
	if cfg.ArchiveConfig.InspectCDXLimit <= 0 {
		cfg.ArchiveConfig.InspectCDXLimit = def.ArchiveConfig.InspectCDXLimit
	}
	if cfg.ArchiveConfig.AnalyzeCDXLimit <= 0 {
		cfg.ArchiveConfig.AnalyzeCDXLimit = def.ArchiveConfig.AnalyzeCDXLimit
	}
	if cfg.ArchiveConfig.AuditCDXLimit <= 0 {
		cfg.ArchiveConfig.AuditCDXLimit = def.ArchiveConfig.AuditCDXLimit
	}
	if cfg.ArchiveConfig.RepairCDXLimit <= 0 {
		cfg.ArchiveConfig.RepairCDXLimit = def.ArchiveConfig.RepairCDXLimit
	}
	if cfg.ArchiveConfig.RepairLimit <= 0 {
		cfg.ArchiveConfig.RepairLimit = def.ArchiveConfig.RepairLimit
	}
	if cfg.ArchiveConfig.DisplayLimit <= 0 {
		cfg.ArchiveConfig.DisplayLimit = def.ArchiveConfig.DisplayLimit
	}
	if cfg.StorageConfig.ParquetBasePath == "" {
		cfg.StorageConfig.ParquetBasePath = def.StorageConfig.ParquetBasePath
	}
	if cfg.StorageConfig.CompressionCodec == "" {
		cfg.StorageConfig.CompressionCodec = def.StorageConfig.CompressionCodec
	}
	if cfg.LimiterConfig.MaxMemoryPercent <= 0 {
		cfg.LimiterConfig.MaxMemoryPercent = def.LimiterConfig.MaxMemoryPercent
	}
	if cfg.LimiterConfig.CheckEveryN <= 0 {
		cfg.LimiterConfig.CheckEveryN = def.LimiterConfig.CheckEveryN
	}
}

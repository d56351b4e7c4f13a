package archiver

import (
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/aleister1102/waymirror/internal/config"
	"github.com/aleister1102/waymirror/internal/datastore"
	"github.com/aleister1102/waymirror/internal/extractor"
	"github.com/aleister1102/waymirror/internal/httpclient"
	"github.com/aleister1102/waymirror/internal/inventory"
	"github.com/aleister1102/waymirror/internal/manifest"
	"github.com/aleister1102/waymirror/internal/rewriter"
	"github.com/aleister1102/waymirror/internal/rslimiter"
	"github.com/aleister1102/waymirror/internal/wayback"
)

// Engine drives every archive operation: inspecting capture history,
// analyzing an archived site, reconstructing it locally, auditing the
// copy, and repairing gaps.
type Engine struct {
	cfg       *config.GlobalConfig
	cdx       *wayback.CDXClient
	merger    *inventory.Merger
	extractor *extractor.LinkExtractor
	rewriter  *rewriter.OfflineRewriter
	store     *manifest.Store
	invStore  *datastore.InventoryStore
	limiter   *rslimiter.ResourceLimiter
	logger    zerolog.Logger
}

// EngineBuilder provides fluent interface for building engines
type EngineBuilder struct {
	cfg    *config.GlobalConfig
	fs     afero.Fs
	logger zerolog.Logger
}

// NewEngineBuilder creates a new engine builder
func NewEngineBuilder(logger zerolog.Logger) *EngineBuilder {
	return &EngineBuilder{
		cfg:    config.NewDefaultGlobalConfig(),
		fs:     afero.NewOsFs(),
		logger: logger,
	}
}

// WithConfig sets the global configuration.
func (eb *EngineBuilder) WithConfig(cfg *config.GlobalConfig) *EngineBuilder {
	eb.cfg = cfg
	return eb
}

// WithFilesystem sets the filesystem archive copies are written to.
func (eb *EngineBuilder) WithFilesystem(fs afero.Fs) *EngineBuilder {
	eb.fs = fs
	return eb
}

// Build creates the engine instance
func (eb *EngineBuilder) Build() (*Engine, error) {
	client, err := httpclient.NewHTTPClientBuilder(eb.logger).
		WithConfig(eb.cfg.HTTPClientConfig).
		Build()
	if err != nil {
		return nil, err
	}

	invStore, err := datastore.NewInventoryStoreBuilder(eb.logger).
		WithStorageConfig(eb.cfg.StorageConfig).
		Build()
	if err != nil {
		return nil, err
	}

	cdx := wayback.NewCDXClient(client, eb.cfg.WaybackConfig, eb.logger)
	store := manifest.NewStore(eb.fs, eb.logger)

	return &Engine{
		cfg:       eb.cfg,
		cdx:       cdx,
		merger:    inventory.NewMerger(cdx, eb.logger),
		extractor: extractor.NewLinkExtractor(eb.logger),
		rewriter:  rewriter.NewOfflineRewriter(eb.fs, eb.logger),
		store:     store,
		invStore:  invStore,
		limiter:   rslimiter.NewResourceLimiter(eb.cfg.LimiterConfig, eb.logger),
		logger:    eb.logger.With().Str("component", "ArchiveEngine").Logger(),
	}, nil
}

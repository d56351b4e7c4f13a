package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/aleister1102/waymirror/internal/archiver"
	"github.com/aleister1102/waymirror/internal/config"
	"github.com/aleister1102/waymirror/internal/errorwrapper"
	"github.com/aleister1102/waymirror/internal/logger"
	"github.com/aleister1102/waymirror/internal/progress"
)

func main() {
	fmt.Println("waymirror starting...")

	// Flags
	modeFlag := flag.String("mode", "", "Operation to run: inspect, analyze, run, audit or repair")
	modeFlagAlias := flag.String("m", "", "Alias for --mode")

	urlFlag := flag.String("url", "", "Target URL to work on")
	urlFlagAlias := flag.String("u", "", "Alias for --url")

	globalConfigFile := flag.String("globalconfig", "", "Path to the global YAML/JSON configuration file. If not set, searches default locations.")
	globalConfigFileAlias := flag.String("gc", "", "Alias for --globalconfig")

	outputFlag := flag.String("output", "", "Archive output root directory (overrides config)")
	snapshotFlag := flag.String("snapshot", "", "Snapshot timestamp (YYYYMMDDhhmmss) to pin the operation to")

	maxFiles := flag.Int("max-files", 0, "Download budget for the run operation (overrides config)")
	repairLimit := flag.Int("limit", 0, "Per-pass repair budget for the repair operation (overrides config)")
	displayLimit := flag.Int("display-limit", 0, "How many recent snapshots inspect lists (overrides config)")
	cdxLimit := flag.Int("cdx-limit", 0, "Capture index row budget (overrides config)")
	skipErrors := flag.Bool("skip-errors", true, "Keep repairing after individual download failures")
	verbose := flag.Bool("verbose", false, "Log progress updates")
	flag.Parse()

	// Consolidate alias flags
	if *modeFlag == "" && *modeFlagAlias != "" {
		*modeFlag = *modeFlagAlias
	}
	if *urlFlag == "" && *urlFlagAlias != "" {
		*urlFlag = *urlFlagAlias
	}
	if *globalConfigFile == "" && *globalConfigFileAlias != "" {
		*globalConfigFile = *globalConfigFileAlias
	}

	if *modeFlag == "" {
		log.Fatalln("[FATAL] --mode argument is required (inspect, analyze, run, audit or repair)")
	}
	if *urlFlag == "" {
		log.Fatalln("[FATAL] --url argument is required")
	}

	// .env values feed config resolution (WAYMIRROR_CONFIG_PATH).
	_ = godotenv.Load()

	configPath := config.GetConfigPath(*globalConfigFile)
	gCfg, err := config.LoadGlobalConfig(configPath)
	if err != nil {
		log.Fatalf("[FATAL] Could not load global config using path '%s': %v", configPath, err)
	}
	if err := config.ValidateConfig(gCfg); err != nil {
		log.Fatalf("[FATAL] Configuration validation failed: %v", err)
	}

	zLogger, err := logger.New(gCfg.LogConfig)
	if err != nil {
		log.Fatalf("[FATAL] Could not initialize logger: %v", err)
	}
	zLogger.Info().Str("mode", *modeFlag).Str("url", *urlFlag).Msg("Configuration loaded")

	engine, err := archiver.NewEngineBuilder(zLogger).
		WithConfig(gCfg).
		Build()
	if err != nil {
		zLogger.Fatal().Err(err).Msg("Could not build archive engine")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		zLogger.Info().Str("signal", sig.String()).Msg("Received interrupt signal, cancelling operation...")
		cancel()
	}()

	hooks := progress.Hooks{
		ShouldAbort: func() bool { return ctx.Err() != nil },
	}
	if *verbose {
		hooks.OnProgress = func(u progress.Update) {
			zLogger.Info().
				Str("stage", string(u.Stage)).
				Int("percent", u.Percent).
				Str("item", u.CurrentItem).
				Msg(u.Message)
		}
	}

	result, err := dispatch(ctx, engine, operationOptions{
		mode:         *modeFlag,
		targetURL:    *urlFlag,
		outputRoot:   *outputFlag,
		snapshot:     *snapshotFlag,
		maxFiles:     *maxFiles,
		repairLimit:  *repairLimit,
		displayLimit: *displayLimit,
		cdxLimit:     *cdxLimit,
		skipErrors:   *skipErrors,
	}, hooks)
	if err != nil {
		zLogger.Error().Err(err).Str("mode", *modeFlag).Msg("Operation failed")
		os.Exit(exitCodeFor(err))
	}

	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		zLogger.Fatal().Err(err).Msg("Could not encode operation result")
	}
	fmt.Println(string(body))
	zLogger.Info().Str("mode", *modeFlag).Msg("Operation finished")
}

type operationOptions struct {
	mode         string
	targetURL    string
	outputRoot   string
	snapshot     string
	maxFiles     int
	repairLimit  int
	displayLimit int
	cdxLimit     int
	skipErrors   bool
}

func dispatch(ctx context.Context, engine *archiver.Engine, opts operationOptions, hooks progress.Hooks) (any, error) {
	switch opts.mode {
	case "inspect":
		return engine.Inspect(ctx, archiver.InspectOptions{
			TargetURL:    opts.targetURL,
			DisplayLimit: opts.displayLimit,
			CDXLimit:     opts.cdxLimit,
		}, hooks)
	case "analyze":
		return engine.Analyze(ctx, archiver.AnalyzeOptions{
			TargetURL:        opts.targetURL,
			SelectedSnapshot: opts.snapshot,
			CDXLimit:         opts.cdxLimit,
		}, hooks)
	case "run":
		return engine.Run(ctx, archiver.RunOptions{
			TargetURL:         opts.targetURL,
			OutputRoot:        opts.outputRoot,
			MaxFiles:          opts.maxFiles,
			PreferredSnapshot: opts.snapshot,
		}, hooks)
	case "audit":
		return engine.Audit(ctx, archiver.AuditOptions{
			TargetURL:        opts.targetURL,
			OutputRoot:       opts.outputRoot,
			SelectedSnapshot: opts.snapshot,
		}, hooks)
	case "repair":
		return engine.RepairMissing(ctx, archiver.RepairOptions{
			TargetURL:        opts.targetURL,
			OutputRoot:       opts.outputRoot,
			SelectedSnapshot: opts.snapshot,
			Limit:            opts.repairLimit,
			SkipErrors:       opts.skipErrors,
		}, hooks)
	default:
		return nil, errorwrapper.WrapError(errorwrapper.ErrInvalidInput, "unknown mode '"+opts.mode+"'")
	}
}

// exitCodeFor maps the error taxonomy onto shell-friendly exit codes.
func exitCodeFor(err error) int {
	switch {
	case errorwrapper.IsCancelled(err):
		return 130
	case errorwrapper.IsUpstreamUnavailable(err):
		return 4
	case errorwrapper.IsNotFound(err), errors.Is(err, errorwrapper.ErrManifestNotFound):
		return 3
	case errors.Is(err, errorwrapper.ErrInvalidInput):
		return 2
	default:
		return 1
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aleister1102/quicklink/internal/config"
	"github.com/aleister1102/quicklink/internal/history"
	"github.com/aleister1102/quicklink/internal/logger"
	"github.com/aleister1102/quicklink/internal/orchestrator"
	"github.com/aleister1102/quicklink/internal/urlhandler"
	"github.com/rs/zerolog"
)

func main() {
	os.Exit(runMain(os.Args[1:]))
}

// runMain owns every deferred cleanup so that main can exit with its code
func runMain(args []string) int {
	flags, err := ParseFlags(flag.NewFlagSet("quicklink", flag.ContinueOnError), args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[FATAL]", err)
		return 2
	}

	gCfg, err := config.LoadGlobalConfig(flags.GlobalConfigFile, zerolog.Nop())
	if err != nil {
		log.Printf("[FATAL] Main: Could not load global config using path '%s': %v", flags.GlobalConfigFile, err)
		return 1
	}

	sessionID := time.Now().Format("20060102-150405")
	appLogger, err := logger.NewWithSessionID(gCfg.LogConfig, sessionID)
	if err != nil {
		log.Printf("[FATAL] Main: Could not initialize logger: %v", err)
		return 1
	}
	defer func() {
		if err := appLogger.Close(); err != nil {
			log.Printf("[WARN] Main: Could not close log file: %v", err)
		}
	}()
	zLogger := appLogger.GetZerolog().With().Str("session_id", sessionID).Logger()
	if logCfg := appLogger.GetConfig(); logCfg.EnableFile {
		zLogger.Debug().Str("log_file", logCfg.FilePath).Msg("File logging enabled")
	}

	if flags.Mode != "" {
		gCfg.ObserverConfig.Mode = flags.Mode
		zLogger.Info().Str("mode", flags.Mode).Msg("Observer mode overridden by command line flag.")
	}
	applyOverrides(gCfg, flags.Overrides)

	if err := config.ValidateConfig(gCfg); err != nil {
		zLogger.Error().Err(err).Msg("Configuration validation failed")
		return 1
	}

	if flags.ShowHistory > 0 {
		if err := printHistory(gCfg, flags.ShowHistory, flags.HistorySite, zLogger); err != nil {
			zLogger.Error().Err(err).Msg("Could not read run history")
			return 1
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, gCfg, flags.PageURLs, zLogger)
}

func run(ctx context.Context, gCfg *config.GlobalConfig, pageURLs []string, zLogger zerolog.Logger) int {
	deps, err := orchestrator.NewDependencies(gCfg, zLogger)
	if err != nil {
		zLogger.Error().Err(err).Msg("Failed to initialize components")
		return 1
	}
	defer func() {
		if err := deps.Close(); err != nil {
			zLogger.Warn().Err(err).Msg("Failed to release resources")
		}
	}()

	session := orchestrator.NewSession(gCfg, deps, zLogger)
	exitCode := 0
	for _, pageURL := range pageURLs {
		if ctx.Err() != nil {
			zLogger.Info().Msg("Interrupted, skipping remaining pages")
			break
		}

		if err := urlhandler.ValidateURLFormat(pageURL); err != nil {
			zLogger.Error().Err(err).Str("page_url", pageURL).Msg("Invalid page URL")
			exitCode = 1
			continue
		}

		summary, err := session.Run(ctx, pageURL)
		if err != nil {
			exitCode = 1
			continue
		}
		fmt.Printf("%s: %d prefetched, %d failed, %d rejected, %d duplicates (%s)\n",
			summary.PageURL, summary.Stats.Succeeded, summary.Stats.Failed,
			summary.Stats.Rejected, summary.Stats.Duplicates, summary.Duration().Round(1e6))
	}
	return exitCode
}

// applyOverrides layers command line options over the configured ones
func applyOverrides(gCfg *config.GlobalConfig, overrides map[string]any) {
	if len(overrides) == 0 {
		return
	}
	if gCfg.PrefetchConfig.Overrides == nil {
		gCfg.PrefetchConfig.Overrides = make(map[string]any, len(overrides))
	}
	for key, value := range overrides {
		gCfg.PrefetchConfig.Overrides[key] = value
	}
}

func printHistory(gCfg *config.GlobalConfig, limit int, site string, zLogger zerolog.Logger) error {
	store, err := history.NewStore(gCfg.HistoryConfig.SQLiteDBPath, zLogger)
	if err != nil {
		return err
	}
	defer store.Close()

	var runs []history.RunEntry
	if site != "" {
		runs, err = store.RunsForSite(site, limit)
	} else {
		runs, err = store.RecentRuns(limit)
	}
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("#%d %s %s %s accepted=%d succeeded=%d failed=%d rejected=%d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.PageURL,
			r.Accepted, r.Succeeded, r.Failed, r.Rejected)
	}
	return nil
}

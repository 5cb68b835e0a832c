package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pulsefeed/trendwatch/internal/cache"
	"github.com/pulsefeed/trendwatch/internal/config"
	"github.com/pulsefeed/trendwatch/internal/detect"
	"github.com/pulsefeed/trendwatch/internal/infrastructure/db"
	"github.com/pulsefeed/trendwatch/internal/ingest"
	httpiface "github.com/pulsefeed/trendwatch/internal/interfaces/http"
	"github.com/pulsefeed/trendwatch/internal/metrics"
)

const (
	appName = "trendwatch"
	version = "v1.4.0"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	var configPath string

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Trending and breaking news topic detection",
		Version: version,
		Long: `trendwatch detects trending and breaking news topics from recent
articles, aggregator items, and social posts, ranking them by z-score
velocity against rolling baselines.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to yaml config")

	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "Run one detection pass and print the run report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyDetectFlags(cmd, cfg)
			return runDetectOnce(cmd.Context(), cfg)
		},
	}
	detectCmd.Flags().Int("window-hours", 0, "Detection window in hours")
	detectCmd.Flags().Int("max-articles", 0, "Per-run article cap")
	detectCmd.Flags().Int("max-feed-items", 0, "Per-run aggregator item cap")
	detectCmd.Flags().Int("max-social-posts", 0, "Per-run social post cap")
	detectCmd.Flags().Duration("budget", 0, "Wall-clock budget for the run")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the detection trigger, health, and metrics endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	rootCmd.AddCommand(detectCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func applyDetectFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetInt("window-hours"); v > 0 {
		cfg.Detector.WindowHours = v
	}
	if v, _ := cmd.Flags().GetInt("max-articles"); v > 0 {
		cfg.Detector.Caps.Articles = v
	}
	if v, _ := cmd.Flags().GetInt("max-feed-items"); v > 0 {
		cfg.Detector.Caps.AggregatorItems = v
	}
	if v, _ := cmd.Flags().GetInt("max-social-posts"); v > 0 {
		cfg.Detector.Caps.SocialPosts = v
	}
	if v, _ := cmd.Flags().GetDuration("budget"); v > 0 {
		cfg.Detector.Budget = v
	}
}

func buildDetector(cfg *config.Config, reg *metrics.Registry) (*detect.Detector, *db.Manager, error) {
	manager, err := db.NewManager(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}

	readers := ingest.NewPostgresReaders(manager.DB(), cfg.Database.QueryTimeout)
	loader := ingest.NewLoader(readers.Articles(), readers.Aggregator(), readers.Social(), log.Logger)

	detector := detect.NewDetector(
		manager.Repository(),
		loader,
		cache.NewAuto(),
		reg,
		&cfg.Gate,
		log.Logger,
	)
	return detector, manager, nil
}

func runDetectOnce(ctx context.Context, cfg *config.Config) error {
	detector, manager, err := buildDetector(cfg, metrics.NewRegistry())
	if err != nil {
		return err
	}
	defer manager.Close()

	stats, runErr := detector.Run(ctx, detect.Options{
		WindowHours: cfg.Detector.WindowHours,
		Caps:        cfg.Detector.Caps,
		Budget:      cfg.Detector.Budget,
	})

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return runErr
}

func runServe(ctx context.Context, cfg *config.Config) error {
	// The server and detector share one registry so run gauges show up on
	// /metrics.
	reg := metrics.NewRegistry()
	detector, manager, err := buildDetector(cfg, reg)
	if err != nil {
		return err
	}
	defer manager.Close()

	server := httpiface.NewServer(
		cfg.HTTP, cfg.Detector,
		detector, manager, reg,
		httpiface.StaticToken(cfg.HTTP.AdminToken),
		log.Logger,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

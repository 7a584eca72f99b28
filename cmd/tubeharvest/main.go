package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/tubeharvest/internal/config"
	"github.com/IshaanNene/tubeharvest/internal/fetcher"
	"github.com/IshaanNene/tubeharvest/internal/harvest"
	"github.com/IshaanNene/tubeharvest/internal/observability"
	"github.com/IshaanNene/tubeharvest/internal/parser"
	"github.com/IshaanNene/tubeharvest/internal/storage"
	"github.com/IshaanNene/tubeharvest/internal/types"
)

var (
	cfgFile     string
	verbose     bool
	outputPath  string
	formats     string
	engineType  string
	fromFile    string
	maxScrolls  int
	scrollPause string
	noComments  bool
	timeout     string
	dumpYAML    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tubeharvest",
		Short: "TubeHarvest: video page metadata and comment harvester",
		Long: `TubeHarvest extracts the title, channel, subscriber count, view count,
like count, description and comments from a video watch page.

Features:
  • Headless Chromium rendering with scroll-until-stable comment loading
  • Ordered selector fallbacks per field, configurable without rebuilding
  • HTTP snapshot mode and offline harvesting of saved pages
  • JSON, CSV, text and MongoDB export
  • Prometheus metrics endpoint`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(harvestCmd())
	rootCmd.AddCommand(probesCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// harvestCmd creates the "harvest" subcommand.
func harvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest [url]",
		Short: "Harvest one video watch page",
		Long:  "Open the watch page, extract its metadata and comments, print them and export them.",
		Args:  cobra.ExactArgs(1),
		RunE:  runHarvest,
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output directory")
	cmd.Flags().StringVarP(&formats, "format", "f", "", "comma-separated export formats: json, csv, txt, mongodb")
	cmd.Flags().StringVar(&engineType, "engine", "", "page engine: browser or http")
	cmd.Flags().StringVar(&fromFile, "from-file", "", "harvest a saved HTML page instead of fetching the URL")
	cmd.Flags().IntVar(&maxScrolls, "max-scrolls", -1, "maximum scroll iterations (-1 = use config)")
	cmd.Flags().StringVar(&scrollPause, "scroll-pause", "", "pause after each scroll, e.g. 2s")
	cmd.Flags().BoolVar(&noComments, "no-comments", false, "skip the comment section")
	cmd.Flags().StringVar(&timeout, "timeout", "", "overall harvest timeout, e.g. 5m")

	return cmd
}

// runHarvest executes the harvest command.
func runHarvest(cmd *cobra.Command, args []string) error {
	url := args[0]

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyCLIOverrides(cfg); err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := config.ValidateURL(url); err != nil {
		return fmt.Errorf("invalid URL %q: %w", url, err)
	}

	logger, closer, err := observability.NewLogger(cfg.Logging, verbose)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer closer.Close()

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	h, err := harvest.FromConfig(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("build harvester: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Harvest.Timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down...", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("starting harvest",
		"url", url,
		"engine", cfg.Fetcher.Type,
		"from_file", fromFile,
		"comments", cfg.Comments.Enabled,
		"formats", cfg.Storage.Formats,
	)

	start := time.Now()
	var result *types.Harvest
	if fromFile != "" {
		result, err = harvestFile(ctx, h, fromFile, url)
	} else {
		result, err = harvestLive(ctx, h, cfg, logger, metrics, url)
	}
	if err != nil {
		if types.IsDocumentUnavailable(err) {
			return fmt.Errorf("page unavailable: %w", err)
		}
		return fmt.Errorf("harvest: %w", err)
	}

	printHarvest(os.Stdout, result)

	exporter, err := storage.New(ctx, &cfg.Storage, logger, metrics)
	if err != nil {
		return fmt.Errorf("create exporter: %w", err)
	}
	defer exporter.Close()
	if err := exporter.Export(ctx, result); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	stats := metrics.Snapshot()
	fmt.Printf("\n✅ Harvest complete in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("   Fields:    %v found, %v missing\n", stats["fields_found"], stats["fields_missing"])
	fmt.Printf("   Comments:  %v collected, %v skipped\n", stats["comments_collected"], stats["comments_skipped"])
	fmt.Printf("   Scrolls:   %v iterations\n", stats["scroll_iterations"])
	fmt.Printf("   Output:    %s (%s)\n", cfg.Storage.OutputPath, strings.Join(cfg.Storage.Formats, ", "))
	return nil
}

func harvestFile(ctx context.Context, h *harvest.Harvester, path, url string) (*types.Harvest, error) {
	session, err := fetcher.OpenFile(path, url)
	if err != nil {
		return nil, err
	}
	defer session.Close()
	return h.Harvest(ctx, session, url)
}

func harvestLive(ctx context.Context, h *harvest.Harvester, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, url string) (*types.Harvest, error) {
	f, err := fetcher.New(cfg, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("fetcher close failed", "error", err)
		}
	}()
	return h.HarvestURL(ctx, f, url)
}

// printHarvest renders the record and the numbered comments.
func printHarvest(w io.Writer, h *types.Harvest) {
	v := h.Video
	fmt.Fprintf(w, "Title:        %s\n", v.Title)
	fmt.Fprintf(w, "Channel:      %s\n", v.Channel)
	fmt.Fprintf(w, "Subscribers:  %s\n", v.SubscriberCountText)
	fmt.Fprintf(w, "Views:        %s\n", v.ViewCountText)
	fmt.Fprintf(w, "Likes:        %s\n", v.LikeCount)
	fmt.Fprintf(w, "Scraped at:   %s\n", v.ScrapedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "\nDescription:\n%s\n", v.Description)

	fmt.Fprintf(w, "\nComments (%d):\n", len(h.Comments))
	for i, c := range h.Comments {
		fmt.Fprintf(w, "%d. %s\n", i+1, c)
	}
}

// probesCmd creates the "probes" subcommand.
func probesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probes",
		Short: "Show the active field probes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			probes, err := parser.ProbesFromConfig(parser.DefaultProbes(), cfg.Probes)
			if err != nil {
				return err
			}
			printProbes(os.Stdout, probes)
			return nil
		},
	}
}

func printProbes(w io.Writer, probes parser.ProbeSet) {
	for _, p := range probes.Ordered() {
		mode := p.Mode
		if mode == "" {
			mode = parser.ModeText
		}
		fmt.Fprintf(w, "%s (%s", p.Name, mode)
		if p.Wait > 0 {
			fmt.Fprintf(w, ", wait %s", p.Wait)
		}
		fmt.Fprintf(w, ", fallback %q)\n", p.Fallback)
		for i, c := range p.Candidates {
			fmt.Fprintf(w, "  %d. %s\n", i+1, c)
		}
		for _, c := range p.ClickTargets {
			fmt.Fprintf(w, "  click: %s\n", c)
		}
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("TubeHarvest %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if dumpYAML {
				out, err := config.Dump(cfg)
				if err != nil {
					return err
				}
				os.Stdout.Write(out)
				return nil
			}
			fmt.Printf("Fetcher:\n")
			fmt.Printf("  Type:               %s\n", cfg.Fetcher.Type)
			fmt.Printf("  Request Timeout:    %s\n", cfg.Fetcher.RequestTimeout)
			fmt.Printf("  Max Retries:        %d\n", cfg.Fetcher.MaxRetries)
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Headless:           %v\n", cfg.Browser.Headless)
			fmt.Printf("  Window Size:        %s\n", cfg.Browser.WindowSize)
			fmt.Printf("  Navigation Timeout: %s\n", cfg.Browser.NavigationTimeout)
			fmt.Printf("  Settle Delay:       %s\n", cfg.Browser.SettleDelay)
			fmt.Printf("\nScroll:\n")
			fmt.Printf("  Pause:              %s\n", cfg.Scroll.Pause)
			fmt.Printf("  Max Iterations:     %d\n", cfg.Scroll.MaxIterations)
			fmt.Printf("\nComments:\n")
			fmt.Printf("  Enabled:            %v\n", cfg.Comments.Enabled)
			fmt.Printf("  Thread Selector:    %s\n", cfg.Comments.ThreadSelector)
			fmt.Printf("  Body Selector:      %s\n", cfg.Comments.BodySelector)
			fmt.Printf("\nProbe Overrides:      %d\n", len(cfg.Probes))
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Formats:            %s\n", strings.Join(cfg.Storage.Formats, ", "))
			fmt.Printf("  Output Path:        %s\n", cfg.Storage.OutputPath)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:            %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:               %d\n", cfg.Metrics.Port)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dumpYAML, "yaml", false, "print the effective configuration as YAML")
	return cmd
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) error {
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
	}
	if formats != "" {
		var fs []string
		for _, f := range strings.Split(formats, ",") {
			if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
				fs = append(fs, f)
			}
		}
		cfg.Storage.Formats = fs
	}
	if engineType != "" {
		cfg.Fetcher.Type = strings.ToLower(engineType)
	}
	if maxScrolls >= 0 {
		cfg.Scroll.MaxIterations = maxScrolls
	}
	if scrollPause != "" {
		d, err := time.ParseDuration(scrollPause)
		if err != nil {
			return fmt.Errorf("invalid --scroll-pause: %w", err)
		}
		cfg.Scroll.Pause = d
	}
	if noComments {
		cfg.Comments.Enabled = false
	}
	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid --timeout: %w", err)
		}
		cfg.Harvest.Timeout = d
	}
	return nil
}

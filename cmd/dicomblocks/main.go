package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/yaml.v3"

	"dicomblocks/pkg/config"
	"dicomblocks/pkg/reconstruction"
	"dicomblocks/pkg/tagcache"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing DICOM files")
	configPath := flag.String("config", "dicomblocks.yaml", "Configuration file")
	outputPath := flag.String("output", "", "Write block descriptors as YAML to this file (default: stdout)")
	numWorkers := flag.Int("workers", 0, "Number of candidate blocks sorted concurrently (default: from config)")
	sameSeries := flag.Bool("same-series", true, "Only condense blocks of the same series")
	noCondense := flag.Bool("no-condense", false, "Do not merge repeated volumes into 3D+t blocks")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	logFile := flag.String("log-file", "", "Additionally write JSON log records to this file")
	createConfig := flag.Bool("create-config", false, "Write a default configuration file and exit")
	flag.Parse()

	if *createConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to create config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Command line flags override the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Processing.NumWorkers = *numWorkers
		case "same-series":
			cfg.Grouping.OnlyCondenseSameSeries = *sameSeries
		case "no-condense":
			cfg.Grouping.Condense = !*noCondense
		case "verbose":
			cfg.Output.Verbose = *verbose
		case "log-file":
			cfg.Output.LogFile = *logFile
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	startTime := time.Now()

	cache := tagcache.NewMapCache()
	loaded, err := tagcache.LoadDirectory(cache, *inputDir, logger)
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
	logger.Info("read input", "dir", *inputDir, "frames", len(loaded.Loaded), "skipped", len(loaded.Skipped))
	if len(loaded.Loaded) == 0 {
		log.Fatalf("No DICOM frames found in %s", *inputDir)
	}

	params := &reconstruction.Params{
		NumWorkers:             cfg.Processing.NumWorkers,
		Condense:               cfg.Grouping.Condense,
		OnlyCondenseSameSeries: cfg.Grouping.OnlyCondenseSameSeries,
		Options:                cfg.SortOptions(),
		Logger:                 logger,
		Progress: func(completed, total int, message string) {
			logger.Debug("progress", "completed", completed, "total", total, "message", message)
		},
	}
	reconstructor := reconstruction.NewReconstructor(params, cache)
	if err := reconstructor.Process(ctx, cache.FrameIDs()); err != nil {
		log.Fatalf("Reconstruction failed: %v", err)
	}

	if err := writeDescriptors(*outputPath, reconstructor.Descriptors()); err != nil {
		log.Fatalf("Failed to write descriptors: %v", err)
	}

	stats := reconstructor.GetStats()
	fmt.Fprintf(os.Stderr, "\nSorted %d frames into %d blocks in %.2f seconds\n",
		stats.Frames, stats.Blocks, time.Since(startTime).Seconds())
	fmt.Fprintf(os.Stderr, "- Candidate blocks after grouping: %d\n", stats.Candidates)
	fmt.Fprintf(os.Stderr, "- 3D+t blocks: %d\n", stats.TimeBlocks)
	fmt.Fprintf(os.Stderr, "- Blocks with split reasons: %d\n", stats.FlaggedBlocks)
	fmt.Fprintf(os.Stderr, "- Slice spacing: %.3f mm (std dev %.3f)\n", stats.SpacingMean, stats.SpacingStdDev)
}

// newLogger logs text to stderr and, with a log file configured, JSON to
// that file as well
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	handlers := []slog.Handler{slog.NewTextHandler(os.Stderr, opts)}
	closeLog := func() {}
	if cfg.Output.LogFile != "" {
		f, err := os.OpenFile(cfg.Output.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewJSONHandler(f, opts))
		closeLog = func() { f.Close() }
	}

	return slog.New(slogmulti.Fanout(handlers...)), closeLog, nil
}

func writeDescriptors(path string, descriptors []reconstruction.ImageBlockDescriptor) error {
	var out io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(descriptors); err != nil {
		return err
	}
	return enc.Close()
}

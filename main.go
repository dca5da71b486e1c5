package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/idealo/airbnb-benchmarking/internal/backend"
	"github.com/idealo/airbnb-benchmarking/internal/bench"
	"github.com/idealo/airbnb-benchmarking/internal/config"
	"github.com/idealo/airbnb-benchmarking/internal/importer"
	"github.com/idealo/airbnb-benchmarking/internal/logging"
	"github.com/idealo/airbnb-benchmarking/internal/publish"
	"github.com/idealo/airbnb-benchmarking/internal/runner"
)

// The cli struct represents all command-line flags.
var cli struct {
	Config   string `default:"config.toml" help:"Path to the TOML configuration file." type:"path"`
	LogLevel string `default:"info"        help:"${help_log_level}"                     enum:"${enum_log_level}"`
	Import   string `default:"config"      help:"${help_import}"                        enum:"config,on,off"`
}

var (
	logLevels = []string{
		zap.DebugLevel.String(),
		zap.InfoLevel.String(),
		zap.WarnLevel.String(),
		zap.ErrorLevel.String(),
	}

	kongOptions = []kong.Option{
		kong.Description("Benchmarks the Airbnb listings and reviews queries against MongoDB-compatible backends."),
		kong.Vars{
			"enum_log_level": strings.Join(logLevels, ","),
			"help_log_level": fmt.Sprintf("Log level: '%s'.", strings.Join(logLevels, "', '")),
			"help_import":    "Import the dataset before benchmarking: 'on', 'off' or as set in 'config'.",
		},
	}
)

func main() {
	kong.Parse(&cli, kongOptions...)

	run()
}

func run() {
	runID := uuid.NewString()

	level, err := zapcore.ParseLevel(cli.LogLevel)
	if err != nil {
		log.Fatal(err)
	}

	logging.Setup(level, runID)
	l := zap.S()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		l.Fatalf("Failed to load configuration: %v", err)
	}

	switch cli.Import {
	case "on":
		cfg.Import.Enabled = true
	case "off":
		cfg.Import.Enabled = false
	}
	if err = cfg.Validate(); err != nil {
		l.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := bench.NewSink(cfg.MetricsFile)
	if err != nil {
		l.Fatalf("Failed to create metrics file: %v", err)
	}

	backends := make([]*backend.Backend, 0, len(cfg.BackendIDs()))
	for _, id := range cfg.BackendIDs() {
		backends = append(backends, backend.New(id, cfg.Connections[id], cfg.Database, l))
	}

	opts := runner.Options{
		Repetitions:     cfg.Repetitions,
		JoinRepetitions: cfg.JoinRepetitions,
		OutputDir:       cfg.OutputDir,
	}
	if cfg.Import.Enabled {
		opts.Import = []importer.Source{
			{Collection: runner.ListingsCollection, Folder: cfg.Import.ListingsFolder, ChunkSize: cfg.Import.ListingsChunkSize},
			{Collection: runner.ReviewsCollection, Folder: cfg.Import.ReviewsFolder, ChunkSize: cfg.Import.ReviewsChunkSize},
		}
	}

	res, err := runner.New(opts, sink, l).Run(ctx, backends)
	if cerr := sink.Close(); cerr != nil {
		l.Errorf("Failed to close metrics file: %v", cerr)
	}
	if err != nil {
		l.Fatalf("Benchmark aborted: %v", err)
	}

	l.Infof("Benchmarking completed. %d results saved to %s", len(res), sink.Path())

	if cfg.Publish.Bucket == "" {
		return
	}

	p, err := publish.NewS3Publisher(ctx, publish.S3Config{
		Bucket:    cfg.Publish.Bucket,
		Region:    cfg.Publish.Region,
		Endpoint:  cfg.Publish.Endpoint,
		PathStyle: cfg.Publish.PathStyle,
		Prefix:    cfg.Publish.Prefix,
	}, l)
	if err != nil {
		l.Errorf("Failed to publish results: %v", err)
		return
	}

	if _, err = p.Publish(ctx, runID, sink.Path(), cfg.OutputDir); err != nil {
		l.Errorf("Failed to publish results: %v", err)
	}
}

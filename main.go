package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/mcncl/txpool2json/internal/config"
	"github.com/mcncl/txpool2json/internal/driver"
	"github.com/mcncl/txpool2json/internal/errors"
	"github.com/mcncl/txpool2json/internal/formatter"
	"github.com/mcncl/txpool2json/internal/metrics"
	"github.com/mcncl/txpool2json/internal/parser"
)

// CLI defines the command-line interface
var CLI struct {
	Input           string `help:"Path to a txpool dump. If not specified, reads from stdin." short:"i" type:"path"`
	Output          string `help:"Path to the JSON output file. If not specified, writes to stdout." short:"o" type:"path"`
	Config          string `help:"Path to config file. If not specified, searches for .txpool2json.yml upwards from the current directory." short:"c" type:"path"`
	Pretty          bool   `help:"Indent the JSON output."`
	HexMode         string `help:"How to render hex literals: 'string' keeps the 0x text, 'number' emits safe values as numbers." placeholder:"MODE"`
	MetricsEndpoint string `help:"Push gateway that receives txpool metrics (default http://localhost:9091)." env:"TXPOOL_METRICS_ENDPOINT" placeholder:"URL"`
	NoMetrics       bool   `help:"Do not export metrics; log them locally instead."`
	Debug           bool   `help:"Enable debug logging." short:"d"`
	Version         bool   `help:"Show version information." short:"v"`
}

// Context holds the runtime context
type Context struct {
	Debug  bool
	Config *config.Config
	Logger *slog.Logger
}

// Version information
const (
	Version = "0.1.0"
)

func main() {
	// Parse CLI arguments with Kong
	app := kong.Must(&CLI,
		kong.Name("txpool2json"),
		kong.Description("Convert txpool debug dumps (cast txpool content/inspect) to JSON"),
		kong.UsageOnError(),
	)

	if _, err := app.Parse(os.Args[1:]); err != nil {
		// If there's an error parsing arguments, the usage will already be shown by kong.UsageOnError()
		os.Exit(1)
	}

	// Show version and exit if requested
	if CLI.Version {
		fmt.Printf("txpool2json version %s\n", Version)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
		fmt.Fprintf(os.Stderr, "\nFor help, run: txpool2json --help\n")
		os.Exit(1)
	}

	ctx := &Context{
		Debug:  cfg.Dev.Debug,
		Config: cfg,
		Logger: newLogger(os.Stderr, cfg.Dev.Debug),
	}
	slog.SetDefault(ctx.Logger)

	src, err := readInput()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
		fmt.Fprintf(os.Stderr, "\nFor help, run: txpool2json --help\n")
		os.Exit(1)
	}

	if err := run(ctx, src); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", driver.Diagnostic(src, err))
		os.Exit(1)
	}
}

// loadConfig resolves the config file and overlays the command line
func loadConfig() (*config.Config, error) {
	configPath := CLI.Config
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	cfg, err := config.LoadConfigWithCLI(configPath, config.Overrides{
		MetricsEndpoint: CLI.MetricsEndpoint,
		NoMetrics:       CLI.NoMetrics,
		Pretty:          CLI.Pretty,
		HexMode:         CLI.HexMode,
		Output:          CLI.Output,
		Debug:           CLI.Debug,
	})
	if err != nil {
		return nil, errors.NewConfigError("failed to load configuration", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// run converts src, then waits up to the flush timeout for the metrics push
func run(ctx *Context, src string) error {
	cfg := ctx.Config
	logger := ctx.Logger
	if logger == nil {
		logger = slog.Default()
	}

	collector := newCollector(cfg, logger)
	d := driver.New(collector, renderOptions(cfg), logger)

	out := driver.Writer(os.Stdout)
	if cfg.Output.Path != "" {
		out = driver.File(cfg.Output.Path)
	}

	res, err := d.Run(context.Background(), src, out)

	waitCtx, cancel := context.WithTimeout(context.Background(), cfg.Metrics.FlushTimeout)
	defer cancel()
	if werr := collector.Wait(waitCtx); werr != nil {
		logger.Warn("gave up waiting for metrics export", "job_id", res.JobID, "error", werr)
	}

	if err != nil {
		return err
	}
	if cfg.Output.Path != "" {
		logger.Info("JSON written", "path", cfg.Output.Path, "job_id", res.JobID)
	}
	return nil
}

func newCollector(cfg *config.Config, logger *slog.Logger) *metrics.Collector {
	opts := []metrics.CollectorOption{metrics.WithFlushTimeout(cfg.Metrics.FlushTimeout)}
	if !cfg.Metrics.Enabled {
		return metrics.NewCollector(nil, logger, opts...)
	}

	exporter := metrics.NewPushExporter(cfg.Metrics.Endpoint, cfg.Metrics.Job)
	logger.Debug("exporting metrics", "endpoint", exporter.Endpoint(), "job", cfg.Metrics.Job)
	return metrics.NewCollector(exporter, logger, opts...)
}

func renderOptions(cfg *config.Config) formatter.Options {
	return formatter.Options{
		Pretty:      cfg.Render.Pretty,
		Indent:      cfg.Render.Indent,
		Hex:         formatter.HexMode(cfg.Render.HexMode),
		Transparent: cfg.Render.Transparent,
	}
}

// readInput reads the whole dump from file or stdin
func readInput() (string, error) {
	if CLI.Input != "" {
		return parser.ReadFile(CLI.Input)
	}

	// Check if stdin has data
	stdinInfo, err := os.Stdin.Stat()
	if err != nil {
		return "", errors.NewInputError("failed to access stdin", err)
	}

	if (stdinInfo.Mode() & os.ModeCharDevice) != 0 {
		// Terminal is interactive (not piped)
		return "", errors.NewInputError("no input provided", errors.ErrNoInput)
	}

	return parser.ReadAll(os.Stdin)
}

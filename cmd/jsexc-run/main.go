// jsexc-run loads JavaScript into an in-process page and reports every
// uncaught exception and unhandled promise rejection it raises.
//
// Usage:
//
//	jsexc-run -c page.yaml
//	jsexc-run app.js vendor.js
//	jsexc-run -c page.toml --cxdb-addr localhost:9009 --fail-on-exception
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev"

type flags struct {
	configPath      string
	verbose         bool
	logLevel        string
	settle          time.Duration
	cxdbAddr        string
	metricsAddr     string
	failOnException bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "jsexc-run [script.js ...]",
		Short: "Run scripts in a page and report their exceptions",
		Long: `jsexc-run hosts a page with a main realm and optional frames, runs
the configured scripts and reports uncaught exceptions and unhandled promise
rejections through the configured sinks.

Scripts given as arguments run in the main realm after those in the config.

Examples:
  # Run a page description
  jsexc-run -c page.yaml

  # Run scripts directly, printing stacks
  jsexc-run -v app.js

  # Persist to cxdb and fail CI on any exception
  jsexc-run -c page.yaml --cxdb-addr localhost:9009 --fail-on-exception`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, f, args)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Page config file (.yaml, .yml or .toml)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Print stack traces of captured exceptions")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	cmd.Flags().DurationVar(&f.settle, "settle", 0, "Time realms may keep running timers after their scripts (overrides config)")
	cmd.Flags().StringVar(&f.cxdbAddr, "cxdb-addr", "", "cxdb address (overrides config)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running (overrides config)")
	cmd.Flags().BoolVar(&f.failOnException, "fail-on-exception", false, "Exit non-zero if any exception was captured")

	return cmd
}

func runRoot(cmd *cobra.Command, f *flags, args []string) error {
	cfg, err := resolveConfig(cmd, f, args)
	if err != nil {
		return err
	}

	logger, err := newLogger(f.logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := runPage(ctx, cfg, runEnv{logger: logger, out: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	if f.failOnException && res.Captured > 0 {
		return fmt.Errorf("%d exception(s) captured", res.Captured)
	}
	return nil
}

// resolveConfig loads the config file, if any, and applies flags and args.
func resolveConfig(cmd *cobra.Command, f *flags, args []string) (*Config, error) {
	cfg := &Config{}
	if f.configPath != "" {
		loaded, err := LoadConfig(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if len(args) == 0 {
		return nil, fmt.Errorf("nothing to run: pass --config or script files")
	}

	for _, path := range args {
		cfg.Page.Scripts = append(cfg.Page.Scripts, ScriptConfig{Path: path})
	}
	if cmd.Flags().Changed("settle") {
		cfg.Settle = Duration(f.settle)
	}
	if f.cxdbAddr != "" {
		cfg.Sinks.CXDB.Addr = f.cxdbAddr
	}
	if f.metricsAddr != "" {
		cfg.Sinks.Metrics.Addr = f.metricsAddr
	}
	if f.verbose {
		cfg.Sinks.Stderr.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logConfig := zap.NewProductionConfig()
	logConfig.Level = zap.NewAtomicLevelAt(lvl)
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

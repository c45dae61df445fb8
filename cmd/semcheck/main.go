// Package main is the entry point for the semcheck binary. It provides a
// CLI that evaluates live telemetry samples against a resolved
// semantic-convention registry and reports severity-ranked advice.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/polisai/semcheck/pkg/checker"
	"github.com/polisai/semcheck/pkg/config"
	"github.com/polisai/semcheck/pkg/ingest"
	"github.com/polisai/semcheck/pkg/logging"
	"github.com/polisai/semcheck/pkg/sample"
	"github.com/polisai/semcheck/pkg/semconv"
	"github.com/polisai/semcheck/pkg/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "semcheck",
		Short: "Live-check telemetry against semantic conventions",
		Long: `semcheck evaluates live telemetry samples (attributes, metrics and metric
data points) against a resolved semantic-convention registry and reports
structured advice: missing attributes, type mismatches, undefined enum
variants, deprecation, instability and custom Rego policy findings.`,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newCheckCmd())
	return rootCmd
}

func newCheckCmd() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run a live check over a sample stream",
		Example: `  semcheck check --registry registry.yaml --input samples.txt
  semcheck check --registry registry.yaml --otlp-grpc :4317
  semcheck check --registry registry.yaml --input samples.yaml --format yaml --policy-dir ./policies`,
		RunE: runCheck,
	}

	flags := checkCmd.Flags()
	flags.StringP("config", "c", "", "Path to configuration file (YAML)")
	flags.StringP("registry", "r", "", "Path to the resolved registry (YAML)")
	flags.StringP("input", "i", "", "Sample input file, or - for stdin")
	flags.String("format", "", "Input format: text, json or yaml")
	flags.StringP("output", "o", "", "Report output file (default stdout)")
	flags.String("report-format", "text", "Report format: text or json")
	flags.String("policy-dir", "", "Directory of custom *.rego advice policies")
	flags.String("advice-preprocessor", "", "jq filter applied to the session context before policy evaluation")
	flags.Bool("no-policy", false, "Disable the Rego policy advisor")
	flags.Bool("fail-fast", false, "Stop at the first sample carrying a violation")
	flags.String("otlp-grpc", "", "Listen address for OTLP metric ingestion over gRPC")
	flags.Bool("watch", false, "Re-run the check whenever the input file changes")
	flags.String("metrics-address", "", "Listen address for the prometheus /metrics endpoint")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("log-pretty", false, "Human-readable log output")

	return checkCmd
}

// runOptions is the merged CLI + config file view a run executes with.
type runOptions struct {
	cfg          *config.Config
	output       string
	reportFormat string
	watch        bool
	failFast     bool
}

func runCheck(cmd *cobra.Command, _ []string) error {
	opts, err := mergeOptions(cmd)
	if err != nil {
		return err
	}

	logging.SetupLogger(logging.Config{
		Level:  opts.cfg.Logging.Level,
		Pretty: opts.cfg.Logging.Pretty,
	})

	if opts.cfg.Registry.Path == "" {
		return fmt.Errorf("a registry path is required (--registry or SEMCHECK_REGISTRY)")
	}
	registry, err := semconv.LoadRegistry(opts.cfg.Registry.Path)
	if err != nil {
		return err
	}
	log.Info().
		Str("registry", opts.cfg.Registry.Path).
		Int("attributes", registry.AttributeCount()).
		Int("metrics", registry.MetricCount()).
		Msg("registry loaded")

	if addr := opts.cfg.Telemetry.MetricsAddress; addr != "" {
		go serveMetrics(addr)
	}

	ctx := cmd.Context()
	if opts.cfg.Ingest.OTLPGRPCAddress != "" {
		return runListenMode(ctx, registry, opts)
	}
	if opts.cfg.Ingest.Input == "" {
		return fmt.Errorf("an input file is required unless --otlp-grpc is set")
	}
	if opts.watch {
		return runWatchMode(ctx, registry, opts)
	}

	report, err := runOnce(ctx, registry, opts)
	if err != nil {
		return err
	}
	if err := writeReport(report, opts); err != nil {
		return err
	}
	if report.HasViolations() {
		return fmt.Errorf("live check found %d violations", report.Statistics.ViolationCount())
	}
	return nil
}

func mergeOptions(cmd *cobra.Command) (*runOptions, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	// Flags set explicitly override the config file.
	if v, _ := cmd.Flags().GetString("registry"); v != "" {
		cfg.Registry.Path = v
	}
	if v, _ := cmd.Flags().GetString("input"); v != "" {
		cfg.Ingest.Input = v
	}
	if v, _ := cmd.Flags().GetString("format"); v != "" {
		cfg.Ingest.Format = v
	}
	if v, _ := cmd.Flags().GetString("policy-dir"); v != "" {
		cfg.Policies.Dir = v
	}
	if v, _ := cmd.Flags().GetString("advice-preprocessor"); v != "" {
		cfg.Policies.Preprocessor = v
	}
	if v, _ := cmd.Flags().GetBool("no-policy"); v {
		cfg.Policies.Disabled = true
	}
	if v, _ := cmd.Flags().GetString("otlp-grpc"); v != "" {
		cfg.Ingest.OTLPGRPCAddress = v
	}
	if v, _ := cmd.Flags().GetString("metrics-address"); v != "" {
		cfg.Telemetry.MetricsAddress = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetBool("log-pretty"); v {
		cfg.Logging.Pretty = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	output, _ := cmd.Flags().GetString("output")
	reportFormat, _ := cmd.Flags().GetString("report-format")
	if reportFormat != "text" && reportFormat != "json" {
		return nil, fmt.Errorf("unknown report format %q", reportFormat)
	}
	watch, _ := cmd.Flags().GetBool("watch")
	failFast, _ := cmd.Flags().GetBool("fail-fast")

	return &runOptions{
		cfg:          cfg,
		output:       output,
		reportFormat: reportFormat,
		watch:        watch,
		failFast:     failFast,
	}, nil
}

func newChecker(ctx context.Context, registry *semconv.Registry, opts *runOptions) (*checker.LiveChecker, error) {
	return checker.New(ctx, checker.Options{
		Registry:         registry,
		PolicyDir:        opts.cfg.Policies.Dir,
		PreprocessorPath: opts.cfg.Policies.Preprocessor,
		DisablePolicy:    opts.cfg.Policies.Disabled,
	})
}

// runOnce evaluates the configured input file with a fresh session.
func runOnce(ctx context.Context, registry *semconv.Registry, opts *runOptions) (*checker.Report, error) {
	samples, err := readInput(opts.cfg.Ingest.Input, opts.cfg.Ingest.Format)
	if err != nil {
		return nil, err
	}

	lc, err := newChecker(ctx, registry, opts)
	if err != nil {
		return nil, err
	}

	report := checker.NewReport()
	for _, s := range samples {
		if err := lc.CheckSample(ctx, s); err != nil {
			// A broken policy is a configuration error the operator must
			// fix; it aborts only the current sample.
			log.Error().Err(err).Msg("sample evaluation failed")
			continue
		}
		report.Add(s)
		if opts.failFast && lc.Statistics().ViolationCount() > 0 {
			log.Warn().Msg("violation found, stopping early")
			break
		}
	}

	stats := lc.Statistics()
	stats.Finalize(registry)
	report.Finish(stats)
	return report, nil
}

// runWatchMode re-runs the evaluation whenever the input file changes.
func runWatchMode(ctx context.Context, registry *semconv.Registry, opts *runOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(opts.cfg.Ingest.Input); err != nil {
		return fmt.Errorf("watch %s: %w", opts.cfg.Ingest.Input, err)
	}

	run := func() {
		report, err := runOnce(ctx, registry, opts)
		if err != nil {
			log.Error().Err(err).Msg("live check failed")
			return
		}
		if err := writeReport(report, opts); err != nil {
			log.Error().Err(err).Msg("write report failed")
		}
	}
	run()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
				log.Info().Str("file", event.Name).Msg("input changed, re-running")
				run()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("watch error")
		case <-sigs:
			log.Info().Msg("shutting down")
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// runListenMode ingests OTLP metrics over gRPC until interrupted, then
// renders the report for everything received.
func runListenMode(ctx context.Context, registry *semconv.Registry, opts *runOptions) error {
	lc, err := newChecker(ctx, registry, opts)
	if err != nil {
		return err
	}
	report := checker.NewReport()

	// The policy advisor holds mutable engine state; gRPC handlers are
	// concurrent, so sample evaluation is serialized here.
	var mu sync.Mutex
	var stopOnce sync.Once
	stopCh := make(chan struct{})
	receiver := ingest.NewReceiver(func(s sample.Sample) {
		mu.Lock()
		defer mu.Unlock()
		if err := lc.CheckSample(ctx, s); err != nil {
			log.Error().Err(err).Msg("sample evaluation failed")
			return
		}
		report.Add(s)
		if opts.failFast && lc.Statistics().ViolationCount() > 0 {
			log.Warn().Msg("violation found, stopping early")
			stopOnce.Do(func() { close(stopCh) })
		}
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", opts.cfg.Ingest.OTLPGRPCAddress).Msg("listening for OTLP metrics")
		errCh <- receiver.ListenAndServe(opts.cfg.Ingest.OTLPGRPCAddress)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stopCh:
	case <-sigs:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	receiver.Stop()

	mu.Lock()
	defer mu.Unlock()
	stats := lc.Statistics()
	stats.Finalize(registry)
	report.Finish(stats)
	if err := writeReport(report, opts); err != nil {
		return err
	}
	if report.HasViolations() {
		return fmt.Errorf("live check found %d violations", report.Statistics.ViolationCount())
	}
	return nil
}

func readInput(path, format string) ([]sample.Sample, error) {
	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		//nolint:gosec // Input path is supplied by the operator.
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input %s: %w", path, err)
		}
		defer file.Close()
		reader = file
	}
	return ingest.ReadSamples(reader, format)
}

func writeReport(report *checker.Report, opts *runOptions) error {
	var out io.Writer = os.Stdout
	if opts.output != "" {
		//nolint:gosec // Output path is supplied by the operator.
		file, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create output %s: %w", opts.output, err)
		}
		defer file.Close()
		out = file
	}
	if opts.reportFormat == "json" {
		return report.WriteJSON(out)
	}
	return report.WriteText(out)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("address", addr).Msg("serving metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server failed")
	}
}

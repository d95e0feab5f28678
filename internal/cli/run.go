package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/stampede/internal/auth"
	"github.com/wesleyorama2/stampede/internal/config"
	stampedehttp "github.com/wesleyorama2/stampede/internal/http"
	"github.com/wesleyorama2/stampede/internal/performance"
	"github.com/wesleyorama2/stampede/internal/performance/metrics"
	"github.com/wesleyorama2/stampede/internal/performance/output"
	"github.com/wesleyorama2/stampede/internal/scenario"
)

// Environment variables read when no credentials are configured.
const (
	envUsername = "STAMPEDE_USERNAME"
	envPassword = "STAMPEDE_PASSWORD"
)

// ErrThresholdsFailed is returned when a run finished but did not pass.
var ErrThresholdsFailed = errors.New("one or more thresholds failed")

type runOptions struct {
	configFile     string
	scenario       string
	vus            int
	duration       string
	iterations     int64
	baseURL        string
	endpoints      []string
	username       string
	password       string
	sleep          string
	gracePeriod    string
	setupTimeout   string
	timeout        time.Duration
	insecure       bool
	jsonPath       string
	jsonDetailed   bool
	prometheusPath string
	maxFailureRate float64
	quiet          bool
	verbose        bool
	noColor        bool

	// logger overrides the logger built from the verbosity flags
	logger *zap.Logger
}

func newRunCmd(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario against a target",
		Long: `Run a registered scenario on a fixed number of virtual users for a fixed duration.

Config file mode:
  stampede run --config run.yaml

Quick CLI mode:
  stampede run --base-url http://localhost:8000 \
    --scenario browse-auth-once \
    --username user@example.com --password 123 \
    --vus 200 --duration 1m

Flags override values from the config file. The process exits non-zero when
setup fails or a threshold (including --max-failure-rate) is not met.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Run file (YAML or JSON)")
	flags.StringVar(&opts.scenario, "scenario", "", "Scenario to run (default \"browse\")")
	flags.IntVar(&opts.vus, "vus", 0, "Number of virtual users")
	flags.StringVar(&opts.duration, "duration", "", "Run duration (e.g., 1m, 30s)")
	flags.Int64Var(&opts.iterations, "iterations", 0, "Maximum iterations per VU (0 = no limit)")
	flags.StringVar(&opts.baseURL, "base-url", "", "Base URL of the target")
	flags.StringSliceVar(&opts.endpoints, "endpoint", nil, "Endpoint to browse (repeatable)")
	flags.StringVar(&opts.username, "username", "", "Login username (or "+envUsername+")")
	flags.StringVar(&opts.password, "password", "", "Login password (or "+envPassword+")")
	flags.StringVar(&opts.sleep, "sleep", "", "Constant pause between iterations (0 disables pacing, default 1s)")
	flags.StringVar(&opts.gracePeriod, "grace-period", "", "Time VUs get to stop after the run ends (default 30s)")
	flags.StringVar(&opts.setupTimeout, "setup-timeout", "", "Timeout for scenario setup (default 1m)")
	flags.DurationVarP(&opts.timeout, "timeout", "t", 0, "Request timeout (default 30s)")
	flags.BoolVar(&opts.insecure, "insecure", false, "Skip TLS certificate verification")
	flags.StringVar(&opts.jsonPath, "json", "", "Write the JSON result to a file (\"-\" for stdout)")
	flags.BoolVar(&opts.jsonDetailed, "json-detailed", false, "Write the full summary instead of the result record")
	flags.StringVar(&opts.prometheusPath, "prometheus", "", "Write a Prometheus textfile")
	flags.Float64Var(&opts.maxFailureRate, "max-failure-rate", 0, "Fail the run when the check failure rate exceeds this value")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Only print whether the run passed")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

// runScenario loads the configuration, runs the scenario and writes reports.
func runScenario(cmd *cobra.Command, opts *runOptions) error {
	stdout := cmd.OutOrStdout()
	jsonToStdout := opts.jsonPath == "-"
	reportWriter := stdout
	if jsonToStdout {
		reportWriter = cmd.ErrOrStderr()
	}

	report := output.NewConsoleReport(output.ConsoleConfig{
		Writer:  reportWriter,
		Quiet:   opts.quiet,
		NoColor: opts.noColor,
	})

	file, runConfig, err := buildRunFile(cmd, opts)
	if err != nil {
		report.PrintError("config", err)
		return &performance.ConfigError{Err: err}
	}

	logger := opts.logger
	if logger == nil {
		logger, err = newLogger(opts.verbose, opts.quiet)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()
	}

	exec := stampedehttp.NewExecutor(file.ClientConfig(), file.ExecutorOptions()...)
	defer exec.Close()

	registry := scenario.NewRegistry()
	if err := scenario.RegisterBuiltins(registry, file.Target(), exec); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report.PrintHeader(output.RunInfo{
		Scenario:   runConfig.Scenario,
		BaseURL:    file.BaseURL,
		VUs:        runConfig.VUs,
		Duration:   runConfig.Duration,
		Iterations: runConfig.Iterations,
		Pacing:     runConfig.Pacing.String(),
	})

	summary, runErr := performance.NewScheduler(registry, logger).Run(ctx, runConfig)
	if summary == nil {
		report.PrintError("config", runErr)
		return runErr
	}

	report.PrintSummary(summary)

	if err := writeReports(stdout, file.Output, summary); err != nil {
		report.PrintError("report", err)
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		return runErr
	}
	if !summary.Passed {
		return ErrThresholdsFailed
	}
	return nil
}

// buildRunFile merges the config file (if any) with the flags that were set,
// applies defaults and validates the result.
func buildRunFile(cmd *cobra.Command, opts *runOptions) (*config.RunFile, performance.RunConfig, error) {
	file := &config.RunFile{}
	if opts.configFile != "" {
		loaded, err := config.LoadConfig(opts.configFile)
		if err != nil {
			return nil, performance.RunConfig{}, err
		}
		file = loaded
	}

	if err := applyFlags(cmd, opts, file); err != nil {
		return nil, performance.RunConfig{}, err
	}

	config.ApplyDefaults(file)
	if err := file.Validate(); err != nil {
		return nil, performance.RunConfig{}, err
	}

	runConfig, err := file.RunConfig()
	if err != nil {
		return nil, performance.RunConfig{}, err
	}
	return file, runConfig, nil
}

// applyFlags copies the flags the user set into file.
func applyFlags(cmd *cobra.Command, opts *runOptions, file *config.RunFile) error {
	changed := cmd.Flags().Changed

	if changed("scenario") {
		file.Scenario = opts.scenario
	}
	if changed("vus") {
		file.VUs = opts.vus
	}
	if changed("duration") {
		file.Duration = opts.duration
	}
	if changed("iterations") {
		file.Iterations = opts.iterations
	}
	if changed("base-url") {
		file.BaseURL = opts.baseURL
	}
	if changed("endpoint") {
		file.Endpoints = opts.endpoints
	}
	if changed("grace-period") {
		file.GracePeriod = opts.gracePeriod
	}
	if changed("setup-timeout") {
		file.SetupTimeout = opts.setupTimeout
	}
	if changed("timeout") {
		file.Settings.Timeout = config.Duration(opts.timeout)
	}
	if changed("insecure") {
		file.Settings.InsecureSkipVerify = opts.insecure
	}
	if changed("json") {
		file.Output.JSON = opts.jsonPath
	}
	if changed("json-detailed") {
		file.Output.DetailedJSON = opts.jsonDetailed
	}
	if changed("prometheus") {
		file.Output.Prometheus = opts.prometheusPath
	}

	if changed("sleep") {
		sleep, err := config.ParseDurationString(opts.sleep)
		if err != nil {
			return fmt.Errorf("invalid --sleep: %w", err)
		}
		if sleep <= 0 {
			file.Pacing = &config.PacingConfig{Type: string(performance.PacingNone)}
		} else {
			file.Pacing = &config.PacingConfig{Type: string(performance.PacingConstant), Duration: opts.sleep}
		}
	}

	applyCredentials(cmd, opts, file)

	if changed("max-failure-rate") {
		if opts.maxFailureRate < 0 || opts.maxFailureRate > 1 {
			return fmt.Errorf("invalid --max-failure-rate %v: must be between 0 and 1", opts.maxFailureRate)
		}
		if file.Thresholds == nil {
			file.Thresholds = &metrics.ThresholdsConfig{}
		}
		file.Thresholds.Checks = append(file.Thresholds.Checks,
			"rate <= "+strconv.FormatFloat(opts.maxFailureRate, 'f', -1, 64))
	}

	return nil
}

// applyCredentials takes credentials from flags, then from the environment
// when the file has none.
func applyCredentials(cmd *cobra.Command, opts *runOptions, file *config.RunFile) {
	username, password := opts.username, opts.password
	if !cmd.Flags().Changed("username") {
		username = os.Getenv(envUsername)
	}
	if !cmd.Flags().Changed("password") {
		password = os.Getenv(envPassword)
	}
	if username == "" && password == "" {
		return
	}

	if file.Credentials == nil {
		file.Credentials = &auth.Credentials{}
	}
	if username != "" && (cmd.Flags().Changed("username") || file.Credentials.Username == "") {
		file.Credentials.Username = username
	}
	if password != "" && (cmd.Flags().Changed("password") || file.Credentials.Password == "") {
		file.Credentials.Password = password
	}
}

// writeReports writes the JSON and Prometheus files selected in out.
func writeReports(stdout io.Writer, out config.OutputConfig, summary *metrics.RunSummary) error {
	var errs []error

	switch out.JSON {
	case "":
	case "-":
		write := output.WriteJSON
		if out.DetailedJSON {
			write = output.WriteSummaryJSON
		}
		if err := write(stdout, summary); err != nil {
			errs = append(errs, err)
		}
	default:
		if err := output.WriteJSONFile(out.JSON, summary, out.DetailedJSON); err != nil {
			errs = append(errs, err)
		}
	}

	if out.Prometheus != "" {
		if err := output.WritePrometheus(out.Prometheus, summary); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// newLogger builds a production logger, or a development one when verbose.
func newLogger(verbose, quiet bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	if quiet {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

// commandContext returns the command's context, or a background context.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

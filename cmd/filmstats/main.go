package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"filmstats/pkg/config"
	"filmstats/pkg/directors"
	"filmstats/pkg/metrics"
	"filmstats/pkg/orchestrate"
	"filmstats/pkg/watch"
)

const version = "0.4.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runRun(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "list-directors":
		runListDirectors(os.Args[2:])
	case "version":
		fmt.Printf("filmstats %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `filmstats - Film director statistics scraper

Usage:
  filmstats <command> [options]

Commands:
  run             Run one statistics pass over the director roster
  watch           Rerun the pipeline on a schedule
  validate        Validate configuration file and roster
  list-directors  Show the parsed director roster
  version         Show version info

Run 'filmstats <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file
func loadConfig(path string) (*config.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// runRun handles the run subcommand
func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	directorsFile := fs.String("directors", "", "Director roster file (overrides config)")
	outputFile := fs.String("output", "", "Output CSV path (overrides config)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	fresh := fs.Bool("fresh", false, "Discard the persistent film cache before running")
	pprofAddr := fs.String("pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")
	metricsAddr := fs.String("metrics", "", "Prometheus metrics address (overrides config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: filmstats run [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  filmstats run -directors directors.txt\n")
		fmt.Fprintf(os.Stderr, "  filmstats run -config config.yaml -output stats.csv\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	executeRun(*configFile, *directorsFile, *outputFile, *logLevel, *pprofAddr, *metricsAddr, *fresh)
}

// runWatch handles the watch subcommand
func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	directorsFile := fs.String("directors", "", "Director roster file (overrides config)")
	outputFile := fs.String("output", "", "Output CSV path (overrides config)")
	interval := fs.String("interval", "24h", "Run interval (e.g., 30m, 1h, 24h, 7d)")
	stateDir := fs.String("state", "", "State directory for cache and watch state (overrides config)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	pprofAddr := fs.String("pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")
	metricsAddr := fs.String("metrics", "", "Prometheus metrics address (overrides config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: filmstats watch [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  filmstats watch --interval 24h\n")
		fmt.Fprintf(os.Stderr, "  filmstats watch -directors directors.txt --interval 7d\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	executeWatch(*configFile, *directorsFile, *outputFile, *stateDir, *interval, *logLevel, *pprofAddr, *metricsAddr)
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: filmstats validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	// The roster is part of the effective configuration: a run with an
	// unreadable roster file cannot do anything useful.
	quiet := logrus.New()
	quiet.SetOutput(stderr)
	quiet.SetLevel(logrus.WarnLevel)

	roster, err := directors.Load(appCfg.DirectorsFile, appCfg.BaseURL, logrus.NewEntry(quiet))
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: directors file: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "OK: directors file '%s' contains %d entries\n", appCfg.DirectorsFile, len(roster))

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// runListDirectors handles the list-directors subcommand
func runListDirectors(args []string) {
	fs := flag.NewFlagSet("list-directors", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: filmstats list-directors [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doListDirectors(*configFile, os.Stdout, os.Stderr))
}

// doListDirectors prints the parsed roster with the filmography URL each
// entry resolves to. Returns exit code (0 = success, 1 = error).
func doListDirectors(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if _, err := appCfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	quiet := logrus.New()
	quiet.SetOutput(stderr)
	quiet.SetLevel(logrus.WarnLevel)

	roster, err := directors.Load(appCfg.DirectorsFile, appCfg.BaseURL, logrus.NewEntry(quiet))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Directors in %s:\n\n", appCfg.DirectorsFile)
	for _, d := range roster {
		fmt.Fprintf(stdout, "  %s\n", d.Name)
		fmt.Fprintf(stdout, "    %s\n", d.FilmographyURL)
		fmt.Fprintln(stdout)
	}
	fmt.Fprintf(stdout, "%d directors\n", len(roster))
	return 0
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}

	return log
}

// loadAndValidateConfig loads the config file, validates it, and logs warnings.
func loadAndValidateConfig(configFile string, log *logrus.Logger) *config.AppConfig {
	log.Infof("Loading configuration from %s", configFile)
	appCfg, err := loadConfig(configFile)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	return appCfg
}

// applyPathOverrides applies CLI flag overrides for the roster and output paths.
func applyPathOverrides(appCfg *config.AppConfig, directorsFile, outputFile string, log *logrus.Logger) {
	if directorsFile != "" {
		appCfg.DirectorsFile = directorsFile
		log.Infof("Directors file overridden via CLI flag: %s", directorsFile)
	}
	if outputFile != "" {
		appCfg.OutputFile = outputFile
		log.Infof("Output file overridden via CLI flag: %s", outputFile)
	}
}

// startPprof starts the pprof HTTP server if addr is non-empty.
func startPprof(addr string, log *logrus.Logger) {
	if addr != "" {
		go func() {
			log.Infof("Starting pprof server at http://%s/debug/pprof/", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.Errorf("pprof server error: %v", err)
			}
		}()
	}
}

// startMetrics serves the Prometheus endpoint if addr is non-empty.
func startMetrics(addr string, m *metrics.Metrics, log *logrus.Logger) {
	if addr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		log.Infof("Serving Prometheus metrics at http://%s/metrics", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("metrics server error: %v", err)
		}
	}()
}

// executeRun performs a single statistics run
func executeRun(configFile, directorsFile, outputFile, logLevelStr, pprofAddr, metricsAddr string, fresh bool) {
	runtime.SetBlockProfileRate(1000)
	runtime.SetMutexProfileFraction(1000)

	log := setupLogger(logLevelStr)
	appCfg := loadAndValidateConfig(configFile, log)
	applyPathOverrides(appCfg, directorsFile, outputFile, log)
	logAppConfig(appCfg, log)

	startPprof(pprofAddr, log)

	m := metrics.NewMetrics()
	if metricsAddr == "" {
		metricsAddr = appCfg.MetricsListenAddr
	}
	startMetrics(metricsAddr, m, log)

	// --- Global Context & Signal Handling ---
	var runCtx context.Context
	var cancelRun context.CancelFunc

	if appCfg.RunTimeout > 0 {
		log.Infof("Setting run timeout: %v", appCfg.RunTimeout)
		runCtx, cancelRun = context.WithTimeout(context.Background(), appCfg.RunTimeout)
	} else {
		runCtx, cancelRun = context.WithCancel(context.Background())
	}
	defer cancelRun()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		cancelRun()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()
	defer signal.Stop(sigChan)

	// --- Build & Run Pipeline ---
	pipeline, err := orchestrate.NewPipeline(appCfg, m, fresh, log.WithField("component", "pipeline"))
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}
	defer pipeline.Close()

	if appCfg.CacheEnabled {
		pipeline.StartCacheGC(runCtx)
	}

	results, err := pipeline.Execute(runCtx)

	// --- Exit ---
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Run cancelled gracefully.")
			os.Exit(0)
		} else if errors.Is(err, context.DeadlineExceeded) {
			log.Error("Run timed out (run timeout).")
			os.Exit(1)
		} else {
			log.Errorf("Run finished with error: %v", err)
			os.Exit(1)
		}
	}

	succeeded := 0
	for _, r := range results {
		if r.Err == nil {
			succeeded++
		}
	}
	log.Infof("Statistics written to %s (%d of %d directors with statistics)",
		pipeline.OutputPath(), succeeded, len(results))
	if appCfg.CacheEnabled {
		log.Infof("Film cache holds %d records", pipeline.CachedFilms())
	}
	os.Exit(0)
}

// executeWatch runs the watch scheduler
func executeWatch(configFile, directorsFile, outputFile, stateDir, intervalStr, logLevelStr, pprofAddr, metricsAddr string) {
	log := setupLogger(logLevelStr)

	interval, err := watch.ParseInterval(intervalStr)
	if err != nil {
		log.Fatalf("Invalid interval: %v", err)
	}
	log.Infof("Watch interval: %v", interval)

	appCfg := loadAndValidateConfig(configFile, log)
	applyPathOverrides(appCfg, directorsFile, outputFile, log)
	if stateDir != "" {
		appCfg.StateDir = stateDir
		log.Infof("State directory overridden via CLI flag: %s", stateDir)
	}

	// Repeated runs only pay off when films persist between them.
	appCfg.CacheEnabled = true
	log.Info("Film cache enabled for watch mode")

	startPprof(pprofAddr, log)

	m := metrics.NewMetrics()
	if metricsAddr == "" {
		metricsAddr = appCfg.MetricsListenAddr
	}
	startMetrics(metricsAddr, m, log)

	pipeline, err := orchestrate.NewPipeline(appCfg, m, false, log.WithField("component", "pipeline"))
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}
	defer pipeline.Close()

	gcCtx, cancelGC := context.WithCancel(context.Background())
	defer cancelGC()
	pipeline.StartCacheGC(gcCtx)

	scheduler := watch.NewScheduler(pipeline, appCfg.StateDir, interval, log.WithField("component", "watch"))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal %v, stopping watch...", sig)
		scheduler.Stop()
	}()

	if err := scheduler.Run(); err != nil {
		log.Fatalf("Watch scheduler error: %v", err)
	}

	log.Info("Watch mode stopped")
}

// logAppConfig logs the effective global configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config: BaseURL:%s, DirectorsFile:%s, OutputFile:%s",
		appCfg.BaseURL, appCfg.DirectorsFile, appCfg.OutputFile)
	log.Infof("Config Workers: Directors:%d, Films:%d",
		appCfg.DirectorWorkers, appCfg.FilmWorkers)
	log.Infof("Config Fetching: Attempts:%d, Backoff:%v, RequestDelay:%v, RespectRobots:%t",
		appCfg.MaxAttempts, appCfg.RetryBackoff, appCfg.RequestDelay, appCfg.RespectRobots)
	log.Infof("Config Cache: Enabled:%t, TTL:%v, MaxEntries:%d, StateDir:%s",
		appCfg.CacheEnabled, appCfg.CacheTTL, appCfg.CacheMaxEntries, appCfg.StateDir)
	log.Infof("Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v",
		appCfg.HTTPClientSettings.Timeout, appCfg.HTTPClientSettings.MaxIdleConns,
		appCfg.HTTPClientSettings.MaxIdleConnsPerHost, appCfg.HTTPClientSettings.IdleConnTimeout)
}

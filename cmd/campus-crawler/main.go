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
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"campus-crawler/pkg/config"
	"campus-crawler/pkg/orchestrate"
	"campus-crawler/pkg/server"
)

const version = "1.0.0"

func main() {
	// A bare invocation or leading flags mean "run".
	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") && !isHelpArg(os.Args[1]) {
		runCrawl(os.Args[1:])
		return
	}

	switch os.Args[1] {
	case "run":
		runCrawl(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("campus-crawler %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func isHelpArg(arg string) bool {
	return arg == "-h" || arg == "--help"
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `campus-crawler - College website crawler producing a JSON text corpus

Usage:
  campus-crawler [command] [options]

Commands:
  run         Crawl the configured site once and write the corpus (default)
  serve       Start the HTTP control endpoint (GET /api/scrape triggers a run)
  validate    Validate configuration file
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'campus-crawler <command> -h' for command-specific help.`)
}

// loadConfig loads the config file on top of the built-in defaults.
func loadConfig(path string) (*config.AppConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}

	return log
}

// validateConfig applies defaults and logs warnings. A fatal problem is returned.
func validateConfig(appCfg *config.AppConfig, log *logrus.Logger) error {
	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	return err
}

// runCrawl handles the run subcommand
func runCrawl(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file (defaults are used when it does not exist)")
	logLevel := fs.String("loglevel", "info", "Log level (trace, debug, info, warn, error)")
	baseURL := fs.String("base-url", "", "Override base_url from the config file")
	outputFile := fs.String("output", "", "Override output_file from the config file")
	writeVisitedLog := fs.Bool("write-visited-log", false, "Track crawl state and write a visited URLs log on completion")
	pprofAddr := fs.String("pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: campus-crawler run [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  campus-crawler run -config config.yaml\n")
		fmt.Fprintf(os.Stderr, "  campus-crawler -base-url https://coek.dypgroup.edu.in -output public/data.json\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := setupLogger(*logLevel, os.Stderr)
	log.Infof("Loading configuration from %s", *configFile)
	appCfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if *baseURL != "" {
		appCfg.BaseURL = *baseURL
	}
	if *outputFile != "" {
		appCfg.OutputFile = *outputFile
	}
	if *writeVisitedLog {
		appCfg.EnableStateStore = true
		appCfg.WriteVisitedLog = true
	}
	if err := validateConfig(appCfg, log); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logAppConfig(appCfg, log)
	startPprof(*pprofAddr, log)

	ctx, cancel := signalContext(log)
	defer cancel()

	os.Exit(doRun(ctx, appCfg, log))
}

// doRun performs one crawl run. Returns the process exit code.
func doRun(ctx context.Context, appCfg *config.AppConfig, log *logrus.Logger) int {
	orch, err := orchestrate.NewOrchestrator(appCfg, logrus.NewEntry(log))
	if err != nil {
		log.Errorf("Failed to initialize crawler: %v", err)
		return 1
	}
	defer func() {
		if err := orch.Close(); err != nil {
			log.Errorf("Error closing crawler resources: %v", err)
		}
	}()

	res, err := orch.Run(ctx)
	if err != nil {
		log.Errorf("Crawl could not start: %v", err)
		return 1
	}

	switch {
	case res.Success:
		log.Infof("Crawl completed successfully: %d routes written to %s", res.TotalRoutes, res.OutputFile)
		return 0
	case errors.Is(res.Err, context.Canceled):
		log.Warn("Crawl cancelled gracefully, previous corpus left untouched.")
		return 0
	case errors.Is(res.Err, context.DeadlineExceeded):
		log.Error("Crawl timed out (global timeout).")
		return 1
	default:
		log.Errorf("Crawl finished with error: %s", res.Error)
		return 1
	}
}

// runServe handles the serve subcommand
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file (defaults are used when it does not exist)")
	logLevel := fs.String("loglevel", "info", "Log level (trace, debug, info, warn, error)")
	listenAddr := fs.String("listen", "", "Override server.listen_addr, e.g. :3000")
	pprofAddr := fs.String("pprof", "", "pprof address, e.g. localhost:6060 (disabled by default)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: campus-crawler serve [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEndpoints:\n")
		fmt.Fprintf(os.Stderr, "  GET /api/scrape   run a crawl and write the corpus\n")
		fmt.Fprintf(os.Stderr, "  GET /api/status   progress of the active run and the last result\n")
		fmt.Fprintf(os.Stderr, "  GET /api/corpus   the last written corpus\n")
		fmt.Fprintf(os.Stderr, "  GET /health       liveness\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := setupLogger(*logLevel, os.Stderr)
	log.Infof("Loading configuration from %s", *configFile)
	appCfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if *listenAddr != "" {
		appCfg.Server.ListenAddr = *listenAddr
	}
	if err := validateConfig(appCfg, log); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logAppConfig(appCfg, log)
	startPprof(*pprofAddr, log)

	ctx, cancel := signalContext(log)
	defer cancel()

	os.Exit(doServe(ctx, appCfg, log))
}

// doServe runs the HTTP control endpoint until ctx is cancelled.
func doServe(ctx context.Context, appCfg *config.AppConfig, log *logrus.Logger) int {
	orch, err := orchestrate.NewOrchestrator(appCfg, logrus.NewEntry(log))
	if err != nil {
		log.Errorf("Failed to initialize crawler: %v", err)
		return 1
	}
	defer func() {
		if err := orch.Close(); err != nil {
			log.Errorf("Error closing crawler resources: %v", err)
		}
	}()

	srv := server.NewServer(appCfg.Server, appCfg.OutputFile, orch, log.WithField("component", "http"))
	if err := srv.Serve(ctx); err != nil {
		log.Errorf("HTTP server error: %v", err)
		return 1
	}
	return 0
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: campus-crawler validate [options]\n\nOptions:\n")
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
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stdout, "NOTE: %s not found, validating built-in defaults\n", configPath)
	}

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

	fmt.Fprintf(stdout, "OK: base_url %s, max_visited %d, output %s\n", appCfg.BaseURL, appCfg.MaxVisited, appCfg.OutputFile)
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// signalContext returns a context cancelled on SIGINT/SIGTERM. A second
// signal, or a stalled shutdown, forces exit.
func signalContext(log *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("PANIC in signal handler: %v", r)
			}
		}()
		var sig os.Signal
		select {
		case sig = <-sigChan:
		case <-ctx.Done():
			return
		}
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
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

// logAppConfig logs the effective configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config: BaseURL:%s, MaxVisited:%d, Output:%s, IgnoredRoutes:%d",
		appCfg.BaseURL, appCfg.MaxVisited, appCfg.OutputFile, len(appCfg.IgnoredRoutes))
	log.Infof("Config: Workers:%d, MaxReqs:%d, DelayPerHost:%v, RespectRobots:%t",
		appCfg.NumWorkers, appCfg.MaxRequests, appCfg.DelayPerHost, appCfg.RespectRobots)
	log.Infof("Config Retries: Max:%d, InitialDelay:%v, MaxDelay:%v",
		appCfg.MaxRetries, appCfg.InitialRetryDelay, appCfg.MaxRetryDelay)
	log.Infof("Config Timeouts: PerFetch:%v, GlobalCrawl:%v",
		appCfg.PerFetchTimeout, appCfg.GlobalCrawlTimeout)
	log.Infof("Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, IdleTimeout:%v",
		appCfg.HTTPClientSettings.Timeout, appCfg.HTTPClientSettings.MaxIdleConns,
		appCfg.HTTPClientSettings.MaxIdleConnsPerHost, appCfg.HTTPClientSettings.IdleConnTimeout)
	log.Infof("Config State: Enabled:%t, Dir:%s, VisitedLog:%t",
		appCfg.EnableStateStore, appCfg.StateDir, appCfg.WriteVisitedLog)
	log.Infof("Config Exports: MetadataYAML:%t, Markdown:'%s', Chunks:'%s'",
		appCfg.EnableMetadataYAML, appCfg.MarkdownOutputDir, appCfg.ChunksOutputFile)
}

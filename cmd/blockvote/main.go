package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abrezinsky/blockvote/internal/app"
	"github.com/abrezinsky/blockvote/internal/browser"
	"github.com/abrezinsky/blockvote/internal/config"
	"github.com/abrezinsky/blockvote/internal/logger"
)

var (
	version = "dev"
)

// options holds the command-line flags
type options struct {
	configPath  string
	port        int
	dbPath      string
	admin       string
	logLevel    string
	logFormat   string
	httpLogging bool
	noKeyboard  bool
	showVersion bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*options, map[string]bool, error) {
	defaults := config.Default()
	opts := &options{}

	fs.StringVar(&opts.configPath, "config", "", "YAML config file")
	fs.IntVar(&opts.port, "port", defaults.Port, "HTTP server port")
	fs.StringVar(&opts.dbPath, "db", defaults.DBPath, "SQLite ledger path")
	fs.StringVar(&opts.admin, "admin", "", "Administrator wallet address (0x...)")
	fs.StringVar(&opts.logLevel, "loglevel", defaults.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.logFormat, "logformat", defaults.LogFormat, "Log format (text, json)")
	fs.BoolVar(&opts.httpLogging, "httplog", false, "Log every HTTP request")
	fs.BoolVar(&opts.noKeyboard, "nokeyboard", false, "Disable keyboard shortcuts")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return opts, set, nil
}

// loadConfig reads the optional config file and applies the flags that were
// given explicitly, so a file value is never replaced by a flag default.
func loadConfig(opts *options, set map[string]bool) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(opts.configPath); err != nil {
			return cfg, err
		}
	}

	if set["port"] {
		cfg.Port = opts.port
	}
	if set["db"] {
		cfg.DBPath = opts.dbPath
	}
	if set["admin"] {
		cfg.AdminWallet = opts.admin
	}
	if set["loglevel"] {
		cfg.LogLevel = opts.logLevel
	}
	if set["logformat"] {
		cfg.LogFormat = opts.logFormat
	}
	if set["httplog"] {
		cfg.HTTPLogging = opts.httpLogging
	}

	return cfg, cfg.Validate()
}

func usage() {
	fmt.Fprintf(os.Stderr, `blockvote - election ledger server

Usage:
  blockvote -admin 0x... [options]

Options:
  -config string     YAML config file
  -port int          HTTP server port (default 8080)
  -db string         SQLite ledger path (default "blockvote.db")
  -admin string      Administrator wallet address
  -loglevel string   Log level: debug, info, warn, error (default "info")
  -logformat string  Log format: text, json (default "text")
  -httplog           Log every HTTP request
  -nokeyboard        Disable keyboard shortcuts
  -version           Show version and exit

Flags given on the command line override the config file.

Keyboard Shortcuts (when enabled):
  a              Open the API in a browser
  h              Toggle HTTP request logging
  l              Cycle log level (debug → info → warn → error)
  q              Quit server
  ?              Show keyboard help

Examples:
  blockvote -admin 0xAbC...                  # Run on port 8080 with blockvote.db
  blockvote -config /etc/blockvote.yaml      # Use a config file
  blockvote -config prod.yaml -port 9000     # Config file with a port override
`)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup always happens
func run(args []string) int {
	fs := flag.NewFlagSet("blockvote", flag.ContinueOnError)
	fs.Usage = usage
	opts, set, err := parseFlags(fs, args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	if opts.showVersion {
		fmt.Printf("blockvote %s\n", version)
		return 0
	}

	cfg, err := loadConfig(opts, set)
	if err != nil {
		log.Print("Invalid configuration: ", err)
		return 1
	}

	appLog := logger.NewWithOptions(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: strings.ToLower(cfg.LogFormat),
	})
	if cfg.HTTPLogging {
		appLog.EnableHTTPLogging()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printBanner(os.Stdout, version)

	a, err := app.New(ctx, appLog, cfg)
	if err != nil {
		appLog.Error("Failed to initialize application", "error", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			appLog.Error("Failed to close ledger", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.Run(ctx, cfg.Addr())
	}()

	// Wait a moment for the listener before printing shortcuts
	time.Sleep(100 * time.Millisecond)

	if !opts.noKeyboard {
		c := &console{
			url:  fmt.Sprintf("http://localhost:%d/api/elections", cfg.Port),
			log:  appLog,
			out:  os.Stdout,
			open: browser.Open,
			quit: stop,
		}
		c.printHelp()
		go listenForKeyboard(ctx, c)
	} else {
		fmt.Printf("\n%sKeyboard shortcuts disabled%s\n\n", yellow, reset)
	}

	if err := <-serverErr; err != nil {
		appLog.Error("Server stopped", "error", err)
		return 1
	}
	return 0
}

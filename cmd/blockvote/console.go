package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/abrezinsky/blockvote/internal/logger"
)

// ANSI escape codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	red    = "\033[31m"
	green  = "\033[32m"
	cyan   = "\033[36m"
	bold   = "\033[1m"
)

func printBanner(w io.Writer, version string) {
	logo := []string{
		` _     _            _                _       `,
		`| |__ | | ___   ___| | ____   _____ | |_ ___ `,
		`| '_ \| |/ _ \ / __| |/ /\ \ / / _ \| __/ _ \`,
		`| |_) | | (_) | (__|   <  \ V / (_) | ||  __/`,
		`|_.__/|_|\___/ \___|_|\_\  \_/ \___/ \__\___|`,
	}
	fmt.Fprintln(w)
	for _, line := range logo {
		fmt.Fprintf(w, "  %s%s%s\n", cyan, line, reset)
	}
	fmt.Fprintf(w, "  %s%s%s\n\n", yellow, version, reset)
}

// console reacts to single-key shortcuts typed into the server terminal
type console struct {
	url  string
	log  logger.Logger
	out  io.Writer
	open func(url string) error
	quit context.CancelFunc
}

// levels is the order the 'l' shortcut walks through
var levels = []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}

// cycleLogLevel moves to the next level, wrapping from error back to debug
func (c *console) cycleLogLevel() {
	current := c.log.GetLevel()
	next := slog.LevelInfo
	for i, l := range levels {
		if l == current {
			next = levels[(i+1)%len(levels)]
			break
		}
	}
	c.log.SetLevel(next)
	fmt.Fprintf(c.out, "%sLog level: %s%s%s\n", green, yellow, strings.ToLower(next.String()), reset)
}

func (c *console) printHelp() {
	fmt.Fprintf(c.out, "\n%s%s  Keyboard Shortcuts:%s\n", bold, green, reset)
	fmt.Fprintf(c.out, "    %sa%s      - Open the API in a browser\n", cyan, reset)
	fmt.Fprintf(c.out, "    %sh%s      - Toggle HTTP request logging\n", cyan, reset)
	fmt.Fprintf(c.out, "    %sl%s      - Cycle log level (debug → info → warn → error)\n", cyan, reset)
	fmt.Fprintf(c.out, "    %sq%s      - Quit server\n", cyan, reset)
	fmt.Fprintf(c.out, "    %s?%s      - Show this help\n\n", cyan, reset)
}

// handleKey runs the shortcut for b and reports whether the server is quitting
func (c *console) handleKey(b byte) bool {
	switch strings.ToLower(string(b)) {
	case "a":
		fmt.Fprintf(c.out, "%sOpening %s in browser...%s\n", cyan, c.url, reset)
		if err := c.open(c.url); err != nil {
			fmt.Fprintf(c.out, "%sError opening browser: %v%s\n", red, err, reset)
		}
	case "h":
		if c.log.IsHTTPLoggingEnabled() {
			c.log.DisableHTTPLogging()
			fmt.Fprintf(c.out, "%sHTTP logging disabled%s\n", yellow, reset)
		} else {
			c.log.EnableHTTPLogging()
			fmt.Fprintf(c.out, "%sHTTP logging enabled%s\n", green, reset)
		}
	case "l":
		c.cycleLogLevel()
	case "?":
		c.printHelp()
	case "q", "\x03": // Ctrl+C
		fmt.Fprintf(c.out, "%sShutting down server...%s\n", yellow, reset)
		c.quit()
		return true
	}
	return false
}

// readKeys feeds bytes from r to the console until quit, EOF or ctx ends
func (c *console) readKeys(ctx context.Context, r io.Reader) {
	buf := make([]byte, 1)
	for ctx.Err() == nil {
		n, err := r.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		if c.handleKey(buf[0]) {
			return
		}
	}
}

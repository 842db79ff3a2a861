// Package browser opens server URLs in the desktop browser from the console.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Commander starts an external process
type Commander interface {
	Start(name string, args ...string) error
}

// ExecCommander starts real processes
type ExecCommander struct{}

// Start launches name without waiting for it to exit
func (ExecCommander) Start(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

var defaultCommander Commander = ExecCommander{}

// launchers maps GOOS to the command and leading args that open a URL
var launchers = map[string][]string{
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"darwin":  {"open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

// Open opens rawURL in the default browser
func Open(rawURL string) error {
	return OpenWith(rawURL, defaultCommander, runtime.GOOS)
}

// OpenWith opens rawURL using commander as if running on goos.
// Only absolute http and https URLs are handed to the launcher.
func OpenWith(rawURL string, commander Commander, goos string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("refusing to open %q: not an http(s) url", rawURL)
	}

	launcher, ok := launchers[goos]
	if !ok {
		return fmt.Errorf("unsupported platform: %s", goos)
	}

	args := append(append([]string{}, launcher[1:]...), u.String())
	return commander.Start(launcher[0], args...)
}

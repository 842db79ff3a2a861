//go:build !linux && !darwin

package main

import (
	"context"
	"os"
)

// listenForKeyboard reads keys line-buffered; shortcuts take effect after Enter
func listenForKeyboard(ctx context.Context, c *console) {
	c.readKeys(ctx, os.Stdin)
}

//go:build linux

package main

import (
	"context"
	"os"
	"syscall"
	"unsafe"
)

// listenForKeyboard puts the terminal in raw mode and hands keys to c
func listenForKeyboard(ctx context.Context, c *console) {
	fd := int(os.Stdin.Fd())
	var oldState syscall.Termios
	if _, _, err := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), syscall.TCGETS, uintptr(unsafe.Pointer(&oldState))); err != 0 {
		// Not a terminal
		return
	}

	// Single characters without Enter; output processing stays on
	newState := oldState
	newState.Lflag &^= syscall.ICANON | syscall.ECHO
	newState.Cc[syscall.VMIN] = 1
	newState.Cc[syscall.VTIME] = 0

	if _, _, err := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), syscall.TCSETS, uintptr(unsafe.Pointer(&newState))); err != 0 {
		return
	}
	defer syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), syscall.TCSETS, uintptr(unsafe.Pointer(&oldState)))

	c.readKeys(ctx, os.Stdin)
}

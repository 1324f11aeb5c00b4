package main

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"
)

// terminalHost puts stdin into raw mode and forwards every byte read to
// Input. The read goroutine blocks on stdin and lives until the process exits.
type terminalHost struct {
	Input chan byte

	fd       int
	oldState *term.State
	restored sync.Once
}

func newTerminalHost() *terminalHost {
	return &terminalHost{
		Input: make(chan byte, 64),
		fd:    int(os.Stdin.Fd()),
	}
}

func (h *terminalHost) Start() error {
	if !term.IsTerminal(h.fd) {
		return fmt.Errorf("stdin is not a terminal")
	}
	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		return fmt.Errorf("setting raw mode: %w", err)
	}
	h.oldState = oldState

	go func() {
		buf := make([]byte, 16)
		for {
			n, err := os.Stdin.Read(buf)
			for _, b := range buf[:n] {
				select {
				case h.Input <- b:
				default: // drop input the loop has not drained
				}
			}
			if err != nil {
				close(h.Input)
				return
			}
		}
	}()
	return nil
}

// Stop restores the terminal. Safe to call more than once.
func (h *terminalHost) Stop() {
	h.restored.Do(func() {
		if h.oldState != nil {
			_ = term.Restore(h.fd, h.oldState)
		}
		fmt.Print(showCursor)
	})
}

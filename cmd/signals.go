package cmd

import (
	"os"
	"os/signal"
	"syscall"
)

// setupSignals delivers SIGINT and SIGTERM on the returned channel. The
// channel is buffered so a signal arriving before the receiver is ready is
// not dropped.
func setupSignals() <-chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	return c
}

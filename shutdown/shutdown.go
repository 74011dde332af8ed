// Package shutdown ties process termination signals to a context.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
)

// exit is replaced in tests.
var exit = os.Exit

// Context is cancelled on the first termination signal. A second signal
// exits immediately with status 130.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, signals...)
	return watch(parent, ch)
}

func watch(parent context.Context, ch chan os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	released := make(chan struct{})
	go func() {
		select {
		case <-ch:
			cancel()
		case <-released:
			return
		}
		select {
		case <-ch:
			exit(130)
		case <-released:
		}
	}()
	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			signal.Stop(ch)
			close(released)
		})
		cancel()
	}
}

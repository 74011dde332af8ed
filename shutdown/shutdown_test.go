package shutdown

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestFirstSignalCancels(t *testing.T) {
	ch := make(chan os.Signal, 2)
	ctx, cancel := watch(context.Background(), ch)
	defer cancel()

	ch <- os.Interrupt
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled by first signal")
	}
}

func TestSecondSignalExits(t *testing.T) {
	codes := make(chan int, 1)
	exit = func(code int) { codes <- code }
	t.Cleanup(func() { exit = os.Exit })

	ch := make(chan os.Signal, 2)
	ctx, cancel := watch(context.Background(), ch)
	defer cancel()

	ch <- os.Interrupt
	<-ctx.Done()
	ch <- os.Interrupt
	select {
	case code := <-codes:
		if code != 130 {
			t.Errorf("exit code = %d, want 130", code)
		}
	case <-time.After(time.Second):
		t.Fatal("second signal did not exit")
	}
}

func TestCancelWithoutSignal(t *testing.T) {
	ch := make(chan os.Signal, 2)
	ctx, cancel := watch(context.Background(), ch)
	cancel()
	cancel()
	if ctx.Err() == nil {
		t.Error("context not cancelled")
	}
}

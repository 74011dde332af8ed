package hotkey

import (
	"context"
	"sync/atomic"
	"time"
)

type Event int

const (
	Start Event = iota
	Stop
)

func (e Event) String() string {
	if e == Start {
		return "start"
	}
	return "stop"
}

type Mode int32

const (
	// Toggle: a tap starts recording and the next tap stops it.
	Toggle Mode = iota
	// Hold: recording lasts while the combo is held down.
	Hold
)

// Dictation maps presses of one combo to Start/Stop events. A press
// shorter than holdAfter toggles; a longer one records until release.
type Dictation struct {
	events    chan Event
	reset     chan struct{}
	holdAfter time.Duration
	mode      atomic.Int32
}

// NewDictation reads hk until ctx is done, then closes Events.
func NewDictation(ctx context.Context, hk Hotkey, holdAfter time.Duration) *Dictation {
	d := &Dictation{
		events:    make(chan Event, 1),
		reset:     make(chan struct{}, 1),
		holdAfter: holdAfter,
	}
	go d.run(ctx, hk)
	return d
}

func (d *Dictation) Events() <-chan Event { return d.events }

// Mode of the current or most recent recording.
func (d *Dictation) Mode() Mode { return Mode(d.mode.Load()) }

// Reset returns the controller to idle after recording was stopped by
// something other than the hotkey.
func (d *Dictation) Reset() {
	select {
	case d.reset <- struct{}{}:
	default:
	}
}

func (d *Dictation) run(ctx context.Context, hk Hotkey) {
	defer close(d.events)
	recording := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.reset:
			recording = false
			continue
		case <-hk.Keydown():
		}

		if recording {
			// the stopping press takes effect on release
			if !wait(ctx, hk.Keyup()) || !d.emit(ctx, Stop) {
				return
			}
			recording = false
			continue
		}

		d.mode.Store(int32(Toggle))
		if !d.emit(ctx, Start) {
			return
		}
		timer := time.NewTimer(d.holdAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-hk.Keyup():
			timer.Stop()
			recording = true
		case <-timer.C:
			d.mode.Store(int32(Hold))
			if !wait(ctx, hk.Keyup()) || !d.emit(ctx, Stop) {
				return
			}
		}
	}
}

func (d *Dictation) emit(ctx context.Context, e Event) bool {
	select {
	case d.events <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

func wait(ctx context.Context, ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"clinicletter/letter"
	"clinicletter/orchestrator"
	"clinicletter/progress"
	"clinicletter/review"
)

const scriptWait = 30 * time.Second

// scriptSink prints pipeline events as plain lines for the -test driver.
type scriptSink struct {
	mu        sync.Mutex
	out       io.Writer
	lastLabel string

	reviews   chan letter.Record
	failures  chan error
	navigated chan struct{}
}

func newScriptSink(out io.Writer) *scriptSink {
	return &scriptSink{
		out:       out,
		reviews:   make(chan letter.Record, 4),
		failures:  make(chan error, 4),
		navigated: make(chan struct{}, 4),
	}
}

func (s *scriptSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *scriptSink) RecordingStart(device string) { s.printf("recording_start device=%s", device) }
func (s *scriptSink) RecordingStop()               { s.printf("recording_stop") }
func (s *scriptSink) RecordingTick(seconds int)    { s.printf("recording_tick %d", seconds) }
func (s *scriptSink) RecordingError(msg string)    { s.printf("recording_error %s", msg) }

func (s *scriptSink) Progress(snap progress.Snapshot) {
	s.mu.Lock()
	changed := snap.Label != s.lastLabel
	s.lastLabel = snap.Label
	s.mu.Unlock()
	if changed || snap.Done {
		s.printf("progress %.0f %s", snap.Progress, snap.Label)
	}
}

func (s *scriptSink) Processed(o orchestrator.Outcome) {
	s.printf("processed kind=%s id=%s", o.Kind, o.Record.ID)
}

func (s *scriptSink) ProcessFailed(err error) {
	s.printf("process_failed %v", err)
	s.failures <- err
}

func (s *scriptSink) ReviewOpen(rec letter.Record) {
	s.printf("review_open id=%s", rec.ID)
	s.reviews <- rec
}

func (s *scriptSink) ReviewStatus(st review.Status) {
	s.printf("status %s %s", st.State, st.Message)
}

func (s *scriptSink) Navigated() {
	s.printf("navigated")
	s.navigated <- struct{}{}
}

// runScript drives the app from line commands:
//
//	START | STOP | TOGGLE
//	WAIT_REVIEW | WAIT_SENT
//	EDIT line1|line2
//	PREVIEW | SEND | PRINT
//	SLEEP <ms> | QUIT
func runScript(ctx context.Context, a *app, sink *scriptSink, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		if err := runCommand(ctx, a, sink, cmd, arg); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			sink.printf("error %s: %v", cmd, err)
		}
	}
	return scanner.Err()
}

var errQuit = errors.New("quit")

func runCommand(ctx context.Context, a *app, sink *scriptSink, cmd, arg string) error {
	switch cmd {
	case "START":
		return a.start(ctx)
	case "STOP":
		a.stop(ctx)
		return nil
	case "TOGGLE":
		return a.toggle(ctx)
	case "WAIT_REVIEW":
		select {
		case <-sink.reviews:
			return nil
		case err := <-sink.failures:
			return err
		case <-time.After(scriptWait):
			return errors.New("timed out waiting for review")
		case <-ctx.Done():
			return ctx.Err()
		}
	case "WAIT_SENT":
		select {
		case <-sink.navigated:
			return nil
		case <-time.After(scriptWait):
			return errors.New("timed out waiting for navigation")
		case <-ctx.Done():
			return ctx.Err()
		}
	case "EDIT":
		w, err := a.review()
		if err != nil {
			return err
		}
		if _, err := w.Edit(); err != nil {
			return err
		}
		if err := w.SetText(strings.ReplaceAll(arg, "|", "\n")); err != nil {
			return err
		}
		rec, err := w.Save()
		if err != nil {
			return err
		}
		sink.printf("saved %s", rec.LetterHTML)
		return nil
	case "PRINT":
		w, err := a.review()
		if err != nil {
			return err
		}
		rec, err := w.Record()
		if err != nil {
			return err
		}
		sink.printf("letter %s", strings.ReplaceAll(rec.PlainText(), "\n", "|"))
		return nil
	case "PREVIEW":
		w, err := a.review()
		if err != nil {
			return err
		}
		path, err := w.Preview(ctx)
		if err != nil {
			return err
		}
		sink.printf("preview %s", path)
		return nil
	case "SEND":
		return a.send(ctx)
	case "SLEEP":
		ms, err := strconv.Atoi(arg)
		if err != nil {
			return err
		}
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return nil
	case "QUIT":
		return errQuit
	}
	return fmt.Errorf("unknown command %q", cmd)
}

package main

import (
	"clinicletter/letter"
	"clinicletter/orchestrator"
	"clinicletter/progress"
	"clinicletter/review"
)

// EventSink abstracts the display layer so both the Bubble Tea TUI
// and the headless test driver receive the same pipeline events.
type EventSink interface {
	RecordingStart(device string)
	RecordingStop()
	RecordingTick(seconds int)
	RecordingError(msg string)
	Progress(s progress.Snapshot)
	Processed(o orchestrator.Outcome)
	ProcessFailed(err error)
	ReviewOpen(rec letter.Record)
	ReviewStatus(s review.Status)
	Navigated()
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"clinicletter/capture"
	"clinicletter/generation"
	"clinicletter/letter"
	"clinicletter/log"
	"clinicletter/progress"
)

var ErrNoAudio = errors.New("no audio recorded")

type Kind int

const (
	Generated Kind = iota
	Fallback
)

func (k Kind) String() string {
	if k == Fallback {
		return "fallback"
	}
	return "generated"
}

// Outcome is the result of one processing cycle. Both kinds carry a usable
// record; Cause is the absorbed error behind a Fallback.
type Outcome struct {
	Kind   Kind
	Record letter.Record
	Cause  error
	// Replaced is the unsent record this cycle overwrote, if any.
	Replaced *letter.Record
}

type Option func(*Orchestrator)

func WithPatient(p letter.Patient) Option {
	return func(o *Orchestrator) { o.patient = p }
}

// WithContext sets the consultation metadata posted with every recording.
func WithContext(c generation.Context) Option {
	return func(o *Orchestrator) { o.meta = c }
}

func WithSignOff(s string) Option {
	return func(o *Orchestrator) { o.signOff = s }
}

func WithProgressOptions(opts ...progress.Option) Option {
	return func(o *Orchestrator) { o.progressOpts = append(o.progressOpts, opts...) }
}

func WithHandoffDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.handoffDelay = d }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

type Orchestrator struct {
	client       generation.Client
	slot         *letter.Slot
	patient      letter.Patient
	meta         generation.Context
	signOff      string
	progressOpts []progress.Option
	handoffDelay time.Duration
	now          func() time.Time

	handoffs chan letter.ID

	mu      sync.Mutex
	pending *time.Timer
}

func New(client generation.Client, slot *letter.Slot, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:       client,
		slot:         slot,
		signOff:      "Dr. Rajesh",
		handoffDelay: 1500 * time.Millisecond,
		now:          time.Now,
		handoffs:     make(chan letter.ID, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handoffs delivers the ID of each stored record once the handoff delay has
// passed. Only the latest undelivered ID is kept.
func (o *Orchestrator) Handoffs() <-chan letter.ID {
	return o.handoffs
}

// Process turns one recording into exactly one stored letter record. Backend
// failures become a Fallback outcome; only empty audio, cancellation and
// slot persistence errors are returned.
func (o *Orchestrator) Process(ctx context.Context, a capture.Audio) (Outcome, error) {
	if a.Empty() || len(a.Data) == 0 {
		return Outcome{}, ErrNoAudio
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	id := letter.NewID()
	proj := progress.New(o.progressOpts...)
	projCtx, stopProj := context.WithCancel(ctx)
	projDone := make(chan struct{})
	go func() {
		defer close(projDone)
		proj.Run(projCtx)
	}()
	defer func() {
		stopProj()
		<-projDone
	}()

	up := generation.Upload{
		Filename: a.Filename(),
		MIMEType: a.MIMEType,
		Data:     a.Data,
	}
	resp, err := o.client.Submit(ctx, up, o.meta)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, ctxErr
	}

	out := o.resolve(id, resp, err)
	proj.Complete()

	status := 0
	var metrics *generation.NetworkMetrics
	if resp != nil {
		status = resp.StatusCode
		metrics = resp.Metrics
	}
	var se *generation.SubmissionError
	if errors.As(err, &se) {
		status = se.StatusCode
	}
	log.Submission(string(id), out.Kind.String(), status, metrics.Stats(), out.Cause)

	replaced, err := o.slot.Store(out.Record)
	if err != nil {
		return Outcome{}, fmt.Errorf("storing letter %s: %w", id, err)
	}
	if replaced != nil {
		log.Warnf("letter %s replaced unsent letter %s", id, replaced.ID)
		out.Replaced = replaced
	}

	o.scheduleHandoff(id)
	return out, nil
}

func (o *Orchestrator) resolve(id letter.ID, resp *generation.Response, err error) Outcome {
	rec := letter.Record{
		ID:        id,
		Patient:   o.patient,
		CreatedAt: o.now(),
	}

	switch {
	case err != nil:
		return o.fallback(rec, err)
	case resp == nil || resp.Malformed:
		return o.fallback(rec, fmt.Errorf("%w: unreadable response", generation.ErrSubmissionFailed))
	case resp.HasLetter():
		rec.Source = letter.Generated
		rec.LetterHTML = resp.LetterHTML
		rec.Transcript = resp.Transcript
		if rec.Transcript == "" {
			rec.Transcript = DefaultTranscript
		}
		return Outcome{Kind: Generated, Record: rec}
	case resp.HasPartial():
		rec.Source = letter.Generated
		rec.LetterHTML = draftFromContent(o.patient.Name, o.signOff, resp.Content)
		rec.Transcript = resp.Transcript
		if rec.Transcript == "" {
			rec.Transcript = DefaultTranscript
		}
		return Outcome{Kind: Generated, Record: rec}
	}
	return o.fallback(rec, fmt.Errorf("%w: no letter content received", generation.ErrSubmissionFailed))
}

func (o *Orchestrator) fallback(rec letter.Record, cause error) Outcome {
	rec.Source = letter.Fallback
	rec.LetterHTML = fallbackDraft(o.patient.Name, o.signOff)
	rec.Transcript = fallbackTranscript(rec.CreatedAt)
	return Outcome{Kind: Fallback, Record: rec, Cause: cause}
}

func (o *Orchestrator) scheduleHandoff(id letter.ID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending != nil {
		o.pending.Stop()
	}
	o.pending = time.AfterFunc(o.handoffDelay, func() {
		select {
		case <-o.handoffs:
		default:
		}
		o.handoffs <- id
	})
}

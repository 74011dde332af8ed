package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"clinicletter/audio"
	"clinicletter/beep"
	"clinicletter/capture"
	"clinicletter/config"
	"clinicletter/delivery"
	"clinicletter/generation"
	"clinicletter/letter"
	"clinicletter/log"
	"clinicletter/orchestrator"
	"clinicletter/progress"
	"clinicletter/render"
	"clinicletter/review"
)

var (
	errNoReview    = errors.New("no letter under review")
	errCorruptSlot = errors.New("stored letter has a malformed id")
)

// app wires capture, processing and review together for one clinician.
type app struct {
	cfg      *config.AppConfig
	actx     audio.Context
	device   *audio.DeviceInfo
	slot     *letter.Slot
	orch     *orchestrator.Orchestrator
	renderer *render.Renderer
	sender   delivery.Sender
	opener   review.Opener
	sink     EventSink
	sent     atomic.Int32

	// hotkeyReset tells the hotkey controller a recording ended elsewhere.
	hotkeyReset func()

	mu       sync.Mutex
	session  *capture.Session
	workflow *review.Workflow
}

type appDeps struct {
	actx   audio.Context
	device *audio.DeviceInfo
	client generation.Client
	sender delivery.Sender
	slot   *letter.Slot
	opener review.Opener
}

func newApp(cfg *config.AppConfig, d appDeps, sink EventSink) *app {
	a := &app{
		cfg:      cfg,
		actx:     d.actx,
		device:   d.device,
		slot:     d.slot,
		renderer: render.New(letterheadFrom(cfg)),
		sender:   d.sender,
		opener:   d.opener,
		sink:     sink,
	}
	a.orch = orchestrator.New(d.client, d.slot,
		orchestrator.WithPatient(letter.Patient{
			ID:      cfg.Patient.ID,
			Name:    cfg.Patient.Name,
			Email:   cfg.Patient.Email,
			Phone:   cfg.Patient.Phone,
			Address: cfg.Patient.Address,
		}),
		orchestrator.WithContext(generation.Context{
			PatientID:        cfg.Patient.ID,
			PatientName:      cfg.Patient.Name,
			PatientEmail:     cfg.Patient.Email,
			PatientPhone:     cfg.Patient.Phone,
			AppointmentID:    cfg.Patient.AppointmentID,
			DoctorID:         cfg.Doctor.ID,
			DoctorName:       cfg.Doctor.Name,
			ConsultationType: cfg.Patient.ConsultationType,
		}),
		orchestrator.WithHandoffDelay(cfg.HandoffDelay),
		orchestrator.WithProgressOptions(progress.WithObserver(sink.Progress)),
	)
	return a
}

func letterheadFrom(cfg *config.AppConfig) render.Letterhead {
	return render.Letterhead{
		Name:           cfg.Doctor.Letterhead,
		Qualifications: cfg.Doctor.Qualifications,
		Contact:        cfg.Doctor.Contact,
		Closing:        render.DefaultLetterhead.Closing,
		Signature:      cfg.Doctor.Signature,
	}
}

func (a *app) deviceName() string {
	if a.device == nil {
		return "system default"
	}
	return a.device.Name
}

func (a *app) recording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session != nil && a.session.State() == capture.Recording
}

// toggle starts a recording, or stops the running one and hands it to
// processing.
func (a *app) toggle(ctx context.Context) error {
	if a.recording() {
		a.stop(ctx)
		return nil
	}
	return a.start(ctx)
}

func (a *app) start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil && a.session.State() == capture.Recording {
		return capture.ErrAlreadyRecording
	}
	sess := capture.NewSession(a.actx,
		capture.WithDevice(a.device),
		capture.WithTickHandler(a.sink.RecordingTick),
	)
	if err := sess.Start(ctx); err != nil {
		beep.Play(beep.CueError)
		msg := err.Error()
		if errors.Is(err, capture.ErrPermissionDenied) {
			msg = capture.PermissionDeniedMessage
		}
		a.sink.RecordingError(msg)
		return err
	}
	a.session = sess
	beep.Play(beep.CueStart)
	a.sink.RecordingStart(a.deviceName())
	return nil
}

// stop is a no-op unless a recording is running.
func (a *app) stop(ctx context.Context) {
	a.mu.Lock()
	sess := a.session
	a.mu.Unlock()
	if sess == nil {
		return
	}
	clip, ok := sess.Stop()
	if !ok {
		return
	}
	if a.hotkeyReset != nil {
		a.hotkeyReset()
	}
	beep.Play(beep.CueStop)
	a.sink.RecordingStop()
	go a.process(ctx, clip)
}

func (a *app) process(ctx context.Context, clip capture.Audio) {
	out, err := a.orch.Process(ctx, clip)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Errorf("processing: %v", err)
		}
		a.sink.ProcessFailed(err)
		return
	}
	a.sink.Processed(out)
}

// watchHandoffs opens the review for every letter the orchestrator hands
// over, until ctx is done.
func (a *app) watchHandoffs(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-a.orch.Handoffs():
			if err := a.openReview(id); err != nil {
				log.Errorf("opening review %s: %v", id, err)
				a.sink.ProcessFailed(err)
			}
		}
	}
}

func (a *app) openReview(id letter.ID) error {
	w, err := review.New(a.slot, id, a.renderer, a.sender,
		review.WithOpener(a.opener),
		review.WithOutputDir(a.cfg.OutputDir),
		review.WithApprovedBy(a.cfg.Doctor.ApprovedBy),
		review.WithNavigateDelay(a.cfg.NavigateDelay),
		review.WithObserver(a.sink.ReviewStatus),
	)
	if err != nil {
		return err
	}
	rec, err := w.Record()
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.workflow = w
	a.mu.Unlock()
	a.sink.ReviewOpen(rec)
	return nil
}

// resume opens review on the letter a previous process left in the slot.
// A record with a malformed ID is cleared so the next recording starts clean.
func (a *app) resume() error {
	rec, err := a.slot.Load()
	if err != nil {
		return fmt.Errorf("nothing to review: %w", err)
	}
	if !rec.ID.Valid() {
		log.Warnf("clearing slot with malformed letter id %q", rec.ID)
		if err := a.slot.Clear(); err != nil {
			return fmt.Errorf("clearing slot: %w", err)
		}
		return fmt.Errorf("nothing to review: %w", errCorruptSlot)
	}
	return a.openReview(rec.ID)
}

func (a *app) review() (*review.Workflow, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.workflow == nil {
		return nil, errNoReview
	}
	return a.workflow, nil
}

// send delivers the letter under review and returns the UI to capture once
// the post-send delay has passed.
func (a *app) send(ctx context.Context) error {
	w, err := a.review()
	if err != nil {
		return err
	}
	if _, err := w.Send(ctx); err != nil {
		beep.Play(beep.CueError)
		return err
	}
	a.sent.Add(1)
	beep.Play(beep.CueSent)
	go func() {
		select {
		case <-w.Navigated():
		case <-ctx.Done():
			return
		}
		a.mu.Lock()
		if a.workflow == w {
			a.workflow = nil
		}
		a.mu.Unlock()
		a.sink.Navigated()
	}()
	return nil
}

func (a *app) close() {
	a.mu.Lock()
	if a.session != nil {
		a.session.Abort()
	}
	a.mu.Unlock()
	log.SessionEnd(int(a.sent.Load()))
}

func describeOutcome(o orchestrator.Outcome) string {
	var b strings.Builder
	if o.Kind == orchestrator.Fallback {
		b.WriteString("Letter generation unavailable, using a draft template")
		if o.Cause != nil {
			fmt.Fprintf(&b, " (%v)", o.Cause)
		}
	} else {
		b.WriteString("Letter draft ready")
	}
	if o.Replaced != nil {
		fmt.Fprintf(&b, ". Unsent letter %s was replaced", o.Replaced.ID.Short())
	}
	return b.String()
}

package review

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"clinicletter/delivery"
	"clinicletter/letter"
	"clinicletter/log"
	"clinicletter/render"
)

type State int

const (
	Viewing State = iota
	Editing
	Previewing
	Sending
	Sent
)

func (s State) String() string {
	switch s {
	case Viewing:
		return "viewing"
	case Editing:
		return "editing"
	case Previewing:
		return "previewing"
	case Sending:
		return "sending"
	case Sent:
		return "sent"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	MsgGenerating = "Generating PDF..."
	MsgSending    = "Sending email with PDF attachment..."
	MsgSent       = "Email with PDF sent successfully!"
)

var (
	ErrEditing     = errors.New("save or cancel your edits first")
	ErrAlreadySent = errors.New("letter already sent")
)

type InvalidTransitionError struct {
	From, To State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

// Status is published to the observer on every visible change.
type Status struct {
	State   State
	Message string
	Err     error
}

type Renderer interface {
	Render(ctx context.Context, in render.Input, budget int64) (*render.Artifact, error)
}

// Opener shows a file to the user.
type Opener interface {
	Open(path string) error
}

type Option func(*Workflow)

func WithOpener(o Opener) Option { return func(w *Workflow) { w.opener = o } }

func WithOutputDir(dir string) Option { return func(w *Workflow) { w.outputDir = dir } }

func WithApprovedBy(name string) Option { return func(w *Workflow) { w.approvedBy = name } }

func WithNavigateDelay(d time.Duration) Option { return func(w *Workflow) { w.navigateDelay = d } }

// WithPreviewTTL sets how long a preview file is kept after opening.
func WithPreviewTTL(d time.Duration) Option { return func(w *Workflow) { w.previewTTL = d } }

func WithObserver(fn func(Status)) Option { return func(w *Workflow) { w.observer = fn } }

// Workflow is the review, edit and send state machine for one letter.
// Render and send run without holding the lock; the state they leave
// behind (Previewing, Sending) blocks every other transition meanwhile.
type Workflow struct {
	slot     *letter.Slot
	id       letter.ID
	renderer Renderer
	sender   delivery.Sender

	opener        Opener
	outputDir     string
	approvedBy    string
	navigateDelay time.Duration
	previewTTL    time.Duration
	observer      func(Status)

	mu        sync.Mutex
	state     State
	plain     string
	navigated chan struct{}
}

func New(slot *letter.Slot, id letter.ID, r Renderer, s delivery.Sender, opts ...Option) (*Workflow, error) {
	w := &Workflow{
		slot:          slot,
		id:            id,
		renderer:      r,
		sender:        s,
		outputDir:     os.TempDir(),
		approvedBy:    "Mr Mangattil Rajesh",
		navigateDelay: 2500 * time.Millisecond,
		previewTTL:    time.Minute,
		navigated:     make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	rec, err := slot.Get(id)
	if err != nil {
		return nil, err
	}
	if rec.Sent {
		w.state = Sent
	}
	return w, nil
}

func (w *Workflow) ID() letter.ID { return w.id }

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Workflow) Record() (letter.Record, error) {
	return w.slot.Get(w.id)
}

// Navigated is closed once the post-send delay has elapsed.
func (w *Workflow) Navigated() <-chan struct{} {
	return w.navigated
}

func (w *Workflow) publish(s Status) {
	if w.observer != nil {
		w.observer(s)
	}
}

// transition moves from one of the allowed states to next. Caller holds w.mu.
func (w *Workflow) transition(next State, from ...State) error {
	if w.state == Sent {
		return ErrAlreadySent
	}
	for _, f := range from {
		if w.state == f {
			w.state = next
			return nil
		}
	}
	if w.state == Editing && next != Editing {
		return ErrEditing
	}
	return &InvalidTransitionError{From: w.state, To: next}
}

// Edit enters editing with the plain text of the stored letter.
func (w *Workflow) Edit() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Editing {
		return w.plain, nil
	}
	rec, err := w.slot.Get(w.id)
	if err != nil {
		return "", err
	}
	if err := w.transition(Editing, Viewing); err != nil {
		return "", err
	}
	w.plain = rec.PlainText()
	return w.plain, nil
}

func (w *Workflow) Text() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.plain
}

func (w *Workflow) SetText(s string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Editing {
		return &InvalidTransitionError{From: w.state, To: Editing}
	}
	w.plain = s
	return nil
}

// Save writes the edited text back as paragraph markup and returns to viewing.
// On failure the workflow stays in editing with the text intact.
func (w *Workflow) Save() (letter.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Editing {
		return letter.Record{}, &InvalidTransitionError{From: w.state, To: Viewing}
	}
	markup := letter.WrapParagraphs(w.plain)
	rec, err := w.slot.Update(w.id, func(r *letter.Record) error {
		if r.Sent {
			return ErrAlreadySent
		}
		r.LetterHTML = markup
		return nil
	})
	if err != nil {
		return letter.Record{}, err
	}
	w.state = Viewing
	w.plain = ""
	return rec, nil
}

// FocusLost saves when editing and is a no-op otherwise.
func (w *Workflow) FocusLost() error {
	if w.State() != Editing {
		return nil
	}
	_, err := w.Save()
	return err
}

// Cancel discards edits and reloads the text from the last saved markup.
// The workflow stays in editing.
func (w *Workflow) Cancel() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Editing {
		return "", &InvalidTransitionError{From: w.state, To: Editing}
	}
	rec, err := w.slot.Get(w.id)
	if err != nil {
		return "", err
	}
	w.plain = rec.PlainText()
	return w.plain, nil
}

func (w *Workflow) input(rec letter.Record, purpose string) render.Input {
	return render.Input{
		LetterID: string(rec.ID),
		Markup:   rec.LetterHTML,
		To: render.Recipient{
			Name:    rec.Patient.Name,
			Email:   rec.Patient.Email,
			Address: rec.Patient.Address,
		},
		Purpose: purpose,
	}
}

// Preview renders the letter within the preview budget, writes it to the
// output directory and opens it. The file is removed after the preview TTL.
func (w *Workflow) Preview(ctx context.Context) (string, error) {
	w.mu.Lock()
	rec, err := w.slot.Get(w.id)
	if err == nil {
		err = w.transition(Previewing, Viewing)
	}
	w.mu.Unlock()
	if err != nil {
		return "", err
	}
	w.publish(Status{State: Previewing, Message: MsgGenerating})

	path, err := w.preview(ctx, rec)

	w.mu.Lock()
	w.state = Viewing
	w.mu.Unlock()
	if err != nil {
		log.Errorf("preview %s: %v", w.id, err)
		w.publish(Status{State: Viewing, Message: "Failed to generate PDF preview. Please try again.", Err: err})
		return "", err
	}
	w.publish(Status{State: Viewing, Message: "Preview opened: " + path})
	return path, nil
}

func (w *Workflow) preview(ctx context.Context, rec letter.Record) (string, error) {
	art, err := w.renderer.Render(ctx, w.input(rec, "preview"), render.PreviewBudget)
	if err != nil {
		return "", err
	}
	path, err := art.WriteFile(w.outputDir)
	if err != nil {
		return "", fmt.Errorf("writing preview: %w", err)
	}
	time.AfterFunc(w.previewTTL, func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warnf("removing preview %s: %v", path, err)
		}
	})
	if w.opener != nil {
		if err := w.opener.Open(path); err != nil {
			return "", fmt.Errorf("opening preview: %w", err)
		}
	}
	return path, nil
}

// Send renders the transmission artifact and delivers it. Any failure
// returns to viewing with the record untouched, so the user can retry.
func (w *Workflow) Send(ctx context.Context) (*delivery.Receipt, error) {
	w.mu.Lock()
	rec, err := w.slot.Get(w.id)
	if err == nil {
		err = w.transition(Sending, Viewing)
	}
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}

	rcpt, filename, err := w.send(ctx, rec)
	if err != nil {
		w.mu.Lock()
		w.state = Viewing
		w.mu.Unlock()
		log.Errorf("send %s: %v", w.id, err)
		w.publish(Status{State: Viewing, Message: err.Error(), Err: err})
		return nil, err
	}

	if _, err := w.slot.Update(w.id, func(r *letter.Record) error {
		r.Sent = true
		return nil
	}); err != nil {
		// Delivered but the slot moved on; the letter still counts as sent here.
		log.Warnf("marking %s sent: %v", w.id, err)
	}
	w.mu.Lock()
	w.state = Sent
	w.mu.Unlock()

	log.LetterSent(string(w.id), rec.Patient.Email, filename)
	w.publish(Status{State: Sent, Message: MsgSent})
	time.AfterFunc(w.navigateDelay, func() { close(w.navigated) })
	return rcpt, nil
}

func (w *Workflow) send(ctx context.Context, rec letter.Record) (*delivery.Receipt, string, error) {
	w.publish(Status{State: Sending, Message: MsgGenerating})
	art, err := w.renderer.Render(ctx, w.input(rec, "transmission"), render.TransmissionBudget)
	if err != nil {
		return nil, "", fmt.Errorf("PDF generation failed: %w", err)
	}

	w.publish(Status{State: Sending, Message: MsgSending})
	req := delivery.Request{
		LetterID:     string(letter.NormalizeID(string(rec.ID))),
		LetterHTML:   rec.LetterHTML,
		PDFBase64:    art.Base64,
		Filename:     art.Filename,
		PatientName:  rec.Patient.Name,
		PatientEmail: rec.Patient.Email,
		PatientPhone: rec.Patient.Phone,
		ApprovedBy:   w.approvedBy,
		SendEmail:    true,
		SendWhatsApp: false,
	}
	rcpt, err := w.sender.Send(ctx, req)
	if err != nil {
		return nil, "", err
	}
	if rcpt.Malformed {
		log.Warnf("delivery of %s accepted with unreadable response", w.id)
	}
	return rcpt, art.Filename, nil
}

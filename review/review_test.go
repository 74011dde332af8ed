package review

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicletter/delivery"
	"clinicletter/letter"
	"clinicletter/render"
)

const hexID = "0123456789abcdef0123456789abcdef"

type fakeRenderer struct {
	err     error
	calls   int
	budgets []int64
}

func (f *fakeRenderer) Render(ctx context.Context, in render.Input, budget int64) (*render.Artifact, error) {
	f.calls++
	f.budgets = append(f.budgets, budget)
	if f.err != nil {
		return nil, f.err
	}
	return &render.Artifact{Data: []byte("%PDF-1.3 test"), Base64: "JVBERi0xLjMgdGVzdA==", Filename: "clinicletter_sarah_1.pdf"}, nil
}

type fakeOpener struct {
	paths []string
	err   error
}

func (f *fakeOpener) Open(path string) error {
	f.paths = append(f.paths, path)
	return f.err
}

type statusLog struct {
	mu   sync.Mutex
	list []Status
}

func (s *statusLog) add(st Status) {
	s.mu.Lock()
	s.list = append(s.list, st)
	s.mu.Unlock()
}

func (s *statusLog) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, st := range s.list {
		out = append(out, st.Message)
	}
	return out
}

func setup(t *testing.T, opts ...Option) (*Workflow, *letter.Slot, *fakeRenderer, *delivery.Fake, *statusLog) {
	t.Helper()
	slot := letter.NewSlot()
	_, err := slot.Store(letter.Record{
		ID:         hexID,
		Patient:    letter.Patient{Name: "Sarah Henderson", Email: "sarah@example.com", Phone: "+44"},
		LetterHTML: "<p>Dear Sarah,</p>\n<p>All is well.</p>",
		Source:     letter.Generated,
	})
	require.NoError(t, err)

	r := &fakeRenderer{}
	s := &delivery.Fake{}
	log := &statusLog{}
	base := []Option{
		WithObserver(log.add),
		WithOutputDir(t.TempDir()),
		WithNavigateDelay(10 * time.Millisecond),
	}
	w, err := New(slot, hexID, r, s, append(base, opts...)...)
	require.NoError(t, err)
	return w, slot, r, s, log
}

func TestEditSaveCancel(t *testing.T) {
	w, slot, _, _, _ := setup(t)

	text, err := w.Edit()
	require.NoError(t, err)
	assert.Equal(t, Editing, w.State())
	assert.Equal(t, []string{"Dear Sarah,", "All is well."}, letter.Lines(text))

	require.NoError(t, w.SetText("Dear Sarah,\nthrow away"))
	text, err = w.Cancel()
	require.NoError(t, err)
	assert.Equal(t, Editing, w.State(), "cancel keeps editing")
	assert.Equal(t, []string{"Dear Sarah,", "All is well."}, letter.Lines(text))

	require.NoError(t, w.SetText("  Dear Sarah,\n\nNew & improved  \n"))
	rec, err := w.Save()
	require.NoError(t, err)
	assert.Equal(t, Viewing, w.State())
	assert.Equal(t, "<p>Dear Sarah,</p>\n<p>New &amp; improved</p>", rec.LetterHTML)

	stored, _ := slot.Load()
	assert.Equal(t, rec.LetterHTML, stored.LetterHTML)
}

func TestFocusLostSaves(t *testing.T) {
	w, slot, _, _, _ := setup(t)
	require.NoError(t, w.FocusLost(), "no-op outside editing")

	_, err := w.Edit()
	require.NoError(t, err)
	require.NoError(t, w.SetText("changed"))
	require.NoError(t, w.FocusLost())
	assert.Equal(t, Viewing, w.State())
	stored, _ := slot.Load()
	assert.Equal(t, "<p>changed</p>", stored.LetterHTML)
}

func TestSaveStale(t *testing.T) {
	w, slot, _, _, _ := setup(t)
	_, err := w.Edit()
	require.NoError(t, err)

	_, err = slot.Store(letter.Record{ID: "newer"})
	require.NoError(t, err)

	_, err = w.Save()
	assert.ErrorIs(t, err, letter.ErrStale)
	assert.Equal(t, Editing, w.State())
	stored, _ := slot.Load()
	assert.Equal(t, letter.ID("newer"), stored.ID)
	assert.Empty(t, stored.LetterHTML)
}

func TestSendSuccess(t *testing.T) {
	w, slot, r, s, log := setup(t)

	rcpt, err := w.Send(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rcpt)
	assert.Equal(t, Sent, w.State())

	reqs := s.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "01234567-89ab-cdef-0123-456789abcdef", reqs[0].LetterID)
	assert.Equal(t, "JVBERi0xLjMgdGVzdA==", reqs[0].PDFBase64)
	assert.Equal(t, "Mr Mangattil Rajesh", reqs[0].ApprovedBy)
	assert.True(t, reqs[0].SendEmail)
	assert.False(t, reqs[0].SendWhatsApp)
	assert.Equal(t, "+44", reqs[0].PatientPhone)
	assert.Equal(t, []int64{render.TransmissionBudget}, r.budgets)

	assert.Equal(t, []string{MsgGenerating, MsgSending, MsgSent}, log.messages())

	stored, _ := slot.Load()
	assert.True(t, stored.Sent)

	select {
	case <-w.Navigated():
	case <-time.After(time.Second):
		t.Fatal("did not navigate after send")
	}

	_, err = w.Send(context.Background())
	assert.ErrorIs(t, err, ErrAlreadySent)
	_, err = w.Edit()
	assert.ErrorIs(t, err, ErrAlreadySent)
	_, err = w.Preview(context.Background())
	assert.ErrorIs(t, err, ErrAlreadySent)
	assert.Len(t, s.Requests(), 1)
}

func TestSendRejectedWhileEditing(t *testing.T) {
	w, _, r, s, _ := setup(t)
	_, err := w.Edit()
	require.NoError(t, err)

	_, err = w.Send(context.Background())
	assert.ErrorIs(t, err, ErrEditing)
	assert.Equal(t, Editing, w.State())
	assert.Zero(t, r.calls)
	assert.Empty(t, s.Requests())
}

func TestSendDeliveryRejected(t *testing.T) {
	w, slot, _, s, log := setup(t)
	s.Err = &delivery.TransmissionError{StatusCode: 200, Message: "mailbox full"}
	before, _ := slot.Load()

	_, err := w.Send(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, delivery.ErrTransmissionFailed)
	assert.Equal(t, Viewing, w.State())
	assert.Contains(t, log.messages(), "mailbox full")

	after, _ := slot.Load()
	assert.Equal(t, before, after)

	// the user may try again
	s.Err = nil
	_, err = w.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Sent, w.State())
}

func TestSendArtifactTooLarge(t *testing.T) {
	w, _, r, s, _ := setup(t)
	r.err = &render.ArtifactTooLargeError{Size: 11 << 20, Budget: render.TransmissionBudget}

	_, err := w.Send(context.Background())
	assert.ErrorIs(t, err, render.ErrArtifactTooLarge)
	assert.Contains(t, err.Error(), "PDF generation failed")
	assert.Empty(t, s.Requests(), "no network call after a render failure")
	assert.Equal(t, Viewing, w.State())
}

func TestPreview(t *testing.T) {
	op := &fakeOpener{}
	w, slot, r, _, _ := setup(t, WithOpener(op), WithPreviewTTL(100*time.Millisecond))
	before, _ := slot.Load()

	path, err := w.Preview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Viewing, w.State())
	assert.Equal(t, []string{path}, op.paths)
	assert.Equal(t, []int64{render.PreviewBudget}, r.budgets)
	_, err = os.Stat(path)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return errors.Is(err, os.ErrNotExist)
	}, time.Second, 10*time.Millisecond, "preview file should be removed")

	after, _ := slot.Load()
	assert.Equal(t, before, after)
}

func TestPreviewFailure(t *testing.T) {
	w, slot, r, _, log := setup(t)
	r.err = errors.New("fonts missing")
	before, _ := slot.Load()

	_, err := w.Preview(context.Background())
	assert.Error(t, err)
	assert.Equal(t, Viewing, w.State())
	after, _ := slot.Load()
	assert.Equal(t, before, after)
	assert.Contains(t, log.messages(), "Failed to generate PDF preview. Please try again.")
}

func TestNewWithSentRecord(t *testing.T) {
	slot := letter.NewSlot()
	_, err := slot.Store(letter.Record{ID: "x", Sent: true})
	require.NoError(t, err)
	w, err := New(slot, "x", &fakeRenderer{}, &delivery.Fake{})
	require.NoError(t, err)
	assert.Equal(t, Sent, w.State())

	_, err = New(slot, "other", &fakeRenderer{}, &delivery.Fake{})
	assert.ErrorIs(t, err, letter.ErrStale)
}

package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"clinicletter/audio"
	"clinicletter/beep"
	"clinicletter/config"
	"clinicletter/delivery"
	"clinicletter/generation"
	"clinicletter/letter"
	"clinicletter/orchestrator"
	"clinicletter/review"
)

// syncBuffer guards the script output; sink events arrive from several goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("ENV_PATH", "")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.HandoffDelay = 10 * time.Millisecond
	cfg.NavigateDelay = 10 * time.Millisecond
	cfg.OutputDir = t.TempDir()
	return cfg
}

// tone returns one second of 16 kHz mono PCM.
func tone() []byte {
	var b bytes.Buffer
	for i := range audio.SampleRate {
		s := int16(2000)
		if i%40 < 20 {
			s = -2000
		}
		binary.Write(&b, binary.LittleEndian, s)
	}
	return b.Bytes()
}

func testDeps(gen *generation.Fake, sender delivery.Sender) appDeps {
	return appDeps{
		actx:   audio.NewFakeContext(tone(), false),
		client: gen,
		sender: sender,
		slot:   letter.NewSlot(),
	}
}

func generated() *generation.Fake {
	return generation.NewFake(&generation.Response{
		StatusCode: 200,
		Transcript: "Doctor: How is the knee?",
		LetterHTML: "<p>Dear Sarah,</p><p>The knee is healing well.</p>",
	}, nil)
}

func runTestScript(t *testing.T, deps appDeps, script string) string {
	t.Helper()
	beep.Disable()
	cfg := testConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var out syncBuffer
	if code := runTest(ctx, cfg, deps, strings.NewReader(script), &out); code != 0 {
		t.Fatalf("runTest exit code %d\n%s", code, out.String())
	}
	return out.String()
}

func TestScriptRecordReviewSend(t *testing.T) {
	sender := &delivery.Fake{}
	deps := testDeps(generated(), sender)
	out := runTestScript(t, deps, `
START
SLEEP 50
STOP
WAIT_REVIEW
PRINT
EDIT Dear Sarah,|Keep walking daily.
PRINT
SEND
WAIT_SENT
QUIT
`)

	for _, want := range []string{
		"recording_start device=system default",
		"recording_stop",
		"processed kind=generated",
		"review_open id=",
		"letter Dear Sarah,||The knee is healing well.",
		"letter Dear Sarah,||Keep walking daily.",
		"status sending " + review.MsgSending,
		"status sent " + review.MsgSent,
		"navigated",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "error ") {
		t.Errorf("unexpected script error\n%s", out)
	}

	reqs := sender.Requests()
	if len(reqs) != 1 {
		t.Fatalf("delivery requests = %d, want 1", len(reqs))
	}
	if reqs[0].PatientEmail != "sarah.henderson@email.com" {
		t.Errorf("patient email = %q", reqs[0].PatientEmail)
	}
	rec, err := deps.slot.Load()
	if err != nil {
		t.Fatalf("slot.Load: %v", err)
	}
	if !rec.Sent {
		t.Error("record not marked sent")
	}
}

func TestScriptFallbackOnBackendFailure(t *testing.T) {
	gen := generation.NewFake(nil, errors.New("connection refused"))
	out := runTestScript(t, testDeps(gen, &delivery.Fake{}), `
TOGGLE
SLEEP 50
TOGGLE
WAIT_REVIEW
PRINT
QUIT
`)
	if !strings.Contains(out, "processed kind=fallback") {
		t.Errorf("expected fallback outcome\n%s", out)
	}
	if !strings.Contains(out, "letter Dear Mrs. Sarah Henderson,") {
		t.Errorf("expected fallback draft for configured patient\n%s", out)
	}
}

func TestScriptSendFailureKeepsReview(t *testing.T) {
	sender := &delivery.Fake{Err: &delivery.TransmissionError{Message: "mailbox full"}}
	out := runTestScript(t, testDeps(generated(), sender), `
START
SLEEP 50
STOP
WAIT_REVIEW
SEND
PRINT
QUIT
`)
	if !strings.Contains(out, "error SEND: mailbox full") {
		t.Errorf("expected send error\n%s", out)
	}
	if strings.Contains(out, "navigated") {
		t.Errorf("should stay on review after failed send\n%s", out)
	}
	if !strings.Contains(out, "letter Dear Sarah,") {
		t.Errorf("letter should still be readable\n%s", out)
	}
}

func TestScriptNoReview(t *testing.T) {
	out := runTestScript(t, testDeps(generated(), &delivery.Fake{}), "SEND\nBOGUS\n")
	if !strings.Contains(out, "error SEND: "+errNoReview.Error()) {
		t.Errorf("expected no-review error\n%s", out)
	}
	if !strings.Contains(out, `error BOGUS: unknown command "BOGUS"`) {
		t.Errorf("expected unknown command error\n%s", out)
	}
}

func TestDescribeOutcome(t *testing.T) {
	replaced := letter.Record{ID: letter.ID("0123456789abcdef0123456789abcdef")}
	tests := []struct {
		name string
		o    orchestrator.Outcome
		want string
	}{
		{"generated", orchestrator.Outcome{Kind: orchestrator.Generated}, "Letter draft ready"},
		{"fallback", orchestrator.Outcome{Kind: orchestrator.Fallback, Cause: errors.New("timeout")},
			"Letter generation unavailable, using a draft template (timeout)"},
		{"fallback no cause", orchestrator.Outcome{Kind: orchestrator.Fallback},
			"Letter generation unavailable, using a draft template"},
		{"replaced", orchestrator.Outcome{Kind: orchestrator.Generated, Replaced: &replaced},
			"Letter draft ready. Unsent letter " + replaced.ID.Short() + " was replaced"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeOutcome(tt.o); got != tt.want {
				t.Errorf("describeOutcome() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"serve", "-env", "x.env"})
	if err != nil {
		t.Fatal(err)
	}
	if o.sub != "serve" || o.envPath != "x.env" {
		t.Errorf("parsed %+v", o)
	}
	o, err = parseFlags([]string{"-fake"})
	if err != nil {
		t.Fatal(err)
	}
	if o.sub != "" || !o.fake || !o.hotkey {
		t.Errorf("parsed %+v", o)
	}
	if _, err := parseFlags([]string{"dance"}); err == nil {
		t.Error("expected error for unknown command")
	}
}

var _ EventSink = (*scriptSink)(nil)
var _ EventSink = (*tuiSink)(nil)

func TestResume(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "slot.json")
	slot, err := letter.OpenSlot(path)
	if err != nil {
		t.Fatal(err)
	}
	deps := testDeps(generated(), &delivery.Fake{})
	deps.slot = slot
	sink := newScriptSink(&syncBuffer{})
	a := newApp(cfg, deps, sink)

	if err := a.resume(); !errors.Is(err, letter.ErrEmptySlot) {
		t.Fatalf("empty slot: err = %v", err)
	}

	id := letter.NewID()
	if _, err := slot.Store(letter.Record{ID: id, LetterHTML: "<p>Hello</p>"}); err != nil {
		t.Fatal(err)
	}
	if err := a.resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	select {
	case rec := <-sink.reviews:
		if rec.ID != id {
			t.Errorf("opened %s, want %s", rec.ID, id)
		}
	default:
		t.Fatal("review not opened")
	}
}

func TestResumeClearsMalformedID(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "slot.json")
	slot, err := letter.OpenSlot(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := slot.Store(letter.Record{ID: "not-a-letter-id", LetterHTML: "<p>x</p>"}); err != nil {
		t.Fatal(err)
	}
	deps := testDeps(generated(), &delivery.Fake{})
	deps.slot = slot
	a := newApp(cfg, deps, newScriptSink(&syncBuffer{}))

	if err := a.resume(); !errors.Is(err, errCorruptSlot) {
		t.Fatalf("err = %v, want errCorruptSlot", err)
	}
	if _, err := slot.Load(); !errors.Is(err, letter.ErrEmptySlot) {
		t.Errorf("slot not cleared: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("slot file still present: %v", err)
	}
}

func TestScriptEmptyTwoHundredCountsAsSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	deps := testDeps(generated(), delivery.NewWebhook(srv.URL, time.Second))
	out := runTestScript(t, deps, `
START
SLEEP 50
STOP
WAIT_REVIEW
SEND
WAIT_SENT
QUIT
`)
	if !strings.Contains(out, "status sent "+review.MsgSent) || !strings.Contains(out, "navigated") {
		t.Errorf("empty 200 reply should count as sent\n%s", out)
	}
	rec, err := deps.slot.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Sent {
		t.Error("record not marked sent")
	}
}

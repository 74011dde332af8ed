package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		letter     string
		transcript string
		content    string
		malformed  bool
		partial    bool
	}{
		{name: "camel", body: `{"letterHtml":"<p>a</p>","transcript":"t"}`, letter: "<p>a</p>", transcript: "t"},
		{name: "snake", body: `{"letter_html":"<p>b</p>"}`, letter: "<p>b</p>"},
		{name: "plain letter", body: `{"letter":"<p>c</p>"}`, letter: "<p>c</p>"},
		{name: "precedence", body: `{"letter":"x","letterHtml":"y"}`, letter: "y"},
		{name: "array wrapped", body: `[{"letterHtml":"<p>d</p>"}]`, letter: "<p>d</p>"},
		{name: "partial", body: `{"transcript":"spoken","content":"body"}`, transcript: "spoken", content: "body", partial: true},
		{name: "empty object", body: `{}`},
		{name: "non-string letter", body: `{"letter":{"html":"x"}}`},
		{name: "not json", body: `<html>ok</html>`, malformed: true},
		{name: "empty body", body: ``, malformed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseResponse([]byte(tt.body))
			assert.Equal(t, tt.letter, r.LetterHTML)
			assert.Equal(t, tt.transcript, r.Transcript)
			assert.Equal(t, tt.content, r.Content)
			assert.Equal(t, tt.malformed, r.Malformed)
			assert.Equal(t, tt.partial, r.HasPartial())
		})
	}
}

func TestWebhookSubmit(t *testing.T) {
	var gotCtx Context
	var gotName, gotType string
	var gotAudio []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("audio_file")
		require.NoError(t, err)
		gotAudio, _ = io.ReadAll(f)
		gotName = hdr.Filename
		gotType = hdr.Header.Get("Content-Type")
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("context")), &gotCtx))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"letterHtml":"<p>Dear Sarah</p>","transcript":"hello"}`))
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, 5*time.Second)
	meta := Context{PatientID: "1", PatientName: "Mrs. Sarah Henderson", DoctorID: "dr-001", ConsultationType: "consultation"}
	resp, err := wh.Submit(context.Background(), Upload{
		Filename: "voice-note-1.flac",
		MIMEType: "audio/flac",
		Data:     []byte("fLaC-data"),
	}, meta)
	require.NoError(t, err)

	assert.Equal(t, "<p>Dear Sarah</p>", resp.LetterHTML)
	assert.Equal(t, "hello", resp.Transcript)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, resp.Metrics)
	assert.Greater(t, resp.Metrics.Total, time.Duration(0))
	assert.NotNil(t, resp.Metrics.Stats())

	assert.Equal(t, "voice-note-1.flac", gotName)
	assert.Equal(t, "audio/flac", gotType)
	assert.Equal(t, []byte("fLaC-data"), gotAudio)
	assert.Equal(t, meta, gotCtx)
}

func TestWebhookFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewWebhook(srv.URL, time.Second).Submit(context.Background(), Upload{Filename: "a.wav"}, Context{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmissionFailed)
	var se *SubmissionError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
}

func TestWebhookTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewWebhook(url, time.Second).Submit(context.Background(), Upload{Filename: "a.wav"}, Context{})
	assert.ErrorIs(t, err, ErrSubmissionFailed)
}

func TestWebhookMalformedSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Workflow was started"))
	}))
	defer srv.Close()

	resp, err := NewWebhook(srv.URL, time.Second).Submit(context.Background(), Upload{Filename: "a.wav"}, Context{})
	require.NoError(t, err)
	assert.True(t, resp.Malformed)
	assert.False(t, resp.HasLetter())
}

func TestNilMetricsStats(t *testing.T) {
	var m *NetworkMetrics
	assert.Nil(t, m.Stats())
}

func TestFake(t *testing.T) {
	f := NewFake(&Response{LetterHTML: "<p>x</p>"}, nil)
	r, err := f.Submit(context.Background(), Upload{Filename: "n.wav"}, Context{PatientID: "7"})
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", r.LetterHTML)
	up, meta := f.LastUpload()
	assert.Equal(t, "n.wav", up.Filename)
	assert.Equal(t, "7", meta.PatientID)
	assert.Equal(t, 1, f.Calls())

	slow := &Fake{Delay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = slow.Submit(ctx, Upload{}, Context{})
	assert.ErrorIs(t, err, context.Canceled)
}

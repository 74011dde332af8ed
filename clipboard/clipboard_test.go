package clipboard

import (
	"errors"
	"testing"

	"clinicletter/letter"
)

func capture(t *testing.T) *string {
	t.Helper()
	var got string
	old := write
	write = func(s string) error {
		got = s
		return nil
	}
	t.Cleanup(func() { write = old })
	return &got
}

func TestCopyLetter(t *testing.T) {
	got := capture(t)
	r := letter.Record{LetterHTML: "<p>Dear Sarah,</p><p>See you <b>soon</b>.</p>"}
	if err := CopyLetter(r); err != nil {
		t.Fatal(err)
	}
	if want := "Dear Sarah,\n\nSee you soon."; *got != want {
		t.Errorf("got %q, want %q", *got, want)
	}
}

func TestCopyTranscript(t *testing.T) {
	got := capture(t)
	if err := CopyTranscript(letter.Record{Transcript: "  patient reports pain \n"}); err != nil {
		t.Fatal(err)
	}
	if *got != "patient reports pain" {
		t.Errorf("got %q", *got)
	}
}

func TestNothingToCopy(t *testing.T) {
	capture(t)
	if err := CopyLetter(letter.Record{}); !errors.Is(err, ErrNothingToCopy) {
		t.Errorf("CopyLetter: got %v", err)
	}
	if err := CopyTranscript(letter.Record{Transcript: " "}); !errors.Is(err, ErrNothingToCopy) {
		t.Errorf("CopyTranscript: got %v", err)
	}
}

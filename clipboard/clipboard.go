// Package clipboard copies letter text to the system clipboard.
package clipboard

import (
	"errors"
	"strings"

	cb "github.com/atotto/clipboard"

	"clinicletter/letter"
)

var ErrNothingToCopy = errors.New("nothing to copy")

// write is swapped in tests; the system clipboard is not available headless.
var write = cb.WriteAll

func Copy(text string) error {
	return write(text)
}

func Read() (string, error) {
	return cb.ReadAll()
}

// Unsupported reports whether no clipboard utility was found
// (xclip, xsel or wl-clipboard on Linux).
func Unsupported() bool {
	return cb.Unsupported
}

// CopyLetter places the plain text of the letter on the clipboard.
func CopyLetter(r letter.Record) error {
	text := r.PlainText()
	if text == "" {
		return ErrNothingToCopy
	}
	return write(text)
}

// CopyTranscript places the consultation transcript on the clipboard.
func CopyTranscript(r letter.Record) error {
	text := strings.TrimSpace(r.Transcript)
	if text == "" {
		return ErrNothingToCopy
	}
	return write(text)
}

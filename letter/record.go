package letter

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Source string

const (
	Generated Source = "generated"
	Fallback  Source = "fallback"
)

type Patient struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
}

type Record struct {
	ID         ID        `json:"letterId"`
	Patient    Patient   `json:"patient"`
	Transcript string    `json:"transcript"`
	LetterHTML string    `json:"letterHtml"`
	Source     Source    `json:"source"`
	CreatedAt  time.Time `json:"createdAt"`
	Sent       bool      `json:"sent"`
}

// PlainText is the editable projection of the letter markup.
func (r Record) PlainText() string {
	return StripMarkup(r.LetterHTML)
}

var spaces = regexp.MustCompile(`\s+`)

// Filename is the attachment name for this record's document, stamped at t.
func (r Record) Filename(t time.Time) string {
	return Filename(r.Patient.Name, t)
}

// Filename builds clinicletter_<lowercased name, whitespace as _>_<unix ms>.pdf.
func Filename(patientName string, t time.Time) string {
	name := strings.TrimSpace(patientName)
	if name == "" {
		name = "patient"
	}
	name = spaces.ReplaceAllString(strings.ToLower(name), "_")
	return fmt.Sprintf("clinicletter_%s_%d.pdf", name, t.UnixMilli())
}

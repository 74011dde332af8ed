package orchestrator

import (
	"fmt"
	"html"
	"time"
)

const (
	DefaultContent    = "Please review and edit this letter as needed."
	DefaultTranscript = "Consultation transcript..."
	PendingNote       = "[Audio transcription will appear here once processed]"
)

func salutation(name string) string {
	if name == "" {
		return "Dear Patient,"
	}
	return "Dear " + name + ","
}

// draftFromContent wraps partial backend content in the standard letter.
func draftFromContent(patient, signOff, content string) string {
	if content == "" {
		content = DefaultContent
	}
	return fmt.Sprintf(`<p>%s</p>
<p>I hope this letter finds you well. Following our consultation today, I am writing to summarize our discussion and the treatment plan.</p>
<p>%s</p>
<p>Yours sincerely,</p>
<p>%s</p>`, html.EscapeString(salutation(patient)), html.EscapeString(content), html.EscapeString(signOff))
}

// fallbackDraft is the letter used when generation produced nothing usable.
func fallbackDraft(patient, signOff string) string {
	return fmt.Sprintf(`<p>%s</p>
<p>I hope this letter finds you well. Following our consultation today, I am writing to summarize our discussion.</p>
<p>%s</p>
<p>Please contact the office if you have any questions.</p>
<p>Yours sincerely,</p>
<p>%s</p>`, html.EscapeString(salutation(patient)), PendingNote, html.EscapeString(signOff))
}

func fallbackTranscript(at time.Time) string {
	return "Audio consultation recorded at " + at.Format("02/01/2006, 15:04:05")
}

package generation

import (
	"context"
	"errors"
	"fmt"
)

var ErrSubmissionFailed = errors.New("letter generation failed")

// SubmissionError is any failed generation request: transport error or a
// non-success status. It matches ErrSubmissionFailed.
type SubmissionError struct {
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("letter generation failed: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("letter generation failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSubmissionFailed}
	}
	return []error{ErrSubmissionFailed, e.Err}
}

// Context is the consultation metadata posted alongside the audio.
type Context struct {
	PatientID        string `json:"patient_id"`
	PatientName      string `json:"patient_name"`
	PatientEmail     string `json:"patient_email"`
	PatientPhone     string `json:"patient_phone"`
	AppointmentID    string `json:"appointment_id"`
	DoctorID         string `json:"doctor_id"`
	DoctorName       string `json:"doctor_name"`
	ConsultationType string `json:"consultation_type"`
}

type Upload struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Response is what could be recovered from the backend reply. The backend
// schema is loose, so every field is optional.
type Response struct {
	LetterHTML string
	Transcript string
	Content    string
	StatusCode int
	// Malformed is set when the body was not JSON.
	Malformed bool
	Metrics   *NetworkMetrics
}

func (r *Response) HasLetter() bool {
	return r.LetterHTML != ""
}

// HasPartial reports a reply with transcript or content but no letter.
func (r *Response) HasPartial() bool {
	return !r.HasLetter() && (r.Transcript != "" || r.Content != "")
}

type Client interface {
	Submit(ctx context.Context, up Upload, meta Context) (*Response, error)
}

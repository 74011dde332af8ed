package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const DefaultFailureMessage = "Failed to send letter"

var ErrTransmissionFailed = errors.New("letter transmission failed")

// TransmissionError carries the reason shown to the clinician.
type TransmissionError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransmissionError) Error() string {
	return e.Message
}

func (e *TransmissionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransmissionFailed}
	}
	return []error{ErrTransmissionFailed, e.Err}
}

// Request is the delivery webhook payload.
type Request struct {
	LetterID     string `json:"letter_id"`
	LetterHTML   string `json:"letter_html"`
	PDFBase64    string `json:"pdf_base64"`
	Filename     string `json:"filename"`
	PatientName  string `json:"patient_name"`
	PatientEmail string `json:"patient_email"`
	PatientPhone string `json:"patient_phone"`
	ApprovedBy   string `json:"approved_by"`
	SendEmail    bool   `json:"send_email"`
	SendWhatsApp bool   `json:"send_whatsapp"`
}

type Receipt struct {
	StatusCode int
	Message    string
	// Malformed is set when a successful reply had an unreadable body.
	Malformed bool
	Elapsed   time.Duration
}

type Sender interface {
	Send(ctx context.Context, req Request) (*Receipt, error)
}

// Webhook sends letters through the delivery workflow. There is exactly one
// attempt per call; retrying is the clinician's decision.
type Webhook struct {
	url    string
	client *resty.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Webhook{url: url, client: c}
}

func (w *Webhook) URL() string { return w.url }

// Probe checks that the workflow host answers; any HTTP status counts.
func (w *Webhook) Probe(ctx context.Context) error {
	_, err := w.client.R().SetContext(ctx).Head(w.url)
	return err
}

func (w *Webhook) Send(ctx context.Context, req Request) (*Receipt, error) {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(w.url)
	if err != nil {
		return nil, &TransmissionError{Message: DefaultFailureMessage, Err: err}
	}
	return interpret(resp.StatusCode(), resp.Body(), resp.Time())
}

func interpret(status int, body []byte, elapsed time.Duration) (*Receipt, error) {
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, &TransmissionError{
			StatusCode: status,
			Message:    DefaultFailureMessage,
			Err:        fmt.Errorf("HTTP %d", status),
		}
	}
	// 2xx is accepted even when the body is empty or unreadable.
	rcpt := &Receipt{StatusCode: status, Elapsed: elapsed}
	if len(body) == 0 || !gjson.ValidBytes(body) {
		rcpt.Malformed = true
		return rcpt, nil
	}

	res := gjson.ParseBytes(body)
	if res.IsArray() {
		res = res.Get("0")
	}
	rcpt.Message = res.Get("message").String()
	if ok := res.Get("success"); ok.Exists() && !ok.Bool() {
		msg := rcpt.Message
		if msg == "" {
			msg = DefaultFailureMessage
		}
		return nil, &TransmissionError{StatusCode: status, Message: msg}
	}
	return rcpt, nil
}

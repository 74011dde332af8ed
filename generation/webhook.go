package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/tidwall/gjson"
)

// Webhook posts recordings to the letter generation workflow.
type Webhook struct {
	url    string
	client *TracedClient
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{url: url, client: NewTracedClient(timeout)}
}

func (w *Webhook) URL() string { return w.url }

// Warm pre-establishes a connection while the clinician is still dictating.
func (w *Webhook) Warm() time.Duration {
	return w.client.Warm(w.url)
}

// Probe checks that the workflow host answers; any HTTP status counts.
func (w *Webhook) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, w.url, nil)
	if err != nil {
		return err
	}
	_, err = w.client.Do(req)
	return err
}

func (w *Webhook) Submit(ctx context.Context, up Upload, meta Context) (*Response, error) {
	body, contentType, err := encodeForm(up, meta)
	if err != nil {
		return nil, fmt.Errorf("building generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, body)
	if err != nil {
		return nil, &SubmissionError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, &SubmissionError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &SubmissionError{StatusCode: resp.StatusCode}
	}

	r := ParseResponse(resp.Body)
	r.StatusCode = resp.StatusCode
	r.Metrics = resp.Metrics
	return r, nil
}

func encodeForm(up Upload, meta Context) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio_file"; filename=%q`, up.Filename))
	h.Set("Content-Type", up.MIMEType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(up.Data); err != nil {
		return nil, "", err
	}

	ctxJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("context", string(ctxJSON)); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// ParseResponse extracts whatever letter fields the body carries. Workflow
// engines sometimes wrap the reply in a one-element array; that is unwrapped.
func ParseResponse(body []byte) *Response {
	if !gjson.ValidBytes(body) {
		return &Response{Malformed: true}
	}
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		root = root.Get("0")
	}
	return &Response{
		LetterHTML: firstString(root, "letterHtml", "letter_html", "letter"),
		Transcript: firstString(root, "transcript"),
		Content:    firstString(root, "content"),
	}
}

func firstString(r gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := r.Get(k); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

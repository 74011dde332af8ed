package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clinicletter/letter"
	"clinicletter/log"
)

// Byte budgets for the two uses of a rendered letter.
const (
	PreviewBudget      int64 = 8 << 20
	TransmissionBudget int64 = 10 << 20
)

const (
	pdfMagic    = "%PDF-1"
	base64Magic = "JVBERi0x"
)

var (
	ErrArtifactTooLarge = errors.New("document too large")
	ErrNotPDF           = errors.New("generated document is not a PDF")
)

type ArtifactTooLargeError struct {
	Size   int
	Budget int64
}

func (e *ArtifactTooLargeError) Error() string {
	return fmt.Sprintf("PDF too large (%.2fMB). Maximum size is %.0fMB.",
		float64(e.Size)/(1<<20), float64(e.Budget)/(1<<20))
}

func (e *ArtifactTooLargeError) Unwrap() error { return ErrArtifactTooLarge }

type Artifact struct {
	Data     []byte
	Base64   string
	Filename string
}

func (a *Artifact) Size() int { return len(a.Data) }

// WriteFile saves the PDF under dir and returns its path.
func (a *Artifact) WriteFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, a.Filename)
	if err := os.WriteFile(path, a.Data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// Input is one letter to render.
type Input struct {
	LetterID string
	Markup   string
	To       Recipient
	// Purpose labels the diagnostics entry, e.g. "preview".
	Purpose string
}

type Renderer struct {
	Letterhead Letterhead
	Now        func() time.Time
}

func New(lh Letterhead) *Renderer {
	return &Renderer{Letterhead: lh, Now: time.Now}
}

// Render produces a single-page PDF of the letter no larger than budget.
// Nothing is returned on failure.
func (r *Renderer) Render(ctx context.Context, in Input, budget int64) (*Artifact, error) {
	start := time.Now()
	now := r.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := rasterize(compose(r.Letterhead, in.To, in.Markup, now))
	if err != nil {
		return nil, fmt.Errorf("rasterizing letter: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	jpg, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pdf, err := embedPDF(jpg, img.Bounds(), "Clinic letter "+in.To.Name)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(pdf, []byte(pdfMagic)) {
		return nil, ErrNotPDF
	}
	if int64(len(pdf)) > budget {
		log.Warnf("letter %s: %s artifact %d bytes exceeds %d", in.LetterID, in.Purpose, len(pdf), budget)
		return nil, &ArtifactTooLargeError{Size: len(pdf), Budget: budget}
	}

	b64 := base64.StdEncoding.EncodeToString(pdf)
	if !strings.HasPrefix(b64, base64Magic) {
		return nil, ErrNotPDF
	}

	log.Artifact(in.LetterID, in.Purpose, len(pdf), budget, float64(time.Since(start).Microseconds())/1000)
	return &Artifact{
		Data:     pdf,
		Base64:   b64,
		Filename: letter.Filename(in.To.Name, now),
	}, nil
}

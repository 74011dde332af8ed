package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"github.com/go-pdf/fpdf"
)

const (
	JPEGQuality = 30
	a4WidthPt   = 595.28
	a4HeightPt  = 841.89
)

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// embedPDF places the JPEG at the top of a single compressed A4 page,
// full width, with its height capped at the page height.
func embedPDF(jpg []byte, bounds image.Rectangle, title string) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("clinicletter", true)
	pdf.SetTitle(title, true)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader("letter", opts, bytes.NewReader(jpg))

	h := float64(bounds.Dy()) * a4WidthPt / float64(bounds.Dx())
	h = math.Min(h, a4HeightPt)
	pdf.ImageOptions("letter", 0, 0, a4WidthPt, h, false, opts, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return out.Bytes(), nil
}

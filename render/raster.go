package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	PageWidth   = 595
	PagePadding = 30
	Scale       = 0.75
)

var ruleColor = color.RGBA{0xcc, 0xcc, 0xcc, 0xff}

var liveSurfaces atomic.Int32

// LiveSurfaces reports how many off-screen surfaces are currently allocated.
func LiveSurfaces() int {
	return int(liveSurfaces.Load())
}

// surface is an off-screen white canvas. release must be called exactly
// once on every path; it is safe to call again.
type surface struct {
	img *image.RGBA
}

func newSurface(w, h int) *surface {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	liveSurfaces.Add(1)
	return &surface{img: img}
}

func (s *surface) release() {
	if s == nil || s.img == nil {
		return
	}
	s.img = nil
	liveSurfaces.Add(-1)
}

type faceKey struct {
	bold bool
	size float64
}

var (
	fontsOnce   sync.Once
	regularFont *opentype.Font
	boldFont    *opentype.Font
	fontsErr    error
)

// faceSet caches faces for one render. opentype faces are not safe for
// concurrent use, so sets are never shared between Render calls; the parsed
// fonts are.
type faceSet map[faceKey]font.Face

func (fs faceSet) face(bold bool, size float64) (font.Face, error) {
	fontsOnce.Do(func() {
		regularFont, fontsErr = opentype.Parse(goregular.TTF)
		if fontsErr != nil {
			return
		}
		boldFont, fontsErr = opentype.Parse(gobold.TTF)
	})
	if fontsErr != nil {
		return nil, fmt.Errorf("loading fonts: %w", fontsErr)
	}

	k := faceKey{bold, size}
	if f, ok := fs[k]; ok {
		return f, nil
	}
	src := regularFont
	if bold {
		src = boldFont
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, err
	}
	fs[k] = f
	return f, nil
}

type segment struct {
	text  string
	face  font.Face
	width fixed.Int26_6
}

type line struct {
	segs  []segment
	width fixed.Int26_6
	size  float64
	align align
	top   int
	rule  bool
}

// wrap breaks blocks into positioned lines within the content width.
// It returns the lines and the total page height.
func wrap(blocks []block, contentWidth int) ([]line, int, error) {
	maxW := fixed.I(contentWidth)
	faces := faceSet{}
	var lines []line
	y := PagePadding

	for _, b := range blocks {
		y += b.marginTop
		if b.rule {
			lines = append(lines, line{rule: true, top: y})
			y += 9
			continue
		}
		lh := int(math.Ceil(b.size * lineHeight))

		cur := line{size: b.size, align: b.align, top: y}
		emit := func() {
			lines = append(lines, cur)
			y += lh
			cur = line{size: b.size, align: b.align, top: y}
		}
		for _, r := range b.runs {
			f, err := faces.face(r.bold, b.size)
			if err != nil {
				return nil, 0, err
			}
			space := font.MeasureString(f, " ")
			for i, w := range strings.Split(r.text, " ") {
				if i > 0 && len(cur.segs) > 0 {
					cur.segs = append(cur.segs, segment{" ", f, space})
					cur.width += space
				}
				if w == "" {
					continue
				}
				for _, piece := range splitWide(f, w, maxW) {
					ww := font.MeasureString(f, piece)
					if cur.width+ww > maxW && len(cur.segs) > 0 {
						trimTrailingSpace(&cur)
						emit()
					}
					cur.segs = append(cur.segs, segment{piece, f, ww})
					cur.width += ww
				}
			}
		}
		trimTrailingSpace(&cur)
		emit()
	}
	return lines, y + PagePadding, nil
}

// splitWide breaks a word wider than maxW (a long URL or address) into
// pieces that each fit.
func splitWide(f font.Face, w string, maxW fixed.Int26_6) []string {
	if font.MeasureString(f, w) <= maxW {
		return []string{w}
	}
	var pieces []string
	var cur []rune
	for _, r := range w {
		if len(cur) > 0 && font.MeasureString(f, string(append(cur, r))) > maxW {
			pieces = append(pieces, string(cur))
			cur = cur[:0]
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		pieces = append(pieces, string(cur))
	}
	return pieces
}

func trimTrailingSpace(l *line) {
	for len(l.segs) > 0 && l.segs[len(l.segs)-1].text == " " {
		l.width -= l.segs[len(l.segs)-1].width
		l.segs = l.segs[:len(l.segs)-1]
	}
}

// paint draws the lines onto s at full resolution.
func paint(s *surface, lines []line, contentWidth int) {
	for _, l := range lines {
		if l.rule {
			for x := PagePadding; x < PagePadding+contentWidth; x++ {
				s.img.SetRGBA(x, l.top, ruleColor)
			}
			continue
		}
		x := fixed.I(PagePadding)
		if l.align == alignCenter {
			x += (fixed.I(contentWidth) - l.width) / 2
		}
		for _, seg := range l.segs {
			d := font.Drawer{
				Dst:  s.img,
				Src:  image.Black,
				Face: seg.face,
				Dot:  fixed.Point26_6{X: x, Y: fixed.I(l.top) + seg.face.Metrics().Ascent},
			}
			d.DrawString(seg.text)
			x += seg.width
		}
	}
}

// rasterize renders blocks at full size, then downscales by Scale. Both
// surfaces are released before it returns; the result is a plain image.
func rasterize(blocks []block) (image.Image, error) {
	contentWidth := PageWidth - 2*PagePadding
	lines, height, err := wrap(blocks, contentWidth)
	if err != nil {
		return nil, err
	}

	full := newSurface(PageWidth, height)
	defer full.release()
	paint(full, lines, contentWidth)

	w := int(math.Round(PageWidth * Scale))
	h := int(math.Round(float64(height) * Scale))
	small := newSurface(w, h)
	defer small.release()
	draw.BiLinear.Scale(small.img, small.img.Bounds(), full.img, full.img.Bounds(), draw.Src, nil)

	out := image.NewRGBA(small.img.Bounds())
	copy(out.Pix, small.img.Pix)
	return out, nil
}

// Package compositor renders a single Hanzi, optionally captioned with its
// pronunciations, onto a white rounded card and encodes it as PNG.
//
// Drawing happens on a supersampled surface that is downsampled with a
// Catmull-Rom filter, so glyph edges come out smooth at display size. Every
// pixel is opaque; outside the rounded card the canvas color shows. The
// output is a pure function of the inputs and the configured fonts.
package compositor

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/ovaphlow/pictoria/service-api/internal/action"
)

const (
	DefaultDisplaySize = 1024
	DefaultSuperSample = 4

	// MaxSurfaceSide bounds the supersampled surface.
	MaxSurfaceSide = 8192

	// Layout constants are given for a 1024px card and scale with the
	// display size.
	referenceSize   = 1024
	cornerRadius    = 12
	charFontSize    = 800
	charLift        = 80
	captionBase     = 40
	captionPerScale = 30
	captionOffset   = 440

	captionSeparator = "  "
)

// canvas fills the surface behind the card.
var canvas = color.RGBA{R: 0xe8, G: 0xe8, B: 0xe8, A: 0xff}

// kappa approximates a quarter circle with one cubic bezier.
const kappa = 0.5522847498

// Options configures a Compositor. Zero sizes take the defaults; nil fonts
// fall back to Go Regular for the character and Go Bold for the caption.
// Go Regular has no Han glyphs, so production callers supply CharFont.
type Options struct {
	DisplaySize int
	SuperSample int
	CharFont    []byte
	CaptionFont []byte
}

// Compositor is safe for concurrent use; every Render allocates its own surface.
type Compositor struct {
	display     int
	superSample int
	charFont    *opentype.Font
	captionFont *opentype.Font
}

// Image is one encoded render.
type Image struct {
	PNG     []byte
	Size    int
	Width   int
	Height  int
	DataURI string
}

// New parses the fonts once. A font that cannot be parsed makes the
// compositor unusable and is reported as ErrRenderUnavailable.
func New(opts Options) (*Compositor, error) {
	if opts.DisplaySize == 0 {
		opts.DisplaySize = DefaultDisplaySize
	}
	if opts.SuperSample == 0 {
		opts.SuperSample = DefaultSuperSample
	}
	if opts.CharFont == nil {
		opts.CharFont = goregular.TTF
	}
	if opts.CaptionFont == nil {
		opts.CaptionFont = gobold.TTF
	}
	cf, err := opentype.Parse(opts.CharFont)
	if err != nil {
		return nil, fmt.Errorf("%w: character font: %v", action.ErrRenderUnavailable, err)
	}
	pf, err := opentype.Parse(opts.CaptionFont)
	if err != nil {
		return nil, fmt.Errorf("%w: caption font: %v", action.ErrRenderUnavailable, err)
	}
	return &Compositor{display: opts.DisplaySize, superSample: opts.SuperSample, charFont: cf, captionFont: pf}, nil
}

// LoadFont reads a font file; an empty path yields nil so the built-in face is used.
func LoadFont(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load font %s: %w", path, err)
	}
	return b, nil
}

// Render draws character with the pronunciations joined beneath it.
func (c *Compositor) Render(character string, pronunciations []string) (*Image, error) {
	character = strings.TrimSpace(character)
	if n := uniseg.GraphemeClusterCount(character); n != 1 {
		return nil, fmt.Errorf("%w: character must be exactly one grapheme, got %d", action.ErrInvalidInput, n)
	}
	if !c.Supports(character) {
		return nil, fmt.Errorf("%w: character font has no glyph for %q", action.ErrRenderUnavailable, character)
	}
	side := c.display * c.superSample
	if c.display <= 0 || c.superSample <= 0 || side > MaxSurfaceSide {
		return nil, fmt.Errorf("%w: surface %dx%d", action.ErrRenderUnavailable, side, side)
	}

	surface := image.NewRGBA(image.Rect(0, 0, side, side))
	c.fillCard(surface, side)

	caption := joinCaption(pronunciations)
	cy := float64(side) / 2
	if caption != "" {
		cy -= c.scaled(charLift)
	}
	if err := c.drawCentered(surface, c.charFont, c.scaled(charFontSize), character, float64(side)/2, cy); err != nil {
		return nil, err
	}
	if caption != "" {
		size := float64(captionBase+captionPerScale*c.superSample) * float64(c.display) / referenceSize
		y := float64(side)/2 + c.scaled(captionOffset)
		if err := c.drawCentered(surface, c.captionFont, size, caption, float64(side)/2, y); err != nil {
			return nil, err
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, c.display, c.display))
	xdraw.CatmullRom.Scale(out, out.Bounds(), surface, surface.Bounds(), xdraw.Src, nil)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", action.ErrRenderUnavailable, err)
	}
	b := buf.Bytes()
	return &Image{
		PNG:     b,
		Size:    len(b),
		Width:   c.display,
		Height:  c.display,
		DataURI: "data:image/png;base64," + base64.StdEncoding.EncodeToString(b),
	}, nil
}

// Supports reports whether the character font maps the base rune of s to a
// real glyph rather than .notdef.
func (c *Compositor) Supports(s string) bool {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return false
	}
	var b sfnt.Buffer
	gi, err := c.charFont.GlyphIndex(&b, r)
	return err == nil && gi != 0
}

// scaled converts a reference-card length to surface pixels.
func (c *Compositor) scaled(v float64) float64 {
	return v * float64(c.superSample) * float64(c.display) / referenceSize
}

// fillCard paints the canvas, then an opaque white rounded rectangle covering
// the surface.
func (c *Compositor) fillCard(dst *image.RGBA, side int) {
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(canvas), image.Point{}, xdraw.Src)

	w := float32(side)
	r := float32(c.scaled(cornerRadius))
	if r > w/2 {
		r = w / 2
	}
	kr := float32(kappa) * r

	z := vector.NewRasterizer(side, side)
	z.MoveTo(r, 0)
	z.LineTo(w-r, 0)
	z.CubeTo(w-r+kr, 0, w, r-kr, w, r)
	z.LineTo(w, w-r)
	z.CubeTo(w, w-r+kr, w-r+kr, w, w-r, w)
	z.LineTo(r, w)
	z.CubeTo(r-kr, w, 0, w-r+kr, 0, w-r)
	z.LineTo(0, r)
	z.CubeTo(0, r-kr, r-kr, 0, r, 0)
	z.ClosePath()
	z.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{})
}

// drawCentered draws s in black with its ink bounds centered on (cx, cy).
func (c *Compositor) drawCentered(dst *image.RGBA, f *opentype.Font, size float64, s string, cx, cy float64) error {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return fmt.Errorf("%w: face: %v", action.ErrRenderUnavailable, err)
	}
	defer face.Close()

	bounds, _ := font.BoundString(face, s)
	inkW := fixedToFloat(bounds.Max.X - bounds.Min.X)
	inkH := fixedToFloat(bounds.Max.Y - bounds.Min.Y)
	x := cx - inkW/2 - fixedToFloat(bounds.Min.X)
	y := cy - inkH/2 - fixedToFloat(bounds.Min.Y)

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.Point26_6{X: floatToFixed(x), Y: floatToFixed(y)},
	}
	d.DrawString(s)
	return nil
}

func joinCaption(pronunciations []string) string {
	parts := make([]string, 0, len(pronunciations))
	for _, p := range pronunciations {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, captionSeparator)
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }

func floatToFixed(v float64) fixed.Int26_6 { return fixed.Int26_6(v * 64) }

// Package annotate draws extraction regions over a page image.
package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/dgallion1/finextract/internal/metrics"
)

// Palette maps region color names to RGBA values.
var Palette = map[string]color.RGBA{
	"blue":   {0, 0, 255, 255},
	"purple": {128, 0, 128, 255},
	"red":    {255, 0, 0, 255},
	"green":  {0, 128, 0, 255},
	"orange": {255, 165, 0, 255},
	"black":  {0, 0, 0, 255},
	"gray":   {128, 128, 128, 255},
}

var fallbackColor = color.RGBA{255, 0, 0, 255}

// Options controls how regions are drawn. Scale converts document
// coordinates into image pixels.
type Options struct {
	Scale       float64
	LineWidth   int
	LabelOffset int
	Face        font.Face
}

func DefaultOptions() Options {
	return Options{Scale: 1, LineWidth: 3, LabelOffset: 20, Face: basicfont.Face7x13}
}

// ColorFor resolves a color name, falling back to red.
func ColorFor(name string) color.RGBA {
	if c, ok := Palette[strings.ToLower(name)]; ok {
		return c
	}
	return fallbackColor
}

// Draw returns an annotated copy of base; base is not modified.
func Draw(base image.Image, regions []metrics.Region, opts Options) *image.RGBA {
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.LineWidth <= 0 {
		opts.LineWidth = 3
	}
	if opts.Face == nil {
		opts.Face = basicfont.Face7x13
	}

	bounds := base.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, base, bounds.Min, draw.Src)

	for _, r := range regions {
		c := ColorFor(r.Color)
		rect := r.BBox.Rect(opts.Scale)
		outline(dst, rect, opts.LineWidth, c)
		label(dst, image.Pt(rect.Min.X, rect.Min.Y-opts.LabelOffset), r.Label, opts.Face, c)
	}
	return dst
}

func outline(dst draw.Image, r image.Rectangle, width int, c color.Color) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}

// label draws text in white on a filled box whose top-left corner is at.
func label(dst draw.Image, at image.Point, text string, face font.Face, bg color.Color) {
	if text == "" {
		return
	}
	m := face.Metrics()
	w := font.MeasureString(face, text).Ceil()
	h := m.Height.Ceil()
	box := image.Rect(at.X, at.Y, at.X+w, at.Y+h)
	draw.Draw(dst, box, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(at.X, at.Y+m.Ascent.Ceil()),
	}
	d.DrawString(text)
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

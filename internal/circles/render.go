// Package circles renders the interaction-circles PNG: the actor in the
// middle, top counterparties in rank order across two orbits.
package circles

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	canvasSize   = 1800
	outputSize   = canvasSize / 3
	cornerRadius = 12
	borderWidth  = canvasSize / 60
	fontSize     = canvasSize / 30

	mainRadius = 0.13
	// The date and watermark occupy the top band; the whole composition
	// shifts down to compensate.
	verticalDisplace = 0.04

	watermark  = "wolfgang.raios.xyz"
	dateFormat = "2006-01-02"
)

var (
	bgColor     = color.RGBA{R: 0x1D, G: 0x42, B: 0x8A, A: 0xFF}
	borderColor = color.RGBA{R: 0xFF, G: 0xC7, B: 0x2C, A: 0xFF}
	lightText   = color.RGBA{R: 0xCC, G: 0xCC, B: 0xCC, A: 0xFF}
	darkText    = color.RGBA{A: 0xFF}
)

// Renderer composes circles images. It is safe for concurrent use; the
// font face is read-only after construction.
type Renderer struct {
	face font.Face
}

// NewRenderer parses the embedded font and prepares a fixed-size face.
func NewRenderer() (*Renderer, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("building font face: %w", err)
	}
	return &Renderer{face: face}, nil
}

// Render draws main in the center and others outward in rank order,
// then downscales and PNG-encodes. Images beyond the layout's slots are
// ignored; short lists leave the outer slots empty.
func (r *Renderer) Render(main image.Image, others []image.Image, start, end time.Time) ([]byte, error) {
	cv := image.NewRGBA(image.Rect(0, 0, canvasSize, canvasSize))

	fillRoundedRect(cv, cv.Bounds(), cornerRadius, borderColor)
	draw.Draw(cv, cv.Bounds().Inset(borderWidth), image.NewUniform(bgColor), image.Point{}, draw.Src)

	textColor := color.Color(lightText)
	if isLight(bgColor) {
		textColor = darkText
	}
	dates := fmt.Sprintf("%s - %s", start.Format(dateFormat), end.Format(dateFormat))
	r.drawText(cv, dates, canvasSize/35, canvasSize/45, false, textColor)
	r.drawText(cv, watermark, canvasSize-canvasSize/35, canvasSize/45, true, textColor)

	center := float64(canvasSize) / 2
	mid := (1 + verticalDisplace) * center
	drawAvatar(cv, main, place{x: center, y: mid, r: canvasSize * mainRadius})

	i := 0
	for orbitIdx, orbit := range orbits {
		step := 360.0 / float64(orbit.Count)
		for slot := 0; slot < orbit.Count && i < len(others); slot++ {
			t := (float64(slot)*step + float64(orbitIdx)*30) * math.Pi / 180
			drawAvatar(cv, others[i], place{
				x: math.Cos(t)*canvasSize*orbit.Distance + center,
				y: math.Sin(t)*canvasSize*orbit.Distance + mid,
				r: canvasSize * orbit.Radius,
			})
			i++
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, outputSize, outputSize))
	xdraw.CatmullRom.Scale(out, out.Bounds(), cv, cv.Bounds(), xdraw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// drawText anchors text at its ascender line: (x, y) is the top-left
// corner, or the top-right when rightAlign is set.
func (r *Renderer) drawText(dst *image.RGBA, text string, x, y int, rightAlign bool, c color.Color) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: r.face}
	dot := fixed.P(x, y)
	dot.Y += r.face.Metrics().Ascent
	if rightAlign {
		dot.X -= d.MeasureString(text)
	}
	d.Dot = dot
	d.DrawString(text)
}

// isLight implements the perceived-brightness rule used to flip the
// overlay text to black on light backgrounds.
func isLight(c color.RGBA) bool {
	return (299*int(c.R)+587*int(c.G)+114*int(c.B))/1000 > 155
}

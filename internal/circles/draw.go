package circles

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// place positions an avatar: center coordinates and radius in canvas
// pixels.
type place struct {
	x, y, r float64
}

// drawAvatar center-crops src to a square, scales it to the slot size
// and composites it through a circular mask.
func drawAvatar(dst *image.RGBA, src image.Image, p place) {
	d := int(p.r * 2)
	if d <= 0 || src == nil {
		return
	}

	scaled := image.NewRGBA(image.Rect(0, 0, d, d))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), src, centerSquare(src.Bounds()), xdraw.Src, nil)

	x0 := int(p.x - p.r)
	y0 := int(p.y - p.r)
	target := image.Rect(x0, y0, x0+d, y0+d)
	draw.DrawMask(dst, target, scaled, image.Point{}, circleMask(d), image.Point{}, draw.Over)
}

// centerSquare returns the largest centered square inside b.
func centerSquare(b image.Rectangle) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	switch {
	case w > h:
		off := (w - h) / 2
		return image.Rect(b.Min.X+off, b.Min.Y, b.Min.X+off+h, b.Max.Y)
	case h > w:
		off := (h - w) / 2
		return image.Rect(b.Min.X, b.Min.Y+off, b.Max.X, b.Min.Y+off+w)
	}
	return b
}

func circleMask(d int) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, d, d))
	r := float64(d) / 2
	for y := 0; y < d; y++ {
		for x := 0; x < d; x++ {
			dx := float64(x) + 0.5 - r
			dy := float64(y) + 0.5 - r
			if dx*dx+dy*dy <= r*r {
				mask.SetAlpha(x, y, color.Alpha{A: 0xFF})
			}
		}
	}
	return mask
}

// fillRoundedRect fills b with c, clipping the four corners to radius.
// Pixels outside the shape are left untouched, so the canvas corners
// stay transparent.
func fillRoundedRect(dst *image.RGBA, b image.Rectangle, radius int, c color.Color) {
	src := image.NewUniform(c)
	if radius <= 0 {
		draw.Draw(dst, b, src, image.Point{}, draw.Src)
		return
	}

	draw.Draw(dst, image.Rect(b.Min.X+radius, b.Min.Y, b.Max.X-radius, b.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(b.Min.X, b.Min.Y+radius, b.Min.X+radius, b.Max.Y-radius), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(b.Max.X-radius, b.Min.Y+radius, b.Max.X, b.Max.Y-radius), src, image.Point{}, draw.Src)

	fr := float64(radius)
	fillCorner(dst, image.Rect(b.Min.X, b.Min.Y, b.Min.X+radius, b.Min.Y+radius), float64(b.Min.X)+fr, float64(b.Min.Y)+fr, fr, c)
	fillCorner(dst, image.Rect(b.Max.X-radius, b.Min.Y, b.Max.X, b.Min.Y+radius), float64(b.Max.X)-fr, float64(b.Min.Y)+fr, fr, c)
	fillCorner(dst, image.Rect(b.Min.X, b.Max.Y-radius, b.Min.X+radius, b.Max.Y), float64(b.Min.X)+fr, float64(b.Max.Y)-fr, fr, c)
	fillCorner(dst, image.Rect(b.Max.X-radius, b.Max.Y-radius, b.Max.X, b.Max.Y), float64(b.Max.X)-fr, float64(b.Max.Y)-fr, fr, c)
}

func fillCorner(dst *image.RGBA, sq image.Rectangle, cx, cy, radius float64, c color.Color) {
	for y := sq.Min.Y; y < sq.Max.Y; y++ {
		for x := sq.Min.X; x < sq.Max.X; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if dx*dx+dy*dy <= radius*radius {
				dst.Set(x, y, c)
			}
		}
	}
}

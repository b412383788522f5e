// Package overlay draws annotation boxes and labels onto RGBA frames. It backs
// the overlay exporter and the replay engine's preview frames.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/simcapture/internal/session"
)

var Background = color.RGBA{R: 24, G: 26, B: 32, A: 255}

var palette = []color.RGBA{
	{R: 230, G: 57, B: 70, A: 255},
	{R: 42, G: 157, B: 143, A: 255},
	{R: 233, G: 196, B: 106, A: 255},
	{R: 69, G: 123, B: 157, A: 255},
	{R: 244, G: 162, B: 97, A: 255},
	{R: 131, G: 56, B: 236, A: 255},
	{R: 106, G: 153, B: 78, A: 255},
	{R: 255, G: 0, B: 110, A: 255},
}

// ClassColor returns a stable color per class id.
func ClassColor(classID int) color.RGBA {
	if classID < 1 {
		return color.RGBA{R: 200, G: 200, B: 200, A: 255}
	}
	return palette[(classID-1)%len(palette)]
}

// Clear fills the whole frame with the background color.
func Clear(dst draw.Image) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)
}

// FillRect paints a solid rectangle in pixel space, clipped to dst.
func FillRect(dst draw.Image, x, y, w, h float64, c color.Color) {
	r := pixelRect(x, y, w, h).Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Over)
}

// StrokeRect draws a rectangle outline of the given thickness.
func StrokeRect(dst draw.Image, x, y, w, h float64, thickness int, c color.Color) {
	r := pixelRect(x, y, w, h)
	if r.Empty() {
		return
	}
	if thickness < 1 {
		thickness = 1
	}
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		e = e.Intersect(dst.Bounds())
		if !e.Empty() {
			draw.Draw(dst, e, src, image.Point{}, draw.Src)
		}
	}
}

// Label writes text with its baseline at (x, y) on a filled tag.
func Label(dst draw.Image, x, y int, text string, bg color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.White, Face: face}
	width := d.MeasureString(text).Ceil()
	m := face.Metrics()

	tag := image.Rect(x, y-m.Ascent.Ceil()-1, x+width+4, y+m.Descent.Ceil()+1).Intersect(dst.Bounds())
	if !tag.Empty() {
		draw.Draw(dst, tag, image.NewUniform(bg), image.Point{}, draw.Src)
	}
	d.Dot = fixed.P(x+2, y)
	d.DrawString(text)
}

// DrawBoxes outlines every box and tags it with its label.
func DrawBoxes(dst draw.Image, boxes []session.BoundingBox2D) {
	thickness := 2
	if dst.Bounds().Dx() >= 1280 {
		thickness = 3
	}
	for _, b := range boxes {
		c := ClassColor(b.ClassID)
		StrokeRect(dst, b.X, b.Y, b.Width, b.Height, thickness, c)

		// keep the tag on screen for boxes touching the top edge
		ty := int(math.Floor(b.Y)) - 3
		if ty < 12 {
			ty = int(math.Floor(b.Y)) + 13
		}
		Label(dst, int(math.Floor(b.X)), ty, b.Label, c)
	}
}

// Annotated renders boxes over a blank frame of the given size.
func Annotated(width, height int, boxes []session.BoundingBox2D) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	Clear(img)
	DrawBoxes(img, boxes)
	return img
}

func pixelRect(x, y, w, h float64) image.Rectangle {
	return image.Rect(
		int(math.Floor(x)),
		int(math.Floor(y)),
		int(math.Ceil(x+w)),
		int(math.Ceil(y+h)),
	)
}

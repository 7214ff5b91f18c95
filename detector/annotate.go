package detector

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand/v2"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// TextColor is the label text color.
var TextColor = color.RGBA{R: 225, G: 255, B: 255, A: 255}

// hersheyHeight approximates the pixel height of the Hershey simplex font
// at scale 1, which the label sizes are expressed in.
const hersheyHeight = 22.0

var (
	fontOnce sync.Once
	labelFnt *opentype.Font
	fontErr  error
)

func labelFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		labelFnt, fontErr = opentype.Parse(goregular.TTF)
	})
	return labelFnt, fontErr
}

// RandomColor picks a frame color.
func RandomColor() color.RGBA {
	return color.RGBA{R: uint8(rand.IntN(256)), G: uint8(rand.IntN(256)), B: uint8(rand.IntN(256)), A: 255}
}

// LineThickness is the frame width for an image of the given size.
func LineThickness(bounds image.Rectangle) int {
	longest := max(bounds.Dx(), bounds.Dy())
	return int(math.RoundToEven(0.002*float64(longest))) + 1
}

// DrawBox outlines the rectangle from c1 to c2 with a stroke of the given
// thickness centered on the edges.
func DrawBox(img draw.Image, c1, c2 image.Point, col color.Color, thickness int) {
	r := image.Rectangle{Min: c1, Max: c2}.Canon()
	lo := -(thickness - 1) / 2
	hi := thickness / 2
	src := image.NewUniform(col)

	// top, bottom, left, right
	edges := []image.Rectangle{
		image.Rect(r.Min.X+lo, r.Min.Y+lo, r.Max.X+hi+1, r.Min.Y+hi+1),
		image.Rect(r.Min.X+lo, r.Max.Y+lo, r.Max.X+hi+1, r.Max.Y+hi+1),
		image.Rect(r.Min.X+lo, r.Min.Y+lo, r.Min.X+hi+1, r.Max.Y+hi+1),
		image.Rect(r.Max.X+lo, r.Min.Y+lo, r.Max.X+hi+1, r.Max.Y+hi+1),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Bounds()), src, image.Point{}, draw.Src)
	}
}

// LabelBox returns the filled background rectangle of a label anchored at
// c1 and the baseline origin of its text.
func LabelBox(c1 image.Point, textWidth, textHeight int) (image.Rectangle, image.Point) {
	c2 := image.Pt(c1.X+textWidth, c1.Y-textHeight-3)
	return image.Rectangle{Min: c1, Max: c2}.Canon(), image.Pt(c1.X, c1.Y-2)
}

// DrawLabel writes text on a filled box above c1 using a font scale of
// thickness/3.
func DrawLabel(img draw.Image, c1 image.Point, text string, col color.Color, thickness int) error {
	f, err := labelFont()
	if err != nil {
		return err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    math.Max(8, hersheyHeight*float64(thickness)/3),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return err
	}
	defer face.Close()

	textWeight := max(thickness-1, 1)
	width := font.MeasureString(face, text).Ceil() + textWeight - 1
	height := face.Metrics().Ascent.Ceil()

	box, origin := LabelBox(c1, width, height)
	// cv2 fills rectangles inclusive of the far corner
	box.Max = box.Max.Add(image.Pt(1, 1))
	draw.Draw(img, box.Intersect(img.Bounds()), image.NewUniform(col), image.Point{}, draw.Src)

	d := &font.Drawer{Dst: img, Src: image.NewUniform(TextColor), Face: face}
	for i := 0; i < textWeight; i++ {
		d.Dot = fixed.P(origin.X+i, origin.Y)
		d.DrawString(text)
	}
	return nil
}

// toRGBA copies src into a drawable RGBA image with origin (0,0).
func toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

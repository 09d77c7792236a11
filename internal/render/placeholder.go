package render

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// PlaceholderRenderer draws a stand-in financial report page whose layout
// lines up with the mock DocTags coordinates. It does not rasterize the PDF;
// it only checks the page index against the PDF's page count.
type PlaceholderRenderer struct {
	Width  int
	Height int
}

var (
	titleFill = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
	bodyFill  = color.RGBA{0xf5, 0xf5, 0xf5, 0xff}
)

var placeholderRows = []string{
	"Total Revenue: $1234.56",
	"Op Expenses: $850.00",
	"Net Income: $384.56",
	"EPS: 0.52",
}

func (r *PlaceholderRenderer) RenderPage(pdf []byte, page int) (*Page, error) {
	w, h := r.Width, r.Height
	if w <= 0 {
		w = 612
	}
	if h <= 0 {
		h = 792
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	// Unreadable PDFs still get a page; only a known short PDF is gray.
	if info, err := Inspect(pdf); err == nil && page >= info.Pages {
		fill(img, img.Bounds(), color.Gray{0x80})
		return &Page{Image: img, Scale: 1}, nil
	}

	fill(img, img.Bounds(), color.White)
	stroke(img, image.Rect(40, 40, w-40, h-40), color.Black)

	fill(img, image.Rect(60, 60, 400, 90), titleFill)
	text(img, 70, 70, "FinTech Corp Financial Report 2023")

	fill(img, image.Rect(60, 110, 550, 180), bodyFill)
	text(img, 70, 120, "(Text Body: FinTech Corp delivered robust performance...)")

	stroke(img, image.Rect(60, 200, 550, 350), color.Black)
	fill(img, image.Rect(60, 230, 550, 231), color.Black)
	fill(img, image.Rect(250, 200, 251, 350), color.Black)
	text(img, 70, 210, "Metric")
	text(img, 260, 210, "2023 Values")

	y := 240
	for _, row := range placeholderRows {
		text(img, 70, y, row)
		y += 25
	}

	text(img, 60, 750, "Page "+strconv.Itoa(page+1))
	return &Page{Image: img, Scale: 1}, nil
}

func fill(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func stroke(img draw.Image, r image.Rectangle, c color.Color) {
	fill(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), c)
	fill(img, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), c)
	fill(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), c)
	fill(img, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// text draws s in black with its top-left corner at (x, y).
func text(img draw.Image, x, y int, s string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}

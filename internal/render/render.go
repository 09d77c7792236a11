// Package render turns PDF pages into images and reports basic facts about
// a PDF file.
package render

import (
	"errors"
	"image"
)

// PointsPerInch is the PDF user-space unit; DocTags coordinates use it.
const PointsPerInch = 72.0

var ErrPageOutOfRange = errors.New("page out of range")

// Page is a rendered page. Scale converts document coordinates to pixels.
type Page struct {
	Image image.Image
	Scale float64
}

// Renderer rasterizes one page (0-based) of a PDF.
type Renderer interface {
	RenderPage(pdf []byte, page int) (*Page, error)
}

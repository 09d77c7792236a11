package render

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// FitzRenderer rasterizes real PDF pages with MuPDF.
type FitzRenderer struct {
	DPI int
}

func (r *FitzRenderer) RenderPage(pdf []byte, page int) (*Page, error) {
	dpi := r.DPI
	if dpi <= 0 {
		dpi = 72
	}

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	if page < 0 || page >= doc.NumPage() {
		return nil, fmt.Errorf("page %d of %d: %w", page+1, doc.NumPage(), ErrPageOutOfRange)
	}

	img, err := doc.ImageDPI(page, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page+1, err)
	}
	return &Page{Image: img, Scale: float64(dpi) / PointsPerInch}, nil
}

// Package doctags parses DocTags markup, the XML-like format emitted by
// document-conversion models, into tables and text blocks that keep their
// page coordinates.
package doctags

import (
	"image"
	"math"
)

// BBox is a rectangle in document coordinate space. X1 <= X2 and Y1 <= Y2.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b BBox) Width() float64  { return b.X2 - b.X1 }
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Union returns the smallest box covering both b and o.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		X1: math.Min(b.X1, o.X1),
		Y1: math.Min(b.Y1, o.Y1),
		X2: math.Max(b.X2, o.X2),
		Y2: math.Max(b.Y2, o.Y2),
	}
}

// Scale multiplies every coordinate by f.
func (b BBox) Scale(f float64) BBox {
	return BBox{X1: b.X1 * f, Y1: b.Y1 * f, X2: b.X2 * f, Y2: b.Y2 * f}
}

// Rect converts the box to integer pixel coordinates after scaling.
func (b BBox) Rect(scale float64) image.Rectangle {
	s := b.Scale(scale)
	return image.Rect(
		int(math.Round(s.X1)), int(math.Round(s.Y1)),
		int(math.Round(s.X2)), int(math.Round(s.Y2)),
	)
}

// Row is one data row of a table. Cells has exactly one entry per header.
type Row struct {
	Cells []string `json:"cells"`
	// BBox is the union of the cell boxes, set only when every cell had one.
	BBox *BBox `json:"bbox,omitempty"`
}

// Table is a table element with its header labels and the rows whose shape
// matched the header.
type Table struct {
	BBox    BBox     `json:"bbox"`
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
	// DroppedRows counts rows skipped because their cell count did not
	// match the header.
	DroppedRows int `json:"dropped_rows"`
}

// Records returns the rows as header -> cell maps.
func (t Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		rec := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			rec[h] = r.Cells[i]
		}
		out = append(out, rec)
	}
	return out
}

// TextBlock is a non-empty run of trimmed text.
type TextBlock struct {
	BBox    BBox   `json:"bbox"`
	Content string `json:"content"`
}

// Document is the parsed form of one DocTags page. Tables left with no
// valid rows are not kept; DroppedTables counts them.
type Document struct {
	Title  string      `json:"title,omitempty"`
	Page   int         `json:"page,omitempty"`
	Tables []Table     `json:"tables"`
	Texts  []TextBlock `json:"texts"`

	DroppedTables int `json:"dropped_tables"`
	// DroppedRows totals rejected rows across every table, dropped or kept.
	DroppedRows int `json:"dropped_rows"`
}

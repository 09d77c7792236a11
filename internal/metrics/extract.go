package metrics

import (
	"strings"

	"github.com/dgallion1/finextract/internal/doctags"
)

// Region kinds and colors.
const (
	KindMetricRow = "metric_table"
	KindTable     = "table"

	ColorMetric = "blue"
	ColorTable  = "purple"

	TableLabel = "Detected Table"
)

// DefaultTerms is the built-in vocabulary.
var DefaultTerms = []string{"Revenue", "Net Income", "EPS", "Earnings Per Share"}

// Region is a rectangle to highlight on the page image.
type Region struct {
	BBox  doctags.BBox `json:"bbox"`
	Label string       `json:"label"`
	Kind  string       `json:"type"`
	Color string       `json:"color"`
}

// Vocabulary is an ordered set of lower-cased substrings matched against row
// labels.
type Vocabulary []string

// NewVocabulary normalizes terms, dropping empty and repeated ones.
func NewVocabulary(terms ...string) Vocabulary {
	seen := make(map[string]bool, len(terms))
	v := make(Vocabulary, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		v = append(v, t)
	}
	return v
}

// Matches reports whether label contains any term, ignoring case.
func (v Vocabulary) Matches(label string) bool {
	l := strings.ToLower(label)
	for _, t := range v {
		if strings.Contains(l, t) {
			return true
		}
	}
	return false
}

// Options controls extraction. HeaderHeight and RowHeight are in document
// units and only used when a row has no cell geometry.
type Options struct {
	Vocabulary         Vocabulary
	HeaderHeight       float64
	RowHeight          float64
	PreferCellGeometry bool
}

func DefaultOptions() Options {
	return Options{
		Vocabulary:         NewVocabulary(DefaultTerms...),
		HeaderHeight:       30,
		RowHeight:          25,
		PreferCellGeometry: true,
	}
}

// Result is the output of Extract.
type Result struct {
	Metrics *Metrics `json:"metrics"`
	Regions []Region `json:"regions"`
}

// Extract scans every table with at least two columns, treating column 0 as
// the label and column 1 as the value. Matching rows are recorded under
// their label up to the first "(" and get a row region; every table also
// gets a whole-table region after all row regions.
func Extract(doc *doctags.Document, opts Options) Result {
	res := Result{Metrics: NewMetrics(), Regions: []Region{}}
	if doc == nil {
		return res
	}

	for _, tbl := range doc.Tables {
		if len(tbl.Headers) < 2 {
			continue
		}
		for i, row := range tbl.Rows {
			label, value := row.Cells[0], row.Cells[1]
			if !opts.Vocabulary.Matches(label) {
				continue
			}
			key := CleanLabel(label)
			res.Metrics.Set(key, value)
			res.Regions = append(res.Regions, Region{
				BBox:  rowBox(tbl, row, i, opts),
				Label: key + ": " + value,
				Kind:  KindMetricRow,
				Color: ColorMetric,
			})
		}
	}

	for _, tbl := range doc.Tables {
		res.Regions = append(res.Regions, Region{
			BBox:  tbl.BBox,
			Label: TableLabel,
			Kind:  KindTable,
			Color: ColorTable,
		})
	}
	return res
}

// CleanLabel returns the trimmed text before the first "(".
func CleanLabel(label string) string {
	if i := strings.Index(label, "("); i >= 0 {
		label = label[:i]
	}
	return strings.TrimSpace(label)
}

func rowBox(tbl doctags.Table, row doctags.Row, index int, opts Options) doctags.BBox {
	if opts.PreferCellGeometry && row.BBox != nil {
		return *row.BBox
	}
	y1 := tbl.BBox.Y1 + opts.HeaderHeight + float64(index)*opts.RowHeight
	return doctags.BBox{
		X1: tbl.BBox.X1,
		Y1: y1,
		X2: tbl.BBox.X2,
		Y2: y1 + opts.RowHeight,
	}
}

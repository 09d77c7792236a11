package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dgallion1/finextract/internal/export"
	docx "github.com/fumiama/go-docx"
)

// DOCX renders the summary as a Word document: a heading paragraph per
// section, one "key: value" paragraph per metric and one pipe-separated
// paragraph per table row.
func DOCX(s Summary) ([]byte, error) {
	w := docx.New().WithDefaultTheme()

	heading := func(text, size string) {
		w.AddParagraph().AddText(text).Bold().Size(size)
	}

	heading(s.title(), "32")
	if s.Source != "" {
		w.AddParagraph().AddText(fmt.Sprintf("Source: %s, page %d", s.Source, s.Page+1))
	}
	for _, warn := range s.Warnings {
		w.AddParagraph().AddText("Warning: " + warn).Color("C00000")
	}

	heading(export.MetricsSection, "26")
	if s.Metrics == nil || s.Metrics.Len() == 0 {
		w.AddParagraph().AddText("No key metrics matched.")
	} else {
		for _, k := range s.Metrics.Keys() {
			v, _ := s.Metrics.Get(k)
			p := w.AddParagraph()
			p.AddText(k + ": ").Bold()
			p.AddText(v)
		}
	}

	if s.Document != nil {
		n := 0
		for _, tbl := range s.Document.Tables {
			if len(tbl.Rows) == 0 {
				continue
			}
			heading(export.TableSection(n), "26")
			n++
			w.AddParagraph().AddText(strings.Join(tbl.Headers, " | ")).Bold()
			for _, r := range tbl.Rows {
				w.AddParagraph().AddText(strings.Join(r.Cells, " | "))
			}
		}
		if len(s.Document.Texts) > 0 {
			heading("Text", "26")
			for _, t := range s.Document.Texts {
				w.AddParagraph().AddText(strings.Join(strings.Fields(t.Content), " "))
			}
		}
	}

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return buf.Bytes(), nil
}

// Package report renders a processed page as a human-readable review
// document in Markdown, HTML or DOCX.
package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/dgallion1/finextract/internal/doctags"
	"github.com/dgallion1/finextract/internal/export"
	"github.com/dgallion1/finextract/internal/metrics"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Summary is everything a report shows.
type Summary struct {
	Source   string
	Page     int // 0-based
	Document *doctags.Document
	Metrics  *metrics.Metrics
	Warnings []string
}

func (s Summary) title() string {
	if s.Document != nil && s.Document.Title != "" {
		return s.Document.Title
	}
	if s.Source != "" {
		return s.Source
	}
	return "Extraction report"
}

// Markdown renders the summary as GitHub-flavored Markdown.
func Markdown(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.title())
	if s.Source != "" {
		fmt.Fprintf(&b, "Source: %s, page %d\n\n", s.Source, s.Page+1)
	}

	for _, w := range s.Warnings {
		fmt.Fprintf(&b, "> **Warning:** %s\n\n", w)
	}

	b.WriteString("## " + export.MetricsSection + "\n\n")
	if s.Metrics == nil || s.Metrics.Len() == 0 {
		b.WriteString("No key metrics matched.\n\n")
	} else {
		rows := make([][]string, 0, s.Metrics.Len())
		for _, k := range s.Metrics.Keys() {
			v, _ := s.Metrics.Get(k)
			rows = append(rows, []string{k, v})
		}
		writeTable(&b, []string{export.ColMetric, export.ColValue}, rows)
	}

	if s.Document == nil {
		return b.String()
	}
	n := 0
	for _, tbl := range s.Document.Tables {
		if len(tbl.Rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", export.TableSection(n))
		n++
		rows := make([][]string, len(tbl.Rows))
		for j, r := range tbl.Rows {
			rows[j] = r.Cells
		}
		writeTable(&b, tbl.Headers, rows)
	}
	if len(s.Document.Texts) > 0 {
		b.WriteString("## Text\n\n")
		for _, t := range s.Document.Texts {
			b.WriteString(strings.Join(strings.Fields(t.Content), " "))
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func writeTable(b *strings.Builder, headers []string, rows [][]string) {
	writeRow(b, headers)
	b.WriteString("|")
	for range headers {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range rows {
		writeRow(b, r)
	}
	b.WriteString("\n")
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ")

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(cellEscaper.Replace(c))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// HTML renders the Markdown report as a standalone page.
func HTML(s Summary) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(s)), &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&out, "<title>%s</title>\n", html.EscapeString(s.title()))
	out.WriteString("<style>table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style>\n")
	out.WriteString("</head>\n<body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

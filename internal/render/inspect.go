package render

import (
	"bytes"
	"fmt"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// Info describes a PDF file.
type Info struct {
	Pages int
	// Text holds the plain text layer of each page; empty for scanned pages.
	Text []string
}

// Inspect opens pdf and reads its page count and text layer.
func Inspect(pdf []byte) (*Info, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(pdf), int64(len(pdf)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	n := reader.NumPage()
	info := &Info{Pages: n, Text: make([]string, n)}
	for i := 1; i <= n; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		info.Text[i-1] = strings.TrimSpace(text)
	}
	return info, nil
}

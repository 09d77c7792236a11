// Package pipeline runs a page through conversion, parsing, metric
// extraction, annotation and export, and keeps the latest result per
// session.
package pipeline

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/dgallion1/finextract/internal/doctags"
	"github.com/dgallion1/finextract/internal/metrics"
	"github.com/dgallion1/finextract/internal/report"
)

const (
	WarnNoTables  = "no tables detected"
	WarnNoMetrics = "no key metrics matched"
)

// State is the result of one processing run. It is never modified after
// the Processor returns it.
type State struct {
	Source      string            `json:"source"`
	Page        int               `json:"page"`
	Markup      string            `json:"-"`
	Document    *doctags.Document `json:"document"`
	Metrics     *metrics.Metrics  `json:"metrics"`
	Regions     []metrics.Region  `json:"regions"`
	Overlay     []byte            `json:"-"`
	CSV         string            `json:"-"`
	JSON        string            `json:"-"`
	Warnings    []string          `json:"warnings"`
	ContentHash string            `json:"content_hash"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Summary returns the report view of the state.
func (s *State) Summary() report.Summary {
	return report.Summary{
		Source:   s.Source,
		Page:     s.Page,
		Document: s.Document,
		Metrics:  s.Metrics,
		Warnings: s.Warnings,
	}
}

// Tables returns the document's tables, or nil without a document.
func (s *State) Tables() []doctags.Table {
	if s.Document == nil {
		return nil
	}
	return s.Document.Tables
}

func warningsFor(doc *doctags.Document, m *metrics.Metrics) []string {
	warnings := []string{}
	tables := 0
	for _, t := range doc.Tables {
		if len(t.Rows) > 0 {
			tables++
		}
	}
	if tables == 0 {
		return append(warnings, WarnNoTables)
	}
	if m.Len() == 0 {
		warnings = append(warnings, WarnNoMetrics)
	}
	return warnings
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

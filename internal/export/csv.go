// Package export renders extraction results as CSV, JSON and XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/dgallion1/finextract/internal/doctags"
	"github.com/dgallion1/finextract/internal/metrics"
)

const (
	ColDataType = "Data_Type"
	ColMetric   = "Metric"
	ColValue    = "Value"

	MetricsSection = "Key Metrics"
)

// TableSection names the CSV section of the i-th emitted table (0-based).
func TableSection(i int) string { return fmt.Sprintf("Table_%d", i+1) }

// TableKey names the JSON entry of the i-th emitted table (0-based).
func TableKey(i int) string { return fmt.Sprintf("table_%d", i+1) }

// CSV writes metrics followed by every non-empty table into one sheet whose
// columns are the union of all section columns in first-appearance order.
// Cells a section does not have are left empty.
func CSV(m *metrics.Metrics, tables []doctags.Table) (string, error) {
	cols := []string{ColDataType, ColMetric, ColValue}
	colIdx := map[string]int{ColDataType: 0, ColMetric: 1, ColValue: 2}
	for _, tbl := range tables {
		if len(tbl.Rows) == 0 {
			continue
		}
		for _, h := range tbl.Headers {
			if _, ok := colIdx[h]; !ok {
				colIdx[h] = len(cols)
				cols = append(cols, h)
			}
		}
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(cols); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		rec := make([]string, len(cols))
		rec[0], rec[1], rec[2] = MetricsSection, k, v
		if err := w.Write(rec); err != nil {
			return "", fmt.Errorf("write metric row: %w", err)
		}
	}

	n := 0
	for _, tbl := range tables {
		if len(tbl.Rows) == 0 {
			continue
		}
		section := TableSection(n)
		n++
		for _, row := range tbl.Rows {
			rec := make([]string, len(cols))
			for j, h := range tbl.Headers {
				rec[colIdx[h]] = row.Cells[j]
			}
			rec[0] = section
			if err := w.Write(rec); err != nil {
				return "", fmt.Errorf("write %s row: %w", section, err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return sb.String(), nil
}

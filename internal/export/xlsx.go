package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/dgallion1/finextract/internal/doctags"
	"github.com/dgallion1/finextract/internal/metrics"
)

// XLSX returns a workbook with a "Key Metrics" sheet and one "Table_N" sheet
// per non-empty table.
func XLSX(m *metrics.Metrics, tables []doctags.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", MetricsSection); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	rows := [][]string{{ColMetric, ColValue}}
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		rows = append(rows, []string{k, v})
	}
	if err := writeSheet(f, MetricsSection, rows); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(MetricsSection, "A", "A", 28)
	_ = f.SetColWidth(MetricsSection, "B", "B", 16)

	n := 0
	for _, tbl := range tables {
		if len(tbl.Rows) == 0 {
			continue
		}
		sheet := TableSection(n)
		n++
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("new sheet %s: %w", sheet, err)
		}
		rows := [][]string{tbl.Headers}
		for _, r := range tbl.Rows {
			rows = append(rows, r.Cells)
		}
		if err := writeSheet(f, sheet, rows); err != nil {
			return nil, err
		}
	}

	if idx, err := f.GetSheetIndex(MetricsSection); err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]string) error {
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dgallion1/finextract/internal/doctags"
	"github.com/dgallion1/finextract/internal/metrics"
)

// field and object build JSON objects whose key order is fixed.
type field struct {
	Key   string
	Value any
}

type object []field

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeCompact(&buf, f.Key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeCompact(&buf, f.Value); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeCompact(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}

// JSON renders {"key_metrics": {...}, "tables": [{"table_N": [records]}]}.
// Tables without rows are left out; the rest are numbered consecutively.
func JSON(m *metrics.Metrics, tables []doctags.Table) (string, error) {
	if m == nil {
		m = metrics.NewMetrics()
	}

	entries := make([]object, 0, len(tables))
	for _, tbl := range tables {
		if len(tbl.Rows) == 0 {
			continue
		}
		records := make([]object, 0, len(tbl.Rows))
		for _, row := range tbl.Rows {
			rec := make(object, 0, len(tbl.Headers))
			for j, h := range tbl.Headers {
				rec = append(rec, field{Key: h, Value: row.Cells[j]})
			}
			records = append(records, rec)
		}
		entries = append(entries, object{{Key: TableKey(len(entries)), Value: records}})
	}

	out := object{
		{Key: "key_metrics", Value: m},
		{Key: "tables", Value: entries},
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(out); err != nil {
		return "", fmt.Errorf("encode json export: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

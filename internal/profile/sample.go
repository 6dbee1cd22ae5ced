package profile

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ashureev/analyst-labs/internal/domain"
)

// SampleRecords serializes the first n rows as a JSON array of objects,
// keeping column order and typing values by column dtype. Missing cells
// become null.
func SampleRecords(t *domain.Table, n int) (string, error) {
	if n > t.NumRows() {
		n = t.NumRows()
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for row := 0; row < n; row++ {
		if row > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for col, name := range t.Columns {
			if col > 0 {
				buf.WriteByte(',')
			}
			key, err := marshal(name)
			if err != nil {
				return "", err
			}
			buf.Write(key)
			buf.WriteByte(':')

			val, err := cellJSON(t, row, col)
			if err != nil {
				return "", err
			}
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.String(), nil
}

func cellJSON(t *domain.Table, row, col int) ([]byte, error) {
	if t.IsNull(row, col) {
		return []byte("null"), nil
	}
	raw := t.Rows[row][col]
	switch t.Types[col] {
	case domain.DTypeInt64:
		if i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			return []byte(strconv.FormatInt(i, 10)), nil
		}
	case domain.DTypeFloat64:
		if f, ok := parseFinite(raw); ok {
			return marshal(f)
		}
	case domain.DTypeBool:
		if b, ok := parseBool(raw); ok {
			return []byte(strconv.FormatBool(b)), nil
		}
	}
	return marshal(raw)
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

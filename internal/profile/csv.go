// Package profile turns uploaded CSV files into tables and derives the
// descriptive DataProfile used to brief the analyst persona.
package profile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ashureev/analyst-labs/internal/domain"
)

// ErrNoColumns is returned for input with no header row.
var ErrNoColumns = errors.New("no columns to parse from file")

const utf8BOM = "\ufeff"

// ParseCSV reads a comma separated table with a header row. Short rows are
// padded with missing values; rows with more fields than the header fail
// the whole file.
func ParseCSV(r io.Reader) (*domain.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoColumns
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	columns := normalizeHeader(header)

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		if len(record) > len(columns) {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(columns), len(record))
		}
		for len(record) < len(columns) {
			record = append(record, "")
		}
		rows = append(rows, record)
	}

	table := &domain.Table{
		Columns: columns,
		Rows:    rows,
		Types:   make([]string, len(columns)),
	}
	for col := range columns {
		table.Types[col] = inferType(table, col)
	}
	return table, nil
}

// normalizeHeader names blank headers "Unnamed: i" and suffixes repeated
// names with ".1", ".2", ... in order of appearance.
func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	taken := make(map[string]bool, len(header))
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		candidate := name
		for taken[candidate] {
			seen[name]++
			candidate = fmt.Sprintf("%s.%d", name, seen[name])
		}
		taken[candidate] = true
		columns[i] = candidate
	}
	return columns
}

func inferType(t *domain.Table, col int) string {
	var (
		values  int
		hasNull bool
		ints    = true
		floats  = true
		bools   = true
	)
	for row := range t.Rows {
		if t.IsNull(row, col) {
			hasNull = true
			continue
		}
		v := t.Rows[row][col]
		values++
		if ints {
			if _, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err != nil {
				ints = false
			}
		}
		if floats {
			if _, ok := parseFinite(v); !ok {
				floats = false
			}
		}
		if bools {
			if _, ok := parseBool(v); !ok {
				bools = false
			}
		}
	}

	switch {
	case values == 0:
		return domain.DTypeObject
	case ints && hasNull:
		return domain.DTypeFloat64
	case ints:
		return domain.DTypeInt64
	case floats:
		return domain.DTypeFloat64
	case bools && !hasNull:
		return domain.DTypeBool
	default:
		return domain.DTypeObject
	}
}

// parseFinite accepts decimal numbers only; infinities and hex floats are
// treated as text.
func parseFinite(v string) (float64, bool) {
	if strings.ContainsAny(v, "xXpP_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func parseBool(v string) (bool, bool) {
	switch v {
	case "True", "TRUE", "true":
		return true, true
	case "False", "FALSE", "false":
		return false, true
	default:
		return false, false
	}
}

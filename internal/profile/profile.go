package profile

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ashureev/analyst-labs/internal/domain"
)

// IsNumeric reports whether a dtype takes part in the numeric summary.
func IsNumeric(dtype string) bool {
	return dtype == domain.DTypeInt64 || dtype == domain.DTypeFloat64
}

// Build derives the DataProfile of a parsed table. It never fails: a table
// without numeric columns gets an empty numeric summary.
func Build(t *domain.Table) domain.DataProfile {
	p := domain.DataProfile{
		Columns:        append([]string(nil), t.Columns...),
		Rows:           t.NumRows(),
		Cols:           t.NumCols(),
		DTypes:         make(map[string]string, t.NumCols()),
		MissingValues:  make(map[string]int, t.NumCols()),
		NumericSummary: make(map[string]domain.NumericStats),
	}

	for col, name := range t.Columns {
		dtype := t.Types[col]
		p.DTypes[name] = dtype

		missing := 0
		var values []float64
		for row := range t.Rows {
			if t.IsNull(row, col) {
				missing++
				continue
			}
			if IsNumeric(dtype) {
				if f, ok := parseFinite(t.Rows[row][col]); ok {
					values = append(values, f)
				}
			}
		}
		p.MissingValues[name] = missing

		if IsNumeric(dtype) && len(values) > 0 {
			p.NumericSummary[name] = summarize(values)
		}
	}
	return p
}

func summarize(values []float64) domain.NumericStats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return domain.NumericStats{
		Mean:   stat.Mean(values, nil),
		Median: median(sorted),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
}

// median expects sorted input and averages the middle pair for even lengths.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

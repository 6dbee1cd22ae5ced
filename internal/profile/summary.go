package profile

import (
	"fmt"
	"strings"

	"github.com/ashureev/analyst-labs/internal/domain"
)

// Summary renders a profile as the plain-text briefing shown to the analyst.
func Summary(p domain.DataProfile) string {
	var b strings.Builder
	b.WriteString("Data Profile Summary:\n")
	fmt.Fprintf(&b, "- Dimensions: %d rows × %d columns\n", p.Rows, p.Cols)
	fmt.Fprintf(&b, "- Columns: %s\n", strings.Join(p.Columns, ", "))

	b.WriteString("\nData Types:\n")
	for _, col := range p.Columns {
		fmt.Fprintf(&b, "- %s: %s\n", col, p.DTypes[col])
	}

	b.WriteString("\nMissing Values:\n")
	for _, col := range p.Columns {
		count := p.MissingValues[col]
		if count == 0 {
			continue
		}
		pct := 0.0
		if p.Rows > 0 {
			pct = float64(count) / float64(p.Rows) * 100
		}
		fmt.Fprintf(&b, "- %s: %d missing values (%.1f%%)\n", col, count, pct)
	}

	if len(p.NumericSummary) > 0 {
		b.WriteString("\nNumeric Column Statistics:\n")
		for _, col := range p.Columns {
			s, ok := p.NumericSummary[col]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "- %s: mean=%.2f, median=%.2f, min=%.2f, max=%.2f\n",
				col, s.Mean, s.Median, s.Min, s.Max)
		}
	}
	return b.String()
}

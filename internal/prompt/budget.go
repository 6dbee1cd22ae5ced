package prompt

import "unicode/utf8"

// TruncationMarker is appended to any text cut down to its budget.
const TruncationMarker = "..."

// Budgets bounds how many characters of each analysis result are copied
// into downstream prompts.
type Budgets struct {
	ReviewResult int `yaml:"review_result"`
	ReportResult int `yaml:"report_result"`
}

// DefaultBudgets returns the stock per-result budgets.
func DefaultBudgets() Budgets {
	return Budgets{
		ReviewResult: 1000,
		ReportResult: 500,
	}
}

// WithDefaults fills non-positive budgets from DefaultBudgets.
func (b Budgets) WithDefaults() Budgets {
	d := DefaultBudgets()
	if b.ReviewResult <= 0 {
		b.ReviewResult = d.ReviewResult
	}
	if b.ReportResult <= 0 {
		b.ReportResult = d.ReportResult
	}
	return b
}

// Truncate keeps at most limit characters of s, marking the cut with
// TruncationMarker. A non-positive limit disables truncation.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + TruncationMarker
}

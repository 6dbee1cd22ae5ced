package domain

// Column type names follow the pandas dtype vocabulary so prompts read
// the same regardless of which ingestion path produced the table.
const (
	DTypeInt64   = "int64"
	DTypeFloat64 = "float64"
	DTypeBool    = "bool"
	DTypeObject  = "object"
)

// nullTokens are the cell values read as missing, matching the default
// NA markers of common dataframe readers.
var nullTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsNullToken reports whether a raw cell value denotes a missing value.
func IsNullToken(v string) bool {
	_, ok := nullTokens[v]
	return ok
}

// Table is a parsed tabular file. Cells keep their raw text and Types holds
// the inferred dtype per column.
type Table struct {
	Columns []string   `json:"columns"`
	Types   []string   `json:"types"`
	Rows    [][]string `json:"rows"`
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.Columns) }

// IsNull reports whether the cell at (row, col) is missing.
func (t *Table) IsNull(row, col int) bool {
	return IsNullToken(t.Rows[row][col])
}

// NumericStats summarizes the non-null values of a numeric column.
type NumericStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// DataProfile is the structured description of a Table derived at upload time.
type DataProfile struct {
	Columns        []string                `json:"columns"`
	Rows           int                     `json:"rows"`
	Cols           int                     `json:"cols"`
	DTypes         map[string]string       `json:"dtypes"`
	MissingValues  map[string]int          `json:"missing_values"`
	NumericSummary map[string]NumericStats `json:"numeric_summary"`
}

// TotalMissing returns the number of null cells across all columns.
func (p *DataProfile) TotalMissing() int {
	total := 0
	for _, n := range p.MissingValues {
		total += n
	}
	return total
}

// Dataset is one uploaded file. Name is unique within a session.
type Dataset struct {
	Name    string      `json:"name"`
	Table   *Table      `json:"table"`
	Profile DataProfile `json:"profile"`
}

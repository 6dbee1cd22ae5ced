package domain

// Project describes the analysis goal. It is immutable once a session is set up.
type Project struct {
	Name             string `json:"name"`
	ProblemStatement string `json:"problem_statement"`
	DataContext      string `json:"data_context,omitempty"`
}

package workflow

import (
	"github.com/ashureev/analyst-labs/internal/domain"
)

// Artifact is a generated stage text. Revision counts successful
// generations and revisions; Stale is set when an upstream artifact or
// the result list changed after this text was produced.
type Artifact struct {
	Text     string `json:"text"`
	Revision int    `json:"revision"`
	Stale    bool   `json:"stale"`
}

// Present reports whether the artifact has been generated.
func (a *Artifact) Present() bool {
	return a.Revision > 0
}

// Session is the aggregate root of one user's analysis session.
type Session struct {
	Stage        Stage                      `json:"stage"`
	Project      *domain.Project            `json:"project"`
	Datasets     []*domain.Dataset          `json:"datasets"`
	Plan         Artifact                   `json:"plan"`
	DataSummary  Artifact                   `json:"data_summary"`
	Guidance     Artifact                   `json:"guidance"`
	Report       Artifact                   `json:"report"`
	Results      []domain.AnalysisResult    `json:"results"`
	Conversation []domain.ConversationEntry `json:"conversation"`
}

// New returns a session in its initial state.
func New() *Session {
	return &Session{Stage: StageSetup}
}

// Reset discards every field and returns the session to its initial state.
func (s *Session) Reset() {
	*s = *New()
}

// Initialized reports whether setup has completed.
func (s *Session) Initialized() bool {
	return s.Project != nil && len(s.Datasets) > 0
}

// Artifact returns a pointer to the artifact of the given kind.
func (s *Session) Artifact(kind domain.ArtifactKind) *Artifact {
	switch kind {
	case domain.ArtifactPlan:
		return &s.Plan
	case domain.ArtifactDataSummary:
		return &s.DataSummary
	case domain.ArtifactGuidance:
		return &s.Guidance
	case domain.ArtifactReport:
		return &s.Report
	default:
		return nil
	}
}

// PrimaryDataset is the first dataset in upload order. Task prompts sample
// rows from it.
func (s *Session) PrimaryDataset() *domain.Dataset {
	if len(s.Datasets) == 0 {
		return nil
	}
	return s.Datasets[0]
}

// downstream lists the artifacts derived from kind.
var downstream = map[domain.ArtifactKind][]domain.ArtifactKind{
	domain.ArtifactPlan:        {domain.ArtifactDataSummary, domain.ArtifactGuidance, domain.ArtifactReport},
	domain.ArtifactDataSummary: {domain.ArtifactGuidance, domain.ArtifactReport},
}

// markStale flags every present artifact derived from kind.
func (s *Session) markStale(kind domain.ArtifactKind) {
	for _, k := range downstream[kind] {
		if a := s.Artifact(k); a.Present() {
			a.Stale = true
		}
	}
}

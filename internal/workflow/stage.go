// Package workflow implements the staged analysis session: the session
// aggregate, its transition table and the engine that drives the personas.
package workflow

import "github.com/ashureev/analyst-labs/internal/domain"

// Stage is the current-stage pointer of a session.
type Stage int

const (
	StageSetup Stage = iota
	StagePlanning
	StageUnderstanding
	StageGuidance
	StageExecution
	StageReporting
)

// StageCount is the number of stages.
const StageCount = int(StageReporting) + 1

var stageNames = [...]string{
	"Project Setup",
	"Manager Planning",
	"Data Understanding",
	"Analysis Guidance",
	"Analysis Execution",
	"Final Report",
}

// String returns the display name of the stage.
func (s Stage) String() string {
	if !s.Valid() {
		return "Unknown"
	}
	return stageNames[s]
}

// Valid reports whether s is one of the six stages.
func (s Stage) Valid() bool {
	return s >= StageSetup && s <= StageReporting
}

// StageNames returns the display names in stage order.
func StageNames() []string {
	out := make([]string, len(stageNames))
	copy(out, stageNames[:])
	return out
}

// artifact returns the artifact a stage owns, if any.
func (s Stage) artifact() (domain.ArtifactKind, bool) {
	switch s {
	case StagePlanning:
		return domain.ArtifactPlan, true
	case StageUnderstanding:
		return domain.ArtifactDataSummary, true
	case StageGuidance:
		return domain.ArtifactGuidance, true
	case StageReporting:
		return domain.ArtifactReport, true
	default:
		return "", false
	}
}

// requirements lists, in generation order, the artifacts that must exist
// for a stage to be displayed.
func (s Stage) requirements() []domain.ArtifactKind {
	switch s {
	case StagePlanning:
		return []domain.ArtifactKind{domain.ArtifactPlan}
	case StageUnderstanding:
		return []domain.ArtifactKind{domain.ArtifactPlan, domain.ArtifactDataSummary}
	case StageGuidance, StageExecution:
		return []domain.ArtifactKind{domain.ArtifactPlan, domain.ArtifactDataSummary, domain.ArtifactGuidance}
	case StageReporting:
		return []domain.ArtifactKind{domain.ArtifactPlan, domain.ArtifactDataSummary, domain.ArtifactGuidance, domain.ArtifactReport}
	default:
		return nil
	}
}

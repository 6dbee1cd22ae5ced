package domain

// ArtifactKind names a generated stage artifact.
type ArtifactKind string

const (
	ArtifactPlan        ArtifactKind = "plan"
	ArtifactDataSummary ArtifactKind = "data_summary"
	ArtifactGuidance    ArtifactKind = "guidance"
	ArtifactReport      ArtifactKind = "report"
)

// Owner returns the persona that generates and revises the artifact.
func (k ArtifactKind) Owner() Persona {
	switch k {
	case ArtifactPlan, ArtifactReport:
		return PersonaManager
	case ArtifactDataSummary:
		return PersonaAnalyst
	case ArtifactGuidance:
		return PersonaAssociate
	default:
		return PersonaGeneral
	}
}

// Label is the short human name used in feedback log lines.
func (k ArtifactKind) Label() string {
	switch k {
	case ArtifactPlan:
		return "plan"
	case ArtifactDataSummary:
		return "data summary"
	case ArtifactGuidance:
		return "guidance"
	case ArtifactReport:
		return "report"
	default:
		return string(k)
	}
}

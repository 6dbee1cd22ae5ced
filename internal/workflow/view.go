package workflow

import (
	"strings"

	"github.com/ashureev/analyst-labs/internal/domain"
	"github.com/ashureev/analyst-labs/internal/profile"
	"github.com/ashureev/analyst-labs/internal/prompt"
)

const (
	// PreviewLimit caps persona entries in the conversation preview.
	PreviewLimit = 100
	// MaxSuggestedTasks caps the task suggestions taken from the guidance.
	MaxSuggestedTasks = 5

	minSuggestionLength = 10
)

// DatasetView is a dataset without its raw rows.
type DatasetView struct {
	Name    string             `json:"name"`
	Profile domain.DataProfile `json:"profile"`
	Summary string             `json:"summary"`
}

// View is the read model of a session.
type View struct {
	Stages         []string                   `json:"stages"`
	Stage          Stage                      `json:"stage"`
	StageName      string                     `json:"stage_name"`
	Actions        []Action                   `json:"actions"`
	Initialized    bool                       `json:"initialized"`
	Project        *domain.Project            `json:"project,omitempty"`
	Datasets       []DatasetView              `json:"datasets"`
	Plan           *Artifact                  `json:"plan,omitempty"`
	DataSummary    *Artifact                  `json:"data_summary,omitempty"`
	Guidance       *Artifact                  `json:"guidance,omitempty"`
	Report         *Artifact                  `json:"report,omitempty"`
	Results        []domain.AnalysisResult    `json:"results"`
	SuggestedTasks []string                   `json:"suggested_tasks"`
	CanReview      bool                       `json:"can_review"`
	Conversation   []domain.ConversationEntry `json:"conversation"`
}

// NewView builds the read model of s.
func NewView(s *Session) View {
	v := View{
		Stages:         StageNames(),
		Stage:          s.Stage,
		StageName:      s.Stage.String(),
		Actions:        Actions(s.Stage),
		Initialized:    s.Initialized(),
		Project:        s.Project,
		Datasets:       make([]DatasetView, 0, len(s.Datasets)),
		Plan:           presentOrNil(s.Plan),
		DataSummary:    presentOrNil(s.DataSummary),
		Guidance:       presentOrNil(s.Guidance),
		Report:         presentOrNil(s.Report),
		Results:        append([]domain.AnalysisResult{}, s.Results...),
		SuggestedTasks: SuggestedTasks(s),
		CanReview:      s.Stage == StageExecution && len(s.Results) >= MinReviewResults,
		Conversation:   ConversationPreview(s.Conversation),
	}
	for _, ds := range s.Datasets {
		v.Datasets = append(v.Datasets, DatasetView{
			Name:    ds.Name,
			Profile: ds.Profile,
			Summary: profile.Summary(ds.Profile),
		})
	}
	return v
}

func presentOrNil(a Artifact) *Artifact {
	if !a.Present() {
		return nil
	}
	return &a
}

// SuggestedTasks picks candidate task lines from the guidance. The first
// MaxSuggestedTasks non-blank lines that do not start with "#" are taken,
// then lines of ten characters or fewer are hidden.
func SuggestedTasks(s *Session) []string {
	out := []string{}
	if !s.Guidance.Present() {
		return out
	}
	taken := 0
	for _, line := range strings.Split(s.Guidance.Text, "\n") {
		if taken == MaxSuggestedTasks {
			break
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(line, "#") {
			continue
		}
		taken++
		if len([]rune(trimmed)) > minSuggestionLength {
			out = append(out, trimmed)
		}
	}
	return out
}

// ConversationPreview copies the conversation, shortening persona entries
// to PreviewLimit characters. User entries are kept whole.
func ConversationPreview(entries []domain.ConversationEntry) []domain.ConversationEntry {
	out := make([]domain.ConversationEntry, len(entries))
	for i, entry := range entries {
		if entry.Role != domain.RoleUser {
			entry.Content = prompt.Truncate(entry.Content, PreviewLimit)
		}
		out[i] = entry
	}
	return out
}

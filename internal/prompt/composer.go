// Package prompt builds the persona prompts for each workflow step.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/ashureev/analyst-labs/internal/domain"
	"github.com/ashureev/analyst-labs/internal/profile"
)

// SampleSize is the number of dataset rows shown to the analyst per task.
const SampleSize = 5

var templates = template.Must(parseTemplates())

func parseTemplates() (*template.Template, error) {
	root := template.New("prompt").Funcs(template.FuncMap{
		"join":           strings.Join,
		"inc":            func(i int) int { return i + 1 },
		"truncate":       Truncate,
		"profileSummary": profile.Summary,
	})
	sources := map[string]string{
		"plan":     planTemplate,
		"summary":  dataSummaryTemplate,
		"question": questionTemplate,
		"guidance": guidanceTemplate,
		"task":     taskTemplate,
		"review":   reviewTemplate,
		"report":   reportTemplate,
		"revision": revisionTemplate,
	}
	for name, src := range sources {
		if _, err := root.New(name).Parse(src); err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
	}
	return root, nil
}

type revisionFormat struct {
	title  string
	noun   string
	format string
}

var revisionFormats = map[domain.ArtifactKind]revisionFormat{
	domain.ArtifactPlan: {
		title:  "Analysis Plan",
		noun:   "analysis plan",
		format: "Keep the same structured format with numbered steps.",
	},
	domain.ArtifactGuidance: {
		title:  "Analysis Guidance",
		noun:   "analysis guidance",
		format: "Keep the same structured format with specific tasks and hypotheses.",
	},
	domain.ArtifactReport: {
		title:  "Report",
		noun:   "report",
		format: "Keep the same structured format with all the required sections.",
	},
}

// Composer renders prompts from session state.
type Composer struct {
	budgets Budgets
}

// NewComposer creates a composer using the given result budgets.
func NewComposer(budgets Budgets) *Composer {
	return &Composer{budgets: budgets.WithDefaults()}
}

// Budgets returns the effective result budgets.
func (c *Composer) Budgets() Budgets {
	return c.budgets
}

// Plan renders the manager's planning prompt.
func (c *Composer) Plan(project domain.Project, datasets []*domain.Dataset) (string, error) {
	return render("plan", map[string]any{
		"Project":  project,
		"Datasets": datasets,
	})
}

// DataSummary renders the analyst's data understanding prompt.
func (c *Composer) DataSummary(project domain.Project, plan string, datasets []*domain.Dataset) (string, error) {
	return render("summary", map[string]any{
		"Project":  project,
		"Plan":     plan,
		"Datasets": datasets,
	})
}

// Question renders the analyst prompt for a free-form data question.
func (c *Composer) Question(project domain.Project, datasets []*domain.Dataset, summary, question string) (string, error) {
	return render("question", map[string]any{
		"Project":  project,
		"Datasets": datasets,
		"Summary":  summary,
		"Question": question,
	})
}

// Guidance renders the associate's guidance prompt.
func (c *Composer) Guidance(project domain.Project, plan, summary string) (string, error) {
	return render("guidance", map[string]any{
		"Project": project,
		"Plan":    plan,
		"Summary": summary,
	})
}

// Task renders the analyst prompt for one analysis task against a dataset.
// Prior task names are listed when earlier results exist.
func (c *Composer) Task(project domain.Project, task string, dataset *domain.Dataset, prior []domain.AnalysisResult) (string, error) {
	if dataset == nil || dataset.Table == nil {
		return "", fmt.Errorf("task prompt: no dataset")
	}
	sample, err := profile.SampleRecords(dataset.Table, SampleSize)
	if err != nil {
		return "", fmt.Errorf("task prompt: %w", err)
	}

	var priorTasks string
	if len(prior) > 0 {
		names := make([]string, 0, len(prior))
		for _, r := range prior {
			names = append(names, r.Task)
		}
		raw, err := json.Marshal(names)
		if err != nil {
			return "", fmt.Errorf("task prompt: %w", err)
		}
		priorTasks = string(raw)
	}

	return render("task", map[string]any{
		"Project":    project,
		"Task":       task,
		"PriorTasks": priorTasks,
		"SampleSize": SampleSize,
		"Dataset":    dataset.Name,
		"Sample":     sample,
		"Columns":    dataset.Table.Columns,
	})
}

// Review renders the associate's review prompt over all results.
func (c *Composer) Review(project domain.Project, guidance string, results []domain.AnalysisResult) (string, error) {
	return render("review", map[string]any{
		"Project":  project,
		"Guidance": guidance,
		"Results":  results,
		"Budget":   c.budgets.ReviewResult,
	})
}

// Report renders the manager's final report prompt.
func (c *Composer) Report(project domain.Project, plan, summary string, results []domain.AnalysisResult) (string, error) {
	return render("report", map[string]any{
		"Project": project,
		"Plan":    plan,
		"Summary": summary,
		"Results": results,
		"Budget":  c.budgets.ReportResult,
	})
}

// Revision renders a feedback-driven revision prompt for a revisable artifact.
func (c *Composer) Revision(kind domain.ArtifactKind, current, feedback string) (string, error) {
	f, ok := revisionFormats[kind]
	if !ok {
		return "", fmt.Errorf("revision prompt: %s is not revisable", kind.Label())
	}
	return render("revision", map[string]any{
		"Title":    f.title,
		"Noun":     f.noun,
		"Format":   f.format,
		"Current":  current,
		"Feedback": feedback,
	})
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return buf.String(), nil
}

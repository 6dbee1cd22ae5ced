package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/analyst-labs/internal/domain"
	"github.com/ashureev/analyst-labs/internal/prompt"
)

const salesCSV = `date,region,sales
2024-01-01,north,100
2024-01-02,south,200
2024-01-03,north,
2024-01-04,east,400
2024-01-05,west,500
2024-01-06,north,600
2024-01-07,south,700
2024-01-08,east,800
2024-01-09,west,900
2024-01-10,north,1000
`

type call struct {
	prompt  string
	persona domain.Persona
}

// stubResponder echoes prompts back, prefixed with the persona, unless told to fail.
type stubResponder struct {
	calls []call
	fail  bool
	reply func(prompt string, persona domain.Persona) string
}

func (r *stubResponder) Respond(_ context.Context, p string, persona domain.Persona) (string, error) {
	r.calls = append(r.calls, call{prompt: p, persona: persona})
	if r.fail {
		return "", errors.New("quota exceeded")
	}
	if r.reply != nil {
		return r.reply(p, persona), nil
	}
	return fmt.Sprintf("[%s] %s", persona, p), nil
}

type stubExporter struct {
	scope    string
	project  string
	markdown string
}

func (x *stubExporter) Export(scope, project, markdown string) (string, error) {
	x.scope, x.project, x.markdown = scope, project, markdown
	return "/tmp/reports/" + scope + "/report.html", nil
}

func newTestEngine(r Responder) *Engine {
	e := NewEngine(r, prompt.NewComposer(prompt.DefaultBudgets()), &stubExporter{}, nil)
	seq := 0
	e.newID = func() string {
		seq++
		return fmt.Sprintf("entry-%d", seq)
	}
	e.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return e
}

func salesSetup() SetupInput {
	return SetupInput{
		ProjectName:      "P",
		ProblemStatement: "Find sales trends",
		DataContext:      "Daily sales export",
		Files:            []Upload{{Name: "sales.csv", Data: []byte(salesCSV)}},
	}
}

func startedSession(t *testing.T, e *Engine) *Session {
	t.Helper()
	s := New()
	_, err := e.Start(context.Background(), s, salesSetup())
	require.NoError(t, err)
	return s
}

func TestStartCreatesOnePlanRequest(t *testing.T) {
	r := &stubResponder{}
	e := newTestEngine(r)
	s := New()

	report, err := e.Start(context.Background(), s, salesSetup())
	require.NoError(t, err)

	assert.Equal(t, []string{"sales.csv"}, report.Loaded)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, StagePlanning, s.Stage)
	require.Len(t, r.calls, 1)
	assert.Equal(t, domain.PersonaManager, r.calls[0].persona)
	assert.Contains(t, r.calls[0].prompt, "Find sales trends")
	assert.Equal(t, 1, s.Plan.Revision)
	assert.Equal(t, 1, s.Datasets[0].Profile.MissingValues["sales"])

	require.Len(t, s.Conversation, 2)
	assert.Equal(t, domain.RoleUser, s.Conversation[0].Role)
	assert.Equal(t, "Project: P\nProblem Statement: Find sales trends\nData Context: Daily sales export", s.Conversation[0].Content)
	assert.Equal(t, domain.RoleManager, s.Conversation[1].Role)
}

func TestStartRejectsMissingInput(t *testing.T) {
	tests := []struct {
		name string
		edit func(*SetupInput)
		want string
	}{
		{"blank name", func(in *SetupInput) { in.ProjectName = "   " }, "project name is required"},
		{"blank problem", func(in *SetupInput) { in.ProblemStatement = "" }, "problem statement is required"},
		{"no files", func(in *SetupInput) { in.Files = nil }, "at least one data file is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubResponder{}
			e := newTestEngine(r)
			s := New()
			in := salesSetup()
			tt.edit(&in)

			_, err := e.Start(context.Background(), s, in)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, r.calls)
			assert.Empty(t, cmp.Diff(New(), s))
		})
	}
}

func TestStartPartialSuccess(t *testing.T) {
	e := newTestEngine(&stubResponder{})
	s := New()
	in := salesSetup()
	in.Files = append(in.Files,
		Upload{Name: "broken.csv", Data: []byte("a,b\n1,2,3\n")},
		Upload{Name: "empty.csv"},
	)

	report, err := e.Start(context.Background(), s, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"sales.csv"}, report.Loaded)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, "broken.csv", report.Skipped[0].Name)
	assert.Equal(t, "empty.csv", report.Skipped[1].Name)
	require.Len(t, s.Datasets, 1)
}

func TestStartAllFilesFail(t *testing.T) {
	r := &stubResponder{}
	e := newTestEngine(r)
	s := New()
	in := salesSetup()
	in.Files = []Upload{{Name: "broken.csv", Data: []byte("a,b\n1,2,3\n")}}

	report, err := e.Start(context.Background(), s, in)
	require.ErrorIs(t, err, ErrNoDatasets)
	assert.Len(t, report.Skipped, 1)
	assert.Empty(t, r.calls)
	assert.False(t, s.Initialized())
	assert.Equal(t, StageSetup, s.Stage)
}

func TestStartDuplicateNameReplacesEarlierFile(t *testing.T) {
	e := newTestEngine(&stubResponder{})
	s := New()
	in := salesSetup()
	in.Files = []Upload{
		{Name: "a.csv", Data: []byte("x\n1\n")},
		{Name: "b.csv", Data: []byte("y\n2\n")},
		{Name: "a.csv", Data: []byte("z\n3\n")},
	}

	report, err := e.Start(context.Background(), s, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.csv", "b.csv"}, report.Loaded)
	assert.Equal(t, []string{"z"}, s.Datasets[0].Table.Columns)
}

func TestStartTwiceRequiresReset(t *testing.T) {
	e := newTestEngine(&stubResponder{})
	s := startedSession(t, e)

	_, err := e.Start(context.Background(), s, salesSetup())
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestStartPlanFailureLeavesPlanMissing(t *testing.T) {
	r := &stubResponder{fail: true}
	e := newTestEngine(r)
	s := New()

	_, err := e.Start(context.Background(), s, salesSetup())
	require.ErrorIs(t, err, ErrResponder)
	assert.True(t, s.Initialized())
	assert.Equal(t, StagePlanning, s.Stage)
	assert.False(t, s.Plan.Present())
	assert.Len(t, s.Conversation, 1)

	r.fail = false
	require.NoError(t, e.Generate(context.Background(), s))
	assert.True(t, s.Plan.Present())
}

func TestContinueGeneratesMissingArtifacts(t *testing.T) {
	r := &stubResponder{}
	e := newTestEngine(r)
	s := startedSession(t, e)

	require.NoError(t, e.Continue(context.Background(), s))
	assert.Equal(t, StageUnderstanding, s.Stage)
	assert.True(t, s.DataSummary.Present())
	assert.Equal(t, domain.PersonaAnalyst, r.calls[len(r.calls)-1].persona)

	require.NoError(t, e.Continue(context.Background(), s))
	assert.Equal(t, StageGuidance, s.Stage)
	assert.Equal(t, domain.PersonaAssociate, r.calls[len(r.calls)-1].persona)

	before := len(r.calls)
	require.NoError(t, e.Continue(context.Background(), s))
	assert.Equal(t, StageExecution, s.Stage)
	assert.Len(t, r.calls, before, "execution has no generation gate")
}

func TestContinueRequiresCurrentArtifact(t *testing.T) {
	r := &stubResponder{fail: true}
	e := newTestEngine(r)
	s := New()
	_, _ = e.Start(context.Background(), s, salesSetup())

	err := e.Continue(context.Background(), s)
	require.ErrorIs(t, err, ErrGuard)
	assert.Equal(t, StagePlanning, s.Stage)
}

func TestContinueFromReportingIsRejected(t *testing.T) {
	e := newTestEngine(&stubResponder{})
	s := startedSession(t, e)
	require.NoError(t, e.Navigate(context.Background(), s, StageReporting))

	require.ErrorIs(t, e.Continue(context.Background(), s), ErrGuard)
}

func TestNavigateRequiresInitialization(t *testing.T) {
	e := newTestEngine(&stubResponder{})
	s := New()

	require.ErrorIs(t, e.Navigate(context.Background(), s, StageGuidance), ErrNotInitialized)
	require.NoError(t, e.Navigate(context.Background(), s, StageSetup))
	require.ErrorIs(t, e.Navigate(context.Background(), s, Stage(9)), ErrInvalidInput)
}

func TestNavigateForwardGeneratesInOrder(t *testing.T) {
	r := &stubResponder{}
	e := newTestEngine(r)
	s := startedSession(t, e)

	require.NoError(t, e.Navigate(context.Background(), s, StageReporting))
	personas := make([]domain.Persona, 0, len(r.calls))
	for _, c := range r.calls {
		personas = append(personas, c.persona)
	}
	assert.Equal(t, []domain.Persona{
		domain.PersonaManager, domain.PersonaAnalyst, domain.PersonaAssociate, domain.PersonaManager,
	}, personas)
	assert.True(t, s.Report.Present())
}

func TestNavigateBackKeepsDownstreamArtifacts(t *testing.T) {
	r := &stubResponder{}
	e := newTestEngine(r)
	s := startedSession(t, e)
	require.NoError(t, e.Navigate(context.Background(), s, StageGuidance))
	guidance := s.Guidance.Text
	calls := len(r.calls)

	require.NoError(t, e.Navigate(context.Background(), s, StagePlanning))
	assert.Equal(t, guidance, s.Guidance.Text)
	assert.Len(t, r.calls, calls)
}

func TestRevisionAddsTwoEntriesOnSuccess(t *testing.T) {
	r := &stubResponder{}
	e := newTestEngine(r)
	s := startedSession(t, e)
	entries := len(s.Conversation)

	out, err := e.Revise(context.Background(), s, "add a seasonality step")
	require.NoError(t, err)

	assert.Len(t, s.Conversation, entries+2)
	assert.Equal(t, "Feedback on plan: add a seasonality step", s.Conversation[entries].Content)
	assert.Equal(t, domain.RoleManager, s.Conversation[entries+1].Role)
	assert.Equal(t, out, s.Plan.Text)
	assert.Equal(t, 2, s.Plan.Revision)

	last := r.calls[len(r.calls)-1]
	assert.Equal(t, domain.PersonaManager, last.persona)
	assert.Contains(t, last.prompt, "Original Analysis Plan:")
	assert.Contains(t, last.prompt, "add a seasonality step")
	assert.Contains(t, last.prompt, "Keep the same structured format with numbered steps.")
}

func TestRevisionFailureKeepsArtifact(t *testing.T) {
	r := &stubResponder{}
	e := newTestEngine(r)
	s := startedSession(t, e)
	before := s.Plan
	entries := len(s.Conversation)

	r.fail = true
	_, err := e.Revise(context.Background(), s, "make it shorter")
	require.ErrorIs(t, err, ErrResponder)

	assert.Equal(t, before, s.Plan)
	assert.Len(t, s.Conversation, entries+1)
	assert.Equal(t, domain.RoleUser, s.Conversation[entries].Role)
}

func TestRevisionRejectsBlankFeedback(t *testing.T) {
	r := &stubResponder{}
	e := newTestEngine(r)
	s := startedSession(t, e)
	calls, entries := len(r.calls), len(s.Conversation)

	_, err := e.Revise(context.Background(), s, "  \n")
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Len(t, r.calls, calls)
	assert.Len(t, s.Conversation, entries)
}

func TestRevisionNotAvailableInUnderstanding(t *testing.T) {
	e := newTestEngine(&stubResponder{})
	s := startedSession(t, e)
	require.NoError(t, e.Continue(context.Background(), s))

	_, err := e.Revise(context.Background(), s, "more detail")
	require.ErrorIs(t, err, ErrGuard)
}

func TestRevisingPlanMarksDownstreamStale(t *testing.T) {
	e := newTestEngine(&stubResponder{})
	s := startedSession(t, e)
	require.NoError(t, e.Navigate(context.Background(), s, StageGuidance))
	require.NoError(t, e.Navigate(context.Background(), s, StagePlanning))

	_, err := e.Revise(context.Background(), s, "focus on regions")
	require.NoError(t, err)
	assert.True(t, s.DataSummary.Stale)
	assert.True(t, s.Guidance.Stale)
	assert.False(t, s.Report.Stale, "absent artifacts are not flagged")

	require.NoError(t, e.Continue(context.Background(), s))
	_, err = e.Regenerate(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, s.DataSummary.Stale)
	assert.Equal(t, 2, s.DataSummary.Revision)
	assert.True(t, s.Guidance.Stale)
}

func TestRegenerateFailureKeepsText(t *testing.T) {
	r := &stubResponder{}
	e := newTestEngine(r)
	s := startedSession(t, e)
	before := s.Plan

	r.fail = true
	_, err := e.Regenerate(context.Background(), s)
	require.ErrorIs(t, err, ErrResponder)
	assert.Equal(t, before, s.Plan)
}

func TestAskRecordsQuestionAndAnswer(t *testing.T) {
	r := &stubResponder{}
	e := newTestEngine(r)
	s := startedSession(t, e)
	require.NoError(t, e.Continue(context.Background(), s))
	entries := len(s.Conversation)

	answer, err := e.Ask(context.Background(), s, "Which region sells most?")
	require.NoError(t, err)

	require.Len(t, s.Conversation, entries+2)
	assert.Equal(t, "Question about data: Which region sells most?", s.Conversation[entries].Content)
	assert.Equal(t, answer, s.Conversation[entries+1].Content)
	assert.Equal(t, domain.PersonaAnalyst, r.calls[len(r.calls)-1].persona)
	assert.Contains(t, r.calls[len(r.calls)-1].prompt, s.DataSummary.Text)
}

func TestTaskResultsAreAppendOnly(t *testing.T) {
	r := &stubResponder{}
	e := newTestEngine(r)
	s := startedSession(t, e)
	require.NoError(t, e.Navigate(context.Background(), s, StageExecution))

	for i := 1; i <= 3; i++ {
		task := fmt.Sprintf("Task number %d", i)
		res, err := e.ExecuteTask(context.Background(), s, task)
		require.NoError(t, err)
		assert.Equal(t, task, res.Task)
	}

	require.Len(t, s.Results, 3)
	for i, res := range s.Results {
		assert.Equal(t, fmt.Sprintf("Task number %d", i+1), res.Task)
	}
	last := s.Conversation[len(s.Conversation)-1]
	assert.Equal(t, domain.RoleAnalyst, last.Role)
	assert.True(t, strings.HasPrefix(last.Content, "Task: Task number 3\n\n"))
	assert.Contains(t, r.calls[len(r.calls)-1].prompt, `["Task number 1","Task number 2"]`)
}

func TestTaskFailureAppendsNothing(t *testing.T) {
	r := &stubResponder{}
	e := newTestEngine(r)
	s := startedSession(t, e)
	require.NoError(t, e.Navigate(context.Background(), s, StageExecution))
	entries := len(s.Conversation)

	r.fail = true
	_, err := e.ExecuteTask(context.Background(), s, "Average sales by region")
	require.ErrorIs(t, err, ErrResponder)
	assert.Empty(t, s.Results)
	assert.Len(t, s.Conversation, entries)
}

func TestTaskOutsideExecutionIsRejected(t *testing.T) {
	e := newTestEngine(&stubResponder{})
	s := startedSession(t, e)

	_, err := e.ExecuteTask(context.Background(), s, "Average sales by region")
	require.ErrorIs(t, err, ErrGuard)
}

func TestNewResultMarksReportStale(t *testing.T) {
	e := newTestEngine(&stubResponder{})
	s := startedSession(t, e)
	require.NoError(t, e.Navigate(context.Background(), s, StageReporting))
	require.NoError(t, e.Navigate(context.Background(), s, StageExecution))

	_, err := e.ExecuteTask(context.Background(), s, "Average sales by region")
	require.NoError(t, err)
	assert.True(t, s.Report.Stale)
}

func TestReviewNeedsTwoResults(t *testing.T) {
	r := &stubResponder{}
	e := newTestEngine(r)
	s := startedSession(t, e)
	require.NoError(t, e.Navigate(context.Background(), s, StageExecution))

	_, err := e.ExecuteTask(context.Background(), s, "Average sales by region")
	require.NoError(t, err)
	_, err = e.Review(context.Background(), s)
	require.ErrorIs(t, err, ErrGuard)

	_, err = e.ExecuteTask(context.Background(), s, "Sales trend over time")
	require.NoError(t, err)
	out, err := e.Review(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, domain.PersonaAssociate, r.calls[len(r.calls)-1].persona)
	assert.Equal(t, out, s.Conversation[len(s.Conversation)-1].Content)
	assert.Len(t, s.Results, 2)
}

func TestReviewTruncatesResults(t *testing.T) {
	long := strings.Repeat("x", 1500)
	r := &stubResponder{reply: func(p string, persona domain.Persona) string {
		if strings.HasPrefix(p, "Problem Statement") && strings.Contains(p, "Analysis Task") {
			return long
		}
		return "ok " + string(persona)
	}}
	e := newTestEngine(r)
	s := startedSession(t, e)
	require.NoError(t, e.Navigate(context.Background(), s, StageExecution))
	for _, task := range []string{"First long task", "Second long task"} {
		_, err := e.ExecuteTask(context.Background(), s, task)
		require.NoError(t, err)
	}

	_, err := e.Review(context.Background(), s)
	require.NoError(t, err)
	p := r.calls[len(r.calls)-1].prompt
	assert.Equal(t, 2, strings.Count(p, strings.Repeat("x", 1000)+"..."))
	assert.NotContains(t, p, strings.Repeat("x", 1001))
}

func TestExportReport(t *testing.T) {
	r := &stubResponder{}
	exp := &stubExporter{}
	e := NewEngine(r, nil, exp, nil)
	s := startedSession(t, e)

	_, err := e.ExportReport(s, "u1")
	require.ErrorIs(t, err, ErrGuard)

	require.NoError(t, e.Navigate(context.Background(), s, StageReporting))
	path, err := e.ExportReport(s, "u1")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/reports/u1/report.html", path)
	assert.Equal(t, "P", exp.project)
	assert.Equal(t, s.Report.Text, exp.markdown)
}

func TestResetRestoresInitialState(t *testing.T) {
	e := newTestEngine(&stubResponder{})
	s := startedSession(t, e)
	require.NoError(t, e.Navigate(context.Background(), s, StageExecution))
	_, err := e.ExecuteTask(context.Background(), s, "Average sales by region")
	require.NoError(t, err)
	require.NoError(t, e.Continue(context.Background(), s))

	e.Reset(s)
	if diff := cmp.Diff(New(), s); diff != "" {
		t.Fatalf("reset session mismatch (-want +got):\n%s", diff)
	}
}

func TestEndToEndPromptsCarryUpstreamText(t *testing.T) {
	r := &stubResponder{}
	e := newTestEngine(r)
	s := startedSession(t, e)
	ctx := context.Background()

	assert.Equal(t, 1, s.Datasets[0].Profile.MissingValues["sales"])

	require.NoError(t, e.Continue(ctx, s))
	assert.Contains(t, r.calls[len(r.calls)-1].prompt, s.Plan.Text)

	require.NoError(t, e.Continue(ctx, s))
	guidancePrompt := r.calls[len(r.calls)-1].prompt
	assert.Contains(t, guidancePrompt, s.Plan.Text)
	assert.Contains(t, guidancePrompt, s.DataSummary.Text)

	require.NoError(t, e.Continue(ctx, s))
	_, err := e.ExecuteTask(ctx, s, "Total sales by region")
	require.NoError(t, err)
	taskPrompt := r.calls[len(r.calls)-1].prompt
	assert.Contains(t, taskPrompt, "Find sales trends")
	assert.Contains(t, taskPrompt, `"region":"north"`)
	assert.Contains(t, taskPrompt, "Available Columns: date, region, sales")

	require.NoError(t, e.Continue(ctx, s))
	assert.Equal(t, StageReporting, s.Stage)
	reportPrompt := r.calls[len(r.calls)-1].prompt
	assert.Contains(t, reportPrompt, "Project Name: P")
	assert.Contains(t, reportPrompt, s.Plan.Text)
	assert.Contains(t, reportPrompt, s.DataSummary.Text)
	assert.Contains(t, reportPrompt, "Analysis 1: Total sales by region")
}

package workflow

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/analyst-labs/internal/domain"
)

func TestStageNames(t *testing.T) {
	assert.Equal(t, []string{
		"Project Setup", "Manager Planning", "Data Understanding",
		"Analysis Guidance", "Analysis Execution", "Final Report",
	}, StageNames())
	assert.Equal(t, 6, StageCount)
	assert.Equal(t, "Unknown", Stage(-1).String())
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, Allowed(StageSetup, ActionStart))
	assert.False(t, Allowed(StagePlanning, ActionStart))
	assert.True(t, Allowed(StageUnderstanding, ActionAsk))
	assert.False(t, Allowed(StageUnderstanding, ActionRevise))
	assert.True(t, Allowed(StageExecution, ActionReview))
	assert.False(t, Allowed(StageReporting, ActionContinue))
	assert.Equal(t, []Action{ActionGenerate, ActionRegenerate, ActionRevise, ActionExport}, Actions(StageReporting))

	for stage := StageSetup; stage < StageReporting; stage++ {
		got, err := next(stage, ActionContinue)
		require.NoError(t, err)
		assert.Equal(t, stage+1, got)
	}
}

func TestSuggestedTasks(t *testing.T) {
	s := New()
	assert.Empty(t, SuggestedTasks(s))

	s.Guidance = Artifact{Revision: 1, Text: strings.Join([]string{
		"# Next steps",
		"",
		"1. Calculate correlation matrix",
		"   2. Frequency counts for region  ",
		"3. Distribution of sales",
		"4. Sales by weekday",
		"5. Outliers in sales",
		"6. One too many tasks",
	}, "\n")}

	assert.Equal(t, []string{
		"1. Calculate correlation matrix",
		"2. Frequency counts for region",
		"3. Distribution of sales",
		"4. Sales by weekday",
		"5. Outliers in sales",
	}, SuggestedTasks(s))
}

func TestSuggestedTasksHidesShortLinesAfterCapping(t *testing.T) {
	s := New()
	s.Guidance = Artifact{Revision: 1, Text: strings.Join([]string{
		"## Tasks",
		"short",
		"1. Calculate correlation matrix",
		"  # indented heading kept",
		"ok",
		"2. Distribution of sales",
		"3. Sales by weekday",
	}, "\n")}

	assert.Equal(t, []string{
		"1. Calculate correlation matrix",
		"# indented heading kept",
		"2. Distribution of sales",
	}, SuggestedTasks(s))
}

func TestConversationPreviewTruncatesPersonaEntries(t *testing.T) {
	long := strings.Repeat("a", 150)
	entries := []domain.ConversationEntry{
		{Role: domain.RoleUser, Content: long},
		{Role: domain.RoleManager, Content: long},
	}

	got := ConversationPreview(entries)
	assert.Equal(t, long, got[0].Content)
	assert.Equal(t, strings.Repeat("a", 100)+"...", got[1].Content)
	assert.Equal(t, long, entries[1].Content, "input must not be modified")
}

func TestNewViewOmitsAbsentArtifacts(t *testing.T) {
	e := newTestEngine(&stubResponder{})
	s := startedSession(t, e)

	v := NewView(s)
	assert.Equal(t, StagePlanning, v.Stage)
	assert.Equal(t, "Manager Planning", v.StageName)
	require.NotNil(t, v.Plan)
	assert.Nil(t, v.DataSummary)
	assert.False(t, v.CanReview)
	require.Len(t, v.Datasets, 1)
	assert.Contains(t, v.Datasets[0].Summary, "- Dimensions: 10 rows × 3 columns")

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"rows":[[`)
}

func TestSessionSnapshotRoundTrip(t *testing.T) {
	e := newTestEngine(&stubResponder{})
	s := startedSession(t, e)
	require.NoError(t, e.Navigate(context.Background(), s, StageExecution))

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var got Session
	require.NoError(t, json.Unmarshal(raw, &got))

	if diff := cmp.Diff(s, &got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ashureev/analyst-labs/internal/domain"
	"github.com/ashureev/analyst-labs/internal/prompt"
)

// MinReviewResults is the number of analysis results required before a review.
const MinReviewResults = 2

// Responder answers a prompt in the voice of a persona.
type Responder interface {
	Respond(ctx context.Context, prompt string, persona domain.Persona) (string, error)
}

// Exporter renders a Markdown report to a standalone document under the
// subdirectory scope and returns its path.
type Exporter interface {
	Export(scope, projectName, markdown string) (string, error)
}

// Engine performs workflow operations on a session. It holds no session
// state; callers serialize operations per session.
type Engine struct {
	responder Responder
	composer  *prompt.Composer
	exporter  Exporter
	validate  *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewEngine creates an engine. A nil composer uses the default budgets and
// a nil logger uses slog.Default.
func NewEngine(responder Responder, composer *prompt.Composer, exporter Exporter, logger *slog.Logger) *Engine {
	if composer == nil {
		composer = prompt.NewComposer(prompt.DefaultBudgets())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		responder: responder,
		composer:  composer,
		exporter:  exporter,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Continue advances to the next stage once the current stage's artifact
// exists, then generates whatever the new stage is missing.
func (e *Engine) Continue(ctx context.Context, s *Session) error {
	if !s.Initialized() {
		return ErrNotInitialized
	}
	target, err := next(s.Stage, ActionContinue)
	if err != nil {
		return err
	}
	if kind, ok := s.Stage.artifact(); ok && !s.Artifact(kind).Present() {
		return fmt.Errorf("%w: the %s has not been generated", ErrGuard, kind.Label())
	}
	s.Stage = target
	return e.ensure(ctx, s, target)
}

// Navigate moves the stage pointer directly to target. Downstream artifacts
// are kept; missing artifacts the target needs are generated in order.
func (e *Engine) Navigate(ctx context.Context, s *Session, target Stage) error {
	if !target.Valid() {
		return fmt.Errorf("%w: unknown stage %d", ErrInvalidInput, int(target))
	}
	if target != StageSetup && !s.Initialized() {
		return ErrNotInitialized
	}
	s.Stage = target
	return e.ensure(ctx, s, target)
}

// Reset returns the session to its initial state.
func (e *Engine) Reset(s *Session) {
	s.Reset()
	e.logger.Info("session reset")
}

// Generate retries generation of the current stage's missing artifacts.
func (e *Engine) Generate(ctx context.Context, s *Session) error {
	if !s.Initialized() {
		return ErrNotInitialized
	}
	if _, err := next(s.Stage, ActionGenerate); err != nil {
		return err
	}
	return e.ensure(ctx, s, s.Stage)
}

// Regenerate produces the current stage's artifact afresh from its upstream
// artifacts and clears its stale flag. The old text is kept on failure.
func (e *Engine) Regenerate(ctx context.Context, s *Session) (string, error) {
	if !s.Initialized() {
		return "", ErrNotInitialized
	}
	if _, err := next(s.Stage, ActionRegenerate); err != nil {
		return "", err
	}
	kind, _ := s.Stage.artifact()
	for _, req := range s.Stage.requirements() {
		if req == kind || s.Artifact(req).Present() {
			continue
		}
		if err := e.generate(ctx, s, req); err != nil {
			return "", err
		}
	}
	if err := e.generate(ctx, s, kind); err != nil {
		return "", err
	}
	return s.Artifact(kind).Text, nil
}

// Revise applies user feedback to the current stage's artifact. The feedback
// entry is recorded before the responder is called; the artifact and the
// persona entry change only on success.
func (e *Engine) Revise(ctx context.Context, s *Session, feedback string) (string, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return "", fmt.Errorf("%w: feedback is required", ErrInvalidInput)
	}
	if !s.Initialized() {
		return "", ErrNotInitialized
	}
	if _, err := next(s.Stage, ActionRevise); err != nil {
		return "", err
	}
	kind, _ := s.Stage.artifact()
	art := s.Artifact(kind)
	if !art.Present() {
		return "", fmt.Errorf("%w: the %s has not been generated", ErrGuard, kind.Label())
	}

	e.append(s, domain.RoleUser, fmt.Sprintf("Feedback on %s: %s", kind.Label(), feedback))

	p, err := e.composer.Revision(kind, art.Text, feedback)
	if err != nil {
		return "", err
	}
	owner := kind.Owner()
	out, err := e.respond(ctx, p, owner, "revise "+kind.Label())
	if err != nil {
		return "", err
	}

	art.Text = out
	art.Revision++
	e.append(s, domain.RoleOf(owner), out)
	s.markStale(kind)
	e.logger.Info("artifact revised", "artifact", kind, "revision", art.Revision)
	return out, nil
}

// Ask sends a free-form data question to the analyst. The answer is
// recorded in the conversation but not stored as an artifact.
func (e *Engine) Ask(ctx context.Context, s *Session, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	if !s.Initialized() {
		return "", ErrNotInitialized
	}
	if _, err := next(s.Stage, ActionAsk); err != nil {
		return "", err
	}
	if !s.DataSummary.Present() {
		return "", fmt.Errorf("%w: the data summary has not been generated", ErrGuard)
	}

	e.append(s, domain.RoleUser, "Question about data: "+question)

	p, err := e.composer.Question(*s.Project, s.Datasets, s.DataSummary.Text, question)
	if err != nil {
		return "", err
	}
	out, err := e.respond(ctx, p, domain.PersonaAnalyst, "answer question")
	if err != nil {
		return "", err
	}
	e.append(s, domain.RoleAnalyst, out)
	return out, nil
}

// ExecuteTask runs one analysis task against the primary dataset and appends
// its result. Nothing is recorded when the responder fails.
func (e *Engine) ExecuteTask(ctx context.Context, s *Session, task string) (domain.AnalysisResult, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return domain.AnalysisResult{}, fmt.Errorf("%w: task description is required", ErrInvalidInput)
	}
	if !s.Initialized() {
		return domain.AnalysisResult{}, ErrNotInitialized
	}
	if _, err := next(s.Stage, ActionExecuteTask); err != nil {
		return domain.AnalysisResult{}, err
	}

	p, err := e.composer.Task(*s.Project, task, s.PrimaryDataset(), s.Results)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	out, err := e.respond(ctx, p, domain.PersonaAnalyst, "execute task")
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	result := domain.AnalysisResult{Task: task, Result: out}
	s.Results = append(s.Results, result)
	e.append(s, domain.RoleAnalyst, fmt.Sprintf("Task: %s\n\n%s", task, out))
	if s.Report.Present() {
		s.Report.Stale = true
	}
	e.logger.Info("analysis task executed", "results", len(s.Results))
	return result, nil
}

// Review asks the associate to assess the results so far. It needs at least
// MinReviewResults results and leaves no artifact behind.
func (e *Engine) Review(ctx context.Context, s *Session) (string, error) {
	if !s.Initialized() {
		return "", ErrNotInitialized
	}
	if _, err := next(s.Stage, ActionReview); err != nil {
		return "", err
	}
	if len(s.Results) < MinReviewResults {
		return "", fmt.Errorf("%w: review needs at least %d analysis results", ErrGuard, MinReviewResults)
	}
	if !s.Guidance.Present() {
		return "", fmt.Errorf("%w: the guidance has not been generated", ErrGuard)
	}

	p, err := e.composer.Review(*s.Project, s.Guidance.Text, s.Results)
	if err != nil {
		return "", err
	}
	out, err := e.respond(ctx, p, domain.PersonaAssociate, "review results")
	if err != nil {
		return "", err
	}
	e.append(s, domain.RoleAssociate, out)
	return out, nil
}

// ExportReport writes the final report to a styled document and returns its
// path. scope separates the documents of different sessions; it may be empty.
func (e *Engine) ExportReport(s *Session, scope string) (string, error) {
	if !s.Initialized() {
		return "", ErrNotInitialized
	}
	if _, err := next(s.Stage, ActionExport); err != nil {
		return "", err
	}
	if !s.Report.Present() {
		return "", fmt.Errorf("%w: the report has not been generated", ErrGuard)
	}
	if e.exporter == nil {
		return "", errors.New("report export is not configured")
	}
	path, err := e.exporter.Export(scope, s.Project.Name, s.Report.Text)
	if err != nil {
		return "", fmt.Errorf("export report: %w", err)
	}
	e.logger.Info("report exported", "path", path)
	return path, nil
}

// ensure generates, in dependency order, every artifact stage needs that is missing.
func (e *Engine) ensure(ctx context.Context, s *Session, stage Stage) error {
	for _, kind := range stage.requirements() {
		if s.Artifact(kind).Present() {
			continue
		}
		if err := e.generate(ctx, s, kind); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) generate(ctx context.Context, s *Session, kind domain.ArtifactKind) error {
	p, err := e.compose(s, kind)
	if err != nil {
		return err
	}
	owner := kind.Owner()
	out, err := e.respond(ctx, p, owner, "generate "+kind.Label())
	if err != nil {
		return err
	}

	art := s.Artifact(kind)
	art.Text = out
	art.Revision++
	art.Stale = false
	e.append(s, domain.RoleOf(owner), out)
	s.markStale(kind)
	e.logger.Info("artifact generated", "artifact", kind, "revision", art.Revision, "stage", s.Stage.String())
	return nil
}

func (e *Engine) compose(s *Session, kind domain.ArtifactKind) (string, error) {
	project := *s.Project
	switch kind {
	case domain.ArtifactPlan:
		return e.composer.Plan(project, s.Datasets)
	case domain.ArtifactDataSummary:
		return e.composer.DataSummary(project, s.Plan.Text, s.Datasets)
	case domain.ArtifactGuidance:
		return e.composer.Guidance(project, s.Plan.Text, s.DataSummary.Text)
	case domain.ArtifactReport:
		return e.composer.Report(project, s.Plan.Text, s.DataSummary.Text, s.Results)
	default:
		return "", fmt.Errorf("unknown artifact %q", kind)
	}
}

func (e *Engine) respond(ctx context.Context, p string, persona domain.Persona, what string) (string, error) {
	out, err := e.responder.Respond(ctx, p, persona)
	if err == nil && strings.TrimSpace(out) == "" {
		err = errors.New("empty response")
	}
	if err != nil {
		e.logger.Warn("persona call failed", "persona", persona, "operation", what, "error", err)
		return "", fmt.Errorf("%w: %s: %w", ErrResponder, what, err)
	}
	return out, nil
}

func (e *Engine) append(s *Session, role domain.Role, content string) {
	s.Conversation = append(s.Conversation, domain.ConversationEntry{
		ID:      e.newID(),
		Role:    role,
		Content: content,
		At:      e.now().UTC(),
	})
}

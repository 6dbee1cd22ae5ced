package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/ashureev/analyst-labs/internal/agent"
	"github.com/ashureev/analyst-labs/internal/config"
	"github.com/ashureev/analyst-labs/internal/prompt"
	"github.com/ashureev/analyst-labs/internal/report"
	"github.com/ashureev/analyst-labs/internal/workflow"
)

type runOptions struct {
	name      string
	problem   string
	context   string
	tasks     []string
	provider  string
	model     string
	exportDir string
	quiet     bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run [file.csv...]",
	Short: "Run a whole analysis session and export the report",
	Long: `run sets up a project from the given CSV files, walks every stage in order,
executes the analysis tasks (the suggested ones when none are given), asks
for a review and writes the final report as a styled HTML document.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSession,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.name, "name", "", "project name")
	f.StringVar(&runOpts.problem, "problem", "", "problem statement")
	f.StringVar(&runOpts.context, "context", "", "additional data context")
	f.StringArrayVar(&runOpts.tasks, "task", nil, "analysis task to execute (repeatable)")
	f.StringVar(&runOpts.provider, "provider", "", "LLM provider (gemini, openai, anthropic, echo); overrides LLM_PROVIDER")
	f.StringVar(&runOpts.model, "model", "", "model name; overrides LLM_MODEL")
	f.StringVar(&runOpts.exportDir, "out", "", "report directory; overrides EXPORT_DIR")
	f.BoolVarP(&runOpts.quiet, "quiet", "q", false, "print only the report path")
	_ = runCmd.MarkFlagRequired("name")
	_ = runCmd.MarkFlagRequired("problem")
}

func runSession(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	prompts, err := config.LoadPromptConfig(cfg.PromptConfig)
	if err != nil {
		return err
	}

	responder, err := agent.NewService(ctx, cfg.LLM.Agent(prompts.Personas), slog.Default())
	if err != nil {
		return fmt.Errorf("initialize persona responder: %w", err)
	}
	engine := workflow.NewEngine(responder, prompt.NewComposer(prompts.Budgets), report.NewExporter(cfg.ExportDir), slog.Default())

	uploads, err := readFiles(args)
	if err != nil {
		return err
	}

	out := &printer{w: cmd.OutOrStdout(), quiet: runOpts.quiet}
	s := workflow.New()

	setup, err := engine.Start(ctx, s, workflow.SetupInput{
		ProjectName:      runOpts.name,
		ProblemStatement: runOpts.problem,
		DataContext:      runOpts.context,
		Files:            uploads,
	})
	for _, skipped := range setup.Skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %s\n", skipped.Name, skipped.Error)
	}
	if err != nil {
		return err
	}
	out.section(s.Stage, s.Plan.Text)

	for s.Stage < workflow.StageExecution {
		if err := engine.Continue(ctx, s); err != nil {
			return err
		}
		if art := currentArtifact(s); art != "" {
			out.section(s.Stage, art)
		}
	}

	tasks := runOpts.tasks
	if len(tasks) == 0 {
		tasks = workflow.SuggestedTasks(s)
	}
	if len(tasks) == 0 {
		return errors.New("no analysis task given and none could be suggested from the guidance")
	}
	for _, task := range tasks {
		result, err := engine.ExecuteTask(ctx, s, task)
		if err != nil {
			return err
		}
		out.markdown(fmt.Sprintf("### Task: %s\n\n%s", result.Task, result.Result))
	}

	if len(s.Results) >= workflow.MinReviewResults {
		review, err := engine.Review(ctx, s)
		if err != nil {
			return err
		}
		out.markdown("### Associate review\n\n" + review)
	}

	if err := engine.Continue(ctx, s); err != nil {
		return err
	}
	out.section(s.Stage, s.Report.Text)

	path, err := engine.ExportReport(s, "")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func loadRunConfig() (*config.Config, error) {
	if runOpts.provider != "" {
		if err := os.Setenv("LLM_PROVIDER", runOpts.provider); err != nil {
			return nil, err
		}
	}
	if runOpts.model != "" {
		if err := os.Setenv("LLM_MODEL", runOpts.model); err != nil {
			return nil, err
		}
	}
	if runOpts.exportDir != "" {
		if err := os.Setenv("EXPORT_DIR", runOpts.exportDir); err != nil {
			return nil, err
		}
	}
	return config.Load()
}

func readFiles(paths []string) ([]workflow.Upload, error) {
	uploads := make([]workflow.Upload, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, workflow.Upload{Name: filepath.Base(path), Data: data})
	}
	return uploads, nil
}

func currentArtifact(s *workflow.Session) string {
	switch s.Stage {
	case workflow.StageUnderstanding:
		return s.DataSummary.Text
	case workflow.StageGuidance:
		return s.Guidance.Text
	case workflow.StageReporting:
		return s.Report.Text
	default:
		return ""
	}
}

// printer renders Markdown for the terminal, falling back to plain text
// when no renderer can be built.
type printer struct {
	w        io.Writer
	quiet    bool
	renderer *glamour.TermRenderer
	failed   bool
}

func (p *printer) section(stage workflow.Stage, text string) {
	p.markdown(fmt.Sprintf("## %s\n\n%s", stage, text))
}

func (p *printer) markdown(md string) {
	if p.quiet {
		return
	}
	if p.renderer == nil && !p.failed {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			slog.Warn("Failed to initialize markdown renderer", "error", err)
			p.failed = true
		} else {
			p.renderer = r
		}
	}
	if p.renderer != nil {
		if rendered, err := p.renderer.Render(md); err == nil {
			fmt.Fprint(p.w, rendered)
			return
		}
	}
	fmt.Fprintln(p.w, md)
}


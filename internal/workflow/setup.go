package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/analyst-labs/internal/domain"
	"github.com/ashureev/analyst-labs/internal/profile"
)

const maxParallelParse = 4

// Upload is one file submitted at setup.
type Upload struct {
	Name string `validate:"required"`
	Data []byte
}

// SetupInput is the project definition and its data files.
type SetupInput struct {
	ProjectName      string   `validate:"required"`
	ProblemStatement string   `validate:"required"`
	DataContext      string
	Files            []Upload `validate:"min=1,dive"`
}

// FileError reports an uploaded file that could not be ingested.
type FileError struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// SetupReport lists the datasets registered and the files skipped at setup.
type SetupReport struct {
	Loaded  []string    `json:"loaded"`
	Skipped []FileError `json:"skipped,omitempty"`
}

var fieldMessages = map[string]string{
	"ProjectName":      "project name is required",
	"ProblemStatement": "problem statement is required",
	"Files":            "at least one data file is required",
	"Name":             "every data file needs a name",
}

// Start initializes the session with a project and its datasets, moves to
// planning and requests the plan. Files that fail to parse are skipped and
// reported; setup fails only when none parse. A failed plan request leaves
// the session in planning with the plan missing.
func (e *Engine) Start(ctx context.Context, s *Session, in SetupInput) (SetupReport, error) {
	if s.Initialized() {
		return SetupReport{}, ErrAlreadyInitialized
	}
	in.ProjectName = strings.TrimSpace(in.ProjectName)
	in.ProblemStatement = strings.TrimSpace(in.ProblemStatement)
	in.DataContext = strings.TrimSpace(in.DataContext)
	if err := e.validate.Struct(in); err != nil {
		return SetupReport{}, fmt.Errorf("%w: %s", ErrInvalidInput, describeValidation(err))
	}
	target, err := next(s.Stage, ActionStart)
	if err != nil {
		return SetupReport{}, err
	}

	datasets, skipped := e.ingest(ctx, in.Files)
	report := SetupReport{Skipped: skipped}
	for _, f := range skipped {
		e.logger.Warn("skipping unparseable data file", "file", f.Name, "error", f.Error)
	}
	if len(datasets) == 0 {
		return report, ErrNoDatasets
	}
	for _, ds := range datasets {
		report.Loaded = append(report.Loaded, ds.Name)
	}

	s.Project = &domain.Project{
		Name:             in.ProjectName,
		ProblemStatement: in.ProblemStatement,
		DataContext:      in.DataContext,
	}
	s.Datasets = datasets
	e.append(s, domain.RoleUser, fmt.Sprintf("Project: %s\nProblem Statement: %s\nData Context: %s",
		in.ProjectName, in.ProblemStatement, in.DataContext))
	s.Stage = target
	e.logger.Info("session initialized", "project", in.ProjectName, "datasets", len(datasets), "skipped", len(skipped))

	return report, e.ensure(ctx, s, target)
}

// ingest parses uploads concurrently. A repeated name replaces the earlier
// file in its original position.
func (e *Engine) ingest(ctx context.Context, uploads []Upload) ([]*domain.Dataset, []FileError) {
	var ordered []Upload
	index := make(map[string]int, len(uploads))
	for _, u := range uploads {
		if i, ok := index[u.Name]; ok {
			ordered[i] = u
			continue
		}
		index[u.Name] = len(ordered)
		ordered = append(ordered, u)
	}

	parsed := make([]*domain.Dataset, len(ordered))
	failures := make([]error, len(ordered))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelParse)
	for i, u := range ordered {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				failures[i] = err
				return nil
			}
			table, err := profile.ParseCSV(bytes.NewReader(u.Data))
			if err != nil {
				failures[i] = err
				return nil
			}
			parsed[i] = &domain.Dataset{Name: u.Name, Table: table, Profile: profile.Build(table)}
			return nil
		})
	}
	_ = g.Wait()

	var datasets []*domain.Dataset
	var skipped []FileError
	for i, u := range ordered {
		if failures[i] != nil {
			skipped = append(skipped, FileError{Name: u.Name, Error: failures[i].Error()})
			continue
		}
		datasets = append(datasets, parsed[i])
	}
	return datasets, skipped
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	seen := make(map[string]bool)
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()]
		if !ok {
			msg = fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field()))
		}
		if !seen[msg] {
			seen[msg] = true
			msgs = append(msgs, msg)
		}
	}
	return strings.Join(msgs, "; ")
}

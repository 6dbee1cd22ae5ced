package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/analyst-labs/internal/identity"
	"github.com/ashureev/analyst-labs/internal/session"
	"github.com/ashureev/analyst-labs/internal/workflow"
)

const maxJSONBody = 1 << 20

// WorkflowHandler exposes the session navigation surface.
type WorkflowHandler struct {
	reg       *session.Registry
	engine    *workflow.Engine
	maxUpload int64
	limit     func(http.Handler) http.Handler
}

// NewWorkflowHandler creates a workflow handler. limit, when non-nil, wraps
// every route that calls the persona responder.
func NewWorkflowHandler(reg *session.Registry, engine *workflow.Engine, maxUpload int64, limit func(http.Handler) http.Handler) *WorkflowHandler {
	return &WorkflowHandler{
		reg:       reg,
		engine:    engine,
		maxUpload: maxUpload,
		limit:     limit,
	}
}

// RegisterRoutes registers workflow routes.
func (h *WorkflowHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/reset", h.Reset)
		r.Post("/report/export", h.ExportReport)
		r.Get("/report/download", h.DownloadReport)

		r.Group(func(r chi.Router) {
			if h.limit != nil {
				r.Use(h.limit)
			}
			r.Post("/setup", h.Setup)
			r.Post("/continue", h.Continue)
			r.Post("/goto", h.Goto)
			r.Post("/generate", h.Generate)
			r.Post("/regenerate", h.Regenerate)
			r.Post("/feedback", h.Feedback)
			r.Post("/questions", h.Ask)
			r.Post("/tasks", h.ExecuteTask)
			r.Post("/review", h.Review)
		})
	})
}

func keyFromRequest(r *http.Request) session.Key {
	return session.Key{
		UserID:    identity.UserIDFromContext(r.Context()),
		SessionID: identity.SessionIDFromContext(r.Context()),
	}
}

func exportScope(key session.Key) string {
	return key.UserID + "_" + key.SessionID
}

// GetSession returns the session view.
func (h *WorkflowHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.reg.Get(r.Context(), keyFromRequest(r))
	if err != nil {
		writeWorkflowError(w, r, nil, err, nil)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"view": workflow.NewView(s)})
}

// Setup initializes the session from a multipart form.
func (h *WorkflowHandler) Setup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxUpload))
			return
		}
		Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.Debug("Failed to remove multipart temp files", "error", err)
		}
	}()

	files, err := readUploads(r.MultipartForm.File["files"])
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	in := workflow.SetupInput{
		ProjectName:      r.FormValue("project_name"),
		ProblemStatement: r.FormValue("problem_statement"),
		DataContext:      r.FormValue("data_context"),
		Files:            files,
	}

	var report workflow.SetupReport
	s, err := h.reg.Do(r.Context(), keyFromRequest(r), func(s *workflow.Session) error {
		var startErr error
		report, startErr = h.engine.Start(r.Context(), s, in)
		return startErr
	})
	if err != nil {
		writeWorkflowError(w, r, s, err, map[string]interface{}{"setup": report})
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"view":  workflow.NewView(s),
		"setup": report,
	})
}

func readUploads(headers []*multipart.FileHeader) ([]workflow.Upload, error) {
	uploads := make([]workflow.Upload, 0, len(headers))
	for _, fh := range headers {
		data, err := readUpload(fh)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		uploads = append(uploads, workflow.Upload{Name: fh.Filename, Data: data})
	}
	return uploads, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return io.ReadAll(f)
}

// Continue advances to the next stage.
func (h *WorkflowHandler) Continue(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, s *workflow.Session) (string, any, error) {
		return "", nil, h.engine.Continue(ctx, s)
	})
}

type gotoRequest struct {
	Stage *int `json:"stage"`
}

// Goto navigates directly to a stage.
func (h *WorkflowHandler) Goto(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Stage == nil {
		Error(w, http.StatusBadRequest, "stage is required")
		return
	}
	h.mutate(w, r, func(ctx context.Context, s *workflow.Session) (string, any, error) {
		return "", nil, h.engine.Navigate(ctx, s, workflow.Stage(*req.Stage))
	})
}

// Reset discards the session.
func (h *WorkflowHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(_ context.Context, s *workflow.Session) (string, any, error) {
		h.engine.Reset(s)
		return "", nil, nil
	})
}

// Generate retries generation of the current stage's missing artifacts.
func (h *WorkflowHandler) Generate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, s *workflow.Session) (string, any, error) {
		return "", nil, h.engine.Generate(ctx, s)
	})
}

// Regenerate produces the current stage's artifact afresh.
func (h *WorkflowHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, s *workflow.Session) (string, any, error) {
		text, err := h.engine.Regenerate(ctx, s)
		return "text", text, err
	})
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

// Feedback revises the current stage's artifact.
func (h *WorkflowHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutate(w, r, func(ctx context.Context, s *workflow.Session) (string, any, error) {
		text, err := h.engine.Revise(ctx, s, req.Feedback)
		return "text", text, err
	})
}

type questionRequest struct {
	Question string `json:"question"`
}

// Ask sends a data question to the analyst.
func (h *WorkflowHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutate(w, r, func(ctx context.Context, s *workflow.Session) (string, any, error) {
		answer, err := h.engine.Ask(ctx, s, req.Question)
		return "answer", answer, err
	})
}

type taskRequest struct {
	Task string `json:"task"`
}

// ExecuteTask runs one analysis task.
func (h *WorkflowHandler) ExecuteTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.mutate(w, r, func(ctx context.Context, s *workflow.Session) (string, any, error) {
		result, err := h.engine.ExecuteTask(ctx, s, req.Task)
		return "result", result, err
	})
}

// Review asks the associate to assess the results.
func (h *WorkflowHandler) Review(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, s *workflow.Session) (string, any, error) {
		review, err := h.engine.Review(ctx, s)
		return "review", review, err
	})
}

// ExportReport writes the report document and returns its path.
func (h *WorkflowHandler) ExportReport(w http.ResponseWriter, r *http.Request) {
	key := keyFromRequest(r)
	h.mutate(w, r, func(_ context.Context, s *workflow.Session) (string, any, error) {
		path, err := h.engine.ExportReport(s, exportScope(key))
		return "path", path, err
	})
}

// DownloadReport exports the report and serves the document.
func (h *WorkflowHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	key := keyFromRequest(r)
	var path string
	s, err := h.reg.Do(r.Context(), key, func(s *workflow.Session) error {
		var exportErr error
		path, exportErr = h.engine.ExportReport(s, exportScope(key))
		return exportErr
	})
	if err != nil {
		writeWorkflowError(w, r, s, err, nil)
		return
	}
	w.Header().Set("Content-Disposition", `inline; filename="report.html"`)
	http.ServeFile(w, r, path)
}

// mutate runs op under the session lock and writes the view plus the
// operation's named result.
func (h *WorkflowHandler) mutate(w http.ResponseWriter, r *http.Request, op func(context.Context, *workflow.Session) (string, any, error)) {
	var (
		field string
		value any
	)
	s, err := h.reg.Do(r.Context(), keyFromRequest(r), func(s *workflow.Session) error {
		var opErr error
		field, value, opErr = op(r.Context(), s)
		return opErr
	})
	if err != nil {
		writeWorkflowError(w, r, s, err, nil)
		return
	}
	body := map[string]interface{}{"view": workflow.NewView(s)}
	if field != "" {
		body[field] = value
	}
	JSON(w, http.StatusOK, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// statusOf maps workflow errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, workflow.ErrInvalidInput), errors.Is(err, workflow.ErrNoDatasets):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrGuard),
		errors.Is(err, workflow.ErrNotInitialized),
		errors.Is(err, workflow.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrResponder):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeWorkflowError writes err with the session view when one is
// available, since a failed operation may still have changed the session.
// Fields in extra are added to the body.
func writeWorkflowError(w http.ResponseWriter, r *http.Request, s *workflow.Session, err error, extra map[string]interface{}) {
	status := statusOf(err)
	key := keyFromRequest(r)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Workflow operation failed", "error", err, "user_id", key.UserID, "session_id", key.SessionID, "path", r.URL.Path)
		message = "internal error"
	} else {
		slog.Warn("Workflow operation rejected", "error", err, "status", status, "user_id", key.UserID, "session_id", key.SessionID)
	}

	body := map[string]interface{}{"error": message}
	if s != nil {
		body["view"] = workflow.NewView(s)
	}
	for k, v := range extra {
		body[k] = v
	}
	JSON(w, status, body)
}

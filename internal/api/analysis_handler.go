package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/docstream/internal/api/shared"
	"github.com/phrazzld/docstream/internal/domain"
	"github.com/phrazzld/docstream/internal/events"
	"github.com/phrazzld/docstream/internal/generation"
	"github.com/phrazzld/docstream/internal/platform/logger"
	"github.com/phrazzld/docstream/internal/redact"
	"github.com/phrazzld/docstream/internal/service/analysis"
	"github.com/phrazzld/docstream/internal/store"
	"github.com/phrazzld/docstream/internal/task"
)

// TaskRunner executes one analysis task and streams its events to sink.
type TaskRunner interface {
	Run(ctx context.Context, t *task.Task, req analysis.Request, sink events.Sink) error
}

// CredentialStatus reports whether an external service has a configured key.
type CredentialStatus interface {
	Configured() bool
}

// ParserStatus adds a masked key preview for the status endpoint.
type ParserStatus interface {
	CredentialStatus
	KeyPreview() string
}

// AnalysisHandlerDeps are the collaborators of AnalysisHandler. Analyzer may be nil.
type AnalysisHandlerDeps struct {
	Registry  *task.Registry
	Runner    TaskRunner
	Parser    ParserStatus
	Analyzer  CredentialStatus
	Artifacts store.ArtifactStore
	// Images describes single artifacts on request; nil disables the endpoint.
	Images generation.ImageAnalyzerSource
	// MaxFileBytes bounds uploads; zero disables the check.
	MaxFileBytes int64
	// ParserBaseURL is reported by the status endpoint.
	ParserBaseURL string
	// StreamWriteTimeout bounds each progress event write; zero disables it.
	StreamWriteTimeout time.Duration
}

// AnalysisHandler serves the document analysis endpoints.
type AnalysisHandler struct {
	deps AnalysisHandlerDeps
}

// NewAnalysisHandler creates an AnalysisHandler.
func NewAnalysisHandler(deps AnalysisHandlerDeps) *AnalysisHandler {
	return &AnalysisHandler{deps: deps}
}

// admit validates the request and creates its task. On failure the error
// response has been written and ok is false.
func (h *AnalysisHandler) admit(w http.ResponseWriter, r *http.Request) (*task.Task, analysis.Request, bool) {
	req, err := parseAnalysisRequest(w, r, h.deps.MaxFileBytes)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return nil, analysis.Request{}, false
	}

	if req.ParserKey == "" && !h.deps.Parser.Configured() {
		HandleAPIError(w, r, fmt.Errorf("%w: no MinerU API key", domain.ErrNotConfigured), "")
		return nil, analysis.Request{}, false
	}

	t, err := h.deps.Registry.Create()
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create analysis task")
		return nil, analysis.Request{}, false
	}
	return t, req, true
}

// AnalyzeStream handles POST /analyze/stream. Progress is streamed as
// server-sent events until a terminal event or cancellation.
func (h *AnalysisHandler) AnalyzeStream(w http.ResponseWriter, r *http.Request) {
	t, req, ok := h.admit(w, r)
	if !ok {
		return
	}
	log := logger.FromContext(r.Context()).With("task_id", t.ID())

	sink, err := startSSE(w, t.ID(), h.deps.StreamWriteTimeout)
	if err != nil {
		log.Error("cannot stream analysis", "error", err)
		h.deps.Registry.Cancel(t.ID())
		h.deps.Registry.Remove(t.ID())
		return
	}

	err = h.deps.Runner.Run(r.Context(), t, req, sink)
	switch {
	case err == nil:
		log.Debug("analysis stream finished")
	case errors.Is(err, context.Canceled):
		log.Info("analysis stream cancelled")
	default:
		log.Info("analysis stream ended with error", "code", domain.ErrorCode(err), "error", redact.Error(err))
	}
}

// Analyze handles POST /analyze, running the same pipeline and returning the
// final payload as one JSON response.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	t, req, ok := h.admit(w, r)
	if !ok {
		return
	}
	w.Header().Set(HeaderTaskID, t.ID())

	rec := events.NewRecorder()
	if err := h.deps.Runner.Run(r.Context(), t, req, rec); err != nil {
		if r.Context().Err() != nil {
			// Client is gone; nobody reads the response.
			return
		}
		HandleAPIError(w, r, err, "Document analysis failed")
		return
	}

	last := rec.Last()
	if last == nil || last.Status != domain.StatusComplete {
		HandleAPIError(w, r, errors.New("analysis finished without a result"), "Document analysis failed")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, last.Data)
}

// CancelTask handles POST /cancel/{taskID}.
func (h *AnalysisHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "taskID"))
	if h.deps.Registry.Cancel(id) {
		shared.RespondWithJSON(w, r, http.StatusOK, CancelResponse{Success: true, Message: "Task cancelled"})
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CancelResponse{
		Success: false,
		Message: "Task not found or already finished",
	})
}

// GetTask handles GET /task/{taskID}.
func (h *AnalysisHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.Registry.Get(chi.URLParam(r, "taskID"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	snap := t.Snapshot()
	shared.RespondWithJSON(w, r, http.StatusOK, TaskResponse{
		ID:       snap.ID,
		Status:   snap.Status.String(),
		Progress: snap.Progress,
		Message:  snap.Message,
		Error:    snap.Error,
	})
}

// GetImage handles GET /image/{imageID}, serving the raw artifact bytes.
func (h *AnalysisHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	artifact, err := h.deps.Artifacts.Get(chi.URLParam(r, "imageID"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if len(artifact.Data) == 0 {
		HandleAPIError(w, r, fmt.Errorf("%w: no image data", domain.ErrArtifactNotFound), "")
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType())
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Data); err != nil {
		logger.FromContext(r.Context()).Debug("image write failed", "error", err)
	}
}

// AnalyzeImage handles POST /analyze-image/{imageID}. The artifact is sent
// to the multimodal model and the description is stored on it, so later
// reads of the artifact carry it.
func (h *AnalysisHandler) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "imageID")
	log := logger.FromContext(r.Context()).With("image_id", id)

	if h.deps.Images == nil {
		HandleAPIError(w, r, fmt.Errorf("%w: image analysis disabled", generation.ErrInvalidConfig), "")
		return
	}

	artifact, err := h.deps.Artifacts.Get(id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if len(artifact.Data) == 0 {
		HandleAPIError(w, r, fmt.Errorf("%w: no image data", domain.ErrArtifactNotFound), "")
		return
	}

	analyzer, err := h.deps.Images.ImageAnalyzer(r.Context(), shared.Header(r, HeaderAnalyzerKey))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := analyzer.AnalyzeImage(r.Context(), artifact.Data, artifact.ContentType())
	if err != nil {
		log.Warn("image analysis failed", "error", redact.Error(err))
		HandleAPIError(w, r, err, "Image analysis failed")
		return
	}

	if _, err := h.deps.Artifacts.Update(id, result.Apply); err != nil {
		// Evicted or removed with its task meanwhile; the description is still valid.
		log.Debug("image analysis not stored", "error", err)
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ImageAnalysisResponse{
		Success:  true,
		ImageID:  id,
		Filename: artifact.Filename,
		Analysis: *result,
	})
}

// Status handles GET /status.
func (h *AnalysisHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := ServiceStatusResponse{
		Configured:         h.deps.Parser.Configured(),
		AnalyzerConfigured: h.deps.Analyzer != nil && h.deps.Analyzer.Configured(),
	}
	if resp.Configured {
		resp.APIBase = h.deps.ParserBaseURL
		resp.KeyPreview = h.deps.Parser.KeyPreview()
		resp.Message = "MinerU API key configured"
	} else {
		resp.Message = "MinerU API key not configured; send it in the " + HeaderParserKey + " header"
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Health handles GET /health.
func (h *AnalysisHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:           "healthy",
		Service:          "pdf-analyzer",
		ParserConfigured: h.deps.Parser.Configured(),
		ActiveTasks:      h.deps.Registry.ActiveCount(),
	})
}

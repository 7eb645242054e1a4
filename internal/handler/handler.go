// Package handler exposes the study tutor as a JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pkarpov/studytutor/internal/httpx"
	appI18n "github.com/pkarpov/studytutor/internal/i18n"
	"github.com/pkarpov/studytutor/internal/llm"
	"github.com/pkarpov/studytutor/internal/model"
	"github.com/pkarpov/studytutor/internal/tutor"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc       *tutor.Service
	maxUpload int64
}

// New creates a new Handler.
func New(svc *tutor.Service, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = tutor.DefaultMaxMaterialBytes
	}
	return &Handler{svc: svc, maxUpload: maxUpload}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(api chi.Router) {
		api.Post("/material", h.handleUploadMaterial)
		api.Get("/material", h.handleGetMaterial)
		api.Delete("/material", h.handleClearMaterial)
		api.Post("/challenge", h.handleStartChallenge)
		api.Get("/challenge", h.handleGetChallenge)
		api.Post("/challenge/answers", h.handleRecordAnswer)
		api.Post("/challenge/submit", h.handleSubmit)
		api.Post("/challenge/discard", h.handleDiscard)
		api.Get("/transcript", h.handleTranscript)
	})
	r.Get("/healthz", h.handleHealth)
}

func (h *Handler) handleUploadMaterial(w http.ResponseWriter, r *http.Request) {
	// One extra byte so an at-limit file still parses and oversize is
	// reported by the validator, not as a broken form.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+64<<10)

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, appI18n.T(r.Context(), "error.bad_request"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, appI18n.T(r.Context(), "error.bad_request"))
		return
	}

	declared := header.Header.Get("Content-Type")
	if declared == "" || declared == "application/octet-stream" {
		declared = mime.TypeByExtension(filepath.Ext(header.Filename))
	}

	m, err := h.svc.UploadMaterial(header.Filename, declared, data)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, materialView(m))
}

func (h *Handler) handleGetMaterial(w http.ResponseWriter, r *http.Request) {
	m := h.svc.Material()
	if m == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"material": nil})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"material": materialView(m)})
}

func (h *Handler) handleClearMaterial(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearMaterial()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": appI18n.T(r.Context(), "status.material_removed"),
	})
}

func (h *Handler) handleStartChallenge(w http.ResponseWriter, r *http.Request) {
	var spec model.ChallengeSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		h.writeError(w, r, http.StatusBadRequest, appI18n.T(r.Context(), "error.bad_request"))
		return
	}
	if !validKind(spec.Kind) {
		h.writeError(w, r, http.StatusBadRequest, appI18n.T(r.Context(), "error.bad_request"))
		return
	}

	outcome, err := h.svc.StartChallenge(r.Context(), spec)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if outcome.Session != nil {
		h.writeJSON(w, http.StatusCreated, map[string]any{"session": sessionView(outcome.Session)})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"text": outcome.Text})
}

func (h *Handler) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	sess := h.svc.Session()
	if sess == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"session": nil})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"session": sessionView(sess)})
}

type answerRequest struct {
	Index *int    `json:"index,omitempty"`
	Label *string `json:"label,omitempty"`
	Text  *string `json:"text,omitempty"`
}

func (h *Handler) handleRecordAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, appI18n.T(r.Context(), "error.bad_request"))
		return
	}

	var err error
	switch {
	case req.Text != nil:
		err = h.svc.RecordResponse(*req.Text)
	case req.Index != nil && req.Label != nil:
		err = h.svc.RecordAnswer(*req.Index, *req.Label)
	default:
		h.writeError(w, r, http.StatusBadRequest, appI18n.T(r.Context(), "error.bad_request"))
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"session": sessionView(h.svc.Session())})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Submit(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := map[string]any{"result": result}
	if result.TotalCount > 0 {
		resp["message"] = appI18n.Td(r.Context(), "status.graded", map[string]any{
			"Correct": result.CorrectCount,
			"Total":   result.TotalCount,
			"Percent": result.Percentage,
		})
		resp["passed"] = result.Passed()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	h.svc.Discard()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": appI18n.T(r.Context(), "status.challenge_discarded"),
	})
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"entries": h.svc.Transcript()})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
}

func validKind(k model.ChallengeKind) bool {
	switch k {
	case model.KindMultipleChoice, model.KindOpenResponse, model.KindSummary,
		model.KindKeyPoints, model.KindAnalogy, model.KindQuestion:
		return true
	}
	return false
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.writeJSON(w, status, map[string]any{"error": message})
}

// writeServiceError maps core errors onto HTTP statuses and localized
// messages.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var incomplete *tutor.IncompleteSubmissionError
	var malformed *llm.MalformedOutputError
	var exhausted *httpx.RetriesExhaustedError
	var transport *httpx.TransportError

	switch {
	case errors.As(err, &incomplete):
		if incomplete.Unanswered > 0 {
			h.writeError(w, r, http.StatusUnprocessableEntity,
				appI18n.Tp(ctx, "error.incomplete_mc", incomplete.Unanswered))
		} else {
			h.writeError(w, r, http.StatusUnprocessableEntity, appI18n.T(ctx, "error.incomplete_open"))
		}
	case errors.Is(err, tutor.ErrMaterialTooLarge):
		h.writeError(w, r, http.StatusRequestEntityTooLarge, appI18n.T(ctx, "error.material_too_large"))
	case errors.Is(err, tutor.ErrUnsupportedMaterial):
		h.writeError(w, r, http.StatusUnsupportedMediaType, appI18n.T(ctx, "error.material_unsupported"))
	case errors.Is(err, tutor.ErrMaterialMismatch):
		h.writeError(w, r, http.StatusUnsupportedMediaType, appI18n.T(ctx, "error.material_mismatch"))
	case errors.Is(err, tutor.ErrNoActiveSession):
		h.writeError(w, r, http.StatusConflict, appI18n.T(ctx, "error.no_active_session"))
	case errors.Is(err, tutor.ErrSessionClosed):
		h.writeError(w, r, http.StatusConflict, appI18n.T(ctx, "error.session_closed"))
	case errors.Is(err, tutor.ErrNoSuchQuestion):
		h.writeError(w, r, http.StatusBadRequest, appI18n.T(ctx, "error.bad_request"))
	case errors.Is(err, llm.ErrMaterialNotReady):
		h.writeError(w, r, http.StatusConflict, appI18n.T(ctx, "error.material_not_ready"))
	case errors.As(err, &exhausted):
		h.generationFailed(w, r, http.StatusServiceUnavailable, err)
	case errors.As(err, &malformed), errors.As(err, &transport), errors.Is(err, llm.ErrEmptyResponse):
		h.generationFailed(w, r, http.StatusBadGateway, err)
	default:
		slog.Error("unhandled service error", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, appI18n.T(ctx, "error.internal"))
	}
}

func (h *Handler) generationFailed(w http.ResponseWriter, r *http.Request, status int, err error) {
	slog.Error("generation call failed", "error", err)
	h.writeError(w, r, status, appI18n.Td(r.Context(), "error.generation_failed",
		map[string]any{"Message": err.Error()}))
}

func materialView(m *model.Material) map[string]any {
	return map[string]any{
		"id":         m.ID,
		"name":       m.Name,
		"mime_type":  m.MIMEType,
		"size_bytes": m.SizeBytes,
	}
}

func sessionView(s *tutor.Session) map[string]any {
	if s == nil {
		return nil
	}
	v := map[string]any{
		"id":         s.ID,
		"kind":       s.Kind,
		"status":     s.Status,
		"created_at": s.CreatedAt,
	}
	if s.Title != "" {
		v["title"] = s.Title
	}
	if len(s.Questions) > 0 {
		v["questions"] = questionViews(s)
		v["answers"] = s.Answers()
		v["unanswered"] = s.Unanswered()
	}
	if s.ChallengeText != "" {
		v["challenge_text"] = s.ChallengeText
		v["response"] = s.Response()
	}
	if s.Result != nil {
		v["result"] = s.Result
	}
	return v
}

// questionViews serializes the session's questions. The answer key is
// withheld until the session is graded.
func questionViews(s *tutor.Session) []map[string]any {
	out := make([]map[string]any, len(s.Questions))
	for i, q := range s.Questions {
		qv := map[string]any{
			"text":    q.Text,
			"options": q.Options,
		}
		if s.Status == model.StatusGraded {
			qv["correct_label"] = q.CorrectLabel
		}
		out[i] = qv
	}
	return out
}

package mood

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/middleware"
	"github.com/pulse-ai/pulse/internal/model/mood"
	moodservice "github.com/pulse-ai/pulse/internal/service/mood"
	"github.com/pulse-ai/pulse/internal/store"
	"github.com/pulse-ai/pulse/pkg/utils"
)

const (
	maxUploadBytes = 25 << 20
	defaultLimit   = 20
	maxLimit       = 200
)

// Handler serves mood snapshot routes.
type Handler struct {
	moodSvc *moodservice.Service
	logger  *zap.Logger
}

// New creates a mood handler.
func New(moodSvc *moodservice.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{moodSvc: moodSvc, logger: logger.Named("mood-handler")}
}

// RegisterRoutes mounts the authenticated /api routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/mood", h.handleSubmit)
	r.Get("/mood", h.handleHistory)
	r.Get("/mood/{id}/transcription", h.handleGetTranscript)
}

// RegisterHistoryRoutes mounts the authenticated root-level history and insight routes.
func (h *Handler) RegisterHistoryRoutes(r chi.Router) {
	r.Get("/mood/history", h.handleHistory)
	r.Post("/mood/insight", h.handleInsight)
}

// RegisterCallbackRoutes mounts routes called by the transcription worker.
func (h *Handler) RegisterCallbackRoutes(r chi.Router) {
	r.Post("/mood/{id}/transcription", h.handleAttachTranscript)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized user")
		return
	}

	var sub moodservice.Submission
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var payload struct {
			Source  string `json:"source"`
			RawText string `json:"raw_text"`
		}
		if err := utils.DecodeJSON(r, &payload); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if payload.Source != "" && payload.Source != mood.SourceText {
			utils.RespondError(w, http.StatusBadRequest, "json submissions must use source \"text\"; upload media as multipart")
			return
		}
		sub.Text = payload.RawText
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			utils.RespondError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		sub.Text = r.FormValue("text")

		file, header, err := r.FormFile("file")
		switch {
		case err == nil:
			defer file.Close()
			sub.Media = file
			sub.MediaName = header.Filename
			sub.MediaType = header.Header.Get("Content-Type")
			sub.MediaSize = header.Size
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		default:
			utils.RespondError(w, http.StatusBadRequest, "invalid file upload")
			return
		}
	}

	result, err := h.moodSvc.Submit(r.Context(), identity.ID, sub)
	if err != nil {
		switch {
		case errors.Is(err, moodservice.ErrEmptySubmission):
			utils.RespondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, moodservice.ErrUnsupportedMedia):
			utils.RespondError(w, http.StatusUnsupportedMediaType, err.Error())
		default:
			h.logger.Error("submit mood", zap.Error(err))
			utils.RespondError(w, http.StatusInternalServerError, "failed to process mood")
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized user")
		return
	}

	limit, err := utils.ParseLimit(r.URL.Query().Get("limit"), defaultLimit, maxLimit)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshots, err := h.moodSvc.History(r.Context(), identity.ID, limit)
	if err != nil {
		h.logger.Error("mood history", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to fetch mood history")
		return
	}
	utils.RespondJSON(w, http.StatusOK, snapshots)
}

func (h *Handler) handleInsight(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized user")
		return
	}

	var payload struct {
		Moods []mood.Snapshot `json:"moods"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	insight, err := h.moodSvc.Insight(r.Context(), identity.ID, payload.Moods)
	if err != nil {
		h.logger.Error("mood insight", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to generate insight")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"insight": insight})
}

func (h *Handler) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized user")
		return
	}

	transcript, err := h.moodSvc.Transcript(r.Context(), identity.ID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, moodservice.ErrSnapshotNotFound) || errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "transcription not found")
			return
		}
		h.logger.Error("get transcript", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to load transcription")
		return
	}
	utils.RespondJSON(w, http.StatusOK, transcript)
}

func (h *Handler) handleAttachTranscript(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TranscribedText string `json:"transcribed_text"`
		Engine          string `json:"engine"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snapshotID := chi.URLParam(r, "id")
	err := h.moodSvc.AttachTranscript(r.Context(), "", snapshotID, payload.TranscribedText, payload.Engine)
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": snapshotID})
	case errors.Is(err, moodservice.ErrEmptyTranscript):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, moodservice.ErrSnapshotNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		utils.RespondError(w, http.StatusConflict, "transcription already recorded")
	default:
		h.logger.Error("attach transcript", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to save transcription")
	}
}

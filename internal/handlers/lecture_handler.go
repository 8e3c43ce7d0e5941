package handlers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectern/internal/services/lectures"
	"github.com/ternarybob/lectern/internal/services/transcript"
)

// LectureHandler serves lecture records, transcript upload and ingestion status
type LectureHandler struct {
	lectures  LectureManager
	ingestion IngestionController
	logger    arbor.ILogger
}

func NewLectureHandler(lectures LectureManager, ingestion IngestionController, logger arbor.ILogger) *LectureHandler {
	return &LectureHandler{
		lectures:  lectures,
		ingestion: ingestion,
		logger:    logger,
	}
}

// CreateHandler handles POST /api/lectures
func (h *LectureHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var req lectures.CreateRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	lecture, err := h.lectures.Create(r.Context(), req)
	if err != nil {
		WriteServiceError(w, h.logger, "create lecture", err)
		return
	}
	WriteJSON(w, http.StatusCreated, lecture)
}

// ListHandler handles GET /api/lectures?user_id=
func (h *LectureHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.lectures.List(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		WriteServiceError(w, h.logger, "list lectures", err)
		return
	}

	// Transcripts can be large, the list view only needs metadata
	for _, l := range list {
		l.Transcript = nil
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"lectures": list,
		"count":    len(list),
	})
}

// GetHandler handles GET /api/lectures/{id}
func (h *LectureHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	lecture, err := h.lectures.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, h.logger, "get lecture", err)
		return
	}
	WriteJSON(w, http.StatusOK, lecture)
}

// DeleteHandler handles DELETE /api/lectures/{id}
func (h *LectureHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.ingestion.DeleteLecture(r.Context(), id); err != nil {
		WriteServiceError(w, h.logger, "delete lecture", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadTranscriptHandler handles POST /api/lectures/{id}/transcript.
// The body is JSON unless ?format= (or the content type) says srt, vtt or yaml.
// With ?process=false the transcript is stored without starting ingestion.
func (h *LectureHandler) UploadTranscriptHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	format, err := requestFormat(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("failed to read transcript: %v", err))
		return
	}

	parsed, err := transcript.Parse(data, format)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.URL.Query().Get("process") == "false" {
		lecture, err := h.lectures.SetTranscript(r.Context(), id, parsed)
		if err != nil {
			WriteServiceError(w, h.logger, "store transcript", err)
			return
		}
		WriteJSON(w, http.StatusOK, lecture.Report())
		return
	}

	if err := h.ingestion.IngestAsync(r.Context(), id, parsed); err != nil {
		WriteServiceError(w, h.logger, "ingest", err)
		return
	}

	h.logger.Info().
		Str("lecture_id", id).
		Str("format", string(format)).
		Int("utterances", len(parsed)).
		Msg("Transcript accepted for ingestion")

	h.writeStatus(w, r, id, http.StatusAccepted)
}

// ProcessHandler handles POST /api/lectures/{id}/process
func (h *LectureHandler) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.ingestion.Process(r.Context(), id); err != nil {
		WriteServiceError(w, h.logger, "process", err)
		return
	}
	h.writeStatus(w, r, id, http.StatusAccepted)
}

// ResetHandler handles POST /api/lectures/{id}/reset
func (h *LectureHandler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.ingestion.Reset(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, h.logger, "reset", err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// StatusHandler handles GET /api/lectures/{id}/status
func (h *LectureHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, r, r.PathValue("id"), http.StatusOK)
}

func (h *LectureHandler) writeStatus(w http.ResponseWriter, r *http.Request, id string, code int) {
	report, err := h.ingestion.GetStatus(r.Context(), id)
	if err != nil {
		WriteServiceError(w, h.logger, "status", err)
		return
	}
	if code == http.StatusAccepted {
		WriteAccepted(w, report)
		return
	}
	WriteJSON(w, code, report)
}

// requestFormat picks the transcript format from ?format= or the content type
func requestFormat(r *http.Request) (transcript.Format, error) {
	if name := r.URL.Query().Get("format"); name != "" {
		return transcript.ParseFormat(name)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "text/vtt":
		return transcript.FormatVTT, nil
	case mediaType == "application/x-subrip", mediaType == "text/srt":
		return transcript.FormatSRT, nil
	case strings.Contains(mediaType, "yaml"):
		return transcript.FormatYAML, nil
	default:
		return transcript.FormatJSON, nil
	}
}

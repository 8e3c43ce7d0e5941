package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
)

// ChatHandler serves retrieval, grounded chat and summaries for one lecture
type ChatHandler struct {
	retriever  SpanRetriever
	chat       ChatResponder
	summarizer Summarizer
	defaultK   int
	logger     arbor.ILogger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(
	retriever SpanRetriever,
	chat ChatResponder,
	summarizer Summarizer,
	defaultK int,
	logger arbor.ILogger,
) *ChatHandler {
	if defaultK <= 0 {
		defaultK = 5
	}
	return &ChatHandler{
		retriever:  retriever,
		chat:       chat,
		summarizer: summarizer,
		defaultK:   defaultK,
		logger:     logger,
	}
}

type retrieveRequest struct {
	Query string `json:"query" validate:"required"`
	K     int    `json:"k" validate:"gte=0"`
}

type chatRequest struct {
	Question string `json:"question" validate:"required"`
	UserID   string `json:"user_id"`
}

// RetrieveHandler handles POST /api/lectures/{id}/retrieve
func (h *ChatHandler) RetrieveHandler(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.K == 0 {
		req.K = h.defaultK
	}

	spans, err := h.retriever.Retrieve(r.Context(), r.PathValue("id"), req.Query, req.K)
	if err != nil {
		WriteServiceError(w, h.logger, "retrieve", err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"spans": spans,
		"count": len(spans),
	})
}

// AskHandler handles POST /api/lectures/{id}/chat
func (h *ChatHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	h.logger.Info().
		Str("lecture_id", id).
		Int("question_length", len(req.Question)).
		Msg("Processing chat request")

	answer, err := h.chat.Answer(r.Context(), id, req.UserID, req.Question)
	if err != nil {
		WriteServiceError(w, h.logger, "answer", err)
		return
	}
	WriteJSON(w, http.StatusOK, answer)
}

// HistoryHandler handles GET /api/lectures/{id}/chat
func (h *ChatHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	turns, err := h.chat.History(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, h.logger, "history", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"turns": turns,
		"count": len(turns),
	})
}

// DeleteTurnHandler handles DELETE /api/lectures/{id}/chat/{turnID}
func (h *ChatHandler) DeleteTurnHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.DeleteTurn(r.Context(), r.PathValue("id"), r.PathValue("turnID")); err != nil {
		WriteServiceError(w, h.logger, "delete turn", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SummaryHandler handles POST /api/lectures/{id}/summary
func (h *ChatHandler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	summary, err := h.summarizer.Summarize(r.Context(), id)
	if err != nil {
		WriteServiceError(w, h.logger, "summarize", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"lecture_id": id,
		"summary":    summary,
	})
}

package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	lh := s.app.LectureHandler
	ch := s.app.ChatHandler

	// WebSocket route
	mux.HandleFunc("GET /ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Lectures
	mux.HandleFunc("POST /api/lectures", lh.CreateHandler)
	mux.HandleFunc("GET /api/lectures", lh.ListHandler)
	mux.HandleFunc("GET /api/lectures/{id}", lh.GetHandler)
	mux.HandleFunc("DELETE /api/lectures/{id}", lh.DeleteHandler)

	// API routes - Ingestion
	mux.HandleFunc("POST /api/lectures/{id}/transcript", lh.UploadTranscriptHandler)
	mux.HandleFunc("POST /api/lectures/{id}/process", lh.ProcessHandler)
	mux.HandleFunc("POST /api/lectures/{id}/reset", lh.ResetHandler)
	mux.HandleFunc("GET /api/lectures/{id}/status", lh.StatusHandler)

	// API routes - Retrieval, chat and summary
	mux.HandleFunc("POST /api/lectures/{id}/retrieve", ch.RetrieveHandler)
	mux.HandleFunc("POST /api/lectures/{id}/chat", ch.AskHandler)
	mux.HandleFunc("GET /api/lectures/{id}/chat", ch.HistoryHandler)
	mux.HandleFunc("DELETE /api/lectures/{id}/chat/{turnID}", ch.DeleteTurnHandler)
	mux.HandleFunc("POST /api/lectures/{id}/summary", ch.SummaryHandler)

	// API routes - System
	mux.HandleFunc("GET /api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("GET /api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

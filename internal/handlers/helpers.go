package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectern/internal/models"
	"github.com/ternarybob/lectern/internal/services/lectures"
)

// StatusClientClosedRequest is the non-standard status used when the caller went away
const StatusClientClosedRequest = 499

// maxBodyBytes caps request bodies, transcripts included
const maxBodyBytes = 32 << 20

var validate = validator.New()

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteAccepted reports the status of a lecture whose ingestion was accepted.
func WriteAccepted(w http.ResponseWriter, report models.StatusReport) error {
	return WriteJSON(w, http.StatusAccepted, report)
}

// StatusFor maps a service error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrLectureNotFound), errors.Is(err, models.ErrTurnNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrEmptyInput), errors.Is(err, lectures.ErrInvalidLecture):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrConcurrentIngestion),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, models.ErrCapabilityUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrRequestAborted):
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError logs err and writes it with the mapped status code.
// Internal errors are not echoed back to the client.
func WriteServiceError(w http.ResponseWriter, logger arbor.ILogger, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("op", op).Int("status", status).Msg("Request failed")
	} else {
		logger.Debug().Err(err).Str("op", op).Int("status", status).Msg("Request rejected")
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	WriteError(w, status, message)
}

// DecodeJSON reads a JSON body into dst and validates its struct tags.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is required")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

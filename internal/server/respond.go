package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/samratjha96/kitchen-lens/internal/fridge"
	"github.com/samratjha96/kitchen-lens/internal/llm"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error      string             `json:"error"`
	Violations []fridge.Violation `json:"violations,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Int("status", status).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondModelError maps the adapter error kinds to HTTP statuses.
func respondModelError(w http.ResponseWriter, err error) {
	var (
		configErr    *llm.ConfigurationError
		transportErr *llm.TransportError
		parseErr     *llm.ParseError
		schemaErr    *llm.SchemaValidationError
	)

	switch {
	case errors.As(err, &schemaErr):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:      "model response did not match the inventory schema",
			Violations: schemaErr.Violations,
		})
	case errors.As(err, &parseErr):
		respondError(w, http.StatusUnprocessableEntity, "model response was not valid JSON")
	case errors.As(err, &transportErr):
		switch {
		case transportErr.Timeout:
			respondError(w, http.StatusGatewayTimeout, "model request timed out")
		case transportErr.IsAuth():
			log.Error().Err(err).Msg("model provider rejected the API key")
			respondError(w, http.StatusBadGateway, "model provider rejected the credentials")
		default:
			respondError(w, http.StatusBadGateway, "model request failed")
		}
	case errors.As(err, &configErr):
		log.Error().Err(err).Msg("model adapter is misconfigured")
		respondError(w, http.StatusInternalServerError, "model is not configured")
	case errors.Is(err, llm.ErrNoImage):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		log.Error().Err(err).Msg("unexpected model error")
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondStoreError answers a failed store write. Analyses the store refuses
// to persist are the caller's problem, anything else is ours.
func respondStoreError(w http.ResponseWriter, err error, message string) {
	var schemaErr *fridge.SchemaValidationError
	if errors.As(err, &schemaErr) {
		log.Warn().Err(err).Msg("refused to store analysis")
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:      "analysis cannot be stored",
			Violations: schemaErr.Violations,
		})
		return
	}
	log.Error().Err(err).Msg(message)
	respondError(w, http.StatusInternalServerError, message)
}

// decodeJSON reads a request body into dst. It reports the status to answer
// with when the body is unusable.
func decodeJSON(r *http.Request, dst any) (int, error) {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, errors.New("request body too large")
		}
		return http.StatusBadRequest, errors.New("invalid JSON body")
	}
	return 0, nil
}

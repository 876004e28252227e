package server

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/samratjha96/kitchen-lens/internal/fridge"
	"github.com/samratjha96/kitchen-lens/internal/llm"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the HTTP surface.
type Options struct {
	FrontendURLs   []string
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// Server exposes the extraction adapter and the analysis store over HTTP.
type Server struct {
	store     *fridge.Store
	extractor llm.Extractor
	generator llm.TextGenerator
	health    Pinger
	opts      Options
}

// New creates a server. generator and health may be nil.
func New(store *fridge.Store, extractor llm.Extractor, generator llm.TextGenerator, health Pinger, opts Options) *Server {
	return &Server{
		store:     store,
		extractor: extractor,
		generator: generator,
		health:    health,
		opts:      opts,
	}
}

// maxBodyBytes allows for base64 expansion of an image of MaxUploadBytes
// plus the surrounding JSON.
func (s *Server) maxBodyBytes() int64 {
	if s.opts.MaxUploadBytes <= 0 {
		return math.MaxInt64
	}
	return s.opts.MaxUploadBytes/3*4 + 8<<10
}

// Handler returns the routed and wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(MaxRequestSize(s.maxBodyBytes()))
	api.Use(Timeout(s.opts.RequestTimeout))
	api.HandleFunc("/analyze-fridge", s.handleAnalyze).Methods(http.MethodPost)
	api.HandleFunc("/analysis", s.handleGetAnalysis).Methods(http.MethodGet)
	api.HandleFunc("/analysis", s.handleClearAnalysis).Methods(http.MethodDelete)
	api.HandleFunc("/analysis/items/{index}", s.handleUpdateQuantity).Methods(http.MethodPatch)
	api.HandleFunc("/gemini", s.handleGenerate).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	var h http.Handler = r
	h = CORS(s.opts.FrontendURLs)(h)
	h = Logging(h)
	h = Recover(h)
	return h
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if status, err := decodeJSON(r, &req); err != nil {
		respondError(w, status, err.Error())
		return
	}
	if violations := validateRequest(&req); len(violations) > 0 {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request", Violations: violations})
		return
	}

	image, mimeType, err := decodeImage(req.Image, req.MimeType)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.opts.MaxUploadBytes > 0 && int64(len(image)) > s.opts.MaxUploadBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "image too large")
		return
	}

	result, err := s.extractor.Extract(r.Context(), image, mimeType)
	if err != nil {
		respondModelError(w, err)
		return
	}

	if err := s.store.Save(r.Context(), result.Analysis); err != nil {
		respondStoreError(w, err, "failed to save analysis")
		return
	}

	log.Info().
		Int("itemCount", result.Analysis.Len()).
		Float64("totalCalories", result.Analysis.TotalCalories()).
		Float64("totalValue", result.Analysis.TotalValue()).
		Bool("cached", result.Cached).
		Msg("fridge analyzed")

	respondJSON(w, http.StatusOK, AnalyzeResponse{
		Analysis: result.Analysis,
		Usage:    result.Usage,
		Cached:   result.Cached,
	})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis := s.store.Load(r.Context())
	if analysis == nil {
		respondError(w, http.StatusNotFound, "no analysis stored")
		return
	}
	respondJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleClearAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		log.Error().Err(err).Msg("failed to clear analysis")
		respondError(w, http.StatusInternalServerError, "failed to clear analysis")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "item index must be an integer")
		return
	}

	var req updateQuantityRequest
	if status, err := decodeJSON(r, &req); err != nil {
		respondError(w, status, err.Error())
		return
	}
	if violations := validateRequest(&req); len(violations) > 0 {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request", Violations: violations})
		return
	}

	analysis, err := s.store.UpdateQuantity(r.Context(), index, *req.Quantity)
	switch {
	case errors.Is(err, fridge.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		respondStoreError(w, err, "failed to update quantity")
		return
	case analysis == nil:
		respondError(w, http.StatusNotFound, "no analysis stored")
		return
	}
	respondJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		respondError(w, http.StatusNotImplemented, "text generation is not available")
		return
	}

	var req generateRequest
	if status, err := decodeJSON(r, &req); err != nil {
		respondError(w, status, err.Error())
		return
	}
	if violations := validateRequest(&req); len(violations) > 0 {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request", Violations: violations})
		return
	}

	var image []byte
	mimeType := req.MimeType
	if req.Image != "" {
		var err error
		image, mimeType, err = decodeImage(req.Image, req.MimeType)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	text, err := s.generator.GenerateText(r.Context(), req.Prompt, image, mimeType)
	if err != nil {
		respondModelError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, GenerateResponse{Text: text})
}

// HealthResponse is the body of the health check.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.health.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("store health check failed")
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Store: "unreachable"})
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Store: "ok"})
}

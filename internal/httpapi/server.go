// Package httpapi is a thin, optional HTTP surface over analyzer.Analyzer:
// POST /analyze and GET /stats/{user_id}. Routing, CORS, and metrics
// middleware are the caller's responsibility — this package only maps
// requests onto the Analyzer and serializes its results. Grounded on the
// host's internal/httpapi handler/response-helper shape.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"diarynlp/internal/analyzer"
)

// Server exposes the analysis pipeline over HTTP.
type Server struct {
	analyzer *analyzer.Analyzer
	log      zerolog.Logger
}

// New builds a Server around an Analyzer.
func New(a *analyzer.Analyzer, log zerolog.Logger) *Server {
	return &Server{analyzer: a, log: log}
}

// Routes registers this server's handlers onto mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /stats/{user_id}", s.handleStats)
}

type analyzeRequest struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
	Date   string `json:"date,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFor(r)
	w.Header().Set("X-Request-ID", requestID)
	log := s.log.With().Str("request_id", requestID).Logger()

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if req.UserID <= 0 {
		respondError(w, http.StatusUnprocessableEntity, errors.New("user_id must be > 0"))
		return
	}
	if n := utf8.RuneCountInString(req.Text); n == 0 || n > 10000 {
		respondError(w, http.StatusUnprocessableEntity, errors.New("text must be 1..10000 characters"))
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), req.UserID, req.Text, req.Date)
	if err != nil {
		log.Error().Err(err).Int64("user_id", req.UserID).Msg("httpapi: analyze failed")
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// requestIDFor returns the caller-supplied X-Request-ID, or mints a fresh
// UUID when absent, so every request can be correlated across log lines.
func requestIDFor(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		respondError(w, http.StatusUnprocessableEntity, errors.New("user_id must be a positive integer"))
		return
	}

	stats, err := s.analyzer.UserStats(r.Context(), userID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("httpapi: stats failed")
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

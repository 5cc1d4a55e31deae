package server

import (
	"blogsmith/internal/app"
	"blogsmith/internal/ledger"
	"blogsmith/internal/logger"
	"blogsmith/internal/orchestrator"
	"blogsmith/internal/render"
	"blogsmith/internal/similarity"
	"blogsmith/internal/visual"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// HealthResponse is the /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks"`
}

// LedgerResponse lists the entries of one ledger.
type LedgerResponse struct {
	Kind              string   `json:"kind"`
	Entries           []string `json:"entries"`
	PreventDuplicates bool     `json:"prevent_duplicates"`
}

// CheckResponse reports how a candidate compares with a ledger.
type CheckResponse struct {
	Text      string  `json:"text"`
	Duplicate bool    `json:"duplicate"`
	Closest   string  `json:"closest,omitempty"`
	Ratio     float64 `json:"ratio"`
}

// SimilarityResponse is the /api/similarity body.
type SimilarityResponse struct {
	A         string  `json:"a"`
	B         string  `json:"b"`
	Ratio     float64 `json:"ratio"`
	Threshold float64 `json:"threshold"`
	Duplicate bool    `json:"duplicate"`
}

// DuplicatesSetting is the duplicate-prevention setting.
type DuplicatesSetting struct {
	PreventDuplicates bool `json:"prevent_duplicates"`
	Cleared           bool `json:"cleared,omitempty"`
}

// CredentialStatus describes one stored API key without revealing it.
type CredentialStatus struct {
	Provider string `json:"provider"`
	Masked   string `json:"masked"`
	Source   string `json:"source"`
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"store": "ok"}
	status, code := "ok", http.StatusOK

	if _, err := s.app.Stats(); err != nil {
		checks["store"] = "error"
		status, code = "degraded", http.StatusServiceUnavailable
	}
	if s.app.Backend != nil {
		checks["backend"] = "ok"
		if err := s.app.Backend.Ping(r.Context()); err != nil {
			checks["backend"] = "error"
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	s.respondJSON(w, code, HealthResponse{
		Status: status,
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
		Checks: checks,
	})
}

// handleSession handles GET /api/session
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.app.Orchestrator.Session())
}

// handleGenerate handles POST /api/generate. The run continues after the
// response; poll /api/session for progress.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := s.app.Orchestrator.Start(r.Context(), req)
	if err != nil {
		s.respondOrchestratorError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, session)
}

// handleStop handles POST /api/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	stopped := s.app.Orchestrator.Stop()
	s.respondJSON(w, http.StatusOK, map[string]bool{"stopped": stopped})
}

// handleReset handles POST /api/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	removed := s.app.Reset()
	s.respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// handleArticlePage handles GET /api/article and returns the article as a
// standalone HTML page.
func (s *Server) handleArticlePage(w http.ResponseWriter, r *http.Request) {
	session := s.app.Orchestrator.Session()
	if session.Article == nil {
		s.respondError(w, http.StatusNotFound, "no article has been generated")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, render.HTMLDocument(session.Article, session.Image)); err != nil {
		logger.Warn("Failed to write article page", "error", err.Error())
	}
}

// handleSimilarity handles GET /api/similarity?a=&b=
func (s *Server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	a, b := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	threshold := s.threshold()
	ratio := similarity.Ratio(a, b)
	s.respondJSON(w, http.StatusOK, SimilarityResponse{
		A:         a,
		B:         b,
		Ratio:     ratio,
		Threshold: threshold,
		Duplicate: ratio >= threshold,
	})
}

func (s *Server) threshold() float64 {
	if t := s.app.Config.Generation.SimilarityThreshold; t > 0 {
		return t
	}
	return similarity.DefaultThreshold
}

// ledgerFor resolves the {kind} URL parameter.
func (s *Server) ledgerFor(r *http.Request) (*ledger.Ledger, string, bool) {
	switch kind := chi.URLParam(r, "kind"); kind {
	case "topics":
		return s.app.Topics, kind, true
	case "keywords":
		return s.app.Keywords, kind, true
	default:
		return nil, kind, false
	}
}

// handleLedger handles GET /api/ledger/{kind}
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	l, kind, ok := s.ledgerFor(r)
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown ledger "+kind)
		return
	}
	s.respondJSON(w, http.StatusOK, LedgerResponse{
		Kind:              kind,
		Entries:           l.Entries(),
		PreventDuplicates: s.app.Policy.PreventDuplicates(),
	})
}

// handleClearLedger handles DELETE /api/ledger/{kind}
func (s *Server) handleClearLedger(w http.ResponseWriter, r *http.Request) {
	l, kind, ok := s.ledgerFor(r)
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown ledger "+kind)
		return
	}
	l.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// handleCheckLedger handles GET /api/ledger/{kind}/check?text=
func (s *Server) handleCheckLedger(w http.ResponseWriter, r *http.Request) {
	l, kind, ok := s.ledgerFor(r)
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown ledger "+kind)
		return
	}
	text := strings.TrimSpace(r.URL.Query().Get("text"))
	if text == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	closest, ratio := l.Match(text)
	s.respondJSON(w, http.StatusOK, CheckResponse{
		Text:      text,
		Duplicate: l.IsDuplicate(text),
		Closest:   closest,
		Ratio:     ratio,
	})
}

// handleGetDuplicates handles GET /api/settings/duplicates
func (s *Server) handleGetDuplicates(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, DuplicatesSetting{PreventDuplicates: s.app.Policy.PreventDuplicates()})
}

// handleSetDuplicates handles PUT /api/settings/duplicates
func (s *Server) handleSetDuplicates(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PreventDuplicates *bool `json:"prevent_duplicates"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.PreventDuplicates == nil {
		s.respondError(w, http.StatusBadRequest, "prevent_duplicates is required")
		return
	}
	cleared := s.app.SetPreventDuplicates(r.Context(), *body.PreventDuplicates)
	s.respondJSON(w, http.StatusOK, DuplicatesSetting{PreventDuplicates: *body.PreventDuplicates, Cleared: cleared})
}

// handleListCredentials handles GET /api/credentials
func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	out := []CredentialStatus{}
	for _, p := range app.Providers() {
		key, source := s.app.Credentials.Get(p)
		out = append(out, CredentialStatus{Provider: p, Masked: app.Mask(key), Source: source})
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleSetCredential handles PUT /api/credentials/{provider}
func (s *Server) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.app.Credentials.Set(provider, body.APIKey); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, app.ErrUnknownProvider) {
			status = http.StatusNotFound
		}
		s.respondError(w, status, err.Error())
		return
	}

	key, source := s.app.Credentials.Get(provider)
	s.respondJSON(w, http.StatusOK, CredentialStatus{Provider: provider, Masked: app.Mask(key), Source: source})
}

// handleGenerateTopics handles POST /api/topics
func (s *Server) handleGenerateTopics(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Keyword string `json:"keyword"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	candidates, err := s.app.Orchestrator.GenerateTopics(r.Context(), body.Keyword)
	if err != nil {
		s.respondOrchestratorError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string][]string{
		"candidates": candidates,
		"duplicates": s.app.Orchestrator.Session().Duplicates,
	})
}

// handleSelectTopic handles POST /api/topics/select
func (s *Server) handleSelectTopic(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index int `json:"index"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	topic, err := s.app.Orchestrator.SelectTopic(body.Index)
	if err != nil {
		s.respondOrchestratorError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"topic": topic})
}

// handleGenerateArticle handles POST /api/article
func (s *Server) handleGenerateArticle(w http.ResponseWriter, r *http.Request) {
	article, err := s.app.Orchestrator.GenerateArticle(r.Context())
	if err != nil {
		s.respondOrchestratorError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, article)
}

// handleGenerateImage handles POST /api/image
func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	img, err := s.app.Orchestrator.GenerateImage(r.Context())
	if err != nil {
		s.respondOrchestratorError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, img)
}

// respondOrchestratorError maps orchestrator errors to status codes.
func (s *Server) respondOrchestratorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrValidation), errors.Is(err, visual.ErrNotConfigured):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orchestrator.ErrAlreadyRunning):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, orchestrator.ErrCancelled):
		s.respondError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("Generation step failed", err)
		s.respondError(w, http.StatusBadGateway, err.Error())
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", err)
	}
}

// respondError writes a JSON error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"status":  status,
			"message": message,
		},
	})
}

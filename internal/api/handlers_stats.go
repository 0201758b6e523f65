package api

import (
	"net/http"
	"strconv"
)

func (s *Server) handleRecognitionStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "recognition stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"languages": s.cfg.OCRLanguages,
		"stats":     s.stats.Snapshot(),
	})
}

// handleVocabulary suggests canonical labels for a reviewer typing a rename.
func (s *Server) handleVocabulary(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, 100)
		}
	}
	q := r.URL.Query().Get("q")
	writeJSON(w, http.StatusOK, map[string]any{
		"query":       q,
		"suggestions": s.vocab.Suggest(q, limit),
	})
}

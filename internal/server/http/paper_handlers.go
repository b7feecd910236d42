package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// getPaper handles GET /api/v1/papers/{arxivID}.
func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	arxivID := strings.TrimSpace(chi.URLParam(r, "arxivID"))
	if arxivID == "" {
		writeError(w, http.StatusBadRequest, "arxiv_id is required")
		return
	}

	paper, err := s.papers.GetByID(r.Context(), arxivID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainPaperToResponse(paper))
}

// getStats handles GET /api/v1/stats.
func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.papers.Count(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{Papers: count})
}

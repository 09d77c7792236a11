package api

import "net/http"

func (s *Server) handleModelStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"model":    s.model,
		"stats":    s.service.Processor().Stats().Snapshot(),
		"sessions": s.service.Sessions().Len(),
	})
}

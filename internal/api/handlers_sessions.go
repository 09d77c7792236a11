package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/finextract/internal/export"
	"github.com/dgallion1/finextract/internal/pipeline"
	"github.com/dgallion1/finextract/internal/report"
)

// sessionState resolves the session in the URL and its latest result,
// writing the error response itself when either is missing.
func (s *Server) sessionState(w http.ResponseWriter, r *http.Request) (*pipeline.State, bool) {
	sess := s.service.Sessions().Get(chi.URLParam(r, "sessionID"))
	if sess == nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	st := sess.State()
	if st == nil {
		jsonError(w, "no processed document in session", http.StatusNotFound)
		return nil, false
	}
	return st, true
}

func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	sess := s.service.Sessions().Get(chi.URLParam(r, "sessionID"))
	if sess == nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.service.Sessions().Delete(chi.URLParam(r, "sessionID")) {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionDocTags(w http.ResponseWriter, r *http.Request) {
	st, ok := s.sessionState(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write([]byte(st.Markup))
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	st, ok := s.sessionState(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(st.Overlay)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	st, ok := s.sessionState(w, r)
	if !ok {
		return
	}
	download(w, "text/csv; charset=utf-8", downloadName(st, ".csv"), []byte(st.CSV))
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	st, ok := s.sessionState(w, r)
	if !ok {
		return
	}
	download(w, "application/json", downloadName(st, ".json"), []byte(st.JSON))
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	st, ok := s.sessionState(w, r)
	if !ok {
		return
	}
	data, err := export.XLSX(st.Metrics, st.Tables())
	if err != nil {
		s.log.Error("xlsx export failed", "error", err)
		jsonError(w, "xlsx export failed", http.StatusInternalServerError)
		return
	}
	download(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", downloadName(st, ".xlsx"), data)
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	st, ok := s.sessionState(w, r)
	if !ok {
		return
	}
	page, err := report.HTML(st.Summary())
	if err != nil {
		s.log.Error("html report failed", "error", err)
		jsonError(w, "report failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) handleReportDOCX(w http.ResponseWriter, r *http.Request) {
	st, ok := s.sessionState(w, r)
	if !ok {
		return
	}
	data, err := report.DOCX(st.Summary())
	if err != nil {
		s.log.Error("docx report failed", "error", err)
		jsonError(w, "report failed", http.StatusInternalServerError)
		return
	}
	download(w, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", downloadName(st, ".docx"), data)
}

func download(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}

func downloadName(st *pipeline.State, ext string) string {
	base := strings.TrimSuffix(st.Source, filepath.Ext(st.Source))
	if base == "" {
		base = "finextract"
	}
	return base + ext
}

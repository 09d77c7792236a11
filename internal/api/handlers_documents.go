package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/finextract/internal/doctags"
	"github.com/dgallion1/finextract/internal/metrics"
	"github.com/dgallion1/finextract/internal/pipeline"
	"github.com/dgallion1/finextract/internal/render"
	"github.com/dgallion1/finextract/internal/vlm"
)

type processResponse struct {
	SessionID string           `json:"session_id"`
	Source    string           `json:"source"`
	Page      int              `json:"page"`
	Title     string           `json:"title,omitempty"`
	Metrics   *metrics.Metrics `json:"metrics"`
	Tables    []doctags.Table  `json:"tables"`
	Regions   []metrics.Region `json:"regions"`
	Warnings  []string         `json:"warnings"`
}

func newProcessResponse(sess *pipeline.Session, st *pipeline.State) processResponse {
	return processResponse{
		SessionID: sess.ID,
		Source:    st.Source,
		Page:      st.Page + 1,
		Title:     st.Document.Title,
		Metrics:   st.Metrics,
		Tables:    st.Document.Tables,
		Regions:   st.Regions,
		Warnings:  st.Warnings,
	}
}

func (s *Server) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	page := 1
	if v := r.FormValue("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, "page must be a positive integer", http.StatusBadRequest)
			return
		}
		page = n
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	sess, st, err := s.service.ProcessDocument(r.Context(), r.FormValue("session_id"), pipeline.Input{
		Filename: filename,
		PDF:      data,
		Page:     page - 1,
	})
	if err != nil {
		s.processError(w, sess, err)
		return
	}
	writeJSON(w, http.StatusOK, newProcessResponse(sess, st))
}

func (s *Server) handleProcessDocTags(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, "failed to read body: "+err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		jsonError(w, "request body must contain doctags markup", http.StatusBadRequest)
		return
	}

	source := sanitizeFilename(r.URL.Query().Get("filename"))
	if source == "unnamed" {
		source = "doctags.xml"
	}

	sess, st, err := s.service.ProcessMarkup(r.Context(), r.URL.Query().Get("session_id"), source, string(body))
	if err != nil {
		s.processError(w, sess, err)
		return
	}
	writeJSON(w, http.StatusOK, newProcessResponse(sess, st))
}

// processError maps a failed run to a status. Malformed markup is a
// warning the caller can recover from by sending different input; the
// session keeps its previous result.
func (s *Server) processError(w http.ResponseWriter, sess *pipeline.Session, err error) {
	resp := map[string]any{"error": err.Error()}
	if sess != nil {
		resp["session_id"] = sess.ID
	}

	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, pipeline.ErrSessionNotFound):
		code = http.StatusNotFound
	case errors.Is(err, doctags.ErrMalformed):
		code = http.StatusUnprocessableEntity
		resp["warning"] = true
	case errors.Is(err, render.ErrPageOutOfRange):
		code = http.StatusBadRequest
	case vlm.IsRetryable(err):
		code = http.StatusServiceUnavailable
	default:
		var se *pipeline.StageError
		if errors.As(err, &se) && se.Stage == pipeline.StageConvert {
			code = http.StatusBadGateway
		}
	}
	if code >= http.StatusInternalServerError {
		s.log.Error("processing error", "error", err)
	}
	writeJSON(w, code, resp)
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}

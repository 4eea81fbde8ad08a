package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/creatordesk/creatordesk/internal/importer"
	"github.com/creatordesk/creatordesk/internal/logging"
)

// sessionView is the JSON shape of an import session: enough for the
// client to render the preview, the error panel, and the commit control.
type sessionView struct {
	ID        string              `json:"id"`
	Mode      importer.Mode       `json:"mode"`
	State     importer.State      `json:"state"`
	FileName  string              `json:"file_name,omitempty"`
	TotalRows int                 `json:"total_rows"`
	Preview   []importer.RawRow   `json:"preview"`
	Errors    []importer.RowError `json:"errors"`
	CanCommit bool                `json:"can_commit"`
	Committed int                 `json:"committed"`
	Failure   string              `json:"failure,omitempty"`
}

func viewOf(sess *importer.Session) sessionView {
	return sessionView{
		ID:        sess.ID,
		Mode:      sess.Mode,
		State:     sess.State(),
		FileName:  sess.FileName,
		TotalRows: sess.TotalRows(),
		Preview:   sess.Preview(),
		Errors:    sess.RowErrors(),
		CanCommit: sess.CanCommit(),
		Committed: sess.Committed(),
		Failure:   sess.Failure(),
	}
}

// handleCreateFileImport accepts a multipart CSV upload and opens a
// file-mode session.
func (s *Server) handleCreateFileImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	if err := r.ParseMultipartForm(s.cfg.Import.MaxFileSize); err != nil {
		badRequest(w, "upload too large or not multipart form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "no file provided; attach the CSV as the \"file\" field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, err)
		return
	}

	sess, err := s.imports.CreateFileSession(header.Filename, data)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("import session created",
		"session_id", sess.ID, "file", header.Filename, "rows", sess.TotalRows())
	writeJSON(w, http.StatusCreated, viewOf(sess))
}

type gridCreateRequest struct {
	Rows []map[string]string `json:"rows"`
}

// handleCreateGridImport opens a grid-mode session, optionally seeded with
// initial rows.
func (s *Server) handleCreateGridImport(w http.ResponseWriter, r *http.Request) {
	var req gridCreateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid JSON body")
			return
		}
	}

	sess := s.imports.CreateGridSession()
	for _, fields := range req.Rows {
		if _, err := sess.AddGridRow(fields); err != nil {
			respondError(w, r, err)
			return
		}
	}

	logging.FromContext(r.Context()).Info("grid session created",
		"session_id", sess.ID, "rows", sess.TotalRows())
	writeJSON(w, http.StatusCreated, viewOf(sess))
}

// handleGetImport returns the current session view.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.imports.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

// handleAddGridRow appends one row to a grid session.
func (s *Server) handleAddGridRow(w http.ResponseWriter, r *http.Request) {
	sess, err := s.imports.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	rowID, err := sess.AddGridRow(fields)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		RowID   string      `json:"row_id"`
		Session sessionView `json:"session"`
	}{rowID, viewOf(sess)})
}

type cellEditRequest struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// handleEditGridCell updates one cell; the session re-validates on every
// edit so the error panel tracks the grid live.
func (s *Server) handleEditGridCell(w http.ResponseWriter, r *http.Request) {
	sess, err := s.imports.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req cellEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.Column == "" {
		badRequest(w, "column is required")
		return
	}

	if err := sess.SetGridCell(chi.URLParam(r, "rowID"), req.Column, req.Value); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

// handleRemoveGridRow deletes a row; later rows shift up one position.
func (s *Server) handleRemoveGridRow(w http.ResponseWriter, r *http.Request) {
	sess, err := s.imports.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := sess.RemoveGridRow(chi.URLParam(r, "rowID")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

// handleCommitImport runs resolve + batch commit for the session.
func (s *Server) handleCommitImport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	count, err := s.imports.Commit(r.Context(), sessionID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	sess, err := s.imports.Get(sessionID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Committed int         `json:"committed"`
		Session   sessionView `json:"session"`
	}{count, viewOf(sess)})
}

// handleResetImport clears the session back to empty.
func (s *Server) handleResetImport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.imports.Reset(sessionID); err != nil {
		respondError(w, r, err)
		return
	}

	sess, err := s.imports.Get(sessionID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

// handleDownloadTemplate serves the starter CSV.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="tasks_template.csv"`)
	w.Write(importer.TemplateCSV())
}

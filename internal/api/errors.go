package api

// errors.go maps internal errors onto JSON responses. Full technical
// detail is logged server-side with the request ID; clients get a stable
// shape with a support code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/creatordesk/creatordesk/internal/importer"
	"github.com/creatordesk/creatordesk/internal/logging"
)

// ErrorResponse is the JSON body for every error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`

	// Committed is set for partial commit failures so the client can show
	// how many rows already landed.
	Committed *int `json:"committed,omitempty"`
}

// respondError logs err and writes the mapped JSON response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := mapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", resp.Code,
	)

	writeJSON(w, status, resp)
}

// mapError translates the import error taxonomy and common lookup failures
// into a status code and client-safe body.
func mapError(err error) (int, ErrorResponse) {
	var parseErr *importer.ParseError
	if errors.As(err, &parseErr) {
		return http.StatusBadRequest, ErrorResponse{Error: parseErr.Error(), Code: "IMP001"}
	}

	var resErr *importer.ResolutionError
	if errors.As(err, &resErr) {
		return http.StatusUnprocessableEntity, ErrorResponse{Error: resErr.Error(), Code: "IMP002"}
	}

	var commitErr *importer.CommitError
	if errors.As(err, &commitErr) {
		committed := commitErr.Committed
		return http.StatusInternalServerError, ErrorResponse{
			Error:     "commit failed partway; earlier batches were saved",
			Code:      "IMP003",
			Committed: &committed,
		}
	}

	if errors.Is(err, importer.ErrCommitNotAllowed) {
		return http.StatusConflict, ErrorResponse{
			Error: "fix or remove the rows with errors before committing",
			Code:  "IMP004",
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found"):
		return http.StatusNotFound, ErrorResponse{Error: "not found", Code: "REQ404"}
	case strings.Contains(msg, "not in grid mode"):
		return http.StatusBadRequest, ErrorResponse{Error: "session does not support row edits", Code: "IMP005"}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error: "an unexpected error occurred",
		Code:  "ERR000",
	}
}

// writeJSON encodes v with the given status. Encoding errors are logged;
// headers are already sent at that point.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// badRequest writes a 400 with a literal client-facing message.
func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "REQ400"})
}

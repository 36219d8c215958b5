package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/hydrahub/internal/errs"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string       `json:"error"`
	Issues []errs.Issue `json:"issues,omitempty"`
	Key    string       `json:"key,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps an error kind onto the HTTP status the API reports.
func statusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindUnsupported:
		return http.StatusUnsupportedMediaType
	case errs.ErrKindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error response. Client errors carry their
// message; anything else is logged and reported without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	log := s.log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
	if status == http.StatusInternalServerError {
		log.ErrorWith("request failed", err, map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"kind":   errs.KindOf(err).String(),
		})
		writeJSON(w, status, errorBody{Error: "internal server error"})
		return
	}

	body := errorBody{Error: err.Error()}
	var e *errs.Error
	if errors.As(err, &e) {
		body.Error = e.Message
		body.Issues = e.Issues
	}
	log.WarnWith("request rejected", err, map[string]interface{}{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	})
	writeJSON(w, status, body)
}

// decodeBody reads a JSON request body into dst. strict rejects fields dst
// does not declare.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, strict bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		msg := err.Error()
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		return &errs.Error{
			Kind:    errs.ErrKindInvalidInput,
			Message: "invalid body",
			Cause:   err,
			Issues:  []errs.Issue{{Message: msg}},
		}
	}
	return nil
}

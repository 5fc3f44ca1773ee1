package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/folio/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Name  string `json:"name,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusOf maps the error taxonomy to an HTTP status. Failures of the
// remote content store surface as 502.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrAlreadyExists),
		errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrConcurrency),
		errors.Is(err, apperr.ErrAlreadyInitialized):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrRender):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrAuth),
		errors.Is(err, apperr.ErrTransport),
		errors.Is(err, apperr.ErrInvalidIndex),
		errors.Is(err, apperr.ErrSourceExtraction):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs and writes err. Internal errors are not echoed to the client.
func writeError(w http.ResponseWriter, op string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	if status >= http.StatusBadGateway {
		slog.Warn(op+" failed", slog.String("error", err.Error()))
	}
	body := errorBody(err.Error())
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
		body.Name = ve.Name
	}
	writeJSON(w, status, body)
}

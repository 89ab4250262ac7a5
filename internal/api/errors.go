package api

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"orderdesk/internal/desk"
	"orderdesk/internal/extract"
	"orderdesk/internal/logging"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

var errBadRequest = errors.New("malformed request")

func statusFor(err error) int {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest
	}
	if errors.Is(err, extract.ErrMissingAPIKey) {
		return http.StatusServiceUnavailable
	}
	switch desk.Classify(err) {
	case desk.ClassInput:
		return http.StatusBadRequest
	case desk.ClassNotFound:
		return http.StatusNotFound
	case desk.ClassDuplicate, desk.ClassConflict:
		return http.StatusConflict
	case desk.ClassUnavailable:
		return http.StatusServiceUnavailable
	case desk.ClassExtraction, desk.ClassExport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the technical error and sends the operator-facing one.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := desk.Classify(err)
	message := desk.UserMessage(err)
	if errors.Is(err, errBadRequest) {
		code = desk.ClassInput
		message = err.Error()
	}

	logger := logging.FromContext(r.Context())
	ev := logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = logger.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Str("code", code).Msg("request failed")

	respondJSON(w, status, ErrorResponse{Error: err.Error(), Message: message, Code: code})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	return nil
}

// logRequestError is for failures after the response has started.
func logRequestError(r *http.Request, err error, msg string) {
	logger := logging.FromContext(r.Context())
	logger.Error().Err(err).Str("path", r.URL.Path).Msg(msg)
}

package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kindfund/kindfund/internal/config"
	"github.com/kindfund/kindfund/internal/model"
	"github.com/kindfund/kindfund/internal/server/middleware"
)

const (
	defaultLimit = 25
	maxLimit     = 100
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// readJSON decodes the request body as JSON into v, rejecting unknown fields
// and trailing data. The body is closed after decoding.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return decodeStrict(r.Body, v)
}

func decodeStrict(body io.Reader, v interface{}) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// clampInt constrains val to be within [min, max].
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// statusError carries an HTTP status for errors raised inside handler hooks.
type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string { return e.message }

func errorf(code int, format string, args ...interface{}) error {
	return &statusError{code: code, message: fmt.Sprintf(format, args...)}
}

// writeStoreError maps err to a response. Unexpected errors are logged and
// reported as a generic 500 so storage details never reach the client.
func writeStoreError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, notFoundMsg string) {
	var se *statusError
	var ve *model.ValidationError
	switch {
	case errors.As(err, &se):
		writeError(w, se.code, se.message)
	case errors.As(err, &ve):
		writeValidationError(w, ve)
	case errors.Is(err, config.ErrNotFound):
		writeError(w, http.StatusNotFound, notFoundMsg)
	case errors.Is(err, config.ErrConflict):
		writeError(w, http.StatusConflict, "Resource already exists")
	default:
		logger.ErrorContext(r.Context(), "request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeValidationError(w http.ResponseWriter, ve *model.ValidationError) {
	fields := make(map[string]interface{}, len(ve.Fields))
	for k, v := range ve.Fields {
		fields[k] = v
	}
	writeError(w, http.StatusBadRequest, "Validation failed", map[string]interface{}{"fields": fields})
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}

package errors

import (
	"encoding/json"
	"net/http"
)

type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// WriteHTTP normalizes err and renders it as {"error": {...}} with the status for its code.
func (h *ErrorHandler) WriteHTTP(w http.ResponseWriter, r *http.Request, err error) {
	h.WriteHTTPWith(w, r, err, nil)
}

// WriteHTTPWith is WriteHTTP with extra top-level members next to "error",
// such as the session view the client should re-render.
func (h *ErrorHandler) WriteHTTPWith(w http.ResponseWriter, r *http.Request, err error, extra map[string]interface{}) {
	stdErr := AsStandard(err)
	status := HTTPStatus(stdErr.Code)

	fields := map[string]interface{}{
		"method":        r.Method,
		"path":          r.URL.Path,
		"status":        status,
		"errorCode":     string(stdErr.Code),
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", fields)
	} else {
		h.logger.Warn("Request rejected", fields)
	}

	if stdErr.Code == ErrCodeInternal {
		// internal details stay in the log
		stdErr = &StandardError{Code: stdErr.Code, Message: stdErr.Message, Timestamp: stdErr.Timestamp}
	}

	body := make(map[string]interface{}, len(extra)+1)
	for k, v := range extra {
		body[k] = v
	}
	body["error"] = stdErr

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

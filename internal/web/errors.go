package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged once with full technical details (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//   - Formatted as JSON or HTML depending on what the client asked for
//
// The HTTP status comes from the error's type (statusFor); the message and
// support code from crud.MapError.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/crud/internal/crud"
	"github.com/JonMunkholm/crud/internal/logging"
	"github.com/JonMunkholm/crud/internal/web/views"
)

// ErrorResponse represents the JSON structure for error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Action  string            `json:"action,omitempty"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	var (
		missingErr *crud.MissingParameterError
		sortErr    *crud.InvalidSortError
		searchErr  *crud.InvalidSearchError
		notFound   *crud.NotFoundError
		unknownErr *crud.UnknownResourceError
		validErr   *crud.ValidationError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &missingErr), errors.As(err, &sortErr), errors.As(err, &searchErr):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.As(err, &unknownErr):
		return http.StatusNotFound
	case errors.As(err, &validErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// logError records err with request context. Client errors are logged at
// Warn, everything else at Error.
func logError(r *http.Request, err error, statusCode int, code string) {
	level := slog.LevelError
	if statusCode < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", code,
	)
}

// respondError handles error responses that replace the whole page.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := crud.MapError(err)
	logError(r, err, statusCode, userMsg.Code)

	if wantsJSON(r) {
		respondErrorJSON(w, err, userMsg, statusCode)
		return
	}

	back := "/"
	if name := resourceParam(r); name != "" {
		if _, ok := s.registry.Get(name); ok {
			back = views.URL(name, crud.OpList, nil)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	page := views.Page(s.cfg.Crud.Title, "Error", "",
		views.ErrorPage(userMsg.Message, userMsg.Action, userMsg.Code, back))
	if err := page.Render(r.Context(), w); err != nil {
		slog.Warn("render error page", "error", err)
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, err error, msg crud.UserMessage, statusCode int) {
	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var validErr *crud.ValidationError
	if errors.As(err, &validErr) {
		resp.Fields = make(map[string]string, len(validErr.Fields))
		for _, f := range validErr.Fields {
			resp.Fields[f.Field] = f.Message
		}
	}
	writeJSON(w, statusCode, resp)
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json encode error", "error", err)
	}
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return r.URL.Query().Get("format") == "json"
}

// This file implements a small builder for JSON responses and the mapping
// from domain errors to HTTP status codes.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"udhar/internal/core"
	ulog "udhar/internal/log"
	"udhar/internal/middleware/trace"
)

// JSONResponseBuilder provides a fluent API for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write encodes the body before touching w, so an encoding failure can
// still become a 500.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse builds the standard error body.
func ErrorResponse(statusCode int, message, requestID string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorBody{Error: message, RequestID: requestID})
}

// StatusFor maps an error to its HTTP status and log category.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized, ulog.ErrorTypeAuth
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, ulog.ErrorTypeValidation
	case core.IsValidation(err):
		return http.StatusUnprocessableEntity, ulog.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, ulog.ErrorTypeNotFound
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, ulog.ErrorTypeForbidden
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, ulog.ErrorTypeConflict
	default:
		return http.StatusInternalServerError, ulog.ErrorTypeInternal
	}
}

// writeError logs err and writes the mapped response. Internal errors are
// not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, kind := StatusFor(err)
	msg := err.Error()
	fields := ulog.NewFields().WithOperation(op).WithErrorType(kind).WithError(err)

	logger := ulog.FromContext(r.Context())
	if status == http.StatusInternalServerError {
		msg = "internal error"
		logger.ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	} else {
		logger.InfoContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}
	ErrorResponse(status, msg, trace.RequestIDFrom(r)).Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}

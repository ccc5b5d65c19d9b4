package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"scadenze/internal/core"
	"scadenze/internal/log"
	"scadenze/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
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

// Body sets the value encoded as the response body. A nil body sends no content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	NewJSONResponse().Status(status).Body(data).Write(w)
}

// errorStatus maps engine and request errors to HTTP status codes.
func errorStatus(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrObligationNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateObligation),
		errors.Is(err, services.ErrAlreadyRejected),
		errors.Is(err, services.ErrAlreadyMaterialized):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidRule),
		errors.Is(err, services.ErrNotAnOccurrence),
		errors.Is(err, services.ErrNoFirstOccurrence),
		errors.Is(err, services.ErrUnknownDecision):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrPersistenceFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends err as a JSON error. Internal details are only exposed
// for client errors; server errors are logged instead.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	resp := ErrorResponse{Error: http.StatusText(status)}

	if status < http.StatusInternalServerError {
		resp.Details = err.Error()
	} else {
		log.LogError(r.Context(), "Request failed", err, r.Method+" "+r.URL.Path, nil)
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "5")
		}
	}
	writeJSON(w, status, resp)
}

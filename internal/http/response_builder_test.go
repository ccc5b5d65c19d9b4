package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"scadenze/internal/core"
	"scadenze/internal/services"
)

func TestJSONResponseBuilder(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/obligations/Rent").
		Body(map[string]string{"label": "Rent"}).
		Write(rr)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "/api/obligations/Rent", rr.Header().Get("Location"))
	assert.JSONEq(t, `{"label":"Rent"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(rr)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Empty(t, rr.Header().Get("Content-Type"))
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{badRequest("bad", nil), http.StatusBadRequest},
		{core.ErrObligationNotFound, http.StatusNotFound},
		{fmt.Errorf("get: %w", core.ErrObligationNotFound), http.StatusNotFound},
		{core.ErrDuplicateObligation, http.StatusConflict},
		{services.ErrAlreadyRejected, http.StatusConflict},
		{services.ErrAlreadyMaterialized, http.StatusConflict},
		{&core.ValidationError{Field: "label", Err: core.ErrEmptyLabel}, http.StatusUnprocessableEntity},
		{services.ErrNotAnOccurrence, http.StatusUnprocessableEntity},
		{services.ErrNoFirstOccurrence, http.StatusUnprocessableEntity},
		{services.ErrUnknownDecision, http.StatusUnprocessableEntity},
		{&services.PersistenceError{Op: "list", Err: errors.New("locked")}, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, errorStatus(tt.err))
		})
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/pending", nil)

	rr := httptest.NewRecorder()
	writeError(rr, r, errors.New("sql: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")

	rr = httptest.NewRecorder()
	writeError(rr, r, core.ErrObligationNotFound)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), core.ErrObligationNotFound.Error())
}

package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fieldErr struct{ field string }

func (e fieldErr) Error() string     { return e.field + " is invalid" }
func (e fieldErr) FieldName() string { return e.field }
func (e fieldErr) Unwrap() error     { return ErrValidation }

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", fmt.Errorf("company: %w", ErrNotFound), http.StatusNotFound},
		{"duplicate", ErrDuplicate, http.StatusConflict},
		{"validation", ErrValidation, http.StatusBadRequest},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"session expired", ErrSessionExpired, http.StatusForbidden},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"unknown", errors.New("pg: connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, tc.err)
			assert.Equal(t, tc.status, rr.Code)
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("dial tcp 10.0.0.3:5432: i/o timeout"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Empty(t, body.Detail)
	assert.Equal(t, "Internal Error", body.Title)
}

func TestRespondErrorCarriesField(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fieldErr{field: "fingerprints[1].expiryDate"})

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, http.StatusBadRequest, body.Status)
	assert.Equal(t, "fingerprints[1].expiryDate", body.Field)
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(fieldErr{field: "email"}))
	assert.True(t, IsClientError(fmt.Errorf("staff: %w", ErrNotFound)))
	assert.False(t, IsClientError(errors.New("connection reset")))
	assert.False(t, IsClientError(nil))
}

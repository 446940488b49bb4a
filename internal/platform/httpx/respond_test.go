package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("invoice: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("email: %w", ErrDuplicate), http.StatusConflict},
		{fmt.Errorf("business has invoices: %w", ErrConflict), http.StatusConflict},
		{fmt.Errorf("items: %w", ErrValidation), http.StatusBadRequest},
		{ErrForbidden, http.StatusForbidden},
		{ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		assert.Equal(t, tc.status, rr.Code, tc.err.Error())

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
		assert.Equal(t, tc.status, problem.Status)
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("pq: password authentication failed"))
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestValidationProblemListsFields(t *testing.T) {
	type form struct {
		Name  string `validate:"required"`
		Email string `validate:"required,email"`
	}
	err := validator.New().Struct(form{Email: "nope"})
	require.Error(t, err)

	rr := httptest.NewRecorder()
	ValidationProblem(rr, err)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	assert.Equal(t, "required", problem.Fields["Name"])
	assert.Equal(t, "email", problem.Fields["Email"])
}

func TestDecodeJSONRejectsMalformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	var target map[string]any
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, ErrValidation)
}

func TestRespondErrorUnwrapsValidationErrors(t *testing.T) {
	type form struct {
		Number string `validate:"required"`
	}
	verr := validator.New().Struct(form{})
	require.Error(t, verr)

	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("%w: %w", ErrValidation, verr))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	assert.Equal(t, "required", problem.Fields["Number"])
}

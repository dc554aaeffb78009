package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clientportal/portal/internal/shared"
)

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()
	var p ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	return p
}

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		detail string
	}{
		{shared.ErrNotAuthenticated, http.StatusUnauthorized, "No token provided"},
		{fmt.Errorf("%w: expired", shared.ErrInvalidToken), http.StatusUnauthorized, "Invalid token"},
		{shared.ErrAccountInactive, http.StatusUnauthorized, "User not found or inactive"},
		{shared.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
		{shared.ErrForbidden, http.StatusForbidden, "Insufficient permissions"},
		{fmt.Errorf("%w: cannot manage this role", shared.ErrForbidden), http.StatusForbidden, "cannot manage this role"},
		{fmt.Errorf("%w: project", shared.ErrNotFound), http.StatusNotFound, "project"},
		{fmt.Errorf("%w: email failed required", shared.ErrValidation), http.StatusBadRequest, "email failed required"},
		{shared.ErrConflict, http.StatusConflict, "Conflict"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		assert.Equal(t, tc.status, rr.Code, tc.err.Error())
		p := decodeProblem(t, rr)
		assert.Equal(t, tc.detail, p.Detail, tc.err.Error())
		assert.Equal(t, tc.status, StatusOf(tc.err))
	}
}

func TestInactiveAndUnknownLookIdentical(t *testing.T) {
	inactive := httptest.NewRecorder()
	RespondError(inactive, fmt.Errorf("%w: deactivated", shared.ErrAccountInactive))
	unknown := httptest.NewRecorder()
	RespondError(unknown, shared.ErrAccountInactive)
	assert.Equal(t, unknown.Code, inactive.Code)
	assert.Equal(t, unknown.Body.String(), inactive.Body.String())
}

type payload struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required"`
}

func TestBind(t *testing.T) {
	var p payload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.test","name":"Ann"}`))
	require.NoError(t, Bind(httptest.NewRecorder(), req, &p))
	assert.Equal(t, "Ann", p.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope"}`))
	err := Bind(httptest.NewRecorder(), req, &payload{})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, err.Error(), "email failed email")
	assert.Contains(t, err.Error(), "name failed required")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":`))
	require.ErrorIs(t, Bind(httptest.NewRecorder(), req, &payload{}), shared.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	require.ErrorIs(t, Bind(httptest.NewRecorder(), req, &payload{}), shared.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.test","name":"x","role":"owner"}`))
	require.ErrorIs(t, Bind(httptest.NewRecorder(), req, &payload{}), shared.ErrValidation)
}

func TestPathID(t *testing.T) {
	r := chi.NewRouter()
	var (
		got string
		err error
	)
	r.Get("/things/{id}", func(w http.ResponseWriter, req *http.Request) {
		got, err = PathID(req, "id")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/8F14E45F-CEEA-467F-A0E6-2F5C3F8B6B1A", nil))
	require.NoError(t, err)
	assert.Equal(t, "8f14e45f-ceea-467f-a0e6-2f5c3f8b6b1a", got)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/42", nil))
	require.ErrorIs(t, err, shared.ErrNotFound)
}

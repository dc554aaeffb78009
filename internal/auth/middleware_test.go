package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clientportal/portal/internal/platform/httpx"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []store.ActivityEntry
}

func (s *recordingSink) Record(ctx context.Context, e store.ActivityEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func serveProtected(t *testing.T, mw *Middleware, header string) (*httptest.ResponseRecorder, shared.Principal) {
	t.Helper()
	var seen shared.Principal
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.RemoteAddr = "192.0.2.10:51234"
	req.Header.Set("User-Agent", "portal-test")
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr, seen
}

func problemOf(t *testing.T, rr *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	var p httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	return p
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	f := newAuthFixture(t)
	sink := &recordingSink{}
	mw := NewMiddleware(f.svc, sink, nil)

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer"} {
		rr, _ := serveProtected(t, mw, header)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, header)
		assert.Equal(t, "No token provided", problemOf(t, rr).Detail, header)
	}
	assert.Empty(t, sink.entries)
	assert.Zero(t, f.mem.Calls["GetUser"])
}

func TestMiddlewareRejectsInvalidToken(t *testing.T) {
	f := newAuthFixture(t)
	mw := NewMiddleware(f.svc, nil, nil)
	rr, _ := serveProtected(t, mw, "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid token", problemOf(t, rr).Detail)
}

func TestMiddlewareInactiveMatchesUnknownUser(t *testing.T) {
	f := newAuthFixture(t)
	mw := NewMiddleware(f.svc, nil, nil)
	tokens := newTestIssuer(t)

	dormant, _, err := tokens.Issue(f.dormant.ID)
	require.NoError(t, err)
	ghost, _, err := tokens.Issue("00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)

	rrDormant, _ := serveProtected(t, mw, "Bearer "+dormant.Token)
	rrGhost, _ := serveProtected(t, mw, "Bearer "+ghost.Token)
	assert.Equal(t, http.StatusUnauthorized, rrDormant.Code)
	assert.Equal(t, rrGhost.Code, rrDormant.Code)
	assert.Equal(t, rrGhost.Body.String(), rrDormant.Body.String())
	assert.Equal(t, "User not found or inactive", problemOf(t, rrDormant).Detail)
}

func TestMiddlewareAttachesPrincipalAndRecordsAccess(t *testing.T) {
	f := newAuthFixture(t)
	sink := &recordingSink{}
	mw := NewMiddleware(f.svc, sink, nil)
	session, _, err := newTestIssuer(t).Issue(f.active.ID)
	require.NoError(t, err)

	rr, principal := serveProtected(t, mw, "bearer "+session.Token)
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, f.active.ID, principal.UserID)
	assert.Equal(t, f.client.ID, principal.CompanyID)
	assert.Equal(t, f.active.Role, principal.Role)

	require.Len(t, sink.entries, 1)
	entry := sink.entries[0]
	assert.Equal(t, "GET /api/projects", entry.Action)
	assert.Equal(t, "192.0.2.10", entry.IPAddress)
	assert.Equal(t, "portal-test", entry.UserAgent)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer  abc.def ")
	token, ok := BearerToken(req)
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)
}

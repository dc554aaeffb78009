package audithttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clientportal/portal/internal/audit"
	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

type stubTimelineService struct {
	result      audit.Result
	exportRows  []store.ActivityEntry
	lastFilters audit.TimelineFilters
	calls       int
}

func (s *stubTimelineService) Timeline(_ context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.calls++
	s.lastFilters = filters
	return s.result, nil
}

func (s *stubTimelineService) Export(_ context.Context, filters audit.TimelineFilters) ([]store.ActivityEntry, error) {
	s.calls++
	s.lastFilters = filters
	return s.exportRows, nil
}

func newActivityRouter(service *stubTimelineService) http.Handler {
	h := NewHandler(nil, service, nil)
	h.now = func() time.Time { return time.Date(2025, 3, 15, 13, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/api/activity", h.MountRoutes)
	return r
}

func request(target string, role roles.Role) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if role != roles.Unknown {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: "u-1", Role: role}))
	}
	return req
}

func TestTimelineRequiresActivityRead(t *testing.T) {
	service := &stubTimelineService{}
	router := newActivityRouter(service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, request("/api/activity", roles.Partner))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, request("/api/activity", roles.Unknown))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, service.calls)
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	service := &stubTimelineService{result: audit.Result{
		Rows:   []store.ActivityEntry{{UserID: "u-2", Action: "CREATE_USER"}},
		Paging: audit.PagingInfo{Page: 1, PageSize: 20, Total: 1},
	}}
	rec := httptest.NewRecorder()
	newActivityRouter(service).ServeHTTP(rec, request("/api/activity", roles.Admin))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), service.lastFilters.From)
	assert.Equal(t, time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC), service.lastFilters.To)
	assert.Equal(t, 1, service.lastFilters.Page)

	var body audit.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "CREATE_USER", body.Rows[0].Action)
}

func TestTimelineParsesQuery(t *testing.T) {
	service := &stubTimelineService{}
	rec := httptest.NewRecorder()
	newActivityRouter(service).ServeHTTP(rec, request("/api/activity?from=2025-03-01&to=2025-03-10&page=2&page_size=10&userId=u-9&resourceType=user", roles.Owner))

	require.Equal(t, http.StatusOK, rec.Code)
	f := service.lastFilters
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), f.From)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), f.To)
	assert.Equal(t, 2, f.Page)
	assert.Equal(t, 10, f.PageSize)
	assert.Equal(t, "u-9", f.UserID)
	assert.Equal(t, "user", f.ResourceType)
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	cases := []string{
		"/api/activity?from=yesterday",
		"/api/activity?from=2025-03-10&to=2025-03-01",
		"/api/activity?from=2024-01-01&to=2025-03-01",
		"/api/activity?page=0",
		"/api/activity?page_size=abc",
	}
	for _, target := range cases {
		t.Run(target, func(t *testing.T) {
			service := &stubTimelineService{}
			rec := httptest.NewRecorder()
			newActivityRouter(service).ServeHTTP(rec, request(target, roles.Admin))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, service.calls)
		})
	}
}

func TestExportCSV(t *testing.T) {
	service := &stubTimelineService{exportRows: []store.ActivityEntry{
		{UserID: "u-1", Action: "LOGOUT", CreatedAt: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)},
	}}
	rec := httptest.NewRecorder()
	newActivityRouter(service).ServeHTTP(rec, request("/api/activity/export.csv", roles.Admin))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "LOGOUT")
}

func TestExportIsRateLimitedPerUser(t *testing.T) {
	router := newActivityRouter(&stubTimelineService{})
	var last int
	for i := 0; i <= rateLimit; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, request("/api/activity/export.csv", roles.Admin))
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

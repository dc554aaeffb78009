package projects

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

func serve(t *testing.T, svc *Service, actor store.User, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/api/projects", NewHandler(nil, svc).MountRoutes)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: actor.ID, CompanyID: actor.CompanyID, Role: actor.Role}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateListGet(t *testing.T) {
	svc, _, tn := newTestService()

	body := `{"clientCompanyId":"` + tn.ClientA.ID + `","name":"Launch","status":"draft","startDate":"2025-02-01T00:00:00Z"}`
	rec := serve(t, svc, tn.ClientUser, http.MethodPost, "/api/projects", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created store.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, store.ProjectDraft, created.Status)
	require.NotNil(t, created.StartDate)

	rec = serve(t, svc, tn.ClientViewer, http.MethodGet, "/api/projects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []store.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 2)

	rec = serve(t, svc, tn.ClientBUser, http.MethodGet, "/api/projects/"+created.ID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, svc, tn.ClientBUser, http.MethodGet, "/api/projects/6f1c2f0e-8d1b-4a4e-9b5a-2d7f3c9e0a11", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, svc, tn.ClientUser, http.MethodPost, "/api/projects", `{"clientCompanyId":"nope","name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerGrantLifecycle(t *testing.T) {
	svc, _, tn := newTestService()
	base := "/api/projects/" + tn.ProjectA.ID + "/access"

	rec := serve(t, svc, tn.AdminUser, http.MethodPost, base, `{"companyId":"`+tn.Partner.ID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var grant store.ProjectAccess
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grant))
	assert.Equal(t, store.AccessView, grant.AccessLevel)

	rec = serve(t, svc, tn.AdminUser, http.MethodPost, base, `{"companyId":"`+tn.Partner.ID+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, svc, tn.PartnerUser, http.MethodGet, "/api/projects/"+tn.ProjectA.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, svc, tn.PartnerUser, http.MethodGet, base, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, svc, tn.AdminUser, http.MethodDelete, base+"/"+grant.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, svc, tn.PartnerUser, http.MethodGet, "/api/projects/"+tn.ProjectA.ID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

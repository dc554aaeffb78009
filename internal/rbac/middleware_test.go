package rbac

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
)

func serve(h http.Handler, role roles.Role, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if role != roles.Unknown {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: "u1", Role: role}))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

func TestRequireAny(t *testing.T) {
	mw := Middleware{Service: NewService()}
	h := mw.RequireAny(roles.ActionCompanyCreate, roles.ActionAccessRequestReview)(ok)

	assert.Equal(t, http.StatusNoContent, serve(h, roles.Admin, "/").Code)
	assert.Equal(t, http.StatusNoContent, serve(h, roles.Client, "/").Code)
	rr := serve(h, roles.ClientViewer, "/")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "Insufficient permissions")
	assert.Equal(t, http.StatusUnauthorized, serve(h, roles.Unknown, "/").Code)
}

func TestRequireAll(t *testing.T) {
	mw := Middleware{}
	h := mw.RequireAll(roles.ActionAuditCreate, roles.ActionAuditPublish)(ok)

	assert.Equal(t, http.StatusNoContent, serve(h, roles.ClientServices, "/").Code)
	assert.Equal(t, http.StatusForbidden, serve(h, roles.Partner, "/").Code)
	assert.Equal(t, http.StatusNoContent, serve(mw.RequireAll()(ok), roles.ClientViewer, "/").Code)
}

func TestPermissionsHandler(t *testing.T) {
	r := chi.NewRouter()
	NewPermissionsHandler(nil, NewService()).MountRoutes(r)

	rr := serve(r, roles.Partner, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	var cat struct {
		Role       string   `json:"role"`
		Family     string   `json:"family"`
		Actions    []string `json:"actions"`
		Manageable []string `json:"manageableRoles"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cat))
	assert.Equal(t, "partner", cat.Role)
	assert.Equal(t, "partner", cat.Family)
	assert.Equal(t, []string{"client_editor"}, cat.Manageable)
	assert.Contains(t, cat.Actions, "user:manage")

	rr = serve(r, roles.ClientViewer, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cat))
	assert.Empty(t, cat.Actions)
	assert.Empty(t, cat.Manageable)

	rr = serve(r, roles.ClientViewer, "/roles")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []RoleInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 11)
	assert.Equal(t, "owner", list[0].Name)
	assert.True(t, list[0].Coarse && list[0].FineGrained)

	assert.Equal(t, http.StatusUnauthorized, serve(r, roles.Unknown, "/").Code)
}

package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clientportal/portal/internal/access"
	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
	"github.com/clientportal/portal/internal/store/storetest"
	"github.com/clientportal/portal/internal/tenant"
)

func newTestService() (*Service, *storetest.Memory, storetest.Tenants) {
	mem := storetest.New()
	tn := storetest.SeedTenants(mem)
	mem.AddProject(store.Project{ClientCompanyID: tn.ClientA.ID, Name: "Old", Status: store.ProjectCompleted})
	mem.AddAudit(store.DigitalAudit{ClientCompanyID: tn.ClientA.ID, Title: "a1", Status: store.AuditPublished})
	mem.AddAudit(store.DigitalAudit{ClientCompanyID: tn.ClientA.ID, Title: "a2", Status: store.AuditDraft})
	mem.AddAudit(store.DigitalAudit{ClientCompanyID: tn.ClientB.ID, Title: "b1", Status: store.AuditPublished})
	mem.AddAccessRequest(store.AccessRequest{RequesterEmail: "q@q.test", RequesterName: "Q", RequestedRole: roles.ClientViewer})
	return NewService(mem, access.NewEngine(mem), tenant.NewGraph(mem)), mem, tn
}

func TestStatsByRole(t *testing.T) {
	svc, _, tn := newTestService()
	ctx := context.Background()

	cases := []struct {
		name  string
		actor store.User
		want  Stats
	}{
		{"owner", tn.OwnerUser, Stats{ActiveProjects: 2, CompletedAudits: 2, ActiveClients: 2, PendingApprovals: 1}},
		{"staff", tn.StaffUser, Stats{ActiveProjects: 2, CompletedAudits: 2, ActiveClients: 2}},
		{"partner", tn.PartnerUser, Stats{CompletedAudits: 2, ActiveClients: 2}},
		{"client", tn.ClientUser, Stats{ActiveProjects: 1, CompletedAudits: 1, ActiveClients: 1, PendingApprovals: 1}},
		{"viewer", tn.ClientViewer, Stats{ActiveProjects: 1, CompletedAudits: 1, ActiveClients: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.Stats(ctx, tc.actor.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := svc.Stats(ctx, "ghost")
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestStatsPropagatesStoreErrors(t *testing.T) {
	svc, mem, tn := newTestService()
	boom := errors.New("count failed")
	mem.Fail["CountPendingAccessRequests"] = boom

	_, err := svc.Stats(context.Background(), tn.AdminUser.ID)
	assert.ErrorIs(t, err, boom)
}

func TestHandlerStats(t *testing.T) {
	svc, _, tn := newTestService()
	r := chi.NewRouter()
	r.Route("/api/dashboard", NewHandler(nil, svc).MountRoutes)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/stats", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: tn.ClientUser.ID, CompanyID: tn.ClientA.ID, Role: tn.ClientUser.Role}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body["activeProjects"])
	assert.Equal(t, 1, body["completedAudits"])
}

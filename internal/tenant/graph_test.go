package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
	"github.com/clientportal/portal/internal/store/storetest"
)

func ptr(s string) *string { return &s }

func TestIsDescendantWalksParents(t *testing.T) {
	mem := storetest.New()
	root := mem.AddCompany(store.Company{Type: store.CompanyOwner, Name: "Root"})
	client := mem.AddCompany(store.Company{Type: store.CompanyClient, Name: "Acme", ParentID: ptr(root.ID)})
	sub := mem.AddCompany(store.Company{Type: store.CompanySub, Name: "Acme East", ParentID: ptr(client.ID)})
	g := NewGraph(mem)
	ctx := context.Background()

	ok, err := g.IsDescendant(ctx, sub.ID, client.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.IsDescendant(ctx, sub.ID, root.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.IsDescendant(ctx, client.ID, sub.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.IsDescendant(ctx, sub.ID, sub.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsDescendantTerminatesOnCycle(t *testing.T) {
	mem := storetest.New()
	a := mem.AddCompany(store.Company{ID: "a", Type: store.CompanySub, ParentID: ptr("b")})
	mem.AddCompany(store.Company{ID: "b", Type: store.CompanySub, ParentID: ptr("a")})
	other := mem.AddCompany(store.Company{ID: "c", Type: store.CompanyClient})

	ok, err := NewGraph(mem).IsDescendant(context.Background(), a.ID, other.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.LessOrEqual(t, mem.Calls["GetCompany"], 3)
}

func TestIsDescendantMissingCompanyIsFalse(t *testing.T) {
	mem := storetest.New()
	ok, err := NewGraph(mem).IsDescendant(context.Background(), "ghost", "root")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsDescendantPropagatesStoreErrors(t *testing.T) {
	mem := storetest.New()
	mem.Fail["GetCompany"] = errors.New("connection reset")
	_, err := NewGraph(mem).IsDescendant(context.Background(), "x", "y")
	require.Error(t, err)
}

func TestCompaniesByTypeRejectsUnknownType(t *testing.T) {
	_, err := NewGraph(storetest.New()).CompaniesByType(context.Background(), "vendor")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCompaniesByTypeAndParent(t *testing.T) {
	mem := storetest.New()
	owner := mem.AddCompany(store.Company{Type: store.CompanyOwner, Name: "Root"})
	mem.AddCompany(store.Company{Type: store.CompanyClient, Name: "Zeta"})
	mem.AddCompany(store.Company{Type: store.CompanyClient, Name: "Alpha", ParentID: ptr(owner.ID)})
	g := NewGraph(mem)

	clients, err := g.CompaniesByType(context.Background(), store.CompanyClient)
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, "Alpha", clients[0].Name)

	children, err := g.CompaniesByParent(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Alpha", children[0].Name)
}

func TestDefaultClientCompany(t *testing.T) {
	mem := storetest.New()
	g := NewGraph(mem)
	_, err := g.DefaultClientCompany(context.Background())
	require.ErrorIs(t, err, shared.ErrValidation)

	first := mem.AddCompany(store.Company{Type: store.CompanyClient, Name: "Zeta"})
	mem.AddCompany(store.Company{Type: store.CompanyClient, Name: "Alpha"})
	got, err := g.DefaultClientCompany(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

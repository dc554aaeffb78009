package storetest

import (
	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/store"
)

// Tenants is a small tenant graph shared by service tests:
//
//	Agency (owner) ── owner, admin, staff
//	Partner Co (partner) ── partner
//	Client A (client) ── client, viewer
//	  └─ Client A East (sub)
//	Client B (client) ── clientB
type Tenants struct {
	Owner, Partner, ClientA, ClientB, SubA store.Company

	OwnerUser, AdminUser, StaffUser, PartnerUser, ClientUser, ClientViewer, ClientBUser store.User

	ProjectA, ProjectB store.Project
}

// SeedTenants populates m with Tenants.
func SeedTenants(m *Memory) Tenants {
	var t Tenants
	t.Owner = m.AddCompany(store.Company{Type: store.CompanyOwner, Name: "Agency"})
	t.Partner = m.AddCompany(store.Company{Type: store.CompanyPartner, Name: "Partner Co"})
	t.ClientA = m.AddCompany(store.Company{Type: store.CompanyClient, Name: "Client A"})
	t.ClientB = m.AddCompany(store.Company{Type: store.CompanyClient, Name: "Client B"})
	parent := t.ClientA.ID
	t.SubA = m.AddCompany(store.Company{Type: store.CompanySub, Name: "Client A East", ParentID: &parent})

	t.OwnerUser = m.AddUser(store.User{CompanyID: t.Owner.ID, Email: "owner@agency.test", FirstName: "Olive", Role: roles.Owner, IsActive: true})
	t.AdminUser = m.AddUser(store.User{CompanyID: t.Owner.ID, Email: "admin@agency.test", FirstName: "Ada", Role: roles.Admin, IsActive: true})
	t.StaffUser = m.AddUser(store.User{CompanyID: t.Owner.ID, Email: "staff@agency.test", FirstName: "Sam", Role: roles.ClientServices, IsActive: true})
	t.PartnerUser = m.AddUser(store.User{CompanyID: t.Partner.ID, Email: "p@partner.test", FirstName: "Pat", Role: roles.Partner, IsActive: true})
	t.ClientUser = m.AddUser(store.User{CompanyID: t.ClientA.ID, Email: "c@a.test", FirstName: "Cleo", Role: roles.Client, IsActive: true})
	t.ClientViewer = m.AddUser(store.User{CompanyID: t.ClientA.ID, Email: "v@a.test", FirstName: "Vic", Role: roles.ClientViewer, IsActive: true})
	t.ClientBUser = m.AddUser(store.User{CompanyID: t.ClientB.ID, Email: "c@b.test", FirstName: "Bea", Role: roles.Client, IsActive: true})

	t.ProjectA = m.AddProject(store.Project{ClientCompanyID: t.ClientA.ID, Name: "Site audit"})
	t.ProjectB = m.AddProject(store.Project{ClientCompanyID: t.ClientB.ID, Name: "SEO"})
	return t
}

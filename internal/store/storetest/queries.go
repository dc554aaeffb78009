package storetest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

// GetCompany implements store.Queries.GetCompany.
func (m *Memory) GetCompany(ctx context.Context, id string) (store.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetCompany"); err != nil {
		return store.Company{}, err
	}
	c, ok := m.Companies[id]
	if !ok {
		return store.Company{}, notFound("company")
	}
	return c, nil
}

// ListCompaniesByType implements store.Queries.ListCompaniesByType.
func (m *Memory) ListCompaniesByType(ctx context.Context, typ store.CompanyType) ([]store.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListCompaniesByType"); err != nil {
		return nil, err
	}
	var out []store.Company
	for _, c := range m.Companies {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return sortCompanies(out), nil
}

// ListCompaniesByParent implements store.Queries.ListCompaniesByParent.
func (m *Memory) ListCompaniesByParent(ctx context.Context, parentID string) ([]store.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListCompaniesByParent"); err != nil {
		return nil, err
	}
	var out []store.Company
	for _, c := range m.Companies {
		if c.ParentID != nil && *c.ParentID == parentID {
			out = append(out, c)
		}
	}
	return sortCompanies(out), nil
}

// FirstCompanyOfType implements store.Queries.FirstCompanyOfType.
func (m *Memory) FirstCompanyOfType(ctx context.Context, typ store.CompanyType) (store.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FirstCompanyOfType"); err != nil {
		return store.Company{}, err
	}
	var (
		first store.Company
		found bool
	)
	for _, c := range m.Companies {
		if c.Type != typ {
			continue
		}
		if !found || c.CreatedAt.Before(first.CreatedAt) {
			first, found = c, true
		}
	}
	if !found {
		return store.Company{}, notFound("company")
	}
	return first, nil
}

// CountCompaniesByType implements store.Queries.CountCompaniesByType.
func (m *Memory) CountCompaniesByType(ctx context.Context, typ store.CompanyType) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CountCompaniesByType"); err != nil {
		return 0, err
	}
	n := 0
	for _, c := range m.Companies {
		if c.Type == typ {
			n++
		}
	}
	return n, nil
}

// CreateCompany implements store.Queries.CreateCompany.
func (m *Memory) CreateCompany(ctx context.Context, c store.Company) (store.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateCompany"); err != nil {
		return store.Company{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.ParentID != nil {
		if _, ok := m.Companies[*c.ParentID]; !ok {
			return store.Company{}, fmt.Errorf("%w: company references a missing record", shared.ErrValidation)
		}
	}
	c.CreatedAt = m.tick()
	c.UpdatedAt = c.CreatedAt
	m.Companies[c.ID] = c
	return c, nil
}

// GetUser implements store.Queries.GetUser.
func (m *Memory) GetUser(ctx context.Context, id string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetUser"); err != nil {
		return store.User{}, err
	}
	u, ok := m.Users[id]
	if !ok {
		return store.User{}, notFound("user")
	}
	return u, nil
}

// GetUserByEmail implements store.Queries.GetUserByEmail.
func (m *Memory) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetUserByEmail"); err != nil {
		return store.User{}, err
	}
	email = store.NormalizeEmail(email)
	for _, u := range m.Users {
		if u.Email == email {
			return u, nil
		}
	}
	return store.User{}, notFound("user")
}

func sortUsers(in []store.User) []store.User {
	sort.Slice(in, func(i, j int) bool { return in[i].Email < in[j].Email })
	return in
}

// ListUsers implements store.Queries.ListUsers.
func (m *Memory) ListUsers(ctx context.Context) ([]store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListUsers"); err != nil {
		return nil, err
	}
	out := make([]store.User, 0, len(m.Users))
	for _, u := range m.Users {
		out = append(out, u)
	}
	return sortUsers(out), nil
}

// ListUsersByCompany implements store.Queries.ListUsersByCompany.
func (m *Memory) ListUsersByCompany(ctx context.Context, companyID string) ([]store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListUsersByCompany"); err != nil {
		return nil, err
	}
	var out []store.User
	for _, u := range m.Users {
		if u.CompanyID == companyID {
			out = append(out, u)
		}
	}
	return sortUsers(out), nil
}

// CreateUser implements store.Queries.CreateUser.
func (m *Memory) CreateUser(ctx context.Context, u store.User) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateUser"); err != nil {
		return store.User{}, err
	}
	if !u.Role.Valid() {
		return store.User{}, fmt.Errorf("%w: role is required", shared.ErrValidation)
	}
	u.Email = store.NormalizeEmail(u.Email)
	for _, existing := range m.Users {
		if existing.Email == u.Email {
			return store.User{}, fmt.Errorf("%w: user already exists", shared.ErrConflict)
		}
	}
	if _, ok := m.Companies[u.CompanyID]; !ok {
		return store.User{}, fmt.Errorf("%w: user references a missing record", shared.ErrValidation)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Tags == nil {
		u.Tags = []string{}
	}
	u.CreatedAt = m.tick()
	u.UpdatedAt = u.CreatedAt
	m.Users[u.ID] = u
	return u, nil
}

// UpdateUser implements store.Queries.UpdateUser.
func (m *Memory) UpdateUser(ctx context.Context, id string, patch store.UserPatch) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateUser"); err != nil {
		return store.User{}, err
	}
	u, ok := m.Users[id]
	if !ok {
		return store.User{}, notFound("user")
	}
	if patch.CompanyID != nil {
		u.CompanyID = *patch.CompanyID
	}
	if patch.Email != nil {
		u.Email = store.NormalizeEmail(*patch.Email)
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.Tags != nil {
		u.Tags = patch.Tags
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	u.UpdatedAt = m.tick()
	m.Users[id] = u
	return u, nil
}

// SetPasswordHash implements store.Queries.SetPasswordHash.
func (m *Memory) SetPasswordHash(ctx context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SetPasswordHash"); err != nil {
		return err
	}
	u, ok := m.Users[id]
	if !ok {
		return notFound("user")
	}
	u.PasswordHash = hash
	m.Users[id] = u
	return nil
}

// TouchLastLogin implements store.Queries.TouchLastLogin.
func (m *Memory) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("TouchLastLogin"); err != nil {
		return err
	}
	u, ok := m.Users[id]
	if !ok {
		return nil
	}
	at = at.UTC()
	u.LastLogin = &at
	m.Users[id] = u
	return nil
}

// DeleteUser implements store.Queries.DeleteUser.
func (m *Memory) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteUser"); err != nil {
		return err
	}
	if _, ok := m.Users[id]; !ok {
		return notFound("user")
	}
	delete(m.Users, id)
	for gid, g := range m.Grants {
		if g.UserID != nil && *g.UserID == id {
			delete(m.Grants, gid)
		}
	}
	return nil
}

// GetProject implements store.Queries.GetProject.
func (m *Memory) GetProject(ctx context.Context, id string) (store.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetProject"); err != nil {
		return store.Project{}, err
	}
	p, ok := m.Projects[id]
	if !ok {
		return store.Project{}, notFound("project")
	}
	return p, nil
}

// ListProjects implements store.Queries.ListProjects.
func (m *Memory) ListProjects(ctx context.Context) ([]store.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListProjects"); err != nil {
		return nil, err
	}
	out := make([]store.Project, 0, len(m.Projects))
	for _, p := range m.Projects {
		out = append(out, p)
	}
	return newestFirst(out), nil
}

// ListProjectsByClient implements store.Queries.ListProjectsByClient.
func (m *Memory) ListProjectsByClient(ctx context.Context, clientCompanyID string) ([]store.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListProjectsByClient"); err != nil {
		return nil, err
	}
	var out []store.Project
	for _, p := range m.Projects {
		if p.ClientCompanyID == clientCompanyID {
			out = append(out, p)
		}
	}
	return newestFirst(out), nil
}

// ListGrantedProjects mirrors the SQL join without DISTINCT: a project granted
// both to the user and to the company is returned twice, so callers' dedupe
// is exercised.
func (m *Memory) ListGrantedProjects(ctx context.Context, userID, companyID string) ([]store.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListGrantedProjects"); err != nil {
		return nil, err
	}
	var out []store.Project
	for _, g := range m.Grants {
		if !grantMatches(g, userID, companyID) {
			continue
		}
		if p, ok := m.Projects[g.ProjectID]; ok {
			out = append(out, p)
		}
	}
	return newestFirst(out), nil
}

func grantMatches(g store.ProjectAccess, userID, companyID string) bool {
	return (g.UserID != nil && *g.UserID == userID) || (g.CompanyID != nil && *g.CompanyID == companyID)
}

// HasProjectGrant implements store.Queries.HasProjectGrant.
func (m *Memory) HasProjectGrant(ctx context.Context, projectID, userID, companyID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("HasProjectGrant"); err != nil {
		return false, err
	}
	for _, g := range m.Grants {
		if g.ProjectID == projectID && grantMatches(g, userID, companyID) {
			return true, nil
		}
	}
	return false, nil
}

// CreateProject implements store.Queries.CreateProject.
func (m *Memory) CreateProject(ctx context.Context, p store.Project) (store.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateProject"); err != nil {
		return store.Project{}, err
	}
	if _, ok := m.Companies[p.ClientCompanyID]; !ok {
		return store.Project{}, fmt.Errorf("%w: project references a missing record", shared.ErrValidation)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = store.ProjectActive
	}
	p.CreatedAt = m.tick()
	p.UpdatedAt = p.CreatedAt
	m.Projects[p.ID] = p
	return p, nil
}

// ListProjectGrants implements store.Queries.ListProjectGrants.
func (m *Memory) ListProjectGrants(ctx context.Context, projectID string) ([]store.ProjectAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListProjectGrants"); err != nil {
		return nil, err
	}
	var out []store.ProjectAccess
	for _, g := range m.Grants {
		if g.ProjectID == projectID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.Before(out[j].GrantedAt) })
	return out, nil
}

// CreateProjectGrant implements store.Queries.CreateProjectGrant.
func (m *Memory) CreateProjectGrant(ctx context.Context, g store.ProjectAccess) (store.ProjectAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateProjectGrant"); err != nil {
		return store.ProjectAccess{}, err
	}
	if (g.CompanyID == nil) == (g.UserID == nil) {
		return store.ProjectAccess{}, fmt.Errorf("%w: grant must name exactly one of user or company", shared.ErrValidation)
	}
	for _, existing := range m.Grants {
		if existing.ProjectID != g.ProjectID {
			continue
		}
		if (g.UserID != nil && existing.UserID != nil && *existing.UserID == *g.UserID) ||
			(g.CompanyID != nil && existing.CompanyID != nil && *existing.CompanyID == *g.CompanyID) {
			return store.ProjectAccess{}, fmt.Errorf("%w: project access already exists", shared.ErrConflict)
		}
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.AccessLevel == "" {
		g.AccessLevel = store.AccessView
	}
	g.GrantedAt = m.tick()
	m.Grants[g.ID] = g
	return g, nil
}

// DeleteProjectGrant implements store.Queries.DeleteProjectGrant.
func (m *Memory) DeleteProjectGrant(ctx context.Context, projectID, grantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteProjectGrant"); err != nil {
		return err
	}
	g, ok := m.Grants[grantID]
	if !ok || g.ProjectID != projectID {
		return notFound("project access")
	}
	delete(m.Grants, grantID)
	return nil
}

// GetDigitalAudit implements store.Queries.GetDigitalAudit.
func (m *Memory) GetDigitalAudit(ctx context.Context, id string) (store.DigitalAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetDigitalAudit"); err != nil {
		return store.DigitalAudit{}, err
	}
	a, ok := m.Audits[id]
	if !ok {
		return store.DigitalAudit{}, notFound("digital audit")
	}
	return a, nil
}

// ListAuditsByClients implements store.Queries.ListAuditsByClients.
func (m *Memory) ListAuditsByClients(ctx context.Context, clientCompanyIDs []string) ([]store.DigitalAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListAuditsByClients"); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(clientCompanyIDs))
	for _, id := range clientCompanyIDs {
		want[id] = true
	}
	var out []store.DigitalAudit
	for _, a := range m.Audits {
		if want[a.ClientCompanyID] {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// CountPublishedAudits implements store.Queries.CountPublishedAudits.
func (m *Memory) CountPublishedAudits(ctx context.Context, clientCompanyIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CountPublishedAudits"); err != nil {
		return 0, err
	}
	want := make(map[string]bool, len(clientCompanyIDs))
	for _, id := range clientCompanyIDs {
		want[id] = true
	}
	n := 0
	for _, a := range m.Audits {
		if want[a.ClientCompanyID] && a.Status == store.AuditPublished {
			n++
		}
	}
	return n, nil
}

// CreateDigitalAudit implements store.Queries.CreateDigitalAudit.
func (m *Memory) CreateDigitalAudit(ctx context.Context, a store.DigitalAudit) (store.DigitalAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateDigitalAudit"); err != nil {
		return store.DigitalAudit{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = store.AuditDraft
	}
	if a.AccessType == "" {
		a.AccessType = store.AuditPermanent
	}
	a.CreatedAt = m.tick()
	a.UpdatedAt = a.CreatedAt
	m.Audits[a.ID] = a
	return a, nil
}

// PublishDigitalAudit implements store.Queries.PublishDigitalAudit.
func (m *Memory) PublishDigitalAudit(ctx context.Context, id string, at time.Time) (store.DigitalAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("PublishDigitalAudit"); err != nil {
		return store.DigitalAudit{}, err
	}
	a, ok := m.Audits[id]
	if !ok {
		return store.DigitalAudit{}, notFound("digital audit")
	}
	at = at.UTC()
	a.Status = store.AuditPublished
	a.PublishedAt = &at
	a.UpdatedAt = at
	m.Audits[id] = a
	return a, nil
}

// GetAccessRequest implements store.Queries.GetAccessRequest.
func (m *Memory) GetAccessRequest(ctx context.Context, id string) (store.AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetAccessRequest"); err != nil {
		return store.AccessRequest{}, err
	}
	r, ok := m.AccessRequests[id]
	if !ok {
		return store.AccessRequest{}, notFound("access request")
	}
	return r, nil
}

// LockAccessRequest implements store.Queries.LockAccessRequest.
func (m *Memory) LockAccessRequest(ctx context.Context, id string) (store.AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("LockAccessRequest"); err != nil {
		return store.AccessRequest{}, err
	}
	r, ok := m.AccessRequests[id]
	if !ok {
		return store.AccessRequest{}, notFound("access request")
	}
	return r, nil
}

// ListPendingAccessRequests implements store.Queries.ListPendingAccessRequests.
func (m *Memory) ListPendingAccessRequests(ctx context.Context) ([]store.AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListPendingAccessRequests"); err != nil {
		return nil, err
	}
	var out []store.AccessRequest
	for _, r := range m.AccessRequests {
		if r.Status == store.RequestPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CountPendingAccessRequests implements store.Queries.CountPendingAccessRequests.
func (m *Memory) CountPendingAccessRequests(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CountPendingAccessRequests"); err != nil {
		return 0, err
	}
	n := 0
	for _, r := range m.AccessRequests {
		if r.Status == store.RequestPending {
			n++
		}
	}
	return n, nil
}

// CreateAccessRequest implements store.Queries.CreateAccessRequest.
func (m *Memory) CreateAccessRequest(ctx context.Context, r store.AccessRequest) (store.AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateAccessRequest"); err != nil {
		return store.AccessRequest{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.RequesterEmail = store.NormalizeEmail(r.RequesterEmail)
	r.Status = store.RequestPending
	r.CreatedAt = m.tick()
	m.AccessRequests[r.ID] = r
	return r, nil
}

// ResolveAccessRequest implements store.Queries.ResolveAccessRequest.
func (m *Memory) ResolveAccessRequest(ctx context.Context, id string, status store.RequestStatus, reviewerID string, at time.Time) (store.AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ResolveAccessRequest"); err != nil {
		return store.AccessRequest{}, err
	}
	r, ok := m.AccessRequests[id]
	if !ok {
		return store.AccessRequest{}, notFound("access request")
	}
	at = at.UTC()
	r.Status = status
	r.ReviewedBy = &reviewerID
	r.ReviewedAt = &at
	m.AccessRequests[id] = r
	return r, nil
}

// InsertActivity implements store.Queries.InsertActivity.
func (m *Memory) InsertActivity(ctx context.Context, e store.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertActivity"); err != nil {
		return err
	}
	if e.UserID == "" || e.Action == "" {
		return fmt.Errorf("%w: activity requires user and action", shared.ErrValidation)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.tick()
	}
	m.Activity = append(m.Activity, e)
	return nil
}

func (m *Memory) filterActivity(f store.ActivityFilter) []store.ActivityEntry {
	var out []store.ActivityEntry
	for _, e := range m.Activity {
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		if f.ResourceType != "" && e.ResourceType != f.ResourceType {
			continue
		}
		if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ListActivity implements store.Queries.ListActivity.
func (m *Memory) ListActivity(ctx context.Context, f store.ActivityFilter) ([]store.ActivityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListActivity"); err != nil {
		return nil, err
	}
	all := m.filterActivity(f)
	if f.Offset >= len(all) {
		return nil, nil
	}
	all = all[f.Offset:]
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// CountActivity implements store.Queries.CountActivity.
func (m *Memory) CountActivity(ctx context.Context, f store.ActivityFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CountActivity"); err != nil {
		return 0, err
	}
	return len(m.filterActivity(f)), nil
}

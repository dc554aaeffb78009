// Package storetest provides an in-memory stand-in for the PostgreSQL store
// with per-method error injection and transaction rollback.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

// Memory implements the store query surface over maps.
type Memory struct {
	mu sync.Mutex

	Companies      map[string]store.Company
	Users          map[string]store.User
	Projects       map[string]store.Project
	Grants         map[string]store.ProjectAccess
	Audits         map[string]store.DigitalAudit
	AccessRequests map[string]store.AccessRequest
	Activity       []store.ActivityEntry

	// Fail injects an error for the named method, e.g. Fail["CreateUser"].
	Fail map[string]error
	// Calls counts invocations per method name.
	Calls map[string]int

	clock time.Time
}

// New returns an empty Memory.
func New() *Memory {
	return &Memory{
		Companies:      map[string]store.Company{},
		Users:          map[string]store.User{},
		Projects:       map[string]store.Project{},
		Grants:         map[string]store.ProjectAccess{},
		Audits:         map[string]store.DigitalAudit{},
		AccessRequests: map[string]store.AccessRequest{},
		Fail:           map[string]error{},
		Calls:          map[string]int{},
		clock:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *Memory) enter(method string) error {
	m.Calls[method]++
	return m.Fail[method]
}

// tick returns a strictly increasing timestamp so ordering is deterministic.
func (m *Memory) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", shared.ErrNotFound, what)
}

// AddCompany seeds a company and returns it.
func (m *Memory) AddCompany(c store.Company) store.Company {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.tick()
	}
	m.Companies[c.ID] = c
	return c
}

// AddUser seeds a user and returns it.
func (m *Memory) AddUser(u store.User) store.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = store.NormalizeEmail(u.Email)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.tick()
	}
	m.Users[u.ID] = u
	return u
}

// AddProject seeds a project and returns it.
func (m *Memory) AddProject(p store.Project) store.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = store.ProjectActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.tick()
	}
	m.Projects[p.ID] = p
	return p
}

// AddGrant seeds a project grant and returns it.
func (m *Memory) AddGrant(g store.ProjectAccess) store.ProjectAccess {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.GrantedAt.IsZero() {
		g.GrantedAt = m.tick()
	}
	m.Grants[g.ID] = g
	return g
}

// AddAudit seeds a digital audit and returns it.
func (m *Memory) AddAudit(a store.DigitalAudit) store.DigitalAudit {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.tick()
	}
	m.Audits[a.ID] = a
	return a
}

// AddAccessRequest seeds an access request and returns it.
func (m *Memory) AddAccessRequest(r store.AccessRequest) store.AccessRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = store.RequestPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.tick()
	}
	m.AccessRequests[r.ID] = r
	return r
}

// ActivityActions returns the recorded activity actions in insertion order.
func (m *Memory) ActivityActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Activity))
	for i, e := range m.Activity {
		out[i] = e.Action
	}
	return out
}

// WithTx runs fn against m and restores the previous state when fn fails.
func (m *Memory) WithTx(ctx context.Context, fn func(*Memory) error) error {
	m.mu.Lock()
	if err := m.enter("WithTx"); err != nil {
		m.mu.Unlock()
		return err
	}
	snap := m.snapshot()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.restore(snap)
		m.mu.Unlock()
		return err
	}
	return nil
}

type snapshot struct {
	companies      map[string]store.Company
	users          map[string]store.User
	projects       map[string]store.Project
	grants         map[string]store.ProjectAccess
	audits         map[string]store.DigitalAudit
	accessRequests map[string]store.AccessRequest
	activity       []store.ActivityEntry
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *Memory) snapshot() snapshot {
	return snapshot{
		companies:      cloneMap(m.Companies),
		users:          cloneMap(m.Users),
		projects:       cloneMap(m.Projects),
		grants:         cloneMap(m.Grants),
		audits:         cloneMap(m.Audits),
		accessRequests: cloneMap(m.AccessRequests),
		activity:       append([]store.ActivityEntry(nil), m.Activity...),
	}
}

func (m *Memory) restore(s snapshot) {
	m.Companies = s.companies
	m.Users = s.users
	m.Projects = s.projects
	m.Grants = s.grants
	m.Audits = s.audits
	m.AccessRequests = s.accessRequests
	m.Activity = s.activity
}

func sortCompanies(in []store.Company) []store.Company {
	sort.Slice(in, func(i, j int) bool {
		if in[i].Name != in[j].Name {
			return in[i].Name < in[j].Name
		}
		return in[i].ID < in[j].ID
	})
	return in
}

func newestFirst(in []store.Project) []store.Project {
	sort.Slice(in, func(i, j int) bool {
		if !in[i].CreatedAt.Equal(in[j].CreatedAt) {
			return in[i].CreatedAt.After(in[j].CreatedAt)
		}
		return in[i].ID < in[j].ID
	})
	return in
}

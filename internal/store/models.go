// Package store holds the portal's persistent entities and their PostgreSQL queries.
package store

import (
	"time"

	"github.com/clientportal/portal/internal/roles"
)

// CompanyType positions a company in the tenant graph.
type CompanyType string

const (
	CompanyOwner   CompanyType = "owner"
	CompanyPartner CompanyType = "partner"
	CompanyClient  CompanyType = "client"
	CompanySub     CompanyType = "sub"
)

// Valid reports whether t is a known company type.
func (t CompanyType) Valid() bool {
	switch t {
	case CompanyOwner, CompanyPartner, CompanyClient, CompanySub:
		return true
	}
	return false
}

// Company is a tenant.
type Company struct {
	ID           string         `json:"id"`
	Type         CompanyType    `json:"type"`
	ParentID     *string        `json:"parentId"`
	Name         string         `json:"name"`
	Domain       string         `json:"domain"`
	LogoURL      string         `json:"logoUrl"`
	PrimaryColor string         `json:"primaryColor"`
	Settings     map[string]any `json:"settings"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// User is an account belonging to exactly one company.
type User struct {
	ID           string     `json:"id"`
	CompanyID    string     `json:"companyId"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Role         roles.Role `json:"role"`
	Tags         []string   `json:"tags"`
	IsActive     bool       `json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Public returns a copy of the user without the credential hash.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// PublicUsers strips credential hashes from a list.
func PublicUsers(in []User) []User {
	out := make([]User, len(in))
	for i, u := range in {
		out[i] = u.Public()
	}
	return out
}

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectDraft     ProjectStatus = "draft"
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

// Project belongs to a client company.
type Project struct {
	ID              string         `json:"id"`
	ClientCompanyID string         `json:"clientCompanyId"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Status          ProjectStatus  `json:"status"`
	CreatedBy       string         `json:"createdBy"`
	Settings        map[string]any `json:"settings"`
	StartDate       *time.Time     `json:"startDate"`
	EndDate         *time.Time     `json:"endDate"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// AccessLevel of a project grant.
type AccessLevel string

const (
	AccessView AccessLevel = "view"
	AccessEdit AccessLevel = "edit"
)

// ProjectAccess grants a project to one user or one whole company.
type ProjectAccess struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"projectId"`
	CompanyID   *string     `json:"companyId"`
	UserID      *string     `json:"userId"`
	AccessLevel AccessLevel `json:"accessLevel"`
	GrantedBy   string      `json:"grantedBy"`
	GrantedAt   time.Time   `json:"grantedAt"`
}

// AuditStatus is the publication state of a digital audit.
type AuditStatus string

const (
	AuditDraft     AuditStatus = "draft"
	AuditReview    AuditStatus = "review"
	AuditPublished AuditStatus = "published"
	AuditArchived  AuditStatus = "archived"
)

// AuditAccessType controls how long a client may view an audit.
type AuditAccessType string

const (
	AuditPermanent AuditAccessType = "permanent"
	AuditTemporary AuditAccessType = "temporary"
)

// DigitalAudit is an HTML report delivered to a client company.
type DigitalAudit struct {
	ID              string          `json:"id"`
	ClientCompanyID string          `json:"clientCompanyId"`
	Title           string          `json:"title"`
	HTMLContent     string          `json:"htmlContent"`
	Status          AuditStatus     `json:"status"`
	AccessType      AuditAccessType `json:"accessType"`
	AccessExpiresAt *time.Time      `json:"accessExpiresAt"`
	CreatedBy       string          `json:"createdBy"`
	PublishedAt     *time.Time      `json:"publishedAt"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Expired reports whether a temporary audit's access window has closed.
func (a DigitalAudit) Expired(now time.Time) bool {
	return a.AccessType == AuditTemporary && a.AccessExpiresAt != nil && !now.Before(*a.AccessExpiresAt)
}

// RequestStatus is the review state of an access request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
)

// AccessRequest asks for a new platform account.
type AccessRequest struct {
	ID             string        `json:"id"`
	RequesterEmail string        `json:"requesterEmail"`
	RequesterName  string        `json:"requesterName"`
	CompanyID      *string       `json:"companyId"`
	RequestedRole  roles.Role    `json:"requestedRole"`
	Message        string        `json:"message"`
	Status         RequestStatus `json:"status"`
	ReviewedBy     *string       `json:"reviewedBy"`
	ReviewedAt     *time.Time    `json:"reviewedAt"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// ActivityEntry is one row of the activity trail.
type ActivityEntry struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType,omitempty"`
	ResourceID   string         `json:"resourceId,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

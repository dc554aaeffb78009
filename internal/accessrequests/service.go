// Package accessrequests handles self-service access requests and their
// review. Approving a request is the only way an account is minted outside
// direct administration.
package accessrequests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/clientportal/portal/internal/access"
	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
	"github.com/clientportal/portal/internal/tenant"
)

// ActionReview is the activity action written for every review.
const ActionReview = "REVIEW_ACCESS_REQUEST"

// IdempotencyModule scopes submission keys in the idempotency store.
const IdempotencyModule = "access-requests"

var validate = validator.New()

// RepositoryPort describes the store operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListPendingAccessRequests(ctx context.Context) ([]store.AccessRequest, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetCompany(ctx context.Context, id string) (store.Company, error)
	CreateAccessRequest(ctx context.Context, r store.AccessRequest) (store.AccessRequest, error)
}

// TxRepository exposes the review transaction.
type TxRepository interface {
	LockAccessRequest(ctx context.Context, id string) (store.AccessRequest, error)
	GetCompany(ctx context.Context, id string) (store.Company, error)
	CreateUser(ctx context.Context, u store.User) (store.User, error)
	ResolveAccessRequest(ctx context.Context, id string, status store.RequestStatus, reviewerID string, at time.Time) (store.AccessRequest, error)
	InsertActivity(ctx context.Context, e store.ActivityEntry) error
}

// KeyStore deduplicates submissions carrying an Idempotency-Key.
type KeyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Service orchestrates access request flows.
type Service struct {
	repo   RepositoryPort
	engine *access.Engine
	graph  *tenant.Graph
	keys   KeyStore
	logger *slog.Logger
	now    func() time.Time
}

// Option customises Service.
type Option func(*Service)

// WithKeyStore enables Idempotency-Key handling on Submit.
func WithKeyStore(keys KeyStore) Option {
	return func(s *Service) { s.keys = keys }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the review timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the access request service.
func NewService(repo RepositoryPort, engine *access.Engine, graph *tenant.Graph, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		engine: engine,
		graph:  graph,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitInput is an unauthenticated request for an account.
type SubmitInput struct {
	Email          string
	Name           string
	CompanyID      string
	RequestedRole  roles.Role
	Message        string
	IdempotencyKey string
}

// ReviewInput carries a reviewer's decision.
type ReviewInput struct {
	Status    store.RequestStatus
	CompanyID string
}

// ReviewResult is the resolved request plus the account minted on approval.
type ReviewResult struct {
	Request store.AccessRequest
	User    *store.User
}

func (s *Service) reviewer(ctx context.Context, actorID string) (access.Actor, error) {
	actor, err := s.engine.ResolveActor(ctx, actorID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return access.Actor{}, shared.ErrForbidden
		}
		return access.Actor{}, err
	}
	if !roles.Can(actor.User.Role, roles.ActionAccessRequestReview) {
		return access.Actor{}, shared.ErrForbidden
	}
	return actor, nil
}

// Pending lists requests awaiting review, oldest first.
func (s *Service) Pending(ctx context.Context, actorID string) ([]store.AccessRequest, error) {
	if _, err := s.reviewer(ctx, actorID); err != nil {
		return nil, err
	}
	pending, err := s.repo.ListPendingAccessRequests(ctx)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		pending = []store.AccessRequest{}
	}
	return pending, nil
}

func (in *SubmitInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = store.NormalizeEmail(in.Email)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if err := validate.Var(in.Email, "required,email"); err != nil {
		return fmt.Errorf("%w: email is invalid", shared.ErrValidation)
	}
	if !in.RequestedRole.Valid() {
		return fmt.Errorf("%w: %w", shared.ErrValidation, roles.ErrUnknownRole)
	}
	if in.RequestedRole == roles.Owner || in.RequestedRole == roles.Admin {
		return fmt.Errorf("%w: role %s cannot be requested", shared.ErrValidation, in.RequestedRole)
	}
	return nil
}

// Submit records a pending request. A repeated Idempotency-Key is a conflict;
// the key is released again when the request could not be stored.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (req store.AccessRequest, err error) {
	if err := in.normalize(); err != nil {
		return store.AccessRequest{}, err
	}
	if in.IdempotencyKey != "" && s.keys != nil {
		if err := s.keys.CheckAndInsert(ctx, in.IdempotencyKey, IdempotencyModule); err != nil {
			return store.AccessRequest{}, err
		}
		defer func() {
			if err == nil {
				return
			}
			if derr := s.keys.Delete(context.WithoutCancel(ctx), in.IdempotencyKey, IdempotencyModule); derr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}()
	}

	if _, err := s.repo.GetUserByEmail(ctx, in.Email); err == nil {
		return store.AccessRequest{}, fmt.Errorf("%w: an account with this email already exists", shared.ErrConflict)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return store.AccessRequest{}, err
	}

	var companyID *string
	if in.CompanyID != "" {
		if _, err := s.repo.GetCompany(ctx, in.CompanyID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return store.AccessRequest{}, fmt.Errorf("%w: company does not exist", shared.ErrValidation)
			}
			return store.AccessRequest{}, err
		}
		companyID = &in.CompanyID
	}

	return s.repo.CreateAccessRequest(ctx, store.AccessRequest{
		RequesterEmail: in.Email,
		RequesterName:  in.Name,
		CompanyID:      companyID,
		RequestedRole:  in.RequestedRole,
		Message:        in.Message,
	})
}

// SplitName breaks a requester name into first and last names. The first
// token becomes the first name; the rest, joined by single spaces, the last.
func SplitName(name string) (first, last string) {
	parts := strings.Fields(name)
	first, last = "User", "Account"
	if len(parts) > 0 {
		first = parts[0]
	}
	if len(parts) > 1 {
		last = strings.Join(parts[1:], " ")
	}
	return first, last
}

// Review approves or denies a pending request. Approval mints the account,
// flips the request and writes the activity entry in one transaction, so
// either all of it is stored or none.
func (s *Service) Review(ctx context.Context, actorID, id string, in ReviewInput) (ReviewResult, error) {
	if in.Status != store.RequestApproved && in.Status != store.RequestDenied {
		return ReviewResult{}, fmt.Errorf("%w: status must be approved or denied", shared.ErrValidation)
	}
	reviewer, err := s.reviewer(ctx, actorID)
	if err != nil {
		return ReviewResult{}, err
	}

	var result ReviewResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.LockAccessRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != store.RequestPending {
			return fmt.Errorf("%w: access request was already %s", shared.ErrConflict, req.Status)
		}

		details := map[string]any{"status": string(in.Status)}
		if in.Status == store.RequestApproved {
			user, err := s.approve(ctx, tx, reviewer, req, in.CompanyID)
			if err != nil {
				return err
			}
			result.User = &user
			details["userId"] = user.ID
			details["companyId"] = user.CompanyID
		}

		result.Request, err = tx.ResolveAccessRequest(ctx, id, in.Status, actorID, s.now())
		if err != nil {
			return err
		}
		return tx.InsertActivity(ctx, store.Activity(ctx, actorID, ActionReview, "access_request", id, details))
	})
	if err != nil {
		return ReviewResult{}, err
	}
	return result, nil
}

func (s *Service) approve(ctx context.Context, tx TxRepository, reviewer access.Actor, req store.AccessRequest, override string) (store.User, error) {
	if !roles.CanManage(reviewer.User.Role, req.RequestedRole) {
		return store.User{}, fmt.Errorf("%w: cannot grant role %s", shared.ErrForbidden, req.RequestedRole)
	}
	companyID, err := s.targetCompany(ctx, tx, reviewer, req, override)
	if err != nil {
		return store.User{}, err
	}
	first, last := SplitName(req.RequesterName)
	return tx.CreateUser(ctx, store.User{
		CompanyID: companyID,
		Email:     req.RequesterEmail,
		FirstName: first,
		LastName:  last,
		Role:      req.RequestedRole,
		IsActive:  true,
	})
}

// targetCompany picks the company for an approved account: the reviewer's
// override, then the company named in the request, then the default client
// company. Whatever is chosen must exist and be visible to the reviewer.
func (s *Service) targetCompany(ctx context.Context, tx TxRepository, reviewer access.Actor, req store.AccessRequest, override string) (string, error) {
	companyID := override
	if companyID == "" && req.CompanyID != nil {
		companyID = *req.CompanyID
	}
	if companyID == "" {
		fallback, err := s.graph.DefaultClientCompany(ctx)
		if err != nil {
			return "", err
		}
		companyID = fallback.ID
	}
	if _, err := tx.GetCompany(ctx, companyID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", fmt.Errorf("%w: company does not exist", shared.ErrValidation)
		}
		return "", err
	}
	ok, err := s.engine.CanActorAccessCompany(ctx, reviewer, companyID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: company is not accessible", shared.ErrForbidden)
	}
	return companyID, nil
}

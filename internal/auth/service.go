package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// Store is the persistence surface used by the auth service.
type Store interface {
	GetUser(ctx context.Context, id string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetCompany(ctx context.Context, id string) (store.Company, error)
	CreateUser(ctx context.Context, u store.User) (store.User, error)
	SetPasswordHash(ctx context.Context, id, hash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	InsertActivity(ctx context.Context, e store.ActivityEntry) error
}

// Service wraps authentication business rules.
type Service struct {
	store             Store
	tokens            *TokenIssuer
	revoker           Revoker
	logger            *slog.Logger
	allowRegistration bool
	bcryptCost        int
	now               func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRevoker enables logout revocation checks.
func WithRevoker(r Revoker) Option {
	return func(s *Service) { s.revoker = r }
}

// WithRegistration toggles self-service sign-up.
func WithRegistration(allowed bool) Option {
	return func(s *Service) { s.allowRegistration = allowed }
}

// WithBcryptCost overrides the bcrypt work factor.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService constructs a new Service.
func NewService(st Store, tokens *TokenIssuer, opts ...Option) *Service {
	s := &Service{
		store:             st,
		tokens:            tokens,
		logger:            slog.Default(),
		allowRegistration: true,
		bcryptCost:        bcrypt.DefaultCost,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate validates email/password credentials and issues a session.
// The password is checked before the active flag, so only a caller who knows
// the password learns that the account is inactive.
func (s *Service) Authenticate(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return LoginResult{}, shared.ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if user.PasswordHash == "" {
		return LoginResult{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return LoginResult{}, shared.ErrAccountInactive
	}
	now := s.now().UTC()
	if err := s.store.TouchLastLogin(ctx, user.ID, now); err != nil {
		return LoginResult{}, err
	}
	user.LastLogin = &now
	session, _, err := s.tokens.Issue(user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: user.Public(), Token: session.Token, Expires: session.ExpiresAt}, nil
}

func (s *Service) verify(ctx context.Context, token string) (Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return Claims{}, err
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Claims{}, err
		}
		if revoked {
			return Claims{}, fmt.Errorf("%w: revoked", shared.ErrInvalidToken)
		}
	}
	return claims, nil
}

// VerifySession validates a token and returns its user id. It does not look
// at the account's active flag.
func (s *Service) VerifySession(ctx context.Context, token string) (string, error) {
	claims, err := s.verify(ctx, token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Principal resolves a token to a live, active account.
func (s *Service) Principal(ctx context.Context, token string) (shared.Principal, error) {
	userID, err := s.VerifySession(ctx, token)
	if err != nil {
		return shared.Principal{}, err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Principal{}, shared.ErrAccountInactive
		}
		return shared.Principal{}, err
	}
	if !user.IsActive {
		return shared.Principal{}, shared.ErrAccountInactive
	}
	return shared.Principal{UserID: user.ID, CompanyID: user.CompanyID, Email: user.Email, Role: user.Role}, nil
}

// Register creates an account through self-service sign-up. Only viewer roles
// may be requested, and only in a company of the matching side.
func (s *Service) Register(ctx context.Context, in RegisterInput) (LoginResult, error) {
	if !s.allowRegistration {
		return LoginResult{}, fmt.Errorf("%w: registration is disabled", shared.ErrForbidden)
	}
	if len(in.Password) < MinPasswordLength {
		return LoginResult{}, fmt.Errorf("%w: password must be at least %d characters", shared.ErrValidation, MinPasswordLength)
	}
	if in.Role.Family() != roles.FamilyViewer {
		return LoginResult{}, fmt.Errorf("%w: self-registration is limited to viewer roles", shared.ErrForbidden)
	}
	company, err := s.store.GetCompany(ctx, in.CompanyID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return LoginResult{}, fmt.Errorf("%w: company does not exist", shared.ErrValidation)
		}
		return LoginResult{}, err
	}
	if !registrationAllowed(in.Role, company.Type) {
		return LoginResult{}, fmt.Errorf("%w: role %s cannot join a %s company", shared.ErrForbidden, in.Role, company.Type)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: hash password: %w", err)
	}
	user, err := s.store.CreateUser(ctx, store.User{
		CompanyID:    company.ID,
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         in.Role,
		IsActive:     true,
	})
	if err != nil {
		return LoginResult{}, err
	}
	session, _, err := s.tokens.Issue(user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: user.Public(), Token: session.Token, Expires: session.ExpiresAt}, nil
}

func registrationAllowed(role roles.Role, typ store.CompanyType) bool {
	switch role {
	case roles.PartnerViewer:
		return typ == store.CompanyPartner
	case roles.ClientViewer:
		return typ == store.CompanyClient || typ == store.CompanySub
	}
	return false
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return fmt.Errorf("%w: current password is incorrect", shared.ErrValidation)
	}
	if len(next) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", shared.ErrValidation, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	return s.store.SetPasswordHash(ctx, userID, string(hash))
}

// CurrentUser returns the caller's account, company and permitted actions.
func (s *Service) CurrentUser(ctx context.Context, userID string) (Profile, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	company, err := s.store.GetCompany(ctx, user.CompanyID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		User:        user.Public(),
		Company:     company,
		Family:      user.Role.Family(),
		Permissions: roles.PermittedActions(user.Role).Sorted(),
	}, nil
}

// Logout revokes the presented token and records the logout.
func (s *Service) Logout(ctx context.Context, userID, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}
	if s.revoker != nil {
		if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return err
		}
	} else {
		s.logger.Warn("logout without revocation list; token stays valid until expiry", slog.String("user_id", userID))
	}
	meta := shared.RequestMetaFromContext(ctx)
	return s.store.InsertActivity(ctx, store.ActivityEntry{
		UserID:    userID,
		Action:    "LOGOUT",
		Details:   map[string]any{"ip": meta.IP},
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
}

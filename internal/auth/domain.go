package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/store"
)

// Claims are the JWT claims of a session token. The subject is the user id
// and the ID is a ULID used as the revocation key.
type Claims struct {
	jwt.RegisteredClaims
}

// Session is a freshly issued token and its expiry.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LoginResult is returned by Authenticate and Register.
type LoginResult struct {
	User    store.User `json:"user"`
	Token   string     `json:"token"`
	Expires time.Time  `json:"expiresAt"`
}

// RegisterInput carries a self-service sign-up.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	CompanyID string
	Role      roles.Role
}

// Profile is the caller's own account view.
type Profile struct {
	User        store.User     `json:"user"`
	Company     store.Company  `json:"company"`
	Family      roles.Family   `json:"family"`
	Permissions []roles.Action `json:"permissions"`
}

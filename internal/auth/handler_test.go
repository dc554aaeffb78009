package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/clientportal/portal/internal/auth"
	"github.com/clientportal/portal/internal/roles"
	"github.com/clientportal/portal/internal/store"
	"github.com/clientportal/portal/internal/store/storetest"
	_ "github.com/clientportal/portal/testing"
)

type env struct {
	router  http.Handler
	mem     *storetest.Memory
	company store.Company
	user    store.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mem := storetest.New()
	company := mem.AddCompany(store.Company{Type: store.CompanyClient, Name: "Acme"})
	h, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	user := mem.AddUser(store.User{CompanyID: company.ID, Email: "ann@acme.test", PasswordHash: string(h), FirstName: "Ann", Role: roles.Client, IsActive: true})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens, err := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", "portal-test", time.Hour)
	require.NoError(t, err)
	svc := auth.NewService(mem, tokens, auth.WithRevoker(auth.NewRevocationList(client, "")), auth.WithBcryptCost(bcrypt.MinCost))
	mw := auth.NewMiddleware(svc, nil, nil)

	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		auth.NewHandler(nil, svc).MountRoutes(r, mw.Handler)
	})
	return &env{router: r, mem: mem, company: company, user: user}
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func login(t *testing.T, e *env, password string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ann@acme.test", "password": password})
	var out struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	return rr, out.Token
}

func TestLoginHidesPasswordHash(t *testing.T) {
	e := newEnv(t)
	rr, token := login(t, e, "hunter22")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotEmpty(t, token)
	assert.NotContains(t, rr.Body.String(), "$2a$")
	assert.NotContains(t, rr.Body.String(), "passwordHash")
}

func TestLoginInvalidCredentials(t *testing.T) {
	e := newEnv(t)
	rr, _ := login(t, e, "nope")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMeAndLogout(t *testing.T) {
	e := newEnv(t)
	_, token := login(t, e, "hunter22")

	rr := e.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var profile struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Family      string   `json:"family"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &profile))
	assert.Equal(t, e.user.ID, profile.User.ID)
	assert.Equal(t, "client", profile.Family)

	rr = e.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []string{"LOGOUT"}, e.mem.ActivityActions())

	rr = e.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid token")
}

func TestMeWithoutToken(t *testing.T) {
	e := newEnv(t)
	rr := e.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "No token provided")
}

func TestRegisterEndpoint(t *testing.T) {
	e := newEnv(t)
	rr := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "viewer@acme.test", "password": "secret1", "firstName": "Vi", "lastName": "Ewer",
		"companyId": e.company.ID, "role": "client-viewer",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "boss@acme.test", "password": "secret1", "firstName": "B", "lastName": "Oss",
		"companyId": e.company.ID, "role": "owner",
	})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "odd@acme.test", "password": "secret1", "firstName": "O", "lastName": "Dd",
		"companyId": e.company.ID, "role": "emperor",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChangePasswordEndpoint(t *testing.T) {
	e := newEnv(t)
	_, token := login(t, e, "hunter22")

	rr := e.do(t, http.MethodPost, "/api/auth/change-password", token, map[string]string{"currentPassword": "bad", "newPassword": "another1"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPost, "/api/auth/change-password", token, map[string]string{"currentPassword": "hunter22", "newPassword": "another1"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr, _ = login(t, e, "another1")
	assert.Equal(t, http.StatusOK, rr.Code)
}

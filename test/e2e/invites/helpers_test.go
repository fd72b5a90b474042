package invites_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/realminvite/internal/invites/app"
	"github.com/aussiebroadwan/realminvite/pkg/invitesdk"
	"github.com/aussiebroadwan/realminvite/pkg/jwtx"
)

/*
 * End-to-end tests run the whole service in-process against a fake identity
 * service and talk to it only through invitesdk.
 */

const (
	operatorSecret = "e2e-operator-secret-e2e-operator-secret"
	realm          = "acme"
)

type fakeUser struct {
	ID      string
	Email   string
	Roles   []string
	Actions []string
}

// fakeIdentity implements the slice of the identity service admin API that
// the invite service uses.
type fakeIdentity struct {
	mu        sync.Mutex
	users     map[string]*fakeUser // id -> user
	roles     []string
	nextID    int
	down      bool
	failEmail bool
}

func newFakeIdentity(t *testing.T) (*fakeIdentity, *httptest.Server) {
	t.Helper()

	f := &fakeIdentity{
		users: map[string]*fakeUser{},
		roles: []string{"member", "viewer", "billing"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /realms/{realm}/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("client_secret") != "idp-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "svc-token", "expires_in": 300})
	})
	mux.HandleFunc("GET /admin/realms/{realm}/users", f.admin(func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		out := []map[string]string{}
		for _, u := range f.users {
			if u.Email == email {
				out = append(out, map[string]string{"id": u.ID, "email": u.Email})
			}
		}
		writeJSON(w, http.StatusOK, out)
	}))
	mux.HandleFunc("POST /admin/realms/{realm}/users", f.admin(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email string `json:"email"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, u := range f.users {
			if u.Email == body.Email {
				w.WriteHeader(http.StatusConflict)
				return
			}
		}
		f.nextID++
		id := fmt.Sprintf("kc-%d", f.nextID)
		f.users[id] = &fakeUser{ID: id, Email: body.Email}
		w.Header().Set("Location", "http://"+r.Host+r.URL.Path+"/"+id)
		w.WriteHeader(http.StatusCreated)
	}))
	mux.HandleFunc("GET /admin/realms/{realm}/roles", f.admin(func(w http.ResponseWriter, r *http.Request) {
		out := make([]map[string]string, 0, len(f.roles))
		for _, name := range f.roles {
			out = append(out, map[string]string{"id": "role-" + name, "name": name})
		}
		writeJSON(w, http.StatusOK, out)
	}))
	mux.HandleFunc("GET /admin/realms/{realm}/roles/{name}", f.admin(func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if !slices.Contains(f.roles, name) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": "role-" + name, "name": name})
	}))
	mux.HandleFunc("POST /admin/realms/{realm}/users/{id}/role-mappings/realm", f.admin(func(w http.ResponseWriter, r *http.Request) {
		u, ok := f.users[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var roles []struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&roles)
		for _, role := range roles {
			u.Roles = append(u.Roles, role.Name)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("PUT /admin/realms/{realm}/users/{id}/execute-actions-email", f.admin(func(w http.ResponseWriter, r *http.Request) {
		if f.failEmail {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		u, ok := f.users[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&u.Actions)
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("DELETE /admin/realms/{realm}/users/{id}", f.admin(func(w http.ResponseWriter, r *http.Request) {
		delete(f.users, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

// admin serialises admin handlers and checks the bearer credential.
func (f *fakeIdentity) admin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.down {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("Authorization") != "Bearer svc-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func (f *fakeIdentity) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeIdentity) setFailEmail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failEmail = fail
}

func (f *fakeIdentity) userByEmail(email string) (fakeUser, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return *u, true
		}
	}
	return fakeUser{}, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type harness struct {
	identity *fakeIdentity
	operator *invitesdk.Client
	public   *invitesdk.Client
}

// setupService starts the invite service against a fresh sqlite database and
// fake identity service.
func setupService(t *testing.T) *harness {
	t.Helper()

	// Every request comes from 127.0.0.1, so lift the public limits.
	t.Setenv("RATELIMIT_STRICT_REQUESTS", "1000")
	t.Setenv("RATELIMIT_STRICT_BURST", "1000")

	identity, idp := newFakeIdentity(t)
	dir := t.TempDir()

	cfg := app.LoadConfig()
	cfg.Env = "test"
	cfg.LogLevel = "error"
	cfg.DatabaseDriver = app.DriverSQLite
	cfg.DatabaseFile = filepath.Join(dir, "invites.db")
	cfg.HMACSecretFile = filepath.Join(dir, "invite-secret")
	cfg.RealmRoles = realm + "=member"
	cfg.IDPBaseURL = idp.URL
	cfg.IDPClientID = "invite-service"
	cfg.IDPClientSecret = "idp-secret"
	cfg.IDPMaxAttempts = 2
	cfg.IDPBaseDelay = time.Millisecond
	cfg.AdminJWTSecret = operatorSecret

	application, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)

	operator := invitesdk.NewClient(srv.URL)
	operator.Token = operatorToken(t, "invites:read", "invites:write")

	return &harness{
		identity: identity,
		operator: operator,
		public:   invitesdk.NewClient(srv.URL),
	}
}

func operatorToken(t *testing.T, scopes ...string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		PreferredUsername: "ops",
		Scopes:            scopes,
	}).SignedString([]byte(operatorSecret))
	require.NoError(t, err)
	return tok
}

// requireAPIError asserts err is an *invitesdk.APIError with the given status
// and code.
func requireAPIError(t *testing.T, err error, status int, code string) *invitesdk.APIError {
	t.Helper()
	require.Error(t, err)
	var apiErr *invitesdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode)
	require.Equal(t, code, apiErr.Code)
	return apiErr
}

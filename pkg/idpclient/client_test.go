package idpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/realminvite/pkg/slogx"
)

// fakeIDP serves the token endpoint and delegates admin routes to a mux the
// test fills in.
type fakeIDP struct {
	*httptest.Server
	mux         *http.ServeMux
	tokenCalls  atomic.Int32
	tokenStatus atomic.Int32
	issued      atomic.Int32
}

func newFakeIDP(t *testing.T) *fakeIDP {
	t.Helper()

	f := &fakeIDP{mux: http.NewServeMux()}
	f.mux.HandleFunc("POST /realms/master/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if code := f.tokenStatus.Load(); code != 0 {
			w.WriteHeader(int(code))
			return
		}
		if err := r.ParseForm(); err != nil ||
			r.PostForm.Get("grant_type") != "client_credentials" ||
			r.PostForm.Get("client_id") != "invites" ||
			r.PostForm.Get("client_secret") != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := f.issued.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": fmt.Sprintf("token-%d", n),
			"expires_in":   300,
		})
	})

	f.Server = httptest.NewServer(f.mux)
	t.Cleanup(f.Close)
	return f
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, f *fakeIDP) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:      f.URL + "/",
		ClientID:     "invites",
		ClientSecret: "s3cret",
		MaxAttempts:  3,
		BaseDelay:    time.Millisecond,
	}, WithLogger(slogx.Discard()))
	require.NoError(t, err)
	return c
}

func requireBearer(t *testing.T, r *http.Request) {
	t.Helper()
	assert.Regexp(t, `^Bearer token-\d+$`, r.Header.Get("Authorization"))
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{ClientID: "a", ClientSecret: "b"})
	require.Error(t, err)

	_, err = New(Config{BaseURL: "http://x"})
	require.Error(t, err)

	c, err := New(Config{BaseURL: "http://x/", ClientID: "a", ClientSecret: "b"})
	require.NoError(t, err)
	require.Equal(t, "http://x", c.cfg.BaseURL)
	require.Equal(t, "master", c.cfg.TokenRealm)
	require.Equal(t, DefaultMaxAttempts, c.cfg.MaxAttempts)
	require.Equal(t, DefaultPageSize, c.cfg.PageSize)
	require.Equal(t, DefaultActions, c.cfg.DefaultActions)
}

func TestUserExists(t *testing.T) {
	t.Parallel()

	f := newFakeIDP(t)
	f.mux.HandleFunc("GET /admin/realms/acme/users", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		q := r.URL.Query()
		assert.Equal(t, "true", q.Get("exact"))
		assert.Equal(t, "1", q.Get("max"))
		assert.Equal(t, "true", q.Get("briefRepresentation"))

		if q.Get("email") == "known@example.com" {
			writeJSON(w, http.StatusOK, []map[string]string{{"id": "u1", "email": "known@example.com"}})
			return
		}
		writeJSON(w, http.StatusOK, []any{})
	})
	c := newTestClient(t, f)
	ctx := context.Background()

	exists, err := c.UserExists(ctx, "acme", "known@example.com")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = c.UserExists(ctx, "acme", "new@example.com")
	require.NoError(t, err)
	require.False(t, exists)

	require.EqualValues(t, 1, f.tokenCalls.Load(), "credential should be cached between calls")
}

func TestCreateUser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		location string
		wantID   string
		wantErr  error
	}{
		{"created", http.StatusCreated, "/admin/realms/acme/users/9f1c", "9f1c", nil},
		{"absolute location", http.StatusCreated, "http://idp/admin/realms/acme/users/abc-123", "abc-123", nil},
		{"conflict", http.StatusConflict, "", "", ErrUserExists},
		{"missing location", http.StatusCreated, "", "", ErrUnexpectedResponse},
		{"empty last segment", http.StatusCreated, "/admin/realms/acme/users/", "", ErrUnexpectedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFakeIDP(t)
			var calls atomic.Int32
			f.mux.HandleFunc("POST /admin/realms/acme/users", func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				requireBearer(t, r)
				var body userRepresentation
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "a@example.com", body.Email)
				assert.Equal(t, "a@example.com", body.Username)
				assert.True(t, body.Enabled)

				if tt.location != "" {
					w.Header().Set("Location", tt.location)
				}
				w.WriteHeader(tt.status)
			})
			c := newTestClient(t, f)

			id, err := c.CreateUser(context.Background(), "acme", "a@example.com", "a@example.com", true)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.EqualValues(t, 1, calls.Load(), "client errors must not be retried")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantID, id)
		})
	}
}

func TestCreateUser_ConflictAfterLostResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		found   []map[string]string
		wantID  string
		wantErr error
	}{
		{"earlier attempt created the user", []map[string]string{{"id": "u-42", "email": "a@example.com"}}, "u-42", nil},
		{"nobody to adopt", []map[string]string{}, "", ErrUserExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFakeIDP(t)
			var posts atomic.Int32
			f.mux.HandleFunc("POST /admin/realms/acme/users", func(w http.ResponseWriter, r *http.Request) {
				if posts.Add(1) == 1 {
					// The user is created but the response never arrives.
					conn, _, err := w.(http.Hijacker).Hijack()
					if assert.NoError(t, err) {
						_ = conn.Close()
					}
					return
				}
				w.WriteHeader(http.StatusConflict)
			})
			f.mux.HandleFunc("GET /admin/realms/acme/users", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "a@example.com", r.URL.Query().Get("email"))
				writeJSON(w, http.StatusOK, tt.found)
			})
			c := newTestClient(t, f)

			id, err := c.CreateUser(context.Background(), "acme", "a@example.com", "a@example.com", true)
			require.EqualValues(t, 2, posts.Load())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantID, id)
		})
	}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	t.Parallel()

	f := newFakeIDP(t)
	var calls atomic.Int32
	f.mux.HandleFunc("DELETE /admin/realms/acme/users/u1", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, f)

	require.NoError(t, c.DeleteUser(context.Background(), "acme", "u1"))
	require.EqualValues(t, 3, calls.Load())
}

func TestRetry_Exhausted(t *testing.T) {
	t.Parallel()

	f := newFakeIDP(t)
	var calls atomic.Int32
	f.mux.HandleFunc("GET /admin/realms/acme/users", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	c := newTestClient(t, f)

	_, err := c.UserExists(context.Background(), "acme", "a@example.com")
	require.ErrorIs(t, err, ErrServiceUnavailable)

	var ue *UnavailableError
	require.ErrorAs(t, err, &ue)
	require.Equal(t, 3, ue.Attempts)
	require.EqualValues(t, 3, calls.Load())
}

func TestRetry_ClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	f := newFakeIDP(t)
	var calls atomic.Int32
	f.mux.HandleFunc("PUT /admin/realms/acme/users/u1/execute-actions-email", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"errorMessage":"bad action"}`, http.StatusBadRequest)
	})
	c := newTestClient(t, f)

	err := c.ExecuteActionsEmail(context.Background(), "acme", "u1", []string{"NOPE"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrServiceUnavailable)

	var ae *APIError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, http.StatusBadRequest, ae.StatusCode)
	require.Contains(t, ae.Body, "bad action")
	require.EqualValues(t, 1, calls.Load())
}

func TestRetry_TransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{
		BaseURL:      url,
		ClientID:     "invites",
		ClientSecret: "s3cret",
		MaxAttempts:  2,
		BaseDelay:    time.Millisecond,
	}, WithLogger(slogx.Discard()))
	require.NoError(t, err)

	_, err = c.UserExists(context.Background(), "acme", "a@example.com")
	require.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestTokenEndpointRejected(t *testing.T) {
	t.Parallel()

	f := newFakeIDP(t)
	f.tokenStatus.Store(http.StatusUnauthorized)
	c := newTestClient(t, f)

	_, err := c.UserExists(context.Background(), "acme", "a@example.com")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.EqualValues(t, 1, f.tokenCalls.Load())
}

func TestUnauthorizedDropsCredential(t *testing.T) {
	t.Parallel()

	f := newFakeIDP(t)
	var calls atomic.Int32
	f.mux.HandleFunc("DELETE /admin/realms/acme/users/u1", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer token-2", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, f)

	require.NoError(t, c.DeleteUser(context.Background(), "acme", "u1"))
	require.EqualValues(t, 2, f.tokenCalls.Load())
}

func TestDeleteUser_NotFoundTolerated(t *testing.T) {
	t.Parallel()

	f := newFakeIDP(t)
	f.mux.HandleFunc("DELETE /admin/realms/acme/users/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c := newTestClient(t, f)

	require.NoError(t, c.DeleteUser(context.Background(), "acme", "gone"))
}

func TestExecuteActionsEmail_Defaults(t *testing.T) {
	t.Parallel()

	f := newFakeIDP(t)
	var got []string
	f.mux.HandleFunc("PUT /admin/realms/acme/users/u1/execute-actions-email", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, f)

	require.NoError(t, c.ExecuteActionsEmail(context.Background(), "acme", "u1", nil))
	require.Equal(t, []string{"VERIFY_EMAIL", "UPDATE_PASSWORD"}, got)
}

func TestAssignRealmRoles(t *testing.T) {
	t.Parallel()

	f := newFakeIDP(t)
	roles := map[string]string{"admin": "r-1", "auditor": "r-2"}
	f.mux.HandleFunc("GET /admin/realms/acme/roles/{name}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := roles[r.PathValue("name")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, Role{ID: id, Name: r.PathValue("name")})
	})
	var posted atomic.Int32
	var got []Role
	f.mux.HandleFunc("POST /admin/realms/acme/users/u1/role-mappings/realm", func(w http.ResponseWriter, r *http.Request) {
		posted.Add(1)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, f)
	ctx := context.Background()

	require.NoError(t, c.AssignRealmRoles(ctx, "acme", "u1", []string{"admin", "auditor"}))
	require.Equal(t, []Role{{ID: "r-1", Name: "admin"}, {ID: "r-2", Name: "auditor"}}, got)

	err := c.AssignRealmRoles(ctx, "acme", "u1", []string{"admin", "missing"})
	require.ErrorIs(t, err, ErrRoleNotFound)
	require.Contains(t, err.Error(), `"missing"`)
	require.EqualValues(t, 1, posted.Load(), "nothing is assigned when a role is unknown")

	require.NoError(t, c.AssignRealmRoles(ctx, "acme", "u1", nil))
	require.EqualValues(t, 1, posted.Load())
}

func TestListRealmRoles_Pagination(t *testing.T) {
	t.Parallel()

	f := newFakeIDP(t)
	var pages atomic.Int32
	f.mux.HandleFunc("GET /admin/realms/big/roles", func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		first, _ := strconv.Atoi(r.URL.Query().Get("first"))
		size, _ := strconv.Atoi(r.URL.Query().Get("max"))
		assert.Equal(t, 1000, size)

		var page []Role
		switch first {
		case 0:
			// Reverse order so the result has to be sorted client side.
			for i := 999; i >= 0; i-- {
				page = append(page, Role{ID: strconv.Itoa(i), Name: fmt.Sprintf("role-%04d", i)})
			}
		case 1000:
			page = []Role{{ID: "1000", Name: "role-1000"}}
		default:
			page = []Role{}
		}
		writeJSON(w, http.StatusOK, page)
	})
	c := newTestClient(t, f)

	names, err := c.ListRealmRoles(context.Background(), "big")
	require.NoError(t, err)
	require.Len(t, names, 1001)
	require.IsIncreasing(t, names)
	require.Equal(t, "role-0000", names[0])
	require.Equal(t, "role-1000", names[1000])
	require.EqualValues(t, 2, pages.Load())
}

func TestListRealmRoles_ServerIgnoresOffset(t *testing.T) {
	t.Parallel()

	f := newFakeIDP(t)
	var pages atomic.Int32
	f.mux.HandleFunc("GET /admin/realms/acme/roles", func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		writeJSON(w, http.StatusOK, []Role{{Name: "admin"}, {Name: "member"}})
	})
	c, err := New(Config{
		BaseURL:      f.URL,
		ClientID:     "invites",
		ClientSecret: "s3cret",
		PageSize:     2,
	}, WithLogger(slogx.Discard()))
	require.NoError(t, err)

	names, err := c.ListRealmRoles(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, []string{"admin", "member"}, names)
	require.EqualValues(t, 2, pages.Load())
}

func TestListRealmRoles_Distinct(t *testing.T) {
	t.Parallel()

	f := newFakeIDP(t)
	f.mux.HandleFunc("GET /admin/realms/acme/roles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []Role{{Name: "b"}, {Name: "a"}, {Name: "b"}})
	})
	c := newTestClient(t, f)

	names, err := c.ListRealmRoles(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, names)
}

func TestContextCancelled(t *testing.T) {
	t.Parallel()

	f := newFakeIDP(t)
	f.mux.HandleFunc("GET /admin/realms/acme/users", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c, err := New(Config{
		BaseURL:      f.URL,
		ClientID:     "invites",
		ClientSecret: "s3cret",
		MaxAttempts:  10,
		BaseDelay:    time.Second,
	}, WithLogger(slogx.Discard()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = c.UserExists(ctx, "acme", "a@example.com")
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

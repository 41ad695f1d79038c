package keycloak

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(message interface{}, args ...interface{}) {}
func (nopLogger) Info(message string, args ...interface{})       {}
func (nopLogger) Warn(message string, args ...interface{})       {}
func (nopLogger) Error(message interface{}, args ...interface{}) {}
func (nopLogger) Fatal(message interface{}, args ...interface{}) {}

type fakeKeycloak struct {
	tokenRequests  atomic.Int64
	tokenExpiresIn int
	failUserIDs    map[string]bool
}

func (f *fakeKeycloak) handler(t *testing.T) http.Handler {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/realms/test/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenRequests.Add(1)

		expiresIn := f.tokenExpiresIn
		if expiresIn == 0 {
			expiresIn = 300
		}

		json.NewEncoder(w).Encode(map[string]any{
			"access_token":       "admin-token",
			"expires_in":         expiresIn,
			"refresh_token":      "",
			"refresh_expires_in": 0,
		})
	})

	mux.HandleFunc("/admin/realms/test/users", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))

		username := r.URL.Query().Get("username")
		if username != "alice" {
			json.NewEncoder(w).Encode([]any{})

			return
		}

		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "u1", "username": "alice", "email": "alice@test.com"},
		})
	})

	mux.HandleFunc("/admin/realms/test/users/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))

		rest := strings.TrimPrefix(r.URL.Path, "/admin/realms/test/users/")

		if strings.HasSuffix(rest, "/role-mappings/realm") {
			json.NewEncoder(w).Encode([]map[string]any{{"name": "trader"}})

			return
		}

		if f.failUserIDs[rest] {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		json.NewEncoder(w).Encode(map[string]any{
			"id": rest, "username": "user-" + rest, "email": rest + "@test.com",
		})
	})

	return mux
}

func newTestService(t *testing.T, fk *fakeKeycloak) (*IdentityService, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(fk.handler(t))
	t.Cleanup(srv.Close)

	return NewIdentityService(srv.URL, "test", "account-service", "secret", nopLogger{}), srv
}

func TestGetUsers_ResolvesIdentitiesWithRoles(t *testing.T) {
	svc, _ := newTestService(t, &fakeKeycloak{})

	identities, err := svc.GetUsers(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)
	require.Len(t, identities, 2)

	require.NotNil(t, identities[0])
	assert.Equal(t, "u1", identities[0].ID)
	assert.Equal(t, "user-u1", identities[0].Username)
	assert.Equal(t, []string{"trader"}, identities[0].Roles)

	require.NotNil(t, identities[1])
	assert.Equal(t, "u2", identities[1].ID)
}

func TestGetUsers_FailedLookupYieldsNilEntry(t *testing.T) {
	svc, _ := newTestService(t, &fakeKeycloak{failUserIDs: map[string]bool{"u2": true}})

	identities, err := svc.GetUsers(context.Background(), []string{"u1", "u2", "u3"})
	require.NoError(t, err)
	require.Len(t, identities, 3)

	assert.NotNil(t, identities[0])
	assert.Nil(t, identities[1])
	assert.NotNil(t, identities[2])
}

func TestGetByUsername_ReturnsFirstMatch(t *testing.T) {
	svc, _ := newTestService(t, &fakeKeycloak{})

	identity, err := svc.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, identity)

	assert.Equal(t, "u1", identity.ID)
	assert.Equal(t, "alice@test.com", identity.Email)
	assert.Equal(t, []string{"trader"}, identity.Roles)
}

func TestGetByUsername_NoMatchReturnsNil(t *testing.T) {
	svc, _ := newTestService(t, &fakeKeycloak{})

	identity, err := svc.GetByUsername(context.Background(), "nobody")
	require.NoError(t, err)

	assert.Nil(t, identity)
}

func TestClientAccessToken_IsCached(t *testing.T) {
	fk := &fakeKeycloak{}
	svc, _ := newTestService(t, fk)
	ctx := context.Background()

	_, err := svc.GetUsers(ctx, []string{"u1"})
	require.NoError(t, err)

	_, err = svc.GetByUsername(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, int64(1), fk.tokenRequests.Load())
}

func TestClientAccessToken_RefreshesInsideExpiryMargin(t *testing.T) {
	// expires_in below the refresh margin means the cached token is
	// considered expired immediately
	fk := &fakeKeycloak{tokenExpiresIn: 5}
	svc, _ := newTestService(t, fk)
	ctx := context.Background()

	_, err := svc.GetUsers(ctx, []string{"u1"})
	require.NoError(t, err)

	_, err = svc.GetUsers(ctx, []string{"u1"})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, fk.tokenRequests.Load(), int64(2))
}

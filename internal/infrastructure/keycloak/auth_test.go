package keycloak

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traderhub/account-service/internal/entity"
)

func newAuthFixture(t *testing.T) (*AuthService, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/realms/test", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"public_key": base64.StdEncoding.EncodeToString(der),
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewAuthService(srv.URL, "test"), key
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)

	return token
}

func TestVerify_ValidToken(t *testing.T) {
	svc, key := newAuthFixture(t)

	token := signToken(t, key, jwt.MapClaims{
		"sub":                "u1",
		"email":              "alice@test.com",
		"preferred_username": "alice",
		"realm_access":       map[string]any{"roles": []any{"trader", "system"}},
		"exp":                time.Now().Add(time.Hour).Unix(),
	})

	principal, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, "u1", principal.ID)
	assert.Equal(t, "alice", principal.Username)
	assert.Equal(t, "alice@test.com", principal.Email)
	assert.True(t, principal.HasRole(entity.RoleSystem))
	assert.True(t, principal.IsOwner("u1"))
	assert.False(t, principal.IsOwner("u2"))
}

func TestVerify_ExpiredTokenRejected(t *testing.T) {
	svc, key := newAuthFixture(t)

	token := signToken(t, key, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := svc.Verify(context.Background(), token)
	assert.Error(t, err)
}

func TestVerify_WrongKeyRejected(t *testing.T) {
	svc, _ := newAuthFixture(t)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	token := signToken(t, otherKey, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err = svc.Verify(context.Background(), token)
	assert.Error(t, err)
}

func TestVerify_NoRolesClaim(t *testing.T) {
	svc, key := newAuthFixture(t)

	token := signToken(t, key, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	principal, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)

	assert.False(t, principal.HasRole(entity.RoleSystem))
}

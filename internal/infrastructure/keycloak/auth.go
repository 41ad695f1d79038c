// Package keycloak adapts the external identity provider: offline token
// verification for request auth and the admin API for user lookups.
package keycloak

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/traderhub/account-service/internal/entity"
)

// AuthService verifies bearer tokens offline against the realm's public
// key. The key is fetched once and cached for the process lifetime.
type AuthService struct {
	serverURL  string
	realm      string
	httpClient *http.Client

	mu        sync.Mutex
	publicKey *rsa.PublicKey
}

func NewAuthService(serverURL, realm string) *AuthService {
	return &AuthService{
		serverURL:  serverURL,
		realm:      realm,
		httpClient: http.DefaultClient,
	}
}

func (s *AuthService) Verify(ctx context.Context, token string) (entity.AuthPrincipal, error) {
	key, err := s.realmPublicKey(ctx)
	if err != nil {
		return entity.AuthPrincipal{}, fmt.Errorf("AuthService - Verify - s.realmPublicKey: %w", err)
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return entity.AuthPrincipal{}, fmt.Errorf("AuthService - Verify - jwt.ParseWithClaims: %w", err)
	}

	principal := entity.AuthPrincipal{}
	if sub, ok := claims["sub"].(string); ok {
		principal.ID = sub
	}
	if email, ok := claims["email"].(string); ok {
		principal.Email = email
	}
	if username, ok := claims["preferred_username"].(string); ok {
		principal.Username = username
	}
	principal.Roles = realmRoles(claims)

	return principal, nil
}

func realmRoles(claims jwt.MapClaims) []string {
	access, ok := claims["realm_access"].(map[string]any)
	if !ok {
		return nil
	}

	raw, ok := access["roles"].([]any)
	if !ok {
		return nil
	}

	roles := make([]string, 0, len(raw))
	for _, r := range raw {
		if role, ok := r.(string); ok {
			roles = append(roles, role)
		}
	}

	return roles
}

func (s *AuthService) realmPublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.publicKey != nil {
		return s.publicKey, nil
	}

	url := fmt.Sprintf("%s/realms/%s", s.serverURL, s.realm)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("AuthService - realmPublicKey - http.NewRequestWithContext: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("AuthService - realmPublicKey - s.httpClient.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("AuthService - realmPublicKey - unexpected status %d", resp.StatusCode)
	}

	var realmInfo struct {
		PublicKey string `json:"public_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&realmInfo); err != nil {
		return nil, fmt.Errorf("AuthService - realmPublicKey - json.Decode: %w", err)
	}

	der, err := base64.StdEncoding.DecodeString(realmInfo.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("AuthService - realmPublicKey - base64.Decode: %w", err)
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("AuthService - realmPublicKey - x509.ParsePKIXPublicKey: %w", err)
	}

	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("AuthService - realmPublicKey - realm key is not RSA")
	}

	s.publicKey = rsaKey

	return rsaKey, nil
}

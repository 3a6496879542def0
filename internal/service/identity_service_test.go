package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"maturity_backend/internal/config"
	"maturity_backend/internal/model"
	"maturity_backend/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testToken(t *testing.T, sub string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString([]byte("test"))
	require.NoError(t, err)
	return token
}

type memoryCompanyCache struct {
	mu    sync.Mutex
	items map[string]*model.Company
	sets  int
}

func newMemoryCompanyCache() *memoryCompanyCache {
	return &memoryCompanyCache{items: map[string]*model.Company{}}
}

func (c *memoryCompanyCache) Get(_ context.Context, siret string) (*model.Company, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[siret], nil
}

func (c *memoryCompanyCache) Set(_ context.Context, siret string, company *model.Company, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[siret] = company
	c.sets++
	return nil
}

func newIdentityServers(t *testing.T, cpeHits *int) (*httptest.Server, *httptest.Server) {
	t.Helper()
	kc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realms/maturity/protocol/openid-connect/userinfo", r.URL.Path)
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"kc-1","email":"jane@example.com","given_name":"Jane","family_name":"Doe","siret":"12345678900011"}`))
	}))
	cpe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*cpeHits++
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		if r.URL.Path != "/companies/12345678900011" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"siret":"12345678900011","name":"Acme","naf_code":"62.01Z","region":"Bretagne","city":"Rennes"}`))
	}))
	t.Cleanup(kc.Close)
	t.Cleanup(cpe.Close)
	return kc, cpe
}

func TestIdentityService_MeWithCompany(t *testing.T) {
	hits := 0
	kc, cpe := newIdentityServers(t, &hits)
	cache := newMemoryCompanyCache()
	svc := NewIdentityService(
		NewKeycloakClient(config.KeycloakConfig{URL: kc.URL, Realm: "maturity"}),
		NewCPEClient(config.CPEConfig{URL: cpe.URL, APIKey: "secret"}),
		cache, time.Hour,
	)

	token := testToken(t, "kc-1")
	profile, err := svc.Me(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "kc-1", profile.Claims.Sub)
	require.NotNil(t, profile.Company)
	assert.Equal(t, "Acme", profile.Company.Name)
	assert.Equal(t, "Rennes", profile.Company.City)

	user := profile.User()
	assert.Equal(t, "kc-1", user.KeycloakID)
	assert.Equal(t, "Jane", user.FirstName)

	// 第二次命中缓存
	_, err = svc.Me(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, cache.sets)
}

func TestIdentityService_RejectsMalformedToken(t *testing.T) {
	hits := 0
	kc, cpe := newIdentityServers(t, &hits)
	svc := NewIdentityService(
		NewKeycloakClient(config.KeycloakConfig{URL: kc.URL, Realm: "maturity"}),
		NewCPEClient(config.CPEConfig{URL: cpe.URL, APIKey: "secret"}),
		nil, time.Hour,
	)

	_, err := svc.Me(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, util.ErrUnauthorized)
	assert.Equal(t, 0, hits)
}

func TestIdentityService_KeycloakRejects(t *testing.T) {
	kc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer kc.Close()

	svc := NewIdentityService(NewKeycloakClient(config.KeycloakConfig{URL: kc.URL, Realm: "maturity"}), nil, nil, 0)
	_, err := svc.Me(context.Background(), testToken(t, "kc-1"))
	assert.ErrorIs(t, err, util.ErrUnauthorized)
}

func TestIdentityService_KeycloakDown(t *testing.T) {
	kc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer kc.Close()

	svc := NewIdentityService(NewKeycloakClient(config.KeycloakConfig{URL: kc.URL, Realm: "maturity"}), nil, nil, 0)
	_, err := svc.Me(context.Background(), testToken(t, "kc-1"))
	assert.ErrorIs(t, err, util.ErrIdentityUnavailable)
}

func TestIdentityService_CompanyRegistryDown(t *testing.T) {
	hits := 0
	kc, _ := newIdentityServers(t, &hits)
	cpe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer cpe.Close()

	svc := NewIdentityService(
		NewKeycloakClient(config.KeycloakConfig{URL: kc.URL, Realm: "maturity"}),
		NewCPEClient(config.CPEConfig{URL: cpe.URL}),
		newMemoryCompanyCache(), time.Hour,
	)

	profile, err := svc.Me(context.Background(), testToken(t, "kc-1"))
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", profile.Claims.Email)
	assert.Nil(t, profile.Company)
}

func TestCPEClient_UnknownSiret(t *testing.T) {
	hits := 0
	_, cpe := newIdentityServers(t, &hits)
	client := NewCPEClient(config.CPEConfig{URL: cpe.URL, APIKey: "secret"})

	company, err := client.FindBySiret(context.Background(), "00000000000000")
	require.NoError(t, err)
	assert.Nil(t, company)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"maturity_backend/internal/config"
	"maturity_backend/internal/model"
	"maturity_backend/internal/util"
	"maturity_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// UserClaims Keycloak userinfo 返回的声明
type UserClaims struct {
	Sub               string `json:"sub"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	Siret             string `json:"siret"`
}

type Profile struct {
	Claims  UserClaims     `json:"user"`
	Company *model.Company `json:"company"`
}

func (p *Profile) User() *model.User {
	return &model.User{
		KeycloakID: p.Claims.Sub,
		Email:      p.Claims.Email,
		FirstName:  p.Claims.GivenName,
		LastName:   p.Claims.FamilyName,
	}
}

type UserInfoProvider interface {
	UserInfo(ctx context.Context, bearer string) (*UserClaims, error)
}

type CompanyProvider interface {
	FindBySiret(ctx context.Context, siret string) (*model.Company, error)
}

type CompanyCache interface {
	Get(ctx context.Context, siret string) (*model.Company, error)
	Set(ctx context.Context, siret string, company *model.Company, ttl time.Duration) error
}

// KeycloakClient 令牌的校验交给 Keycloak，本地不做签名验证
type KeycloakClient struct {
	BaseURL    string
	Realm      string
	HTTPClient *http.Client
}

func NewKeycloakClient(cfg config.KeycloakConfig) *KeycloakClient {
	return &KeycloakClient{
		BaseURL:    strings.TrimRight(cfg.URL, "/"),
		Realm:      cfg.Realm,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *KeycloakClient) UserInfo(ctx context.Context, bearer string) (*UserClaims, error) {
	endpoint := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/userinfo", c.BaseURL, url.PathEscape(c.Realm))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrIdentityUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, util.ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: keycloak status %d: %s", util.ErrIdentityUnavailable, resp.StatusCode, string(body))
	}

	var claims UserClaims
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrIdentityUnavailable, err)
	}
	if claims.Sub == "" {
		return nil, util.ErrUnauthorized
	}
	return &claims, nil
}

// CPEClient 企业注册库
type CPEClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewCPEClient(cfg config.CPEConfig) *CPEClient {
	return &CPEClient{
		BaseURL:    strings.TrimRight(cfg.URL, "/"),
		APIKey:     cfg.APIKey,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type cpeCompany struct {
	Siret     string `json:"siret"`
	Name      string `json:"name"`
	NafCode   string `json:"naf_code"`
	Sector    string `json:"sector"`
	Workforce string `json:"workforce"`
	Region    string `json:"region"`
	City      string `json:"city"`
}

// FindBySiret 企业不存在时返回 nil, nil
func (c *CPEClient) FindBySiret(ctx context.Context, siret string) (*model.Company, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/companies/"+url.PathEscape(siret), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrCompanyUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: cpe status %d: %s", util.ErrCompanyUnavailable, resp.StatusCode, string(body))
	}

	var cc cpeCompany
	if err := json.Unmarshal(body, &cc); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrCompanyUnavailable, err)
	}
	return &model.Company{
		Siret:     cc.Siret,
		Name:      cc.Name,
		NafCode:   cc.NafCode,
		Sector:    cc.Sector,
		Workforce: cc.Workforce,
		Region:    cc.Region,
		City:      cc.City,
	}, nil
}

type redisCompanyCache struct {
	client *redis.Client
}

func NewRedisCompanyCache(client *redis.Client) CompanyCache {
	return &redisCompanyCache{client: client}
}

func (c *redisCompanyCache) key(siret string) string {
	return "company:" + siret
}

// Get 未命中时返回 nil, nil
func (c *redisCompanyCache) Get(ctx context.Context, siret string) (*model.Company, error) {
	data, err := c.client.Get(ctx, c.key(siret)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var company model.Company
	if err := json.Unmarshal([]byte(data), &company); err != nil {
		return nil, err
	}
	return &company, nil
}

func (c *redisCompanyCache) Set(ctx context.Context, siret string, company *model.Company, ttl time.Duration) error {
	data, err := json.Marshal(company)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(siret), data, ttl).Err()
}

type IdentityService struct {
	Keycloak  UserInfoProvider
	Companies CompanyProvider
	Cache     CompanyCache
	CacheTTL  time.Duration
}

func NewIdentityService(kc UserInfoProvider, companies CompanyProvider, cache CompanyCache, ttl time.Duration) *IdentityService {
	return &IdentityService{Keycloak: kc, Companies: companies, Cache: cache, CacheTTL: ttl}
}

// Me 用户声明加企业信息；企业库不可用时仅返回用户
func (s *IdentityService) Me(ctx context.Context, bearer string) (*Profile, error) {
	subject, err := tokenSubject(bearer)
	if err != nil {
		return nil, util.ErrUnauthorized
	}

	claims, err := s.Keycloak.UserInfo(ctx, bearer)
	if err != nil {
		if !errors.Is(err, util.ErrUnauthorized) {
			logger.Log.Warn("userinfo lookup failed", zap.String("sub", subject), zap.Error(err))
		}
		return nil, err
	}

	profile := &Profile{Claims: *claims}
	if claims.Siret == "" {
		return profile, nil
	}

	company, err := s.company(ctx, claims.Siret)
	if err != nil {
		logger.Log.Warn("company lookup failed",
			zap.String("sub", claims.Sub),
			zap.String("siret", claims.Siret),
			zap.Error(err))
		return profile, nil
	}
	profile.Company = company
	return profile, nil
}

func (s *IdentityService) company(ctx context.Context, siret string) (*model.Company, error) {
	if s.Cache != nil {
		cached, err := s.Cache.Get(ctx, siret)
		if err != nil {
			logger.Log.Debug("company cache read failed", zap.String("siret", siret), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	company, err := s.Companies.FindBySiret(ctx, siret)
	if err != nil || company == nil {
		return company, err
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, siret, company, s.CacheTTL); err != nil {
			logger.Log.Debug("company cache write failed", zap.String("siret", siret), zap.Error(err))
		}
	}
	return company, nil
}

// tokenSubject 不校验签名，仅取 sub 用于日志，并拒绝明显不是 JWT 的令牌
func tokenSubject(bearer string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(bearer, claims); err != nil {
		return "", err
	}
	sub, _ := claims.GetSubject()
	return sub, nil
}

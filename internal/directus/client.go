package directus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"maturity_backend/internal/config"
)

// Credential 为零值时使用服务令牌；预览模式下使用调用方令牌，仅对单次请求生效
type Credential struct {
	token string
}

func Preview(token string) Credential {
	return Credential{token: token}
}

func (c Credential) IsPreview() bool {
	return c.token != ""
}

// PreviewToken 服务模式下为空
func (c Credential) PreviewToken() string {
	return c.token
}

// Source 只读内容查询
type Source interface {
	Items(ctx context.Context, collection string, q Query, cred Credential) (json.RawMessage, error)
	Singleton(ctx context.Context, collection string, q Query, cred Credential) (json.RawMessage, error)
}

// FetchError 内容获取失败（网络、非2xx、响应无法解析）
type FetchError struct {
	Collection string
	Status     int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("directus %s: status %d: %v", e.Collection, e.Status, e.Err)
	}
	return fmt.Sprintf("directus %s: %v", e.Collection, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewClient(cfg config.DirectusConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(cfg.URL, "/"),
		Token:      cfg.Token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

func (c *Client) bearer(cred Credential) string {
	if cred.IsPreview() {
		return cred.token
	}
	return c.Token
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, cred Credential) (json.RawMessage, error) {
	collection := strings.TrimPrefix(path, "/items/")

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, &FetchError{Collection: collection, Err: err}
		}
		reader = bytes.NewReader(raw)
	}

	endpoint := c.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &FetchError{Collection: collection, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(cred); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &FetchError{Collection: collection, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Collection: collection, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Collection: collection, Status: resp.StatusCode, Err: fmt.Errorf("%s", errorMessage(respBody))}
	}

	// DELETE 返回 204
	if resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil, nil
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, &FetchError{Collection: collection, Status: resp.StatusCode, Err: err}
	}
	return env.Data, nil
}

func errorMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Errors) > 0 {
		return env.Errors[0].Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

func (c *Client) Items(ctx context.Context, collection string, q Query, cred Credential) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/items/"+collection, q.Values(), nil, cred)
}

func (c *Client) Singleton(ctx context.Context, collection string, q Query, cred Credential) (json.RawMessage, error) {
	params := url.Values{}
	if len(q.Fields) > 0 {
		params.Set("fields", strings.Join(q.Fields, ","))
	}
	return c.do(ctx, http.MethodGet, "/items/"+collection, params, nil, cred)
}

func (c *Client) Create(ctx context.Context, collection string, record any, cred Credential) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/items/"+collection, nil, record, cred)
}

func (c *Client) Update(ctx context.Context, collection string, id any, patch any, cred Credential) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/items/%s/%v", collection, id), nil, patch, cred)
}

func (c *Client) Delete(ctx context.Context, collection string, id any, cred Credential) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/items/%s/%v", collection, id), nil, nil, cred)
	return err
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/server/ping", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directus ping: status %d", resp.StatusCode)
	}
	return nil
}

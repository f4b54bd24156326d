package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/ghlogin/internal/model"
	"golang.org/x/oauth2/github"
)

const (
	defaultGitHubUserURL = "https://api.github.com/user"
	defaultHTTPTimeout   = 10 * time.Second

	// メトリクスのendpointラベル
	endpointToken   = "token"
	endpointProfile = "profile"
)

// GitHubOAuthConfig はGitHub OAuthクライアントの設定。
type GitHubOAuthConfig struct {
	ClientID     string
	ClientSecret string
	Timeout      time.Duration

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	UserURL  string

	// 未指定の場合はTimeoutを設定したクライアントを生成する
	HTTPClient *http.Client
}

// ProviderObserver はプロバイダー呼び出しの所要時間と結果を記録する。
type ProviderObserver interface {
	ObserveProviderRequest(endpoint, outcome string, duration time.Duration)
}

// Profile はGitHubの /user レスポンスのうち画面表示に使う項目。
type Profile struct {
	Login       string `json:"login"`
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	HTMLURL     string `json:"html_url"`
	Bio         string `json:"bio"`
	Location    string `json:"location"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
}

// GitHubOAuthClient はGitHubの認可コードフローを扱うクライアント。
// 状態は持たず、複数のリクエストから同時に利用できる。
type GitHubOAuthClient struct {
	config   GitHubOAuthConfig
	client   *http.Client
	observer ProviderObserver
}

// NewGitHubOAuthClient はGitHubOAuthClientを生成する。
// observerがnilの場合は計測しない。
func NewGitHubOAuthClient(config GitHubOAuthConfig, observer ProviderObserver) *GitHubOAuthClient {
	if config.AuthURL == "" {
		config.AuthURL = github.Endpoint.AuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = github.Endpoint.TokenURL
	}
	if config.UserURL == "" {
		config.UserURL = defaultGitHubUserURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultHTTPTimeout
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &GitHubOAuthClient{config: config, client: client, observer: observer}
}

// AuthorizationURL はGitHubの認可画面のURLを返す。
// stateパラメータは付与しない。
func (c *GitHubOAuthClient) AuthorizationURL() string {
	params := url.Values{"client_id": {c.config.ClientID}}
	return c.config.AuthURL + "?" + params.Encode()
}

// tokenRequest はトークンエンドポイントへ送るJSONボディ。
type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
}

// ExchangeCode は認可コードをアクセストークンに交換する。
// 通信失敗と2xx以外のステータスはProviderRequestError、
// 2xxでもaccess_tokenを含むJSONオブジェクトでなければProviderExchangeErrorを返す。
func (c *GitHubOAuthClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	payload, err := json.Marshal(tokenRequest{
		ClientID:     c.config.ClientID,
		ClientSecret: c.config.ClientSecret,
		Code:         code,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	body, err := c.do(req)
	if err != nil {
		c.observe(endpointToken, "request_error", start)
		return "", model.NewProviderRequestError(endpointToken, err)
	}

	token, ok := parseAccessToken(body)
	if !ok {
		c.observe(endpointToken, "bad_response", start)
		return "", model.NewProviderExchangeError(string(body))
	}

	c.observe(endpointToken, "success", start)
	return token, nil
}

// parseAccessToken はボディがJSONオブジェクトで、
// 空でない文字列のaccess_tokenを持つ場合にその値を返す。
func parseAccessToken(body []byte) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return "", false
	}
	raw, ok := obj["access_token"]
	if !ok {
		return "", false
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil || token == "" {
		return "", false
	}
	return token, true
}

// FetchProfile はアクセストークンでGitHubのユーザープロフィールを取得する。
// リトライはしない。
func (c *GitHubOAuthClient) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.UserURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "token "+accessToken)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	body, err := c.do(req)
	if err != nil {
		c.observe(endpointProfile, "request_error", start)
		return nil, model.NewProviderRequestError(endpointProfile, err)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		c.observe(endpointProfile, "bad_response", start)
		return nil, model.NewProviderRequestError(endpointProfile, fmt.Errorf("failed to parse profile response: %w", err))
	}

	c.observe(endpointProfile, "success", start)
	return &profile, nil
}

// do はリクエストを送信し、2xxの場合にボディを返す。
func (c *GitHubOAuthClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *GitHubOAuthClient) observe(endpoint, outcome string, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveProviderRequest(endpoint, outcome, time.Since(start))
}

// compile-time interface check
var _ OAuthClient = (*GitHubOAuthClient)(nil)

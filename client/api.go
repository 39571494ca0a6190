package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
)

// Session はログイン成功時にサーバーから受け取る一式。
// トークンはHttpOnly Cookieで届くため、Goクライアントでは
// Set-Cookieから取り出して保持する。
type Session struct {
	User         model.Principal `json:"user"`
	AccessToken  string          `json:"-"`
	RefreshToken string          `json:"-"`
}

// API は認証エンドポイントの抽象。SessionClientが依存する。
type API interface {
	Login(ctx context.Context, email, password string) (*Session, error)
	Logout(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
}

// HTTPClient はHTTP越しにAPIを呼ぶ実装。ServerListの実体でもある。
type HTTPClient struct {
	baseURL string
	http    *http.Client

	// TokenFn は各リクエストに付与するアクセストークンの供給元。
	// SessionClientが自身の保持するトークンを配線する。
	TokenFn func() string
}

// NewHTTPClient はbaseURL（例: "http://localhost:8080"）向けの
// HTTPClientを生成する。
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// apiError はサーバーの{success:false, error}レスポンスを表す。
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.TokenFn != nil {
		if token := c.TokenFn(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &envelope)
		if envelope.Error == "" {
			envelope.Error = http.StatusText(resp.StatusCode)
		}
		return resp, &apiError{Status: resp.StatusCode, Message: envelope.Error}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp, nil
}

// Login はメールアドレスとパスワードでログインし、Set-Cookieから
// トークンを取り出したSessionを返す。
func (c *HTTPClient) Login(ctx context.Context, email, password string) (*Session, error) {
	var out struct {
		User model.Principal `json:"user"`
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	session := &Session{User: out.User}
	for _, cookie := range resp.Cookies() {
		switch cookie.Name {
		case "token":
			session.AccessToken = cookie.Value
		case "refreshToken":
			session.RefreshToken = cookie.Value
		}
	}
	return session, nil
}

// Logout はログアウトする。accessTokenはTokenFn経由で付与済みのため
// ここでは使わないが、インターフェイスとしては明示的に受け取る。
func (c *HTTPClient) Logout(ctx context.Context, _ string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	return err
}

// Refresh はリフレッシュトークンでアクセストークンを更新する。
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var out struct {
		User model.Principal `json:"user"`
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/refresh", map[string]string{
		"refreshToken": refreshToken,
	}, &out)
	if err != nil {
		return nil, err
	}
	session := &Session{User: out.User}
	for _, cookie := range resp.Cookies() {
		switch cookie.Name {
		case "token":
			session.AccessToken = cookie.Value
		case "refreshToken":
			session.RefreshToken = cookie.Value
		}
	}
	return session, nil
}

var _ API = (*HTTPClient)(nil)

// CartList はHTTPClient上のカートのServerListビュー。
type CartList struct {
	client *HTTPClient
}

// Cart はカート用のServerListを返す。
func (c *HTTPClient) Cart() *CartList {
	return &CartList{client: c}
}

func (l *CartList) Add(ctx context.Context, item model.CartItem) error {
	_, err := l.client.do(ctx, http.MethodPost, "/api/cart", item, nil)
	return err
}

func (l *CartList) List(ctx context.Context) ([]model.CartItem, error) {
	var out struct {
		Items []model.CartItem `json:"items"`
	}
	if _, err := l.client.do(ctx, http.MethodGet, "/api/cart", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (l *CartList) Remove(ctx context.Context, key model.ItemKey) error {
	q := url.Values{"productId": {key.ProductID}}
	if key.Variant != "" {
		q.Set("variant", key.Variant)
	}
	_, err := l.client.do(ctx, http.MethodDelete, "/api/cart?"+q.Encode(), nil, nil)
	return err
}

var _ ServerList[model.CartItem] = (*CartList)(nil)

// WishlistList はHTTPClient上のウィッシュリストのServerListビュー。
type WishlistList struct {
	client *HTTPClient
}

// Wishlist はウィッシュリスト用のServerListを返す。
func (c *HTTPClient) Wishlist() *WishlistList {
	return &WishlistList{client: c}
}

func (l *WishlistList) Add(ctx context.Context, item model.WishlistItem) error {
	_, err := l.client.do(ctx, http.MethodPost, "/api/wishlist", item, nil)
	return err
}

func (l *WishlistList) List(ctx context.Context) ([]model.WishlistItem, error) {
	var out struct {
		Items []model.WishlistItem `json:"items"`
	}
	if _, err := l.client.do(ctx, http.MethodGet, "/api/wishlist", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (l *WishlistList) Remove(ctx context.Context, key model.ItemKey) error {
	q := url.Values{"productId": {key.ProductID}}
	if key.Variant != "" {
		q.Set("variant", key.Variant)
	}
	_, err := l.client.do(ctx, http.MethodDelete, "/api/wishlist?"+q.Encode(), nil, nil)
	return err
}

var _ ServerList[model.WishlistItem] = (*WishlistList)(nil)

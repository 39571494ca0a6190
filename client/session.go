package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/ichiba/internal/model"
)

// sessionStoreKey はLocalStore上のセッション保存キー。
const sessionStoreKey = "ichiba.session"

// Syncer はログイン・ログアウト時にSessionClientが駆動する
// 突合エンジンの面。SyncEngineが実装する。
type Syncer interface {
	Sync(ctx context.Context) error
	Reset()
}

// SessionClient はクライアント側のセッションを管理する。
// Principalとトークンをメモリに保持し、LocalStoreへ永続化する。
// 真実はサーバーのCookieであり、ここで持つ状態はその読み取りキャッシュ。
//
// ゲスト→認証済みの遷移ごとに、登録されたSyncerをちょうど一度ずつ
// 駆動する。ログイン済みのままLoginを重ねても再駆動はしない。
type SessionClient struct {
	api     API
	store   LocalStore
	logger  *slog.Logger
	syncers []Syncer

	mu      sync.Mutex
	session *Session
}

// NewSessionClient はSessionClientを生成する。
func NewSessionClient(api API, store LocalStore, logger *slog.Logger) *SessionClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionClient{api: api, store: store, logger: logger}
}

// RegisterSyncer はログイン時に駆動するSyncerを登録する。
func (c *SessionClient) RegisterSyncer(s Syncer) {
	c.syncers = append(c.syncers, s)
}

// Principal は現在ログイン中のPrincipalを返す。未ログインはnil。
func (c *SessionClient) Principal() *model.Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	p := c.session.User
	return &p
}

// AccessToken は現在のアクセストークンを返す。未ログインは空文字列。
// HTTPClient.TokenFnに配線する想定。
func (c *SessionClient) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

// IsAuthenticated はログイン中かを返す。
func (c *SessionClient) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// persistedSession はLocalStoreに保存するセッションの形。
type persistedSession struct {
	User         model.Principal `json:"user"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
}

func (c *SessionClient) persist(s *Session) {
	raw, err := json.Marshal(persistedSession{
		User:         s.User,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	})
	if err != nil {
		c.logger.Warn("セッションの保存に失敗しました", slog.String("error", err.Error()))
		return
	}
	c.store.Set(sessionStoreKey, string(raw))
}

// Restore はLocalStoreから前回のセッションを復元する。
// 起動直後に呼ぶ。復元はゲスト→認証済みの遷移ではないため
// Syncerは駆動しない（マージは明示的なログインの時だけ走る）。
func (c *SessionClient) Restore() bool {
	raw, ok := c.store.Get(sessionStoreKey)
	if !ok || raw == "" {
		return false
	}
	var p persistedSession
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		c.store.Delete(sessionStoreKey)
		return false
	}
	c.mu.Lock()
	c.session = &Session{
		User:         p.User,
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	}
	c.mu.Unlock()
	return true
}

// Login はログインし、成功したら各Syncerのマージを駆動する。
// マージの失敗はログインの失敗にはしない。ログに残して続行する。
func (c *SessionClient) Login(ctx context.Context, email, password string) (*model.Principal, error) {
	c.mu.Lock()
	alreadyAuthenticated := c.session != nil
	c.mu.Unlock()

	session, err := c.api.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	c.persist(session)

	if !alreadyAuthenticated {
		for _, s := range c.syncers {
			if err := s.Sync(ctx); err != nil {
				c.logger.Warn("ログイン後のリストマージに失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}

	p := session.User
	return &p, nil
}

// Logout はサーバーへログアウトを通知し、ローカルのセッションを破棄する。
// サーバー側の失敗があってもローカル状態は必ず片付ける。
func (c *SessionClient) Logout(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return nil
	}

	err := c.api.Logout(ctx, session.AccessToken)

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.store.Delete(sessionStoreKey)
	for _, s := range c.syncers {
		s.Reset()
	}

	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// Refresh はリフレッシュトークンでセッションを更新する。
// トークンの更新であってログインではないため、Syncerは駆動しない。
func (c *SessionClient) Refresh(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return model.ErrInvalidRefreshToken
	}

	next, err := c.api.Refresh(ctx, session.RefreshToken)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	c.mu.Lock()
	c.session = next
	c.mu.Unlock()
	c.persist(next)
	return nil
}

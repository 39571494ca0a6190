package client

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/ichiba/internal/model"
)

// mockAPI は認証エンドポイントのモック。
type mockAPI struct {
	loginFn    func(ctx context.Context, email, password string) (*Session, error)
	logoutFn   func(ctx context.Context, accessToken string) error
	refreshFn  func(ctx context.Context, refreshToken string) (*Session, error)
	loginCalls int
}

func (m *mockAPI) Login(ctx context.Context, email, password string) (*Session, error) {
	m.loginCalls++
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return testSession(), nil
}

func (m *mockAPI) Logout(ctx context.Context, accessToken string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, accessToken)
	}
	return nil
}

func (m *mockAPI) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return testSession(), nil
}

var _ API = (*mockAPI)(nil)

func testSession() *Session {
	return &Session{
		User: model.Principal{
			ID:    "user-1",
			Email: "taro@example.com",
			Name:  "山田太郎",
			Role:  model.RoleCustomer,
		},
		AccessToken:  "access-token-value",
		RefreshToken: "refresh-token-value",
	}
}

// mockSyncer はSyncerの呼び出し回数を数えるモック。
type mockSyncer struct {
	syncCalls  int
	resetCalls int
	syncFn     func(ctx context.Context) error
}

func (m *mockSyncer) Sync(ctx context.Context) error {
	m.syncCalls++
	if m.syncFn != nil {
		return m.syncFn(ctx)
	}
	return nil
}

func (m *mockSyncer) Reset() { m.resetCalls++ }

var _ Syncer = (*mockSyncer)(nil)

// TestLogin_StoresSessionAndTriggersSync はログイン成功でセッションが
// 保持され、Syncerがちょうど一度駆動されることを確認する。
func TestLogin_StoresSessionAndTriggersSync(t *testing.T) {
	api := &mockAPI{}
	store := NewMemoryStore()
	syncer := &mockSyncer{}
	c := NewSessionClient(api, store, discardLogger())
	c.RegisterSyncer(syncer)

	p, err := c.Login(context.Background(), "taro@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if p.ID != "user-1" {
		t.Errorf("principal ID = %s, want %s", p.ID, "user-1")
	}
	if !c.IsAuthenticated() {
		t.Error("IsAuthenticated() = false, want true")
	}
	if got := c.AccessToken(); got != "access-token-value" {
		t.Errorf("AccessToken() = %s, want %s", got, "access-token-value")
	}
	if syncer.syncCalls != 1 {
		t.Errorf("sync calls = %d, want %d", syncer.syncCalls, 1)
	}
	if _, ok := store.Get(sessionStoreKey); !ok {
		t.Error("session should be persisted to the local store")
	}
}

// TestLogin_RepeatedLoginDoesNotResync はログイン済みのままの再ログイン
// でSyncerが再駆動されないことを確認する。マージはゲスト→認証済みの
// 遷移ごとに一度だけ。
func TestLogin_RepeatedLoginDoesNotResync(t *testing.T) {
	api := &mockAPI{}
	syncer := &mockSyncer{}
	c := NewSessionClient(api, NewMemoryStore(), discardLogger())
	c.RegisterSyncer(syncer)

	ctx := context.Background()
	if _, err := c.Login(ctx, "taro@example.com", "password123"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if _, err := c.Login(ctx, "taro@example.com", "password123"); err != nil {
		t.Fatalf("second Login() error = %v", err)
	}

	if syncer.syncCalls != 1 {
		t.Errorf("sync calls = %d, want %d", syncer.syncCalls, 1)
	}
}

// TestLogin_FailureLeavesGuestState はログイン失敗でゲストのままで
// あることを確認する。
func TestLogin_FailureLeavesGuestState(t *testing.T) {
	api := &mockAPI{
		loginFn: func(ctx context.Context, email, password string) (*Session, error) {
			return nil, errors.New("invalid credentials")
		},
	}
	syncer := &mockSyncer{}
	c := NewSessionClient(api, NewMemoryStore(), discardLogger())
	c.RegisterSyncer(syncer)

	if _, err := c.Login(context.Background(), "taro@example.com", "wrong"); err == nil {
		t.Fatal("Login() should fail")
	}
	if c.IsAuthenticated() {
		t.Error("IsAuthenticated() = true, want false")
	}
	if syncer.syncCalls != 0 {
		t.Errorf("sync calls = %d, want %d", syncer.syncCalls, 0)
	}
}

// TestLogin_SyncFailureDoesNotFailLogin はマージの失敗がログイン自体を
// 失敗させないことを確認する。劣化としてログに残すだけ。
func TestLogin_SyncFailureDoesNotFailLogin(t *testing.T) {
	syncer := &mockSyncer{
		syncFn: func(ctx context.Context) error { return errors.New("server unavailable") },
	}
	c := NewSessionClient(&mockAPI{}, NewMemoryStore(), discardLogger())
	c.RegisterSyncer(syncer)

	if _, err := c.Login(context.Background(), "taro@example.com", "password123"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !c.IsAuthenticated() {
		t.Error("IsAuthenticated() = false, want true")
	}
}

// TestLogout_ClearsSessionAndResetsSyncers はログアウトでセッションが
// 破棄され、各Syncerがゲストへ戻されることを確認する。
func TestLogout_ClearsSessionAndResetsSyncers(t *testing.T) {
	api := &mockAPI{}
	store := NewMemoryStore()
	syncer := &mockSyncer{}
	c := NewSessionClient(api, store, discardLogger())
	c.RegisterSyncer(syncer)

	ctx := context.Background()
	if _, err := c.Login(ctx, "taro@example.com", "password123"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if c.IsAuthenticated() {
		t.Error("IsAuthenticated() = true, want false")
	}
	if syncer.resetCalls != 1 {
		t.Errorf("reset calls = %d, want %d", syncer.resetCalls, 1)
	}
	if _, ok := store.Get(sessionStoreKey); ok {
		t.Error("persisted session should be deleted")
	}
}

// TestLogout_ServerFailureStillClearsLocalState はサーバー側の失敗でも
// ローカルのセッションは必ず片付くことを確認する。
func TestLogout_ServerFailureStillClearsLocalState(t *testing.T) {
	api := &mockAPI{
		logoutFn: func(ctx context.Context, accessToken string) error {
			return errors.New("server unavailable")
		},
	}
	store := NewMemoryStore()
	c := NewSessionClient(api, store, discardLogger())

	ctx := context.Background()
	if _, err := c.Login(ctx, "taro@example.com", "password123"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := c.Logout(ctx); err == nil {
		t.Fatal("Logout() should surface the server error")
	}

	if c.IsAuthenticated() {
		t.Error("IsAuthenticated() = true, want false")
	}
	if _, ok := store.Get(sessionStoreKey); ok {
		t.Error("persisted session should be deleted")
	}
}

// TestLogout_WithoutSessionIsNoop は未ログインでのログアウトが
// no-opであることを確認する。
func TestLogout_WithoutSessionIsNoop(t *testing.T) {
	c := NewSessionClient(&mockAPI{}, NewMemoryStore(), discardLogger())
	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
}

// TestRefresh_RotatesTokensWithoutResync はトークン更新でSyncerが
// 駆動されないことを確認する。更新はログインではない。
func TestRefresh_RotatesTokensWithoutResync(t *testing.T) {
	rotated := &Session{
		User:         testSession().User,
		AccessToken:  "new-access-token",
		RefreshToken: "new-refresh-token",
	}
	var gotRefreshToken string
	api := &mockAPI{
		refreshFn: func(ctx context.Context, refreshToken string) (*Session, error) {
			gotRefreshToken = refreshToken
			return rotated, nil
		},
	}
	syncer := &mockSyncer{}
	c := NewSessionClient(api, NewMemoryStore(), discardLogger())
	c.RegisterSyncer(syncer)

	ctx := context.Background()
	if _, err := c.Login(ctx, "taro@example.com", "password123"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if gotRefreshToken != "refresh-token-value" {
		t.Errorf("refresh token sent = %s, want %s", gotRefreshToken, "refresh-token-value")
	}
	if got := c.AccessToken(); got != "new-access-token" {
		t.Errorf("AccessToken() = %s, want %s", got, "new-access-token")
	}
	if syncer.syncCalls != 1 {
		t.Errorf("sync calls = %d, want %d", syncer.syncCalls, 1)
	}
}

// TestRefresh_WithoutSessionFails は未ログインでのRefreshがエラーに
// なることを確認する。
func TestRefresh_WithoutSessionFails(t *testing.T) {
	c := NewSessionClient(&mockAPI{}, NewMemoryStore(), discardLogger())
	if err := c.Refresh(context.Background()); !errors.Is(err, model.ErrInvalidRefreshToken) {
		t.Fatalf("Refresh() error = %v, want %v", err, model.ErrInvalidRefreshToken)
	}
}

// TestRestore_RecoversSessionWithoutSync は保存済みセッションの復元が
// Syncerを駆動しないことを確認する。マージは明示的なログイン時のみ。
func TestRestore_RecoversSessionWithoutSync(t *testing.T) {
	store := NewMemoryStore()
	syncer := &mockSyncer{}

	first := NewSessionClient(&mockAPI{}, store, discardLogger())
	if _, err := first.Login(context.Background(), "taro@example.com", "password123"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	second := NewSessionClient(&mockAPI{}, store, discardLogger())
	second.RegisterSyncer(syncer)
	if !second.Restore() {
		t.Fatal("Restore() = false, want true")
	}
	if !second.IsAuthenticated() {
		t.Error("IsAuthenticated() = false, want true")
	}
	if got := second.AccessToken(); got != "access-token-value" {
		t.Errorf("AccessToken() = %s, want %s", got, "access-token-value")
	}
	if syncer.syncCalls != 0 {
		t.Errorf("sync calls = %d, want %d", syncer.syncCalls, 0)
	}
}

// TestRestore_CorruptDataIsDiscarded は壊れた保存データが破棄されて
// ゲストのままになることを確認する。
func TestRestore_CorruptDataIsDiscarded(t *testing.T) {
	store := NewMemoryStore()
	store.Set(sessionStoreKey, "{not json")

	c := NewSessionClient(&mockAPI{}, store, discardLogger())
	if c.Restore() {
		t.Fatal("Restore() = true, want false")
	}
	if _, ok := store.Get(sessionStoreKey); ok {
		t.Error("corrupt session data should be deleted")
	}
}

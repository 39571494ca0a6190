package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SyncState は突合エンジンの状態。
type SyncState string

const (
	// StateGuest は未ログイン。操作対象はローカルリスト。
	StateGuest SyncState = "guest"
	// StateSyncing はログイン直後のマージ実行中。
	StateSyncing SyncState = "syncing"
	// StateAuthenticated はマージ完了後。操作対象はサーバーリスト。
	StateAuthenticated SyncState = "authenticated"
)

// defaultAddTimeout はマージ中の1件あたりの追加リクエストの上限時間。
const defaultAddTimeout = 3 * time.Second

// ServerList はサーバー側リストの操作。追加は冪等であること
// （カートは数量加算、ウィッシュリストは重複no-op）。
type ServerList[T any] interface {
	Add(ctx context.Context, item T) error
	List(ctx context.Context) ([]T, error)
}

// SyncEngine はゲスト時にローカルへ溜めたリストを、ログイン時に
// サーバーへ一度だけマージする状態機械。カートとウィッシュリストの
// 両方をこの一つの型で賄う。
type SyncEngine[T any] struct {
	local  *LocalList[T]
	server ServerList[T]
	logger *slog.Logger
	name   string

	// AddTimeout はマージ中の1件あたりの追加タイムアウト。
	AddTimeout time.Duration

	mu    sync.Mutex
	state SyncState
	view  []T
}

// NewSyncEngine はゲスト状態のSyncEngineを生成する。
// nameはログ出力用の識別子（"cart"など）。
func NewSyncEngine[T any](name string, local *LocalList[T], server ServerList[T], logger *slog.Logger) *SyncEngine[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncEngine[T]{
		local:      local,
		server:     server,
		logger:     logger,
		name:       name,
		AddTimeout: defaultAddTimeout,
		state:      StateGuest,
	}
}

// State は現在の状態を返す。
func (e *SyncEngine[T]) State() SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsSyncing はマージ実行中かを返す。
func (e *SyncEngine[T]) IsSyncing() bool {
	return e.State() == StateSyncing
}

// Items は現在の状態に応じたリストを返す。
// ゲストはローカルリスト、認証済みはサーバー由来のビュー。
// ビューはCookieが真実であるサーバー状態の読み取りキャッシュにすぎない。
func (e *SyncEngine[T]) Items() []T {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateGuest {
		return e.local.Load()
	}
	items := make([]T, len(e.view))
	copy(items, e.view)
	return items
}

// AddLocal はゲスト状態でローカルリストへ項目を追加する。
// combineは既存項目との統合（マッチしたらtrue）。どれにもマッチ
// しなければ末尾に追加する。
func (e *SyncEngine[T]) AddLocal(item T, combine func(existing *T, added T) bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateGuest {
		return fmt.Errorf("add local is only valid in guest state, current: %s", e.state)
	}
	items := e.local.Load()
	merged := false
	for i := range items {
		if combine(&items[i], item) {
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, item)
	}
	return e.local.Save(items)
}

// Sync はゲスト→認証済みの遷移を実行する。
//
//  1. ローカルリストを読む。空ならネットワークへ出ずに認証済みへ遷移する。
//  2. 各項目をサーバーへ冪等に追加する。失敗はログに残すだけで
//     リトライせず、その項目は落として続行する。
//  3. ローカルリストを消す。
//  4. サーバーリストを読み直してビューとする。
//
// Syncing中の再呼び出しはno-op。認証済みでの再呼び出しもno-op。
// マージが走るのはゲスト→認証済みの遷移ごとに一度だけ。
func (e *SyncEngine[T]) Sync(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateGuest {
		e.mu.Unlock()
		return nil
	}
	e.state = StateSyncing
	pending := e.local.Load()
	e.mu.Unlock()

	// ローカルが空ならネットワークへ出ずにそのまま遷移する。
	// ビューは次のRefreshで取得される。
	if len(pending) == 0 {
		e.mu.Lock()
		e.state = StateAuthenticated
		e.mu.Unlock()
		return nil
	}

	dropped := 0
	for _, item := range pending {
		addCtx, cancel := context.WithTimeout(ctx, e.AddTimeout)
		err := e.server.Add(addCtx, item)
		cancel()
		if err != nil {
			dropped++
			e.logger.Warn("マージ中の項目追加に失敗しました",
				slog.String("list", e.name),
				slog.String("error", err.Error()),
			)
		}
	}

	e.local.Clear()

	view, err := e.server.List(ctx)
	if err != nil {
		// リストの読み直しに失敗しても状態は前進させる。
		// ビューは次のItems更新で取り直せる。
		e.logger.Warn("マージ後のサーバーリスト取得に失敗しました",
			slog.String("list", e.name),
			slog.String("error", err.Error()),
		)
		view = nil
	}

	e.mu.Lock()
	e.view = view
	e.state = StateAuthenticated
	e.mu.Unlock()

	e.logger.Info("ゲストリストをサーバーへマージしました",
		slog.String("list", e.name),
		slog.Int("merged", len(pending)-dropped),
		slog.Int("dropped", dropped),
	)
	return nil
}

// Refresh は認証済み状態でサーバーリストを読み直しビューを更新する。
func (e *SyncEngine[T]) Refresh(ctx context.Context) error {
	if e.State() != StateAuthenticated {
		return nil
	}
	view, err := e.server.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh server list: %w", err)
	}
	e.mu.Lock()
	e.view = view
	e.mu.Unlock()
	return nil
}

// Reset はログアウト時の認証済み→ゲストの遷移。
// ビューは破棄するが、サーバー側のリストには触れない。
func (e *SyncEngine[T]) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view = nil
	e.state = StateGuest
}

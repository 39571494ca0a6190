package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore はプロセス内メモリに失効エントリを保持するStore実装。
// 単一プロセス構成向け。バックグラウンドで期限切れエントリを定期削除する。
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time // jti → expiresAt

	now    func() time.Time
	stopCh chan struct{}
}

// NewMemoryStore はMemoryStoreを生成し、クリーンアップゴルーチンを開始する。
// cleanupIntervalが0の場合は5分が使われる。
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}

	s := &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go s.cleanupLoop(cleanupInterval)

	return s
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (s *MemoryStore) Stop() {
	close(s.stopCh)
}

// Revoke はjtiをexpiresAtまで失効済みとして登録する。
func (s *MemoryStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jti] = expiresAt
	return nil
}

// IsRevoked はjtiが失効済みかどうかを返す。
// 期限の過ぎたエントリは未失効扱いとなる（トークン自体が期限切れのため、
// 検証段階で先に落ちる）。
func (s *MemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiresAt, ok := s.entries[jti]
	if !ok {
		return false, nil
	}
	return expiresAt.After(s.now()), nil
}

// Len は現在保持しているエントリ数を返す。テストおよびメトリクス用。
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// cleanupLoop は定期的に期限切れエントリを削除する。
func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup は期限の過ぎたエントリをまとめて削除する。
func (s *MemoryStore) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for jti, expiresAt := range s.entries {
		if !expiresAt.After(now) {
			delete(s.entries, jti)
		}
	}
}

// compile-time interface check
var _ Store = (*MemoryStore)(nil)

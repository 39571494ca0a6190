// Package client はブラウザー相当のセッション管理と、ゲスト状態の
// カート・ウィッシュリストをサーバーへ突合するクライアントライブラリを提供する。
package client

import (
	"encoding/json"
	"fmt"
	"sync"
)

// LocalStore は耐久クライアントストレージ（localStorage相当）の抽象。
// 値は文字列としてのみ保持し、構造化データはJSONで格納する。
type LocalStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// MemoryStore はインメモリのLocalStore実装。
// テストおよび非ブラウザー環境での既定実装。
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

var _ LocalStore = (*MemoryStore)(nil)

// LocalList はLocalStore上のJSONリストビュー。
// ゲスト状態のカート・ウィッシュリストの置き場となる。
type LocalList[T any] struct {
	store LocalStore
	key   string
}

// NewLocalList は指定キーのLocalListを生成する。
func NewLocalList[T any](store LocalStore, key string) *LocalList[T] {
	return &LocalList[T]{store: store, key: key}
}

// Load はリストを読み出す。未保存または壊れたJSONは空リストとして扱う。
func (l *LocalList[T]) Load() []T {
	raw, ok := l.store.Get(l.key)
	if !ok || raw == "" {
		return nil
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}

// Save はリストを保存する。
func (l *LocalList[T]) Save(items []T) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode local list: %w", err)
	}
	l.store.Set(l.key, string(raw))
	return nil
}

// Clear はリストを削除する。
func (l *LocalList[T]) Clear() {
	l.store.Delete(l.key)
}

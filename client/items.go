package client

import (
	"log/slog"

	"github.com/hitoshi/ichiba/internal/model"
)

// ゲストリストのLocalStoreキー。
const (
	cartStoreKey     = "ichiba.cart"
	wishlistStoreKey = "ichiba.wishlist"
)

// CombineCart はゲストカートへの追加統合。同一キーは数量を加算する。
// サーバー側のUPSERT契約と同じ意味論をローカルでも保つ。
func CombineCart(existing *model.CartItem, added model.CartItem) bool {
	if existing.Key() != added.Key() {
		return false
	}
	existing.Quantity += added.Quantity
	return true
}

// CombineWishlist はゲストウィッシュリストへの追加統合。
// 同一キーの重複追加はno-op。
func CombineWishlist(existing *model.WishlistItem, added model.WishlistItem) bool {
	return existing.Key() == added.Key()
}

// NewCartSyncEngine はカート用のSyncEngineを標準のストレージキーで生成する。
func NewCartSyncEngine(store LocalStore, server ServerList[model.CartItem], logger *slog.Logger) *SyncEngine[model.CartItem] {
	return NewSyncEngine("cart", NewLocalList[model.CartItem](store, cartStoreKey), server, logger)
}

// NewWishlistSyncEngine はウィッシュリスト用のSyncEngineを標準の
// ストレージキーで生成する。
func NewWishlistSyncEngine(store LocalStore, server ServerList[model.WishlistItem], logger *slog.Logger) *SyncEngine[model.WishlistItem] {
	return NewSyncEngine("wishlist", NewLocalList[model.WishlistItem](store, wishlistStoreKey), server, logger)
}

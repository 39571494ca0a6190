// Package model はドメインモデルを定義する。
package model

import "time"

// ItemKey はカート・ウィッシュリスト項目の同一性キー。
// (ProductID, Variant)が一致する2つの項目は同一ラインとみなす。
// Variantは色・サイズ等を表す不透明なキーで、未指定の場合は空文字列。
type ItemKey struct {
	ProductID string
	Variant   string
}

// CartItem はカート内の1ラインを表す。
// 同一キーへの追加は数量の加算となる（サーバー側UPSERTの冪等性契約）。
type CartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant,omitempty"`
}

// Key はCartItemの同一性キーを返す。
func (i CartItem) Key() ItemKey {
	return ItemKey{ProductID: i.ProductID, Variant: i.Variant}
}

// WishlistItem はウィッシュリスト内の1エントリを表す。
// 数量の概念はなく、同一キーへの追加はno-opとなる。
type WishlistItem struct {
	ProductID string `json:"productId"`
	Variant   string `json:"variant,omitempty"`
}

// Key はWishlistItemの同一性キーを返す。
func (i WishlistItem) Key() ItemKey {
	return ItemKey{ProductID: i.ProductID, Variant: i.Variant}
}

// StoredCartItem はDBに永続化されたカートラインを表す。
type StoredCartItem struct {
	ID        string
	UserID    string
	ProductID string
	Quantity  int
	Variant   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StoredWishlistItem はDBに永続化されたウィッシュリストエントリを表す。
type StoredWishlistItem struct {
	ID        string
	UserID    string
	ProductID string
	Variant   string
	CreatedAt time.Time
}

// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizer はユーザー入力の表示名などをサニタイズし、
// 格納型XSSからユーザーを保護する。bluemondayライブラリの
// 許可リストベースのポリシーで、タグを一切通さない。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizer はプロフィール系の自由入力フィールドを
// プレーンテキストへ正規化する。
//
// 処理の内容:
//   - HTMLタグを全て除去する（script要素は中身ごと落ちる）
//   - サニタイズで生じたエンティティ参照を復元する（& は & のまま残る）
//   - 前後の空白と制御文字を取り除く
//
// 同一入力に対して常に同一出力を返す（冪等）。
type ProfileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerを生成する。
func NewProfileSanitizer() *ProfileSanitizer {
	return &ProfileSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeName は表示名をサニタイズする。
// タグを剥がした結果が空になる入力には空文字列を返す。
func (s *ProfileSanitizer) SanitizeName(raw string) string {
	stripped := s.policy.Sanitize(raw)
	// bluemondayは残ったテキストをエンティティ参照へエスケープするため、
	// DBにはデコード済みのプレーンテキストを入れる。
	decoded := html.UnescapeString(stripped)
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, decoded)
	return strings.TrimSpace(cleaned)
}

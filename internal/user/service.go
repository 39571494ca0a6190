// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ichiba/internal/model"
	"github.com/hitoshi/ichiba/internal/repository"
)

// RefreshTokenRevoker はユーザーの全リフレッシュトークン取り消しインターフェース。
type RefreshTokenRevoker interface {
	RevokeAllByUserID(ctx context.Context, userID string, at time.Time) error
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	users         repository.UserRepository
	refreshTokens RefreshTokenRevoker
	now           func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users repository.UserRepository, refreshTokens RefreshTokenRevoker) *Service {
	return &Service{
		users:         users,
		refreshTokens: refreshTokens,
		now:           time.Now,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// リフレッシュトークンを先に取り消してからユーザー行を削除する。
// refresh_tokens、cart_items、wishlist_itemsはCASCADE削除され、
// security_eventsはuser_idがNULLに落ちて匿名化された状態で残る。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.ErrUnknownPrincipal
	}

	slog.Info("starting user withdrawal",
		slog.String("user_id", userID),
	)

	// 削除と同一トランザクションではないが、取り消しを先に行うことで
	// 退会後にリフレッシュトークンが使われる窓を塞ぐ
	if s.refreshTokens != nil {
		if err := s.refreshTokens.RevokeAllByUserID(ctx, userID, s.now()); err != nil {
			return fmt.Errorf("failed to revoke refresh tokens: %w", err)
		}
	}

	if err := s.users.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user withdrawal completed",
		slog.String("user_id", userID),
	)

	return nil
}

// Package cleanup は期限切れトークンの自動削除ジョブを提供する。
// 失効期限を過ぎたrefresh_tokensとverification_tokensを定期バッチで削除する。
// 期限切れトークンは検証時にも拒否されるため、このジョブは安全性ではなく
// テーブル肥大の抑制を目的とする。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredDeleter は期限切れレコードの一括削除インターフェース。
// repository.RefreshTokenRepositoryとVerificationTokenRepositoryの部分集合。
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Job は期限切れトークンの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、削除は冪等となる。
type Job struct {
	refreshTokens      ExpiredDeleter
	verificationTokens ExpiredDeleter
	logger             *slog.Logger
	// GracePeriod は期限切れ後もレコードを残す猶予期間。
	// 直近の失効を監査・デバッグで参照できるようにする。
	GracePeriod time.Duration
	now         func() time.Time
}

// NewJob は新しいJobを生成する。デフォルトの猶予期間は24時間。
func NewJob(refreshTokens, verificationTokens ExpiredDeleter, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		refreshTokens:      refreshTokens,
		verificationTokens: verificationTokens,
		logger:             logger,
		GracePeriod:        24 * time.Hour,
		now:                time.Now,
	}
}

// Run は猶予期間を過ぎた期限切れトークンを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	start := j.now()
	cutoff := start.Add(-j.GracePeriod)

	refreshDeleted, err := j.refreshTokens.DeleteExpired(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to delete expired refresh tokens",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}

	verificationDeleted, err := j.verificationTokens.DeleteExpired(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to delete expired verification tokens",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to delete expired verification tokens: %w", err)
	}

	j.logger.Info("token cleanup completed",
		slog.Int64("refresh_tokens_deleted", refreshDeleted),
		slog.Int64("verification_tokens_deleted", verificationDeleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// RunPeriodically はintervalごとにRunを実行し、コンテキストの取り消しで停止する。
// 起動直後にも一度実行する。
func (j *Job) RunPeriodically(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("token cleanup run failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("token cleanup worker stopped")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("token cleanup run failed", slog.String("error", err.Error()))
			}
		}
	}
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"diagnosis-key-service/internal/domain"
)

// SweepResult は保持期間スイープの結果を表す。
type SweepResult struct {
	DeletedKeys          int64
	DeletedVerifications int64
}

// RetentionService は保持期間を超えたレコードの削除を提供する。
// キーはインターバル番号基準、検証レコードは実時刻基準という
// 独立した2つの境界を持ち、互いに混同してはならない。
type RetentionService struct {
	repo               DiagnosisKeyRepository
	keyRetentionDays   int
	tokenRetentionDays int
}

// NewRetentionService は新しいRetentionServiceを生成する。
func NewRetentionService(repo DiagnosisKeyRepository, keyRetentionDays, tokenRetentionDays int) *RetentionService {
	return &RetentionService{
		repo:               repo,
		keyRetentionDays:   keyRetentionDays,
		tokenRetentionDays: tokenRetentionDays,
	}
}

// Sweep は2つの保持期間スイープを実行する。
// キー削除と台帳削除は独立しており、片方の失敗はもう片方を妨げない。
func (s *RetentionService) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	result := &SweepResult{}

	keyCutoff := domain.To24HourInterval(now) - s.keyRetentionDays
	deletedKeys, keyErr := s.repo.DeleteKeysBefore(ctx, keyCutoff)
	if keyErr == nil {
		result.DeletedKeys = deletedKeys
	}

	tokenCutoff := now.Add(-time.Duration(s.tokenRetentionDays) * 24 * time.Hour)
	deletedVerifications, tokenErr := s.repo.DeleteVerificationsBefore(ctx, tokenCutoff)
	if tokenErr == nil {
		result.DeletedVerifications = deletedVerifications
	}

	if keyErr != nil {
		return result, fmt.Errorf("deleting expired keys: %w", keyErr)
	}
	if tokenErr != nil {
		return result, fmt.Errorf("deleting expired verifications: %w", tokenErr)
	}

	slog.InfoContext(ctx, "retention sweep completed",
		"operation", "sweep",
		"key_cutoff_interval", keyCutoff,
		"token_cutoff", tokenCutoff.Format(time.RFC3339),
		"deleted_keys", result.DeletedKeys,
		"deleted_verifications", result.DeletedVerifications,
	)
	return result, nil
}

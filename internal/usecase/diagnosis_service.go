// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"diagnosis-key-service/internal/domain"
)

// DiagnosisKeyRepository は診断キーと検証台帳へのデータアクセスのインターフェース。
type DiagnosisKeyRepository interface {
	AddKeys(ctx context.Context, verificationID int64, batchHash string, interval int, keys []domain.TemporaryExposureKey) (bool, error)
	GetIntervalKeys(ctx context.Context, interval int) ([]domain.TemporaryExposureKey, error)
	GetKeyCount(ctx context.Context, interval int) (int64, error)
	GetAvailableIntervals(ctx context.Context) ([]int, error)
	DeleteKeysBefore(ctx context.Context, interval int) (int64, error)
	DeleteVerificationsBefore(ctx context.Context, before time.Time) (int64, error)
}

// Verifier は検証サービス境界のインターフェース。
// トークンを認証済みの (検証ID, バッチハッシュ) に解決する。
// 本コンポーネントは返された組をそのまま信頼し、整合性のみを強制する。
type Verifier interface {
	Verify(ctx context.Context, token string) (verificationID int64, batchHash string, err error)
}

// SubmissionResult は送信処理の結果を表す。
type SubmissionResult struct {
	Interval int  // キーが保存された24時間インターバル
	KeyCount int  // 送信されたキー数
	Accepted bool // falseは同一ハッシュ再送信による正常な重複排除
}

// DiagnosisService は診断キー送信・参照のビジネスロジックを提供する。
type DiagnosisService struct {
	repo     DiagnosisKeyRepository
	verifier Verifier
}

// NewDiagnosisService は新しいDiagnosisServiceを生成する。
func NewDiagnosisService(repo DiagnosisKeyRepository, verifier Verifier) *DiagnosisService {
	return &DiagnosisService{
		repo:     repo,
		verifier: verifier,
	}
}

// SubmitKeys はトークンを検証し、キーを現在の24時間インターバルに保存する。
// 同一検証ID・同一ハッシュの再送信は受理済みとして扱い、キーを変更しない。
// 同一検証IDで異なるハッシュの場合はdomain.ErrVerificationConflictを返す。
func (s *DiagnosisService) SubmitKeys(ctx context.Context, token string, keys []domain.TemporaryExposureKey) (*SubmissionResult, error) {
	for _, key := range keys {
		if err := key.Validate(); err != nil {
			return nil, err
		}
	}

	verificationID, batchHash, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("verifying publish token: %w", err)
	}

	interval := domain.To24HourInterval(time.Now())
	accepted, err := s.repo.AddKeys(ctx, verificationID, batchHash, interval, keys)
	if err != nil {
		if errors.Is(err, domain.ErrVerificationConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("adding keys: %w", err)
	}

	return &SubmissionResult{
		Interval: interval,
		KeyCount: len(keys),
		Accepted: accepted,
	}, nil
}

// GetIntervalKeys は指定インターバルの全キーをキー内容の昇順で取得する。
func (s *DiagnosisService) GetIntervalKeys(ctx context.Context, interval int) ([]domain.TemporaryExposureKey, error) {
	if interval < 0 {
		return nil, domain.ErrInvalidInterval
	}
	keys, err := s.repo.GetIntervalKeys(ctx, interval)
	if err != nil {
		return nil, fmt.Errorf("finding interval keys: %w", err)
	}
	return keys, nil
}

// GetKeyCount は指定インターバルのキー数を取得する。
func (s *DiagnosisService) GetKeyCount(ctx context.Context, interval int) (int64, error) {
	if interval < 0 {
		return 0, domain.ErrInvalidInterval
	}
	count, err := s.repo.GetKeyCount(ctx, interval)
	if err != nil {
		return 0, fmt.Errorf("counting interval keys: %w", err)
	}
	return count, nil
}

// ListIntervals はキーが存在するインターバル番号を昇順で取得する。
func (s *DiagnosisService) ListIntervals(ctx context.Context) ([]int, error) {
	intervals, err := s.repo.GetAvailableIntervals(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing intervals: %w", err)
	}
	return intervals, nil
}

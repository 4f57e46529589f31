package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"diagnosis-key-service/internal/domain"
)

func TestRetentionService_Sweep(t *testing.T) {
	repo := &mockDiagnosisKeyRepository{deletedKeys: 5, deletedVerifs: 2}
	svc := NewRetentionService(repo, 14, 21)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	result, err := svc.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if result.DeletedKeys != 5 || result.DeletedVerifications != 2 {
		t.Errorf("unexpected result: %+v", result)
	}

	// キーはインターバル番号基準で削除される
	wantKeyBound := domain.To24HourInterval(now) - 14
	if repo.deleteKeysBound != wantKeyBound {
		t.Errorf("expected key cutoff %d, got %d", wantKeyBound, repo.deleteKeysBound)
	}

	// 検証レコードは実時刻基準で削除される
	wantVerifBound := now.Add(-21 * 24 * time.Hour)
	if !repo.deleteVerifsBound.Equal(wantVerifBound) {
		t.Errorf("expected verification cutoff %v, got %v", wantVerifBound, repo.deleteVerifsBound)
	}
}

func TestRetentionService_Sweep_KeyDeletionErrorDoesNotSkipLedger(t *testing.T) {
	repo := &mockDiagnosisKeyRepository{
		deleteKeysErr: errors.New("db unavailable"),
		deletedVerifs: 3,
	}
	svc := NewRetentionService(repo, 14, 14)

	now := time.Now()
	result, err := svc.Sweep(context.Background(), now)
	if err == nil {
		t.Fatal("expected error from key deletion")
	}

	// 台帳側のスイープは実行され、結果に反映される
	if repo.deleteVerifsBound.IsZero() {
		t.Error("expected verification sweep to run despite key deletion failure")
	}
	if result.DeletedVerifications != 3 {
		t.Errorf("expected 3 deleted verifications, got %d", result.DeletedVerifications)
	}
}

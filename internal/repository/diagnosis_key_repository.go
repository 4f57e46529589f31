// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"diagnosis-key-service/internal/domain"
)

// DiagnosisKeyModel はdiagnosis_keysテーブルのgorm用モデル定義。
// レコードは追記専用であり、更新されることはない。削除はインターバル境界単位のみ。
type DiagnosisKeyModel struct {
	ID                         string    `gorm:"type:char(36);primaryKey"`
	IntervalNumber             int       `gorm:"not null;uniqueIndex:uk_interval_key_data,priority:1"`
	VerificationID             int64     `gorm:"not null;index:idx_verification_id"`
	KeyData                    string    `gorm:"type:varchar(24);not null;uniqueIndex:uk_interval_key_data,priority:2"`
	TransmissionRiskLevel      int       `gorm:"not null"`
	RollingStartIntervalNumber int       `gorm:"not null"`
	RollingPeriod              int       `gorm:"not null;default:144"`
	CreatedAt                  time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (DiagnosisKeyModel) TableName() string {
	return "diagnosis_keys"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *DiagnosisKeyModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// toDomain はモデルをドメインの値オブジェクトに変換する。
func (m *DiagnosisKeyModel) toDomain() domain.TemporaryExposureKey {
	return domain.TemporaryExposureKey{
		KeyData:                    m.KeyData,
		TransmissionRiskLevel:      m.TransmissionRiskLevel,
		RollingStartIntervalNumber: m.RollingStartIntervalNumber,
		RollingPeriod:              m.RollingPeriod,
	}
}

// VerificationModel はverificationsテーブルのgorm用モデル定義。
// verification_idを主キーとする一意性制約が、同一IDの同時初回送信の競合を直列化する。
type VerificationModel struct {
	VerificationID int64     `gorm:"primaryKey;autoIncrement:false"`
	BatchHash      string    `gorm:"type:varchar(64);not null"`
	CreatedAt      time.Time `gorm:"type:datetime(6);not null;autoCreateTime;index:idx_verifications_created_at"`
}

// TableName はテーブル名を返す。
func (VerificationModel) TableName() string {
	return "verifications"
}

// toDomain はモデルをドメインの台帳レコードに変換する。
func (m *VerificationModel) toDomain() domain.Verification {
	return domain.Verification{
		VerificationID: m.VerificationID,
		BatchHash:      m.BatchHash,
		CreatedAt:      m.CreatedAt,
	}
}

// DiagnosisKeyRepository は診断キーと検証台帳へのデータアクセスを提供する。
type DiagnosisKeyRepository struct {
	db *gorm.DB
}

// NewDiagnosisKeyRepository は新しいDiagnosisKeyRepositoryを生成する。
func NewDiagnosisKeyRepository(db *gorm.DB) *DiagnosisKeyRepository {
	return &DiagnosisKeyRepository{db: db}
}

// AddKeys は検証台帳の判定とキー挿入を単一トランザクションで実行する。
// 戻り値のacceptedは、キーが実際に挿入されたかを示す。
//   - 台帳に記録がない場合: 記録を作成しキーを挿入する（accepted=true）
//   - 同一ハッシュで記録済みの場合: 何もしない（accepted=false、エラーなし）
//   - 異なるハッシュで記録済みの場合: domain.ErrVerificationConflictを返す
//
// コミットは全成功時のみ。失敗時は台帳・キーとも一切変更されない。
func (r *DiagnosisKeyRepository) AddKeys(ctx context.Context, verificationID int64, batchHash string, interval int, keys []domain.TemporaryExposureKey) (bool, error) {
	accepted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing VerificationModel
		err := tx.Where("verification_id = ?", verificationID).First(&existing).Error
		switch {
		case err == nil:
			if !existing.toDomain().Matches(batchHash) {
				return domain.ErrVerificationConflict
			}
			// 同一ハッシュの再送信は正常な重複として無視する
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			// 初回送信
		default:
			return err
		}

		verification := VerificationModel{
			VerificationID: verificationID,
			BatchHash:      batchHash,
		}
		if err := tx.Create(&verification).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return r.resolveConcurrentSubmission(ctx, verificationID, batchHash)
			}
			return err
		}

		accepted = true
		if len(keys) == 0 {
			return nil
		}

		models := make([]DiagnosisKeyModel, len(keys))
		for i, key := range keys {
			models[i] = DiagnosisKeyModel{
				IntervalNumber:             interval,
				VerificationID:             verificationID,
				KeyData:                    key.KeyData,
				TransmissionRiskLevel:      key.TransmissionRiskLevel,
				RollingStartIntervalNumber: key.RollingStartIntervalNumber,
				RollingPeriod:              key.RollingPeriod,
			}
		}
		// 同一インターバル内で同内容のキーは集合として扱う
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models).Error
	})
	if err != nil {
		if !errors.Is(err, domain.ErrVerificationConflict) {
			slog.ErrorContext(ctx, "failed to add keys",
				"operation", "add_keys",
				"verification_id", verificationID,
				"interval", interval,
				"key_count", len(keys),
				"error", err,
			)
		}
		return false, err
	}
	return accepted, nil
}

// resolveConcurrentSubmission は同時初回送信で一意性制約に敗れた側の判定を行う。
// REPEATABLE READでは敗者のトランザクション内の再読み込みがスナップショットの
// 都合で勝者のコミットを観測できないため、新しいセッションで台帳を読み直す。
// 重複キーエラーは勝者のコミット後にしか発生しないので、この読み取りは必ず記録を観測する。
func (r *DiagnosisKeyRepository) resolveConcurrentSubmission(ctx context.Context, verificationID int64, batchHash string) error {
	var winner VerificationModel
	if err := r.db.WithContext(ctx).Where("verification_id = ?", verificationID).First(&winner).Error; err != nil {
		return err
	}
	if !winner.toDomain().Matches(batchHash) {
		return domain.ErrVerificationConflict
	}
	// 同一ハッシュの同時送信: 勝者の挿入を自分の受理として扱う
	return nil
}

// GetIntervalKeys は指定インターバルの全キーをキー内容の昇順で取得する。
// ソート順は読み取りの明示的な契約であり、挿入順には依存しない。
// 未知のインターバルでは空のスライスを返す。
func (r *DiagnosisKeyRepository) GetIntervalKeys(ctx context.Context, interval int) ([]domain.TemporaryExposureKey, error) {
	var models []DiagnosisKeyModel
	err := r.db.WithContext(ctx).
		Where("interval_number = ?", interval).
		Order("key_data ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to get interval keys",
			"operation", "get_interval_keys",
			"interval", interval,
			"error", err,
		)
		return nil, err
	}

	keys := make([]domain.TemporaryExposureKey, len(models))
	for i, m := range models {
		keys[i] = m.toDomain()
	}
	return keys, nil
}

// GetKeyCount は指定インターバルのキー数を取得する。未知のインターバルでは0を返す。
func (r *DiagnosisKeyRepository) GetKeyCount(ctx context.Context, interval int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&DiagnosisKeyModel{}).
		Where("interval_number = ?", interval).
		Count(&count).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to count interval keys",
			"operation", "get_key_count",
			"interval", interval,
			"error", err,
		)
		return 0, err
	}
	return count, nil
}

// GetAvailableIntervals はキーが存在するインターバル番号を昇順で取得する。
func (r *DiagnosisKeyRepository) GetAvailableIntervals(ctx context.Context) ([]int, error) {
	var intervals []int
	err := r.db.WithContext(ctx).
		Model(&DiagnosisKeyModel{}).
		Distinct("interval_number").
		Order("interval_number ASC").
		Pluck("interval_number", &intervals).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to get available intervals",
			"operation", "get_available_intervals",
			"error", err,
		)
		return nil, err
	}
	return intervals, nil
}

// DeleteKeysBefore は指定インターバルより前（境界自体は含まない）の全キーを削除する。
// 冪等であり、検証台帳には触れない。
func (r *DiagnosisKeyRepository) DeleteKeysBefore(ctx context.Context, interval int) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("interval_number < ?", interval).
		Delete(&DiagnosisKeyModel{})
	if result.Error != nil {
		slog.ErrorContext(ctx, "failed to delete keys",
			"operation", "delete_keys_before",
			"interval", interval,
			"error", result.Error,
		)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// DeleteVerificationsBefore は指定時刻より前に受理された検証レコードを削除する。
// キー削除とは独立した保持期間スイープ。
func (r *DiagnosisKeyRepository) DeleteVerificationsBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&VerificationModel{})
	if result.Error != nil {
		slog.ErrorContext(ctx, "failed to delete verifications",
			"operation", "delete_verifications_before",
			"before", before,
			"error", result.Error,
		)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

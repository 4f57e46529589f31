// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import "encoding/base64"

const (
	// KeyDataLength は診断キーのバイト長（Base64デコード後）。
	KeyDataLength = 16
	// MaxTransmissionRiskLevel は感染リスクレベルの上限。
	MaxTransmissionRiskLevel = 8
	// MaxRollingPeriod はローリング期間の上限（10分インターバル数、24時間分）。
	MaxRollingPeriod = 144
)

// TemporaryExposureKey は端末が発行する診断キーを表す。
// 不変の値オブジェクトであり、等価性は全フィールドの構造的比較による。
type TemporaryExposureKey struct {
	KeyData                    string // Base64エンコードされた16バイトのキー本体
	TransmissionRiskLevel      int
	RollingStartIntervalNumber int // キーが有効になった10分インターバル番号
	RollingPeriod              int // 有効期間（10分インターバル数、通常は144）
}

// Validate はキーの構造的な形状を検証する。
// 暗号学的な内容の検証は行わない。
func (k TemporaryExposureKey) Validate() error {
	raw, err := base64.StdEncoding.DecodeString(k.KeyData)
	if err != nil || len(raw) != KeyDataLength {
		return ErrInvalidKey
	}
	if k.TransmissionRiskLevel < 0 || k.TransmissionRiskLevel > MaxTransmissionRiskLevel {
		return ErrInvalidKey
	}
	if k.RollingStartIntervalNumber < 0 {
		return ErrInvalidKey
	}
	if k.RollingPeriod < 1 || k.RollingPeriod > MaxRollingPeriod {
		return ErrInvalidKey
	}
	return nil
}

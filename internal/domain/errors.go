package domain

import "errors"

var (
	// ErrVerificationConflict は同一検証IDが異なるバッチハッシュで再送信された場合のエラー。
	// 送信内容の改ざんまたはトークンの不正再利用を示す。
	ErrVerificationConflict = errors.New("verification token already bound to a different batch")

	// ErrVerificationFailed は検証サービスがトークンを拒否した場合のエラー。
	ErrVerificationFailed = errors.New("token verification failed")

	// ErrInvalidKey は診断キーの形状が不正な場合のエラー。
	ErrInvalidKey = errors.New("invalid diagnosis key")

	// ErrInvalidInterval はインターバル番号が不正な場合のエラー。
	ErrInvalidInterval = errors.New("invalid interval number")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)

package domain

import "time"

// Verification は検証IDとバッチハッシュの束縛を表す台帳レコード。
// 検証IDごとに1件のみ存在し、バッチハッシュは一度束縛されると変更されない。
type Verification struct {
	VerificationID int64
	BatchHash      string // 送信内容のフィンガープリント（中身は不透明な文字列として扱う）
	CreatedAt      time.Time
}

// Matches は送信されたバッチハッシュが束縛済みのハッシュと一致するかを返す。
// 一致すれば重複送信（無変更で成功）、不一致なら競合として拒否される。
func (v Verification) Matches(batchHash string) bool {
	return v.BatchHash == batchHash
}

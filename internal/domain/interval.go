package domain

import "time"

const (
	// SecondsPer24Hours は24時間インターバルの幅（秒）。
	SecondsPer24Hours = 24 * 60 * 60
	// SecondsPer10Minutes は診断キーのローリング単位（秒）。
	SecondsPer10Minutes = 10 * 60
)

// To24HourInterval は時刻を24時間インターバル番号に変換する。
// 診断キーの保存バケットおよび削除境界の単位。
func To24HourInterval(t time.Time) int {
	return int(t.Unix() / SecondsPer24Hours)
}

// To10MinInterval は時刻を10分インターバル番号に変換する。
// キーのRollingStartIntervalNumberの単位。
func To10MinInterval(t time.Time) int {
	return int(t.Unix() / SecondsPer10Minutes)
}

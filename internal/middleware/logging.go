// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// WriteAuditLog は送信操作の監査ログを出力する。
// 検証IDそのものは記録しない（到達口での突合を避けるため、件数と結果のみ）。
func WriteAuditLog(ctx context.Context, operation string, interval int, keyCount int, result string) {
	slog.InfoContext(ctx, "diagnosis key operation completed",
		"operation", operation,
		"interval", interval,
		"key_count", keyCount,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	)
}

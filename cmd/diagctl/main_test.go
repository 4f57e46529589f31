package main

import (
	"testing"

	"diagnosis-key-service/config"
)

func TestEffectiveRetention(t *testing.T) {
	cfg := &config.Config{KeyRetentionDays: 7, TokenRetentionDays: 21}

	// フラグ未指定なら設定値に揃う
	cmd := purgeCmd()
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	keyDays, tokenDays := effectiveRetention(cmd, cfg, 14, 14)
	if keyDays != 7 || tokenDays != 21 {
		t.Errorf("expected config values (7, 21), got (%d, %d)", keyDays, tokenDays)
	}

	// 明示されたフラグは設定値より優先される
	cmd = purgeCmd()
	if err := cmd.ParseFlags([]string{"--key-retention-days=3"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	keyDays, tokenDays = effectiveRetention(cmd, cfg, 3, 14)
	if keyDays != 3 {
		t.Errorf("expected explicit flag value 3, got %d", keyDays)
	}
	if tokenDays != 21 {
		t.Errorf("expected config value 21 for unset flag, got %d", tokenDays)
	}
}

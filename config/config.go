// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port                   string
	DatabaseURL            string
	VerificationServiceURL string
	LogLevel               string

	// 保持期間設定
	KeyRetentionDays   int           // 診断キーを保持する日数（24hインターバル単位）
	TokenRetentionDays int           // 検証レコードを保持する日数（実時刻基準）
	SweepInterval      time.Duration // 保持期間スイープの実行間隔

	// OpenTelemetry設定
	OtelEnabled        bool
	OtelEndpoint       string
	OtelServiceName    string
	OtelSamplingRate   float64
	GoogleCloudProject string
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		Port:                   getEnv("PORT", "8080"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		VerificationServiceURL: os.Getenv("VERIFICATION_SERVICE_URL"),
		LogLevel:               getEnv("LOG_LEVEL", "INFO"),
		KeyRetentionDays:       getEnvInt("KEY_RETENTION_DAYS", 14),
		TokenRetentionDays:     getEnvInt("TOKEN_RETENTION_DAYS", 14),
		SweepInterval:          getEnvDuration("SWEEP_INTERVAL", time.Hour),
		OtelEnabled:            getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:           getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelServiceName:        getEnv("OTEL_SERVICE_NAME", "diagnosis-key-service"),
		OtelSamplingRate:       getEnvFloat("OTEL_SAMPLING_RATE", 0.1),
		GoogleCloudProject:     os.Getenv("GOOGLE_CLOUD_PROJECT"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

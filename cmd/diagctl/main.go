// Package main は運用CLIツールのエントリポイント。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"diagnosis-key-service/config"
	"diagnosis-key-service/internal/infra"
	"diagnosis-key-service/internal/repository"
	"diagnosis-key-service/internal/usecase"
)

const version = "1.0.0"

var (
	apiURL  string
	output  string
	timeout time.Duration
)

// HTTPクライアント
var httpClient *http.Client

func main() {
	rootCmd := &cobra.Command{
		Use:   "diagctl",
		Short: "Diagnosis Key Service CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			if apiURL == "" {
				apiURL = os.Getenv("DIAGCTL_API_URL")
			}
			httpClient = &http.Client{Timeout: timeout}
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL (or set DIAGCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(intervalsCmd())
	rootCmd.AddCommand(countCmd())
	rootCmd.AddCommand(purgeCmd())
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("diagctl version %s\n", version)
		},
	}
}

// intervalsCmd はキーが存在するインターバル一覧を表示する。
func intervalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "intervals",
		Short: "List intervals that contain diagnosis keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set DIAGCTL_API_URL)")
			}

			resp, err := httpClient.Get(fmt.Sprintf("%s/v1/intervals", apiURL))
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return handleErrorResponse(resp.StatusCode, body)
			}

			if output == "json" {
				fmt.Println(string(body))
				return nil
			}
			var result struct {
				Intervals []int `json:"intervals"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			if len(result.Intervals) == 0 {
				fmt.Println("No intervals with stored keys.")
				return nil
			}
			for _, interval := range result.Intervals {
				fmt.Println(interval)
			}
			return nil
		},
	}
}

// countCmd は指定インターバルのキー数を表示する。
func countCmd() *cobra.Command {
	var interval int
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Show the key count for an interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set DIAGCTL_API_URL)")
			}

			resp, err := httpClient.Get(fmt.Sprintf("%s/v1/diagnosis-keys/%d/count", apiURL, interval))
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return handleErrorResponse(resp.StatusCode, body)
			}

			if output == "json" {
				fmt.Println(string(body))
				return nil
			}
			var result struct {
				Interval int   `json:"interval"`
				Count    int64 `json:"count"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Printf("Interval %d contains %d key(s)\n", result.Interval, result.Count)
			return nil
		},
	}
	cmd.Flags().IntVar(&interval, "interval", 0, "24h interval number (required)")
	cmd.MarkFlagRequired("interval")
	return cmd
}

// purgeCmd は保持期間を超えたキーと検証レコードを削除する。
func purgeCmd() *cobra.Command {
	var keyRetentionDays int
	var tokenRetentionDays int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete keys and verifications past their retention windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			dsn := os.Getenv("DATABASE_URL")
			if dsn == "" {
				return fmt.Errorf("DATABASE_URL environment variable is required")
			}
			cfg := config.Load()
			db, err := infra.NewDB(dsn, cfg)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}

			// フラグ未指定時はサーバーと同じ設定値を使う
			keyDays, tokenDays := effectiveRetention(cmd, cfg, keyRetentionDays, tokenRetentionDays)

			repo := repository.NewDiagnosisKeyRepository(db)
			retention := usecase.NewRetentionService(repo, keyDays, tokenDays)

			result, err := retention.Sweep(ctx, time.Now())
			if err != nil {
				return fmt.Errorf("retention sweep failed: %w", err)
			}

			fmt.Printf("Deleted %d key(s) and %d verification(s).\n",
				result.DeletedKeys, result.DeletedVerifications)
			return nil
		},
	}
	cmd.Flags().IntVar(&keyRetentionDays, "key-retention-days", 14, "Days of 24h intervals to keep diagnosis keys (default: KEY_RETENTION_DAYS)")
	cmd.Flags().IntVar(&tokenRetentionDays, "token-retention-days", 14, "Days to keep verification records (default: TOKEN_RETENTION_DAYS)")
	return cmd
}

// effectiveRetention はフラグで明示された保持期間を優先し、
// 未指定のものは環境変数由来の設定値に揃える。
func effectiveRetention(cmd *cobra.Command, cfg *config.Config, keyDays, tokenDays int) (int, int) {
	if !cmd.Flags().Changed("key-retention-days") {
		keyDays = cfg.KeyRetentionDays
	}
	if !cmd.Flags().Changed("token-retention-days") {
		tokenDays = cfg.TokenRetentionDays
	}
	return keyDays, tokenDays
}

// handleErrorResponse はAPIエラーレスポンスを整形して返す。
func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Code != "" {
		return fmt.Errorf("API error (%d %s): %s", statusCode, errResp.Code, errResp.Message)
	}
	return fmt.Errorf("API error: status %d", statusCode)
}

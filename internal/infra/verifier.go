package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"diagnosis-key-service/config"
	"diagnosis-key-service/internal/domain"
)

// VerificationClient は外部の検証サービスをラップする。
// トークンの暗号学的な検証は検証サービス側の責務であり、
// このクライアントは結果の (検証ID, バッチハッシュ) を取り次ぐのみ。
type VerificationClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewVerificationClient は設定から検証サービスクライアントを生成する。
func NewVerificationClient(cfg *config.Config) (*VerificationClient, error) {
	if cfg.VerificationServiceURL == "" {
		return nil, fmt.Errorf("VERIFICATION_SERVICE_URL environment variable is required")
	}
	return &VerificationClient{
		baseURL:    cfg.VerificationServiceURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	VerificationID int64  `json:"verification_id"`
	BatchHash      string `json:"batch_hash"`
}

// Verify はトークンを検証サービスに送り、認証済みの検証IDとバッチハッシュを取得する。
// 検証サービスがトークンを拒否した場合はdomain.ErrVerificationFailedを返す。
func (c *VerificationClient) Verify(ctx context.Context, token string) (int64, string, error) {
	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return 0, "", fmt.Errorf("encoding verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/verify", bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("building verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("calling verification service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// 検証成功
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return 0, "", domain.ErrVerificationFailed
	default:
		return 0, "", fmt.Errorf("verification service returned status %d", resp.StatusCode)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, "", fmt.Errorf("decoding verify response: %w", err)
	}
	if result.BatchHash == "" {
		return 0, "", fmt.Errorf("verification service returned empty batch hash")
	}
	return result.VerificationID, result.BatchHash, nil
}

// Package handler はHTTPハンドラを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"diagnosis-key-service/internal/domain"
	"diagnosis-key-service/internal/middleware"
	"diagnosis-key-service/internal/usecase"
	"diagnosis-key-service/pkg/httputil"
)

// maxSubmissionKeys は1回の送信で受け付けるキー数の上限。
const maxSubmissionKeys = 14

// DiagnosisHandler は診断キーAPIのHTTPハンドラを提供する。
type DiagnosisHandler struct {
	service *usecase.DiagnosisService
}

// NewDiagnosisHandler は新しいDiagnosisHandlerを生成する。
func NewDiagnosisHandler(service *usecase.DiagnosisService) *DiagnosisHandler {
	return &DiagnosisHandler{service: service}
}

// KeyPayload は診断キーのリクエスト/レスポンス形式。
type KeyPayload struct {
	KeyData                    string `json:"key_data"`
	TransmissionRiskLevel      int    `json:"transmission_risk_level"`
	RollingStartIntervalNumber int    `json:"rolling_start_interval_number"`
	RollingPeriod              int    `json:"rolling_period"`
}

// SubmitRequest はキー送信のリクエスト形式。
type SubmitRequest struct {
	Keys []KeyPayload `json:"keys"`
}

// SubmitResponse はキー送信のレスポンス形式。
type SubmitResponse struct {
	Interval int  `json:"interval"`
	KeyCount int  `json:"key_count"`
	Accepted bool `json:"accepted"`
}

// IntervalKeysResponse はインターバル内キー一覧のレスポンス形式。
type IntervalKeysResponse struct {
	Interval int          `json:"interval"`
	Keys     []KeyPayload `json:"keys"`
}

// KeyCountResponse はキー数のレスポンス形式。
type KeyCountResponse struct {
	Interval int   `json:"interval"`
	Count    int64 `json:"count"`
}

// IntervalsResponse は利用可能なインターバル一覧のレスポンス形式。
type IntervalsResponse struct {
	Intervals []int `json:"intervals"`
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func intervalParam(r *http.Request) (int, error) {
	interval, err := strconv.Atoi(chi.URLParam(r, "interval"))
	if err != nil || interval < 0 {
		return 0, domain.ErrInvalidInterval
	}
	return interval, nil
}

// SubmitKeys は検証済みトークンのもとで診断キーのバッチを受け付ける。
func (h *DiagnosisHandler) SubmitKeys(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		httputil.Error(w, http.StatusUnauthorized, "MISSING_TOKEN", "publish token is required")
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "request body is not valid JSON")
		return
	}
	if len(req.Keys) == 0 || len(req.Keys) > maxSubmissionKeys {
		httputil.Error(w, http.StatusBadRequest, "INVALID_KEY_COUNT", "key count must be between 1 and 14")
		return
	}

	keys := make([]domain.TemporaryExposureKey, len(req.Keys))
	for i, k := range req.Keys {
		keys[i] = domain.TemporaryExposureKey{
			KeyData:                    k.KeyData,
			TransmissionRiskLevel:      k.TransmissionRiskLevel,
			RollingStartIntervalNumber: k.RollingStartIntervalNumber,
			RollingPeriod:              k.RollingPeriod,
		}
	}

	result, err := h.service.SubmitKeys(r.Context(), token, keys)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidKey):
			httputil.Error(w, http.StatusBadRequest, "INVALID_KEY", "diagnosis key has invalid shape")
		case errors.Is(err, domain.ErrVerificationFailed):
			middleware.WriteAuditLog(r.Context(), "SUBMIT_KEYS", 0, len(keys), "REJECTED_TOKEN")
			httputil.Error(w, http.StatusUnauthorized, "TOKEN_VERIFICATION_FAILED", "publish token was rejected")
		case errors.Is(err, domain.ErrVerificationConflict):
			middleware.WriteAuditLog(r.Context(), "SUBMIT_KEYS", 0, len(keys), "CONFLICT")
			httputil.Error(w, http.StatusConflict, "VERIFICATION_CONFLICT", "token already bound to a different submission")
		default:
			middleware.WriteAuditLog(r.Context(), "SUBMIT_KEYS", 0, len(keys), "FAILED")
			httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	status := http.StatusCreated
	outcome := "ACCEPTED"
	if !result.Accepted {
		// 同一ハッシュの再送信は正常な冪等応答
		status = http.StatusOK
		outcome = "DEDUPLICATED"
	}
	middleware.WriteAuditLog(r.Context(), "SUBMIT_KEYS", result.Interval, result.KeyCount, outcome)
	httputil.JSON(w, status, SubmitResponse{
		Interval: result.Interval,
		KeyCount: result.KeyCount,
		Accepted: result.Accepted,
	})
}

// GetIntervalKeys は指定インターバルのキー一覧を取得する。
func (h *DiagnosisHandler) GetIntervalKeys(w http.ResponseWriter, r *http.Request) {
	interval, err := intervalParam(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_INTERVAL", "invalid interval number")
		return
	}

	keys, err := h.service.GetIntervalKeys(r.Context(), interval)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	response := IntervalKeysResponse{
		Interval: interval,
		Keys:     make([]KeyPayload, len(keys)),
	}
	for i, k := range keys {
		response.Keys[i] = KeyPayload{
			KeyData:                    k.KeyData,
			TransmissionRiskLevel:      k.TransmissionRiskLevel,
			RollingStartIntervalNumber: k.RollingStartIntervalNumber,
			RollingPeriod:              k.RollingPeriod,
		}
	}
	httputil.JSON(w, http.StatusOK, response)
}

// GetKeyCount は指定インターバルのキー数を取得する。
func (h *DiagnosisHandler) GetKeyCount(w http.ResponseWriter, r *http.Request) {
	interval, err := intervalParam(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_INTERVAL", "invalid interval number")
		return
	}

	count, err := h.service.GetKeyCount(r.Context(), interval)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	httputil.JSON(w, http.StatusOK, KeyCountResponse{
		Interval: interval,
		Count:    count,
	})
}

// ListIntervals はキーが存在するインターバル一覧を取得する。
func (h *DiagnosisHandler) ListIntervals(w http.ResponseWriter, r *http.Request) {
	intervals, err := h.service.ListIntervals(r.Context())
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	if intervals == nil {
		intervals = []int{}
	}
	httputil.JSON(w, http.StatusOK, IntervalsResponse{Intervals: intervals})
}

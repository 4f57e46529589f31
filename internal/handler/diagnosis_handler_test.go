package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"diagnosis-key-service/internal/domain"
	"diagnosis-key-service/internal/usecase"
)

// mockDiagnosisKeyRepository はテスト用のモックリポジトリ。
type mockDiagnosisKeyRepository struct {
	addAccepted     bool
	addErr          error
	intervalKeys    []domain.TemporaryExposureKey
	intervalKeysErr error
	keyCount        int64
	keyCountErr     error
	intervals       []int
	intervalsErr    error
}

func (m *mockDiagnosisKeyRepository) AddKeys(ctx context.Context, verificationID int64, batchHash string, interval int, keys []domain.TemporaryExposureKey) (bool, error) {
	return m.addAccepted, m.addErr
}

func (m *mockDiagnosisKeyRepository) GetIntervalKeys(ctx context.Context, interval int) ([]domain.TemporaryExposureKey, error) {
	return m.intervalKeys, m.intervalKeysErr
}

func (m *mockDiagnosisKeyRepository) GetKeyCount(ctx context.Context, interval int) (int64, error) {
	return m.keyCount, m.keyCountErr
}

func (m *mockDiagnosisKeyRepository) GetAvailableIntervals(ctx context.Context) ([]int, error) {
	return m.intervals, m.intervalsErr
}

func (m *mockDiagnosisKeyRepository) DeleteKeysBefore(ctx context.Context, interval int) (int64, error) {
	return 0, nil
}

func (m *mockDiagnosisKeyRepository) DeleteVerificationsBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// mockVerifier はテスト用のモック検証クライアント。
type mockVerifier struct {
	verificationID int64
	batchHash      string
	err            error
}

func (m *mockVerifier) Verify(ctx context.Context, token string) (int64, string, error) {
	if m.err != nil {
		return 0, "", m.err
	}
	return m.verificationID, m.batchHash, nil
}

func setupHandler(repo usecase.DiagnosisKeyRepository, verifier usecase.Verifier) *DiagnosisHandler {
	return NewDiagnosisHandler(usecase.NewDiagnosisService(repo, verifier))
}

const validSubmitBody = `{"keys":[{"key_data":"c9Uau9icuBlvDvtokvlNaA==","transmission_risk_level":3,"rolling_start_interval_number":2650000,"rolling_period":144}]}`

func submitRequest(body string, token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/diagnosis-keys", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func intervalRequest(method, path, interval string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("interval", interval)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestSubmitKeys_Success(t *testing.T) {
	repo := &mockDiagnosisKeyRepository{addAccepted: true}
	verifier := &mockVerifier{verificationID: 1, batchHash: "hash-1"}
	h := setupHandler(repo, verifier)

	rec := httptest.NewRecorder()
	h.SubmitKeys(rec, submitRequest(validSubmitBody, "token-1"))

	if rec.Code != http.StatusCreated {
		t.Errorf("want status 201, got %d", rec.Code)
	}

	var resp SubmitResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Accepted {
		t.Error("want accepted=true")
	}
	if resp.KeyCount != 1 {
		t.Errorf("want key_count 1, got %d", resp.KeyCount)
	}
}

func TestSubmitKeys_Deduplicated(t *testing.T) {
	repo := &mockDiagnosisKeyRepository{addAccepted: false}
	verifier := &mockVerifier{verificationID: 1, batchHash: "hash-1"}
	h := setupHandler(repo, verifier)

	rec := httptest.NewRecorder()
	h.SubmitKeys(rec, submitRequest(validSubmitBody, "token-1"))

	// 同一ハッシュの再送信はエラーではなく冪等な成功
	if rec.Code != http.StatusOK {
		t.Errorf("want status 200, got %d", rec.Code)
	}

	var resp SubmitResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Accepted {
		t.Error("want accepted=false")
	}
}

func TestSubmitKeys_MissingToken(t *testing.T) {
	h := setupHandler(&mockDiagnosisKeyRepository{}, &mockVerifier{})

	rec := httptest.NewRecorder()
	h.SubmitKeys(rec, submitRequest(validSubmitBody, ""))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("want status 401, got %d", rec.Code)
	}
}

func TestSubmitKeys_InvalidBody(t *testing.T) {
	h := setupHandler(&mockDiagnosisKeyRepository{}, &mockVerifier{})

	rec := httptest.NewRecorder()
	h.SubmitKeys(rec, submitRequest("{not json", "token-1"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("want status 400, got %d", rec.Code)
	}
}

func TestSubmitKeys_EmptyKeys(t *testing.T) {
	h := setupHandler(&mockDiagnosisKeyRepository{}, &mockVerifier{})

	rec := httptest.NewRecorder()
	h.SubmitKeys(rec, submitRequest(`{"keys":[]}`, "token-1"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("want status 400, got %d", rec.Code)
	}
}

func TestSubmitKeys_InvalidKeyShape(t *testing.T) {
	h := setupHandler(&mockDiagnosisKeyRepository{}, &mockVerifier{verificationID: 1, batchHash: "hash"})

	body := `{"keys":[{"key_data":"short","transmission_risk_level":3,"rolling_start_interval_number":1,"rolling_period":144}]}`
	rec := httptest.NewRecorder()
	h.SubmitKeys(rec, submitRequest(body, "token-1"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("want status 400, got %d", rec.Code)
	}

	var resp map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["code"] != "INVALID_KEY" {
		t.Errorf("want code INVALID_KEY, got %v", resp["code"])
	}
}

func TestSubmitKeys_TokenRejected(t *testing.T) {
	h := setupHandler(&mockDiagnosisKeyRepository{}, &mockVerifier{err: domain.ErrVerificationFailed})

	rec := httptest.NewRecorder()
	h.SubmitKeys(rec, submitRequest(validSubmitBody, "bad-token"))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("want status 401, got %d", rec.Code)
	}

	var resp map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["code"] != "TOKEN_VERIFICATION_FAILED" {
		t.Errorf("want code TOKEN_VERIFICATION_FAILED, got %v", resp["code"])
	}
}

func TestSubmitKeys_Conflict(t *testing.T) {
	repo := &mockDiagnosisKeyRepository{addErr: domain.ErrVerificationConflict}
	h := setupHandler(repo, &mockVerifier{verificationID: 1, batchHash: "hash-2"})

	rec := httptest.NewRecorder()
	h.SubmitKeys(rec, submitRequest(validSubmitBody, "token-1"))

	if rec.Code != http.StatusConflict {
		t.Errorf("want status 409, got %d", rec.Code)
	}

	var resp map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["code"] != "VERIFICATION_CONFLICT" {
		t.Errorf("want code VERIFICATION_CONFLICT, got %v", resp["code"])
	}
}

func TestGetIntervalKeys_Success(t *testing.T) {
	repo := &mockDiagnosisKeyRepository{
		intervalKeys: []domain.TemporaryExposureKey{
			{KeyData: "0MwsNfC4Rgnl8SxV3YWrqA==", TransmissionRiskLevel: 2, RollingStartIntervalNumber: 2650000, RollingPeriod: 144},
			{KeyData: "c9Uau9icuBlvDvtokvlNaA==", TransmissionRiskLevel: 2, RollingStartIntervalNumber: 2650000, RollingPeriod: 144},
		},
	}
	h := setupHandler(repo, &mockVerifier{})

	rec := httptest.NewRecorder()
	h.GetIntervalKeys(rec, intervalRequest(http.MethodGet, "/v1/diagnosis-keys/1234", "1234"))

	if rec.Code != http.StatusOK {
		t.Errorf("want status 200, got %d", rec.Code)
	}

	var resp IntervalKeysResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Interval != 1234 {
		t.Errorf("want interval 1234, got %d", resp.Interval)
	}
	if len(resp.Keys) != 2 || resp.Keys[0].KeyData != "0MwsNfC4Rgnl8SxV3YWrqA==" {
		t.Errorf("unexpected keys: %+v", resp.Keys)
	}
}

func TestGetIntervalKeys_InvalidInterval(t *testing.T) {
	h := setupHandler(&mockDiagnosisKeyRepository{}, &mockVerifier{})

	rec := httptest.NewRecorder()
	h.GetIntervalKeys(rec, intervalRequest(http.MethodGet, "/v1/diagnosis-keys/abc", "abc"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("want status 400, got %d", rec.Code)
	}
}

func TestGetKeyCount_Success(t *testing.T) {
	repo := &mockDiagnosisKeyRepository{keyCount: 7}
	h := setupHandler(repo, &mockVerifier{})

	rec := httptest.NewRecorder()
	h.GetKeyCount(rec, intervalRequest(http.MethodGet, "/v1/diagnosis-keys/1234/count", "1234"))

	if rec.Code != http.StatusOK {
		t.Errorf("want status 200, got %d", rec.Code)
	}

	var resp KeyCountResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Count != 7 {
		t.Errorf("want count 7, got %d", resp.Count)
	}
}

func TestListIntervals_Empty(t *testing.T) {
	h := setupHandler(&mockDiagnosisKeyRepository{}, &mockVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/v1/intervals", nil)
	rec := httptest.NewRecorder()
	h.ListIntervals(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("want status 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"intervals":[]}` {
		t.Errorf("want empty intervals array, got %s", body)
	}
}

func TestListIntervals_Sorted(t *testing.T) {
	repo := &mockDiagnosisKeyRepository{intervals: []int{123, 1234, 1235, 1236}}
	h := setupHandler(repo, &mockVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/v1/intervals", nil)
	rec := httptest.NewRecorder()
	h.ListIntervals(rec, req)

	var resp IntervalsResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Intervals) != 4 || resp.Intervals[0] != 123 || resp.Intervals[3] != 1236 {
		t.Errorf("unexpected intervals: %v", resp.Intervals)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quicksync-community/benchmark-backend/internal/database"
	"github.com/quicksync-community/benchmark-backend/internal/models"
	"github.com/quicksync-community/benchmark-backend/internal/services/ingest"
	"github.com/quicksync-community/benchmark-backend/internal/storage"
)

const (
	gen12Line = "Intel(R) Core(TM) i5-12500 CPU @ 3.00GHz|h264_1080p|ribblehead_1080p_h264|4500kb/s|10.5s|120.5|2.5x|15.2"
	gen8Line  = "Intel(R) Core(TM) i7-8700 CPU @ 3.20GHz|hevc_4k|ribblehead_2160p_hevc|8000kb/s|20.0s|60.0|1.2x|25.0"
	vmLine    = "QEMU Virtual CPU version 2.5+|h264_1080p|ribblehead_1080p_h264|4500kb/s|10.5s|50.0|1.0x|10.0"
)

// newTestHandlers はインメモリストレージ上にハンドラー一式を組み立てます。
func newTestHandlers(t *testing.T) (*SubmitHandler, *ResultsHandler, *ScoresHandler) {
	t.Helper()
	store := storage.NewMemoryStore()
	datasetRepo := database.NewDatasetRepository(store)
	pendingRepo := database.NewPendingRepository(store)
	ingestService := ingest.NewService(datasetRepo, pendingRepo, nil)
	return NewSubmitHandler(ingestService), NewResultsHandler(datasetRepo), NewScoresHandler(datasetRepo)
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("リクエストボディのエンコードに失敗しました: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestSubmit_Success(t *testing.T) {
	submitH, _, _ := newTestHandlers(t)

	rec := postJSON(t, submitH.Submit, "/api/submit", models.SubmitRequest{Results: gen12Line})
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp models.SubmitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗しました: %v", err)
	}
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Added)
	assert.Equal(t, 0, resp.Skipped)
	assert.False(t, resp.NeedsConfirmation)
}

func TestSubmit_DuplicateIsSkipped(t *testing.T) {
	submitH, _, _ := newTestHandlers(t)

	first := postJSON(t, submitH.Submit, "/api/submit", models.SubmitRequest{Results: gen12Line})
	assert.Equal(t, http.StatusOK, first.Code)

	second := postJSON(t, submitH.Submit, "/api/submit", models.SubmitRequest{Results: gen12Line})
	assert.Equal(t, http.StatusOK, second.Code)

	var resp models.SubmitResponse
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗しました: %v", err)
	}
	assert.Equal(t, 0, resp.Added)
	assert.Equal(t, 1, resp.Skipped)
}

func TestSubmit_BlockedHardwareRejected(t *testing.T) {
	submitH, _, _ := newTestHandlers(t)

	rec := postJSON(t, submitH.Submit, "/api/submit", models.SubmitRequest{Results: vmLine})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSubmit_MissingResults(t *testing.T) {
	submitH, _, _ := newTestHandlers(t)

	rec := postJSON(t, submitH.Submit, "/api/submit", models.SubmitRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetResults_GenerationFilter(t *testing.T) {
	submitH, resultsH, _ := newTestHandlers(t)

	postJSON(t, submitH.Submit, "/api/submit", models.SubmitRequest{Results: gen12Line + "\n" + gen8Line})

	req := httptest.NewRequest(http.MethodGet, "/api/results?generation=12", nil)
	rec := httptest.NewRecorder()
	resultsH.GetResults(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool                     `json:"success"`
		Count   int                      `json:"count"`
		Results []models.BenchmarkResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗しました: %v", err)
	}
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Count)
	if assert.Len(t, resp.Results, 1) {
		assert.Equal(t, "h264_1080p", resp.Results[0].TestName)
	}
}

// TestGetResults_IncludesCPUFeatures は結果レスポンスにCPU機能フラグが
// 含まれることをテストします。
func TestGetResults_IncludesCPUFeatures(t *testing.T) {
	store := storage.NewMemoryStore()
	datasetRepo := database.NewDatasetRepository(store)
	pendingRepo := database.NewPendingRepository(store)
	ingestService := ingest.NewService(datasetRepo, pendingRepo, nil)
	resultsH := NewResultsHandler(datasetRepo)

	if _, err := ingestService.SetCPUFeatures(context.Background(), map[string]models.CPUFeatures{
		"E-2144G": {ECCSupport: true},
	}); err != nil {
		t.Fatalf("SetCPUFeatures failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/results", nil)
	rec := httptest.NewRecorder()
	resultsH.GetResults(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success     bool                          `json:"success"`
		CPUFeatures map[string]models.CPUFeatures `json:"cpu_features"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗しました: %v", err)
	}
	assert.True(t, resp.Success)
	if assert.Contains(t, resp.CPUFeatures, "E-2144G") {
		assert.True(t, resp.CPUFeatures["E-2144G"].ECCSupport)
	}
}

func TestGetResults_InvalidGeneration(t *testing.T) {
	_, resultsH, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/api/results?generation=abc", nil)
	rec := httptest.NewRecorder()
	resultsH.GetResults(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBoxplot_UnknownMetric(t *testing.T) {
	_, resultsH, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stats/boxplot?metric=nonsense", nil)
	rec := httptest.NewRecorder()
	resultsH.GetBoxplot(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLeaderboard(t *testing.T) {
	submitH, _, scoresH := newTestHandlers(t)

	postJSON(t, submitH.Submit, "/api/submit", models.SubmitRequest{Results: gen12Line + "\n" + gen8Line})

	req := httptest.NewRequest(http.MethodGet, "/api/scores", nil)
	rec := httptest.NewRecorder()
	scoresH.GetLeaderboard(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool                   `json:"success"`
		Version int                    `json:"version"`
		Scores  []models.HardwareScore `json:"scores"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗しました: %v", err)
	}
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Version)
	assert.Len(t, resp.Scores, 2)
}

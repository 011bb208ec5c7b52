package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/quicksync-community/benchmark-backend/internal/database"
	"github.com/quicksync-community/benchmark-backend/internal/models"
	"github.com/quicksync-community/benchmark-backend/internal/services/scoring"
)

// ResultsHandler はベンチマーク結果の参照系ハンドラーを管理する構造体です。
type ResultsHandler struct {
	datasetRepo database.DatasetRepository
}

// NewResultsHandler は新しいResultsHandlerインスタンスを作成します。
func NewResultsHandler(datasetRepo database.DatasetRepository) *ResultsHandler {
	return &ResultsHandler{
		datasetRepo: datasetRepo,
	}
}

// GetResults はフィルタ条件付きの結果一覧を取得するハンドラーです。
// GET /api/results?vendor=&generation=&architecture=&test=
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dataset, err := h.datasetRepo.Read(r.Context())
	if err != nil {
		log.Printf("データセット読み込みエラー: %v", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "データセットの読み込みに失敗しました")
		return
	}

	opts := scoring.FilterOptions{
		Vendor:       r.URL.Query().Get("vendor"),
		Architecture: r.URL.Query().Get("architecture"),
		TestName:     r.URL.Query().Get("test"),
	}
	if genStr := r.URL.Query().Get("generation"); genStr != "" {
		gen, err := strconv.Atoi(genStr)
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, "generationは整数で指定してください")
			return
		}
		opts.Generation = &gen
	}

	filtered := scoring.FilterResults(dataset.Results, opts)
	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"version":      dataset.Version,
		"count":        len(filtered),
		"results":      filtered,
		"cpu_features": dataset.CPUFeatures,
	})
}

// GetFilters はデータセットに存在するフィルタ選択肢を返すハンドラーです。
// GET /api/filters
func (h *ResultsHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dataset, err := h.datasetRepo.Read(r.Context())
	if err != nil {
		log.Printf("データセット読み込みエラー: %v", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "データセットの読み込みに失敗しました")
		return
	}

	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"filters": scoring.CollectFilters(dataset),
	})
}

// GetGenerationStats はCPU世代ごとの集計を返すハンドラーです。
// GET /api/stats/generations
func (h *ResultsHandler) GetGenerationStats(w http.ResponseWriter, r *http.Request) {
	h.writeGroupStats(w, r, scoring.GenerationStats)
}

// GetArchitectureStats はアーキテクチャごとの集計を返すハンドラーです。
// GET /api/stats/architectures
func (h *ResultsHandler) GetArchitectureStats(w http.ResponseWriter, r *http.Request) {
	h.writeGroupStats(w, r, scoring.ArchitectureStats)
}

// GetCPUStats はCPUごとの集計を返すハンドラーです。
// GET /api/stats/cpus
func (h *ResultsHandler) GetCPUStats(w http.ResponseWriter, r *http.Request) {
	h.writeGroupStats(w, r, scoring.CPUStats)
}

// GetBoxplot は五数要約の一覧を返すハンドラーです。
// GET /api/stats/boxplot?metric=avg_fps&group_by=generation
func (h *ResultsHandler) GetBoxplot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = scoring.MetricAvgFPS
	}
	groupBy := r.URL.Query().Get("group_by")
	if groupBy == "" {
		groupBy = scoring.GroupByGeneration
	}

	dataset, err := h.datasetRepo.Read(r.Context())
	if err != nil {
		log.Printf("データセット読み込みエラー: %v", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "データセットの読み込みに失敗しました")
		return
	}

	series, err := scoring.BoxplotStats(dataset, metric, groupBy)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"metric":   metric,
		"group_by": groupBy,
		"series":   series,
	})
}

func (h *ResultsHandler) writeGroupStats(w http.ResponseWriter, r *http.Request, statsFn func(*models.Dataset) []scoring.GroupStats) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dataset, err := h.datasetRepo.Read(r.Context())
	if err != nil {
		log.Printf("データセット読み込みエラー: %v", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "データセットの読み込みに失敗しました")
		return
	}

	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"version": dataset.Version,
		"stats":   statsFn(dataset),
	})
}

package handlers

import (
	"log"
	"net/http"

	"github.com/quicksync-community/benchmark-backend/internal/database"
	"github.com/quicksync-community/benchmark-backend/internal/services/scoring"
)

// ScoresHandler はハードウェアスコア関連のハンドラーを管理する構造体です。
type ScoresHandler struct {
	datasetRepo database.DatasetRepository
}

// NewScoresHandler は新しいScoresHandlerインスタンスを作成します。
func NewScoresHandler(datasetRepo database.DatasetRepository) *ScoresHandler {
	return &ScoresHandler{
		datasetRepo: datasetRepo,
	}
}

// GetLeaderboard はリーダーボード順のスコア一覧を返すハンドラーです。
// GET /api/scores
func (h *ScoresHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
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
		"scores":  scoring.Leaderboard(dataset),
	})
}

// GetScoreMap はCPU文字列から複合スコアへの参照マップを返すハンドラーです。
// GET /api/scores/map
func (h *ScoresHandler) GetScoreMap(w http.ResponseWriter, r *http.Request) {
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
		"scores":  scoring.ScoreMap(dataset),
	})
}

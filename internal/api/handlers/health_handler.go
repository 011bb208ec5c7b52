package handlers

import (
	"log"
	"net/http"

	"github.com/quicksync-community/benchmark-backend/internal/database"
)

// HealthHandler handles the public health check endpoint
type HealthHandler struct {
	datasetRepo database.DatasetRepository
}

// NewHealthHandler creates a new instance of HealthHandler
func NewHealthHandler(datasetRepo database.DatasetRepository) *HealthHandler {
	return &HealthHandler{
		datasetRepo: datasetRepo,
	}
}

// Health はストレージバックエンドの疎通を含むヘルスチェックです。
// GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	dataset, err := h.datasetRepo.Read(r.Context())
	if err != nil {
		log.Printf("HealthHandler: データセットの読み込みに失敗しました: %v", err)
		WriteJSONResponse(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
		})
		return
	}

	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": dataset.Version,
		"meta":    dataset.Meta,
	})
}

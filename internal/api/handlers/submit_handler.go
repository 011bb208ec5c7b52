package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"

	"github.com/quicksync-community/benchmark-backend/internal/api/middleware"
	"github.com/quicksync-community/benchmark-backend/internal/database"
	"github.com/quicksync-community/benchmark-backend/internal/models"
	"github.com/quicksync-community/benchmark-backend/internal/services/ingest"
)

// SubmitHandler はベンチマーク結果の投稿関連のハンドラーを管理する構造体です。
type SubmitHandler struct {
	ingestService *ingest.Service
}

// NewSubmitHandler は新しいSubmitHandlerインスタンスを作成します。
func NewSubmitHandler(ingestService *ingest.Service) *SubmitHandler {
	return &SubmitHandler{
		ingestService: ingestService,
	}
}

// submitterID はJWTコンテキストを優先し、なければリクエストボディの値を使います。
func submitterID(r *http.Request, bodyID string) *string {
	if id, ok := middleware.GetSubmitterIDFromContext(r.Context()); ok {
		return &id
	}
	if bodyID != "" {
		return &bodyID
	}
	return nil
}

// Submit は共有シークレット認証済みの直接投稿を処理するハンドラーです。
// POST /api/submit
func (h *SubmitHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "無効なリクエストボディです")
		return
	}
	if req.Results == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "resultsは必須です")
		return
	}

	outcome, err := h.ingestService.SubmitResults(r.Context(), req.Results, submitterID(r, req.SubmitterID), req.Confirmed)
	if err != nil {
		writeIngestError(w, err)
		return
	}

	if outcome.NeedsConfirmation {
		WriteJSONResponse(w, http.StatusOK, models.SubmitResponse{
			Success:           true,
			NeedsConfirmation: true,
			ExistingCount:     outcome.ExistingCount,
			Message:           "この投稿者の既存の結果があります。上書き追加する場合はconfirmedを指定してください",
		})
		return
	}

	WriteJSONResponse(w, http.StatusOK, models.SubmitResponse{
		Success: true,
		Added:   outcome.Added,
		Skipped: outcome.Skipped,
	})
}

// SubmitPending は確認待ち投稿を受け付けるハンドラーです。
// POST /api/submit/pending
func (h *SubmitHandler) SubmitPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "無効なリクエストボディです")
		return
	}
	if req.Results == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "resultsは必須です")
		return
	}

	pending, err := h.ingestService.SubmitPending(r.Context(), req.Results, submitterID(r, req.SubmitterID))
	if err != nil {
		writeIngestError(w, err)
		return
	}

	WriteJSONResponse(w, http.StatusOK, models.SubmitResponse{
		Success: true,
		Token:   pending.Token,
		Message: "投稿を受け付けました。CAPTCHA検証後に確定されます",
	})
}

// Confirm はCAPTCHA検証を経て確認待ち投稿を確定するハンドラーです。
// POST /api/submit/confirm
func (h *SubmitHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "無効なリクエストボディです")
		return
	}
	if req.Token == "" || req.CaptchaToken == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "tokenとcaptcha_tokenは必須です")
		return
	}

	outcome, err := h.ingestService.ConfirmPending(r.Context(), req.Token, req.CaptchaToken, remoteIP(r))
	if err != nil {
		writeIngestError(w, err)
		return
	}

	WriteJSONResponse(w, http.StatusOK, models.SubmitResponse{
		Success: true,
		Added:   outcome.Added,
		Skipped: outcome.Skipped,
	})
}

// SubmitConcurrency は同時実行スケーリング結果の投稿を処理するハンドラーです。
// POST /api/submit/concurrency
func (h *SubmitHandler) SubmitConcurrency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "無効なリクエストボディです")
		return
	}
	if req.Results == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "resultsは必須です")
		return
	}

	outcome, err := h.ingestService.SubmitConcurrency(r.Context(), req.Results, submitterID(r, req.SubmitterID))
	if err != nil {
		writeIngestError(w, err)
		return
	}

	WriteJSONResponse(w, http.StatusOK, models.SubmitResponse{
		Success: true,
		Added:   outcome.Added,
		Skipped: outcome.Skipped,
	})
}

// writeIngestError は取り込みエラーをHTTPステータスに対応付けます。
func writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ingest.ErrNoValidResults),
		errors.Is(err, ingest.ErrBlockedHardware),
		errors.Is(err, ingest.ErrUnknownHardware),
		errors.Is(err, ingest.ErrImplausiblePower):
		WriteErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ingest.ErrCaptchaFailed):
		WriteErrorResponse(w, http.StatusForbidden, err.Error())
	case errors.Is(err, database.ErrPendingNotFound):
		WriteErrorResponse(w, http.StatusNotFound, "確認待ちの投稿が見つからないか、有効期限切れです")
	case errors.Is(err, database.ErrLockBusy):
		WriteErrorResponse(w, http.StatusServiceUnavailable, "データセットが別の書き込みで使用中です。しばらくしてから再試行してください")
	default:
		log.Printf("投稿処理エラー: %v", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "投稿処理に失敗しました")
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

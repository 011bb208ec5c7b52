// Package captcha はCloudflare Turnstileによる人間確認の外部コラボレータ
// クライアントです。検証の中身には関与せず、siteverify APIを叩くだけの
// 薄い実装です。
package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Verifier はCAPTCHAトークンの検証を抽象化します。テストではフェイク実装を
// 差し込めます。
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// TurnstileService はCloudflare Turnstileの検証クライアントです。
type TurnstileService struct {
	verifyURL  string
	secret     string
	httpClient *http.Client
}

// NewTurnstileService は新しいTurnstileServiceインスタンスを作成します。
func NewTurnstileService(secret string) *TurnstileService {
	return &TurnstileService{
		verifyURL:  "https://challenges.cloudflare.com/turnstile/v0/siteverify",
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type verifyRequest struct {
	Secret   string `json:"secret"`
	Response string `json:"response"`
	RemoteIP string `json:"remoteip,omitempty"`
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify はトークンをsiteverify APIで検証し、成否を返します。
func (s *TurnstileService) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	requestBody, err := json.Marshal(verifyRequest{
		Secret:   s.secret,
		Response: token,
		RemoteIP: remoteIP,
	})
	if err != nil {
		return false, fmt.Errorf("リクエストボディのJSONエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.verifyURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return false, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("Turnstile APIへのリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("Turnstileレスポンスのデコードに失敗しました: %w", err)
	}
	if !result.Success {
		log.Printf("TurnstileService: 検証に失敗しました: %v", result.ErrorCodes)
	}
	return result.Success, nil
}

package models

import (
	"time"
)

// PendingSubmission は人間による確認待ちの一時的な投稿です。
// 24時間で期限切れとなり、confirm で一度だけ消費されます。
type PendingSubmission struct {
	Token       string    `json:"token"`
	Body        string    `json:"body"`
	SubmitterID *string   `json:"submitter_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired は投稿が期限切れかどうかを返します。
func (p *PendingSubmission) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// SubmitRequest はベンチマーク結果投稿リクエスト用の構造体です。
type SubmitRequest struct {
	Results     string `json:"results"`
	SubmitterID string `json:"submitter_id"`
	Confirmed   bool   `json:"confirmed"`
}

// ConfirmRequest は確認待ち投稿のコミットリクエスト用の構造体です。
type ConfirmRequest struct {
	Token        string `json:"token"`
	CaptchaToken string `json:"captcha_token"`
}

// SubmitResponse は投稿APIのレスポンス用の構造体です。
type SubmitResponse struct {
	Success           bool   `json:"success"`
	Added             int    `json:"added"`
	Skipped           int    `json:"skipped"`
	NeedsConfirmation bool   `json:"needs_confirmation,omitempty"`
	ExistingCount     int    `json:"existing_count,omitempty"`
	Token             string `json:"token,omitempty"`
	Message           string `json:"message,omitempty"`
}

package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quicksync-community/benchmark-backend/internal/models"
	"github.com/quicksync-community/benchmark-backend/internal/storage"
)

const (
	pendingPrefix = "pending/"
	pendingTTL    = 24 * time.Hour
)

// ErrPendingNotFound はトークンに対応する確認待ち投稿が存在しないか、
// 期限切れの場合に返されます。
var ErrPendingNotFound = errors.New("pending submission not found or expired")

// PendingRepository は確認待ち投稿の一時保存を定義するインターフェースです。
// 投稿はランダムなトークンの下に24時間だけ保持され、confirm で一度だけ
// 消費されます。
type PendingRepository interface {
	// Create は投稿本文をランダムなトークンの下に保存します。
	Create(ctx context.Context, body string, submitterID *string) (*models.PendingSubmission, error)

	// Get はトークンに対応する投稿を返します。期限切れの投稿は削除した上で
	// ErrPendingNotFound を返します。
	Get(ctx context.Context, token string) (*models.PendingSubmission, error)

	// Delete は投稿を削除します。
	Delete(ctx context.Context, token string) error
}

// pendingRepositoryImpl はPendingRepositoryインターフェースの実装です。
type pendingRepositoryImpl struct {
	store storage.ObjectStore
}

// NewPendingRepository はPendingRepositoryの新しいインスタンスを作成します。
func NewPendingRepository(store storage.ObjectStore) PendingRepository {
	return &pendingRepositoryImpl{store: store}
}

// Create は投稿本文をランダムなトークンの下に保存します。
func (r *pendingRepositoryImpl) Create(ctx context.Context, body string, submitterID *string) (*models.PendingSubmission, error) {
	now := time.Now().UTC()
	pending := &models.PendingSubmission{
		Token:       uuid.New().String(),
		Body:        body,
		SubmitterID: submitterID,
		SubmittedAt: now,
		ExpiresAt:   now.Add(pendingTTL),
	}

	payload, err := json.Marshal(pending)
	if err != nil {
		return nil, fmt.Errorf("確認待ち投稿のエンコードに失敗しました: %w", err)
	}
	if err := r.store.Put(ctx, pendingKey(pending.Token), payload); err != nil {
		return nil, fmt.Errorf("確認待ち投稿の保存に失敗しました: %w", err)
	}
	return pending, nil
}

// Get はトークンに対応する投稿を返します。
func (r *pendingRepositoryImpl) Get(ctx context.Context, token string) (*models.PendingSubmission, error) {
	data, err := r.store.Get(ctx, pendingKey(token))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrPendingNotFound
		}
		return nil, fmt.Errorf("確認待ち投稿の取得に失敗しました: %w", err)
	}

	var pending models.PendingSubmission
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("確認待ち投稿のデコードに失敗しました: %w", err)
	}
	if pending.Expired(time.Now().UTC()) {
		_ = r.store.Delete(ctx, pendingKey(token))
		return nil, ErrPendingNotFound
	}
	return &pending, nil
}

// Delete は投稿を削除します。
func (r *pendingRepositoryImpl) Delete(ctx context.Context, token string) error {
	return r.store.Delete(ctx, pendingKey(token))
}

func pendingKey(token string) string {
	return pendingPrefix + token + ".json"
}

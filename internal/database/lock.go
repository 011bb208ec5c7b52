package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/quicksync-community/benchmark-backend/internal/storage"
)

const (
	lockKey         = "locks/dataset"
	lockTTL         = 30 * time.Second
	lockMaxAttempts = 5
	lockRetryDelay  = 500 * time.Millisecond
)

// ErrLockBusy はリトライ上限までロックを取得できなかった場合に返されます。
// 呼び出し側はリトライ可能なエラーとして扱ってください。
var ErrLockBusy = errors.New("dataset lock is busy, try again later")

// lockRecord はロックキーに格納される所有者トークンとTTLです。
type lockRecord struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AdvisoryLock は共有ストア上の単一キーによるTTL付き相互排他です。
// 参加者が協調して守ることを前提としたアドバイザリロックであり、
// ストレージ層が強制するものではありません。クラッシュした保持者への
// 保険はTTLのみです。
type AdvisoryLock struct {
	store       storage.ObjectStore
	key         string
	ttl         time.Duration
	maxAttempts int
	retryDelay  time.Duration
}

// NewAdvisoryLock はデータセット用のアドバイザリロックを作成します。
func NewAdvisoryLock(store storage.ObjectStore) *AdvisoryLock {
	return &AdvisoryLock{
		store:       store,
		key:         lockKey,
		ttl:         lockTTL,
		maxAttempts: lockMaxAttempts,
		retryDelay:  lockRetryDelay,
	}
}

// Acquire はロックの取得を1回だけ試みます。取得できた場合は所有者トークンを、
// 他者が保持中の場合は空文字列を返します（ブロックしません）。
//
// 書き込み後の再読み込みは「不在」を同時に観測した2者の競合を減らすための
// ベストエフォートのチェックであり、真のcompare-and-swapではありません。
// この競合窓は既知の制限としてそのまま残しています。
func (l *AdvisoryLock) Acquire(ctx context.Context) (string, error) {
	data, err := l.store.Get(ctx, l.key)
	if err == nil {
		var current lockRecord
		if jsonErr := json.Unmarshal(data, &current); jsonErr == nil {
			if time.Now().Before(current.ExpiresAt) {
				return "", nil // 他者が保持中
			}
			// TTL切れのロックは不在として扱う
		}
	} else if !errors.Is(err, storage.ErrObjectNotFound) {
		return "", fmt.Errorf("ロックキーの読み取りに失敗しました: %w", err)
	}

	token := uuid.New().String()
	record := lockRecord{Token: token, ExpiresAt: time.Now().Add(l.ttl)}
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("ロックレコードのエンコードに失敗しました: %w", err)
	}
	if err := l.store.Put(ctx, l.key, payload); err != nil {
		return "", fmt.Errorf("ロックキーの書き込みに失敗しました: %w", err)
	}

	// 再読み込みして自分のトークンがまだ書かれているか確認する
	data, err = l.store.Get(ctx, l.key)
	if err != nil {
		return "", nil
	}
	var written lockRecord
	if err := json.Unmarshal(data, &written); err != nil || written.Token != token {
		return "", nil // 競合に負けた
	}
	return token, nil
}

// Release はロックキーの現在値が token と一致する場合のみ削除します。
// TTL切れ後に他者が取得し直したロックを誤って解放しないためのガードです。
// トークンが一致しない場合は何もしません。
func (l *AdvisoryLock) Release(ctx context.Context, token string) error {
	data, err := l.store.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil
		}
		return fmt.Errorf("ロックキーの読み取りに失敗しました: %w", err)
	}
	var current lockRecord
	if err := json.Unmarshal(data, &current); err != nil {
		return nil
	}
	if current.Token != token {
		return nil
	}
	return l.store.Delete(ctx, l.key)
}

// WithLock はロックを取得して fn を実行します。取得は固定回数・固定間隔で
// リトライし、全て失敗した場合は ErrLockBusy を返します。fn の成否に
// かかわらずロックは必ず解放されます。
func (l *AdvisoryLock) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		token, err := l.Acquire(ctx)
		if err != nil {
			return err
		}
		if token != "" {
			return func() error {
				defer func() {
					if rerr := l.Release(ctx, token); rerr != nil {
						log.Printf("AdvisoryLock: ロックの解放に失敗しました: %v", rerr)
					}
				}()
				return fn(ctx)
			}()
		}
		time.Sleep(l.retryDelay)
	}
	return ErrLockBusy
}

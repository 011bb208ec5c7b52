package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quicksync-community/benchmark-backend/internal/storage"
)

func newTestLock(store storage.ObjectStore) *AdvisoryLock {
	l := NewAdvisoryLock(store)
	// テストを速くするためリトライ間隔を短縮
	l.retryDelay = 5 * time.Millisecond
	return l
}

// TestAcquireAndRelease はロックの取得と解放の基本サイクルをテストします。
func TestAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	lock := newTestLock(store)

	token, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token, got empty string")
	}

	// 保持中の再取得は空文字列を返す
	second, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	if second != "" {
		t.Errorf("expected empty token while held, got %q", second)
	}

	if err := lock.Release(ctx, token); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	// 解放後は再取得できる
	third, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	if third == "" {
		t.Error("expected a token after release, got empty string")
	}
}

// TestRelease_ForeignToken は他者のトークンでの解放が何もしないことを
// テストします。
func TestRelease_ForeignToken(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	lock := newTestLock(store)

	token, err := lock.Acquire(ctx)
	if err != nil || token == "" {
		t.Fatalf("Acquire failed: token=%q err=%v", token, err)
	}

	if err := lock.Release(ctx, "not-my-token"); err != nil {
		t.Fatalf("foreign Release returned error: %v", err)
	}

	// ロックはまだ保持されているはず
	second, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if second != "" {
		t.Error("foreign token release must not free the lock")
	}
}

// TestAcquire_ExpiredLock はTTL切れのロックが不在として扱われることを
// テストします。
func TestAcquire_ExpiredLock(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	lock := newTestLock(store)
	lock.ttl = 10 * time.Millisecond

	token, err := lock.Acquire(ctx)
	if err != nil || token == "" {
		t.Fatalf("Acquire failed: token=%q err=%v", token, err)
	}

	time.Sleep(20 * time.Millisecond)

	// TTL切れなので解放なしでも取得できる
	second, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after expiry failed: %v", err)
	}
	if second == "" {
		t.Error("expected to acquire an expired lock")
	}
	if second == token {
		t.Error("new acquisition must issue a fresh token")
	}
}

// TestWithLock_ReleasesOnError はfnがエラーを返してもロックが解放されることを
// テストします。
func TestWithLock_ReleasesOnError(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	lock := newTestLock(store)

	sentinel := errors.New("boom")
	err := lock.WithLock(ctx, func(ctx context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	// fnが失敗してもロックは解放済みで、すぐ再取得できる
	token, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if token == "" {
		t.Error("lock was not released after fn error")
	}
}

// TestWithLock_BusyAfterRetries は保持中のロックに対してリトライが尽きると
// ErrLockBusyが返ることをテストします。
func TestWithLock_BusyAfterRetries(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	lock := newTestLock(store)

	token, err := lock.Acquire(ctx)
	if err != nil || token == "" {
		t.Fatalf("Acquire failed: token=%q err=%v", token, err)
	}

	other := newTestLock(store)
	err = other.WithLock(ctx, func(ctx context.Context) error {
		t.Error("fn must not run while the lock is held elsewhere")
		return nil
	})
	if !errors.Is(err, ErrLockBusy) {
		t.Errorf("expected ErrLockBusy, got %v", err)
	}
}

// TestWithLock_RunsFn はロック取得に成功したときfnが実行されることを
// テストします。
func TestWithLock_RunsFn(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	lock := newTestLock(store)

	ran := false
	err := lock.WithLock(ctx, func(ctx context.Context) error {
		ran = true
		// fn実行中はロックが保持されている
		token, err := lock.Acquire(ctx)
		if err != nil {
			return err
		}
		if token != "" {
			t.Error("lock must be held while fn runs")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock failed: %v", err)
	}
	if !ran {
		t.Error("fn did not run")
	}
}

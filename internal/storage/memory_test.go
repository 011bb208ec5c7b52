package storage

import (
	"context"
	"errors"
	"testing"
)

// TestMemoryStore_GetPutDelete は基本のCRUDサイクルをテストします。
func TestMemoryStore_GetPutDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Get(missing) = %v, expected ErrObjectNotFound", err)
	}

	if err := store.Put(ctx, "key", []byte("value")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	data, err := store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("Get = %q, expected 'value'", data)
	}

	if err := store.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "key"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Get after delete = %v, expected ErrObjectNotFound", err)
	}
}

// TestMemoryStore_DefensiveCopy は返却バッファの変更がストア内部に
// 影響しないことをテストします。
func TestMemoryStore_DefensiveCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	original := []byte("value")
	if err := store.Put(ctx, "key", original); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	original[0] = 'X'

	data, err := store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("stored data was mutated: %q", data)
	}

	data[0] = 'Y'
	again, _ := store.Get(ctx, "key")
	if string(again) != "value" {
		t.Errorf("returned buffer mutation leaked into store: %q", again)
	}
}

// TestMemoryStore_List はプレフィックス絞り込みと辞書順ソートをテストします。
func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, key := range []string{"backups/b", "backups/a", "other/x", "backups/c"} {
		if err := store.Put(ctx, key, []byte("v")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	keys, err := store.List(ctx, "backups/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	expected := []string{"backups/a", "backups/b", "backups/c"}
	if len(keys) != len(expected) {
		t.Fatalf("len(keys) = %d, expected %d", len(keys), len(expected))
	}
	for i, k := range expected {
		if keys[i] != k {
			t.Errorf("keys[%d] = %q, expected %q", i, keys[i], k)
		}
	}
}

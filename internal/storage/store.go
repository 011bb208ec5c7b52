// Package storage はデータセットオブジェクトの置き場となるキー/バリュー
// ストレージの抽象です。必要な操作は get/put/list/delete の4つだけで、
// 背後の実装（メモリ、Postgres、Supabase Storage）は意識させません。
package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound は指定キーのオブジェクトが存在しない場合に返されます。
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore は単一の共有データセット・バックアップ・ロックキー・
// 確認待ち投稿を保持するオブジェクトストレージの操作です。
type ObjectStore interface {
	// Get はキーに対応するオブジェクトを返します。
	// 存在しない場合は ErrObjectNotFound を返します。
	Get(ctx context.Context, key string) ([]byte, error)
	// Put はオブジェクトを書き込みます（存在する場合は上書き）。
	Put(ctx context.Context, key string, data []byte) error
	// Delete はオブジェクトを削除します。存在しなくてもエラーにしません。
	Delete(ctx context.Context, key string) error
	// List はプレフィックスにマッチするキーの一覧を辞書順で返します。
	List(ctx context.Context, prefix string) ([]string, error)
}

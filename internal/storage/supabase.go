package storage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStore はSupabase Storageのバケットをオブジェクトストアとして
// 使う実装です。本番環境では共有データセットとそのバックアップが
// このバケットに置かれます。
type SupabaseStore struct {
	client *storage_go.Client
	bucket string
}

// NewSupabaseStore はSupabase Storageクライアントを作成します。
// url は "https://<project>.supabase.co/storage/v1" 形式です。
func NewSupabaseStore(url, serviceKey, bucket string) *SupabaseStore {
	client := storage_go.NewClient(url, serviceKey, nil)
	return &SupabaseStore{client: client, bucket: bucket}
}

// Get はキーに対応するオブジェクトをダウンロードします。
func (s *SupabaseStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := s.client.DownloadFile(s.bucket, key)
	if err != nil {
		// Storage APIは404を専用エラー型で返さないため、メッセージで判定する
		if strings.Contains(strings.ToLower(err.Error()), "not") &&
			strings.Contains(strings.ToLower(err.Error()), "found") {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("オブジェクトのダウンロードに失敗しました: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrObjectNotFound
	}
	return data, nil
}

// Put はオブジェクトをアップロードします。既存キーは上書きします。
func (s *SupabaseStore) Put(_ context.Context, key string, data []byte) error {
	_, err := s.client.UploadFile(s.bucket, key, bytes.NewReader(data))
	if err != nil {
		// 既に存在する場合はUpdateFileで上書き
		_, err = s.client.UpdateFile(s.bucket, key, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("オブジェクトのアップロードに失敗しました: %w", err)
		}
	}
	return nil
}

// Delete はオブジェクトを削除します。
func (s *SupabaseStore) Delete(_ context.Context, key string) error {
	_, err := s.client.RemoveFile(s.bucket, []string{key})
	if err != nil {
		return fmt.Errorf("オブジェクトの削除に失敗しました: %w", err)
	}
	return nil
}

// List はプレフィックスにマッチするキーを辞書順で返します。
// Supabase Storageの一覧はディレクトリ単位なので、プレフィックスの
// ディレクトリ部分を一覧してから残りで絞り込みます。
func (s *SupabaseStore) List(_ context.Context, prefix string) ([]string, error) {
	dir := ""
	rest := prefix
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		dir = prefix[:i]
		rest = prefix[i+1:]
	}

	files, err := s.client.ListFiles(s.bucket, dir, storage_go.FileSearchOptions{Limit: 1000})
	if err != nil {
		return nil, fmt.Errorf("キー一覧の取得に失敗しました: %w", err)
	}

	var keys []string
	for _, f := range files {
		if !strings.HasPrefix(f.Name, rest) {
			continue
		}
		if dir != "" {
			keys = append(keys, dir+"/"+f.Name)
		} else {
			keys = append(keys, f.Name)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/quicksync-community/benchmark-backend/internal/hardware"
	"github.com/quicksync-community/benchmark-backend/internal/models"
	"github.com/quicksync-community/benchmark-backend/internal/storage"
)

const (
	datasetKey      = "benchmarks.json"
	backupPrefix    = "backups/"
	backupTimestamp = "20060102T150405.000000000Z"
	maxBackups      = 10
)

// DatasetRepository は共有データセットオブジェクトの読み書きを定義する
// インターフェースです。すべての変更は WithLock で直列化してください。
type DatasetRepository interface {
	// Read はデータセットを取得します。まだ存在しない場合は
	// 空のデータセット（version 0）を合成して返します。
	Read(ctx context.Context) (*models.Dataset, error)

	// Write はバックアップを取り、メタカウンタを再計算し、versionを+1して
	// データセットを永続化します。古いバックアップは上限まで削除されます。
	Write(ctx context.Context, dataset *models.Dataset) error

	// WithLock はアドバイザリロックの保護下で fn を実行します。
	WithLock(ctx context.Context, fn func(ctx context.Context) error) error
}

// datasetRepositoryImpl はDatasetRepositoryインターフェースの実装です。
type datasetRepositoryImpl struct {
	store storage.ObjectStore
	lock  *AdvisoryLock
}

// NewDatasetRepository はDatasetRepositoryの新しいインスタンスを作成します。
func NewDatasetRepository(store storage.ObjectStore) DatasetRepository {
	return &datasetRepositoryImpl{
		store: store,
		lock:  NewAdvisoryLock(store),
	}
}

// Read はデータセットを取得します。
func (r *datasetRepositoryImpl) Read(ctx context.Context) (*models.Dataset, error) {
	data, err := r.store.Get(ctx, datasetKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return emptyDataset(), nil
		}
		return nil, fmt.Errorf("データセットの取得に失敗しました: %w", err)
	}

	var dataset models.Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("データセットのデコードに失敗しました: %w", err)
	}
	if dataset.CPUFeatures == nil {
		dataset.CPUFeatures = make(map[string]models.CPUFeatures)
	}
	return &dataset, nil
}

// Write はデータセットを永続化します。
func (r *datasetRepositoryImpl) Write(ctx context.Context, dataset *models.Dataset) error {
	// 既存オブジェクトがあればタイムスタンプ付きキーへそのままコピー
	// （ベストエフォートのバックアップ。まだ何もなければスキップ）
	existing, err := r.store.Get(ctx, datasetKey)
	if err == nil {
		backupKey := backupPrefix + time.Now().UTC().Format(backupTimestamp) + ".json"
		if berr := r.store.Put(ctx, backupKey, existing); berr != nil {
			log.Printf("DatasetRepository: バックアップの作成に失敗しました: %v", berr)
		}
	} else if !errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("バックアップ用の読み取りに失敗しました: %w", err)
	}

	// メタカウンタは手動維持せず、書き込み時に必ず再計算する
	dataset.RecomputeMeta()
	dataset.Version++
	dataset.LastUpdated = time.Now().UTC()

	payload, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return fmt.Errorf("データセットのエンコードに失敗しました: %w", err)
	}
	if err := r.store.Put(ctx, datasetKey, payload); err != nil {
		return fmt.Errorf("データセットの書き込みに失敗しました: %w", err)
	}

	r.pruneBackups(ctx)
	return nil
}

// WithLock はアドバイザリロックの保護下で fn を実行します。
func (r *datasetRepositoryImpl) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.lock.WithLock(ctx, fn)
}

// pruneBackups は上限を超えた古いバックアップを削除します。キーには
// タイムスタンプが埋め込まれているため、辞書順＝時系列順になります。
func (r *datasetRepositoryImpl) pruneBackups(ctx context.Context) {
	keys, err := r.store.List(ctx, backupPrefix)
	if err != nil {
		log.Printf("DatasetRepository: バックアップ一覧の取得に失敗しました: %v", err)
		return
	}
	if len(keys) <= maxBackups {
		return
	}
	for _, key := range keys[:len(keys)-maxBackups] {
		if err := r.store.Delete(ctx, key); err != nil {
			log.Printf("DatasetRepository: バックアップ %s の削除に失敗しました: %v", key, err)
		}
	}
}

func emptyDataset() *models.Dataset {
	return &models.Dataset{
		Version:            0,
		Architectures:      hardware.ArchitectureTable(),
		Results:            []models.BenchmarkResult{},
		ConcurrencyResults: []models.ConcurrencyResult{},
		CPUFeatures:        make(map[string]models.CPUFeatures),
	}
}

// NextResultID は次に割り当てる結果IDを返します。永続化されたカウンタでは
// なく、ロック保護下で読み取った直後のスナップショットに対して呼ぶことが
// 正しさの前提です。
func NextResultID(results []models.BenchmarkResult) int64 {
	var max int64
	for _, r := range results {
		if r.ID > max {
			max = r.ID
		}
	}
	return max + 1
}

// NextConcurrencyID は次に割り当てる同時実行結果IDを返します。
func NextConcurrencyID(results []models.ConcurrencyResult) int64 {
	var max int64
	for _, r := range results {
		if r.ID > max {
			max = r.ID
		}
	}
	return max + 1
}

// HashExists は同一ハッシュの結果が既に存在するかを線形走査で調べます。
// ID採番と同じロック区間で呼ぶことで「ハッシュ確認・採番・追加」が
// 他の書き込みに対して実質アトミックになります。
func HashExists(results []models.BenchmarkResult, hash string) bool {
	for _, r := range results {
		if r.ResultHash == hash {
			return true
		}
	}
	return false
}

// ConcurrencyHashExists は同一ハッシュの同時実行結果が既に存在するかを調べます。
func ConcurrencyHashExists(results []models.ConcurrencyResult, hash string) bool {
	for _, r := range results {
		if r.ResultHash == hash {
			return true
		}
	}
	return false
}

// eccimport はIntel ARKから収集したECCサポート等のCPU機能フラグを
// データセットに取り込むためのコマンドです。入力は cpu_raw をキーとした
// JSONファイルです（例: {"i5-12500": {"ecc_support": false}}）。
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/quicksync-community/benchmark-backend/internal/database"
	"github.com/quicksync-community/benchmark-backend/internal/models"
	"github.com/quicksync-community/benchmark-backend/internal/services/ingest"
	"github.com/quicksync-community/benchmark-backend/internal/storage"
)

func newObjectStore() (storage.ObjectStore, error) {
	switch backend := os.Getenv("STORAGE_BACKEND"); backend {
	case "postgres":
		return storage.NewPostgresStore(os.Getenv("DATABASE_URL"))
	case "supabase":
		bucket := os.Getenv("SUPABASE_BUCKET")
		if bucket == "" {
			bucket = "benchmarks"
		}
		return storage.NewSupabaseStore(os.Getenv("SUPABASE_URL"), os.Getenv("SUPABASE_SERVICE_KEY"), bucket), nil
	default:
		return nil, errors.New("STORAGE_BACKEND must be 'postgres' or 'supabase' for import")
	}
}

func main() {
	featuresFile := flag.String("features-file", "cpu-features.json", "path to the cpu_raw -> features JSON file")
	dryRun := flag.Bool("dry-run", false, "parse and report without writing to storage")
	flag.Parse()

	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil {
			log.Printf("warning: Error loading .env file (this is fine in production): %v", err)
		}
	}

	raw, err := os.ReadFile(*featuresFile)
	if err != nil {
		log.Fatalf("機能フラグファイルの読み込みに失敗しました: %v", err)
	}

	var features map[string]models.CPUFeatures
	if err := json.Unmarshal(raw, &features); err != nil {
		log.Fatalf("機能フラグファイルのパースに失敗しました: %v", err)
	}
	if len(features) == 0 {
		log.Println("機能フラグが見つかりませんでした")
		return
	}

	if *dryRun {
		eccCount := 0
		for _, f := range features {
			if f.ECCSupport {
				eccCount++
			}
		}
		log.Printf("[dry-run] %d件の機能フラグをパースしました（ECCサポート: %d件、書き込みなし）",
			len(features), eccCount)
		return
	}

	store, err := newObjectStore()
	if err != nil {
		log.Fatalf("ストレージバックエンドの初期化に失敗しました: %v", err)
	}

	datasetRepo := database.NewDatasetRepository(store)
	pendingRepo := database.NewPendingRepository(store)
	ingestService := ingest.NewService(datasetRepo, pendingRepo, nil)

	version, err := ingestService.SetCPUFeatures(context.Background(), features)
	if err != nil {
		log.Fatalf("機能フラグの書き込みに失敗しました: %v", err)
	}

	log.Printf("取り込み完了: %d件の機能フラグを更新しました（version: %d）", len(features), version)
}

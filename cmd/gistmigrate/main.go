// gistmigrate はレガシーのGitHub gistコメントスレッドからベンチマーク結果を
// 一括取り込みするためのコマンドです。
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/quicksync-community/benchmark-backend/internal/database"
	"github.com/quicksync-community/benchmark-backend/internal/parser"
	"github.com/quicksync-community/benchmark-backend/internal/services/gist"
	"github.com/quicksync-community/benchmark-backend/internal/services/ingest"
	"github.com/quicksync-community/benchmark-backend/internal/storage"
)

// コミュニティベンチマークの歴代結果が集まっているgistのID
const defaultGistID = "5da9b321acbe6b6b53070437023b844d"

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
		return nil, errors.New("STORAGE_BACKEND must be 'postgres' or 'supabase' for migration")
	}
}

func main() {
	gistID := flag.String("gist-id", defaultGistID, "ID of the gist whose comments hold benchmark results")
	dryRun := flag.Bool("dry-run", false, "parse and report without writing to storage")
	flag.Parse()

	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil {
			log.Printf("warning: Error loading .env file (this is fine in production): %v", err)
		}
	}

	ctx := context.Background()
	gistService := gist.NewService(ctx, os.Getenv("GITHUB_TOKEN"))

	blocks, err := gistService.FetchResultBlocks(ctx, *gistID)
	if err != nil {
		log.Fatalf("gistコメントの取得に失敗しました: %v", err)
	}
	if len(blocks) == 0 {
		log.Println("結果ブロックが見つかりませんでした")
		return
	}

	if *dryRun {
		totalResults := 0
		for _, block := range blocks {
			candidates := parser.ParseResultLines(block.Body)
			totalResults += len(candidates)
			log.Printf("[dry-run] author=%s results=%d", block.Author, len(candidates))
		}
		log.Printf("[dry-run] %d件のブロックから%d件の結果をパースしました（書き込みなし）", len(blocks), totalResults)
		return
	}

	store, err := newObjectStore()
	if err != nil {
		log.Fatalf("ストレージバックエンドの初期化に失敗しました: %v", err)
	}

	datasetRepo := database.NewDatasetRepository(store)
	pendingRepo := database.NewPendingRepository(store)
	ingestService := ingest.NewService(datasetRepo, pendingRepo, nil)

	added, skipped, rejected := 0, 0, 0
	for _, block := range blocks {
		submitter := block.Author
		var submitterID *string
		if submitter != "" {
			submitterID = &submitter
		}
		outcome, err := ingestService.SubmitResults(ctx, block.Body, submitterID, true)
		if err != nil {
			rejected++
			log.Printf("ブロックを拒否しました (author=%s): %v", block.Author, err)
			continue
		}
		added += outcome.Added
		skipped += outcome.Skipped
	}

	log.Printf("移行完了: 追加 %d件、重複スキップ %d件、拒否ブロック %d件", added, skipped, rejected)
}

package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/quicksync-community/benchmark-backend/internal/api/handlers"
	"github.com/quicksync-community/benchmark-backend/internal/api/middleware"
	"github.com/quicksync-community/benchmark-backend/internal/database"
	"github.com/quicksync-community/benchmark-backend/internal/services/captcha"
	"github.com/quicksync-community/benchmark-backend/internal/services/ingest"
	"github.com/quicksync-community/benchmark-backend/internal/services/live"
	"github.com/quicksync-community/benchmark-backend/internal/storage"
)

// newObjectStore はSTORAGE_BACKEND環境変数に応じたストレージバックエンドを作成します。
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
	case "", "memory":
		log.Println("警告: インメモリストレージを使用します。データは再起動で失われます")
		return storage.NewMemoryStore(), nil
	default:
		log.Printf("警告: 未知のSTORAGE_BACKEND '%s' が指定されました。インメモリストレージを使用します", backend)
		return storage.NewMemoryStore(), nil
	}
}

func main() {
	if os.Getenv("APP_ENV") != "production" {
		err := godotenv.Load()
		if err != nil {
			log.Printf("warning: Error loading .env file (this is fine in production): %v", err)
		}
	}

	store, err := newObjectStore()
	if err != nil {
		log.Fatalf("ストレージバックエンドの初期化に失敗しました: %v", err)
	}

	datasetRepo := database.NewDatasetRepository(store)
	pendingRepo := database.NewPendingRepository(store)

	var verifier captcha.Verifier
	if secret := os.Getenv("TURNSTILE_SECRET"); secret != "" {
		verifier = captcha.NewTurnstileService(secret)
	} else {
		log.Println("警告: TURNSTILE_SECRETが未設定のため、CAPTCHA検証をスキップします")
	}

	ingestService := ingest.NewService(datasetRepo, pendingRepo, verifier)
	hub := live.NewHub()
	ingestService.SetListener(hub.NotifyDatasetUpdated)

	submitHandler := handlers.NewSubmitHandler(ingestService)
	resultsHandler := handlers.NewResultsHandler(datasetRepo)
	scoresHandler := handlers.NewScoresHandler(datasetRepo)
	liveHandler := handlers.NewLiveHandler(hub)
	healthHandler := handlers.NewHealthHandler(datasetRepo)

	jwtSecret := os.Getenv("SUPABASE_JWT_SECRET")
	benchmarkSecret := os.Getenv("BENCHMARK_SECRET")

	r := mux.NewRouter()

	// 公開の参照系エンドポイント
	r.HandleFunc("/api/health", healthHandler.Health).Methods("GET")
	r.HandleFunc("/api/results", resultsHandler.GetResults).Methods("GET")
	r.HandleFunc("/api/filters", resultsHandler.GetFilters).Methods("GET")
	r.HandleFunc("/api/stats/generations", resultsHandler.GetGenerationStats).Methods("GET")
	r.HandleFunc("/api/stats/architectures", resultsHandler.GetArchitectureStats).Methods("GET")
	r.HandleFunc("/api/stats/cpus", resultsHandler.GetCPUStats).Methods("GET")
	r.HandleFunc("/api/stats/boxplot", resultsHandler.GetBoxplot).Methods("GET")
	r.HandleFunc("/api/scores", scoresHandler.GetLeaderboard).Methods("GET")
	r.HandleFunc("/api/scores/map", scoresHandler.GetScoreMap).Methods("GET")

	// データセット更新のライブ配信 (WebSocket)
	r.HandleFunc("/api/live", liveHandler.Handle)

	// 共有シークレット認証が必要な直接投稿エンドポイント
	directRouter := r.PathPrefix("/api/submit").Subrouter()
	directRouter.Use(middleware.SharedSecret(benchmarkSecret))
	directRouter.HandleFunc("", submitHandler.Submit).Methods("POST")
	directRouter.HandleFunc("/concurrency", submitHandler.SubmitConcurrency).Methods("POST")

	// ブラウザからの投稿フロー（確認待ち + CAPTCHA確定）
	pendingRouter := r.PathPrefix("/api/submit").Subrouter()
	pendingRouter.Use(middleware.SubmitterIdentity(jwtSecret))
	pendingRouter.HandleFunc("/pending", submitHandler.SubmitPending).Methods("POST")
	pendingRouter.HandleFunc("/confirm", submitHandler.Confirm).Methods("POST")

	var allowedOrigins []string
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		allowedOrigins = strings.Split(origins, ",")
	}
	handler := middleware.CORSHandler(allowedOrigins)(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server starting on :%s", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}

package models

import (
	"time"
)

// Vendor はハードウェアベンダーの識別子です。
type Vendor string

const (
	VendorIntel  Vendor = "intel"
	VendorNvidia Vendor = "nvidia"
	VendorAMD    Vendor = "amd"
)

// BenchmarkResult はデータセットに永続化される単一のベンチマーク結果です。
// 一度追加されたレコードは更新・削除されません（immutable）。
type BenchmarkResult struct {
	ID            int64      `json:"id"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	SubmitterID   *string    `json:"submitter_id"`
	CPURaw        string     `json:"cpu_raw"`
	CPUBrand      *string    `json:"cpu_brand"`
	CPUModel      *string    `json:"cpu_model"`
	CPUGeneration *int       `json:"cpu_generation"`
	Architecture  *string    `json:"architecture"`
	TestName      string     `json:"test_name"`
	TestFile      string     `json:"test_file"`
	BitrateKbps   int        `json:"bitrate_kbps"`
	TimeSeconds   float64    `json:"time_seconds"`
	AvgFPS        float64    `json:"avg_fps"`
	AvgSpeed      *float64   `json:"avg_speed"`
	AvgWatts      *float64   `json:"avg_watts"`
	FPSPerWatt    *float64   `json:"fps_per_watt"`
	// DataQualityFlags は計測異常の疑いがある結果に付与されるフラグです
	// (power_too_low, efficiency_outlier, arrow_lake_power_issue)。
	DataQualityFlags []string `json:"data_quality_flags,omitempty"`
	ResultHash       string   `json:"result_hash"`
	Vendor           Vendor   `json:"vendor"`
}

// ConcurrencyResult は同時トランスコード数のスケーリング結果です。
// Speeds は並列度 1..N それぞれの速度倍率（リアルタイム比）を保持します。
type ConcurrencyResult struct {
	ID            int64     `json:"id"`
	SubmittedAt   time.Time `json:"submitted_at"`
	SubmitterID   *string   `json:"submitter_id"`
	CPURaw        string    `json:"cpu_raw"`
	CPUBrand      *string   `json:"cpu_brand"`
	CPUModel      *string   `json:"cpu_model"`
	CPUGeneration *int      `json:"cpu_generation"`
	Architecture  *string   `json:"architecture"`
	TestName      string    `json:"test_name"`
	TestFile      string    `json:"test_file"`
	Speeds        []float64 `json:"speeds_json"`
	// MaxConcurrency は速度が 1.0x 以上を維持できた最大の並列度です。
	MaxConcurrency int    `json:"max_concurrency"`
	ResultHash     string `json:"result_hash"`
	Vendor         Vendor `json:"vendor"`
}

// HardwareScore は1台のハードウェアに対する複合スコアの内訳です。
type HardwareScore struct {
	CPURaw      string  `json:"cpu_raw"`
	Performance float64 `json:"performance"`
	Efficiency  float64 `json:"efficiency"`
	Coverage    float64 `json:"coverage"`
	Composite   int     `json:"composite"`
}

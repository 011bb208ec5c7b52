package parser

import (
	"strings"
	"testing"

	"github.com/quicksync-community/benchmark-backend/internal/models"
)

const sampleLine = "Intel(R) Core(TM) i5-12500 CPU @ 3.00GHz|h264_1080p|ribblehead_1080p_h264|4500kb/s|10.5s|120.5|2.5x|15.2"

// TestParseResultLines_SingleLine は代表的な結果行のパースをテストします。
func TestParseResultLines_SingleLine(t *testing.T) {
	candidates := ParseResultLines(sampleLine)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	r := candidates[0].Result
	if r.CPURaw != "Intel(R) Core(TM) i5-12500 CPU @ 3.00GHz" {
		t.Errorf("CPURaw = %q", r.CPURaw)
	}
	if r.TestName != "h264_1080p" {
		t.Errorf("TestName = %q, expected 'h264_1080p'", r.TestName)
	}
	if r.TestFile != "ribblehead_1080p_h264" {
		t.Errorf("TestFile = %q, expected 'ribblehead_1080p_h264'", r.TestFile)
	}
	if r.BitrateKbps != 4500 {
		t.Errorf("BitrateKbps = %d, expected 4500", r.BitrateKbps)
	}
	if r.TimeSeconds != 10.5 {
		t.Errorf("TimeSeconds = %f, expected 10.5", r.TimeSeconds)
	}
	if r.AvgFPS != 120.5 {
		t.Errorf("AvgFPS = %f, expected 120.5", r.AvgFPS)
	}
	if r.AvgSpeed == nil || *r.AvgSpeed != 2.5 {
		t.Errorf("AvgSpeed = %v, expected 2.5", r.AvgSpeed)
	}
	if r.AvgWatts == nil || *r.AvgWatts != 15.2 {
		t.Errorf("AvgWatts = %v, expected 15.2", r.AvgWatts)
	}
	if r.FPSPerWatt == nil {
		t.Fatal("FPSPerWatt is nil, expected derived value")
	}
	expectedEff := 120.5 / 15.2
	if *r.FPSPerWatt != expectedEff {
		t.Errorf("FPSPerWatt = %f, expected %f", *r.FPSPerWatt, expectedEff)
	}
	if r.Vendor != models.VendorIntel {
		t.Errorf("Vendor = %q, expected intel", r.Vendor)
	}
	if r.CPUGeneration == nil || *r.CPUGeneration != 12 {
		t.Errorf("CPUGeneration = %v, expected 12", r.CPUGeneration)
	}
	if r.Architecture == nil || *r.Architecture != "Alder Lake" {
		t.Errorf("Architecture = %v, expected 'Alder Lake'", r.Architecture)
	}
	if candidates[0].WattsOutOfRange {
		t.Error("WattsOutOfRange = true, expected false for 15.2W")
	}
	if r.ResultHash == "" {
		t.Error("ResultHash is empty")
	}
}

// TestParseResultLines_SkipsInvalidLines はヘッダー・空行・不正行の
// 読み飛ばしをテストします。
func TestParseResultLines_SkipsInvalidLines(t *testing.T) {
	body := strings.Join([]string{
		"CPU|TEST|FILE|BITRATE|TIME|AVG_FPS|AVG_SPEED|AVG_WATTS",
		"",
		"too|few|fields",
		"Intel Core i5-8500|h264_1080p|file|notanumber|10s|100",
		sampleLine,
		"Intel Core i5-8500|h264_1080p|file|4500kb/s|badtime|100",
	}, "\n")

	candidates := ParseResultLines(body)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
}

// TestParseResultLines_OptionalFields はAVG_SPEED/AVG_WATTSのセンチネル値が
// nilとして扱われることをテストします。
func TestParseResultLines_OptionalFields(t *testing.T) {
	body := "Intel Core i5-8500|h264_1080p|file|4500kb/s|10.5s|100.0|x|-"
	candidates := ParseResultLines(body)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	r := candidates[0].Result
	if r.AvgSpeed != nil {
		t.Errorf("AvgSpeed = %v, expected nil for sentinel 'x'", *r.AvgSpeed)
	}
	if r.AvgWatts != nil {
		t.Errorf("AvgWatts = %v, expected nil for sentinel '-'", *r.AvgWatts)
	}
	if r.FPSPerWatt != nil {
		t.Errorf("FPSPerWatt = %v, expected nil without watts", *r.FPSPerWatt)
	}
	if candidates[0].WattsOutOfRange {
		t.Error("sentinel watts must not set WattsOutOfRange")
	}
}

// TestParseResultLines_ImplausibleWatts は妥当性レンジ外の消費電力が
// nilに置き換えられ、OutOfRangeフラグが立つことをテストします。
func TestParseResultLines_ImplausibleWatts(t *testing.T) {
	tooLow := "Intel Core i5-8500|h264_1080p|file|4500kb/s|10.5s|100.0|2.5x|2.9"
	candidates := ParseResultLines(tooLow)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Result.AvgWatts != nil {
		t.Errorf("AvgWatts = %v, expected nil for 2.9W", *candidates[0].Result.AvgWatts)
	}
	if !candidates[0].WattsOutOfRange {
		t.Error("WattsOutOfRange = false, expected true for 2.9W")
	}

	tooHigh := "Intel Core i5-8500|h264_1080p|file|4500kb/s|10.5s|100.0|2.5x|250.0"
	candidates = ParseResultLines(tooHigh)
	if !candidates[0].WattsOutOfRange {
		t.Error("WattsOutOfRange = false, expected true for 250W on a CPU")
	}

	// GPU は上限600Wなので250Wは妥当
	gpu := "NVIDIA GeForce RTX 4070|h264_1080p|file|4500kb/s|10.5s|100.0|2.5x|250.0"
	candidates = ParseResultLines(gpu)
	if candidates[0].WattsOutOfRange {
		t.Error("WattsOutOfRange = true, expected false for 250W on a GPU")
	}
	if candidates[0].Result.AvgWatts == nil || *candidates[0].Result.AvgWatts != 250.0 {
		t.Errorf("AvgWatts = %v, expected 250.0", candidates[0].Result.AvgWatts)
	}
}

// TestParseConcurrencyLines は同時実行スケーリング行のパースをテストします。
func TestParseConcurrencyLines(t *testing.T) {
	body := "Intel Core i5-12500|h264_1080p|ribblehead_1080p_h264|7.02x|4.04x|2.51x|1.86x|1.47x|1.14x|0.95x"
	candidates := ParseConcurrencyLines(body)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}

	r := candidates[0].Result
	expected := []float64{7.02, 4.04, 2.51, 1.86, 1.47, 1.14, 0.95}
	if len(r.Speeds) != len(expected) {
		t.Fatalf("len(Speeds) = %d, expected %d", len(r.Speeds), len(expected))
	}
	for i, v := range expected {
		if r.Speeds[i] != v {
			t.Errorf("Speeds[%d] = %f, expected %f", i, r.Speeds[i], v)
		}
	}
	if r.MaxConcurrency != 6 {
		t.Errorf("MaxConcurrency = %d, expected 6", r.MaxConcurrency)
	}
}

// TestParseConcurrencyLines_MissingSpeeds は欠測値が0として扱われることを
// テストします。
func TestParseConcurrencyLines_MissingSpeeds(t *testing.T) {
	body := "Intel Core i5-12500|h264_1080p|file|2.5x|-|1.2x|abc"
	candidates := ParseConcurrencyLines(body)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	r := candidates[0].Result
	expected := []float64{2.5, 0, 1.2, 0}
	for i, v := range expected {
		if r.Speeds[i] != v {
			t.Errorf("Speeds[%d] = %f, expected %f", i, r.Speeds[i], v)
		}
	}
	if r.MaxConcurrency != 3 {
		t.Errorf("MaxConcurrency = %d, expected 3", r.MaxConcurrency)
	}
}

// TestMaxConcurrency は「1.0x以上を満たす最大の1始まりインデックス」の
// 定義をテストします。単調減少でない系列でも後方のレベルが採用されます。
func TestMaxConcurrency(t *testing.T) {
	tests := []struct {
		speeds   []float64
		expected int
	}{
		{[]float64{7.02, 4.04, 2.51, 1.86, 1.47, 1.14, 0.95}, 6},
		{[]float64{0.9, 0.8}, 0},
		{[]float64{}, 0},
		{[]float64{1.0}, 1},
		{[]float64{2.0, 0.5, 1.1}, 3}, // 途中の落ち込みは無視される
	}

	for _, tt := range tests {
		if got := MaxConcurrency(tt.speeds); got != tt.expected {
			t.Errorf("MaxConcurrency(%v) = %d, expected %d", tt.speeds, got, tt.expected)
		}
	}
}

// TestResultHash_Deterministic は同一入力から同一ハッシュが得られ、
// フィールドの違いがハッシュに反映されることをテストします。
func TestResultHash_Deterministic(t *testing.T) {
	watts := 15.2
	h1 := ResultHash("Intel Core i5-12500", "h264_1080p", "file", 4500, 120.5, &watts)
	h2 := ResultHash("Intel Core i5-12500", "h264_1080p", "file", 4500, 120.5, &watts)
	if h1 != h2 {
		t.Error("same input produced different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, expected 64 hex chars", len(h1))
	}

	h3 := ResultHash("Intel Core i5-12500", "h264_1080p", "file", 4500, 120.6, &watts)
	if h1 == h3 {
		t.Error("different AvgFPS produced same hash")
	}

	h4 := ResultHash("Intel Core i5-12500", "h264_1080p", "file", 4500, 120.5, nil)
	if h1 == h4 {
		t.Error("nil watts produced same hash as non-nil")
	}
}

// TestResultHash_NormalizedCPU は周波数表記だけが異なる投稿が同一ハッシュに
// なること（パース経由）をテストします。
func TestResultHash_NormalizedCPU(t *testing.T) {
	a := ParseResultLines("Intel(R) Core(TM) i5-12500 CPU @ 3.00GHz|h264_1080p|file|4500kb/s|10.5s|120.5|2.5x|15.2")
	b := ParseResultLines("Intel Core i5-12500|h264_1080p|file|4500kb/s|10.5s|120.5|2.5x|15.2")
	if len(a) != 1 || len(b) != 1 {
		t.Fatal("expected 1 candidate each")
	}
	if a[0].Result.ResultHash != b[0].Result.ResultHash {
		t.Error("normalization-equivalent CPU strings produced different hashes")
	}
}

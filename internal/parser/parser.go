// Package parser はベンチマークランナーが出力するパイプ区切りの結果行を
// 検証済みのレコードへ変換します。行単位のフォーマット不正はその行だけを
// 読み飛ばし、残りの行の解析は継続します（部分的失敗に寛容な設計）。
package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/quicksync-community/benchmark-backend/internal/hardware"
	"github.com/quicksync-community/benchmark-backend/internal/models"
)

// 結果行のフォーマット: CPU|TEST|FILE|BITRATE|TIME|AVG_FPS|AVG_SPEED|AVG_WATTS
// AVG_SPEED と AVG_WATTS はオプションです。
const minResultFields = 6

// 消費電力の妥当性レンジ。レンジ外の値は行を落とさず nil に置き換えますが、
// ポリシー判定用に OutOfRange フラグを立てます。
const (
	minPlausibleWatts    = 3.0
	maxPlausibleWattsCPU = 200.0
	maxPlausibleWattsGPU = 600.0
)

// Candidate はパース済みでまだ永続化されていない結果レコードです。
type Candidate struct {
	Result models.BenchmarkResult
	// WattsOutOfRange は消費電力の読み値が妥当性レンジ外だった場合に
	// true になります。取り込みポリシーはこのとき投稿全体を拒否します。
	WattsOutOfRange bool
}

// ConcurrencyCandidate はパース済みの同時実行スケーリングレコードです。
type ConcurrencyCandidate struct {
	Result models.ConcurrencyResult
}

// ParseResultLines は投稿本文を行単位でパースします。ヘッダー行と空行は
// スキップし、フィールド不足や数値不正の行は黙って読み飛ばします。
func ParseResultLines(body string) []Candidate {
	var candidates []Candidate

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if strings.TrimSpace(fields[0]) == "CPU" {
			continue // ヘッダー行
		}
		if len(fields) < minResultFields {
			continue
		}

		cpuRaw := strings.TrimSpace(fields[0])
		testName := strings.TrimSpace(fields[1])
		testFile := strings.TrimSpace(fields[2])

		bitrateStr := strings.TrimSuffix(strings.TrimSpace(fields[3]), "kb/s")
		bitrate, err := strconv.Atoi(strings.TrimSpace(bitrateStr))
		if err != nil {
			continue
		}

		timeStr := strings.TrimSuffix(strings.TrimSpace(fields[4]), "s")
		timeSeconds, err := strconv.ParseFloat(strings.TrimSpace(timeStr), 64)
		if err != nil {
			continue
		}

		avgFPS, err := strconv.ParseFloat(strings.TrimSpace(fields[5]), 64)
		if err != nil {
			continue
		}

		var avgSpeed *float64
		if len(fields) > 6 {
			avgSpeed = parseSpeed(fields[6])
		}

		vendor := hardware.DetectVendor(cpuRaw)

		var avgWatts *float64
		outOfRange := false
		if len(fields) > 7 {
			avgWatts, outOfRange = parseWatts(fields[7], vendor)
		}

		var fpsPerWatt *float64
		if avgWatts != nil && *avgWatts > 0 {
			v := avgFPS / *avgWatts
			fpsPerWatt = &v
		}

		cls := hardware.Classify(cpuRaw, vendor)

		result := models.BenchmarkResult{
			CPURaw:        cpuRaw,
			CPUBrand:      cls.Brand,
			CPUModel:      cls.Model,
			CPUGeneration: cls.Generation,
			Architecture:  cls.Architecture,
			TestName:      testName,
			TestFile:      testFile,
			BitrateKbps:   bitrate,
			TimeSeconds:   timeSeconds,
			AvgFPS:        avgFPS,
			AvgSpeed:      avgSpeed,
			AvgWatts:      avgWatts,
			FPSPerWatt:    fpsPerWatt,
			Vendor:        vendor,
		}
		result.ResultHash = ResultHash(hardware.Normalize(cpuRaw), testName, testFile, bitrate, avgFPS, avgWatts)

		candidates = append(candidates, Candidate{Result: result, WattsOutOfRange: outOfRange})
	}
	return candidates
}

// ParseConcurrencyLines は同時実行スケーリング行をパースします。
// 先頭3フィールドはハードウェアID・テスト名・テストファイルで、
// 残りは並列度ごとの速度倍率です。
func ParseConcurrencyLines(body string) []ConcurrencyCandidate {
	var candidates []ConcurrencyCandidate

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if strings.TrimSpace(fields[0]) == "CPU" {
			continue
		}
		if len(fields) < 4 {
			continue
		}

		cpuRaw := strings.TrimSpace(fields[0])
		testName := strings.TrimSpace(fields[1])
		testFile := strings.TrimSpace(fields[2])

		speeds := make([]float64, 0, len(fields)-3)
		for _, f := range fields[3:] {
			speeds = append(speeds, parseConcurrencySpeed(f))
		}

		vendor := hardware.DetectVendor(cpuRaw)
		cls := hardware.Classify(cpuRaw, vendor)

		result := models.ConcurrencyResult{
			CPURaw:         cpuRaw,
			CPUBrand:       cls.Brand,
			CPUModel:       cls.Model,
			CPUGeneration:  cls.Generation,
			Architecture:   cls.Architecture,
			TestName:       testName,
			TestFile:       testFile,
			Speeds:         speeds,
			MaxConcurrency: MaxConcurrency(speeds),
			Vendor:         vendor,
		}
		result.ResultHash = ConcurrencyHash(hardware.Normalize(cpuRaw), testName, testFile, speeds)

		candidates = append(candidates, ConcurrencyCandidate{Result: result})
	}
	return candidates
}

// MaxConcurrency は速度が 1.0x 以上（リアルタイム以上）を満たす最大の
// 1始まりインデックスを返します。「条件を満たすレベルの個数」ではない点に
// 注意してください。途中のレベルが閾値を下回っても、それより後のレベルが
// 1.0x 以上であればそのレベルが採用されます。該当なしなら 0 です。
func MaxConcurrency(speeds []float64) int {
	max := 0
	for i, s := range speeds {
		if s >= 1.0 {
			max = i + 1
		}
	}
	return max
}

func parseSpeed(field string) *float64 {
	s := strings.TrimSpace(field)
	if s == "" || s == "-" || strings.EqualFold(s, "N/A") || s == "x" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "x"), 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseWatts は消費電力フィールドをパースし、妥当性レンジ外の数値は
// nil に置き換えた上で第2戻り値で報告します。
func parseWatts(field string, vendor models.Vendor) (*float64, bool) {
	s := strings.TrimSpace(field)
	if s == "" || s == "-" || strings.EqualFold(s, "N/A") {
		return nil, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	maxWatts := maxPlausibleWattsCPU
	if vendor == models.VendorNvidia || vendor == models.VendorAMD {
		maxWatts = maxPlausibleWattsGPU
	}
	if v < minPlausibleWatts || v > maxWatts {
		return nil, true
	}
	return &v, false
}

func parseConcurrencySpeed(field string) float64 {
	s := strings.TrimSpace(field)
	if s == "" || s == "-" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "x"), 64)
	if err != nil {
		return 0
	}
	return v
}

// ResultHash は重複排除キーとなるコンテンツハッシュです。正規化済み
// ハードウェアID・テスト名・テストファイル・ビットレート・FPS・消費電力
// から決定的に計算され、同一入力は常に同一ハッシュになります。
func ResultHash(normalizedCPU, testName, testFile string, bitrateKbps int, avgFPS float64, avgWatts *float64) string {
	input := fmt.Sprintf("%s|%s|%s|%d|%s|%s",
		normalizedCPU, testName, testFile, bitrateKbps,
		formatFloat(avgFPS), formatOptionalFloat(avgWatts))
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// ConcurrencyHash は同時実行結果用のコンテンツハッシュです。
func ConcurrencyHash(normalizedCPU, testName, testFile string, speeds []float64) string {
	parts := make([]string, 0, len(speeds))
	for _, s := range speeds {
		parts = append(parts, formatFloat(s))
	}
	input := fmt.Sprintf("%s|%s|%s|%s", normalizedCPU, testName, testFile, strings.Join(parts, ","))
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatOptionalFloat(f *float64) string {
	if f == nil {
		return "null"
	}
	return formatFloat(*f)
}

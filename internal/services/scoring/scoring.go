// Package scoring はハードウェアスコアの算出ロジックです。
// データセットを入力とする純粋関数として実装しており、状態は持ちません。
package scoring

import (
	"math"
	"sort"

	"github.com/quicksync-community/benchmark-backend/internal/models"
)

// 複合スコアの重み。性能・効率・カバレッジの順です。
const (
	performanceWeight = 0.40
	efficiencyWeight  = 0.35
	coverageWeight    = 0.25
)

// cpuAggregate は1つのCPU単位の集計値です。テスト名ごとに分けて保持します。
type cpuAggregate struct {
	cpuRaw  string
	perTest map[string]*testAggregate
}

// testAggregate は1つの (CPU, テスト) 組の集計値です。
type testAggregate struct {
	fpsSum   float64
	fpsCount int
	effSum   float64
	effCount int
}

// Leaderboard はデータセット全体からリーダーボード順のスコア一覧を返します。
// 消費電力データのないCPUは効率サブスコアを中立値の50で扱います。
func Leaderboard(dataset *models.Dataset) []models.HardwareScore {
	aggregates := aggregateByCPU(dataset.Results)
	if len(aggregates) == 0 {
		return []models.HardwareScore{}
	}

	totalTests := countUniqueTests(dataset.Results)
	perf, effScore, hasEff := subScores(aggregates)

	scores := make([]models.HardwareScore, 0, len(aggregates))
	for i, a := range aggregates {
		eff := 50.0
		if hasEff[i] {
			eff = effScore[i]
		}
		cov := coverageScore(len(a.perTest), totalTests)
		scores = append(scores, models.HardwareScore{
			CPURaw:      a.cpuRaw,
			Performance: perf[i],
			Efficiency:  eff,
			Coverage:    cov,
			Composite:   CompositeScore(perf[i], eff, cov),
		})
	}

	// 複合スコア降順。同点は初出順を維持します。
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Composite > scores[j].Composite
	})
	return scores
}

// ScoreMap はCPU文字列から複合スコアへの参照マップを返します。
// 効率データのないCPUは0として扱います（リーダーボードとは異なる既存仕様）。
func ScoreMap(dataset *models.Dataset) map[string]int {
	aggregates := aggregateByCPU(dataset.Results)
	result := make(map[string]int, len(aggregates))
	if len(aggregates) == 0 {
		return result
	}

	totalTests := countUniqueTests(dataset.Results)
	perf, effScore, hasEff := subScores(aggregates)

	for i, a := range aggregates {
		eff := 0.0
		if hasEff[i] {
			eff = effScore[i]
		}
		cov := coverageScore(len(a.perTest), totalTests)
		result[a.cpuRaw] = CompositeScore(perf[i], eff, cov)
	}
	return result
}

// subScores は各CPUの性能・効率サブスコアを返します。パーセンタイルは
// テスト名ごとに「そのテストを実行したCPUの平均fps」を母集団として算出し、
// CPU単位では自分が実行したテストのパーセンタイルを単純平均します。
// 効率も同じ手順で、そのテストに有効な効率サンプルを持つCPUのみを
// 母集団とします。hasEff は有効な効率サンプルを1件でも持つかどうかです。
func subScores(aggregates []*cpuAggregate) (perf, effScore []float64, hasEff []bool) {
	n := len(aggregates)
	perf = make([]float64, n)
	effScore = make([]float64, n)
	hasEff = make([]bool, n)

	perfSum := make([]float64, n)
	perfTests := make([]int, n)
	effSum := make([]float64, n)
	effTests := make([]int, n)

	for _, test := range collectTestNames(aggregates) {
		var fpsIdx []int
		var fpsValues []float64
		var effIdx []int
		var effValues []float64
		for i, a := range aggregates {
			ta, ok := a.perTest[test]
			if !ok {
				continue
			}
			fpsIdx = append(fpsIdx, i)
			fpsValues = append(fpsValues, ta.fpsSum/float64(ta.fpsCount))
			if ta.effCount > 0 {
				effIdx = append(effIdx, i)
				effValues = append(effValues, ta.effSum/float64(ta.effCount))
			}
		}

		for k, i := range fpsIdx {
			perfSum[i] += PercentileRank(fpsValues[k], fpsValues)
			perfTests[i]++
		}
		for k, i := range effIdx {
			effSum[i] += PercentileRank(effValues[k], effValues)
			effTests[i]++
		}
	}

	for i := range aggregates {
		if perfTests[i] > 0 {
			perf[i] = perfSum[i] / float64(perfTests[i])
		}
		if effTests[i] > 0 {
			effScore[i] = effSum[i] / float64(effTests[i])
			hasEff[i] = true
		}
	}
	return perf, effScore, hasEff
}

// PercentileRank は値 v の母集団 population 内での百分位順位を返します。
// 自分より厳密に小さい値の割合を (N-1) を分母として百分率にします。
// 母集団が1件のときは100です。
func PercentileRank(v float64, population []float64) float64 {
	n := len(population)
	if n <= 1 {
		return 100.0
	}
	below := 0
	for _, p := range population {
		if p < v {
			below++
		}
	}
	return float64(below) / float64(n-1) * 100.0
}

// CompositeScore は重み付き複合スコアを [0, 100] の整数で返します。
func CompositeScore(performance, efficiency, coverage float64) int {
	composite := int(math.Round(
		performance*performanceWeight + efficiency*efficiencyWeight + coverage*coverageWeight))
	if composite < 0 {
		return 0
	}
	if composite > 100 {
		return 100
	}
	return composite
}

// aggregateByCPU は結果をCPU文字列ごと・テスト名ごとに集計します。
// CPUの初出順を保持します。効率は正の fps/W サンプルのみを数え、
// 計測異常フラグ付きのサンプルは除外します。
func aggregateByCPU(results []models.BenchmarkResult) []*cpuAggregate {
	index := make(map[string]*cpuAggregate)
	var ordered []*cpuAggregate
	for _, r := range results {
		a, ok := index[r.CPURaw]
		if !ok {
			a = &cpuAggregate{
				cpuRaw:  r.CPURaw,
				perTest: make(map[string]*testAggregate),
			}
			index[r.CPURaw] = a
			ordered = append(ordered, a)
		}
		ta, ok := a.perTest[r.TestName]
		if !ok {
			ta = &testAggregate{}
			a.perTest[r.TestName] = ta
		}
		ta.fpsSum += r.AvgFPS
		ta.fpsCount++
		if r.FPSPerWatt != nil && *r.FPSPerWatt > 0 && !hasFlag(r.DataQualityFlags, "efficiency_outlier") {
			ta.effSum += *r.FPSPerWatt
			ta.effCount++
		}
	}
	return ordered
}

// collectTestNames は集計に現れる全テスト名を辞書順で返します。
func collectTestNames(aggregates []*cpuAggregate) []string {
	set := make(map[string]struct{})
	for _, a := range aggregates {
		for test := range a.perTest {
			set[test] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for test := range set {
		names = append(names, test)
	}
	sort.Strings(names)
	return names
}

func coverageScore(covered, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(covered) / float64(total) * 100.0
}

func countUniqueTests(results []models.BenchmarkResult) int {
	tests := make(map[string]struct{})
	for _, r := range results {
		tests[r.TestName] = struct{}{}
	}
	return len(tests)
}

func hasFlag(flags []string, name string) bool {
	for _, f := range flags {
		if f == name {
			return true
		}
	}
	return false
}

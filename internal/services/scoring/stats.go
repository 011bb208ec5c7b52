package scoring

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/quicksync-community/benchmark-backend/internal/models"
)

// FilterOptions は結果一覧のフィルタ条件です。ゼロ値のフィールドは無視されます。
type FilterOptions struct {
	Vendor       string
	Generation   *int
	Architecture string
	TestName     string
}

// Matches は結果がフィルタ条件をすべて満たすかどうかを返します。
func (f FilterOptions) Matches(r *models.BenchmarkResult) bool {
	if f.Vendor != "" && string(r.Vendor) != f.Vendor {
		return false
	}
	if f.Generation != nil && (r.CPUGeneration == nil || *r.CPUGeneration != *f.Generation) {
		return false
	}
	if f.Architecture != "" && (r.Architecture == nil || *r.Architecture != f.Architecture) {
		return false
	}
	if f.TestName != "" && r.TestName != f.TestName {
		return false
	}
	return true
}

// FilterResults は条件を満たす結果だけを初出順のまま返します。
func FilterResults(results []models.BenchmarkResult, opts FilterOptions) []models.BenchmarkResult {
	filtered := make([]models.BenchmarkResult, 0, len(results))
	for i := range results {
		if opts.Matches(&results[i]) {
			filtered = append(filtered, results[i])
		}
	}
	return filtered
}

// AvailableFilters はフィルタUI向けの選択肢一覧です。
type AvailableFilters struct {
	Vendors       []string `json:"vendors"`
	Generations   []int    `json:"generations"`
	Architectures []string `json:"architectures"`
	Tests         []string `json:"tests"`
}

// CollectFilters はデータセットに実際に存在する値からフィルタ選択肢を作ります。
func CollectFilters(dataset *models.Dataset) AvailableFilters {
	vendors := make(map[string]struct{})
	generations := make(map[int]struct{})
	architectures := make(map[string]struct{})
	tests := make(map[string]struct{})
	for _, r := range dataset.Results {
		vendors[string(r.Vendor)] = struct{}{}
		if r.CPUGeneration != nil {
			generations[*r.CPUGeneration] = struct{}{}
		}
		if r.Architecture != nil {
			architectures[*r.Architecture] = struct{}{}
		}
		tests[r.TestName] = struct{}{}
	}
	filters := AvailableFilters{
		Vendors:       sortedStrings(vendors),
		Generations:   sortedInts(generations),
		Architectures: sortedStrings(architectures),
		Tests:         sortedStrings(tests),
	}
	return filters
}

// GroupStats はグループごとの集計値です。平均は存在するサンプルのみで計算し、
// 消費電力サンプルが1件もないグループでは AvgWatts と AvgFPSPerWatt が null になります。
type GroupStats struct {
	Group         string   `json:"group"`
	ResultCount   int      `json:"result_count"`
	UniqueCPUs    int      `json:"unique_cpus"`
	AvgFPS        float64  `json:"avg_fps"`
	AvgWatts      *float64 `json:"avg_watts"`
	AvgFPSPerWatt *float64 `json:"avg_fps_per_watt"`
}

// GenerationStats はCPU世代ごとの集計を世代の昇順で返します。
// 世代を特定できない結果は集計に含めません。
func GenerationStats(dataset *models.Dataset) []GroupStats {
	return groupStats(dataset.Results, func(r *models.BenchmarkResult) (string, bool) {
		if r.CPUGeneration == nil {
			return "", false
		}
		return strconv.Itoa(*r.CPUGeneration), true
	}, compareNumericGroups)
}

// ArchitectureStats はアーキテクチャごとの集計を名前の昇順で返します。
func ArchitectureStats(dataset *models.Dataset) []GroupStats {
	return groupStats(dataset.Results, func(r *models.BenchmarkResult) (string, bool) {
		if r.Architecture == nil {
			return "", false
		}
		return *r.Architecture, true
	}, func(a, b string) bool { return a < b })
}

// CPUStats はCPU文字列ごとの集計を結果件数の降順で返します。
func CPUStats(dataset *models.Dataset) []GroupStats {
	stats := groupStats(dataset.Results, func(r *models.BenchmarkResult) (string, bool) {
		return r.CPURaw, true
	}, func(a, b string) bool { return a < b })
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].ResultCount > stats[j].ResultCount
	})
	return stats
}

// BoxplotSeries は1グループ分の五数要約です。
type BoxplotSeries struct {
	Group       string  `json:"group"`
	SampleCount int     `json:"sample_count"`
	Min         float64 `json:"min"`
	Q1          float64 `json:"q1"`
	Median      float64 `json:"median"`
	Q3          float64 `json:"q3"`
	Max         float64 `json:"max"`
}

// 箱ひげ図で扱える指標とグループ軸です。
const (
	MetricAvgFPS     = "avg_fps"
	MetricAvgWatts   = "avg_watts"
	MetricFPSPerWatt = "fps_per_watt"

	GroupByGeneration   = "generation"
	GroupByArchitecture = "architecture"
	GroupByCPU          = "cpu"
)

// BoxplotStats は指定の指標・グループ軸で五数要約の一覧を返します。
// 指標値を持たないサンプル（消費電力なしなど）はそのグループから除外します。
func BoxplotStats(dataset *models.Dataset, metric, groupBy string) ([]BoxplotSeries, error) {
	metricOf, err := metricExtractor(metric)
	if err != nil {
		return nil, err
	}
	groupOf, less, err := groupExtractor(groupBy)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]float64)
	for i := range dataset.Results {
		r := &dataset.Results[i]
		group, ok := groupOf(r)
		if !ok {
			continue
		}
		value, ok := metricOf(r)
		if !ok {
			continue
		}
		grouped[group] = append(grouped[group], value)
	}

	groups := make([]string, 0, len(grouped))
	for g := range grouped {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return less(groups[i], groups[j]) })

	series := make([]BoxplotSeries, 0, len(groups))
	for _, g := range groups {
		values := grouped[g]
		sort.Float64s(values)
		series = append(series, BoxplotSeries{
			Group:       g,
			SampleCount: len(values),
			Min:         values[0],
			Q1:          quantile(values, 0.25),
			Median:      quantile(values, 0.5),
			Q3:          quantile(values, 0.75),
			Max:         values[len(values)-1],
		})
	}
	return series, nil
}

func metricExtractor(metric string) (func(*models.BenchmarkResult) (float64, bool), error) {
	switch metric {
	case MetricAvgFPS:
		return func(r *models.BenchmarkResult) (float64, bool) {
			return r.AvgFPS, true
		}, nil
	case MetricAvgWatts:
		return func(r *models.BenchmarkResult) (float64, bool) {
			if r.AvgWatts == nil {
				return 0, false
			}
			return *r.AvgWatts, true
		}, nil
	case MetricFPSPerWatt:
		return func(r *models.BenchmarkResult) (float64, bool) {
			if r.FPSPerWatt == nil {
				return 0, false
			}
			return *r.FPSPerWatt, true
		}, nil
	default:
		return nil, fmt.Errorf("unknown boxplot metric: %q", metric)
	}
}

func groupExtractor(groupBy string) (func(*models.BenchmarkResult) (string, bool), func(a, b string) bool, error) {
	switch groupBy {
	case GroupByGeneration:
		return func(r *models.BenchmarkResult) (string, bool) {
			if r.CPUGeneration == nil {
				return "", false
			}
			return strconv.Itoa(*r.CPUGeneration), true
		}, compareNumericGroups, nil
	case GroupByArchitecture:
		return func(r *models.BenchmarkResult) (string, bool) {
			if r.Architecture == nil {
				return "", false
			}
			return *r.Architecture, true
		}, func(a, b string) bool { return a < b }, nil
	case GroupByCPU:
		return func(r *models.BenchmarkResult) (string, bool) {
			return r.CPURaw, true
		}, func(a, b string) bool { return a < b }, nil
	default:
		return nil, nil, fmt.Errorf("unknown boxplot grouping: %q", groupBy)
	}
}

// quantile は昇順ソート済みの values に対する線形補間の分位点です。
func quantile(values []float64, q float64) float64 {
	if len(values) == 1 {
		return values[0]
	}
	pos := q * float64(len(values)-1)
	lower := int(pos)
	upper := lower + 1
	if upper >= len(values) {
		return values[lower]
	}
	frac := pos - float64(lower)
	return values[lower]*(1-frac) + values[upper]*frac
}

func groupStats(results []models.BenchmarkResult, groupOf func(*models.BenchmarkResult) (string, bool), less func(a, b string) bool) []GroupStats {
	type acc struct {
		cpus       map[string]struct{}
		count      int
		fpsSum     float64
		wattsSum   float64
		wattsCount int
		effSum     float64
		effCount   int
	}
	grouped := make(map[string]*acc)
	for i := range results {
		r := &results[i]
		group, ok := groupOf(r)
		if !ok {
			continue
		}
		a, exists := grouped[group]
		if !exists {
			a = &acc{cpus: make(map[string]struct{})}
			grouped[group] = a
		}
		a.cpus[r.CPURaw] = struct{}{}
		a.count++
		a.fpsSum += r.AvgFPS
		if r.AvgWatts != nil {
			a.wattsSum += *r.AvgWatts
			a.wattsCount++
		}
		if r.FPSPerWatt != nil {
			a.effSum += *r.FPSPerWatt
			a.effCount++
		}
	}

	groups := make([]string, 0, len(grouped))
	for g := range grouped {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return less(groups[i], groups[j]) })

	stats := make([]GroupStats, 0, len(groups))
	for _, g := range groups {
		a := grouped[g]
		stat := GroupStats{
			Group:       g,
			ResultCount: a.count,
			UniqueCPUs:  len(a.cpus),
			AvgFPS:      a.fpsSum / float64(a.count),
		}
		if a.wattsCount > 0 {
			avg := a.wattsSum / float64(a.wattsCount)
			stat.AvgWatts = &avg
		}
		if a.effCount > 0 {
			avg := a.effSum / float64(a.effCount)
			stat.AvgFPSPerWatt = &avg
		}
		stats = append(stats, stat)
	}
	return stats
}

// compareNumericGroups は数値文字列のグループを数値として比較します。
func compareNumericGroups(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}

func sortedStrings(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func sortedInts(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

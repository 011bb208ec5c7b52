package scoring

import (
	"testing"

	"github.com/quicksync-community/benchmark-backend/internal/models"
)

func genResult(cpu string, generation int, arch, test string, fps float64, watts *float64) models.BenchmarkResult {
	r := models.BenchmarkResult{
		CPURaw:        cpu,
		CPUGeneration: &generation,
		Architecture:  &arch,
		TestName:      test,
		TestFile:      "file",
		AvgFPS:        fps,
		AvgWatts:      watts,
		Vendor:        models.VendorIntel,
	}
	if watts != nil && *watts > 0 {
		e := fps / *watts
		r.FPSPerWatt = &e
	}
	return r
}

func watts(v float64) *float64 { return &v }

// TestFilterResults はフィルタ条件の組み合わせをテストします。
func TestFilterResults(t *testing.T) {
	results := []models.BenchmarkResult{
		genResult("cpu-a", 8, "Coffee Lake", "h264_1080p", 70, watts(9)),
		genResult("cpu-b", 12, "Alder Lake", "h264_1080p", 90, watts(3)),
		genResult("cpu-b", 12, "Alder Lake", "hevc_1080p", 80, watts(4)),
	}

	gen12 := 12
	filtered := FilterResults(results, FilterOptions{Generation: &gen12})
	if len(filtered) != 2 {
		t.Errorf("generation filter: got %d, expected 2", len(filtered))
	}

	filtered = FilterResults(results, FilterOptions{Architecture: "Coffee Lake"})
	if len(filtered) != 1 {
		t.Errorf("architecture filter: got %d, expected 1", len(filtered))
	}

	filtered = FilterResults(results, FilterOptions{Generation: &gen12, TestName: "hevc_1080p"})
	if len(filtered) != 1 {
		t.Errorf("combined filter: got %d, expected 1", len(filtered))
	}

	filtered = FilterResults(results, FilterOptions{Vendor: "nvidia"})
	if len(filtered) != 0 {
		t.Errorf("vendor filter: got %d, expected 0", len(filtered))
	}

	// ゼロ値のフィルタは全件通す
	filtered = FilterResults(results, FilterOptions{})
	if len(filtered) != 3 {
		t.Errorf("empty filter: got %d, expected 3", len(filtered))
	}
}

// TestCollectFilters はデータセットからのフィルタ選択肢収集をテストします。
func TestCollectFilters(t *testing.T) {
	dataset := &models.Dataset{
		Results: []models.BenchmarkResult{
			genResult("cpu-a", 8, "Coffee Lake", "h264_1080p", 70, nil),
			genResult("cpu-b", 12, "Alder Lake", "hevc_1080p", 90, nil),
		},
	}

	filters := CollectFilters(dataset)
	if len(filters.Generations) != 2 || filters.Generations[0] != 8 || filters.Generations[1] != 12 {
		t.Errorf("Generations = %v, expected [8 12]", filters.Generations)
	}
	if len(filters.Architectures) != 2 {
		t.Errorf("Architectures = %v, expected 2 entries", filters.Architectures)
	}
	if len(filters.Tests) != 2 {
		t.Errorf("Tests = %v, expected 2 entries", filters.Tests)
	}
	if len(filters.Vendors) != 1 || filters.Vendors[0] != "intel" {
		t.Errorf("Vendors = %v, expected [intel]", filters.Vendors)
	}
}

// TestGenerationStats は世代別集計の並び順と平均値をテストします。
func TestGenerationStats(t *testing.T) {
	dataset := &models.Dataset{
		Results: []models.BenchmarkResult{
			genResult("cpu-12a", 12, "Alder Lake", "h264_1080p", 80, watts(4)),
			genResult("cpu-12b", 12, "Alder Lake", "h264_1080p", 100, watts(2)),
			genResult("cpu-8", 8, "Coffee Lake", "h264_1080p", 70, nil),
		},
	}

	stats := GenerationStats(dataset)
	if len(stats) != 2 {
		t.Fatalf("len(stats) = %d, expected 2", len(stats))
	}
	// 数値として昇順（8が先）
	if stats[0].Group != "8" || stats[1].Group != "12" {
		t.Errorf("group order = [%s %s], expected [8 12]", stats[0].Group, stats[1].Group)
	}

	gen12 := stats[1]
	if gen12.ResultCount != 2 {
		t.Errorf("gen12 ResultCount = %d, expected 2", gen12.ResultCount)
	}
	if gen12.UniqueCPUs != 2 {
		t.Errorf("gen12 UniqueCPUs = %d, expected 2", gen12.UniqueCPUs)
	}
	if gen12.AvgFPS != 90 {
		t.Errorf("gen12 AvgFPS = %f, expected 90", gen12.AvgFPS)
	}
	if gen12.AvgWatts == nil || *gen12.AvgWatts != 3 {
		t.Errorf("gen12 AvgWatts = %v, expected 3", gen12.AvgWatts)
	}

	gen8 := stats[0]
	if gen8.AvgWatts != nil {
		t.Errorf("gen8 AvgWatts = %v, expected nil (no power samples)", *gen8.AvgWatts)
	}
}

// TestBoxplotStats は五数要約の計算をテストします。
func TestBoxplotStats(t *testing.T) {
	dataset := &models.Dataset{
		Results: []models.BenchmarkResult{
			genResult("a", 12, "Alder Lake", "t", 10, nil),
			genResult("b", 12, "Alder Lake", "t", 20, nil),
			genResult("c", 12, "Alder Lake", "t", 30, nil),
			genResult("d", 12, "Alder Lake", "t", 40, nil),
			genResult("e", 12, "Alder Lake", "t", 50, nil),
		},
	}

	series, err := BoxplotStats(dataset, MetricAvgFPS, GroupByGeneration)
	if err != nil {
		t.Fatalf("BoxplotStats failed: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("len(series) = %d, expected 1", len(series))
	}

	s := series[0]
	if s.Group != "12" || s.SampleCount != 5 {
		t.Errorf("series = %+v", s)
	}
	if s.Min != 10 || s.Max != 50 {
		t.Errorf("Min/Max = %f/%f, expected 10/50", s.Min, s.Max)
	}
	if s.Median != 30 {
		t.Errorf("Median = %f, expected 30", s.Median)
	}
	if s.Q1 != 20 || s.Q3 != 40 {
		t.Errorf("Q1/Q3 = %f/%f, expected 20/40", s.Q1, s.Q3)
	}
}

// TestBoxplotStats_MissingMetricSamples は指標値を持たないサンプルが
// 除外されることをテストします。
func TestBoxplotStats_MissingMetricSamples(t *testing.T) {
	dataset := &models.Dataset{
		Results: []models.BenchmarkResult{
			genResult("a", 12, "Alder Lake", "t", 10, watts(5)),
			genResult("b", 12, "Alder Lake", "t", 20, nil), // 消費電力なし
		},
	}

	series, err := BoxplotStats(dataset, MetricAvgWatts, GroupByGeneration)
	if err != nil {
		t.Fatalf("BoxplotStats failed: %v", err)
	}
	if len(series) != 1 || series[0].SampleCount != 1 {
		t.Fatalf("expected 1 series with 1 sample, got %+v", series)
	}
}

// TestBoxplotStats_InvalidArgs は未知の指標・グループ軸でエラーを返すことを
// テストします。
func TestBoxplotStats_InvalidArgs(t *testing.T) {
	dataset := &models.Dataset{}
	if _, err := BoxplotStats(dataset, "nope", GroupByGeneration); err == nil {
		t.Error("expected error for unknown metric")
	}
	if _, err := BoxplotStats(dataset, MetricAvgFPS, "nope"); err == nil {
		t.Error("expected error for unknown grouping")
	}
}

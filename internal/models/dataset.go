package models

import (
	"time"
)

// DatasetMeta は results から毎回再計算される集計カウンタです。
// 手動で更新してはいけません（Write 時に必ず再計算されます）。
type DatasetMeta struct {
	TotalResults       int `json:"totalResults"`
	UniqueCPUs         int `json:"uniqueCpus"`
	ArchitecturesCount int `json:"architecturesCount"`
	UniqueTests        int `json:"uniqueTests"`
}

// ArchitectureInfo はCPUアーキテクチャ判定ルールのメタデータです。
// リスト内の順序がそのまま判定の優先順位になります（先勝ち）。
type ArchitectureInfo struct {
	ID           int    `json:"id"`
	Pattern      string `json:"pattern"`
	Architecture string `json:"architecture"`
	Codename     string `json:"codename"`
	ReleaseYear  int    `json:"release_year"`
	SortOrder    int    `json:"sort_order"`
	Vendor       Vendor `json:"vendor"`
}

// CPUFeatures はハードウェア単位の機能フラグです（例: ECCサポート）。
type CPUFeatures struct {
	ECCSupport bool `json:"ecc_support"`
}

// Dataset は永続化される単一の共有データセットオブジェクトです。
// 書き込みは必ずアドバイザリロックで直列化されます。
type Dataset struct {
	Version            int                    `json:"version"`
	LastUpdated        time.Time              `json:"lastUpdated"`
	Meta               DatasetMeta            `json:"meta"`
	Architectures      []ArchitectureInfo     `json:"architectures"`
	Results            []BenchmarkResult      `json:"results"`
	ConcurrencyResults []ConcurrencyResult    `json:"concurrencyResults"`
	CPUFeatures        map[string]CPUFeatures `json:"cpuFeatures"`
}

// RecomputeMeta は results リストから集計カウンタを再計算します。
func (d *Dataset) RecomputeMeta() {
	cpus := make(map[string]struct{})
	archs := make(map[string]struct{})
	tests := make(map[string]struct{})
	for _, r := range d.Results {
		cpus[r.CPURaw] = struct{}{}
		if r.Architecture != nil && *r.Architecture != "" {
			archs[*r.Architecture] = struct{}{}
		}
		tests[r.TestName] = struct{}{}
	}
	d.Meta = DatasetMeta{
		TotalResults:       len(d.Results),
		UniqueCPUs:         len(cpus),
		ArchitecturesCount: len(archs),
		UniqueTests:        len(tests),
	}
}

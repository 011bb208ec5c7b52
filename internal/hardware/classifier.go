package hardware

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/quicksync-community/benchmark-backend/internal/models"
)

// Classification はハードウェア識別の結果です。判定できなかったフィールドは
// nil のまま返します（分類自体は決して失敗しません）。nil のアーキテクチャを
// 投稿拒否にするかどうかは呼び出し側のポリシーが決めます。
type Classification struct {
	Brand        *string
	Model        *string
	Generation   *int
	Architecture *string
}

var (
	freqSuffix    = regexp.MustCompile(`\s*@\s*\d+(?:\.\d+)?\s*[GM]Hz`)
	trademarkMark = regexp.MustCompile(`\((?:R|TM|r|tm)\)`)
	cpuToken      = regexp.MustCompile(`\bCPU\b`)
	multiSpace    = regexp.MustCompile(`\s+`)

	cpuBrandPattern  = regexp.MustCompile(`(i[3579]|Ultra [3579])`)
	legacyModel      = regexp.MustCompile(`i[3579]-([0-9A-Za-z]+)`)
	ultraModel       = regexp.MustCompile(`Ultra [3579] (\d+[A-Z]?)`)
	modelNumber      = regexp.MustCompile(`\d{4,5}`)
	nvidiaKeywords   = regexp.MustCompile(`(?i)NVIDIA|GeForce|RTX|GTX|Quadro`)
	amdKeywords      = regexp.MustCompile(`(?i)\bAMD\b|Radeon|Ryzen|EPYC|Threadripper`)
	arcToken         = regexp.MustCompile(`(?i)\bArc\b`)
)

// Normalize は周波数サフィックス（"@ 3.90GHz" など）や商標マーク、
// 単独の "CPU" トークンを取り除き、空白を畳み込んだ文字列を返します。
// 決定的な変換であり、失敗することはありません。
func Normalize(raw string) string {
	s := freqSuffix.ReplaceAllString(raw, "")
	s = trademarkMark.ReplaceAllString(s, "")
	s = cpuToken.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// DetectVendor はキーワードスキャンでベンダーを判定します。
// NVIDIA系キーワードがなければAMD系、どちらもなければ intel です。
func DetectVendor(s string) models.Vendor {
	if nvidiaKeywords.MatchString(s) {
		return models.VendorNvidia
	}
	if amdKeywords.MatchString(s) {
		return models.VendorAMD
	}
	return models.VendorIntel
}

// IsBlocked は文字列が仮想化環境のシグネチャにマッチするかを返します。
// true の場合、呼び出し側は投稿全体を拒否しなければなりません。
func IsBlocked(s string) bool {
	for _, p := range blockedPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// Classify はハードウェア文字列を brand/model/generation/architecture に
// 分類します。ベンダーごとに分岐し、マッチしなかったフィールドは nil に
// なります。エラーは返しません。
func Classify(raw string, vendor models.Vendor) Classification {
	normalized := Normalize(raw)

	if vendor == models.VendorNvidia {
		return classifyNvidia(normalized)
	}
	if arcToken.MatchString(normalized) {
		return classifyArc(normalized)
	}
	return classifyCPU(normalized)
}

// classifyNvidia はディスクリートGPUのティアカスケードです。
// 新しい世代のティアから順にチェックし、最初にマッチしたティアが
// 世代とアーキテクチャを確定します。
func classifyNvidia(s string) Classification {
	for _, tier := range nvidiaTiers {
		if m := tier.pattern.FindStringSubmatch(s); m != nil {
			brand := "RTX"
			if strings.HasPrefix(tier.pattern.String(), "GTX") {
				brand = "GTX"
			}
			g := tier.generation
			arch := tier.architecture
			return Classification{
				Brand:        &brand,
				Model:        &m[1],
				Generation:   &g,
				Architecture: &arch,
			}
		}
	}
	// フォールバック: 3〜4桁のモデル番号のみ抽出
	brand := "GeForce"
	c := Classification{Brand: &brand}
	if m := nvidiaFallbackModel.FindStringSubmatch(s); m != nil {
		c.Model = &m[1]
	}
	return c
}

// classifyArc はIntel ArcのAシリーズ（Alchemist）とBシリーズ（Battlemage）を
// モデル番号の文字プレフィックスで見分けます。どちらにもマッチしない
// Arc 文字列は brand="Arc" のままモデル・世代なしで返します。
func classifyArc(s string) Classification {
	brand := "Arc"
	if m := arcASeries.FindStringSubmatch(s); m != nil {
		g := 1
		arch := "Alchemist"
		return Classification{Brand: &brand, Model: &m[1], Generation: &g, Architecture: &arch}
	}
	if m := arcBSeries.FindStringSubmatch(s); m != nil {
		g := 2
		arch := "Battlemage"
		return Classification{Brand: &brand, Model: &m[1], Generation: &g, Architecture: &arch}
	}
	arch := "Arc"
	return Classification{Brand: &brand, Architecture: &arch}
}

// classifyCPU はIntel CPU（デフォルトブランチ）の分類です。
func classifyCPU(s string) Classification {
	var c Classification

	if m := cpuBrandPattern.FindStringSubmatch(s); m != nil {
		c.Brand = &m[1]
	}

	// モデル番号: レガシー命名（ハイフン区切り）を先に、次に Ultra 命名
	if m := legacyModel.FindStringSubmatch(s); m != nil {
		c.Model = &m[1]
		// 世代はレガシー命名のみ: 4〜5桁モデル番号の先頭（末尾3桁を除く）
		if num := modelNumber.FindString(m[1]); num != "" && len(num) >= 4 {
			if g, err := strconv.Atoi(num[:len(num)-3]); err == nil {
				c.Generation = &g
			}
		}
	} else if m := ultraModel.FindStringSubmatch(s); m != nil {
		c.Model = &m[1]
	}

	if p := LookupArchitecture(s); p != nil {
		arch := p.Architecture
		c.Architecture = &arch
		if c.Generation == nil && p.Generation != nil {
			g := *p.Generation
			c.Generation = &g
		}
	}
	return c
}

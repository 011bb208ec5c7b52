package hardware

import (
	"regexp"

	"github.com/quicksync-community/benchmark-backend/internal/models"
)

// ArchPattern はCPUアーキテクチャ判定ルール1件です。
// cpuPatterns 内の順序がそのまま優先順位になります（先にマッチしたルールが勝ち）。
type ArchPattern struct {
	Pattern      *regexp.Regexp
	Architecture string
	Codename     string
	ReleaseYear  int
	SortOrder    int
	// Generation はルールから世代が確定する場合のみ設定されます。
	Generation *int
}

func gen(n int) *int { return &n }

// cpuPatterns はIntel CPUのアーキテクチャ判定テーブルです。
// 世代が特定できる具体的なパターンを先頭に、ファミリ単位のフォールバックを
// 末尾に置きます。順序を変えると判定結果が変わるため注意してください。
var cpuPatterns = []ArchPattern{
	// Core シリーズ（具体的なパターンを先にチェック）
	{regexp.MustCompile(`i[3579]-2\d{3}`), "Sandy Bridge", "SNB", 2011, 20, gen(2)},
	{regexp.MustCompile(`i[3579]-3\d{3}`), "Ivy Bridge", "IVB", 2012, 30, gen(3)},
	{regexp.MustCompile(`i[3579]-4\d{3}`), "Haswell", "HSW", 2013, 40, gen(4)},
	{regexp.MustCompile(`i[3579]-5\d{3}`), "Broadwell", "BDW", 2014, 50, gen(5)},
	{regexp.MustCompile(`i[3579]-6\d{3}`), "Skylake", "SKL", 2015, 60, gen(6)},
	{regexp.MustCompile(`i[3579]-7\d{3}`), "Kaby Lake", "KBL", 2017, 70, gen(7)},
	{regexp.MustCompile(`i[3579]-8\d{3}`), "Coffee Lake", "CFL", 2018, 80, gen(8)},
	{regexp.MustCompile(`i[3579]-9\d{3}`), "Coffee Lake Refresh", "CFL-R", 2019, 90, gen(9)},
	// G サフィックス（モバイル）を無印より先にチェック
	{regexp.MustCompile(`i[3579]-10\d{2}G`), "Ice Lake", "ICL", 2019, 95, gen(10)},
	{regexp.MustCompile(`i[3579]-10\d{3}[A-Z]?$`), "Comet Lake", "CML", 2020, 100, gen(10)},
	{regexp.MustCompile(`i[3579]-11\d{2}G`), "Tiger Lake", "TGL", 2020, 105, gen(11)},
	{regexp.MustCompile(`i[3579]-11\d{3}`), "Rocket Lake", "RKL", 2021, 110, gen(11)},
	{regexp.MustCompile(`i[3579]-12\d{3}`), "Alder Lake", "ADL", 2021, 120, gen(12)},
	{regexp.MustCompile(`i[3579]-13\d{3}`), "Raptor Lake", "RPL", 2022, 130, gen(13)},
	{regexp.MustCompile(`i[3579]-14\d{3}`), "Raptor Lake Refresh", "RPL-R", 2023, 140, gen(14)},

	// Ultra シリーズ（新ネーミング、世代はシリーズ番号）
	{regexp.MustCompile(`Ultra [3579] 1\d{2}[HUP]?`), "Meteor Lake", "MTL", 2023, 150, gen(1)},
	{regexp.MustCompile(`Ultra [3579] 2\d{2}[KFS]`), "Arrow Lake", "ARL", 2024, 200, gen(2)},
	{regexp.MustCompile(`Ultra [3579] 2\d{2}[VU]`), "Lunar Lake", "LNL", 2024, 210, gen(2)},

	// Xeon E3（バージョンサフィックス付きを汎用E3より先にチェック）
	{regexp.MustCompile(`Xeon.*E3-\d{4}\s*v6`), "Kaby Lake", "KBL", 2017, 71, gen(7)},
	{regexp.MustCompile(`Xeon.*E3-\d{4}\s*v5`), "Skylake", "SKL", 2015, 61, gen(6)},
	{regexp.MustCompile(`Xeon.*E3-\d{4}\s*v4`), "Broadwell", "BDW", 2014, 51, gen(5)},
	{regexp.MustCompile(`Xeon.*E3-\d{4}\s*v3`), "Haswell", "HSW", 2013, 41, gen(4)},
	{regexp.MustCompile(`Xeon.*E3-1[23]\d{2}`), "Xeon E3", "Various", 2015, 55, nil},

	// Xeon E シリーズ
	{regexp.MustCompile(`Xeon.*E-2[123]\d{2}`), "Xeon E", "CFL", 2018, 85, gen(8)},
	{regexp.MustCompile(`E-2[123]\d{2}G?`), "Xeon E", "CFL", 2018, 85, gen(8)}, // "Xeon" プレフィックスなしの表記

	// Pentium / Celeron
	{regexp.MustCompile(`Pentium.*G[567]\d{3}`), "Pentium Gold", "CFL", 2018, 82, gen(8)},
	{regexp.MustCompile(`G4\d{3}T?`), "Coffee Lake", "CFL", 2018, 81, gen(8)}, // G4900T など
	{regexp.MustCompile(`Celeron.*G[4567]\d{3}`), "Celeron", "Various", 2017, 65, nil},

	// N / J シリーズ
	{regexp.MustCompile(`N[456]\d{3}`), "Jasper Lake", "JSL", 2021, 112, nil}, // N5105, N5095
	{regexp.MustCompile(`N[12]\d{2}`), "Alder Lake-N", "ADL-N", 2023, 125, gen(12)}, // N100, N200
	{regexp.MustCompile(`N\d{2}$`), "Alder Lake-N", "ADL-N", 2023, 125, gen(12)},    // N95, N97
	{regexp.MustCompile(`i3-N\d{3}`), "Alder Lake-N", "ADL-N", 2023, 125, gen(12)},  // i3-N305
	{regexp.MustCompile(`J[456]\d{3}`), "Gemini Lake", "GLK", 2017, 66, nil},        // J4105, J5005

	// Core M シリーズ
	{regexp.MustCompile(`m3-\d{4}Y`), "Amber Lake", "AML", 2018, 83, gen(8)},
	{regexp.MustCompile(`M-5Y\d{2}`), "Broadwell", "BDW", 2014, 52, gen(5)},

	// Pentium/Celeron Silver
	{regexp.MustCompile(`Pentium.*Silver`), "Gemini Lake", "GLK", 2017, 66, nil},
	{regexp.MustCompile(`Silver.*\d{4}`), "Gemini Lake", "GLK", 2017, 66, nil},

	// Arc GPU（CPU文字列側に現れた場合のフォールバック）
	{regexp.MustCompile(`Arc A\d{3}`), "Arc Alchemist", "ACM", 2022, 300, nil},

	// Intel Processor N シリーズ
	{regexp.MustCompile(`Processor N\d{3}`), "Alder Lake-N", "ADL-N", 2023, 125, gen(12)},
}

// gpuTier はNVIDIA GPUのティア判定ルール1件です。世代とアーキテクチャは
// ティアのマッチによって確定します。
type gpuTier struct {
	pattern      *regexp.Regexp
	generation   int
	architecture string
}

// nvidiaTiers は新しい世代から順にチェックされます（先勝ち）。
var nvidiaTiers = []gpuTier{
	{regexp.MustCompile(`RTX\s*(40\d{2})`), 40, "Ada Lovelace"},
	{regexp.MustCompile(`RTX\s*(A\d{3,4})`), 30, "Ampere"},
	{regexp.MustCompile(`RTX\s*(30\d{2})`), 30, "Ampere"},
	{regexp.MustCompile(`RTX\s*(20\d{2})`), 20, "Turing"},
	{regexp.MustCompile(`GTX\s*(16\d{2})`), 16, "Turing"},
	{regexp.MustCompile(`GTX\s*(10\d{2})`), 10, "Pascal"},
	{regexp.MustCompile(`GTX\s*(9\d{2})`), 9, "Maxwell"},
}

// nvidiaFallbackModel は全ティアにマッチしなかった場合のモデル番号抽出用です。
var nvidiaFallbackModel = regexp.MustCompile(`\b(\d{3,4})\b`)

var (
	arcASeries = regexp.MustCompile(`Arc\s*(A\d{3})`)
	arcBSeries = regexp.MustCompile(`Arc\s*(B\d{3})`)
)

// blockedPatterns は仮想化環境のシグネチャです。マッチした投稿は
// 取り込みを全面的に拒否します。
var blockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)QEMU`),
	regexp.MustCompile(`(?i)\bKVM\b`),
	regexp.MustCompile(`(?i)VMware`),
	regexp.MustCompile(`(?i)VirtualBox`),
	regexp.MustCompile(`(?i)Hyper-V`),
	regexp.MustCompile(`(?i)\bXen\b`),
	regexp.MustCompile(`(?i)Virtual CPU`),
	regexp.MustCompile(`(?i)Virtual Machine`),
	regexp.MustCompile(`(?i)Bochs`),
	regexp.MustCompile(`(?i)Parallels`),
}

// LookupArchitecture は判定テーブルを上から順にスキャンし、最初に
// マッチしたルールを返します。マッチしない場合は nil を返します。
func LookupArchitecture(s string) *ArchPattern {
	for i := range cpuPatterns {
		if cpuPatterns[i].Pattern.MatchString(s) {
			return &cpuPatterns[i]
		}
	}
	return nil
}

// ArchitectureTable はデータセットに同梱するアーキテクチャメタデータを返します。
func ArchitectureTable() []models.ArchitectureInfo {
	infos := make([]models.ArchitectureInfo, 0, len(cpuPatterns))
	for i, p := range cpuPatterns {
		infos = append(infos, models.ArchitectureInfo{
			ID:           i + 1,
			Pattern:      p.Pattern.String(),
			Architecture: p.Architecture,
			Codename:     p.Codename,
			ReleaseYear:  p.ReleaseYear,
			SortOrder:    p.SortOrder,
			Vendor:       models.VendorIntel,
		})
	}
	return infos
}

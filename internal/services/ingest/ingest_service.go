// Package ingest はベンチマーク結果の取り込みパイプラインです。
// パース済みレコードに対するポリシーチェック、重複排除、ロック保護下での
// データセット追記までを担当します。
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/quicksync-community/benchmark-backend/internal/database"
	"github.com/quicksync-community/benchmark-backend/internal/hardware"
	"github.com/quicksync-community/benchmark-backend/internal/models"
	"github.com/quicksync-community/benchmark-backend/internal/parser"
	"github.com/quicksync-community/benchmark-backend/internal/services/captcha"
)

// ポリシー違反はすべて永続化の前に投稿全体を拒否します。
var (
	// ErrNoValidResults は有効な結果行が1行もない場合のエラーです。
	ErrNoValidResults = errors.New("no valid benchmark result lines found in submission")
	// ErrBlockedHardware は仮想化環境からの投稿を拒否するエラーです。
	ErrBlockedHardware = errors.New("virtualized or hypervisor hardware detected; benchmarks must run on bare metal")
	// ErrUnknownHardware はアーキテクチャを特定できなかった場合のエラーです。
	ErrUnknownHardware = errors.New("could not identify hardware architecture from the submitted CPU string")
	// ErrImplausiblePower は消費電力の読み値が妥当性レンジ外だった場合のエラーです。
	ErrImplausiblePower = errors.New("power reading is outside the plausible range; check your power meter")
	// ErrCaptchaFailed はCAPTCHA検証に失敗した場合のエラーです。
	ErrCaptchaFailed = errors.New("captcha verification failed")
)

// fps/W がこの値を超える結果は計測異常としてフラグされます
// （実測の最高効率より十分高いハードキャップ）。
const efficiencyOutlierCap = 400.0

// Outcome は投稿処理の結果です。既投稿者の未確認投稿は エラーではなく
// NeedsConfirmation で表現されます（例外による制御フローを避けるため）。
type Outcome struct {
	Added             int
	Skipped           int
	NeedsConfirmation bool
	ExistingCount     int
	DatasetVersion    int
}

// DatasetListener はデータセット更新の通知先です（ライブフィードなど）。
type DatasetListener func(version, totalResults int)

// Service はベンチマーク投稿の取り込みサービスです。
type Service struct {
	datasets database.DatasetRepository
	pending  database.PendingRepository
	captcha  captcha.Verifier
	listener DatasetListener
}

// NewService は新しい取り込みサービスを作成します。captcha と listener は
// nil でも構いません（それぞれ検証スキップ・通知なしになります）。
func NewService(datasets database.DatasetRepository, pending database.PendingRepository, verifier captcha.Verifier) *Service {
	return &Service{
		datasets: datasets,
		pending:  pending,
		captcha:  verifier,
	}
}

// SetListener はデータセット更新の通知先を登録します。
func (s *Service) SetListener(l DatasetListener) {
	s.listener = l
}

// SubmitResults は結果投稿の本体です。ポリシーチェックを通過した候補を
// ロック保護下で「ハッシュ確認 → ID採番 → 追記」し、1件でも追加されたら
// データセットを書き戻します。
func (s *Service) SubmitResults(ctx context.Context, body string, submitterID *string, confirmed bool) (*Outcome, error) {
	candidates := parser.ParseResultLines(body)
	if len(candidates) == 0 {
		return nil, ErrNoValidResults
	}
	if err := checkPolicy(candidates); err != nil {
		return nil, err
	}

	outcome := &Outcome{}
	totalResults := 0
	err := s.datasets.WithLock(ctx, func(ctx context.Context) error {
		dataset, err := s.datasets.Read(ctx)
		if err != nil {
			return err
		}

		// 同じ投稿者の既存結果がある場合は、確認済みフラグがない限り
		// コミットせずに既存件数を返す（ソフトな一意性チェック）
		if submitterID != nil && !confirmed {
			existing := countBySubmitter(dataset.Results, *submitterID)
			if existing > 0 {
				outcome.NeedsConfirmation = true
				outcome.ExistingCount = existing
				return nil
			}
		}

		nextID := database.NextResultID(dataset.Results)
		now := time.Now().UTC()
		for _, c := range candidates {
			if database.HashExists(dataset.Results, c.Result.ResultHash) {
				outcome.Skipped++
				continue
			}
			result := c.Result
			result.ID = nextID
			nextID++
			result.SubmittedAt = now
			result.SubmitterID = submitterID
			result.DataQualityFlags = dataQualityFlags(&result)
			dataset.Results = append(dataset.Results, result)
			outcome.Added++
		}

		if outcome.Added == 0 {
			return nil
		}
		if err := s.datasets.Write(ctx, dataset); err != nil {
			return err
		}
		outcome.DatasetVersion = dataset.Version
		totalResults = dataset.Meta.TotalResults
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome.Added > 0 {
		log.Printf("IngestService: %d件の結果を追加しました（スキップ: %d件、version: %d）",
			outcome.Added, outcome.Skipped, outcome.DatasetVersion)
		s.notify(outcome.DatasetVersion, totalResults)
	}
	return outcome, nil
}

// SubmitConcurrency は同時実行スケーリング結果の投稿です。
func (s *Service) SubmitConcurrency(ctx context.Context, body string, submitterID *string) (*Outcome, error) {
	candidates := parser.ParseConcurrencyLines(body)
	if len(candidates) == 0 {
		return nil, ErrNoValidResults
	}
	for _, c := range candidates {
		if hardware.IsBlocked(c.Result.CPURaw) {
			return nil, fmt.Errorf("%w: %s", ErrBlockedHardware, c.Result.CPURaw)
		}
		if c.Result.Architecture == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownHardware, c.Result.CPURaw)
		}
	}

	outcome := &Outcome{}
	totalResults := 0
	err := s.datasets.WithLock(ctx, func(ctx context.Context) error {
		dataset, err := s.datasets.Read(ctx)
		if err != nil {
			return err
		}

		nextID := database.NextConcurrencyID(dataset.ConcurrencyResults)
		now := time.Now().UTC()
		for _, c := range candidates {
			if database.ConcurrencyHashExists(dataset.ConcurrencyResults, c.Result.ResultHash) {
				outcome.Skipped++
				continue
			}
			result := c.Result
			result.ID = nextID
			nextID++
			result.SubmittedAt = now
			result.SubmitterID = submitterID
			dataset.ConcurrencyResults = append(dataset.ConcurrencyResults, result)
			outcome.Added++
		}

		if outcome.Added == 0 {
			return nil
		}
		if err := s.datasets.Write(ctx, dataset); err != nil {
			return err
		}
		outcome.DatasetVersion = dataset.Version
		totalResults = dataset.Meta.TotalResults
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome.Added > 0 {
		log.Printf("IngestService: %d件の同時実行結果を追加しました（version: %d）",
			outcome.Added, outcome.DatasetVersion)
		s.notify(outcome.DatasetVersion, totalResults)
	}
	return outcome, nil
}

// SubmitPending は投稿を確認待ちとして一時保存し、トークンを返します。
// ポリシーチェックはこの時点で行い、無効な投稿は保存前に拒否します。
func (s *Service) SubmitPending(ctx context.Context, body string, submitterID *string) (*models.PendingSubmission, error) {
	candidates := parser.ParseResultLines(body)
	if len(candidates) == 0 {
		return nil, ErrNoValidResults
	}
	if err := checkPolicy(candidates); err != nil {
		return nil, err
	}
	return s.pending.Create(ctx, body, submitterID)
}

// ConfirmPending はCAPTCHA検証を経て確認待ち投稿をコミットします。
// 投稿はちょうど一度だけ消費され、成功時に削除されます。
func (s *Service) ConfirmPending(ctx context.Context, token, captchaToken, remoteIP string) (*Outcome, error) {
	if s.captcha != nil {
		ok, err := s.captcha.Verify(ctx, captchaToken, remoteIP)
		if err != nil {
			return nil, fmt.Errorf("CAPTCHA検証リクエストに失敗しました: %w", err)
		}
		if !ok {
			return nil, ErrCaptchaFailed
		}
	}

	pendingSubmission, err := s.pending.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	outcome, err := s.SubmitResults(ctx, pendingSubmission.Body, pendingSubmission.SubmitterID, true)
	if err != nil {
		return nil, err
	}
	if err := s.pending.Delete(ctx, token); err != nil {
		log.Printf("IngestService: 確認済み投稿 %s の削除に失敗しました: %v", token, err)
	}
	return outcome, nil
}

// SetCPUFeatures はハードウェア機能フラグ（ECCサポートなど）をデータセットに
// マージします。既存のキーは上書きし、他のキーは保持します。更新後の
// データセットバージョンを返します。
func (s *Service) SetCPUFeatures(ctx context.Context, features map[string]models.CPUFeatures) (int, error) {
	if len(features) == 0 {
		return 0, errors.New("no cpu features to set")
	}

	version := 0
	err := s.datasets.WithLock(ctx, func(ctx context.Context) error {
		dataset, err := s.datasets.Read(ctx)
		if err != nil {
			return err
		}
		if dataset.CPUFeatures == nil {
			dataset.CPUFeatures = make(map[string]models.CPUFeatures, len(features))
		}
		for cpuRaw, f := range features {
			dataset.CPUFeatures[cpuRaw] = f
		}
		if err := s.datasets.Write(ctx, dataset); err != nil {
			return err
		}
		version = dataset.Version
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Printf("IngestService: %d件のCPU機能フラグを更新しました（version: %d）", len(features), version)
	return version, nil
}

// checkPolicy は投稿全体を拒否すべき条件を候補ごとに確認します。
func checkPolicy(candidates []parser.Candidate) error {
	for _, c := range candidates {
		if hardware.IsBlocked(c.Result.CPURaw) {
			return fmt.Errorf("%w: %s", ErrBlockedHardware, c.Result.CPURaw)
		}
		if c.WattsOutOfRange {
			return fmt.Errorf("%w (%s)", ErrImplausiblePower, c.Result.CPURaw)
		}
		if c.Result.Architecture == nil {
			return fmt.Errorf("%w: %s", ErrUnknownHardware, c.Result.CPURaw)
		}
	}
	return nil
}

// dataQualityFlags は計測異常の疑いを示すフラグを返します。
// 消費電力の下限チェックは取り込みポリシー側で拒否済みのため、ここでは
// 効率の外れ値とArrow Lakeの既知の電力計測問題だけを扱います。
func dataQualityFlags(r *models.BenchmarkResult) []string {
	var flags []string
	if r.FPSPerWatt != nil && *r.FPSPerWatt > efficiencyOutlierCap {
		flags = append(flags, "efficiency_outlier")
	}
	if r.Architecture != nil && *r.Architecture == "Arrow Lake" {
		flags = append(flags, "arrow_lake_power_issue")
	}
	return flags
}

func countBySubmitter(results []models.BenchmarkResult, submitterID string) int {
	count := 0
	for _, r := range results {
		if r.SubmitterID != nil && *r.SubmitterID == submitterID {
			count++
		}
	}
	return count
}

func (s *Service) notify(version, totalResults int) {
	if s.listener != nil {
		s.listener(version, totalResults)
	}
}

package logofetch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/minami/naraigoto/internal/model"
	"github.com/minami/naraigoto/internal/repository"
)

// LogoFetcherService はロゴ取得の実行インターフェース。
type LogoFetcherService interface {
	// Fetch は指定教室のロゴを取得し、結果をレコードに保存する。
	Fetch(ctx context.Context, rec *model.ProviderRecord) error
}

// listBatchSize は1サイクルで処理する教室数の上限。
const listBatchSize = 100

// Scheduler はロゴ取得のスケジューリングと並列制御を行う。
// ティッカーで取得対象の教室を取り出し、semaphoreパターンで
// 最大並列数を制御しながら取得を実行する。
type Scheduler struct {
	providerRepo   repository.ProviderRepository
	fetcher        LogoFetcherService
	logger         *slog.Logger
	refreshAfter   time.Duration
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値5を使用する。
func NewScheduler(
	providerRepo repository.ProviderRepository,
	fetcher LogoFetcherService,
	logger *slog.Logger,
	refreshAfter time.Duration,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	return &Scheduler{
		providerRepo:   providerRepo,
		fetcher:        fetcher,
		logger:         logger,
		refreshAfter:   refreshAfter,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("ロゴ取得スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("ロゴ取得サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ロゴ取得スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("ロゴ取得サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は取得対象の教室を1回取得し、並列でロゴ取得を実行する。
// semaphoreパターンで最大並列数を制御する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	// 取得対象の教室を取得（FOR UPDATE SKIP LOCKED）
	records, err := s.providerRepo.ListNeedingLogoFetch(ctx, s.refreshAfter, listBatchSize)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		s.logger.Info("ロゴ取得対象の教室はありません")
		return nil
	}

	s.logger.Info("ロゴ取得サイクルを開始します",
		slog.Int("provider_count", len(records)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, rec := range records {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(r *model.ProviderRecord) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.fetcher.Fetch(ctx, r); err != nil {
				s.logger.Error("ロゴ取得に失敗しました",
					slog.String("provider_id", r.ID),
					slog.String("website_url", r.WebsiteURL),
					slog.String("error", err.Error()),
				)
			}
		}(rec)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("ロゴ取得サイクルが完了しました",
		slog.Int("provider_count", len(records)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

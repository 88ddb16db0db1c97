package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shouni/go-ebook-store/pkg/store"
	"github.com/shouni/go-ebook-store/pkg/types"
)

const (
	// DefaultMaxConcurrency は、詳細ページ取得のデフォルトの最大同時実行数を定義します。
	DefaultMaxConcurrency = 4
	// DefaultRateInterval は、詳細ページ取得を開始する最小間隔です。
	DefaultRateInterval = 500 * time.Millisecond
)

// DetailGetter は、1件分の詳細ページを取得してレコードを更新する機能です。
// *store.Store がこれを満たします。
type DetailGetter interface {
	GetDetails(ctx context.Context, result *store.SearchResult) (bool, error)
}

// Scraper は複数レコードの詳細ページを処理するインターフェースです。
type Scraper interface {
	ClassifyInParallel(ctx context.Context, results []*store.SearchResult) []types.DetailResult
}

// ParallelScraper は Scraper インターフェースを実装する並列処理構造体です。
type ParallelScraper struct {
	details        DetailGetter
	maxConcurrency int           // 最大並列数を保持するフィールド
	limiter        *rate.Limiter // 取得開始間隔を制御するレートリミッター
}

// NewParallelScraper は ParallelScraper を初期化します。
// interval が 0 以下の場合はレート制限を行いません。
func NewParallelScraper(details DetailGetter, maxConcurrency int, interval time.Duration) *ParallelScraper {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &ParallelScraper{
		details:        details,
		maxConcurrency: maxConcurrency,
		limiter:        rate.NewLimiter(limit, 1),
	}
}

// ClassifyInParallel は各レコードの DRM 状態を並列に判定します。
// 結果は入力と同じ順序で返り、1件の失敗は他のレコードに影響しません。
// 各レコードはそれぞれ1つの goroutine だけが更新します。
func (s *ParallelScraper) ClassifyInParallel(ctx context.Context, results []*store.SearchResult) []types.DetailResult {
	out := make([]types.DetailResult, len(results))
	var wg sync.WaitGroup

	// バッファ付きチャネルをセマフォとして使用し、同時実行数を制限する
	semaphore := make(chan struct{}, s.maxConcurrency)

	for i, result := range results {
		out[i].Result = result

		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int, r *store.SearchResult) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := s.limiter.Wait(ctx); err != nil {
				out[i].Error = err
				return
			}

			ok, err := s.details.GetDetails(ctx, r)
			if err != nil {
				out[i].Error = fmt.Errorf("詳細ページの処理に失敗しました (識別子: %s): %w", r.DetailItem, err)
				return
			}
			out[i].Classified = ok
		}(i, result)
	}

	wg.Wait()
	return out
}

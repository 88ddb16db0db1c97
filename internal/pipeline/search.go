package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shouni/go-ebook-store/pkg/scraper"
	"github.com/shouni/go-ebook-store/pkg/store"
	"github.com/shouni/go-ebook-store/pkg/types"
)

// Options は検索パイプラインの設定です。
type Options struct {
	// MaxResults は Store.Search に渡す件数で、0 より大きい場合はその件数を読み出した時点で停止する。
	// Extractor 自体は件数で停止しないため、上限は読み出し側で適用する。
	MaxResults int
	// WithDetails が true の場合、各レコードの詳細ページから DRM 状態を判定する。
	WithDetails  bool
	Concurrency  int
	RateInterval time.Duration
}

// Searcher は検索と詳細取得を提供する機能です。*store.Store がこれを満たします。
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) (*store.ResultIterator, error)
	scraper.DetailGetter
}

// SearchWithDetails は、検索結果の抽出と (必要であれば) 詳細ページの判定を行うメインの処理パイプラインです。
// 抽出が途中で失敗した場合は、それまでのレコードを含めずにエラーを返します。
func SearchWithDetails(ctx context.Context, searcher Searcher, query string, opts Options) ([]types.DetailResult, error) {
	// 1. 検索結果ページの取得
	it, err := searcher.Search(ctx, query, opts.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("検索に失敗しました (検索語: %q): %w", query, err)
	}

	// 2. 必要な件数だけ読み出す
	var results []*store.SearchResult
	for r, err := range it.All() {
		if err != nil {
			return nil, fmt.Errorf("検索結果の抽出に失敗しました: %w", err)
		}
		results = append(results, r)
		if opts.MaxResults > 0 && len(results) >= opts.MaxResults {
			break
		}
	}
	log.Info().Str("query", query).Int("count", len(results)).Msg("検索結果を抽出しました")

	// 3. 詳細ページの判定
	if !opts.WithDetails {
		out := make([]types.DetailResult, len(results))
		for i, r := range results {
			out[i] = types.DetailResult{Result: r}
		}
		return out, nil
	}

	s := scraper.NewParallelScraper(searcher, opts.Concurrency, opts.RateInterval)
	out := s.ClassifyInParallel(ctx, results)
	for _, d := range out {
		if d.Error != nil {
			log.Warn().Err(d.Error).Str("detail_item", d.Result.DetailItem).Msg("DRM状態を判定できませんでした")
		}
	}
	return out, nil
}

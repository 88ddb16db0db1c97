package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shouni/go-ebook-store/internal/pipeline"
	"github.com/shouni/go-ebook-store/pkg/scraper"
	"github.com/shouni/go-ebook-store/pkg/store"
)

// コマンドラインフラグ変数を定義
var (
	maxResults    int
	withDetails   bool
	concurrency   int
	skipMalformed bool
	dumpHTMLPath  string
)

var searchCmd = &cobra.Command{
	Use:   "search [検索語...]",
	Short: "ストアを検索し、電子書籍版の検索結果を一覧表示します",
	Long: `指定した検索語でストアの検索結果ページを取得し、電子書籍版のレコードを抽出して表示します。
--details を指定すると、各レコードの詳細ページを並列に取得してDRMの状態を判定します。`,
	Args: cobra.MinimumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		s, err := GetGlobalStore()
		if err != nil {
			return err
		}

		// --skip-malformed と --dump-html は Store の組み立てに影響するため、ここで作り直す
		if skipMalformed || dumpHTMLPath != "" {
			var opts []store.Option
			if skipMalformed {
				opts = append(opts, store.WithExtractorOptions(store.WithSkipMalformed()))
			}
			if dumpHTMLPath != "" {
				f, err := os.Create(dumpHTMLPath)
				if err != nil {
					return fmt.Errorf("HTML出力ファイルの作成に失敗しました: %w", err)
				}
				defer f.Close()
				opts = append(opts, store.WithHTMLDump(f))
			}
			if s, err = rebuildStore(opts...); err != nil {
				return err
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), overallTimeout())
		defer cancel()

		log.Debug().Str("query", query).Str("catalog", s.Catalog().Name).Msg("検索を開始します")

		results, err := pipeline.SearchWithDetails(ctx, s, query, pipeline.Options{
			MaxResults:   maxResults,
			WithDetails:  withDetails,
			Concurrency:  concurrency,
			RateInterval: scraper.DefaultRateInterval,
		})
		if err != nil {
			return err
		}
		return writeResults(cmd.OutOrStdout(), results)
	},
}

// rebuildStore はグローバル設定に opts を追加した Store を生成します。
func rebuildStore(opts ...store.Option) (*store.Store, error) {
	catalog, err := resolveCatalog()
	if err != nil {
		return nil, err
	}
	fetcher, err := newFetcher()
	if err != nil {
		return nil, err
	}
	return store.NewStore(fetcher, append([]store.Option{store.WithCatalog(catalog)}, opts...)...)
}

func init() {
	searchCmd.Flags().IntVarP(&maxResults, "max-results", "n", 10, "表示する最大件数 (0 で制限なし)")
	searchCmd.Flags().BoolVarP(&withDetails, "details", "d", false, "詳細ページからDRMの状態を判定する")
	searchCmd.Flags().IntVarP(&concurrency, "concurrency", "c",
		scraper.DefaultMaxConcurrency,
		fmt.Sprintf("詳細ページ取得の最大並列実行数 (デフォルト: %d)", scraper.DefaultMaxConcurrency))
	searchCmd.Flags().BoolVar(&skipMalformed, "skip-malformed", false, "抽出できないレコードを読み飛ばす")
	searchCmd.Flags().StringVar(&dumpHTMLPath, "dump-html", "", "取得した検索結果HTMLを保存するファイル")
}

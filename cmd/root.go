package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"

	"github.com/shouni/go-ebook-store/pkg/browser"
	"github.com/shouni/go-ebook-store/pkg/cache"
	"github.com/shouni/go-ebook-store/pkg/httpclient"
	"github.com/shouni/go-ebook-store/pkg/store"
)

// --- グローバル定数 ---

const (
	appName           = "ebook-store"
	defaultTimeoutSec = 10 // 秒
	defaultMaxRetries = 3
	defaultCacheTTL   = 24 * time.Hour

	// DefaultOverallTimeout は --timeout が 0 の場合に使う全体処理のタイムアウトです。
	DefaultOverallTimeout = 60 * time.Second

	envCacheDir = "STORE_CACHE_DIR"
	envCatalog  = "STORE_CATALOG"
)

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	TimeoutSec  int           // --timeout タイムアウト
	MaxRetries  int           // --max-retries リトライ回数
	Catalog     string        // --catalog プリセット名
	CatalogFile string        // --catalog-file YAMLでの上書き
	CacheDir    string        // --cache-dir ディスクキャッシュの保存先 (空なら無効)
	CacheTTL    time.Duration // --cache-ttl ディスクキャッシュの有効期間
	NoCache     bool          // --no-cache キャッシュを使わない
	JSON        bool          // --json JSONで出力
}

var Flags AppFlags
var globalStore *store.Store

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
// 環境変数のデフォルト値を反映するため、フラグ定義の前に .env を読み込みます。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	_ = godotenv.Load()

	catalogDefault := os.Getenv(envCatalog)
	if catalogDefault == "" {
		catalogDefault = store.DefaultCatalog.Name
	}

	rootCmd.PersistentFlags().IntVar(&Flags.TimeoutSec, "timeout", defaultTimeoutSec, "HTTPリクエストのタイムアウト時間（秒）")
	rootCmd.PersistentFlags().IntVar(&Flags.MaxRetries, "max-retries", defaultMaxRetries, "HTTPリクエストのリトライ最大回数")
	rootCmd.PersistentFlags().StringVar(&Flags.Catalog, "catalog", catalogDefault,
		fmt.Sprintf("使用するストアのカタログ (%v)", store.CatalogNames()))
	rootCmd.PersistentFlags().StringVar(&Flags.CatalogFile, "catalog-file", "", "カタログを上書きするYAMLファイル")
	rootCmd.PersistentFlags().StringVar(&Flags.CacheDir, "cache-dir", os.Getenv(envCacheDir), "取得したページを保存するディレクトリ")
	rootCmd.PersistentFlags().DurationVar(&Flags.CacheTTL, "cache-ttl", defaultCacheTTL, "ディスクキャッシュの有効期間")
	rootCmd.PersistentFlags().BoolVar(&Flags.NoCache, "no-cache", false, "キャッシュを使用しない")
	rootCmd.PersistentFlags().BoolVar(&Flags.JSON, "json", false, "結果をJSONで出力する")
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if clibase.Flags.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	catalog, err := resolveCatalog()
	if err != nil {
		return err
	}

	fetcher, err := newFetcher()
	if err != nil {
		return err
	}

	globalStore, err = store.NewStore(fetcher,
		store.WithCatalog(catalog),
		store.WithOpener(browser.New()),
	)
	if err != nil {
		return fmt.Errorf("Storeの初期化エラー: %w", err)
	}
	return nil
}

// resolveCatalog は --catalog のプリセットに --catalog-file を重ねたカタログを返します。
func resolveCatalog() (store.Catalog, error) {
	catalog, err := store.LookupCatalog(Flags.Catalog)
	if err != nil {
		return store.Catalog{}, err
	}
	if Flags.CatalogFile == "" {
		return catalog, nil
	}
	return store.LoadCatalogFile(Flags.CatalogFile, catalog)
}

// newFetcher はHTTPクライアントと (有効であれば) キャッシュを組み立てます。
func newFetcher() (store.Fetcher, error) {
	timeout := time.Duration(Flags.TimeoutSec) * time.Second
	log.Debug().
		Dur("timeout", timeout).
		Int("max_retries", Flags.MaxRetries).
		Msg("HTTPクライアントを設定しました")

	client := httpclient.New(timeout, httpclient.WithMaxRetries(uint64(Flags.MaxRetries)))
	if Flags.NoCache {
		return client, nil
	}

	var opts []cache.Option
	if Flags.CacheDir != "" {
		disk, err := cache.NewDiskStore(Flags.CacheDir, Flags.CacheTTL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, cache.WithDiskStore(disk))
		log.Debug().Str("dir", Flags.CacheDir).Dur("ttl", Flags.CacheTTL).Msg("ディスクキャッシュを有効にしました")
	}
	return cache.NewCachingFetcher(client, opts...)
}

// GetGlobalStore は、初期化された Store を返す関数 (DIの代わり)
func GetGlobalStore() (*store.Store, error) {
	if globalStore == nil {
		return nil, fmt.Errorf("Storeが初期化されていません。rootコマンドのPreRunを確認してください")
	}
	return globalStore, nil
}

// overallTimeout はクライアントタイムアウトとリトライ回数から全体のタイムアウトを決めます。
func overallTimeout() time.Duration {
	if Flags.TimeoutSec <= 0 {
		return DefaultOverallTimeout
	}
	return time.Duration(Flags.TimeoutSec) * time.Duration(Flags.MaxRetries+2) * time.Second
}

// --- エントリポイント ---

// Execute は、clibase を使ってルートコマンドを組み立てて実行します。
func Execute() {
	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		searchCmd,
		detailsCmd,
		openCmd,
	)
}

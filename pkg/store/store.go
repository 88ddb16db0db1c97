package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store は、検索・詳細取得・ブラウザ表示の各操作をまとめたものです。
type Store struct {
	catalog    Catalog
	fetcher    Fetcher
	opener     Opener
	extractor  *Extractor
	classifier *Classifier
	htmlDump   io.Writer
	logger     zerolog.Logger

	extractorOpts []ExtractorOption
}

// Option は Store の設定を行うための関数型です。
type Option func(*Store)

// WithCatalog は使用するカタログを設定します。未指定時は DefaultCatalog です。
func WithCatalog(catalog Catalog) Option {
	return func(s *Store) {
		s.catalog = catalog.clone()
	}
}

// WithOpener は Open で使用する Opener を設定します。
func WithOpener(opener Opener) Option {
	return func(s *Store) {
		s.opener = opener
	}
}

// WithHTMLDump は、取得した検索結果ページの生HTMLを w にも書き出します (解析の調査用)。
func WithHTMLDump(w io.Writer) Option {
	return func(s *Store) {
		s.htmlDump = w
	}
}

// WithExtractorOptions は内部の Extractor に渡すオプションを追加します。
func WithExtractorOptions(opts ...ExtractorOption) Option {
	return func(s *Store) {
		s.extractorOpts = append(s.extractorOpts, opts...)
	}
}

// NewStore は、新しい Store を生成します。
func NewStore(fetcher Fetcher, opts ...Option) (*Store, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("store.NewStore: Fetcher cannot be nil")
	}

	s := &Store{
		catalog: DefaultCatalog.clone(),
		fetcher: fetcher,
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.catalog.Validate(); err != nil {
		return nil, fmt.Errorf("store.NewStore: カタログ設定が不正です: %w", err)
	}

	s.extractor = NewExtractor(s.catalog, append([]ExtractorOption{WithLogger(s.logger)}, s.extractorOpts...)...)
	s.classifier = NewClassifier(s.catalog)
	return s, nil
}

// Catalog は設定済みのカタログを返します。
func (s *Store) Catalog() Catalog {
	return s.catalog.clone()
}

// Search は検索結果ページを取得し、レコードを順に抽出するイテレータを返します。
// 取得に失敗した場合のエラーは再試行せずに返します。
func (s *Store) Search(ctx context.Context, query string, maxResults int) (*ResultIterator, error) {
	searchURL := s.catalog.BuildSearchURL(query)
	s.logger.Debug().Str("url", searchURL).Int("max_results", maxResults).Msg("検索結果ページを取得します")

	raw, err := s.fetcher.FetchBytes(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("検索結果ページの取得に失敗しました (URL: %s): %w", searchURL, err)
	}

	if s.htmlDump != nil {
		if _, err := s.htmlDump.Write(raw); err != nil {
			s.logger.Warn().Err(err).Msg("検索結果HTMLの書き出しに失敗しました")
		}
	}

	doc, err := parseDocument(raw)
	if err != nil {
		return nil, err
	}
	return s.extractor.Extract(doc, maxResults), nil
}

// GetDetails は詳細ページを取得し、result の DRM 状態を更新します。
func (s *Store) GetDetails(ctx context.Context, result *SearchResult) (bool, error) {
	if result == nil || result.DetailItem == "" {
		return false, fmt.Errorf("詳細ページの識別子がありません")
	}

	detailURL := s.catalog.DetailURL(result.DetailItem)
	raw, err := s.fetcher.FetchBytes(ctx, detailURL)
	if err != nil {
		return false, fmt.Errorf("詳細ページの取得に失敗しました (URL: %s): %w", detailURL, err)
	}

	doc, err := parseDocument(raw)
	if err != nil {
		return false, err
	}
	return s.ParseDetails(doc, result), nil
}

// ParseDetails は取得済みの詳細ページから DRM 状態を判定します。
func (s *Store) ParseDetails(doc *goquery.Document, result *SearchResult) bool {
	ok := s.classifier.Classify(doc, result)
	s.logger.Debug().Str("detail_item", result.DetailItem).Stringer("drm", result.DRM).Msg("DRM状態を判定しました")
	return ok
}

// Open は、識別子があれば詳細ページを、なければストアのトップページを開きます。
func (s *Store) Open(ctx context.Context, detailItem string) error {
	if s.opener == nil {
		return fmt.Errorf("Opener が設定されていません")
	}
	link := s.catalog.LinkFor(detailItem)
	if err := s.opener.Open(ctx, link); err != nil {
		return fmt.Errorf("URLを開けませんでした (URL: %s): %w", link, err)
	}
	return nil
}

func parseDocument(raw []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("HTML解析に失敗しました: %w", err)
	}
	return doc, nil
}

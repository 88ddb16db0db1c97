package store

import (
	"errors"
	"iter"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ----------------------------------------------------------------------
// 定数定義 (解析関連のみ)
// ----------------------------------------------------------------------
const (
	// candidateSelectors は、結果一覧コンテナ内の1件ごとの要素を選択します。
	candidateSelectors = "div[class*='s-result-list'] div[data-index][data-asin]"
	detailItemAttr     = "data-asin"

	titleSelector  = "h2"
	authorSelector = "div[class*='a-color-secondary']"
	priceSelector  = "span[class*='a-price'] > span[class*='a-offscreen']"
	coverSelector  = "img[src]"
)

// Extractor は、パース済みの検索結果ページから SearchResult を取り出します。
type Extractor struct {
	catalog       Catalog
	skipMalformed bool
	logger        zerolog.Logger
}

// ExtractorOption は Extractor の設定を行うための関数型です。
type ExtractorOption func(*Extractor)

// WithSkipMalformed は、候補1件の抽出失敗で全体を中断せず、ログを出して次の候補へ進めます。
func WithSkipMalformed() ExtractorOption {
	return func(e *Extractor) {
		e.skipMalformed = true
	}
}

// WithLogger はログ出力先を設定します。
func WithLogger(logger zerolog.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor は、指定したカタログ設定で Extractor を生成します。
func NewExtractor(catalog Catalog, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		catalog: catalog.clone(),
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract は、doc の候補要素を文書順に1件ずつ抽出するイテレータを返します。
// 抽出は Next の呼び出しごとに行われ、途中で読み出しをやめても後始末は不要です。
//
// maxResults は受理した件数ごとに減算されますが、出力件数の上限としては使われません。
// 既存の挙動を維持しているもので、残数は Remaining で参照できます。
func (e *Extractor) Extract(doc *goquery.Document, maxResults int) *ResultIterator {
	return &ResultIterator{
		extractor: e,
		doc:       doc,
		remaining: maxResults,
	}
}

// ----------------------------------------------------------------------
// イテレータ
// ----------------------------------------------------------------------

// ResultIterator は、1回の Extract 呼び出しに対応する前方専用の有限シーケンスです。
// bufio.Scanner と同様に Next / Result / Err で読み出します。
type ResultIterator struct {
	extractor  *Extractor
	doc        *goquery.Document
	candidates *goquery.Selection

	pos       int
	remaining int
	current   *SearchResult
	err       error
	done      bool
}

// Next は次のレコードを抽出します。レコードがない場合やエラー時は false を返します。
func (it *ResultIterator) Next() bool {
	if it.done {
		return false
	}
	if it.candidates == nil {
		if it.doc == nil {
			it.finish(nil)
			return false
		}
		it.candidates = it.doc.Find(candidateSelectors)
	}

	for it.pos < it.candidates.Length() {
		index := it.pos
		it.pos++

		result, err := it.extractor.extractEntry(it.candidates.Eq(index), index)
		if err != nil {
			if it.extractor.skipMalformed {
				it.extractor.logger.Warn().Err(err).Int("index", index).Msg("抽出できない検索結果をスキップします")
				continue
			}
			it.finish(err)
			return false
		}
		if result == nil {
			continue
		}

		it.remaining--
		it.current = result
		return true
	}

	it.finish(nil)
	return false
}

func (it *ResultIterator) finish(err error) {
	it.done = true
	it.current = nil
	it.err = err
}

// Result は直前の Next で抽出されたレコードを返します。
func (it *ResultIterator) Result() *SearchResult {
	return it.current
}

// Err は抽出を中断させたエラーを返します。正常終了時は nil です。
func (it *ResultIterator) Err() error {
	return it.err
}

// Remaining は maxResults から受理件数を引いた値です。負の値になることもあります。
func (it *ResultIterator) Remaining() int {
	return it.remaining
}

// All は range-over-func 用のシーケンスを返します。
// 中断エラーがあった場合は最後に (nil, err) が1度だけ渡されます。
func (it *ResultIterator) All() iter.Seq2[*SearchResult, error] {
	return func(yield func(*SearchResult, error) bool) {
		for it.Next() {
			if !yield(it.Result(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Collect は残りのレコードをすべて読み出します。
// エラー発生時は、それまでに抽出できたレコードとエラーを返します。
func (it *ResultIterator) Collect() ([]*SearchResult, error) {
	var results []*SearchResult
	for it.Next() {
		results = append(results, it.Result())
	}
	return results, it.Err()
}

// ----------------------------------------------------------------------
// 候補1件の抽出
// ----------------------------------------------------------------------

// extractEntry は候補1件を処理します。対象外の候補は (nil, nil) を返します。
func (e *Extractor) extractEntry(entry *goquery.Selection, index int) (*SearchResult, error) {
	// 1. フォーマットの判定 (電子書籍版でない候補は除外)
	if !e.isReaderEdition(entry) {
		e.logger.Debug().Int("index", index).Msg("電子書籍版ではない候補を除外しました")
		return nil, nil
	}

	// 2. 識別子
	detailItem, _ := entry.Attr(detailItemAttr)
	if detailItem == "" {
		e.logger.Debug().Int("index", index).Msg("識別子のない候補を除外しました")
		return nil, nil
	}

	// 3. 表紙画像
	var srcs []string
	entry.Find(coverSelector).Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		srcs = append(srcs, src)
	})
	coverURL := strings.Join(srcs, "")

	// 4. タイトル
	heading := entry.Find(titleSelector).First()
	if heading.Length() == 0 {
		return nil, &EntryError{Index: index, DetailItem: detailItem, Err: ErrMissingTitle}
	}
	title := heading.Text()

	// 5. 著者
	author, err := e.extractAuthor(entry)
	if err != nil {
		return nil, &EntryError{Index: index, DetailItem: detailItem, Err: err}
	}

	// 6. 価格
	price := extractPrice(entry)

	return &SearchResult{
		CoverURL:   strings.TrimSpace(coverURL),
		Title:      strings.TrimSpace(title),
		Author:     strings.TrimSpace(author),
		DetailItem: strings.TrimSpace(detailItem),
		Price:      strings.TrimSpace(price),
		Formats:    e.catalog.Formats,
		DRM:        DRMNotSet,
	}, nil
}

// isReaderEdition は、EditionLabel を含むリンクの文言に ReaderKeyword が含まれるかを判定します。
func (e *Extractor) isReaderEdition(entry *goquery.Selection) bool {
	var labels []string
	entry.Find("a").Each(func(_ int, a *goquery.Selection) {
		if strings.Contains(firstOwnText(a), e.catalog.EditionLabel) {
			labels = append(labels, a.Text())
		}
	})

	// cases.Caser は goroutine 間で共有できないため、呼び出しごとに生成する
	lower := cases.Lower(language.Und)
	kformat := lower.String(strings.Join(labels, ""))
	return strings.Contains(kformat, lower.String(e.catalog.ReaderKeyword))
}

// extractAuthor は "by" トークン以降を著者名とし、
// "|" 以降の出版社情報などを取り除きます。
func (e *Extractor) extractAuthor(entry *goquery.Selection) (string, error) {
	line := entry.Find(authorSelector).First()
	if line.Length() == 0 {
		return "", ErrMissingAuthorNode
	}

	parts := strings.Fields(line.Text())
	// 完全一致を優先し、タイトル中の "By" などを区切りと誤認しないようにする
	idx := slices.Index(parts, e.catalog.ByToken)
	if idx < 0 {
		idx = slices.IndexFunc(parts, func(p string) bool {
			return strings.EqualFold(p, e.catalog.ByToken)
		})
	}
	if idx < 0 {
		return "", ErrMissingByToken
	}

	author := strings.Join(parts[idx+1:], " ")
	author, _, _ = strings.Cut(author, "|")
	return strings.TrimSpace(author), nil
}

// extractPrice は、読み上げ用の価格テキストが空でない最初の要素を採用します。
func extractPrice(entry *goquery.Selection) string {
	price := ""
	entry.Find(priceSelector).EachWithBreak(func(_ int, span *goquery.Selection) bool {
		if q := ownText(span); q != "" {
			price = q
			return false
		}
		return true
	})
	return price
}

// IsEntryError は err が候補1件の抽出失敗によるものかを判定します。
func IsEntryError(err error) bool {
	var entryErr *EntryError
	return errors.As(err, &entryErr)
}

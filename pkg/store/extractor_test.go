package store

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ======================================================================
// テスト用HTMLの組み立て
// ======================================================================

type entryHTML struct {
	asin       string
	format     string // フォーマットリンクの文言
	img        string
	title      string
	authorLine string // 空の場合は著者行の要素を出力しない
	prices     []string
}

func (e entryHTML) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div data-index="0" data-asin="%s" class="s-result-item s-asin">`, e.asin)
	if e.img != "" {
		fmt.Fprintf(&b, `<span class="rush-component"><img class="s-image" src="%s"></span>`, e.img)
	}
	if e.title != "" {
		fmt.Fprintf(&b, `<h2 class="a-size-mini"><a class="a-link-normal"><span>%s</span></a></h2>`, e.title)
	}
	if e.authorLine != "" {
		fmt.Fprintf(&b, `<div class="a-row a-size-base a-color-secondary">%s</div>`, e.authorLine)
	}
	if e.format != "" {
		fmt.Fprintf(&b, `<div class="a-row"><a class="a-size-base a-link-normal a-text-bold" href="/dp/%s">%s</a></div>`, e.asin, e.format)
	}
	for _, p := range e.prices {
		fmt.Fprintf(&b, `<span class="a-price" data-a-size="l"><span class="a-offscreen">%s</span><span aria-hidden="true">$0</span></span>`, p)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func kindleEntry(asin, title string) entryHTML {
	return entryHTML{
		asin:       asin,
		format:     "Kindle Edition",
		img:        "https://m.media-amazon.com/images/I/" + asin + ".jpg",
		title:      title,
		authorLine: `<span class="a-size-base">by </span><a class="a-size-base a-link-normal">Jane Doe</a><span> | Publisher X</span>`,
		prices:     []string{"$9.99"},
	}
}

func resultsPage(entries ...entryHTML) *goquery.Document {
	var b strings.Builder
	b.WriteString(`<html><body><div class="s-main-slot s-result-list s-search-results sg-row">`)
	for _, e := range entries {
		b.WriteString(e.render())
	}
	b.WriteString(`</div></body></html>`)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.String()))
	if err != nil {
		panic(err)
	}
	return doc
}

func collect(t *testing.T, it *ResultIterator) []*SearchResult {
	t.Helper()
	results, err := it.Collect()
	require.NoError(t, err)
	return results
}

// ======================================================================
// テスト関数
// ======================================================================

func TestExtract_SingleEntry(t *testing.T) {
	doc := resultsPage(kindleEntry("B00TEST001", "  The Go Programming Language \n"))

	results := collect(t, NewExtractor(AmazonUS).Extract(doc, 10))

	want := []*SearchResult{{
		CoverURL:   "https://m.media-amazon.com/images/I/B00TEST001.jpg",
		Title:      "The Go Programming Language",
		Author:     "Jane Doe",
		DetailItem: "B00TEST001",
		Price:      "$9.99",
		Formats:    "Kindle",
		DRM:        DRMNotSet,
	}}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("抽出結果が期待値と異なります (-want +got):\n%s", diff)
	}
}

func TestExtract_SkipRules(t *testing.T) {
	paperback := kindleEntry("B00PAPER01", "Paperback Only")
	paperback.format = "Paperback"

	noID := kindleEntry("", "No Identifier")

	audible := kindleEntry("B00AUDIO01", "Audio Only")
	audible.format = "Audible Audiobook"

	doc := resultsPage(
		paperback,
		kindleEntry("B00KEEP001", "First"),
		noID,
		audible,
		kindleEntry("B00KEEP002", "Second"),
	)

	results := collect(t, NewExtractor(AmazonUS).Extract(doc, 10))

	require.Len(t, results, 2)
	assert.Equal(t, "B00KEEP001", results[0].DetailItem)
	assert.Equal(t, "B00KEEP002", results[1].DetailItem)
	for _, r := range results {
		assert.NotEmpty(t, r.DetailItem)
	}
}

func TestExtract_FormatLabelMatching(t *testing.T) {
	// ラベルを含むリンクの文言を小文字化してキーワードを探す
	mixedCase := kindleEntry("B00MIXED01", "Mixed Case")
	mixedCase.format = "Kindle Edition <span>(KINDLE)</span>"

	// 子要素にだけラベルがあるリンクは直下のテキストに含まれないため対象外
	nested := kindleEntry("B00NESTED1", "Nested")
	nested.format = "<span>Kindle Edition</span>"

	results := collect(t, NewExtractor(AmazonUS).Extract(resultsPage(mixedCase, nested), 10))

	require.Len(t, results, 1)
	assert.Equal(t, "B00MIXED01", results[0].DetailItem)
}

func TestExtract_Author(t *testing.T) {
	tests := []struct {
		name       string
		authorLine string
		want       string
	}{
		{"with publisher", "By Jane Doe | Publisher X", "Jane Doe"},
		{"lower case by", "by Jane Doe | Publisher X", "Jane Doe"},
		{"no publisher", `<span>by</span> <a>John</a> <a>Smith</a>`, "John Smith"},
		{"prefix before by", "Book 3 of 5: Series by  Ann   Lee|Jan 1, 2020", "Ann Lee"},
		{"pipe glued to name", "by Jane Doe| Publisher", "Jane Doe"},
		{"capitalized By in title", "Book 1 of 3: Stand By Me by Stephen King | Jan 1, 2020", "Stephen King"},
		{"only capitalized By", "Stand By Me | Jan 1, 2020", "Me"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := kindleEntry("B00AUTHOR1", "Title")
			e.authorLine = tt.authorLine

			results := collect(t, NewExtractor(AmazonUS).Extract(resultsPage(e), 10))
			require.Len(t, results, 1)
			assert.Equal(t, tt.want, results[0].Author)
		})
	}
}

func TestExtract_Price(t *testing.T) {
	tests := []struct {
		name   string
		prices []string
		want   string
	}{
		{"first non-empty wins", []string{"", "$4.99", "$7.99"}, "$4.99"},
		{"single price", []string{"$0.99"}, "$0.99"},
		{"no price", nil, ""},
		{"all empty", []string{"", ""}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := kindleEntry("B00PRICE01", "Title")
			e.prices = tt.prices

			results := collect(t, NewExtractor(AmazonUS).Extract(resultsPage(e), 10))
			require.Len(t, results, 1)
			assert.Equal(t, tt.want, results[0].Price)
		})
	}
}

func TestExtract_CoverURL(t *testing.T) {
	noImage := kindleEntry("B00NOIMG01", "No Image")
	noImage.img = ""

	results := collect(t, NewExtractor(AmazonUS).Extract(resultsPage(noImage), 10))
	require.Len(t, results, 1)
	assert.Empty(t, results[0].CoverURL)
}

func TestExtract_HardFailureStopsIteration(t *testing.T) {
	noBy := kindleEntry("B00BROKEN1", "Broken")
	noBy.authorLine = "Jane Doe | Publisher X"

	noAuthor := kindleEntry("B00BROKEN2", "No Author")
	noAuthor.authorLine = ""

	noTitle := kindleEntry("B00BROKEN3", "")

	tests := []struct {
		name    string
		broken  entryHTML
		wantErr error
	}{
		{"missing by token", noBy, ErrMissingByToken},
		{"missing author node", noAuthor, ErrMissingAuthorNode},
		{"missing title", noTitle, ErrMissingTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := resultsPage(kindleEntry("B00OK00001", "Before"), tt.broken, kindleEntry("B00OK00002", "After"))
			it := NewExtractor(AmazonUS).Extract(doc, 10)

			require.True(t, it.Next())
			assert.Equal(t, "B00OK00001", it.Result().DetailItem)

			// 壊れた候補で全体が中断し、後続の候補は抽出されない
			assert.False(t, it.Next())
			assert.Nil(t, it.Result())
			require.Error(t, it.Err())
			assert.ErrorIs(t, it.Err(), tt.wantErr)
			assert.True(t, IsEntryError(it.Err()))

			var entryErr *EntryError
			require.ErrorAs(t, it.Err(), &entryErr)
			assert.Equal(t, 1, entryErr.Index)
			assert.Equal(t, tt.broken.asin, entryErr.DetailItem)

			assert.False(t, it.Next())
		})
	}
}

func TestExtract_SkipMalformedOption(t *testing.T) {
	noBy := kindleEntry("B00BROKEN1", "Broken")
	noBy.authorLine = "Jane Doe"

	doc := resultsPage(kindleEntry("B00OK00001", "Before"), noBy, kindleEntry("B00OK00002", "After"))
	results := collect(t, NewExtractor(AmazonUS, WithSkipMalformed()).Extract(doc, 10))

	require.Len(t, results, 2)
	assert.Equal(t, "B00OK00002", results[1].DetailItem)
}

// maxResults は残数を減らすだけで出力件数を制限しない (既知の挙動)。
func TestExtract_MaxResultsDoesNotLimitOutput(t *testing.T) {
	var entries []entryHTML
	for i := 1; i <= 5; i++ {
		entries = append(entries, kindleEntry(fmt.Sprintf("B00CAP%04d", i), fmt.Sprintf("Book %d", i)))
	}

	it := NewExtractor(AmazonUS).Extract(resultsPage(entries...), 2)
	results := collect(t, it)

	assert.Len(t, results, 5)
	assert.Equal(t, -3, it.Remaining())
}

func TestExtract_EarlyTermination(t *testing.T) {
	doc := resultsPage(
		kindleEntry("B00EARLY01", "One"),
		kindleEntry("B00EARLY02", "Two"),
		kindleEntry("B00EARLY03", "Three"),
	)

	it := NewExtractor(AmazonUS).Extract(doc, 10)
	var seen []string
	for r, err := range it.All() {
		require.NoError(t, err)
		seen = append(seen, r.DetailItem)
		if len(seen) == 2 {
			break
		}
	}

	assert.Equal(t, []string{"B00EARLY01", "B00EARLY02"}, seen)
	assert.Equal(t, 8, it.Remaining())
}

func TestExtract_AllYieldsErrorLast(t *testing.T) {
	noBy := kindleEntry("B00BROKEN1", "Broken")
	noBy.authorLine = "Jane Doe"

	it := NewExtractor(AmazonUS).Extract(resultsPage(kindleEntry("B00OK00001", "Before"), noBy), 10)

	var (
		count   int
		lastErr error
	)
	for r, err := range it.All() {
		if err != nil {
			lastErr = err
			assert.Nil(t, r)
			continue
		}
		count++
	}
	assert.Equal(t, 1, count)
	assert.ErrorIs(t, lastErr, ErrMissingByToken)
}

func TestExtract_NoResultList(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><div data-index="0" data-asin="B00OUTSIDE">Kindle Edition</div></body></html>`))
	require.NoError(t, err)

	it := NewExtractor(AmazonUS).Extract(doc, 10)
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())

	nilDoc := NewExtractor(AmazonUS).Extract(nil, 10)
	assert.False(t, nilDoc.Next())
	assert.NoError(t, nilDoc.Err())
}

func TestExtract_RequiresIndexAndIdentifierAttributes(t *testing.T) {
	html := `<html><body><div class="s-result-list">
		<div data-asin="B00NOINDEX"><h2>x</h2><a>Kindle Edition</a></div>
	</div></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	results := collect(t, NewExtractor(AmazonUS).Extract(doc, 10))
	assert.Empty(t, results)
}

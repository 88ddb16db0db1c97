package store

import (
	"fmt"
	"maps"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ----------------------------------------------------------------------
// カタログ設定
// ----------------------------------------------------------------------

// Catalog は、1つのストア（地域/ロケール）に対するURLと判定用マーカーの組です。
// 値として受け渡し、生成後は変更しない前提で扱います。
type Catalog struct {
	Name string `yaml:"name"`

	SearchBaseURL   string            `yaml:"search_base_url"`
	SearchBaseQuery map[string]string `yaml:"search_base_query"` // 固定のカタログ絞り込みパラメータ
	KeywordsField   string            `yaml:"keywords_field"`

	DetailsURL string `yaml:"details_url"` // 詳細ページのプレフィックス (末尾に識別子を連結)
	StoreLink  string `yaml:"store_link"`  // 識別子がない場合に開くトップページ

	ByToken       string `yaml:"by_token"`        // 著者行の区切りトークン
	EditionLabel  string `yaml:"edition_label"`   // フォーマットリンクの文言
	ReaderKeyword string `yaml:"reader_keyword"`  // 独自リーダーのキーワード (小文字で比較)
	DRMSearchText string `yaml:"drm_search_text"` // 同時使用端末数の行
	DRMFreeText   string `yaml:"drm_free_text"`   // 無制限を示す文言
	Formats       string `yaml:"formats"`
}

// amazonCatalog は、地域ごとのホスト以外が共通のAmazonカタログを生成します。
func amazonCatalog(name, host string) Catalog {
	return Catalog{
		Name:            name,
		SearchBaseURL:   "https://www." + host + "/s/",
		SearchBaseQuery: map[string]string{"i": "digital-text"},
		KeywordsField:   "k",
		DetailsURL:      "https://" + host + "/dp/",
		StoreLink:       "https://www." + host + "/Kindle-eBooks",
		ByToken:         "by",
		EditionLabel:    "Kindle Edition",
		ReaderKeyword:   "kindle",
		DRMSearchText:   "Simultaneous Device Usage",
		DRMFreeText:     "Unlimited",
		Formats:         "Kindle",
	}
}

var (
	AmazonUS = amazonCatalog("amazon-us", "amazon.com")
	AmazonUK = amazonCatalog("amazon-uk", "amazon.co.uk")
	AmazonCA = amazonCatalog("amazon-ca", "amazon.ca")
	AmazonAU = amazonCatalog("amazon-au", "amazon.com.au")
)

// DefaultCatalog はフラグ未指定時に使用するカタログです。
var DefaultCatalog = AmazonUS

var presets = map[string]Catalog{
	AmazonUS.Name: AmazonUS,
	AmazonUK.Name: AmazonUK,
	AmazonCA.Name: AmazonCA,
	AmazonAU.Name: AmazonAU,
}

// CatalogNames は登録済みプリセット名を昇順で返します。
func CatalogNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupCatalog は名前からプリセットを取得します。
func LookupCatalog(name string) (Catalog, error) {
	c, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Catalog{}, fmt.Errorf("未登録のカタログです: %q (利用可能: %s)", name, strings.Join(CatalogNames(), ", "))
	}
	return c.clone(), nil
}

// LoadCatalogFile は YAML ファイルを読み込み、base の値を上書きしたカタログを返します。
// ファイルに書かれていない項目は base の値がそのまま残ります。
// search_base_query は項目単位ではなく、map 全体が置き換わります。
func LoadCatalogFile(path string, base Catalog) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("カタログファイルの読み込みに失敗しました (%s): %w", path, err)
	}

	// yaml.v3 は既存の map に要素を追加するため、ファイルに search_base_query があれば
	// base の絞り込みパラメータは引き継がずに置き換える
	var query struct {
		SearchBaseQuery map[string]string `yaml:"search_base_query"`
	}
	if err := yaml.Unmarshal(data, &query); err != nil {
		return Catalog{}, fmt.Errorf("カタログファイルの解析に失敗しました (%s): %w", path, err)
	}

	c := base.clone()
	if query.SearchBaseQuery != nil {
		c.SearchBaseQuery = nil
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("カタログファイルの解析に失敗しました (%s): %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("カタログファイルの内容が不正です (%s): %w", path, err)
	}
	return c, nil
}

// Validate は必須項目とURLスキームを検証します。
func (c Catalog) Validate() error {
	required := map[string]string{
		"keywords_field":  c.KeywordsField,
		"by_token":        c.ByToken,
		"edition_label":   c.EditionLabel,
		"reader_keyword":  c.ReaderKeyword,
		"drm_search_text": c.DRMSearchText,
		"drm_free_text":   c.DRMFreeText,
	}
	for _, key := range sortedKeys(required) {
		if strings.TrimSpace(required[key]) == "" {
			return fmt.Errorf("%s が空です", key)
		}
	}

	for _, u := range []string{c.SearchBaseURL, c.DetailsURL, c.StoreLink} {
		if err := checkScheme(u); err != nil {
			return err
		}
	}
	return nil
}

// checkScheme は URL が http または https の絶対URLであることを確認します。
func checkScheme(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("URLのパースエラー: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("無効なURLスキームです。httpまたはhttpsを指定してください: %q", rawURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URLにホストがありません: %q", rawURL)
	}
	return nil
}

// DetailURL は識別子から詳細ページのURLを組み立てます。
func (c Catalog) DetailURL(detailItem string) string {
	return c.DetailsURL + detailItem
}

// LinkFor は、識別子があれば詳細ページ、なければストアのトップページを返します。
func (c Catalog) LinkFor(detailItem string) string {
	if detailItem != "" {
		return c.DetailURL(detailItem)
	}
	return c.StoreLink
}

func (c Catalog) clone() Catalog {
	c.SearchBaseQuery = maps.Clone(c.SearchBaseQuery)
	return c
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

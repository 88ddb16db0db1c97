package store

import (
	"net/url"
)

// BuildSearchURL は検索語をキーワードパラメータに設定し、固定の絞り込みパラメータと合わせて
// 検索URLを組み立てます。
// Go の文字列は UTF-8 のため、非ASCIIの検索語もそのままパーセントエンコードされます。
// キーは url.Values.Encode により昇順に並びます。
func (c Catalog) BuildSearchURL(query string) string {
	params := url.Values{}
	for k, v := range c.SearchBaseQuery {
		params.Set(k, v)
	}
	params.Set(c.KeywordsField, query)

	return c.SearchBaseURL + "?" + params.Encode()
}

package types

import (
	"github.com/shouni/go-ebook-store/pkg/store"
)

// DetailResult は、検索結果1件に対する詳細ページ処理の結果、またはその処理中に発生したエラーを保持します。
// これは、Scraperの出力、CLI表示の入力として利用されます。
type DetailResult struct {
	Result     *store.SearchResult // 対象レコード (DRM フィールドは処理後の値)
	Classified bool                // 詳細ページの判定まで完了したか
	Error      error               // 処理中に発生したエラー
}

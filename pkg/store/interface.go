package store

import (
	"context"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// Fetcher は、HTMLドキュメントの生バイト配列を取得する機能のインターフェースを定義します。
// タイムアウトやキャッシュは実装側の責務で、Store はエラーを再試行せずにそのまま返します。
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Opener は、URLを外部のブラウザなどで開く機能です。
type Opener interface {
	Open(ctx context.Context, url string) error
}

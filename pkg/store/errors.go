package store

import (
	"errors"
	"fmt"
)

// 検索結果1件分の抽出に失敗したことを示すエラー群です。
// 既定ではいずれも呼び出し全体の抽出を中断させます (WithSkipMalformed で変更可能)。
var (
	ErrMissingTitle      = errors.New("タイトルの見出し要素が見つかりません")
	ErrMissingAuthorNode = errors.New("著者行の要素が見つかりません")
	ErrMissingByToken    = errors.New("著者行に区切りトークンがありません")
)

// EntryError は、どの候補で抽出が失敗したかを保持します。
type EntryError struct {
	Index      int    // 候補の文書内での位置 (0始まり)
	DetailItem string // 取得済みであれば識別子
	Err        error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("検索結果 #%d (識別子: %s) の抽出に失敗しました: %v", e.Index, e.DetailItem, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

package store

import (
	"fmt"
	"strings"
)

// DRMStatus は、詳細ページから判定されたDRMの状態を表します。
type DRMStatus int

const (
	// DRMNotSet は、詳細ページの判定がまだ行われていない状態です。
	DRMNotSet DRMStatus = iota
	// DRMLocked は、端末数などの制限があるDRM保護状態です。
	DRMLocked
	// DRMUnlocked は、同時使用端末数が無制限の状態です。
	DRMUnlocked
	// DRMUnknown は、判定用の行は存在するが無制限とは書かれていない状態です。
	DRMUnknown
)

var drmStatusNames = map[DRMStatus]string{
	DRMNotSet:   "not_set",
	DRMLocked:   "locked",
	DRMUnlocked: "unlocked",
	DRMUnknown:  "unknown",
}

func (s DRMStatus) String() string {
	if name, ok := drmStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("DRMStatus(%d)", int(s))
}

// MarshalText は JSON 出力用に状態名を返します。
func (s DRMStatus) MarshalText() ([]byte, error) {
	if _, ok := drmStatusNames[s]; !ok {
		return nil, fmt.Errorf("不明なDRM状態です: %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText は状態名から DRMStatus を復元します。
func (s *DRMStatus) UnmarshalText(text []byte) error {
	for status, name := range drmStatusNames {
		if strings.EqualFold(name, string(text)) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("不明なDRM状態名です: %q", text)
}

// SearchResult は、検索結果ページの1件分を正規化したレコードです。
// Extractor が生成し、Classifier が DRM フィールドをその場で更新します。
type SearchResult struct {
	CoverURL   string    `json:"cover_url"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	DetailItem string    `json:"detail_item"`
	Price      string    `json:"price"`
	Formats    string    `json:"formats"`
	DRM        DRMStatus `json:"drm"`
}

func (r *SearchResult) String() string {
	return fmt.Sprintf("%s by %s [%s] %s (%s, drm=%s)", r.Title, r.Author, r.DetailItem, r.Price, r.Formats, r.DRM)
}

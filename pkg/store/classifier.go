package store

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// detailContentSelector は class 属性がちょうど "content" の div のみを対象にします。
	detailContentSelector = "div[class='content']"
)

// Classifier は、詳細ページの本文から DRM の状態を判定します。
type Classifier struct {
	catalog Catalog
}

// NewClassifier は Classifier を生成します。
func NewClassifier(catalog Catalog) *Classifier {
	return &Classifier{catalog: catalog.clone()}
}

// Classify は result.DRM を更新します。判定に必要な記述がなくても失敗とはせず、常に true を返します。
//
//   - 太字の同時使用端末数の行がない: DRMLocked (想定外のページ構成は保護ありとして扱う)
//   - 同じ li に太字の同時使用端末数と「無制限」がある: DRMUnlocked
//   - それ以外: DRMUnknown
func (c *Classifier) Classify(doc *goquery.Document, result *SearchResult) bool {
	items := doc.Find(detailContentSelector).Find("li")

	if !c.hasDeviceUsageLine(items) {
		result.DRM = DRMLocked
		return true
	}

	if c.hasUnlimitedUsage(items) {
		result.DRM = DRMUnlocked
	} else {
		result.DRM = DRMUnknown
	}
	return true
}

func (c *Classifier) hasDeviceUsageLine(items *goquery.Selection) bool {
	return items.ChildrenFiltered("b").FilterFunction(func(_ int, b *goquery.Selection) bool {
		return strings.Contains(firstOwnText(b), c.catalog.DRMSearchText)
	}).Length() > 0
}

func (c *Classifier) hasUnlimitedUsage(items *goquery.Selection) bool {
	return items.FilterFunction(func(_ int, li *goquery.Selection) bool {
		if !strings.Contains(li.Text(), c.catalog.DRMFreeText) {
			return false
		}
		// contains(b, ...) は最初の b 子要素の文字列値で評価される
		b := li.ChildrenFiltered("b").First()
		return b.Length() > 0 && strings.Contains(b.Text(), c.catalog.DRMSearchText)
	}).Length() > 0
}

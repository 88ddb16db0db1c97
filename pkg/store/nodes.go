package store

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// firstOwnText は選択要素の直下にある最初のテキストノードを返します。
// XPath の contains(text(), ...) と同じく、子孫要素のテキストは含みません。
func firstOwnText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	for n := s.Nodes[0].FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.TextNode {
			return n.Data
		}
	}
	return ""
}

// ownText は選択要素の直下にあるテキストノードをすべて連結します。
func ownText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	var b strings.Builder
	for n := s.Nodes[0].FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
	}
	return b.String()
}

// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// DescriptionSanitizerService は教室紹介文のサニタイズインターフェース。
// 運営者が入力したHTMLを保存前に通過させ、XSSを防止する。
type DescriptionSanitizerService interface {
	// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
	// 空文字列の入力には空文字列を返し、同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// descriptionSanitizer はbluemondayの許可リストポリシーによる実装。
type descriptionSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer はDescriptionSanitizerServiceの新しいインスタンスを生成する。
//
// ポリシー:
//   - 許可タグ: p, br, ul, ol, li, strong, em, h3, h4
//   - リンク: href属性のみ許可。target="_blank"とrel="noopener noreferrer"を強制付与
//   - script, iframe, style、on*イベント属性、imgは許可リスト外として除去される
func NewDescriptionSanitizer() *descriptionSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em", "h3", "h4",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &descriptionSanitizer{policy: p}
}

// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
func (s *descriptionSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

// compile-time interface check
var _ DescriptionSanitizerService = (*descriptionSanitizer)(nil)

// Package security はアプリケーションのセキュリティ機能を提供する。
//
// DescriptionSanitizer はセッションの説明文からHTMLを取り除き、
// 表示側での埋め込みによるXSSを防ぐ。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxDescriptionLength は説明文の最大文字数（rune数）。
const MaxDescriptionLength = 1000

// DescriptionSanitizer は説明文のサニタイズ機能のインターフェース。
type DescriptionSanitizer interface {
	// Sanitize はタグをすべて除去したプレーンテキストを返す。
	// 前後の空白は取り除き、MaxDescriptionLengthを超える部分は切り詰める。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

// descriptionSanitizer はbluemondayのStrictPolicyを用いたDescriptionSanitizerの実装。
// ポリシーはスレッドセーフ。
type descriptionSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer はDescriptionSanitizerを生成する。
func NewDescriptionSanitizer() *descriptionSanitizer {
	return &descriptionSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はタグを除去したプレーンテキストを返す。
func (s *descriptionSanitizer) Sanitize(raw string) string {
	// StrictPolicyは&や<をエスケープして返すため、保存用に元の文字へ戻す
	text := html.UnescapeString(s.policy.Sanitize(raw))
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) > MaxDescriptionLength {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:MaxDescriptionLength]))
	}
	return text
}

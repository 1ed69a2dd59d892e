package assembler

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Sizer はテキストのサイズ（予算の単位）を計測します
// 予算の単位はトークン数と文字数を差し替え可能にするための抽象です
type Sizer interface {
	// Size はテキストのサイズを返します
	Size(text string) int
	// Unit は単位名を返します（例: "tokens", "chars"）
	Unit() string
}

// TokenSizer はtiktokenによるトークン数計測を提供します
type TokenSizer struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenSizer は新しいTokenSizerを作成します
// cl100k_baseエンコーディングを使用する
func NewTokenSizer() (*TokenSizer, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}

	return &TokenSizer{encoding: encoding}, nil
}

// Size はテキストのトークン数を返します
func (s *TokenSizer) Size(text string) int {
	if s.encoding == nil {
		return 0
	}
	return len(s.encoding.Encode(text, nil, nil))
}

// Unit は単位名を返します
func (s *TokenSizer) Unit() string {
	return "tokens"
}

// RuneSizer は文字数（rune数）による計測を提供します
type RuneSizer struct{}

// NewRuneSizer は新しいRuneSizerを作成します
func NewRuneSizer() *RuneSizer {
	return &RuneSizer{}
}

// Size はテキストの文字数を返します
func (s *RuneSizer) Size(text string) int {
	return len([]rune(text))
}

// Unit は単位名を返します
func (s *RuneSizer) Unit() string {
	return "chars"
}

// NewSizer は単位名からSizerを作成します
func NewSizer(unit string) (Sizer, error) {
	switch unit {
	case "", "tokens":
		return NewTokenSizer()
	case "chars":
		return NewRuneSizer(), nil
	default:
		return nil, fmt.Errorf("unknown budget unit: %s", unit)
	}
}

// インターフェース実装の確認
var (
	_ Sizer = (*TokenSizer)(nil)
	_ Sizer = (*RuneSizer)(nil)
)

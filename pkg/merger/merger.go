package merger

import (
	"fmt"
	"strings"

	"github.com/zvdy/documenthor/pkg/prompt"
)

// ValidationError はモデル出力が必要な構造を満たさない場合のエラー
// 呼び出し側に報告され、ディスク上の元文書は変更されない
type ValidationError struct {
	Reason string
}

// Error はエラーメッセージを返します
func (e *ValidationError) Error() string {
	return fmt.Sprintf("merge validation failed: %s", e.Reason)
}

// Merge はモデル出力と既存文書を統合して最終的な文書を返します
//
// generateの場合は構造検証を通過したモデル出力をそのまま返します。
// updateの場合、原文で保護されたセクションはバイト単位で不変のまま
// 出力に現れます。モデル出力に保護セクションのアンカーが見つからない
// 場合でも、そのセクションは原文から復元されます（手で書かれた内容を
// 黙って失わないためのフェイルセーフ）
func Merge(directive prompt.Directive, original, modelOutput string) (string, error) {
	modelOutput = stripResponseWrapping(modelOutput)

	if err := validateStructure(modelOutput); err != nil {
		return "", err
	}

	switch directive {
	case prompt.DirectiveGenerate:
		return modelOutput, nil
	case prompt.DirectiveUpdate:
		return mergeUpdate(original, modelOutput), nil
	default:
		return "", fmt.Errorf("unknown directive: %q", directive)
	}
}

// mergeUpdate は保護セクションを復元しながらモデル出力を採用します
func mergeUpdate(original, modelOutput string) string {
	originalDoc := ParseDocument(original)
	modelDoc := ParseDocument(modelOutput)

	// 保護セクションのアンカー集合
	preserved := make(map[string]Section)
	var preservedOrder []string
	for _, s := range originalDoc.Sections {
		if s.Preserved {
			if _, exists := preserved[s.Anchor]; !exists {
				preserved[s.Anchor] = s
				preservedOrder = append(preservedOrder, s.Anchor)
			}
		}
	}

	var parts []string
	if modelDoc.Prefix != "" {
		parts = append(parts, modelDoc.Prefix)
	}

	restored := make(map[string]bool)
	for _, s := range modelDoc.Sections {
		if originalSection, ok := preserved[s.Anchor]; ok {
			// モデルの書き換えを捨てて原文をバイト単位で復元する
			parts = append(parts, originalSection.Raw)
			restored[s.Anchor] = true
			continue
		}
		parts = append(parts, s.Raw)
	}

	// モデル出力から消えた保護セクションを原文の順序で復元する
	for _, anchor := range preservedOrder {
		if !restored[anchor] {
			parts = append(parts, preserved[anchor].Raw)
		}
	}

	merged := strings.Join(parts, "\n")
	if !strings.HasSuffix(merged, "\n") {
		merged += "\n"
	}
	return merged
}

// validateStructure はモデル出力が文書として成立しているか検証します
// 少なくともタイトル（レベル1見出し）と1つのセクション見出しを要求する
func validateStructure(modelOutput string) error {
	if strings.TrimSpace(modelOutput) == "" {
		return &ValidationError{Reason: "model returned an empty document"}
	}

	doc := ParseDocument(modelOutput)

	if doc.Title() == "" {
		return &ValidationError{Reason: "document has no title heading"}
	}

	sectionCount := 0
	for _, s := range doc.Sections {
		if s.Level >= 2 {
			sectionCount++
		}
	}
	if sectionCount == 0 {
		return &ValidationError{Reason: "document has no section headings"}
	}

	return nil
}

// stripResponseWrapping はモデルが文書全体をコードフェンスで包んで
// 返した場合にそれを剥がします
func stripResponseWrapping(output string) string {
	trimmed := strings.TrimSpace(output)

	if !strings.HasPrefix(trimmed, "```") {
		return output
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return output
	}

	first := strings.TrimSpace(lines[0])
	last := strings.TrimSpace(lines[len(lines)-1])

	// 先頭行が ```markdown のようなフェンスで、末尾行が閉じフェンスの場合のみ
	if strings.Trim(first, "`") != "" && !strings.EqualFold(strings.Trim(first, "`"), "markdown") && strings.Trim(first, "`") != "md" {
		return output
	}
	if strings.Trim(last, "`") != "" {
		return output
	}

	return strings.Join(lines[1:len(lines)-1], "\n") + "\n"
}

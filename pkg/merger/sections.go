package merger

import (
	"strings"
	"unicode"
)

// PreserveMarker は保護セクションを示すセンチネルコメント
// 見出しの直前の行にこのマーカーを置くと、そのセクションは更新時に
// 原文のまま保持される。マーカーのないセクションは生成対象として扱う
const PreserveMarker = "<!-- documenthor:preserve -->"

// Section は見出しで区切られた文書の1領域を表します
type Section struct {
	// Heading は見出し行（# プレフィックスを含む）
	Heading string
	// Level は見出しレベル（#の数）
	Level int
	// Anchor は正規化された見出しテキスト（セクションの照合キー）
	Anchor string
	// Preserved は保護対象かどうか
	Preserved bool
	// Raw はセクションの原文（マーカー行・見出し行・本文を含む）
	// 保護セクションはこのバイト列がそのまま出力に現れる
	Raw string
}

// Document はセクションに分解されたMarkdown文書を表します
type Document struct {
	// Prefix は最初の見出しより前の内容
	Prefix string
	// Sections は出現順のセクションリスト
	Sections []Section
}

// Title は文書の最初のレベル1見出しのアンカーを返します
// 存在しない場合は空文字列
func (d *Document) Title() string {
	for _, s := range d.Sections {
		if s.Level == 1 {
			return s.Anchor
		}
	}
	return ""
}

// FindSection はアンカーが一致する最初のセクションを返します
func (d *Document) FindSection(anchor string) (Section, bool) {
	for _, s := range d.Sections {
		if s.Anchor == anchor {
			return s, true
		}
	}
	return Section{}, false
}

// ParseDocument はMarkdown文書を見出し単位のセクションに分解します
//
// コードフェンス内の # 行は見出しとして扱いません。保護マーカーは
// 直後の見出しのセクションに属し、Rawにも含まれるため、保護セクションの
// 復元はマーカーごと行われます
func ParseDocument(text string) *Document {
	lines := strings.Split(text, "\n")

	doc := &Document{}

	var prefix []string
	var current *Section
	var currentLines []string
	inCodeBlock := false
	pendingMarker := false

	flush := func() {
		if current == nil {
			doc.Prefix = strings.Join(prefix, "\n")
			return
		}
		current.Raw = strings.Join(currentLines, "\n")
		doc.Sections = append(doc.Sections, *current)
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		// コードフェンスの開始/終了を検出
		if strings.HasPrefix(trimmed, "```") {
			inCodeBlock = !inCodeBlock
		}

		isHeading := !inCodeBlock && isHeadingLine(trimmed)

		if isHeading {
			flush()

			level := headingLevel(trimmed)
			section := Section{
				Heading:   line,
				Level:     level,
				Anchor:    NormalizeAnchor(trimmed),
				Preserved: pendingMarker,
			}

			currentLines = nil
			if pendingMarker {
				// マーカー行をセクションの先頭に移す
				currentLines = append(currentLines, PreserveMarker)
				pendingMarker = false
			}
			currentLines = append(currentLines, line)
			current = &section
			continue
		}

		// 保留中のマーカーの次が見出しでなければ通常の行として扱う
		if pendingMarker {
			appendLine(&prefix, &currentLines, current, PreserveMarker)
			pendingMarker = false
		}

		if !inCodeBlock && trimmed == PreserveMarker {
			pendingMarker = true
			continue
		}

		appendLine(&prefix, &currentLines, current, line)
	}

	if pendingMarker {
		appendLine(&prefix, &currentLines, current, PreserveMarker)
	}

	flush()

	return doc
}

// appendLine は現在のセクション（なければ前書き）に行を追加します
func appendLine(prefix *[]string, currentLines *[]string, current *Section, line string) {
	if current == nil {
		*prefix = append(*prefix, line)
		return
	}
	*currentLines = append(*currentLines, line)
}

// isHeadingLine はATX形式の見出し行かどうかを判定します
func isHeadingLine(trimmed string) bool {
	if !strings.HasPrefix(trimmed, "#") {
		return false
	}
	// #の連続の後に空白か行末が必要（#hashtag等を除外）
	rest := strings.TrimLeft(trimmed, "#")
	if len(trimmed)-len(rest) > 6 {
		return false
	}
	return rest == "" || strings.HasPrefix(rest, " ")
}

// headingLevel は見出しレベル（#の数）を返します
func headingLevel(trimmed string) int {
	return len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
}

// NormalizeAnchor は見出しテキストを照合用のアンカーに正規化します
// # プレフィックスと装飾を除き、小文字化して英数字と空白のみを残す
func NormalizeAnchor(heading string) string {
	text := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(heading), "#"))

	var b strings.Builder
	lastSpace := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zvdy/documenthor/pkg/assembler"
	"github.com/zvdy/documenthor/pkg/scanner"
)

// Directive はタスクの種別を表します
// generate/updateの分岐は型階層ではなく、この列挙値を
// Prompt BuilderとMergerに引き回すことで表現する
type Directive string

const (
	// DirectiveGenerate はREADMEを新規生成するタスク
	DirectiveGenerate Directive = "generate"
	// DirectiveUpdate は既存READMEを更新するタスク
	DirectiveUpdate Directive = "update"
)

// Valid はディレクティブが既知の値かどうかを判定します
func (d Directive) Valid() bool {
	return d == DirectiveGenerate || d == DirectiveUpdate
}

// RepoSummary はプロンプトに埋め込むリポジトリの要約情報です
type RepoSummary struct {
	// Name はリポジトリ名
	Name string
	// Languages は言語ごとのファイル数
	Languages map[string]int
	// KeyFiles はプロジェクトを特徴づけるファイルのパス
	KeyFiles []string
	// Structure は含まれるファイルの相対パス一覧
	Structure []string
	// Git はGitメタデータ（ない場合はnil）
	Git *scanner.GitInfo
	// Dropped は予算超過で内容を含められなかったファイルのパス
	Dropped []string
}

// Request はプロンプト構築の入力です
type Request struct {
	// Directive はタスクの種別
	Directive Directive
	// Repository はリポジトリの要約情報
	Repository RepoSummary
	// Chunks はコンテキストチャンク
	Chunks []*assembler.Chunk
	// PriorDocument は既存のREADME本文（updateの場合のみ）
	PriorDocument string
}

// Prompt はモデルに送る完成済みのプロンプトです
// 構築後は変更されない値オブジェクトとして扱います
type Prompt struct {
	// System はシステムプロンプト
	System string
	// User はユーザープロンプト本文
	User string
	// Directive は構築時のタスク種別
	Directive Directive
}

// Build はリクエストからプロンプトを構築します
// 副作用を持たず、同一の入力に対して常に同一のプロンプトを返します
func Build(req Request) (*Prompt, error) {
	if !req.Directive.Valid() {
		return nil, fmt.Errorf("unknown directive: %q", req.Directive)
	}
	if req.Directive == DirectiveUpdate && req.PriorDocument == "" {
		return nil, fmt.Errorf("update directive requires a prior document")
	}
	if len(req.Chunks) == 0 {
		return nil, fmt.Errorf("no context chunks provided")
	}

	var b strings.Builder

	switch req.Directive {
	case DirectiveGenerate:
		b.WriteString(generatePreamble)
	case DirectiveUpdate:
		b.WriteString(updatePreamble)
		b.WriteString("\n\nCurrent README:\n")
		b.WriteString(fence(req.PriorDocument, "markdown"))
	}

	b.WriteString("\n\nREPOSITORY ANALYSIS\n===================\n")

	b.WriteString("\nRepository: ")
	b.WriteString(req.Repository.Name)
	b.WriteString("\n")

	b.WriteString("\nProgramming Languages Detected:\n")
	b.WriteString(formatLanguages(req.Repository.Languages))

	b.WriteString("\nKey Files:\n")
	b.WriteString(formatList(req.Repository.KeyFiles))

	b.WriteString("\nRepository Structure:\n")
	b.WriteString(formatList(req.Repository.Structure))

	if req.Repository.Git != nil {
		b.WriteString("\nGit Repository Information:\n")
		b.WriteString(formatGitInfo(req.Repository.Git))
	}

	if len(req.Repository.Dropped) > 0 {
		b.WriteString("\nNote: the following files exceeded the context budget and their content is NOT included:\n")
		b.WriteString(formatList(req.Repository.Dropped))
	}

	b.WriteString("\nFile Contents:\n")
	for _, chunk := range req.Chunks {
		b.WriteString(serializeChunk(chunk))
	}

	switch req.Directive {
	case DirectiveGenerate:
		b.WriteString(generateRequirements)
	case DirectiveUpdate:
		b.WriteString(updateRequirements)
	}

	return &Prompt{
		System:    systemPrompt,
		User:      b.String(),
		Directive: req.Directive,
	}, nil
}

// serializeChunk はチャンクをプロンプト用のテキストに直列化します
func serializeChunk(chunk *assembler.Chunk) string {
	var b strings.Builder

	for _, file := range chunk.Files {
		b.WriteString("\n--- ")
		b.WriteString(file.Path)
		if file.Language != "" {
			b.WriteString(" (")
			b.WriteString(file.Language)
			b.WriteString(")")
		}
		b.WriteString(" ---\n")
		if file.Truncated {
			b.WriteString(file.TruncationNote)
			b.WriteString("\n")
		}
		b.WriteString(fence(file.Content, ""))
		b.WriteString("\n")
	}

	return b.String()
}

// fence は信頼できない内容をコードフェンスで囲みます
// 内容中の最長のバッククォート列より長いフェンスを使うことで、
// ファイル内容が指示として解釈されることを防ぐ
func fence(content, lang string) string {
	fenceLen := 3
	if longest := longestBacktickRun(content); longest >= fenceLen {
		fenceLen = longest + 1
	}
	marker := strings.Repeat("`", fenceLen)

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString(lang)
	b.WriteString("\n")
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(marker)
	return b.String()
}

// longestBacktickRun は文字列中の最長の連続バッククォート数を返します
func longestBacktickRun(s string) int {
	longest, current := 0, 0
	for _, c := range s {
		if c == '`' {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}

// formatLanguages は言語の内訳を整形します
// ファイル数の降順、同数の場合は言語名の辞書順で安定させる
func formatLanguages(languages map[string]int) string {
	if len(languages) == 0 {
		return "- (no languages detected)\n"
	}

	type langCount struct {
		name  string
		count int
	}

	counts := make([]langCount, 0, len(languages))
	total := 0
	for name, count := range languages {
		counts = append(counts, langCount{name, count})
		total += count
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].name < counts[j].name
	})

	var b strings.Builder
	for _, lc := range counts {
		percentage := float64(lc.count) / float64(total) * 100
		fmt.Fprintf(&b, "- %s: %d files (%.1f%%)\n", lc.name, lc.count, percentage)
	}
	return b.String()
}

// formatList は文字列リストを箇条書きに整形します
func formatList(items []string) string {
	if len(items) == 0 {
		return "- (none)\n"
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return b.String()
}

// formatGitInfo はGitメタデータを整形します
func formatGitInfo(git *scanner.GitInfo) string {
	var b strings.Builder
	if git.RemoteURL != "" {
		fmt.Fprintf(&b, "- Repository URL: %s\n", git.RemoteURL)
	}
	if git.Branch != "" {
		fmt.Fprintf(&b, "- Current Branch: %s\n", git.Branch)
	}
	if git.CommitHash != "" {
		hash := git.CommitHash
		if len(hash) > 8 {
			hash = hash[:8]
		}
		fmt.Fprintf(&b, "- Latest Commit: %s - %s\n", hash, git.CommitMessage)
	}
	return b.String()
}

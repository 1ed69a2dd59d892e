package dataset

import (
	"fmt"
	"strings"
)

const (
	// modelfileMaxExamples はModelfileに埋め込む訓練例の最大数
	// コンテキスト長の小さいローカルモデルでも成立するよう抑えている
	modelfileMaxExamples = 2

	// modelfileMaxPromptChars はMESSAGE userに含める最大文字数
	modelfileMaxPromptChars = 1500

	// modelfileMaxCompletionChars はMESSAGE assistantに含める最大文字数
	modelfileMaxCompletionChars = 2000
)

// modelfileSystemPrompt はファインチューニング済みモデルのシステムプロンプト
const modelfileSystemPrompt = `You are an expert technical documentation writer. You specialize in creating clear, comprehensive README files for software projects. Your documentation should be:

1. Clear and well-structured with proper Markdown formatting
2. Include practical examples and code snippets
3. Cover installation, usage, and API documentation
4. Professional yet accessible tone
5. Based on actual code analysis, not assumptions

Always analyze the repository structure, dependencies, and code to provide accurate documentation.`

// ExportModelfile は訓練例からOllamaのModelfileテキストを生成します
// モデルの作成（ollama create）自体は外部の運用手順に委ねる
func ExportModelfile(baseModel string, examples []Example) string {
	var b strings.Builder

	fmt.Fprintf(&b, "FROM %s\n\n", baseModel)
	fmt.Fprintf(&b, "SYSTEM \"\"\"%s\"\"\"\n\n", modelfileSystemPrompt)

	count := len(examples)
	if count > modelfileMaxExamples {
		count = modelfileMaxExamples
	}

	for _, example := range examples[:count] {
		prompt := clampChars(example.Prompt, modelfileMaxPromptChars)
		completion := clampChars(example.Completion, modelfileMaxCompletionChars)

		fmt.Fprintf(&b, "MESSAGE user \"\"\"%s\"\"\"\n", escapeTripleQuotes(prompt))
		fmt.Fprintf(&b, "MESSAGE assistant \"\"\"%s\"\"\"\n\n", escapeTripleQuotes(completion))
	}

	return b.String()
}

// clampChars は文字列を指定された文字数に切り詰めます
func clampChars(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars]) + "..."
}

// escapeTripleQuotes はModelfileの文字列リテラルを壊す三連引用符を無害化します
func escapeTripleQuotes(s string) string {
	return strings.ReplaceAll(s, `"""`, `\"\"\"`)
}

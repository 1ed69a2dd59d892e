package merger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zvdy/documenthor/pkg/prompt"
)

const originalWithPreserved = `# Demo

An example project.

## Installation

Run make install.

<!-- documenthor:preserve -->
## License

MIT License. Hand-written legal text that must survive byte-for-byte.

## Usage

Old usage text.
`

func TestMerge_GenerateReturnsModelOutput(t *testing.T) {
	output := "# Demo\n\n## Overview\n\nGenerated content.\n"

	merged, err := Merge(prompt.DirectiveGenerate, "", output)
	require.NoError(t, err)
	assert.Equal(t, output, merged)
}

func TestMerge_UpdatePreservesMarkedSectionBytes(t *testing.T) {
	modelOutput := `# Demo

A fresh description.

## Installation

Run go install.

## License

THE MODEL REWROTE THIS AND IT MUST BE DISCARDED.

## Usage

New usage text.
`

	merged, err := Merge(prompt.DirectiveUpdate, originalWithPreserved, modelOutput)
	require.NoError(t, err)

	// 保護セクションは原文のバイト列のまま現れる
	assert.Contains(t, merged, "<!-- documenthor:preserve -->\n## License\n\nMIT License. Hand-written legal text that must survive byte-for-byte.")
	assert.NotContains(t, merged, "THE MODEL REWROTE THIS")

	// 保護されていないセクションはモデルの書き換えが採用される
	assert.Contains(t, merged, "Run go install.")
	assert.Contains(t, merged, "New usage text.")
	assert.NotContains(t, merged, "Old usage text.")
}

func TestMerge_UpdateRestoresDroppedPreservedSection(t *testing.T) {
	// モデル出力にLicenseセクションが存在しない
	modelOutput := `# Demo

A fresh description.

## Installation

Run go install.
`

	merged, err := Merge(prompt.DirectiveUpdate, originalWithPreserved, modelOutput)
	require.NoError(t, err)

	assert.Contains(t, merged, "## License")
	assert.Contains(t, merged, "MIT License. Hand-written legal text that must survive byte-for-byte.")
	assert.Contains(t, merged, PreserveMarker)
}

func TestMerge_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"empty output", "   \n  \n"},
		{"no title", "## Section Only\n\nBody.\n"},
		{"no sections", "# Title Only\n\nJust prose.\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Merge(prompt.DirectiveGenerate, "", tt.output)
			require.Error(t, err)

			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestMerge_ValidationFailureLeavesOriginalUntouched(t *testing.T) {
	// 検証に失敗した場合は結果が返らず、呼び出し側の文書は変更対象にならない
	_, err := Merge(prompt.DirectiveUpdate, originalWithPreserved, "not a document")
	require.Error(t, err)
}

func TestMerge_StripsCodeFenceWrapping(t *testing.T) {
	wrapped := "```markdown\n# Demo\n\n## Overview\n\nContent.\n```"

	merged, err := Merge(prompt.DirectiveGenerate, "", wrapped)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(merged, "# Demo"))
	assert.NotContains(t, merged, "```markdown")
}

func TestMerge_UnknownDirective(t *testing.T) {
	_, err := Merge(prompt.Directive("summarize"), "", "# T\n\n## S\n\nBody.\n")
	assert.Error(t, err)
}

func TestParseDocument_Sections(t *testing.T) {
	doc := ParseDocument(originalWithPreserved)

	require.Len(t, doc.Sections, 4)
	assert.Equal(t, "demo", doc.Title())

	license, ok := doc.FindSection("license")
	require.True(t, ok)
	assert.True(t, license.Preserved)
	assert.Equal(t, 2, license.Level)

	installation, ok := doc.FindSection("installation")
	require.True(t, ok)
	assert.False(t, installation.Preserved)
}

func TestParseDocument_CodeFenceHeadingsIgnored(t *testing.T) {
	text := "# Title\n\n```bash\n# this is a comment, not a heading\necho hi\n```\n\n## Real Section\n\nBody.\n"

	doc := ParseDocument(text)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "title", doc.Sections[0].Anchor)
	assert.Equal(t, "real section", doc.Sections[1].Anchor)

	// フェンス内のコメント行はタイトルセクションの本文に残る
	assert.Contains(t, doc.Sections[0].Raw, "# this is a comment")
}

func TestParseDocument_PrefixBeforeFirstHeading(t *testing.T) {
	text := "badge line\n\n# Title\n\n## Section\n\nBody.\n"

	doc := ParseDocument(text)
	assert.Contains(t, doc.Prefix, "badge line")
	require.Len(t, doc.Sections, 2)
}

func TestNormalizeAnchor(t *testing.T) {
	tests := []struct {
		heading  string
		expected string
	}{
		{"## License", "license"},
		{"##   Getting   Started  ", "getting started"},
		{"# API Reference (v2)", "api reference v2"},
		{"### 使い方", "使い方"},
		{"##", ""},
	}

	for _, tt := range tests {
		t.Run(tt.heading, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeAnchor(tt.heading))
		})
	}
}

func TestIsHeadingLine(t *testing.T) {
	assert.True(t, isHeadingLine("# Title"))
	assert.True(t, isHeadingLine("###### Deep"))
	assert.False(t, isHeadingLine("####### TooDeep"))
	assert.False(t, isHeadingLine("#hashtag"))
	assert.False(t, isHeadingLine("plain text"))
	assert.True(t, isHeadingLine("##"))
}

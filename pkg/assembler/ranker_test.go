package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zvdy/documenthor/pkg/scanner"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		language string
		expected FileCategory
	}{
		{"go module manifest", "go.mod", "Go Module", CategoryManifest},
		{"package.json", "package.json", "JSON", CategoryManifest},
		{"nested manifest", "service/go.mod", "Go Module", CategoryManifest},
		{"main.go entrypoint", "main.go", "Go", CategoryEntrypoint},
		{"nested entrypoint", "cmd/app/main.go", "Go", CategoryEntrypoint},
		{"markdown docs", "CHANGELOG.md", "Markdown", CategoryDocs},
		{"docs directory", "docs/setup.txt", "", CategoryDocs},
		{"dockerfile", "Dockerfile", "Dockerfile", CategoryConfig},
		{"yaml config", "ci.yml", "YAML", CategoryConfig},
		{"go test file", "pkg/util_test.go", "Go", CategoryTest},
		{"python test file", "test_app.py", "Python", CategoryTest},
		{"tests directory", "tests/helper.py", "Python", CategoryTest},
		{"plain source", "pkg/util.go", "Go", CategorySource},
		{"unknown file", "LICENSE", "", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &scanner.Node{Path: tt.path, Language: tt.language}
			assert.Equal(t, tt.expected, Categorize(node))
		})
	}
}

func TestRanker_Score_DepthPenalty(t *testing.T) {
	ranker := NewRanker(nil)

	shallow := &scanner.Node{Path: "util.go", Language: "Go"}
	deep := &scanner.Node{Path: "a/b/c/util.go", Language: "Go"}

	assert.Greater(t, ranker.Score(shallow), ranker.Score(deep),
		"同カテゴリなら浅いファイルが優先される")
	assert.Equal(t, 3*DepthPenalty, ranker.Score(shallow)-ranker.Score(deep))
}

func TestRanker_Rank_StableTieBreak(t *testing.T) {
	ranker := NewRanker(nil)

	nodes := []*scanner.Node{
		{Path: "z.txt"},
		{Path: "a.txt"},
		{Path: "m.txt"},
	}

	ranked := ranker.Rank(nodes)
	assert.Equal(t, "a.txt", ranked[0].Path)
	assert.Equal(t, "m.txt", ranked[1].Path)
	assert.Equal(t, "z.txt", ranked[2].Path)

	// 入力スライスは変更されない
	assert.Equal(t, "z.txt", nodes[0].Path)
}

func TestRanker_CustomWeights(t *testing.T) {
	weights := CategoryWeights{
		CategoryTest:   200,
		CategorySource: 10,
	}
	ranker := NewRanker(weights)

	test := &scanner.Node{Path: "a_test.go", Language: "Go"}
	source := &scanner.Node{Path: "a.go", Language: "Go"}

	assert.Greater(t, ranker.Score(test), ranker.Score(source))
}

func TestSizer_Units(t *testing.T) {
	runeSizer := NewRuneSizer()
	assert.Equal(t, "chars", runeSizer.Unit())
	assert.Equal(t, 5, runeSizer.Size("hello"))
	assert.Equal(t, 3, runeSizer.Size("あいう"), "マルチバイト文字は1文字と数える")

	tokenSizer, err := NewTokenSizer()
	if err != nil {
		t.Skipf("token encoding unavailable: %v", err)
	}
	assert.Equal(t, "tokens", tokenSizer.Unit())
	assert.Equal(t, 0, tokenSizer.Size(""))
	assert.Greater(t, tokenSizer.Size("Hello, World!"), 0)

	_, err = NewSizer("tokens")
	assert.NoError(t, err)
	_, err = NewSizer("chars")
	assert.NoError(t, err)
	_, err = NewSizer("bogus")
	assert.Error(t, err)
}

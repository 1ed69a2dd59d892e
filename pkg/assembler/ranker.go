package assembler

import (
	"path"
	"sort"
	"strings"

	"github.com/zvdy/documenthor/pkg/scanner"
)

// FileCategory はサリエンスランキングで使うファイルの分類
type FileCategory string

const (
	CategoryManifest   FileCategory = "manifest"
	CategoryEntrypoint FileCategory = "entrypoint"
	CategoryDocs       FileCategory = "docs"
	CategoryConfig     FileCategory = "config"
	CategorySource     FileCategory = "source"
	CategoryTest       FileCategory = "test"
	CategoryOther      FileCategory = "other"
)

// CategoryWeights はカテゴリごとの基礎スコア
// リポジトリが予算を超える場合、どの内容を生き残らせるかを決める
// 主要な設計レバーであり、明示的に差し替え可能にしている
type CategoryWeights map[FileCategory]float64

// DefaultWeights はデフォルトの重み設定を返します
// マニフェストとエントリポイントを最優先し、深い階層のファイルほど
// 優先度を下げる
func DefaultWeights() CategoryWeights {
	return CategoryWeights{
		CategoryManifest:   100,
		CategoryEntrypoint: 80,
		CategoryDocs:       60,
		CategoryConfig:     50,
		CategorySource:     40,
		CategoryTest:       20,
		CategoryOther:      10,
	}
}

// DepthPenalty は階層が1段深くなるごとに引かれるスコア
const DepthPenalty = 5.0

// Ranker はファイルのサリエンス（重要度）順位付けを行います
type Ranker struct {
	weights CategoryWeights
}

// NewRanker は新しいRankerを作成します
func NewRanker(weights CategoryWeights) *Ranker {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Ranker{weights: weights}
}

// Score は1ファイルのサリエンススコアを計算します
// スコア = カテゴリの重み - 階層の深さ × DepthPenalty
func (r *Ranker) Score(node *scanner.Node) float64 {
	category := Categorize(node)
	depth := strings.Count(node.Path, "/")
	return r.weights[category] - float64(depth)*DepthPenalty
}

// Rank はファイルをスコアの降順に並べ替えた新しいスライスを返します
// 同スコアの場合はパスの辞書順で安定し、同一入力に対して常に同じ順序を
// 返します
func (r *Ranker) Rank(nodes []*scanner.Node) []*scanner.Node {
	ranked := make([]*scanner.Node, len(nodes))
	copy(ranked, nodes)

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := r.Score(ranked[i]), r.Score(ranked[j])
		if si != sj {
			return si > sj
		}
		return ranked[i].Path < ranked[j].Path
	})

	return ranked
}

// entrypointNames はエントリポイントとみなすファイル名
var entrypointNames = map[string]struct{}{
	"main.go":   {},
	"main.py":   {},
	"app.py":    {},
	"main.rs":   {},
	"index.js":  {},
	"index.ts":  {},
	"server.js": {},
	"main.c":    {},
	"Main.java": {},
}

// manifestNames は依存関係マニフェストとみなすファイル名
var manifestNames = map[string]struct{}{
	"go.mod":           {},
	"package.json":     {},
	"requirements.txt": {},
	"pyproject.toml":   {},
	"Cargo.toml":       {},
	"pom.xml":          {},
	"build.gradle":     {},
	"composer.json":    {},
	"Gemfile":          {},
}

// configNames は設定ファイルとみなすファイル名
var configNames = map[string]struct{}{
	"Dockerfile":          {},
	"docker-compose.yml":  {},
	"docker-compose.yaml": {},
	"Makefile":            {},
	".env.example":        {},
}

// configExtensions は設定ファイルとみなす拡張子
var configExtensions = map[string]struct{}{
	".yml": {}, ".yaml": {}, ".toml": {}, ".ini": {}, ".json": {},
}

// Categorize はファイルをカテゴリに分類します
func Categorize(node *scanner.Node) FileCategory {
	base := path.Base(node.Path)

	if _, ok := manifestNames[base]; ok {
		return CategoryManifest
	}
	if _, ok := entrypointNames[base]; ok {
		return CategoryEntrypoint
	}

	if node.Language == "Markdown" || strings.HasPrefix(node.Path, "docs/") {
		return CategoryDocs
	}

	if _, ok := configNames[base]; ok {
		return CategoryConfig
	}
	if _, ok := configExtensions[path.Ext(base)]; ok {
		return CategoryConfig
	}

	if isTestFile(node.Path) {
		return CategoryTest
	}

	if node.Language != "" {
		return CategorySource
	}

	return CategoryOther
}

// isTestFile はテストファイルかどうかを判定します
func isTestFile(relPath string) bool {
	base := path.Base(relPath)
	if strings.HasSuffix(base, "_test.go") {
		return true
	}
	if strings.HasPrefix(base, "test_") || strings.HasSuffix(base, ".test.js") || strings.HasSuffix(base, ".spec.ts") {
		return true
	}
	for _, dir := range strings.Split(path.Dir(relPath), "/") {
		if dir == "test" || dir == "tests" || dir == "__tests__" || dir == "spec" {
			return true
		}
	}
	return false
}

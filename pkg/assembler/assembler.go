package assembler

import (
	"fmt"

	"github.com/zvdy/documenthor/pkg/scanner"
)

// DefaultMaxChunks は1リポジトリあたりのチャンク数の既定上限
const DefaultMaxChunks = 4

// FileExcerpt はチャンクに含まれる1ファイル分の抜粋です
type FileExcerpt struct {
	// Path はリポジトリルートからの相対パス
	Path string
	// Language は検出された言語
	Language string
	// Content はファイル内容の抜粋
	Content string
	// Truncated は予算超過により内容が切り詰められたかどうか
	Truncated bool
	// TruncationNote は切り詰めを明示するマーカー（Truncated=trueの場合のみ）
	// モデルには常に情報が削られたことが伝わる
	TruncationNote string
}

// Chunk は予算内に収めたコンテキストの1単位です
// 構築後は変更されません
type Chunk struct {
	// Index はチャンクの通し番号（0始まり）
	Index int
	// Files は抜粋のリスト（サリエンス順）
	Files []FileExcerpt
	// Size はContent部分の累積サイズ
	Size int
}

// Result はコンテキスト組み立ての結果です
type Result struct {
	// Chunks は組み立てられたチャンクのリスト
	Chunks []*Chunk
	// Dropped はチャンク数上限により内容を含められなかったファイルのパス
	Dropped []string
	// Budget は1チャンクあたりの予算
	Budget int
	// Unit は予算の単位名
	Unit string
}

// Options はアセンブラの設定
type Options struct {
	// Budget は1チャンクあたりのサイズ上限
	Budget int
	// MaxChunks はチャンク数の上限（0でデフォルト）
	MaxChunks int
	// Weights はサリエンスランキングの重み（nilでデフォルト）
	Weights CategoryWeights
}

// Assembler はスキャン結果からコンテキストチャンクを組み立てます
type Assembler struct {
	sizer     Sizer
	budget    int
	maxChunks int
	ranker    *Ranker
}

// New は新しいAssemblerを作成します
func New(sizer Sizer, opts Options) (*Assembler, error) {
	if opts.Budget <= 0 {
		return nil, fmt.Errorf("budget must be positive, got %d", opts.Budget)
	}

	maxChunks := opts.MaxChunks
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}

	return &Assembler{
		sizer:     sizer,
		budget:    opts.Budget,
		maxChunks: maxChunks,
		ranker:    NewRanker(opts.Weights),
	}, nil
}

// Assemble はスキャン結果からチャンクを組み立てます
//
// ファイルはサリエンススコアの降順に貪欲法で詰め込まれ、1ファイルの内容は
// 必ず1つのチャンクに丸ごと収まります（途中で分割されない）。予算単体を
// 超えるファイルは切り捨てマーカー付きで切り詰められます。
// 同一のスキャン結果と設定に対して常に同じチャンク列を生成します。
func (a *Assembler) Assemble(scan *scanner.Scan) (*Result, error) {
	ranked := a.ranker.Rank(scan.IncludedFiles())

	result := &Result{
		Budget: a.budget,
		Unit:   a.sizer.Unit(),
	}

	current := &Chunk{Index: 0}

	for _, node := range ranked {
		excerpt := a.excerptFor(node)
		size := a.sizer.Size(excerpt.Content)

		if current.Size+size > a.budget && len(current.Files) > 0 {
			// 現在のチャンクに収まらないので閉じて次へ
			result.Chunks = append(result.Chunks, current)
			if len(result.Chunks) >= a.maxChunks {
				current = nil
			} else {
				current = &Chunk{Index: len(result.Chunks)}
			}
		}

		if current == nil {
			// チャンク数上限に達したため、残りは内容を含められない
			result.Dropped = append(result.Dropped, node.Path)
			continue
		}

		current.Files = append(current.Files, excerpt)
		current.Size += size
	}

	if current != nil && len(current.Files) > 0 {
		result.Chunks = append(result.Chunks, current)
	}

	return result, nil
}

// excerptFor は1ファイル分の抜粋を作成します
// 予算単体を超えるファイルは、落とすのではなく切り詰めて含めます
func (a *Assembler) excerptFor(node *scanner.Node) FileExcerpt {
	content := string(node.Content)
	excerpt := FileExcerpt{
		Path:     node.Path,
		Language: node.Language,
	}

	size := a.sizer.Size(content)
	if size <= a.budget {
		excerpt.Content = content
		return excerpt
	}

	excerpt.Content = a.truncate(content, a.budget)
	excerpt.Truncated = true
	excerpt.TruncationNote = fmt.Sprintf(
		"[truncated: file is %d %s, exceeds the %d %s context budget]",
		size, a.sizer.Unit(), a.budget, a.sizer.Unit(),
	)
	return excerpt
}

// truncate は予算内に収まる最長の先頭部分を返します
// rune数に対する二分探索でサイズ計測の回数を抑える
func (a *Assembler) truncate(content string, budget int) string {
	runes := []rune(content)

	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if a.sizer.Size(string(runes[:mid])) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	return string(runes[:lo])
}

package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

const (
	// DefaultMaxFileSize はコンテキストに含める1ファイルの最大サイズ
	DefaultMaxFileSize = 1 * 1024 * 1024

	// binarySniffSize はバイナリ判定に使う先頭バイト数
	binarySniffSize = 8 * 1024
)

// NodeKind はノードの種別を表します
type NodeKind string

const (
	// NodeKindFile はファイルノード
	NodeKindFile NodeKind = "file"
	// NodeKindDirectory はディレクトリノード
	NodeKindDirectory NodeKind = "directory"
)

// 除外理由を表す定数
const (
	ExcludeReasonIgnored    = "ignored"
	ExcludeReasonTooLarge   = "too_large"
	ExcludeReasonBinary     = "binary"
	ExcludeReasonVendored   = "vendored"
	ExcludeReasonGenerated  = "generated"
	ExcludeReasonUnreadable = "unreadable"
)

// Node はリポジトリツリーの1ノードを表します
// スキャン完了後は変更されません
type Node struct {
	// Path はリポジトリルートからの相対パス（スラッシュ区切り）
	Path string
	// Kind はノードの種別
	Kind NodeKind
	// Size はファイルサイズ（バイト）
	Size int64
	// Language は検出された言語（検出できない場合は空文字列）
	Language string
	// Include はフィルタを通過したかどうか
	Include bool
	// ExcludeReason は除外された理由（Include=falseの場合のみ）
	ExcludeReason string
	// Content はファイル内容（Include=trueのファイルのみ保持）
	Content []byte
}

// ScanError はスキャン中に回復したエラーを表します
// スキャン自体は中断せず、対象ノードを除外して記録します
type ScanError struct {
	Path string
	Err  error
}

// Error はエラーメッセージを返します
func (e ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

// Scan はスキャン結果を表します
// 1回のスキャンで確定し、以降は読み取り専用です
type Scan struct {
	// Root はスキャンしたリポジトリのルートパス
	Root string
	// Nodes は決定的な順序（パスの辞書順、深さ優先）のノードリスト
	Nodes []*Node
	// Errors はスキャン中に回復したエラーのリスト
	Errors []ScanError
	// Git はGitリポジトリのメタデータ（Gitリポジトリでない場合はnil）
	Git *GitInfo
}

// IncludedFiles はフィルタを通過したファイルノードを返します
func (s *Scan) IncludedFiles() []*Node {
	var files []*Node
	for _, node := range s.Nodes {
		if node.Kind == NodeKindFile && node.Include {
			files = append(files, node)
		}
	}
	return files
}

// Languages は含まれるファイルの言語ごとのファイル数を返します
func (s *Scan) Languages() map[string]int {
	counts := make(map[string]int)
	for _, node := range s.IncludedFiles() {
		if node.Language != "" {
			counts[node.Language]++
		}
	}
	return counts
}

// KeyFiles はマニフェストや設定など、プロジェクトを特徴づけるファイルのパスを返します
func (s *Scan) KeyFiles() []string {
	var keyFiles []string
	for _, node := range s.IncludedFiles() {
		if isKeyFile(node.Path) {
			keyFiles = append(keyFiles, node.Path)
		}
	}
	return keyFiles
}

// ExcludedCount は除外されたファイル数を理由ごとに返します
func (s *Scan) ExcludedCount() map[string]int {
	counts := make(map[string]int)
	for _, node := range s.Nodes {
		if node.Kind == NodeKindFile && !node.Include {
			counts[node.ExcludeReason]++
		}
	}
	return counts
}

// Options はスキャナの設定
type Options struct {
	// MaxFileSize は読み込む1ファイルの最大サイズ（バイト、0でデフォルト）
	MaxFileSize int64
	// ExtraExcludes は追加の除外パターン（gitignore形式）
	ExtraExcludes []string
}

// Scanner はリポジトリツリーを走査し、ノードリストを構築します
type Scanner struct {
	maxFileSize   int64
	extraExcludes []string
}

// New は新しいScannerを作成します
func New(opts Options) *Scanner {
	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Scanner{
		maxFileSize:   maxFileSize,
		extraExcludes: opts.ExtraExcludes,
	}
}

// Scan はルートパス配下を走査してスキャン結果を返します
// ルートパスが不正な場合のみエラーを返し、個々のファイルの読み取り失敗は
// ScanErrorとして記録して続行します
func (s *Scanner) Scan(ctx context.Context, root string) (*Scan, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("root path not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	ignoreFilter, err := NewIgnoreFilter(absRoot, s.extraExcludes)
	if err != nil {
		return nil, fmt.Errorf("failed to build ignore filter: %w", err)
	}

	scan := &Scan{
		Root: absRoot,
		Git:  readGitInfo(absRoot),
	}

	// シンボリックリンク循環の検出用
	visited := make(map[string]struct{})
	if realRoot, err := filepath.EvalSymlinks(absRoot); err == nil {
		visited[realRoot] = struct{}{}
	}

	if err := s.walkDir(ctx, scan, ignoreFilter, absRoot, "", visited); err != nil {
		return nil, err
	}

	return scan, nil
}

// walkDir はディレクトリを深さ優先・辞書順で走査します
// エントリは名前の辞書順に処理され、同一入力に対して常に同じ順序のノード
// リストを生成します
func (s *Scanner) walkDir(ctx context.Context, scan *Scan, ignoreFilter *IgnoreFilter, absDir, relDir string, visited map[string]struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		// ディレクトリが読めない場合は記録して続行
		scan.Errors = append(scan.Errors, ScanError{Path: relDir, Err: err})
		return nil
	}

	// os.ReadDirはソート済みだが、順序の不変条件なので明示する
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		relPath := path.Join(relDir, entry.Name())
		absPath := filepath.Join(absDir, entry.Name())

		isDir := entry.IsDir()
		isSymlink := entry.Type()&fs.ModeSymlink != 0

		if isSymlink {
			// リンク先の実体を確認する
			target, err := os.Stat(absPath)
			if err != nil {
				scan.Errors = append(scan.Errors, ScanError{Path: relPath, Err: err})
				scan.Nodes = append(scan.Nodes, &Node{
					Path: relPath, Kind: NodeKindFile,
					Include: false, ExcludeReason: ExcludeReasonUnreadable,
				})
				continue
			}
			isDir = target.IsDir()
		}

		if isDir {
			node := &Node{Path: relPath, Kind: NodeKindDirectory, Include: true}

			if ignoreFilter.ShouldIgnore(relPath) || ignoreFilter.ShouldIgnore(relPath+"/") {
				node.Include = false
				node.ExcludeReason = ExcludeReasonIgnored
				scan.Nodes = append(scan.Nodes, node)
				continue
			}

			if isSymlink {
				// 解決済みパスで訪問済みかどうかを確認し、循環を遮断する
				realPath, err := filepath.EvalSymlinks(absPath)
				if err != nil {
					scan.Errors = append(scan.Errors, ScanError{Path: relPath, Err: err})
					node.Include = false
					node.ExcludeReason = ExcludeReasonUnreadable
					scan.Nodes = append(scan.Nodes, node)
					continue
				}
				if _, seen := visited[realPath]; seen {
					node.Include = false
					node.ExcludeReason = ExcludeReasonIgnored
					scan.Nodes = append(scan.Nodes, node)
					continue
				}
				visited[realPath] = struct{}{}
			}

			scan.Nodes = append(scan.Nodes, node)
			if err := s.walkDir(ctx, scan, ignoreFilter, absPath, relPath, visited); err != nil {
				return err
			}
			continue
		}

		scan.Nodes = append(scan.Nodes, s.scanFile(scan, ignoreFilter, absPath, relPath))
	}

	return nil
}

// scanFile は1ファイルを分類してノードを作成します
func (s *Scanner) scanFile(scan *Scan, ignoreFilter *IgnoreFilter, absPath, relPath string) *Node {
	node := &Node{Path: relPath, Kind: NodeKindFile}

	info, err := os.Stat(absPath)
	if err != nil {
		scan.Errors = append(scan.Errors, ScanError{Path: relPath, Err: err})
		node.ExcludeReason = ExcludeReasonUnreadable
		return node
	}
	node.Size = info.Size()

	if ignoreFilter.ShouldIgnore(relPath) {
		node.ExcludeReason = ExcludeReasonIgnored
		return node
	}

	if node.Size > s.maxFileSize {
		node.ExcludeReason = ExcludeReasonTooLarge
		return node
	}

	if hasBinaryExtension(relPath) {
		node.ExcludeReason = ExcludeReasonBinary
		return node
	}

	if enry.IsVendor(relPath) {
		node.ExcludeReason = ExcludeReasonVendored
		return node
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		scan.Errors = append(scan.Errors, ScanError{Path: relPath, Err: err})
		node.ExcludeReason = ExcludeReasonUnreadable
		return node
	}

	sniff := content
	if len(sniff) > binarySniffSize {
		sniff = sniff[:binarySniffSize]
	}
	if enry.IsBinary(sniff) {
		node.ExcludeReason = ExcludeReasonBinary
		return node
	}

	if enry.IsGenerated(relPath, content) {
		node.ExcludeReason = ExcludeReasonGenerated
		return node
	}

	node.Language = enry.GetLanguage(filepath.Base(relPath), content)
	node.Include = true
	node.Content = content
	return node
}

// hasBinaryExtension は既知のバイナリ拡張子かどうかを判定します
func hasBinaryExtension(relPath string) bool {
	ext := strings.ToLower(path.Ext(relPath))
	_, ok := binaryExtensions[ext]
	return ok
}

// binaryExtensions は内容を確認するまでもなくバイナリとみなす拡張子
var binaryExtensions = map[string]struct{}{
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".bin": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {}, ".webp": {},
	".pdf": {}, ".zip": {}, ".tar": {}, ".gz": {}, ".bz2": {}, ".7z": {}, ".rar": {},
	".jar": {}, ".war": {}, ".class": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
	".mp3": {}, ".mp4": {}, ".wav": {}, ".avi": {}, ".mov": {},
	".db": {}, ".sqlite": {}, ".sqlite3": {},
	".pyc": {}, ".pyo": {}, ".wasm": {},
}

// keyFileNames はプロジェクトを特徴づけるファイル名
var keyFileNames = map[string]struct{}{
	"README.md":          {},
	"readme.md":          {},
	"README.txt":         {},
	"package.json":       {},
	"requirements.txt":   {},
	"pyproject.toml":     {},
	"Cargo.toml":         {},
	"go.mod":             {},
	"pom.xml":            {},
	"build.gradle":       {},
	"composer.json":      {},
	"Gemfile":            {},
	"Makefile":           {},
	"Dockerfile":         {},
	"docker-compose.yml":  {},
	"docker-compose.yaml": {},
	".env.example":       {},
	"config.yml":         {},
	"config.yaml":        {},
	"config.json":        {},
}

// isKeyFile はプロジェクトを特徴づけるファイルかどうかを判定します
func isKeyFile(relPath string) bool {
	_, ok := keyFileNames[path.Base(relPath)]
	return ok
}

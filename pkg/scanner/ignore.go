package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFilter は .gitignore と .documenthorignore のパターンマッチングを提供します
type IgnoreFilter struct {
	patterns *gitignore.GitIgnore
}

// NewIgnoreFilter は新しいIgnoreFilterを作成します
// repoPath 配下の .gitignore と .documenthorignore を読み込み、
// デフォルトの除外パターンと合成します
func NewIgnoreFilter(repoPath string, extraPatterns []string) (*IgnoreFilter, error) {
	var patterns []string

	for _, name := range []string{".gitignore", ".documenthorignore"} {
		ignorePath := filepath.Join(repoPath, name)
		if _, err := os.Stat(ignorePath); err != nil {
			continue
		}
		filePatterns, err := readIgnoreFile(ignorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		patterns = append(patterns, filePatterns...)
	}

	patterns = append(patterns, defaultIgnorePatterns()...)
	patterns = append(patterns, extraPatterns...)

	return &IgnoreFilter{
		patterns: gitignore.CompileIgnoreLines(patterns...),
	}, nil
}

// ShouldIgnore はパスが除外対象かどうかを判定します
func (f *IgnoreFilter) ShouldIgnore(path string) bool {
	if f.patterns == nil {
		return false
	}
	return f.patterns.MatchesPath(path)
}

// readIgnoreFile は ignore ファイルを読み込んでパターンのスライスを返します
func readIgnoreFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimRight(line, "\r")
		// 空行とコメント行をスキップ
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}

	return patterns, nil
}

// defaultIgnorePatterns はデフォルトの除外パターンを返します
func defaultIgnorePatterns() []string {
	return []string{
		// Git関連
		".git",
		".gitattributes",
		".gitmodules",

		// 依存関係・ビルド成果物
		"node_modules",
		"vendor",
		"__pycache__",
		".venv",
		"venv",
		"dist",
		"build",
		"target",
		"out",
		"bin",
		"obj",
		".next",
		".nuxt",

		// IDE/エディタ関連
		".vscode",
		".idea",
		".DS_Store",
		"*.swp",
		"*.swo",
		"*~",

		// ログ・一時ファイル
		"*.log",
		"logs",
		"*.tmp",
		"tmp",
		"temp",

		// 環境変数・機密情報
		".env",
		".env.local",
		"*.pem",
		"*.key",
		"*.crt",
		"*.p12",

		// コンパイル済み成果物
		"*.pyc",
		"*.pyo",
		"*.pyd",
		"*.class",
		"*.o",
		"*.a",

		// テストカバレッジ
		"coverage",
		"*.coverage",
		"coverage.out",
	}
}

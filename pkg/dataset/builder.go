package dataset

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zvdy/documenthor/pkg/assembler"
	"github.com/zvdy/documenthor/pkg/prompt"
	"github.com/zvdy/documenthor/pkg/scanner"
)

// Example は1つの訓練例（プロンプトと模範となる完成文書の対）を表します
// 一度書き込まれた後は変更されません
type Example struct {
	// ID は訓練例の識別子
	ID uuid.UUID `json:"id"`
	// Repository は由来のリポジトリ名
	Repository string `json:"repository"`
	// PromptHash はプロンプト内容のSHA-256ハッシュ（重複排除キー）
	PromptHash string `json:"prompt_hash"`
	// Prompt はモデルへの入力
	Prompt string `json:"prompt"`
	// Completion は模範となる出力（既知の良いREADME）
	Completion string `json:"completion"`
	// CreatedAt は作成日時
	CreatedAt time.Time `json:"created_at"`
}

// IntegrityError はデータセット構築中にスキップした例の記録です
// 構築自体は中断せず、該当リポジトリだけを除外して続行する
type IntegrityError struct {
	Repository string
	Reason     string
}

// Error はエラーメッセージを返します
func (e IntegrityError) Error() string {
	return fmt.Sprintf("dataset example %s: %s", e.Repository, e.Reason)
}

// Report はデータセット構築の結果です
type Report struct {
	// Added は新たに追加された例の数
	Added int
	// Duplicates はハッシュ衝突によりスキップされた例の数
	Duplicates int
	// Skipped はサイズ超過等によりスキップされた例の数
	Skipped int
	// Errors はスキップの詳細
	Errors []IntegrityError
}

// Options はデータセット構築の設定
type Options struct {
	// ExampleBudget はprompt+completionの合計サイズ上限
	ExampleBudget int
}

// Builder は例示リポジトリのコーパスから訓練データセットを構築します
// ScannerとAssemblerをドキュメント生成パイプラインと共有する
type Builder struct {
	scanner       *scanner.Scanner
	assembler     *assembler.Assembler
	sizer         assembler.Sizer
	exampleBudget int
}

// NewBuilder は新しいBuilderを作成します
func NewBuilder(scn *scanner.Scanner, asm *assembler.Assembler, sizer assembler.Sizer, opts Options) *Builder {
	return &Builder{
		scanner:       scn,
		assembler:     asm,
		sizer:         sizer,
		exampleBudget: opts.ExampleBudget,
	}
}

// Build はコーパスディレクトリから訓練例を構築し、JSONLアーティファクトに
// 追記します
//
// コーパスはサブディレクトリごとに1リポジトリで、それぞれが既知の良い
// README.mdを持つことを期待します。プロンプトハッシュが既出の例は追加
// されないため、変更のないコーパスに対する再構築は冪等です。
func (b *Builder) Build(ctx context.Context, corpusDir, artifactPath string) (*Report, error) {
	entries, err := os.ReadDir(corpusDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	existing, err := loadExistingHashes(artifactPath)
	if err != nil {
		return nil, err
	}

	artifact, err := os.OpenFile(artifactPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset artifact: %w", err)
	}
	defer artifact.Close()

	// 決定的な順序で処理する
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	report := &Report{}
	encoder := json.NewEncoder(artifact)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !entry.IsDir() {
			continue
		}

		repoName := entry.Name()
		repoPath := filepath.Join(corpusDir, repoName)

		example, buildErr := b.buildExample(ctx, repoName, repoPath)
		if buildErr != nil {
			report.Skipped++
			report.Errors = append(report.Errors, IntegrityError{Repository: repoName, Reason: buildErr.Error()})
			slog.Warn("訓練例の構築をスキップしました", "repository", repoName, "reason", buildErr)
			continue
		}

		if _, seen := existing[example.PromptHash]; seen {
			report.Duplicates++
			continue
		}

		if err := encoder.Encode(example); err != nil {
			return report, fmt.Errorf("failed to append example: %w", err)
		}
		existing[example.PromptHash] = struct{}{}
		report.Added++
	}

	return report, nil
}

// buildExample は1リポジトリから訓練例を作成します
func (b *Builder) buildExample(ctx context.Context, repoName, repoPath string) (*Example, error) {
	readmePath := filepath.Join(repoPath, "README.md")
	completion, err := os.ReadFile(readmePath)
	if err != nil {
		return nil, fmt.Errorf("no readable README.md: %w", err)
	}

	scan, err := b.scanner.Scan(ctx, repoPath)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	result, err := b.assembler.Assemble(scan)
	if err != nil {
		return nil, fmt.Errorf("assembly failed: %w", err)
	}
	if len(result.Chunks) == 0 {
		return nil, fmt.Errorf("repository has no includable content")
	}

	built, err := prompt.Build(prompt.Request{
		Directive: prompt.DirectiveGenerate,
		Repository: prompt.RepoSummary{
			Name:      repoName,
			Languages: scan.Languages(),
			KeyFiles:  scan.KeyFiles(),
			Structure: includedPaths(scan),
			Git:       scan.Git,
			Dropped:   result.Dropped,
		},
		Chunks: result.Chunks,
	})
	if err != nil {
		return nil, fmt.Errorf("prompt build failed: %w", err)
	}

	// サイズ超過の例は切り詰めずに除外する
	// 切り詰めた訓練ターゲットは、切り詰められた出力をモデルに教えてしまう
	totalSize := b.sizer.Size(built.User) + b.sizer.Size(string(completion))
	if b.exampleBudget > 0 && totalSize > b.exampleBudget {
		return nil, fmt.Errorf("example size %d exceeds budget %d %s", totalSize, b.exampleBudget, b.sizer.Unit())
	}

	hash := sha256.Sum256([]byte(built.User))

	return &Example{
		ID:         uuid.New(),
		Repository: repoName,
		PromptHash: hex.EncodeToString(hash[:]),
		Prompt:     built.User,
		Completion: string(completion),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// includedPaths はスキャン結果から含まれるファイルのパス一覧を返します
func includedPaths(scan *scanner.Scan) []string {
	files := scan.IncludedFiles()
	paths := make([]string, 0, len(files))
	for _, node := range files {
		paths = append(paths, node.Path)
	}
	return paths
}

// loadExistingHashes は既存アーティファクトからプロンプトハッシュを読み込みます
func loadExistingHashes(artifactPath string) (map[string]struct{}, error) {
	hashes := make(map[string]struct{})

	file, err := os.Open(artifactPath)
	if err != nil {
		if os.IsNotExist(err) {
			return hashes, nil
		}
		return nil, fmt.Errorf("failed to open existing artifact: %w", err)
	}
	defer file.Close()

	scn := bufio.NewScanner(file)
	scn.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scn.Scan() {
		line := scn.Bytes()
		if len(line) == 0 {
			continue
		}
		var example Example
		if err := json.Unmarshal(line, &example); err != nil {
			// 壊れた行は無視して続行（既存データの破損で構築を止めない）
			slog.Warn("アーティファクトに不正な行があります", "path", artifactPath, "error", err)
			continue
		}
		hashes[example.PromptHash] = struct{}{}
	}
	if err := scn.Err(); err != nil {
		return nil, fmt.Errorf("failed to read existing artifact: %w", err)
	}

	return hashes, nil
}

// ReadExamples はJSONLアーティファクトから訓練例を読み込みます
func ReadExamples(artifactPath string) ([]Example, error) {
	file, err := os.Open(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset artifact: %w", err)
	}
	defer file.Close()

	var examples []Example
	scn := bufio.NewScanner(file)
	scn.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scn.Scan() {
		line := scn.Bytes()
		if len(line) == 0 {
			continue
		}
		var example Example
		if err := json.Unmarshal(line, &example); err != nil {
			return nil, fmt.Errorf("corrupt example in %s: %w", artifactPath, err)
		}
		examples = append(examples, example)
	}
	if err := scn.Err(); err != nil {
		return nil, err
	}

	return examples, nil
}

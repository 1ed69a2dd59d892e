package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/zvdy/documenthor/pkg/assembler"
	"github.com/zvdy/documenthor/pkg/inference"
	"github.com/zvdy/documenthor/pkg/merger"
	"github.com/zvdy/documenthor/pkg/prompt"
	"github.com/zvdy/documenthor/pkg/scanner"
)

// Stage はパイプラインの処理段階を表します
type Stage string

const (
	StageScan      Stage = "scan"
	StageAssemble  Stage = "assemble"
	StagePrompt    Stage = "prompt"
	StageInference Stage = "inference"
	StageMerge     Stage = "merge"
	StageWrite     Stage = "write"
)

// StageError はどの段階で失敗したかを保持するエラーです
// 呼び出し側（CLI）は段階ごとに異なる終了コードへ対応付ける
type StageError struct {
	Stage Stage
	Err   error
}

// Error はエラーメッセージを返します
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap はラップされたエラーを返します
func (e *StageError) Unwrap() error {
	return e.Err
}

// Task は1リポジトリ分の処理内容を表します
type Task struct {
	// RepoPath はリポジトリのルートパス
	RepoPath string
	// Directive はタスクの種別（generate / update）
	Directive prompt.Directive
	// Model は使用するモデル識別子
	Model string
	// OutputFile は出力するREADMEのファイル名（リポジトリからの相対パス）
	OutputFile string
}

// Outcome は1リポジトリ分の処理結果です
type Outcome struct {
	// RunID は実行の識別子
	RunID uuid.UUID
	// Repository は処理したリポジトリのパス
	Repository string
	// OutputPath は書き込まれた文書のパス
	OutputPath string
	// Document は最終的な文書の内容
	Document string
	// Model は実際に使用されたモデル識別子
	Model string
	// Truncated はモデル出力が途中で打ち切られていたかどうか
	Truncated bool
	// ChunkCount は組み立てられたチャンク数
	ChunkCount int
	// DroppedFiles は予算超過で内容を含められなかったファイル数
	DroppedFiles int
}

// GenerateOptions は生成呼び出しの設定
type GenerateOptions struct {
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Runner は1リポジトリをスキャンから文書出力まで処理します
// リポジトリ内の処理は厳密に逐次で、Mergerは常に完全なレスポンスを
// 受け取ります
type Runner struct {
	scanner   *scanner.Scanner
	assembler *assembler.Assembler
	client    inference.Client
	opts      GenerateOptions
}

// NewRunner は新しいRunnerを作成します
func NewRunner(scn *scanner.Scanner, asm *assembler.Assembler, client inference.Client, opts GenerateOptions) *Runner {
	return &Runner{
		scanner:   scn,
		assembler: asm,
		client:    client,
		opts:      opts,
	}
}

// Run は1リポジトリを処理して結果を返します
//
// 失敗はStageErrorとして返され、呼び出し側でどの段階の失敗かを判別
// できます。マージ検証に失敗した場合、ディスク上の既存文書は変更
// されません
func (r *Runner) Run(ctx context.Context, task Task) (*Outcome, error) {
	runID := uuid.New()
	log := slog.With("runID", runID, "repo", task.RepoPath, "directive", task.Directive)

	outputFile := task.OutputFile
	if outputFile == "" {
		outputFile = "README.md"
	}

	model := task.Model
	if model == "" {
		model = r.opts.Model
	}

	// 1. スキャン
	scan, err := r.scanner.Scan(ctx, task.RepoPath)
	if err != nil {
		return nil, &StageError{Stage: StageScan, Err: err}
	}
	log.Info("リポジトリをスキャンしました",
		"files", len(scan.IncludedFiles()),
		"languages", len(scan.Languages()),
		"scanErrors", len(scan.Errors),
	)

	// 2. コンテキスト組み立て
	result, err := r.assembler.Assemble(scan)
	if err != nil {
		return nil, &StageError{Stage: StageAssemble, Err: err}
	}
	if len(result.Chunks) == 0 {
		return nil, &StageError{Stage: StageAssemble, Err: fmt.Errorf("repository has no includable content")}
	}
	log.Info("コンテキストを組み立てました",
		"chunks", len(result.Chunks),
		"dropped", len(result.Dropped),
		"budget", result.Budget,
		"unit", result.Unit,
	)

	// 3. 既存文書の読み込み（update時のみ）
	directive := task.Directive
	outputPath := filepath.Join(task.RepoPath, outputFile)

	var priorDocument string
	if directive == prompt.DirectiveUpdate {
		content, readErr := os.ReadFile(outputPath)
		if readErr != nil && !os.IsNotExist(readErr) {
			return nil, &StageError{Stage: StageScan, Err: fmt.Errorf("failed to read existing document: %w", readErr)}
		}
		priorDocument = string(content)
		// 既存文書がない、または空の場合はgenerateに切り替える
		if strings.TrimSpace(priorDocument) == "" {
			log.Info("既存のREADMEが見つからないため、新規生成に切り替えます")
			directive = prompt.DirectiveGenerate
			priorDocument = ""
		}
	}

	// 4. プロンプト構築
	built, err := prompt.Build(prompt.Request{
		Directive: directive,
		Repository: prompt.RepoSummary{
			Name:      filepath.Base(scan.Root),
			Languages: scan.Languages(),
			KeyFiles:  scan.KeyFiles(),
			Structure: includedPaths(scan),
			Git:       scan.Git,
			Dropped:   result.Dropped,
		},
		Chunks:        result.Chunks,
		PriorDocument: priorDocument,
	})
	if err != nil {
		return nil, &StageError{Stage: StagePrompt, Err: err}
	}

	// 5. 推論（レスポンスは完全に消費されてから返る）
	response, err := r.client.Generate(ctx, inference.Request{
		Model:       model,
		Prompt:      built.User,
		System:      built.System,
		Temperature: r.opts.Temperature,
		TopP:        r.opts.TopP,
		MaxTokens:   r.opts.MaxTokens,
	})
	if err != nil {
		return nil, &StageError{Stage: StageInference, Err: err}
	}
	log.Info("モデルレスポンスを受信しました",
		"model", response.Model,
		"latency", response.Latency,
		"outputTokens", response.OutputTokens,
		"truncated", response.Truncated,
	)

	// 6. マージ
	document, err := merger.Merge(directive, priorDocument, response.Content)
	if err != nil {
		return nil, &StageError{Stage: StageMerge, Err: err}
	}

	// 7. 書き込み（一時ファイル経由で、途中キャンセルでも部分書き込みを残さない）
	if err := writeAtomic(outputPath, []byte(document)); err != nil {
		return nil, &StageError{Stage: StageWrite, Err: err}
	}
	log.Info("文書を書き込みました", "path", outputPath)

	return &Outcome{
		RunID:        runID,
		Repository:   task.RepoPath,
		OutputPath:   outputPath,
		Document:     document,
		Model:        response.Model,
		Truncated:    response.Truncated,
		ChunkCount:   len(result.Chunks),
		DroppedFiles: len(result.Dropped),
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

// writeAtomic は一時ファイルに書き込んでからリネームします
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".documenthor-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace document: %w", err)
	}

	return nil
}

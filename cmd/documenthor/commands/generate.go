package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/zvdy/documenthor/pkg/pipeline"
	"github.com/zvdy/documenthor/pkg/prompt"
)

// GenerateAction はリポジトリのREADMEを新規生成する
func GenerateAction(ctx context.Context, cmd *cli.Command) error {
	return runDocuments(ctx, cmd, prompt.DirectiveGenerate)
}

// UpdateAction は既存のREADMEを保持セクションを維持しながら更新する
func UpdateAction(ctx context.Context, cmd *cli.Command) error {
	return runDocuments(ctx, cmd, prompt.DirectiveUpdate)
}

// runDocuments は1つ以上のリポジトリに対して文書生成パイプラインを実行する
func runDocuments(ctx context.Context, cmd *cli.Command, directive prompt.Directive) error {
	repos := cmd.StringSlice("repo")
	if len(repos) == 0 {
		return cli.Exit("少なくとも1つの --repo を指定してください", ExitFailure)
	}

	appCtx, err := NewAppContext(cmd.String("env"))
	if err != nil {
		return cli.Exit(err.Error(), ExitFailure)
	}

	tasks := make([]pipeline.Task, 0, len(repos))
	for _, repo := range repos {
		tasks = append(tasks, pipeline.Task{
			RepoPath:   repo,
			Directive:  directive,
			Model:      cmd.String("model"),
			OutputFile: cmd.String("output"),
		})
	}

	var results []pipeline.Result
	if len(tasks) == 1 {
		// 単一リポジトリはワーカープールを介さず直接実行する
		runner := appCtx.Runner()
		outcome, runErr := runner.Run(ctx, tasks[0])
		results = []pipeline.Result{{Task: tasks[0], Outcome: outcome, Err: runErr}}
	} else {
		batch := pipeline.NewBatch(appCtx.Runner(), appCtx.Config.Pipeline.MaxWorkers)
		results = batch.Run(ctx, tasks)
	}

	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("✗ %s: %v\n", r.Task.RepoPath, r.Err)
			continue
		}
		fmt.Printf("✓ %s -> %s (model=%s, chunks=%d", r.Task.RepoPath, r.Outcome.OutputPath, r.Outcome.Model, r.Outcome.ChunkCount)
		if r.Outcome.DroppedFiles > 0 {
			fmt.Printf(", dropped=%d", r.Outcome.DroppedFiles)
		}
		if r.Outcome.Truncated {
			fmt.Print(", 出力が途中で打ち切られました")
		}
		fmt.Println(")")
	}

	failed := pipeline.Failed(results)
	if len(failed) > 0 {
		return cli.Exit(
			fmt.Sprintf("%d/%d 件のリポジトリで失敗しました", len(failed), len(results)),
			ExitCodeFor(failed[0].Err),
		)
	}

	return nil
}

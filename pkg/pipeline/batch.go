package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Result はバッチ内の1タスクの実行結果です
type Result struct {
	// Task は実行されたタスク
	Task Task
	// Outcome は成功時の結果（失敗時はnil）
	Outcome *Outcome
	// Err は失敗時のエラー（成功時はnil）
	Err error
	// Duration は処理にかかった時間
	Duration time.Duration
}

// Batch は複数リポジトリを上限付きの並列度で処理します
// 1リポジトリの失敗が他のリポジトリの処理を妨げることはありません
type Batch struct {
	runner     *Runner
	maxWorkers int
}

// NewBatch は新しいBatchを作成します
func NewBatch(runner *Runner, maxWorkers int) *Batch {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Batch{
		runner:     runner,
		maxWorkers: maxWorkers,
	}
}

// Run はすべてのタスクを処理し、入力順に結果を返します
//
// コンテキストのキャンセル時は未着手のタスクをキャンセルエラーで
// 埋めて返します。実行中のタスクはRunner側でキャンセルされるため、
// 部分的な文書が書き込まれることはありません
func (b *Batch) Run(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))

	semaphore := make(chan struct{}, b.maxWorkers)
	var wg sync.WaitGroup

	for i, task := range tasks {
		select {
		case <-ctx.Done():
			results[i] = Result{Task: task, Err: ctx.Err()}
			continue
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(index int, t Task) {
			defer wg.Done()
			defer func() { <-semaphore }()

			start := time.Now()
			outcome, err := b.runner.Run(ctx, t)
			duration := time.Since(start)

			if err != nil {
				slog.Warn("リポジトリの処理に失敗しました",
					"repo", t.RepoPath,
					"duration", duration,
					"error", err,
				)
			}

			results[index] = Result{
				Task:     t,
				Outcome:  outcome,
				Err:      err,
				Duration: duration,
			}
		}(i, task)
	}

	wg.Wait()
	return results
}

// Failed は失敗した結果だけを返します
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

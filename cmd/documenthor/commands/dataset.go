package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/zvdy/documenthor/pkg/dataset"
	"github.com/zvdy/documenthor/pkg/scanner"
)

// DatasetBuildAction は例示リポジトリのコーパスから訓練データセットを構築する
func DatasetBuildAction(ctx context.Context, cmd *cli.Command) error {
	corpusDir := cmd.String("corpus")
	artifactPath := cmd.String("out")

	appCtx, err := NewAppContext(cmd.String("env"))
	if err != nil {
		return cli.Exit(err.Error(), ExitFailure)
	}

	// 完成例であるREADME自体をプロンプト側のコンテキストに含めると、
	// 訓練例の入力に正解が漏れるため、スキャン段階で除外する
	scn := scanner.New(scanner.Options{
		MaxFileSize:   appCtx.Config.Scanner.MaxFileSize,
		ExtraExcludes: []string{"README.md"},
	})

	builder := dataset.NewBuilder(scn, appCtx.Assembler, appCtx.Sizer, dataset.Options{
		ExampleBudget: appCtx.Config.Dataset.ExampleBudget,
	})

	report, err := builder.Build(ctx, corpusDir, artifactPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("データセットの構築に失敗: %v", err), ExitFailure)
	}

	fmt.Printf("追加: %d件, 重複スキップ: %d件, 除外: %d件\n", report.Added, report.Duplicates, report.Skipped)
	for _, e := range report.Errors {
		fmt.Printf("  - %v\n", e)
	}

	if modelfilePath := cmd.String("modelfile"); modelfilePath != "" {
		examples, err := dataset.ReadExamples(artifactPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("データセットの読み込みに失敗: %v", err), ExitFailure)
		}

		content := dataset.ExportModelfile(cmd.String("base-model"), examples)
		if err := os.WriteFile(modelfilePath, []byte(content), 0o644); err != nil {
			return cli.Exit(fmt.Sprintf("Modelfileの書き込みに失敗: %v", err), ExitFailure)
		}
		fmt.Printf("Modelfileを書き込みました: %s\n", modelfilePath)
	}

	return nil
}

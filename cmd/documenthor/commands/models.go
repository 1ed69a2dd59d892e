package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
)

// ModelsListAction は推論エンドポイントで利用可能なモデル一覧を表示する
func ModelsListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(cmd.String("env"))
	if err != nil {
		return cli.Exit(err.Error(), ExitFailure)
	}

	models, err := appCtx.Client.ListModels(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("モデル一覧の取得に失敗: %v", err), ExitInference)
	}

	if len(models) == 0 {
		fmt.Println("利用可能なモデルがありません")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED")
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, formatSize(m.Size), m.ModifiedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// formatSize はバイト数を人間が読みやすい形式に変換する
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

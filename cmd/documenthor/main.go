package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/zvdy/documenthor/cmd/documenthor/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "documenthor",
		Usage: "ローカルLLMによるリポジトリREADME自動生成ツール",
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "リポジトリのREADMEを新規生成",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringSliceFlag{
						Name:     "repo",
						Usage:    "対象リポジトリのパス（複数指定でバッチ処理）",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "model",
						Usage: "使用するモデル（省略時は環境変数またはデフォルト）",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "出力ファイル名（リポジトリからの相対パス）",
						Value: "README.md",
					},
				},
				Action: commands.GenerateAction,
			},
			{
				Name:  "update",
				Usage: "既存のREADMEを保持セクションを維持しながら更新",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "env",
						Usage: "環境変数ファイルパス",
						Value: ".env",
					},
					&cli.StringSliceFlag{
						Name:     "repo",
						Usage:    "対象リポジトリのパス（複数指定でバッチ処理）",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "model",
						Usage: "使用するモデル（省略時は環境変数またはデフォルト）",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "出力ファイル名（リポジトリからの相対パス）",
						Value: "README.md",
					},
				},
				Action: commands.UpdateAction,
			},
			{
				Name:  "models",
				Usage: "モデル管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "推論エンドポイントで利用可能なモデル一覧を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
						},
						Action: commands.ModelsListAction,
					},
				},
			},
			{
				Name:  "dataset",
				Usage: "ファインチューニング用データセット管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "build",
						Usage: "例示リポジトリのコーパスから訓練データセットを構築",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "corpus",
								Usage:    "例示リポジトリを含むディレクトリ",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "out",
								Usage: "データセット（JSONL）の出力先",
								Value: "dataset.jsonl",
							},
							&cli.StringFlag{
								Name:  "modelfile",
								Usage: "Modelfileの出力先（省略時は出力しない）",
							},
							&cli.StringFlag{
								Name:  "base-model",
								Usage: "Modelfileのベースモデル",
								Value: "llama3.2:3b",
							},
						},
						Action: commands.DatasetBuildAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

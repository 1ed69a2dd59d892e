package commands

import (
	"errors"
	"fmt"

	"github.com/zvdy/documenthor/internal/platform/logger"
	"github.com/zvdy/documenthor/pkg/assembler"
	"github.com/zvdy/documenthor/pkg/config"
	"github.com/zvdy/documenthor/pkg/inference"
	"github.com/zvdy/documenthor/pkg/inference/ollama"
	"github.com/zvdy/documenthor/pkg/inference/openaicompat"
	"github.com/zvdy/documenthor/pkg/pipeline"
	"github.com/zvdy/documenthor/pkg/scanner"
)

// 終了コード
// 呼び出し側スクリプトが失敗の種類を判別できるよう、段階ごとに値を分ける
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitScan      = 2
	ExitInference = 3
	ExitMerge     = 4
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Client    inference.Client
	Scanner   *scanner.Scanner
	Assembler *assembler.Assembler
	Sizer     assembler.Sizer
}

// NewAppContext は設定を読み込み、推論クライアントと各コンポーネントを
// 初期化して AppContext を作成する
func NewAppContext(envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	logger.New(logger.ConfigFromEnv())

	client, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("推論クライアントの初期化に失敗: %w", err)
	}

	sizer, err := assembler.NewSizer(cfg.Assembler.Unit)
	if err != nil {
		return nil, fmt.Errorf("サイズ測定器の初期化に失敗: %w", err)
	}

	asm, err := assembler.New(sizer, assembler.Options{
		Budget:    cfg.Assembler.Budget,
		MaxChunks: cfg.Assembler.MaxChunks,
	})
	if err != nil {
		return nil, fmt.Errorf("アセンブラの初期化に失敗: %w", err)
	}

	return &AppContext{
		Config: cfg,
		Client: client,
		Scanner: scanner.New(scanner.Options{
			MaxFileSize: cfg.Scanner.MaxFileSize,
		}),
		Assembler: asm,
		Sizer:     sizer,
	}, nil
}

// newClient は設定に応じた推論クライアントを作成する
// 同時リクエスト数の上限はプロバイダによらず共通のLimiterで制御する
func newClient(cfg *config.Config) (inference.Client, error) {
	var client inference.Client

	switch cfg.Inference.Provider {
	case "ollama":
		client = ollama.New(ollama.Config{
			Host:       cfg.Inference.Host,
			Timeout:    cfg.Inference.Timeout,
			MaxRetries: cfg.Inference.MaxRetries,
			Stream:     true,
		})
	case "openai":
		compat, err := openaicompat.New(openaicompat.Config{
			BaseURL:    cfg.Inference.Host + "/v1",
			APIKey:     cfg.Inference.APIKey,
			Timeout:    cfg.Inference.Timeout,
			MaxRetries: cfg.Inference.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		client = compat
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Inference.Provider)
	}

	limiter := inference.NewLimiter(cfg.Inference.MaxInFlight)
	return inference.NewThrottled(client, limiter), nil
}

// Runner はパイプラインRunnerを作成する
func (ac *AppContext) Runner() *pipeline.Runner {
	return pipeline.NewRunner(ac.Scanner, ac.Assembler, ac.Client, pipeline.GenerateOptions{
		Model:       ac.Config.Inference.Model,
		Temperature: ac.Config.Inference.Temperature,
		TopP:        ac.Config.Inference.TopP,
		MaxTokens:   ac.Config.Inference.MaxTokens,
	})
}

// ExitCodeFor はエラーから終了コードを決定する
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}

	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		switch stageErr.Stage {
		case pipeline.StageScan:
			return ExitScan
		case pipeline.StageInference:
			return ExitInference
		case pipeline.StageMerge:
			return ExitMerge
		}
	}

	return ExitFailure
}

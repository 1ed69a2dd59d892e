package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/zvdy/documenthor/pkg/inference"
)

const (
	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultTimeout = 300 * time.Second
)

// Config はOpenAI互換クライアントの設定
type Config struct {
	// BaseURL はエンドポイントのベースURL（例: http://localhost:11434/v1）
	BaseURL string
	// APIKey はAPIキー（ローカルエンドポイントでは任意の値でよい）
	APIKey string
	// Timeout は1リクエストあたりのタイムアウト（0の場合はDefaultTimeout）
	Timeout time.Duration
	// MaxRetries は一時的エラー時の最大リトライ回数（負の場合はデフォルト）
	MaxRetries int
}

// Client はOpenAI互換API（ローカル推論サーバの /v1 サーフェス）を使用する
// 推論クライアント実装
type Client struct {
	client     openai.Client
	timeout    time.Duration
	maxRetries int
}

// New は新しいClientを作成します
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// ローカルエンドポイントは認証不要だがSDKはキーを要求する
		apiKey = "unused"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = inference.DefaultMaxRetries
	}

	// リトライ制御は自前のポリシーで行うためSDK側のリトライは無効化する
	client := openai.NewClient(
		option.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)

	return &Client{
		client:     client,
		timeout:    timeout,
		maxRetries: maxRetries,
	}, nil
}

// Generate はプロンプトを送信して完全なレスポンスを返します
func (c *Client) Generate(ctx context.Context, req inference.Request) (*inference.Response, error) {
	return inference.Retry(ctx, c.maxRetries, func() (*inference.Response, error) {
		return c.generateOnce(ctx, req)
	})
}

// generateOnce は1回の生成リクエストを実行します
func (c *Client) generateOnce(parent context.Context, req inference.Request) (*inference.Response, error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(req.Model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
		TopP:        openai.Float(req.TopP),
	}

	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	start := time.Now()

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyError(parent, err)
	}

	if len(completion.Choices) == 0 {
		return nil, &inference.FatalError{Err: fmt.Errorf("no completion choices returned")}
	}

	choice := completion.Choices[0]

	return &inference.Response{
		Content:      choice.Message.Content,
		Model:        string(completion.Model),
		Latency:      time.Since(start),
		Truncated:    choice.FinishReason == "length",
		PromptTokens: int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
	}, nil
}

// ListModels は利用可能なモデルの一覧を返します
func (c *Client) ListModels(parent context.Context) ([]inference.Model, error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, classifyError(parent, err)
	}

	models := make([]inference.Model, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, inference.Model{
			Name:       m.ID,
			ModifiedAt: time.Unix(m.Created, 0),
		})
	}

	return models, nil
}

// classifyError はSDKのエラーを一時的/決定的エラーに分類します
func classifyError(parent context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return inference.ClassifyHTTPStatus(apiErr.StatusCode, apiErr.Error())
	}
	return inference.ClassifyAttemptError(parent, err)
}

// インターフェース実装の確認
var _ inference.Client = (*Client)(nil)

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zvdy/documenthor/pkg/inference"
)

const (
	// DefaultHost はOllamaのデフォルトエンドポイント
	DefaultHost = "http://localhost:11434"

	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	// ローカルモデルの生成は遅いため長めに取る
	DefaultTimeout = 300 * time.Second
)

// Config はOllamaクライアントの設定
type Config struct {
	// Host はエンドポイントのベースURL（空の場合はDefaultHost）
	Host string
	// Timeout は1リクエストあたりのタイムアウト（0の場合はDefaultTimeout）
	Timeout time.Duration
	// MaxRetries は一時的エラー時の最大リトライ回数（負の場合はデフォルト）
	MaxRetries int
	// Stream はストリーミングレスポンスを使うかどうか
	Stream bool
}

// Client はOllamaネイティブAPIを使用する推論クライアント実装
type Client struct {
	host       string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	stream     bool
}

// New は新しいClientを作成します
func New(cfg Config) *Client {
	host := strings.TrimSuffix(cfg.Host, "/")
	if host == "" {
		host = DefaultHost
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = inference.DefaultMaxRetries
	}

	return &Client{
		host:       host,
		httpClient: &http.Client{},
		timeout:    timeout,
		maxRetries: maxRetries,
		stream:     cfg.Stream,
	}
}

// generateRequest は /api/generate のリクエストボディ
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

// generateOptions は生成オプション
type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// generateResponse は /api/generate のレスポンス（ストリームの1行分）
type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// errorResponse はOllamaのエラーレスポンス
type errorResponse struct {
	Error string `json:"error"`
}

// Generate はプロンプトを送信して完全なレスポンスを返します
// 一時的エラーは指数バックオフ付きでリトライし、決定的エラーと
// 途中で途切れたストリームは即座に返します
func (c *Client) Generate(ctx context.Context, req inference.Request) (*inference.Response, error) {
	return inference.Retry(ctx, c.maxRetries, func() (*inference.Response, error) {
		return c.generateOnce(ctx, req)
	})
}

// generateOnce は1回の生成リクエストを実行します
func (c *Client) generateOnce(parent context.Context, req inference.Request) (*inference.Response, error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	body := generateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: c.stream,
		Options: generateOptions{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			NumPredict:  req.MaxTokens,
		},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, &inference.FatalError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return nil, &inference.FatalError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, inference.ClassifyAttemptError(parent, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyErrorResponse(resp)
	}

	var result *inference.Response
	if c.stream {
		result, err = consumeStream(parent, resp.Body)
	} else {
		result, err = decodeSingle(resp.Body)
	}
	if err != nil {
		return nil, err
	}

	result.Latency = time.Since(start)
	return result, nil
}

// consumeStream はNDJSON形式のストリームを最後まで読み切ります
// 完了フラグの前にストリームが終了した場合はErrTruncatedStreamを返し、
// 部分的なレスポンスが下流に渡ることはない
func consumeStream(parent context.Context, body io.Reader) (*inference.Response, error) {
	var content strings.Builder
	result := &inference.Response{}

	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			var chunk generateResponse
			if unmarshalErr := json.Unmarshal(line, &chunk); unmarshalErr != nil {
				return nil, &inference.FatalError{Err: fmt.Errorf("failed to decode stream chunk: %w", unmarshalErr)}
			}

			content.WriteString(chunk.Response)

			if chunk.Done {
				result.Content = content.String()
				result.Model = chunk.Model
				result.Truncated = chunk.DoneReason == "length"
				result.PromptTokens = chunk.PromptEvalCount
				result.OutputTokens = chunk.EvalCount
				return result, nil
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				// 完了フラグを受け取る前にEOF
				return nil, inference.ErrTruncatedStream
			}
			return nil, inference.ClassifyAttemptError(parent, err)
		}
	}
}

// decodeSingle は非ストリーミングのレスポンスを読み取ります
func decodeSingle(body io.Reader) (*inference.Response, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, inference.ClassifyNetworkError(err)
	}

	var resp generateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &inference.FatalError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if !resp.Done {
		return nil, inference.ErrTruncatedStream
	}

	return &inference.Response{
		Content:      resp.Response,
		Model:        resp.Model,
		Truncated:    resp.DoneReason == "length",
		PromptTokens: resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
	}, nil
}

// classifyErrorResponse はエラーレスポンスを読み取って分類します
func classifyErrorResponse(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)

	message := strings.TrimSpace(string(data))
	var apiErr errorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
		message = apiErr.Error
	}

	return inference.ClassifyHTTPStatus(resp.StatusCode, message)
}

// tagsResponse は /api/tags のレスポンス
type tagsResponse struct {
	Models []struct {
		Name       string    `json:"name"`
		Size       int64     `json:"size"`
		ModifiedAt time.Time `json:"modified_at"`
	} `json:"models"`
}

// ListModels は利用可能なモデルの一覧を返します
func (c *Client) ListModels(parent context.Context) ([]inference.Model, error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil, &inference.FatalError{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, inference.ClassifyAttemptError(parent, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyErrorResponse(resp)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, &inference.FatalError{Err: fmt.Errorf("failed to decode models list: %w", err)}
	}

	models := make([]inference.Model, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, inference.Model{
			Name:       m.Name,
			Size:       m.Size,
			ModifiedAt: m.ModifiedAt,
		})
	}

	return models, nil
}

// インターフェース実装の確認
var _ inference.Client = (*Client)(nil)

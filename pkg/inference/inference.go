package inference

import (
	"context"
	"time"
)

// Request は1回の推論呼び出しの入力です
type Request struct {
	// Model はモデル識別子
	Model string
	// Prompt はユーザープロンプト本文
	Prompt string
	// System はシステムプロンプト
	System string
	// Temperature は生成時の温度
	Temperature float64
	// TopP は生成時のtop_p
	TopP float64
	// MaxTokens は生成する最大トークン数
	MaxTokens int
}

// Response は推論エンドポイントからの完全なレスポンスです
// ストリーミングの場合も、最後まで消費してから組み立てられます
type Response struct {
	// Content は生成されたテキスト全文
	Content string
	// Model は実際に使用されたモデル識別子
	Model string
	// Latency はリクエスト送信からレスポンス完了までの時間
	Latency time.Duration
	// Truncated は出力長の上限により生成が打ち切られたかどうか
	Truncated bool
	// PromptTokens はプロンプトのトークン数（エンドポイントが報告する場合）
	PromptTokens int
	// OutputTokens は生成されたトークン数（エンドポイントが報告する場合）
	OutputTokens int
}

// Model は推論エンドポイントで利用可能なモデルを表します
type Model struct {
	// Name はモデル識別子
	Name string
	// Size はモデルサイズ（バイト）
	Size int64
	// ModifiedAt は最終更新日時
	ModifiedAt time.Time
}

// Client は推論エンドポイントへのアクセスを抽象化します
type Client interface {
	// Generate はプロンプトを送信して完全なレスポンスを返します
	Generate(ctx context.Context, req Request) (*Response, error)
	// ListModels は利用可能なモデルの一覧を返します
	ListModels(ctx context.Context) ([]Model, error)
}

package inference

import (
	"context"
	"fmt"
)

// Limiter は推論エンドポイントへの同時リクエスト数を制限します
// エンドポイントが無制限の並列負荷に耐えられる保証はないため、
// パイプライン全体で共有する唯一の横断リソースとして使われる
type Limiter struct {
	semaphore chan struct{}
}

// NewLimiter は新しいLimiterを作成します
func NewLimiter(maxInFlight int) *Limiter {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &Limiter{
		semaphore: make(chan struct{}, maxInFlight),
	}
}

// Acquire は実行権限を取得します
// contextがキャンセルされた場合はエラーを返す
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release は実行権限を解放します
// Acquire()の後に必ずRelease()を呼ぶこと（通常はdefer文で）
func (l *Limiter) Release() {
	<-l.semaphore
}

// InFlight は現在実行中のリクエスト数を返します（監視用）
func (l *Limiter) InFlight() int {
	return len(l.semaphore)
}

// Cap は同時リクエスト数の上限を返します
func (l *Limiter) Cap() int {
	return cap(l.semaphore)
}

// Throttled は同時リクエスト数制限付きのClientデコレータです
type Throttled struct {
	client  Client
	limiter *Limiter
}

// NewThrottled は同時リクエスト数制限付きのClientを作成します
// 複数のリポジトリ処理ワーカーから同時に呼ばれても、エンドポイントへの
// 実際のリクエスト数はlimiterの上限を超えない
func NewThrottled(client Client, limiter *Limiter) *Throttled {
	return &Throttled{
		client:  client,
		limiter: limiter,
	}
}

// Generate は同時実行数の制限に従って推論を呼び出します
func (t *Throttled) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := t.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("limiter wait failed: %w", err)
	}
	defer t.limiter.Release()

	return t.client.Generate(ctx, req)
}

// ListModels はモデル一覧を返します
// 一覧取得は軽量なため制限の対象外とする
func (t *Throttled) ListModels(ctx context.Context) ([]Model, error) {
	return t.client.ListModels(ctx)
}

// インターフェース実装の確認
var _ Client = (*Throttled)(nil)

package inference

import (
	"context"
	"fmt"
	"math"
	"time"
)

// DefaultMaxRetries は一時的エラー時のデフォルト最大リトライ回数
const DefaultMaxRetries = 3

var (
	// BaseBackoff はExponential Backoffの基底時間
	BaseBackoff = 2 * time.Second

	// MaxBackoff はExponential Backoffの最大待機時間
	MaxBackoff = 32 * time.Second
)

// Retry は一時的エラーに対して指数バックオフ付きでfnを再実行します
//
// TransientErrorのみが再試行対象で、FatalErrorやErrTruncatedStreamは
// 即座に返されます。最大リトライ回数を超えた場合はErrMaxRetriesExceededに
// 最後のエラーをラップして返します。バックオフ待機中のキャンセルは
// ctx.Err()として返ります。
func Retry(ctx context.Context, maxRetries int, fn func() (*Response, error)) (*Response, error) {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}

	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * BaseBackoff
			if backoff > MaxBackoff {
				backoff = MaxBackoff
			}

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := fn()
		if err == nil {
			return resp, nil
		}

		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

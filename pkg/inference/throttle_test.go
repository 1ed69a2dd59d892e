package inference

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient はテスト用のClient実装
type stubClient struct {
	inFlight    atomic.Int32
	maxObserved atomic.Int32
	calls       atomic.Int32
}

func (s *stubClient) Generate(ctx context.Context, req Request) (*Response, error) {
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	for {
		max := s.maxObserved.Load()
		if current <= max || s.maxObserved.CompareAndSwap(max, current) {
			break
		}
	}

	s.calls.Add(1)
	time.Sleep(10 * time.Millisecond)
	return &Response{Content: "ok"}, nil
}

func (s *stubClient) ListModels(ctx context.Context) ([]Model, error) {
	return []Model{{Name: "stub"}}, nil
}

func TestThrottled_LimitsConcurrency(t *testing.T) {
	stub := &stubClient{}
	throttled := NewThrottled(stub, NewLimiter(2))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := throttled.Generate(context.Background(), Request{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), stub.calls.Load())
	assert.LessOrEqual(t, stub.maxObserved.Load(), int32(2),
		"同時実行数が上限を超えない")
}

func TestThrottled_AcquireCanceled(t *testing.T) {
	limiter := NewLimiter(1)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	throttled := NewThrottled(&stubClient{}, limiter)
	_, err := throttled.Generate(ctx, Request{})
	assert.Error(t, err, "枠が空くのを待っている間のキャンセルはエラーになる")
}

func TestThrottled_ListModelsNotThrottled(t *testing.T) {
	limiter := NewLimiter(1)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	throttled := NewThrottled(&stubClient{}, limiter)
	models, err := throttled.ListModels(context.Background())
	require.NoError(t, err)
	assert.Len(t, models, 1)
}

func TestLimiter_Counters(t *testing.T) {
	limiter := NewLimiter(3)
	assert.Equal(t, 3, limiter.Cap())
	assert.Equal(t, 0, limiter.InFlight())

	require.NoError(t, limiter.Acquire(context.Background()))
	assert.Equal(t, 1, limiter.InFlight())

	limiter.Release()
	assert.Equal(t, 0, limiter.InFlight())
}

func TestNewLimiter_MinimumCapacity(t *testing.T) {
	assert.Equal(t, 1, NewLimiter(0).Cap())
	assert.Equal(t, 1, NewLimiter(-5).Cap())
}

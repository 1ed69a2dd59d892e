package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrTruncatedStream はストリームが完了フラグの前に終了した場合のエラー
	// ネットワーク障害とは区別して報告され、呼び出し側がチャンクを小さくして
	// 再試行するかどうかを判断できるようにする
	ErrTruncatedStream = errors.New("stream ended before completion")

	// ErrMaxRetriesExceeded は最大リトライ回数を超過した場合のエラー
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// TransientError は再試行可能な一時的エラーを表します
// 接続失敗・5xx・タイムアウトが該当する
type TransientError struct {
	Err error
}

// Error はエラーメッセージを返します
func (e *TransientError) Error() string {
	return fmt.Sprintf("transient inference error: %v", e.Err)
}

// Unwrap はラップされたエラーを返します
func (e *TransientError) Unwrap() error {
	return e.Err
}

// FatalError は再試行しても結果が変わらない決定的エラーを表します
// 4xxや不正なリクエストが該当し、即座に呼び出し側へ返される
type FatalError struct {
	StatusCode int
	Err        error
}

// Error はエラーメッセージを返します
func (e *FatalError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("inference request rejected (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("inference request rejected: %v", e.Err)
}

// Unwrap はラップされたエラーを返します
func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsTransient はエラーが再試行対象かどうかを判定します
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// ClassifyHTTPStatus はHTTPステータスコードをエラーに分類します
// 2xxはここに渡されない前提
func ClassifyHTTPStatus(statusCode int, message string) error {
	err := errors.New(message)
	if statusCode >= 500 || statusCode == 429 {
		return &TransientError{Err: fmt.Errorf("status %d: %w", statusCode, err)}
	}
	return &FatalError{StatusCode: statusCode, Err: err}
}

// ClassifyNetworkError は接続系のエラーを分類します
// contextのキャンセル/期限超過はそのまま返し、リトライ対象にしない
func ClassifyNetworkError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientError{Err: err}
	}

	// 接続拒否などの通信エラーは一時的エラーとして扱う
	return &TransientError{Err: err}
}

// ClassifyAttemptError は1試行分のリクエストエラーを分類します
// 試行ごとのタイムアウトによる期限超過は一時的エラーとして扱い、
// 呼び出し元contextのキャンセル/期限超過はそのまま返す
func ClassifyAttemptError(parent context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return &TransientError{Err: err}
	}
	return ClassifyNetworkError(err)
}

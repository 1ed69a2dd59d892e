package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Config はロガーの設定
type Config struct {
	Level  slog.Level
	Format string // "json" or "text"
}

// DefaultConfig はデフォルトのロガー設定
func DefaultConfig() Config {
	return Config{
		Level:  slog.LevelInfo,
		Format: "text",
	}
}

// ConfigFromEnv は環境変数 DOCUMENTHOR_LOG_LEVEL / DOCUMENTHOR_LOG_FORMAT から設定を組み立てます
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	switch strings.ToLower(os.Getenv("DOCUMENTHOR_LOG_LEVEL")) {
	case "debug":
		cfg.Level = slog.LevelDebug
	case "warn":
		cfg.Level = slog.LevelWarn
	case "error":
		cfg.Level = slog.LevelError
	}

	if format := os.Getenv("DOCUMENTHOR_LOG_FORMAT"); format != "" {
		cfg.Format = format
	}

	return cfg
}

// New は新しいロガーを作成し、デフォルトロガーとして設定します
// 標準出力は生成結果の出力に使うため、ログは標準エラー出力へ書き込みます
func New(cfg Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: cfg.Level,
	}

	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default: // "text"
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

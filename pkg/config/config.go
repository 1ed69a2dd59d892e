package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// 推論エンドポイント設定
	Inference InferenceConfig

	// リポジトリスキャン設定
	Scanner ScannerConfig

	// コンテキスト組み立て設定
	Assembler AssemblerConfig

	// データセット構築設定
	Dataset DatasetConfig

	// バッチ実行設定
	Pipeline PipelineConfig
}

// InferenceConfig は推論エンドポイントの設定
type InferenceConfig struct {
	// Provider は推論プロバイダ（"ollama" or "openai"）
	Provider string
	// Host は推論エンドポイントのベースURL
	Host string
	// Model はデフォルトのモデル識別子
	Model string
	// APIKey はOpenAI互換エンドポイント用のAPIキー（Ollamaでは不要）
	APIKey string
	// Temperature は生成時の温度
	Temperature float64
	// TopP は生成時のtop_p
	TopP float64
	// MaxTokens は生成する最大トークン数
	MaxTokens int
	// Timeout は1リクエストあたりのタイムアウト
	Timeout time.Duration
	// MaxRetries は一時的エラー時の最大リトライ回数
	MaxRetries int
	// MaxInFlight は同時リクエスト数の上限
	MaxInFlight int
}

// ScannerConfig はリポジトリスキャンの設定
type ScannerConfig struct {
	// MaxFileSize は読み込む1ファイルの最大サイズ（バイト）
	MaxFileSize int64
}

// AssemblerConfig はコンテキスト組み立ての設定
type AssemblerConfig struct {
	// Budget は1チャンクあたりのサイズ上限
	Budget int
	// Unit はサイズの単位（"tokens" or "chars"）
	Unit string
	// MaxChunks は1リポジトリあたりのチャンク数上限
	MaxChunks int
}

// DatasetConfig はデータセット構築の設定
type DatasetConfig struct {
	// ExampleBudget はprompt+completionの合計サイズ上限
	ExampleBudget int
}

// PipelineConfig はバッチ実行の設定
type PipelineConfig struct {
	// MaxWorkers はワーカープールの同時実行数
	MaxWorkers int
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Inference: InferenceConfig{
			Provider:    getEnv("DOCUMENTHOR_PROVIDER", "ollama"),
			Host:        getEnv("OLLAMA_HOST", "http://localhost:11434"),
			Model:       getEnv("OLLAMA_MODEL", "llama3.2:3b"),
			APIKey:      getEnv("DOCUMENTHOR_API_KEY", ""),
			Temperature: getEnvAsFloat("DOCUMENTHOR_TEMPERATURE", 0.7),
			TopP:        getEnvAsFloat("DOCUMENTHOR_TOP_P", 0.9),
			MaxTokens:   getEnvAsInt("DOCUMENTHOR_MAX_TOKENS", 4000),
			Timeout:     getEnvAsDuration("DOCUMENTHOR_TIMEOUT", 300*time.Second),
			MaxRetries:  getEnvAsInt("DOCUMENTHOR_MAX_RETRIES", 3),
			MaxInFlight: getEnvAsInt("DOCUMENTHOR_MAX_IN_FLIGHT", 4),
		},
		Scanner: ScannerConfig{
			MaxFileSize: int64(getEnvAsInt("DOCUMENTHOR_MAX_FILE_SIZE", 1024*1024)),
		},
		Assembler: AssemblerConfig{
			Budget:    getEnvAsInt("DOCUMENTHOR_BUDGET", 8000),
			Unit:      getEnv("DOCUMENTHOR_BUDGET_UNIT", "tokens"),
			MaxChunks: getEnvAsInt("DOCUMENTHOR_MAX_CHUNKS", 4),
		},
		Dataset: DatasetConfig{
			ExampleBudget: getEnvAsInt("DOCUMENTHOR_EXAMPLE_BUDGET", 16000),
		},
		Pipeline: PipelineConfig{
			MaxWorkers: getEnvAsInt("DOCUMENTHOR_MAX_WORKERS", 4),
		},
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数をtime.Durationとして取得します
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// アプリケーション設定
	AppUsername     string // ログイン用ユーザー名
	AppPasswordHash string // bcryptでハッシュ化されたパスワード
	SessionSecret   string // セッション署名用の秘密鍵

	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ファイル制限
	MaxFileSize      int64 // 単一ファイルの最大サイズ（バイト）
	MaxPages         int   // 単一ファイルの最大ページ数
	JobExpireMinutes int   // ジョブの有効期限（分）

	// ジョブ/キュー設定
	QueueRedisURL       string // Asynq用Redis接続URL
	WorkerConcurrency   int    // ワーカーの同時実行数
	AsyncThresholdBytes int64  // 同期処理から非同期へ切り替えるサイズ閾値
	AsyncThresholdPages int    // 同期処理から非同期へ切り替えるページ閾値
	JobResultBaseURL    string // 結果ファイル取得用のベースURL（署名URL等を生成する場合に使用）

	// 冊子生成設定
	WorkDir               string  // ジョブ作業ディレクトリのベースパス（空なら一時ディレクトリ）
	SheetWidthPt          float64 // 出力シートの幅（ポイント、0ならA4横）
	SheetHeightPt         float64 // 出力シートの高さ（ポイント、0ならA4横）
	DefaultCenterMarginMm float64 // 折り目側余白の既定値（mm）
	DefaultOuterMarginMm  float64 // 外側余白の既定値（mm）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// アプリケーション設定
		AppUsername:     getEnv("APP_USERNAME", ""),
		AppPasswordHash: getEnv("APP_PASSWORD_HASH", ""),
		SessionSecret:   getEnv("SESSION_SECRET", ""),

		// サーバー設定
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		// ファイル制限
		MaxFileSize:      getEnvAsInt64("MAX_FILE_SIZE", 104857600), // 100MB
		MaxPages:         getEnvAsInt("MAX_PAGES", 500),
		JobExpireMinutes: getEnvAsInt("JOB_EXPIRE_MINUTES", 10),

		// ジョブ/キュー設定
		QueueRedisURL:       getEnv("QUEUE_REDIS_URL", "redis://127.0.0.1:6379/0"),
		WorkerConcurrency:   getEnvAsInt("WORKER_CONCURRENCY", 4),
		AsyncThresholdBytes: getEnvAsInt64("ASYNC_THRESHOLD_BYTES", 50*1024*1024), // 50MB
		AsyncThresholdPages: getEnvAsInt("ASYNC_THRESHOLD_PAGES", 120),
		JobResultBaseURL:    getEnv("JOB_RESULT_BASE_URL", ""),

		// 冊子生成設定
		WorkDir:               getEnv("WORK_DIR", ""),
		SheetWidthPt:          getEnvAsFloat("SHEET_WIDTH_PT", 0),
		SheetHeightPt:         getEnvAsFloat("SHEET_HEIGHT_PT", 0),
		DefaultCenterMarginMm: getEnvAsFloat("DEFAULT_CENTER_MARGIN_MM", 10),
		DefaultOuterMarginMm:  getEnvAsFloat("DEFAULT_OUTER_MARGIN_MM", 5),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	// ローカル開発では認証設定は任意
	// 本番環境では厳格にチェックする想定
	if c.GinMode == "release" {
		if c.AppUsername == "" {
			return fmt.Errorf("APP_USERNAME is required in release mode")
		}
		if c.AppPasswordHash == "" {
			return fmt.Errorf("APP_PASSWORD_HASH is required in release mode")
		}
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if c.QueueRedisURL == "" {
			return fmt.Errorf("QUEUE_REDIS_URL is required in release mode")
		}
	}

	// シートサイズは両方指定するか、両方省略してA4横に委ねる
	if (c.SheetWidthPt > 0) != (c.SheetHeightPt > 0) {
		return fmt.Errorf("SHEET_WIDTH_PT and SHEET_HEIGHT_PT must be set together")
	}

	if c.DefaultCenterMarginMm < 0 || c.DefaultOuterMarginMm < 0 {
		return fmt.Errorf("default margins must not be negative")
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
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

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します。
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

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// JIRA API設定
	JiraURL        string
	JiraEmail      string
	JiraAPIToken   string
	JiraProjectKey string

	// LLM設定
	LLMProvider     string // "anthropic" または "google"
	AnthropicAPIKey string
	GoogleAPIKey    string
	LLMFallback     bool // 構造化パースが不十分な場合にLLMフォールバックを使うかどうか

	// パーサー設定
	CompletenessThreshold float64

	// 入力ファイル
	InputFile string
}

// PriorityMapping は入力テキストの優先度表記からJIRA優先度へのマッピングです
// 未知の値は Medium にフォールバックします
var PriorityMapping = map[string]string{
	"highest":  "Highest",
	"blocker":  "Highest",
	"high":     "High",
	"critical": "High",
	"urgent":   "High",
	"major":    "High",
	"medium":   "Medium",
	"normal":   "Medium",
	"low":      "Low",
	"minor":    "Low",
	"lowest":   "Lowest",
	"trivial":  "Lowest",
}

// LoadConfig は環境変数から設定を読み込みます
func LoadConfig() (*Config, error) {
	// .envファイルを読み込む
	_ = godotenv.Load()

	config := &Config{
		JiraURL:               strings.TrimRight(os.Getenv("JIRA_URL"), "/"),
		JiraEmail:             os.Getenv("JIRA_EMAIL"),
		JiraAPIToken:          os.Getenv("JIRA_API_TOKEN"),
		JiraProjectKey:        os.Getenv("JIRA_PROJECT_KEY"),
		LLMProvider:           strings.ToLower(getEnvWithDefault("LLM_PROVIDER", "anthropic")),
		AnthropicAPIKey:       os.Getenv("ANTHROPIC_API_KEY"),
		GoogleAPIKey:          os.Getenv("GOOGLE_API_KEY"),
		LLMFallback:           getEnvAsBoolWithDefault("LLM_FALLBACK", true),
		CompletenessThreshold: getEnvAsFloatWithDefault("PARSE_COMPLETENESS_THRESHOLD", 0.5),
		InputFile:             getEnvWithDefault("INPUT_FILE", "tickets.txt"),
	}

	return config, nil
}

// LLMAPIKey は設定されたプロバイダーに対応するAPIキーを返します
func (c *Config) LLMAPIKey() string {
	switch c.LLMProvider {
	case "google":
		return c.GoogleAPIKey
	default:
		return c.AnthropicAPIKey
	}
}

// デフォルト値付きで環境変数を取得
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// デフォルト値付きで環境変数を浮動小数点数として取得
func getEnvAsFloatWithDefault(key string, defaultValue float64) float64 {
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

// デフォルト値付きで環境変数を真偽値として取得
func getEnvAsBoolWithDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

package config

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidationResult は設定検証の結果を保持します
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// OK はエラーが1件もない場合にtrueを返します
func (v *ValidationResult) OK() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func (v *ValidationResult) addWarning(format string, args ...interface{}) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

// Validate は設定の必須項目と形式を検証します
// エラーは実行前に修正が必要な問題、警告は疑わしいが続行可能な問題です
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateJira(cfg, result)
	validateLLM(cfg, result)

	return result
}

// JIRA関連の設定を検証
func validateJira(cfg *Config, result *ValidationResult) {
	required := []struct {
		value, name, description string
	}{
		{cfg.JiraURL, "JIRA_URL", "JIRAインスタンスのURL"},
		{cfg.JiraEmail, "JIRA_EMAIL", "JIRA APIアカウントのメールアドレス"},
		{cfg.JiraAPIToken, "JIRA_API_TOKEN", "JIRA APIトークン"},
		{cfg.JiraProjectKey, "JIRA_PROJECT_KEY", "JIRAプロジェクトキー"},
	}

	for _, field := range required {
		if field.value == "" {
			result.addError("必須項目が未設定です: %s (%s)", field.name, field.description)
		}
	}

	if cfg.JiraURL != "" {
		if !strings.HasPrefix(cfg.JiraURL, "http://") && !strings.HasPrefix(cfg.JiraURL, "https://") {
			result.addError("JIRA_URL は http:// または https:// で始まる必要があります")
		}
		if !strings.Contains(cfg.JiraURL, "atlassian") {
			result.addWarning("JIRA_URL がAtlassianのURLではないようです: %s", cfg.JiraURL)
		}
	}

	if cfg.JiraProjectKey != "" {
		validateProjectKey(cfg.JiraProjectKey, result)
	}
}

// プロジェクトキーの形式を検証
func validateProjectKey(key string, result *ValidationResult) {
	if key != strings.ToUpper(key) {
		result.addWarning("JIRA_PROJECT_KEY は通常すべて大文字です: %s", key)
	}

	if len(key) < 2 || len(key) > 10 {
		result.addWarning("JIRA_PROJECT_KEY は通常2〜10文字です: %s", key)
	}

	for _, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' {
			result.addWarning("JIRA_PROJECT_KEY に使用できない文字が含まれています: %q", r)
			break
		}
	}
}

// LLM関連の設定を検証
func validateLLM(cfg *Config, result *ValidationResult) {
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.LLMFallback && cfg.AnthropicAPIKey == "" {
			result.addWarning("ANTHROPIC_API_KEY が未設定のためLLMフォールバックは無効になります")
		}
		if cfg.AnthropicAPIKey != "" && !strings.HasPrefix(cfg.AnthropicAPIKey, "sk-") {
			result.addWarning("ANTHROPIC_API_KEY は通常 'sk-' で始まります")
		}
	case "google":
		if cfg.LLMFallback && cfg.GoogleAPIKey == "" {
			result.addWarning("GOOGLE_API_KEY が未設定のためLLMフォールバックは無効になります")
		}
		if cfg.GoogleAPIKey != "" && len(cfg.GoogleAPIKey) < 20 {
			result.addWarning("GOOGLE_API_KEY が短すぎるようです")
		}
	default:
		result.addError("LLM_PROVIDER が不正です: %s ('anthropic' または 'google' を指定してください)", cfg.LLMProvider)
	}

	if cfg.CompletenessThreshold < 0 || cfg.CompletenessThreshold > 1 {
		result.addError("PARSE_COMPLETENESS_THRESHOLD は0〜1の範囲で指定してください: %g", cfg.CompletenessThreshold)
	}
}

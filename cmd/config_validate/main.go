package main

import (
	"flag"
	"fmt"
	"os"

	"texttojira/config"
	"texttojira/utils"
)

func main() {
	// ヘルプフラグの定義
	help := flag.Bool("help", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	utils.LogInfo("設定検証ツール")

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	// 検証の実行
	result := config.Validate(cfg)

	for _, w := range result.Warnings {
		utils.LogWarn("%s", w)
	}
	for _, e := range result.Errors {
		utils.LogError("%s", e)
	}

	if !result.OK() {
		utils.LogError("設定にエラーがあります（エラー %d件、警告 %d件）", len(result.Errors), len(result.Warnings))
		os.Exit(1)
	}

	utils.LogInfo("設定は正常です（警告 %d件）", len(result.Warnings))
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
設定検証ツール

使用方法:
  %s [オプション]

オプション:
  -help               このヘルプを表示する

環境変数:
  JIRA_URL            JIRA URL (必須)
  JIRA_EMAIL          JIRA APIアカウントのメールアドレス (必須)
  JIRA_API_TOKEN      JIRA APIトークン (必須)
  JIRA_PROJECT_KEY    JIRAプロジェクトキー (必須)
  LLM_PROVIDER        LLMプロバイダー: anthropic または google (デフォルト: anthropic)
  ANTHROPIC_API_KEY   Anthropic APIキー
  GOOGLE_API_KEY      Google APIキー
  LLM_FALLBACK        LLMフォールバックの有効/無効 (デフォルト: true)
  PARSE_COMPLETENESS_THRESHOLD  LLMフォールバックを起動する完全性スコアの閾値 (デフォルト: 0.5)

説明:
  このツールは.envファイルと環境変数の設定内容を検証します。
  JIRAへの接続は行いません。接続確認にはauth_checkを使用してください。
`, os.Args[0])
}

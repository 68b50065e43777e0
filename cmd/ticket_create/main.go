package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"texttojira/api"
	"texttojira/config"
	"texttojira/services"
	"texttojira/utils"
)

func main() {
	// コマンドラインフラグの定義
	inputFile := flag.String("input", "", "チケット定義テキストファイルのパス（指定しない場合は環境変数から取得）")
	inputFileShort := flag.String("i", "", "-input の短縮形")
	dryRun := flag.Bool("dry-run", false, "JIRAに作成せずパースと解決の結果だけ表示する")
	enhance := flag.Bool("enhance", false, "LLMでチケットの説明文を改善する")
	noLLM := flag.Bool("no-llm", false, "LLMフォールバックを無効にする")
	yes := flag.Bool("yes", false, "作成前の確認をスキップする")
	verbose := flag.Bool("verbose", false, "詳細ログを出力する")
	help := flag.Bool("help", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	// 開始時間の記録
	startTime := time.Now()

	utils.SetVerbose(*verbose)
	utils.LogInfo("テキスト → JIRA チケット作成ツール (v1.0.0)")

	// 設定の読み込み
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	if *inputFile == "" {
		inputFile = inputFileShort
	}
	if *inputFile != "" {
		cfg.InputFile = *inputFile
	}
	if *noLLM {
		cfg.LLMFallback = false
	}

	// LLMクライアントの初期化（キー未設定の場合はフォールバック無効で続行）
	var llmClient *api.LLMClient
	if cfg.LLMFallback || *enhance {
		llmClient, err = api.NewLLMClient(cfg)
		if err != nil {
			utils.LogWarn("LLMを初期化できませんでした（フォールバック無効で続行します）: %v", err)
		}
	}

	// パーサーの初期化（LLMはインターフェース経由で注入）
	var extractor services.IssueExtractor
	var enhancer services.Enhancer
	if llmClient != nil {
		extractor = llmClient
		enhancer = llmClient
	}
	parser := services.NewTextParser(cfg, extractor)

	// 入力ファイルの読み込み
	utils.LogInfo("入力ファイルを読み込みます: %s", cfg.InputFile)
	content, err := os.ReadFile(cfg.InputFile)
	if err != nil {
		utils.LogError("入力ファイル読み込みエラー: %v", err)
		os.Exit(1)
	}

	// トラッカーの初期化と前提条件チェック（ドライランでは省略可能）
	var tracker services.Tracker
	result := config.Validate(cfg)
	if result.OK() {
		jiraClient := api.NewJiraClient(cfg)
		if !*dryRun {
			utils.LogInfo("JIRA APIの認証を確認しています...")
			if err := jiraClient.CheckAuth(); err != nil {
				utils.LogError("JIRA認証エラー: %v", err)
				os.Exit(1)
			}
			utils.LogInfo("JIRA認証成功")
		}
		tracker = jiraClient
	} else if !*dryRun {
		utils.LogError("設定が不完全です:")
		for _, e := range result.Errors {
			utils.LogError("  - %s", e)
		}
		os.Exit(1)
	} else {
		utils.LogWarn("JIRA設定が不完全なため、ドライランは空のエピック一覧で実行します")
	}

	// 作成前の確認（ドライランでは不要）
	if !*dryRun && !*yes {
		if !confirm("JIRAにチケットを作成しますか？") {
			utils.LogInfo("処理を中止しました")
			return
		}
	}

	// 実行
	runService := services.NewRunService(tracker, parser, enhancer)
	report, err := runService.Run(string(content), services.RunOptions{
		DryRun:  *dryRun,
		Enhance: *enhance,
	})
	if err != nil {
		utils.LogError("チケット作成処理に失敗しました: %v", err)
		os.Exit(1)
	}

	// 結果サマリーの表示
	services.PrintReport(report)

	elapsed := time.Since(startTime)
	utils.LogInfo("処理が完了しました。合計実行時間: %s", elapsed)
}

// confirm は標準入力でy/nの確認を行います
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
テキスト → JIRA チケット作成ツール

使用方法:
  %s [オプション]

オプション:
  -input ファイル      チケット定義テキストファイル（-i でも可）
  -dry-run            JIRAに作成せずパースと解決の結果だけ表示する
  -enhance            LLMでチケットの説明文を改善する
  -no-llm             LLMフォールバックを無効にする
  -yes                作成前の確認をスキップする
  -verbose            詳細ログを出力する
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
  INPUT_FILE          入力テキストファイルパス (デフォルト: tickets.txt)

例:
  # ドライランでパース結果を確認
  %s -input tickets.txt -dry-run

  # チケットを作成
  %s -input tickets.txt

  # LLMで説明文を改善しながら作成
  %s -input tickets.txt -enhance
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

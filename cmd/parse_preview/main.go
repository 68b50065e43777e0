package main

import (
	"flag"
	"fmt"
	"os"

	"texttojira/config"
	"texttojira/models"
	"texttojira/services"
	"texttojira/utils"
)

func main() {
	// コマンドラインフラグの定義
	inputFile := flag.String("input", "", "チケット定義テキストファイルのパス")
	noLLM := flag.Bool("no-llm", false, "LLMフォールバックを無効にする")
	verbose := flag.Bool("verbose", false, "詳細ログを出力する")
	help := flag.Bool("help", false, "ヘルプを表示する")

	// フラグのパース
	flag.Parse()

	// ヘルプフラグが指定された場合はヘルプを表示
	if *help {
		printHelp()
		return
	}

	utils.SetVerbose(*verbose)
	utils.LogInfo("テキストパースプレビューツール (v1.0.0)")

	// 設定の読み込み（JIRA設定が未完成でもパースは可能）
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	if *inputFile != "" {
		cfg.InputFile = *inputFile
	}
	if *noLLM {
		cfg.LLMFallback = false
	}

	parser := services.NewTextParser(cfg, nil)

	issues, stats, err := parser.ParseFile(cfg.InputFile)
	if err != nil {
		utils.LogError("パースエラー: %v", err)
		os.Exit(1)
	}

	// 正規化されたテキストを出力
	fmt.Print(services.Format(issues))

	// 集計の表示
	epics := 0
	stories := 0
	for _, issue := range issues {
		if issue.Type == models.IssueTypeEpic {
			epics++
		} else {
			stories++
		}
	}
	utils.LogInfo("パース結果: エピック %d件、ストーリー/タスク %d件", epics, stories)
	if stats.IncompleteFields > 0 {
		utils.LogWarn("欠落フィールドが %d 件あります", stats.IncompleteFields)
	}
	for _, p := range stats.UnmappedPriorities {
		utils.LogWarn("未知の優先度表記: %s", p)
	}
}

// ヘルプメッセージを表示する関数
func printHelp() {
	fmt.Printf(`
テキストパースプレビューツール

テキストファイルをパースし、正規化されたチケット定義を標準出力に表示します。
JIRAへの接続は行いません。

使用方法:
  %s [オプション]

オプション:
  -input ファイル      チケット定義テキストファイル
  -no-llm             LLMフォールバックを無効にする
  -verbose            詳細ログを出力する
  -help               このヘルプを表示する

環境変数:
  INPUT_FILE          入力テキストファイルパス (デフォルト: tickets.txt)
  PARSE_COMPLETENESS_THRESHOLD  LLMフォールバックを起動する完全性スコアの閾値 (デフォルト: 0.5)
`, os.Args[0])
}

package services

import (
	"fmt"
	"time"

	"texttojira/models"
	"texttojira/utils"
)

// Enhancer はチケットの説明文を改善するLLMコラボレーターです
type Enhancer interface {
	Enhance(issue models.JiraIssue) (models.JiraIssue, error)
}

// RunOptions は1回の実行のオプションを表します
type RunOptions struct {
	DryRun  bool // 外部への作成呼び出しをすべて省略する
	Enhance bool // LLMで説明文を改善する
}

// RunService はパース→解決→作成→リンクの一連の処理を実行します
type RunService struct {
	tracker  Tracker
	parser   *TextParser
	enhancer Enhancer // nilの場合は改善をスキップ
}

// NewRunService は新しい実行サービスを作成します
func NewRunService(tracker Tracker, parser *TextParser, enhancer Enhancer) *RunService {
	return &RunService{
		tracker:  tracker,
		parser:   parser,
		enhancer: enhancer,
	}
}

// Run はテキスト入力からチケットを作成する処理全体を実行します
// レコード単位の失敗はレポートに記録して続行し、実行全体を無意味にする
// 失敗（トラッカーに到達できない等）のみエラーを返します
func (s *RunService) Run(text string, opts RunOptions) (*models.RunReport, error) {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "チケット作成処理")

	report := &models.RunReport{DryRun: opts.DryRun}

	// 1. パース
	issues, stats := s.parser.Parse(text)
	if len(issues) == 0 {
		return nil, fmt.Errorf("入力からチケットが見つかりませんでした")
	}

	utils.LogInfo("%d 件のチケットを抽出しました", len(issues))
	s.recordParseStats(stats, report)

	// 2. LLMによる改善（ドライランでは外部呼び出しを避けるためスキップ）
	if opts.Enhance && !opts.DryRun {
		issues = s.enhanceAll(issues, report)
	}

	// 3. トラッカーの選択（ドライランは読み取りのみ委譲するデコレーター）
	tracker := s.tracker
	if opts.DryRun {
		utils.LogInfo("ドライランモード: JIRAへの作成は行いません")
		tracker = NewDryRunTracker(s.tracker)
	}
	if tracker == nil {
		return nil, fmt.Errorf("トラッカーが設定されていません")
	}

	// 4. 既存イシューの発見（失敗は実行前提条件の欠如として致命的）
	epics, err := tracker.SearchEpics()
	if err != nil {
		return nil, fmt.Errorf("エピック発見エラー: %w", err)
	}
	existing, err := tracker.SearchIssues()
	if err != nil {
		return nil, fmt.Errorf("既存イシュー取得エラー: %w", err)
	}

	// 5. 作成計画の構築
	plan := BuildPlan(issues, epics, existing)

	// エピックリンクフィールドの検出は実行ごとに1回だけ
	plan.Context.EpicLinkField = tracker.EpicLinkField()

	// 6. 計画順に作成（エピックが先、失敗はスキップして続行）
	keys := s.createAll(plan, tracker, report)

	// 7. 第2パス: 全作成完了後に依存リンクを適用
	s.applyLinks(plan, keys, tracker, report)

	return report, nil
}

// recordParseStats はパース品質の情報をレポートに反映します
func (s *RunService) recordParseStats(stats *ParseStats, report *models.RunReport) {
	if stats.UsedFallback {
		report.AddWarning("構造化パースが不十分なためLLMフォールバックを使用しました")
	}
	if stats.SkippedSuggestions > 0 {
		report.AddWarning(fmt.Sprintf("LLMレスポンス内の不正なレコードを %d 件スキップしました", stats.SkippedSuggestions))
	}
	if stats.IncompleteFields > 0 {
		report.AddWarning(fmt.Sprintf("%d 件のフィールドが欠落しています（デフォルト値で補完）", stats.IncompleteFields))
	}
	for _, p := range stats.UnmappedPriorities {
		report.AddWarning(fmt.Sprintf("未知の優先度 '%s' をMediumとして扱いました", p))
	}
}

// enhanceAll は全チケットの説明文をLLMで改善します
// 失敗したチケットは元のまま使用します
func (s *RunService) enhanceAll(issues []models.JiraIssue, report *models.RunReport) []models.JiraIssue {
	if s.enhancer == nil {
		report.AddWarning("LLMが設定されていないため説明文の改善をスキップしました")
		return issues
	}

	utils.LogInfo("LLMでチケットの説明文を改善します")
	enhanced := make([]models.JiraIssue, 0, len(issues))
	for _, issue := range issues {
		result, err := s.enhancer.Enhance(issue)
		if err != nil {
			utils.LogWarn("'%s' の改善に失敗しました（元の内容を使用）: %v", issue.Title, err)
			enhanced = append(enhanced, issue)
			continue
		}
		enhanced = append(enhanced, result)
	}
	return enhanced
}

// createAll は計画の項目を順に作成し、項目ごとの発行キーを返します
// 既存と判定した項目は再作成せず既存キーを使います（冪等性）
func (s *RunService) createAll(plan *Plan, tracker Tracker, report *models.RunReport) []string {
	ctx := plan.Context
	keys := make([]string, len(plan.Items))

	for i, item := range plan.Items {
		issue := item.Issue

		if item.ExistingKey != "" {
			utils.LogInfo("'%s' は既存イシュー %s と一致するため作成をスキップします", issue.Title, item.ExistingKey)
			report.Existing = append(report.Existing, item.ExistingKey)
			s.register(ctx, issue, item.ExistingKey)
			keys[i] = item.ExistingKey
			continue
		}

		// ストーリー/タスクの親エピック解決
		epicKey := ""
		if item.ParentRef != "" {
			key, warning, ok := ctx.ResolveParent(item.ParentRef)
			if ok {
				epicKey = key
				if warning != "" {
					report.AddWarning(warning)
					utils.LogWarn("%s", warning)
				}
			} else {
				msg := fmt.Sprintf("親エピック '%s' を解決できませんでした: %s", item.ParentRef, issue.Title)
				report.AddWarning(msg)
				utils.LogWarn("%s", msg)
			}
		}

		key, err := tracker.CreateIssue(issue, epicKey)
		if err != nil {
			utils.LogError("'%s' の作成に失敗しました: %v", issue.Title, err)
			report.Skipped = append(report.Skipped, models.SkippedRecord{
				Title:  issue.Title,
				Reason: err.Error(),
			})
			continue
		}

		utils.LogInfo("イシューを作成しました: %s (%s)", key, issue.Title)
		report.CreatedKeys = append(report.CreatedKeys, key)
		s.register(ctx, issue, key)
		keys[i] = key
	}

	return keys
}

// register は作成済みイシューを解決コンテキストに登録します
func (s *RunService) register(ctx *ResolutionContext, issue models.JiraIssue, key string) {
	if issue.Type == models.IssueTypeEpic {
		ctx.RegisterEpic(issue, key)
	} else {
		ctx.RegisterIssue(issue, key)
	}
}

// applyLinks は依存参照を解決してBlocksリンクを作成します
// 解決できない参照は警告とともに破棄し、処理は続行します
func (s *RunService) applyLinks(plan *Plan, keys []string, tracker Tracker, report *models.RunReport) {
	ctx := plan.Context

	for i, item := range plan.Items {
		key := keys[i]
		if key == "" || item.Issue.Dependencies == "" {
			continue
		}

		for _, ref := range ParseDependencies(item.Issue.Dependencies) {
			depKey, ok := ctx.ResolveDependency(ref)
			if !ok {
				utils.LogWarn("依存参照 '%s' を解決できませんでした（リンクを破棄します）", ref)
				report.Dropped = append(report.Dropped, models.DroppedLink{
					FromKey: key,
					Ref:     ref,
					Reason:  "参照を解決できませんでした",
				})
				continue
			}

			// 自己リンクは作成しない
			if depKey == key {
				report.Dropped = append(report.Dropped, models.DroppedLink{
					FromKey: key,
					Ref:     ref,
					Reason:  "自分自身への依存参照",
				})
				continue
			}

			if err := tracker.CreateLink(key, depKey); err != nil {
				utils.LogWarn("依存リンクの作成に失敗しました %s <- %s: %v", key, depKey, err)
				report.Dropped = append(report.Dropped, models.DroppedLink{
					FromKey: key,
					Ref:     ref,
					Reason:  err.Error(),
				})
				continue
			}

			utils.LogInfo("依存リンクを作成しました: %s が %s をブロック", depKey, key)
			report.LinksApplied = append(report.LinksApplied, models.DependencyLink{
				FromKey:  key,
				ToKey:    depKey,
				Relation: models.RelationBlocks,
			})
		}
	}
}

// PrintReport は実行結果のサマリーを出力します
// 部分的な成功を暗黙に握りつぶさないため、スキップや破棄も必ず表示します
func PrintReport(report *models.RunReport) {
	mode := ""
	if report.DryRun {
		mode = "（ドライラン）"
	}

	utils.LogInfo("===== 実行結果サマリー%s =====", mode)
	utils.LogInfo("作成したイシュー: %d 件", len(report.CreatedKeys))
	for _, key := range report.CreatedKeys {
		utils.LogInfo("  - %s", key)
	}

	if len(report.Existing) > 0 {
		utils.LogInfo("既存のためスキップ: %d 件", len(report.Existing))
		for _, key := range report.Existing {
			utils.LogInfo("  - %s", key)
		}
	}

	if len(report.Skipped) > 0 {
		utils.LogWarn("作成に失敗したレコード: %d 件", len(report.Skipped))
		for _, skipped := range report.Skipped {
			utils.LogWarn("  - %s: %s", skipped.Title, skipped.Reason)
		}
	}

	utils.LogInfo("作成した依存リンク: %d 件", len(report.LinksApplied))

	if len(report.Dropped) > 0 {
		utils.LogWarn("破棄した依存参照: %d 件", len(report.Dropped))
		for _, dropped := range report.Dropped {
			utils.LogWarn("  - %s の '%s': %s", dropped.FromKey, dropped.Ref, dropped.Reason)
		}
	}

	for _, warning := range report.Warnings {
		utils.LogWarn("注意: %s", warning)
	}
}

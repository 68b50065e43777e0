package services

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"texttojira/config"
	"texttojira/models"
	"texttojira/utils"
)

var (
	epicHeaderRe  = regexp.MustCompile(`^Epic \d+:\s*(.*)$`)
	storyHeaderRe = regexp.MustCompile(`^Story \d+:\s*(.*)$`)
)

// IssueExtractor は構造化パースが不十分な場合のLLMフォールバックです
// 戻り値は (抽出したチケット, スキップした不正レコード数, エラー) です
type IssueExtractor interface {
	ExtractIssues(text string) ([]models.JiraIssue, int, error)
}

// ParseStats はパース結果の品質情報を保持します
type ParseStats struct {
	IncompleteFields   int      // 欠落していた期待フィールドの総数
	UnmappedPriorities []string // マッピングできなかった優先度表記
	SkippedSuggestions int      // LLMレスポンスからスキップした件数
	UsedFallback       bool     // LLMフォールバックを使用したかどうか
}

// TextParser はテキスト入力からJIRAチケットを抽出します
type TextParser struct {
	config    *config.Config
	extractor IssueExtractor // nilの場合フォールバックは無効
}

// NewTextParser は新しいテキストパーサーを作成します
func NewTextParser(cfg *config.Config, extractor IssueExtractor) *TextParser {
	return &TextParser{
		config:    cfg,
		extractor: extractor,
	}
}

// ParseFile はテキストファイルを読み込んでチケットを抽出します
func (p *TextParser) ParseFile(path string) ([]models.JiraIssue, *ParseStats, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("入力ファイル読み込みエラー: %w", err)
	}

	issues, stats := p.Parse(string(content))
	return issues, stats, nil
}

// Parse はテキストからチケットを抽出します。失敗しても空リストを返すだけで
// エラーにはなりません（部分的な失敗はStatsに記録されます）
func (p *TextParser) Parse(text string) ([]models.JiraIssue, *ParseStats) {
	stats := &ParseStats{}
	issues := p.parseStructured(text, stats)

	if p.shouldUseFallback(issues) {
		utils.LogInfo("構造化パースが不十分なためLLMフォールバックを試行します")

		llmIssues, skipped, err := p.extractor.ExtractIssues(text)
		if err != nil {
			utils.LogWarn("LLMフォールバック失敗（構造化パースの結果を使用します）: %v", err)
			return issues, stats
		}

		if len(llmIssues) > 0 {
			utils.LogInfo("LLMフォールバックで %d 件のチケットを抽出しました", len(llmIssues))
			stats.UsedFallback = true
			stats.SkippedSuggestions = skipped
			return llmIssues, stats
		}

		utils.LogWarn("LLMフォールバックは0件でした（構造化パースの結果を使用します）")
	}

	return issues, stats
}

// blockState は処理中の1ブロック分の状態を保持します
type blockState struct {
	issue      *models.JiraIssue
	descLines  []string
	boLines    []string
	inCriteria bool
}

// parseStructured は行単位のパターン認識で構造化フォーマットを解釈します
func (p *TextParser) parseStructured(text string, stats *ParseStats) []models.JiraIssue {
	var issues []models.JiraIssue
	state := &blockState{}

	finalize := func() {
		if state.issue == nil {
			return
		}
		issue := *state.issue
		issue.Description = strings.Join(state.descLines, "\n")
		issue.BusinessOutcome = strings.Join(state.boLines, "\n")
		if issue.Title == "" {
			issue.Title = fmt.Sprintf("Untitled %s", issue.Type)
		}
		stats.IncompleteFields += missingFields(issue)
		issues = append(issues, issue)
		state = &blockState{}
	}

	boMode := false

	startBlock := func(issueType models.IssueType, title string) {
		finalize()
		boMode = false
		state.issue = &models.JiraIssue{
			Type:     issueType,
			Title:    strings.TrimSpace(title),
			Priority: models.PriorityMedium,
		}
	}

	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)

		// 空行は受け入れ条件リストの終端として扱う
		if line == "" {
			state.inCriteria = false
			continue
		}

		// ブロック開始ヘッダー
		if m := epicHeaderRe.FindStringSubmatch(line); m != nil {
			startBlock(models.IssueTypeEpic, m[1])
			continue
		}
		if m := storyHeaderRe.FindStringSubmatch(line); m != nil {
			startBlock(models.IssueTypeStory, m[1])
			continue
		}
		if rest, ok := cutHeader(line, "Story Key:"); ok {
			if state.issue != nil {
				state.issue.StoryKey = rest
			}
			continue
		}
		if rest, ok := cutHeader(line, "Story:"); ok {
			startBlock(models.IssueTypeStory, rest)
			continue
		}
		if rest, ok := cutHeader(line, "Task:"); ok {
			startBlock(models.IssueTypeTask, rest)
			continue
		}

		if state.issue == nil {
			// ブロック開始前のテキストは無視する
			continue
		}

		// フィールドヘッダー
		if rest, ok := cutHeader(line, "Epic Name:"); ok {
			if state.issue.Type == models.IssueTypeEpic {
				state.issue.EpicName = rest
				state.issue.Title = rest
			}
			continue
		}
		if rest, ok := cutHeader(line, "Description:"); ok {
			boMode = false
			state.inCriteria = false
			if rest != "" {
				state.descLines = append(state.descLines, rest)
			}
			continue
		}
		if rest, ok := cutHeader(line, "Business Outcome:"); ok {
			boMode = true
			state.inCriteria = false
			if rest != "" {
				state.boLines = append(state.boLines, rest)
			}
			continue
		}
		if rest, ok := cutHeader(line, "Priority:"); ok {
			priority, mapped := parsePriority(rest)
			state.issue.Priority = priority
			state.issue.PriorityExplicit = true
			if !mapped {
				stats.UnmappedPriorities = append(stats.UnmappedPriorities, rest)
				utils.LogWarn("未知の優先度 '%s' をMediumとして扱います", rest)
			}
			state.inCriteria = false
			boMode = false
			continue
		}
		if rest, ok := cutHeader(line, "Parent:"); ok {
			// エピックは親参照を持たない
			if state.issue.Type != models.IssueTypeEpic {
				state.issue.Parent = rest
			}
			continue
		}
		if rest, ok := cutHeader(line, "Dependencies:"); ok {
			state.issue.Dependencies = rest
			state.inCriteria = false
			continue
		}
		if rest, ok := cutHeader(line, "Estimated Effort:"); ok {
			state.issue.EstimatedEffort = rest
			state.inCriteria = false
			continue
		}
		if rest, ok := cutHeader(line, "Labels:"); ok {
			state.issue.Labels = models.NormalizeLabels(rest)
			state.inCriteria = false
			continue
		}
		if line == "Acceptance Criteria:" {
			state.inCriteria = true
			boMode = false
			continue
		}

		// 受け入れ条件の項目（箇条書きまたは裸の行）
		if state.inCriteria {
			item := strings.TrimSpace(strings.TrimLeft(line, "*- "))
			if item != "" {
				state.issue.AcceptanceCriteria = append(state.issue.AcceptanceCriteria, item)
			}
			continue
		}

		// ユーザーストーリー形式の行は説明文に取り込む
		if strings.HasPrefix(line, "As a ") || strings.HasPrefix(line, "I want ") || strings.HasPrefix(line, "So that ") {
			state.descLines = append(state.descLines, line)
			continue
		}

		// 認識できない行は説明文（またはビジネス成果）に畳み込む
		if boMode {
			state.boLines = append(state.boLines, line)
		} else {
			state.descLines = append(state.descLines, line)
		}
	}

	finalize()
	return issues
}

// shouldUseFallback はLLMフォールバックを使うべきかどうかを判定します
func (p *TextParser) shouldUseFallback(issues []models.JiraIssue) bool {
	if p.extractor == nil || !p.config.LLMFallback {
		return false
	}

	if len(issues) == 0 {
		return true
	}

	return aggregateCompleteness(issues) < p.config.CompletenessThreshold
}

// aggregateCompleteness は全チケットの完全性スコアの平均を返します
// スコアは {タイトル, 説明または受け入れ条件, 明示された優先度} のうち
// 存在するフィールドの割合です
func aggregateCompleteness(issues []models.JiraIssue) float64 {
	if len(issues) == 0 {
		return 0
	}

	total := 0.0
	for _, issue := range issues {
		total += float64(3-missingFields(issue)) / 3.0
	}
	return total / float64(len(issues))
}

// missingFields は期待フィールドのうち欠落している数を返します
func missingFields(issue models.JiraIssue) int {
	missing := 0
	if strings.TrimSpace(issue.Title) == "" || strings.HasPrefix(issue.Title, "Untitled") {
		missing++
	}
	if strings.TrimSpace(issue.Description) == "" && len(issue.AcceptanceCriteria) == 0 {
		missing++
	}
	if !issue.PriorityExplicit {
		missing++
	}
	return missing
}

// parsePriority は優先度表記をPriority列挙に変換します
// 2番目の戻り値はマッピングが見つかったかどうかです
func parsePriority(s string) (models.Priority, bool) {
	if name, ok := config.PriorityMapping[strings.ToLower(strings.TrimSpace(s))]; ok {
		return models.Priority(name), true
	}
	return models.PriorityMedium, false
}

// cutHeader は行が指定ヘッダーで始まる場合に残りの部分を返します
func cutHeader(line, header string) (string, bool) {
	if !strings.HasPrefix(line, header) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, header)), true
}

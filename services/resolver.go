package services

import (
	"fmt"
	"regexp"
	"strings"

	"texttojira/models"
	"texttojira/utils"
)

var (
	issueKeyRe   = regexp.MustCompile(`^[A-Z][A-Z0-9]*-\d+$`)
	bracketRefRe = regexp.MustCompile(`^\[([A-Z][A-Z0-9]*)\]\s*(.+)$`)
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9]+`)
	upperWordRe  = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)
)

// Tracker は外部イシュートラッカーとの境界です
// コアは認証やリトライを管理せず、この操作のみを利用します
type Tracker interface {
	SearchEpics() ([]models.EpicSummary, error)
	SearchIssues() ([]models.IssueSummary, error)
	CreateIssue(issue models.JiraIssue, epicKey string) (string, error)
	CreateLink(fromKey, toKey string) error
	EpicLinkField() string
}

// normalizeRef は参照文字列を照合用に正規化します
// （小文字化、記号の除去、連続空白の圧縮）
func normalizeRef(s string) string {
	s = strings.ToLower(s)
	s = nonAlnumRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ExtractEpicPrefix はエピックのサマリーからプレフィックスを抽出します
// 「[PREP] Title」「PREP - Title」「PREP Title」の3パターンを認識します
func ExtractEpicPrefix(summary string) string {
	summary = strings.TrimSpace(summary)

	if m := regexp.MustCompile(`^\[([A-Z][A-Z0-9]*)\]`).FindStringSubmatch(summary); m != nil {
		return m[1]
	}

	if idx := strings.Index(summary, " - "); idx > 0 {
		prefix := strings.TrimSpace(summary[:idx])
		if upperWordRe.MatchString(prefix) && len(prefix) <= 10 {
			return prefix
		}
	}

	words := strings.Fields(summary)
	if len(words) > 0 && upperWordRe.MatchString(words[0]) && len(words[0]) <= 10 {
		return words[0]
	}

	return ""
}

// epicPrefix はエピック名から索引用のプレフィックスを決定します
// 定型プレフィックスが無い自由形式の名前は「 - 」の前の部分、
// それも無ければ名前全体にフォールバックします
func epicPrefix(name string) string {
	if p := ExtractEpicPrefix(name); p != "" {
		return p
	}

	name = strings.TrimSpace(name)
	if idx := strings.Index(name, " - "); idx > 0 {
		return strings.TrimSpace(name[:idx])
	}
	return name
}

// epicEntry はエピックインデックスの1エントリです
type epicEntry struct {
	prefix     string
	normalized string
	key        string
}

// EpicIndex は正規化したエピックプレフィックスからキーへの索引です
// 照合は大文字小文字と記号のゆれを無視し、最長プレフィックス一致を採用します
type EpicIndex struct {
	entries []epicEntry // 発見順
}

// NewEpicIndex は既存エピックの一覧からインデックスを構築します
func NewEpicIndex(epics []models.EpicSummary) *EpicIndex {
	idx := &EpicIndex{}
	for _, epic := range epics {
		idx.Add(epicPrefix(epic.Summary), epic.Key)
	}
	return idx
}

// Add はプレフィックスとキーの対応を追加します
func (idx *EpicIndex) Add(prefix, key string) {
	norm := normalizeRef(prefix)
	if norm == "" {
		return
	}
	idx.entries = append(idx.entries, epicEntry{prefix: prefix, normalized: norm, key: key})
}

// Len は登録済みエントリ数を返します
func (idx *EpicIndex) Len() int {
	return len(idx.entries)
}

// Match は参照に一致するエピックのキーを返します
// 複数候補がある場合は最長プレフィックスが勝ち、同長の場合は先に発見した
// エピックを採用して警告文字列を返します
func (idx *EpicIndex) Match(ref string) (key string, warning string, ok bool) {
	norm := normalizeRef(ref)
	if norm == "" {
		return "", "", false
	}

	var best *epicEntry
	ambiguous := false

	for i := range idx.entries {
		entry := &idx.entries[i]
		if !matchesPrefix(norm, entry.normalized) {
			continue
		}
		switch {
		case best == nil:
			best = entry
		case len(entry.normalized) > len(best.normalized):
			best = entry
			ambiguous = false
		case len(entry.normalized) == len(best.normalized) && entry.key != best.key:
			// 同長一致: 先に発見したエピックを採用
			ambiguous = true
		}
	}

	if best == nil {
		return "", "", false
	}

	if ambiguous {
		warning = fmt.Sprintf("エピック参照 '%s' の一致が曖昧です（%s を採用）", ref, best.key)
	}
	return best.key, warning, true
}

// matchesPrefix は一方が他方のプレフィックスであれば一致とみなします
func matchesPrefix(ref, entry string) bool {
	if strings.HasPrefix(ref, entry) {
		return true
	}
	return strings.HasPrefix(entry, ref)
}

// refEntry は解決コンテキストの1エントリです
type refEntry struct {
	normalized string
	key        string
}

// ResolutionContext は1回の実行の間に蓄積される参照→キーの対応表です
// レコードが作成されるたびに成長し、依存関係の解決に使われます
type ResolutionContext struct {
	epics   *EpicIndex
	exact   map[string]string // 正規化した参照 → キー（先勝ち）
	entries []refEntry        // 発見順（タイブレーク用）

	// 実行ごとに1回だけ検出するエピックリンクフィールド
	EpicLinkField string
}

// NewResolutionContext は空の解決コンテキストを作成します
func NewResolutionContext(epics *EpicIndex) *ResolutionContext {
	if epics == nil {
		epics = &EpicIndex{}
	}
	return &ResolutionContext{
		epics: epics,
		exact: make(map[string]string),
	}
}

// Epics はエピックインデックスを返します
func (c *ResolutionContext) Epics() *EpicIndex {
	return c.epics
}

// Register は参照文字列とキーの対応を登録します（先勝ち）
func (c *ResolutionContext) Register(ref, key string) {
	norm := normalizeRef(ref)
	if norm == "" || key == "" {
		return
	}
	if _, ok := c.exact[norm]; ok {
		return
	}
	c.exact[norm] = key
	c.entries = append(c.entries, refEntry{normalized: norm, key: key})
}

// RegisterEpic は作成または発見したエピックをインデックスと対応表に登録します
func (c *ResolutionContext) RegisterEpic(issue models.JiraIssue, key string) {
	name := issue.EpicName
	if name == "" {
		name = issue.Title
	}

	prefix := epicPrefix(name)
	if prefix != "" {
		c.epics.Add(prefix, key)
		c.Register(prefix, key)
	}

	c.Register(name, key)
	c.Register(issue.Title, key)
	c.Register(key, key)
}

// RegisterIssue は作成したストーリー/タスクを対応表に登録します
func (c *ResolutionContext) RegisterIssue(issue models.JiraIssue, key string) {
	c.Register(issue.Title, key)
	if issue.StoryKey != "" {
		c.Register(issue.StoryKey, key)
	}
	c.Register(key, key)
}

// ResolveParent は親エピック参照をキーに解決します
func (c *ResolutionContext) ResolveParent(ref string) (string, string, bool) {
	return c.epics.Match(ref)
}

// ResolveDependency は依存参照をイシューキーに解決します
// 解決手順: リテラルキー → 完全一致 → ブラケット形式の部分一致 →
// エピックへのフォールバック → 最長プレフィックス一致
func (c *ResolutionContext) ResolveDependency(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)

	// すでにJIRAキーの形式ならそのまま使う
	if issueKeyRe.MatchString(ref) {
		return ref, true
	}

	norm := normalizeRef(ref)
	if key, ok := c.exact[norm]; ok {
		return key, true
	}

	// 「[PREP] タスク名」形式
	if m := bracketRefRe.FindStringSubmatch(ref); m != nil {
		prefix, title := m[1], m[2]

		if key, ok := c.exact[normalizeRef(title)]; ok {
			return key, true
		}

		// プレフィックスが一致しタスク名を含むエントリを部分一致で探す
		normPrefix := normalizeRef(prefix)
		normTitle := normalizeRef(title)
		for _, entry := range c.entries {
			if strings.HasPrefix(entry.normalized, normPrefix) && strings.Contains(entry.normalized, normTitle) {
				return entry.key, true
			}
		}

		// 該当ストーリーがなければエピックにフォールバック
		if key, _, ok := c.epics.Match(prefix); ok {
			return key, true
		}
		return "", false
	}

	// 最長プレフィックス一致（同長は先勝ち）
	var bestKey string
	bestLen := -1
	for _, entry := range c.entries {
		if !matchesPrefix(norm, entry.normalized) {
			continue
		}
		if len(entry.normalized) > bestLen {
			bestKey = entry.key
			bestLen = len(entry.normalized)
		}
	}
	if bestLen >= 0 {
		return bestKey, true
	}

	if key, _, ok := c.epics.Match(ref); ok {
		return key, true
	}

	return "", false
}

// ParseDependencies は依存関係の生文字列を個々の参照に分割します
func ParseDependencies(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var refs []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		// 「None」「none (initial task)」などは依存なしとして扱う
		if strings.HasPrefix(strings.ToLower(part), "none") {
			continue
		}
		refs = append(refs, part)
	}
	return refs
}

// PlannedIssue は作成計画の1項目を表します
type PlannedIssue struct {
	Issue       models.JiraIssue
	ParentRef   string // ストーリーの親エピック参照（作成時に解決）
	ExistingKey string // 既存と判定した場合そのキー（再作成しない）
	Placeholder bool   // 未解決の親参照から合成したエピックかどうか
}

// Plan は順序付きの作成計画と解決コンテキストを保持します
// エピックが必ずストーリーより先に並びます
type Plan struct {
	Items   []PlannedIssue
	Context *ResolutionContext
}

// BuildPlan はパース済みチケットと既存イシューから作成計画を構築します
// 親参照がどのエピックとも一致しないストーリーに対しては
// プレースホルダーのエピックを合成して計画の先頭側に挿入します
func BuildPlan(issues []models.JiraIssue, epics []models.EpicSummary, existing []models.IssueSummary) *Plan {
	idx := NewEpicIndex(epics)
	ctx := NewResolutionContext(idx)
	plan := &Plan{Context: ctx}

	// 既存イシューを対応表に登録（冪等性: 同名タイトルは再作成しない）
	existingEpics := make(map[string]string)
	for _, epic := range epics {
		ctx.Register(epic.Summary, epic.Key)
		ctx.Register(epic.Key, epic.Key)
		existingEpics[normalizeRef(epic.Summary)] = epic.Key
	}
	existingIssues := make(map[string]string)
	for _, issue := range existing {
		ctx.Register(issue.Summary, issue.Key)
		ctx.Register(issue.Key, issue.Key)
		existingIssues[normalizeRef(issue.Summary)] = issue.Key
	}

	var epicItems []PlannedIssue
	var storyItems []PlannedIssue

	for _, issue := range issues {
		if issue.Type == models.IssueTypeEpic {
			item := PlannedIssue{Issue: issue}
			if key, ok := existingEpics[normalizeRef(issue.Title)]; ok {
				item.ExistingKey = key
			}
			epicItems = append(epicItems, item)
			continue
		}

		item := PlannedIssue{Issue: issue, ParentRef: issue.Parent}
		if key, ok := existingIssues[normalizeRef(issue.Title)]; ok {
			item.ExistingKey = key
		}
		storyItems = append(storyItems, item)
	}

	// 未解決の親参照に対するプレースホルダーエピックの合成
	seenParents := make(map[string]bool)
	for _, item := range storyItems {
		parent := strings.TrimSpace(item.ParentRef)
		if parent == "" {
			continue
		}
		norm := normalizeRef(parent)
		if seenParents[norm] {
			continue
		}
		seenParents[norm] = true

		if _, _, ok := idx.Match(parent); ok {
			continue
		}
		if batchHasEpicFor(epicItems, parent) {
			continue
		}

		utils.LogInfo("親参照 '%s' に対応するエピックが無いためプレースホルダーを作成します", parent)
		placeholder := models.JiraIssue{
			Type:        models.IssueTypeEpic,
			Title:       fmt.Sprintf("%s - Epic", parent),
			Description: fmt.Sprintf("Epic for %s related stories", parent),
			EpicName:    fmt.Sprintf("%s - Epic", parent),
			Priority:    models.PriorityMedium,
		}
		epicItems = append(epicItems, PlannedIssue{Issue: placeholder, Placeholder: true})
	}

	plan.Items = append(epicItems, storyItems...)
	return plan
}

// batchHasEpicFor は同じ入力内に親参照に対応するエピックが居るかを調べます
func batchHasEpicFor(epicItems []PlannedIssue, parent string) bool {
	normParent := normalizeRef(parent)
	for _, item := range epicItems {
		name := item.Issue.EpicName
		if name == "" {
			name = item.Issue.Title
		}
		if strings.HasPrefix(normalizeRef(name), normParent) {
			return true
		}
	}
	return false
}

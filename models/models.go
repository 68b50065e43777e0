package models

// Priority はJIRAの優先度を表します
type Priority string

const (
	PriorityHighest Priority = "Highest"
	PriorityHigh    Priority = "High"
	PriorityMedium  Priority = "Medium"
	PriorityLow     Priority = "Low"
	PriorityLowest  Priority = "Lowest"
)

// IssueType はJIRAのイシュータイプを表します
type IssueType string

const (
	IssueTypeEpic  IssueType = "Epic"
	IssueTypeStory IssueType = "Story"
	IssueTypeTask  IssueType = "Task"
)

// LinkRelation はイシュー間のリンク種別を表します
type LinkRelation string

const (
	RelationBlocks    LinkRelation = "blocks"
	RelationBlockedBy LinkRelation = "blocked_by"
)

// JiraIssue はテキストから抽出した1件のチケットを表します
type JiraIssue struct {
	Type               IssueType
	Title              string
	Description        string
	Priority           Priority
	PriorityExplicit   bool // 入力にPriority行が明示されていたかどうか
	StoryKey           string
	EpicName           string
	BusinessOutcome    string
	Parent             string // 親エピック参照（Epicの場合は常に空）
	Dependencies       string // 依存関係の生文字列（カンマ区切り）
	AcceptanceCriteria []string
	EstimatedEffort    string
	Labels             []string
}

// EpicSummary はJIRAから取得した既存エピックの要約を表します
type EpicSummary struct {
	Key     string
	Summary string
}

// IssueSummary はJIRAから取得した既存イシュー（エピック以外）の要約を表します
type IssueSummary struct {
	Key     string
	Summary string
	Type    string
}

// DependencyLink はイシュー間の依存リンクを表します
// Relation=blocks は「ToKey が FromKey をブロックする」
// すなわち ToKey が先行して完了すべきタスクであることを意味します
type DependencyLink struct {
	FromKey  string
	ToKey    string
	Relation LinkRelation
}

// SkippedRecord は作成をスキップしたレコードと理由を表します
type SkippedRecord struct {
	Title  string
	Reason string
}

// DroppedLink は解決できずに破棄した依存参照と理由を表します
type DroppedLink struct {
	FromKey string
	Ref     string
	Reason  string
}

// RunReport は実行結果のサマリーを表します
type RunReport struct {
	CreatedKeys  []string
	Existing     []string // 既存と判定して作成をスキップしたキー
	Skipped      []SkippedRecord
	LinksApplied []DependencyLink
	Dropped      []DroppedLink
	Warnings     []string
	DryRun       bool
}

// AddWarning は警告メッセージをレポートに追加します
func (r *RunReport) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

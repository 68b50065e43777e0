package services

import (
	"fmt"

	"texttojira/models"
	"texttojira/utils"
)

// dryRunTracker は読み取りだけを内部トラッカーに委譲し、
// 作成系の呼び出しを擬似キーの発行に置き換えるデコレーターです
// 何度実行しても外部に副作用を残しません
type dryRunTracker struct {
	inner Tracker // nilの場合は読み取りも空の結果を返す
	seq   int
}

// NewDryRunTracker はドライラン用のトラッカーを作成します
func NewDryRunTracker(inner Tracker) Tracker {
	return &dryRunTracker{inner: inner}
}

// SearchEpics は内部トラッカーに委譲します
// 接続できない場合も警告のみでドライランを続行します
func (d *dryRunTracker) SearchEpics() ([]models.EpicSummary, error) {
	if d.inner == nil {
		return nil, nil
	}
	epics, err := d.inner.SearchEpics()
	if err != nil {
		utils.LogWarn("エピック発見に失敗しました（ドライランは空の一覧で続行します）: %v", err)
		return nil, nil
	}
	return epics, nil
}

// SearchIssues は内部トラッカーに委譲します
func (d *dryRunTracker) SearchIssues() ([]models.IssueSummary, error) {
	if d.inner == nil {
		return nil, nil
	}
	issues, err := d.inner.SearchIssues()
	if err != nil {
		utils.LogWarn("既存イシュー取得に失敗しました（ドライランは空の一覧で続行します）: %v", err)
		return nil, nil
	}
	return issues, nil
}

// CreateIssue は実際には作成せず擬似キーを発行します
func (d *dryRunTracker) CreateIssue(issue models.JiraIssue, epicKey string) (string, error) {
	d.seq++
	key := fmt.Sprintf("DRY-%d", d.seq)

	if epicKey != "" {
		utils.LogInfo("[ドライラン] %s: %s (%s) をエピック %s に作成予定", key, issue.Title, issue.Type, epicKey)
	} else {
		utils.LogInfo("[ドライラン] %s: %s (%s) を作成予定", key, issue.Title, issue.Type)
	}
	return key, nil
}

// CreateLink は実際にはリンクを作成しません
func (d *dryRunTracker) CreateLink(fromKey, toKey string) error {
	utils.LogInfo("[ドライラン] 依存リンクを作成予定: %s が %s をブロック", toKey, fromKey)
	return nil
}

// EpicLinkField は内部トラッカーに委譲します（読み取りのみ）
func (d *dryRunTracker) EpicLinkField() string {
	if d.inner == nil {
		return "parent"
	}
	return d.inner.EpicLinkField()
}

package services

import (
	"fmt"
	"strings"

	"texttojira/models"
)

// Format はチケットのリストを正規化されたテキスト形式に書き出します
// この出力を再度Parseすると同じチケットのリストが得られます
func Format(issues []models.JiraIssue) string {
	var b strings.Builder
	epicCount := 0

	for i, issue := range issues {
		if i > 0 {
			b.WriteString("\n")
		}

		switch issue.Type {
		case models.IssueTypeEpic:
			epicCount++
			formatEpic(&b, issue, epicCount)
		default:
			formatStory(&b, issue)
		}
	}

	return b.String()
}

// エピックを書き出し
func formatEpic(b *strings.Builder, issue models.JiraIssue, number int) {
	title := issue.Title
	if issue.EpicName != "" {
		title = issue.EpicName
	}
	fmt.Fprintf(b, "Epic %d: %s\n", number, title)

	if issue.EpicName != "" {
		fmt.Fprintf(b, "Epic Name: %s\n", issue.EpicName)
	}

	writeMultiline(b, "Description:", issue.Description)
	writeMultiline(b, "Business Outcome:", issue.BusinessOutcome)
	writeCriteria(b, issue)
	writeCommonFields(b, issue)
}

// ストーリー/タスクを書き出し
func formatStory(b *strings.Builder, issue models.JiraIssue) {
	fmt.Fprintf(b, "%s: %s\n", issue.Type, issue.Title)

	if issue.StoryKey != "" {
		fmt.Fprintf(b, "Story Key: %s\n", issue.StoryKey)
	}
	if issue.Parent != "" {
		fmt.Fprintf(b, "Parent: %s\n", issue.Parent)
	}

	// 説明文はヘッダーなしの行としてそのまま書き出す（再パース時に畳み込まれる）
	if issue.Description != "" {
		b.WriteString(issue.Description)
		b.WriteString("\n")
	}

	writeMultiline(b, "Business Outcome:", issue.BusinessOutcome)
	writeCriteria(b, issue)
	writeCommonFields(b, issue)
}

// 受け入れ条件を箇条書きで書き出し
func writeCriteria(b *strings.Builder, issue models.JiraIssue) {
	if len(issue.AcceptanceCriteria) == 0 {
		return
	}
	b.WriteString("Acceptance Criteria:\n")
	for _, criteria := range issue.AcceptanceCriteria {
		fmt.Fprintf(b, "* %s\n", criteria)
	}
}

// 両タイプで共通の末尾フィールドを書き出し
func writeCommonFields(b *strings.Builder, issue models.JiraIssue) {
	if issue.PriorityExplicit {
		fmt.Fprintf(b, "Priority: %s\n", issue.Priority)
	}
	if issue.Dependencies != "" {
		fmt.Fprintf(b, "Dependencies: %s\n", issue.Dependencies)
	}
	if issue.EstimatedEffort != "" {
		fmt.Fprintf(b, "Estimated Effort: %s\n", issue.EstimatedEffort)
	}
	if len(issue.Labels) > 0 {
		fmt.Fprintf(b, "Labels: %s\n", strings.Join(issue.Labels, ", "))
	}
}

// writeMultiline は複数行の値をヘッダー行+継続行として書き出します
func writeMultiline(b *strings.Builder, header, value string) {
	if value == "" {
		return
	}

	lines := strings.Split(value, "\n")
	fmt.Fprintf(b, "%s %s\n", header, lines[0])
	for _, line := range lines[1:] {
		b.WriteString(line)
		b.WriteString("\n")
	}
}

package models

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	invalidRe    = regexp.MustCompile(`[^\w-]`)
	hyphenRunRe  = regexp.MustCompile(`-+`)
)

// NormalizeIssueType は表記ゆれを吸収してイシュータイプに変換します
// 不明な値はStoryとして扱います
func NormalizeIssueType(s string) IssueType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "epic":
		return IssueTypeEpic
	case "task":
		return IssueTypeTask
	default:
		return IssueTypeStory
	}
}

// NormalizeLabels はラベル文字列をJIRAで有効なラベルのリストに変換します
// カンマで分割し、小文字化、空白のハイフン置換、無効文字の除去、
// 重複排除（先勝ち）を行います
func NormalizeLabels(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	seen := make(map[string]bool)
	var labels []string

	for _, part := range strings.Split(raw, ",") {
		label := strings.ToLower(strings.TrimSpace(part))
		label = whitespaceRe.ReplaceAllString(label, "-")
		label = invalidRe.ReplaceAllString(label, "")
		label = hyphenRunRe.ReplaceAllString(label, "-")
		label = strings.Trim(label, "-")

		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}

	return labels
}

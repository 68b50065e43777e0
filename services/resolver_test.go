package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texttojira/models"
)

func TestExtractEpicPrefix(t *testing.T) {
	cases := []struct {
		summary  string
		expected string
	}{
		{"[PREP] Meal Preparation", "PREP"},
		{"KITCH - Kitchen Cleanup", "KITCH"},
		{"ONBD Onboarding flow", "ONBD"},
		{"Meal Preparation", ""},
		{"VERYLONGPREFIX - Too long", ""},
		{"", ""},
		{"[A1] Numbered prefix", "A1"},
	}

	for _, c := range cases {
		assert.Equal(t, c.expected, ExtractEpicPrefix(c.summary), "summary: %q", c.summary)
	}
}

func TestEpicIndex_LongestPrefixWins(t *testing.T) {
	idx := &EpicIndex{}
	idx.Add("KITCH", "E1")
	idx.Add("KITCHEN", "E2")

	// 参照の先頭がKITCHのみと一致する場合はKITCHが勝つ
	key, warning, ok := idx.Match("KITCH - Clean counters")
	require.True(t, ok)
	assert.Equal(t, "E1", key)
	assert.Empty(t, warning)

	// KITCHENまで一致する場合はより長い方が勝つ
	key, _, ok = idx.Match("KITCHEN refit")
	require.True(t, ok)
	assert.Equal(t, "E2", key)
}

func TestEpicIndex_AmbiguousMatchWarnsAndKeepsFirst(t *testing.T) {
	idx := &EpicIndex{}
	idx.Add("AUTH", "E1")
	idx.Add("AUTZ", "E2")

	// 両エントリと同長で一致する短い参照は先に発見した方を採用
	key, warning, ok := idx.Match("AU")
	require.True(t, ok)
	assert.Equal(t, "E1", key)
	assert.NotEmpty(t, warning)
}

func TestEpicIndex_NoMatch(t *testing.T) {
	idx := NewEpicIndex([]models.EpicSummary{
		{Key: "E1", Summary: "[PREP] Meal Preparation"},
	})

	_, _, ok := idx.Match("GARDEN")
	assert.False(t, ok)

	_, _, ok = idx.Match("")
	assert.False(t, ok)
}

func TestEpicIndex_FreeTextSummary(t *testing.T) {
	// 定型プレフィックスの無いエピック名も「 - 」の前の部分で索引される
	idx := NewEpicIndex([]models.EpicSummary{
		{Key: "E1", Summary: "Kitchen Cleanup - Epic"},
		{Key: "E2", Summary: "INFRASTRUCTURE - Platform work"},
	})

	key, _, ok := idx.Match("Kitchen Cleanup")
	require.True(t, ok)
	assert.Equal(t, "E1", key)

	// 10文字を超える大文字プレフィックスも一致する
	key, _, ok = idx.Match("INFRASTRUCTURE")
	require.True(t, ok)
	assert.Equal(t, "E2", key)
}

func TestEpicIndex_NormalizedMatching(t *testing.T) {
	idx := NewEpicIndex([]models.EpicSummary{
		{Key: "E1", Summary: "[PREP] Meal Preparation"},
	})

	// 大文字小文字と記号のゆれは無視される
	key, _, ok := idx.Match("prep")
	require.True(t, ok)
	assert.Equal(t, "E1", key)

	key, _, ok = idx.Match("[PREP]")
	require.True(t, ok)
	assert.Equal(t, "E1", key)
}

func depContext() *ResolutionContext {
	idx := &EpicIndex{}
	idx.Add("PREP", "E1")
	ctx := NewResolutionContext(idx)
	ctx.Register("PREP", "E1")

	ctx.RegisterIssue(models.JiraIssue{Title: "Chop vegetables", StoryKey: "PREP-S1"}, "T1")
	ctx.RegisterIssue(models.JiraIssue{Title: "Clean counters"}, "T2")
	return ctx
}

func TestResolveDependency_LiteralKey(t *testing.T) {
	ctx := depContext()

	key, ok := ctx.ResolveDependency("PROJ-42")
	require.True(t, ok)
	assert.Equal(t, "PROJ-42", key)
}

func TestResolveDependency_ExactTitle(t *testing.T) {
	ctx := depContext()

	key, ok := ctx.ResolveDependency("Chop vegetables")
	require.True(t, ok)
	assert.Equal(t, "T1", key)

	// 記号・大文字小文字のゆれも一致する
	key, ok = ctx.ResolveDependency("chop VEGETABLES!")
	require.True(t, ok)
	assert.Equal(t, "T1", key)
}

func TestResolveDependency_StoryKey(t *testing.T) {
	ctx := depContext()

	key, ok := ctx.ResolveDependency("PREP-S1")
	require.True(t, ok)
	assert.Equal(t, "T1", key)
}

func TestResolveDependency_BracketForm(t *testing.T) {
	ctx := depContext()

	key, ok := ctx.ResolveDependency("[PREP] Chop vegetables")
	require.True(t, ok)
	assert.Equal(t, "T1", key)
}

func TestResolveDependency_BracketFallsBackToEpic(t *testing.T) {
	ctx := depContext()

	// プレフィックスは解決できるがタスク名が見つからない場合はエピックに落とす
	key, ok := ctx.ResolveDependency("[PREP] Unknown subtask")
	require.True(t, ok)
	assert.Equal(t, "E1", key)

	_, ok = ctx.ResolveDependency("[ZZZZ] Unknown subtask")
	assert.False(t, ok)
}

func TestResolveDependency_LongestPrefix(t *testing.T) {
	ctx := depContext()

	key, ok := ctx.ResolveDependency("Clean counters and sink")
	require.True(t, ok)
	assert.Equal(t, "T2", key)
}

func TestResolveDependency_LongestEpicPrefixWins(t *testing.T) {
	idx := NewEpicIndex([]models.EpicSummary{
		{Key: "E1", Summary: "KITCH - Kitchen Cleanup"},
		{Key: "E2", Summary: "KITCHEN - Kitchen Prep"},
	})
	ctx := NewResolutionContext(idx)

	// ブラケット内にスペース入りハイフンがあるためタイトル参照として扱われ、
	// 正規化後の最長プレフィックス一致でKITCHが勝つ
	key, ok := ctx.ResolveDependency("[KITCH - Clean counters]")
	require.True(t, ok)
	assert.Equal(t, "E1", key)
}

func TestResolveDependency_Unresolved(t *testing.T) {
	ctx := depContext()

	_, ok := ctx.ResolveDependency("Mystery task")
	assert.False(t, ok)
}

func TestRegister_FirstWins(t *testing.T) {
	ctx := NewResolutionContext(nil)
	ctx.Register("Same title", "T1")
	ctx.Register("Same title", "T2")

	key, ok := ctx.ResolveDependency("Same title")
	require.True(t, ok)
	assert.Equal(t, "T1", key)
}

func TestParseDependencies(t *testing.T) {
	cases := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"None", nil},
		{"none (initial task)", nil},
		{"Chop vegetables", []string{"Chop vegetables"}},
		{"A, B", []string{"A", "B"}},
		{", ,A", []string{"A"}},
		{"None, Real task", []string{"Real task"}},
	}

	for _, c := range cases {
		assert.Equal(t, c.expected, ParseDependencies(c.input), "input: %q", c.input)
	}
}

func TestBuildPlan_EpicsBeforeStories(t *testing.T) {
	issues := []models.JiraIssue{
		{Type: models.IssueTypeStory, Title: "First story", Parent: "PREP"},
		{Type: models.IssueTypeEpic, Title: "[PREP] Meal Preparation", EpicName: "[PREP] Meal Preparation"},
		{Type: models.IssueTypeTask, Title: "Some task", Parent: "PREP"},
	}

	plan := BuildPlan(issues, nil, nil)
	require.Len(t, plan.Items, 3)

	assert.Equal(t, models.IssueTypeEpic, plan.Items[0].Issue.Type)
	assert.Equal(t, "First story", plan.Items[1].Issue.Title)
	assert.Equal(t, "Some task", plan.Items[2].Issue.Title)
}

func TestBuildPlan_PlaceholderEpicForUnknownParent(t *testing.T) {
	issues := []models.JiraIssue{
		{Type: models.IssueTypeStory, Title: "Plant tomatoes", Parent: "GARD"},
		{Type: models.IssueTypeStory, Title: "Water tomatoes", Parent: "GARD"},
	}

	plan := BuildPlan(issues, nil, nil)
	require.Len(t, plan.Items, 3)

	placeholder := plan.Items[0]
	assert.True(t, placeholder.Placeholder)
	assert.Equal(t, models.IssueTypeEpic, placeholder.Issue.Type)
	assert.Equal(t, "GARD - Epic", placeholder.Issue.Title)
}

func TestBuildPlan_MultiWordParentPlaceholder(t *testing.T) {
	issues := []models.JiraIssue{
		{Type: models.IssueTypeStory, Title: "Scrub the sink", Parent: "Kitchen Cleanup"},
	}

	plan := BuildPlan(issues, nil, nil)
	require.Len(t, plan.Items, 2)
	assert.True(t, plan.Items[0].Placeholder)
	assert.Equal(t, "Kitchen Cleanup - Epic", plan.Items[0].Issue.Title)

	// 2回目: 1回目が作成したプレースホルダーが既存エピックとして見える場合、
	// 重複するプレースホルダーは合成されない
	epics := []models.EpicSummary{
		{Key: "EP-1", Summary: "Kitchen Cleanup - Epic"},
	}
	plan = BuildPlan(issues, epics, nil)
	require.Len(t, plan.Items, 1)
	assert.False(t, plan.Items[0].Placeholder)
}

func TestBuildPlan_NoPlaceholderWhenEpicExists(t *testing.T) {
	issues := []models.JiraIssue{
		{Type: models.IssueTypeStory, Title: "Chop vegetables", Parent: "PREP"},
	}
	epics := []models.EpicSummary{
		{Key: "E1", Summary: "[PREP] Meal Preparation"},
	}

	plan := BuildPlan(issues, epics, nil)
	require.Len(t, plan.Items, 1)
	assert.False(t, plan.Items[0].Placeholder)
}

func TestBuildPlan_NoPlaceholderWhenEpicInBatch(t *testing.T) {
	issues := []models.JiraIssue{
		{Type: models.IssueTypeEpic, Title: "GARD - Gardening", EpicName: "GARD - Gardening"},
		{Type: models.IssueTypeStory, Title: "Plant tomatoes", Parent: "GARD"},
	}

	plan := BuildPlan(issues, nil, nil)
	require.Len(t, plan.Items, 2)
	assert.False(t, plan.Items[0].Placeholder)
}

func TestBuildPlan_ExistingIssuesAreNotRecreated(t *testing.T) {
	issues := []models.JiraIssue{
		{Type: models.IssueTypeEpic, Title: "[PREP] Meal Preparation"},
		{Type: models.IssueTypeStory, Title: "Chop vegetables", Parent: "PREP"},
		{Type: models.IssueTypeStory, Title: "New story", Parent: "PREP"},
	}
	epics := []models.EpicSummary{
		{Key: "E1", Summary: "[PREP] Meal Preparation"},
	}
	existing := []models.IssueSummary{
		{Key: "S1", Summary: "Chop vegetables", Type: "Story"},
	}

	plan := BuildPlan(issues, epics, existing)
	require.Len(t, plan.Items, 3)

	assert.Equal(t, "E1", plan.Items[0].ExistingKey)
	assert.Equal(t, "S1", plan.Items[1].ExistingKey)
	assert.Empty(t, plan.Items[2].ExistingKey)
}

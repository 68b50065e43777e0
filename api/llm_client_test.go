package api

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texttojira/config"
	"texttojira/models"
)

// stubProvider はllmProviderのテスト用実装です
type stubProvider struct {
	response string
	err      error
	system   string
	prompt   string
}

func (s *stubProvider) complete(system, prompt string) (string, error) {
	s.system = system
	s.prompt = prompt
	return s.response, s.err
}

func (s *stubProvider) name() string { return "stub" }

func TestNewLLMClient_MissingKey(t *testing.T) {
	_, err := NewLLMClient(&config.Config{LLMProvider: "anthropic"})
	assert.Error(t, err)

	_, err = NewLLMClient(&config.Config{LLMProvider: "google"})
	assert.Error(t, err)

	_, err = NewLLMClient(&config.Config{LLMProvider: "other"})
	assert.Error(t, err)
}

func TestNewLLMClient_Providers(t *testing.T) {
	// プロバイダーに対応するキーだけが使われる
	cfg := &config.Config{
		LLMProvider:     "anthropic",
		AnthropicAPIKey: "sk-ant",
		GoogleAPIKey:    "goog-key",
	}

	client, err := NewLLMClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", client.Name())
	assert.Equal(t, "sk-ant", client.provider.(*anthropicProvider).apiKey)

	cfg.LLMProvider = "google"
	client, err = NewLLMClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, "google", client.Name())
	assert.Equal(t, "goog-key", client.provider.(*googleProvider).apiKey)
}

func TestExtractIssues(t *testing.T) {
	provider := &stubProvider{response: `[
		{
			"title": "Build signup form",
			"description": "Form work",
			"issue_type": "Story",
			"priority": "High",
			"acceptance_criteria": ["Validates email"],
			"parent": "ONBD",
			"labels": "Onboarding, Q3 Goals"
		},
		{
			"title": "Customer Onboarding",
			"issue_type": "Epic",
			"epic_name": "ONBD - Customer Onboarding",
			"parent": "should be dropped"
		}
	]`}
	client := &LLMClient{provider: provider}

	issues, skipped, err := client.ExtractIssues("some text")
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, issues, 2)

	story := issues[0]
	assert.Equal(t, models.IssueTypeStory, story.Type)
	assert.Equal(t, "Build signup form", story.Title)
	assert.Equal(t, models.PriorityHigh, story.Priority)
	assert.True(t, story.PriorityExplicit)
	assert.Equal(t, "ONBD", story.Parent)
	assert.Equal(t, []string{"onboarding", "q3-goals"}, story.Labels)

	epic := issues[1]
	assert.Equal(t, models.IssueTypeEpic, epic.Type)
	assert.Equal(t, "ONBD - Customer Onboarding", epic.EpicName)
	// エピックは親参照を持たない
	assert.Empty(t, epic.Parent)
	// 優先度未指定はMedium（非明示）
	assert.Equal(t, models.PriorityMedium, epic.Priority)
	assert.False(t, epic.PriorityExplicit)
}

func TestExtractIssues_MarkdownFencedResponse(t *testing.T) {
	provider := &stubProvider{response: "```json\n[{\"title\": \"Fenced\", \"issue_type\": \"Task\"}]\n```"}
	client := &LLMClient{provider: provider}

	issues, _, err := client.ExtractIssues("text")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "Fenced", issues[0].Title)
	assert.Equal(t, models.IssueTypeTask, issues[0].Type)
}

func TestExtractIssues_MalformedRecordsAreCounted(t *testing.T) {
	provider := &stubProvider{response: `[
		{"title": "Good record"},
		{"title": 12345},
		{"title": "Another good one"}
	]`}
	client := &LLMClient{provider: provider}

	issues, skipped, err := client.ExtractIssues("text")
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Len(t, issues, 2)
}

func TestExtractIssues_NonJSONResponse(t *testing.T) {
	provider := &stubProvider{response: "I could not find any issues."}
	client := &LLMClient{provider: provider}

	_, _, err := client.ExtractIssues("text")
	assert.Error(t, err)
}

func TestExtractIssues_ProviderError(t *testing.T) {
	provider := &stubProvider{err: errors.New("api unavailable")}
	client := &LLMClient{provider: provider}

	_, _, err := client.ExtractIssues("text")
	assert.Error(t, err)
}

func TestSuggestionToIssue_Defaults(t *testing.T) {
	issue := suggestionToIssue(issueSuggestion{})

	assert.Equal(t, "Untitled", issue.Title)
	assert.Equal(t, models.IssueTypeStory, issue.Type)
	assert.Equal(t, models.PriorityMedium, issue.Priority)
	assert.False(t, issue.PriorityExplicit)
}

func TestSuggestionToIssue_PrioritySynonym(t *testing.T) {
	issue := suggestionToIssue(issueSuggestion{Title: "X", Priority: "critical"})

	assert.Equal(t, models.PriorityHigh, issue.Priority)
	assert.True(t, issue.PriorityExplicit)
}

func TestEnhance(t *testing.T) {
	provider := &stubProvider{response: "Much better description."}
	client := &LLMClient{provider: provider}

	original := models.JiraIssue{
		Type:        models.IssueTypeStory,
		Title:       "Build signup form",
		Description: "Form work",
	}

	enhanced, err := client.Enhance(original)
	require.NoError(t, err)

	assert.Contains(t, enhanced.Description, "Form work")
	assert.Contains(t, enhanced.Description, "--- AI Enhanced ---")
	assert.Contains(t, enhanced.Description, "Much better description.")
	assert.Contains(t, provider.prompt, "Build signup form")
}

func TestEnhance_ErrorReturnsOriginal(t *testing.T) {
	provider := &stubProvider{err: errors.New("api unavailable")}
	client := &LLMClient{provider: provider}

	original := models.JiraIssue{Title: "X", Description: "body"}

	result, err := client.Enhance(original)
	require.Error(t, err)
	assert.Equal(t, original, result)
}

func TestStripMarkdownFences(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"fenced json", "```json\n[1]\n```", "[1]"},
		{"fenced plain", "```\n[1]\n```", "[1]"},
		{"surrounding whitespace", "  [1]  ", "[1]"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, stripMarkdownFences(c.input))
		})
	}
}

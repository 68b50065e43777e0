package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"texttojira/config"
	"texttojira/models"
	"texttojira/utils"
)

// extractSystemPrompt はテキストからのチケット抽出を指示するシステムプロンプトです
const extractSystemPrompt = `You are an expert at extracting Jira issues from text.
Given text content, extract all Epics, Stories, and Tasks with their details.

Return the result as a JSON array of objects with this exact structure:
[
  {
    "title": "Issue title",
    "description": "Full description",
    "issue_type": "Epic|Story|Task",
    "priority": "Highest|High|Medium|Low|Lowest",
    "story_key": "optional story key",
    "acceptance_criteria": ["criterion 1", "criterion 2"],
    "business_outcome": "optional business outcome",
    "epic_name": "optional epic name",
    "parent": "optional parent reference",
    "dependencies": "optional dependencies",
    "estimated_effort": "optional effort estimate",
    "labels": "optional labels"
  }
]

Guidelines:
- Extract all issues you can find
- Use "Story" as default issue type if unclear
- Use "Medium" as default priority if unclear
- Combine multi-line content appropriately
- Extract acceptance criteria as separate items
- Return only the JSON array, no other text`

// enhanceSystemPrompt はチケット内容の改善を指示するシステムプロンプトです
const enhanceSystemPrompt = `You are an expert at writing Jira tickets. Given a basic issue description,
enhance it with:
1. Clear, actionable acceptance criteria
2. Improved description with technical details
3. Better formatting for Jira

Keep the original intent but make it more professional and detailed.`

// llmProvider は個々のLLMプロバイダーが実装するインターフェースです
type llmProvider interface {
	complete(system, prompt string) (string, error)
	name() string
}

// LLMClient はチケット抽出と説明文改善のためのLLMクライアントです
type LLMClient struct {
	provider llmProvider
}

// NewLLMClient は設定に応じたLLMクライアントを作成します
// APIキーが未設定の場合はエラーを返し、呼び出し側がフォールバックを無効化します
func NewLLMClient(cfg *config.Config) (*LLMClient, error) {
	apiKey := cfg.LLMAPIKey()

	switch cfg.LLMProvider {
	case "anthropic":
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY が設定されていません")
		}
		return &LLMClient{provider: &anthropicProvider{
			apiKey: apiKey,
			client: &http.Client{Timeout: 60 * time.Second},
		}}, nil
	case "google":
		if apiKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY が設定されていません")
		}
		return &LLMClient{provider: &googleProvider{
			apiKey: apiKey,
			client: &http.Client{Timeout: 60 * time.Second},
		}}, nil
	default:
		return nil, fmt.Errorf("未対応のLLMプロバイダーです: %s", cfg.LLMProvider)
	}
}

// Name は使用中のプロバイダー名を返します
func (l *LLMClient) Name() string {
	return l.provider.name()
}

// issueSuggestion はLLMレスポンス内の1件のチケット候補を表します
type issueSuggestion struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	IssueType          string   `json:"issue_type"`
	Priority           string   `json:"priority"`
	StoryKey           string   `json:"story_key"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	BusinessOutcome    string   `json:"business_outcome"`
	EpicName           string   `json:"epic_name"`
	Parent             string   `json:"parent"`
	Dependencies       string   `json:"dependencies"`
	EstimatedEffort    string   `json:"estimated_effort"`
	Labels             string   `json:"labels"`
}

// ExtractIssues は自然言語テキストからチケット候補を抽出します
// 不正なレコードは件数を数えてスキップし、エラーにはしません
func (l *LLMClient) ExtractIssues(text string) ([]models.JiraIssue, int, error) {
	prompt := fmt.Sprintf("Please extract all Jira issues from this text:\n\n%s\n\nReturn only the JSON array, no other text.", text)

	response, err := l.provider.complete(extractSystemPrompt, prompt)
	if err != nil {
		return nil, 0, fmt.Errorf("LLM呼び出しエラー: %w", err)
	}

	content := stripMarkdownFences(response)

	var rawItems []json.RawMessage
	if err := json.Unmarshal([]byte(content), &rawItems); err != nil {
		return nil, 0, fmt.Errorf("LLMレスポンスの解析エラー: %w", err)
	}

	issues := make([]models.JiraIssue, 0, len(rawItems))
	skipped := 0

	for _, raw := range rawItems {
		var item issueSuggestion
		if err := json.Unmarshal(raw, &item); err != nil {
			utils.LogWarn("LLMレスポンス内の不正なレコードをスキップします: %v", err)
			skipped++
			continue
		}

		issue := suggestionToIssue(item)
		issues = append(issues, issue)
	}

	return issues, skipped, nil
}

// suggestionToIssue はチケット候補をJiraIssueに変換します
func suggestionToIssue(item issueSuggestion) models.JiraIssue {
	title := item.Title
	if title == "" {
		title = "Untitled"
	}

	priority := models.PriorityMedium
	explicit := false
	if name, ok := config.PriorityMapping[strings.ToLower(strings.TrimSpace(item.Priority))]; ok {
		priority = models.Priority(name)
		explicit = true
	}

	issue := models.JiraIssue{
		Type:               models.NormalizeIssueType(item.IssueType),
		Title:              title,
		Description:        item.Description,
		Priority:           priority,
		PriorityExplicit:   explicit,
		StoryKey:           item.StoryKey,
		EpicName:           item.EpicName,
		BusinessOutcome:    item.BusinessOutcome,
		Dependencies:       item.Dependencies,
		AcceptanceCriteria: item.AcceptanceCriteria,
		EstimatedEffort:    item.EstimatedEffort,
		Labels:             models.NormalizeLabels(item.Labels),
	}

	// エピックは親参照を持たない
	if issue.Type != models.IssueTypeEpic {
		issue.Parent = item.Parent
	}

	return issue
}

// Enhance はチケットの説明文をLLMで改善します
// 失敗した場合は元のチケットをそのまま返します
func (l *LLMClient) Enhance(issue models.JiraIssue) (models.JiraIssue, error) {
	prompt := fmt.Sprintf(`Please enhance this Jira %s:

Title: %s
Description: %s

Current Acceptance Criteria:
%s

Please provide an enhanced version with better formatting and more detailed acceptance criteria.`,
		issue.Type, issue.Title, issue.Description, strings.Join(issue.AcceptanceCriteria, "\n"))

	response, err := l.provider.complete(enhanceSystemPrompt, prompt)
	if err != nil {
		return issue, fmt.Errorf("LLM呼び出しエラー: %w", err)
	}

	enhanced := issue
	enhanced.Description = fmt.Sprintf("%s\n\n--- AI Enhanced ---\n%s", issue.Description, response)
	return enhanced, nil
}

// stripMarkdownFences はレスポンスからMarkdownコードブロックを除去します
func stripMarkdownFences(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		parts := strings.SplitN(content, "```", 3)
		if len(parts) >= 2 {
			content = parts[1]
		}
		content = strings.TrimPrefix(content, "json")
	}

	return strings.TrimSpace(content)
}

// anthropicProvider はAnthropic Messages APIを呼び出します
type anthropicProvider struct {
	apiKey string
	client *http.Client
}

func (p *anthropicProvider) name() string { return "anthropic" }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *anthropicProvider) complete(system, prompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:     "claude-3-5-sonnet-20240620",
		MaxTokens: 4096,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("JSONエンコードエラー: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.anthropic.com/v1/messages", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Anthropic API失敗: %s", string(body))
	}

	var result anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return text.String(), nil
}

// googleProvider はGoogle Gemini APIを呼び出します
type googleProvider struct {
	apiKey string
	client *http.Client
}

func (p *googleProvider) name() string { return "google" }

type googleRequest struct {
	Contents []googleContent `json:"contents"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

func (p *googleProvider) complete(system, prompt string) (string, error) {
	// Geminiにはシステムプロンプトを本文に連結して渡す
	reqBody := googleRequest{
		Contents: []googleContent{{
			Parts: []googlePart{{Text: system + "\n\n" + prompt}},
		}},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("JSONエンコードエラー: %w", err)
	}

	apiURL := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent?key=%s",
		p.apiKey)

	req, err := http.NewRequest("POST", apiURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Gemini API失敗: %s", string(body))
	}

	var result googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("Geminiレスポンスに候補がありません")
	}

	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return text.String(), nil
}

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"texttojira/config"
	"texttojira/models"
	"texttojira/utils"
)

// defaultEpicLinkField はフィールド検出に失敗した場合のフォールバックです
const defaultEpicLinkField = "customfield_10014"

// JiraClient はJIRA APIとのやり取りを処理します
type JiraClient struct {
	config *config.Config
	client *http.Client

	// 検出済みのエピックリンクフィールド（実行ごとに1回だけ問い合わせる）
	epicLinkField string
}

// NewJiraClient は新しいJIRAクライアントを作成します
func NewJiraClient(cfg *config.Config) *JiraClient {
	return &JiraClient{
		config: cfg,
		client: &http.Client{},
	}
}

// CheckAuth はJIRA認証をチェックします
func (j *JiraClient) CheckAuth() error {
	url := fmt.Sprintf("%s/rest/api/2/myself", j.config.JiraURL)

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.SetBasicAuth(j.config.JiraEmail, j.config.JiraAPIToken)

	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("認証失敗: %s", string(body))
	}

	return nil
}

// searchResponse はJIRA検索APIのレスポンスを表します
type searchResponse struct {
	Issues []struct {
		Key    string `json:"key"`
		Fields struct {
			Summary   string `json:"summary"`
			IssueType struct {
				Name string `json:"name"`
			} `json:"issuetype"`
		} `json:"fields"`
	} `json:"issues"`
}

// search はJQLで検索しレスポンスを返します
func (j *JiraClient) search(jql string) (*searchResponse, error) {
	params := url.Values{}
	params.Set("jql", jql)
	params.Set("fields", "key,summary,issuetype")
	params.Set("maxResults", "100")

	searchURL := fmt.Sprintf("%s/rest/api/2/search?%s", j.config.JiraURL, params.Encode())

	req, err := http.NewRequest("GET", searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.SetBasicAuth(j.config.JiraEmail, j.config.JiraAPIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("イシュー検索失敗: %s", string(body))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	return &result, nil
}

// SearchEpics はプロジェクト内の既存エピックを取得します
func (j *JiraClient) SearchEpics() ([]models.EpicSummary, error) {
	jql := fmt.Sprintf("project = %s AND issuetype = Epic", j.config.JiraProjectKey)

	result, err := j.search(jql)
	if err != nil {
		return nil, err
	}

	epics := make([]models.EpicSummary, 0, len(result.Issues))
	for _, issue := range result.Issues {
		epics = append(epics, models.EpicSummary{
			Key:     issue.Key,
			Summary: issue.Fields.Summary,
		})
	}

	utils.LogInfo("プロジェクト %s のエピックを %d 件発見しました", j.config.JiraProjectKey, len(epics))
	return epics, nil
}

// SearchIssues はプロジェクト内のエピック以外の既存イシューを取得します
func (j *JiraClient) SearchIssues() ([]models.IssueSummary, error) {
	jql := fmt.Sprintf("project = %s AND issuetype != Epic", j.config.JiraProjectKey)

	result, err := j.search(jql)
	if err != nil {
		return nil, err
	}

	issues := make([]models.IssueSummary, 0, len(result.Issues))
	for _, issue := range result.Issues {
		issues = append(issues, models.IssueSummary{
			Key:     issue.Key,
			Summary: issue.Fields.Summary,
			Type:    issue.Fields.IssueType.Name,
		})
	}

	return issues, nil
}

// CreateIssue はJIRAイシューを作成し、発行されたキーを返します
// epicKey が空でない場合、ストーリー/タスクをそのエピックに紐付けます
func (j *JiraClient) CreateIssue(issue models.JiraIssue, epicKey string) (string, error) {
	createURL := fmt.Sprintf("%s/rest/api/2/issue", j.config.JiraURL)

	labels := issue.Labels
	if labels == nil {
		labels = []string{}
	}

	// リクエストペイロードを作成
	fields := map[string]interface{}{
		"project":     map[string]string{"key": j.config.JiraProjectKey},
		"summary":     issue.Title,
		"description": buildDescription(issue),
		"issuetype":   map[string]string{"name": string(issue.Type)},
		"priority":    map[string]string{"name": string(issue.Priority)},
		"labels":      labels,
	}

	// エピックリンクの設定（フィールドはプロジェクトごとに異なるため検出結果を使う）
	if epicKey != "" && issue.Type != models.IssueTypeEpic {
		field := j.EpicLinkField()
		if field == "parent" {
			fields[field] = map[string]string{"key": epicKey}
		} else {
			fields[field] = epicKey
		}
		utils.LogDebug("エピックリンクを設定します: フィールド=%s, エピック=%s", field, epicKey)
	}

	payload := map[string]interface{}{"fields": fields}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("JSONエンコードエラー: %w", err)
	}

	req, err := http.NewRequest("POST", createURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.SetBasicAuth(j.config.JiraEmail, j.config.JiraAPIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("イシュー作成失敗: %s", string(body))
	}

	var result struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	if result.Key == "" {
		return "", fmt.Errorf("イシューキーが見つかりません")
	}

	return result.Key, nil
}

// CreateLink は「toKey が fromKey をブロックする」Blocksリンクを作成します
func (j *JiraClient) CreateLink(fromKey, toKey string) error {
	linkURL := fmt.Sprintf("%s/rest/api/2/issueLink", j.config.JiraURL)

	payload := map[string]interface{}{
		"type":         map[string]string{"name": "Blocks"},
		"inwardIssue":  map[string]string{"key": fromKey},
		"outwardIssue": map[string]string{"key": toKey},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("JSONエンコードエラー: %w", err)
	}

	req, err := http.NewRequest("POST", linkURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.SetBasicAuth(j.config.JiraEmail, j.config.JiraAPIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("依存リンク作成失敗: %s", string(body))
	}

	return nil
}

// createMetaResponse はcreatemeta APIのレスポンスを表します
type createMetaResponse struct {
	Projects []struct {
		Key        string `json:"key"`
		IssueTypes []struct {
			Name   string `json:"name"`
			Fields map[string]struct {
				Name string `json:"name"`
			} `json:"fields"`
		} `json:"issuetypes"`
	} `json:"projects"`
}

// EpicLinkField はこのプロジェクトのエピックリンクフィールドを返します
// 検出は実行ごとに1回だけ行い、結果をキャッシュします
func (j *JiraClient) EpicLinkField() string {
	if j.epicLinkField != "" {
		return j.epicLinkField
	}

	field, err := j.discoverEpicLinkField()
	if err != nil {
		utils.LogWarn("エピックリンクフィールドの検出に失敗しました: %v", err)
		field = defaultEpicLinkField
	}

	utils.LogInfo("エピックリンクフィールドを使用します: %s", field)
	j.epicLinkField = field
	return j.epicLinkField
}

// createmeta APIからエピックリンクフィールドを検出
func (j *JiraClient) discoverEpicLinkField() (string, error) {
	params := url.Values{}
	params.Set("projectKeys", j.config.JiraProjectKey)
	params.Set("expand", "projects.issuetypes.fields")

	metaURL := fmt.Sprintf("%s/rest/api/2/issue/createmeta?%s", j.config.JiraURL, params.Encode())

	req, err := http.NewRequest("GET", metaURL, nil)
	if err != nil {
		return "", fmt.Errorf("リクエスト作成エラー: %w", err)
	}

	req.SetBasicAuth(j.config.JiraEmail, j.config.JiraAPIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("リクエスト送信エラー: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("createmeta取得失敗: %s", string(body))
	}

	var meta createMetaResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", fmt.Errorf("レスポンス解析エラー: %w", err)
	}

	for _, project := range meta.Projects {
		if project.Key != j.config.JiraProjectKey {
			continue
		}
		for _, issueType := range project.IssueTypes {
			if issueType.Name != "Story" {
				continue
			}

			// フィールド名に epic と link を両方含むものを優先
			for fieldID, info := range issueType.Fields {
				name := strings.ToLower(info.Name)
				if strings.Contains(name, "epic") && strings.Contains(name, "link") {
					return fieldID, nil
				}
			}

			// 次点: parentフィールド（次世代プロジェクトではエピックリンクの代わり）
			if _, ok := issueType.Fields["parent"]; ok {
				return "parent", nil
			}

			// 最後の手段: epic を名前に含むカスタムフィールド
			for fieldID, info := range issueType.Fields {
				if strings.HasPrefix(fieldID, "customfield_") &&
					strings.Contains(strings.ToLower(info.Name), "epic") {
					return fieldID, nil
				}
			}
		}
	}

	return "", fmt.Errorf("エピックリンクフィールドが見つかりません")
}

// buildDescription は受け入れ条件などを含むJIRA用の説明文を組み立てます
func buildDescription(issue models.JiraIssue) string {
	var parts []string

	// エピックの場合はエピック名を先頭に表示
	if issue.Type == models.IssueTypeEpic && issue.EpicName != "" {
		parts = append(parts, fmt.Sprintf("*Epic Name:* %s", issue.EpicName), "")
	}

	parts = append(parts, issue.Description)

	if issue.BusinessOutcome != "" {
		parts = append(parts, fmt.Sprintf("\n*Business Outcome:* %s", issue.BusinessOutcome))
	}

	if len(issue.AcceptanceCriteria) > 0 {
		parts = append(parts, "\n*Acceptance Criteria:*")
		for i, criteria := range issue.AcceptanceCriteria {
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, criteria))
		}
	}

	if issue.EstimatedEffort != "" {
		parts = append(parts, fmt.Sprintf("\n*Estimated Effort:* %s", issue.EstimatedEffort))
	}

	return strings.Join(parts, "\n")
}

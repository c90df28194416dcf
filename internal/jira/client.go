// Package jira is the search gateway: a thin client for the Jira REST
// API covering exactly what the dashboard needs - bounded JQL search,
// issue detail fetch with changelog and comments, and custom-field
// discovery. Authentication is basic auth (cloud: email + API token)
// or a bearer token (server/data center: token only), chosen by
// whether an email is configured.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config carries the connection settings for one Jira instance.
type Config struct {
	// BaseURL is the instance root, e.g. https://acme.atlassian.net.
	// Trailing slashes are tolerated.
	BaseURL string

	// Email enables cloud basic auth when non-empty.
	Email string

	// Token is the API token (cloud) or personal access token
	// (server/DC bearer auth).
	Token string

	// EstimationField optionally names the estimation custom field,
	// overriding the common-name probe.
	EstimationField string

	// SprintField optionally names the sprint custom field.
	SprintField string

	// HTTPClient overrides the transport; nil gets a 30s-timeout
	// default client.
	HTTPClient *http.Client
}

// Client talks to one Jira instance. Safe for concurrent use; the
// custom-field cache is guarded internally.
type Client struct {
	baseURL string
	email   string
	token   string
	cfg     Config
	http    *http.Client
	fields  *fieldCache
}

// APIError is a failed Jira call: transport worked but the API said
// no. Transport failures surface as wrapped url errors instead.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira: %d %s", e.Status, e.Message)
}

// NewClient validates the config and builds a client. A missing host
// or token is a configuration error: the dashboard cannot run
// meaningfully without the tracker.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("jira: base URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("jira: token is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: base,
		email:   cfg.Email,
		token:   cfg.Token,
		cfg:     cfg,
		http:    httpClient,
		fields:  newFieldCache(),
	}, nil
}

// BaseURL returns the configured instance root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AuthMode describes how requests are authenticated, for the config
// status endpoint.
func (c *Client) AuthMode() string {
	if c.email != "" {
		return "Basic Auth (Cloud)"
	}
	return "Bearer Token (Server/DC)"
}

// Myself verifies connectivity and auth by fetching the current user.
func (c *Client) Myself(ctx context.Context) (string, error) {
	var me struct {
		DisplayName string `json:"displayName"`
	}
	if err := c.get(ctx, "/rest/api/2/myself", nil, &me); err != nil {
		return "", err
	}
	return me.DisplayName, nil
}

// SearchIssues runs one bounded JQL search, returning parsed issues
// and whether the result set was cut off at maxResults.
func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults int) ([]Issue, bool, error) {
	ids := c.customFieldIDs(ctx)

	fields := []string{
		"summary", "status", "assignee", "reporter", "priority",
		"issuetype", "parent", "issuelinks", "subtasks", "resolution",
	}
	fields = append(fields, ids.extras()...)

	body := map[string]any{
		"jql":        jql,
		"maxResults": maxResults,
		"fields":     fields,
	}

	var resp struct {
		Total  int         `json:"total"`
		Issues []wireIssue `json:"issues"`
	}
	start := time.Now()
	if err := c.post(ctx, "/rest/api/2/search", body, &resp); err != nil {
		return nil, false, err
	}

	issues := make([]Issue, len(resp.Issues))
	for i, w := range resp.Issues {
		issues[i] = parseIssue(w, ids)
	}
	truncated := resp.Total > len(resp.Issues)

	slog.Debug("jira search",
		"jql", jql,
		"results", len(issues),
		"total", resp.Total,
		"truncated", truncated,
		"elapsed", time.Since(start),
	)
	return issues, truncated, nil
}

// GetIssue fetches one issue with its changelog expanded.
func (c *Client) GetIssue(ctx context.Context, key string) (Issue, error) {
	ids := c.customFieldIDs(ctx)

	fields := []string{
		"summary", "status", "assignee", "reporter", "priority",
		"issuetype", "parent", "issuelinks", "subtasks", "resolution",
	}
	fields = append(fields, ids.extras()...)

	q := url.Values{}
	q.Set("fields", strings.Join(fields, ","))
	q.Set("expand", "changelog")

	var w wireIssue
	if err := c.get(ctx, "/rest/api/2/issue/"+url.PathEscape(key), q, &w); err != nil {
		return Issue{}, err
	}
	return parseIssue(w, ids), nil
}

// GetIssueDetails fetches the full detail view used by the ticket
// drill-down and exports: description, estimation, sprint, and the
// complete changelog and comment history.
func (c *Client) GetIssueDetails(ctx context.Context, key string) (IssueDetails, error) {
	ids := c.customFieldIDs(ctx)

	q := url.Values{}
	q.Set("expand", "changelog")

	var w wireIssue
	if err := c.get(ctx, "/rest/api/2/issue/"+url.PathEscape(key), q, &w); err != nil {
		return IssueDetails{}, err
	}
	return parseIssueDetails(key, w, ids), nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("jira: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("jira: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("jira: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.email != "" {
		req.SetBasicAuth(c.email, c.token)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("jira: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: apiErrorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("jira: decode response: %w", err)
	}
	return nil
}

// apiErrorMessage pulls the first errorMessages entry out of a Jira
// error body, falling back to the raw text.
func apiErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "unreadable error body"
	}
	var body struct {
		ErrorMessages []string `json:"errorMessages"`
	}
	if json.Unmarshal(raw, &body) == nil && len(body.ErrorMessages) > 0 {
		return body.ErrorMessages[0]
	}
	return strings.TrimSpace(string(raw))
}

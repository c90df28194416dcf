// Package llm generates standup-style summaries of workstream
// activity through an OpenAI-compatible chat completions API.
//
// The provider is configured with a base URL, so any compatible
// endpoint works. Summaries are best-effort product sugar: callers
// treat errors as "summarizer unavailable", never as resolution
// failures.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pioj/pioj/internal/jira"
)

const (
	maxTokens   = 1024
	temperature = 0.7

	// commentPreview bounds how much of each comment body is quoted
	// into the prompt.
	commentPreview = 100
)

// Config for the summarizer endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client calls a chat completions endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient validates the config and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm: base url is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		cfg:  Config{APIKey: cfg.APIKey, BaseURL: strings.TrimRight(cfg.BaseURL, "/"), Model: cfg.Model},
		http: httpClient,
	}, nil
}

// Entry is one line of activity fed to the model: a field change or a
// comment flattened into the change shape.
type Entry struct {
	Ticket string
	Date   time.Time
	Author string
	Field  string
	From   string
	To     string
}

// Summary is the generated digest plus the counts it was built from.
type Summary struct {
	Text        string `json:"summary"`
	ChangeCount int    `json:"changeCount"`
	TicketCount int    `json:"ticketCount"`
	Days        int    `json:"days"`
}

// CollectEntries flattens per-ticket details into prompt entries.
// Comments become pseudo-changes on a "comment" field with a bounded
// body preview. When omitInactive is set, tickets with no surviving
// activity contribute nothing and do not count toward TicketCount.
func CollectEntries(details []jira.IssueDetails, omitInactive bool) (entries []Entry, activeTickets int) {
	for _, d := range details {
		if omitInactive && !d.HasActivity() {
			continue
		}
		activeTickets++
		for _, ch := range d.Changes {
			entries = append(entries, Entry{
				Ticket: d.Key, Date: ch.Date, Author: ch.Author,
				Field: ch.Field, From: ch.From, To: ch.To,
			})
		}
		for _, cm := range d.Comments {
			body := cm.Body
			if len(body) > commentPreview {
				body = body[:commentPreview] + "..."
			}
			entries = append(entries, Entry{
				Ticket: d.Key, Date: cm.Date, Author: cm.Author,
				Field: "comment", To: body,
			})
		}
	}
	return entries, activeTickets
}

// Summarize prompts the model over the collected entries. An empty
// entry list short-circuits without an API call.
func (c *Client) Summarize(ctx context.Context, entries []Entry, days, ticketCount int, extraContext string) (Summary, error) {
	if len(entries) == 0 {
		return Summary{
			Text: fmt.Sprintf("No changes found in the last %d days.", days),
			Days: days,
		}, nil
	}

	prompt := buildPrompt(entries, days, ticketCount, extraContext)
	text, err := c.complete(ctx, prompt)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Text:        text,
		ChangeCount: len(entries),
		TicketCount: ticketCount,
		Days:        days,
	}, nil
}

func buildPrompt(entries []Entry, days, ticketCount int, extraContext string) string {
	var lines []string
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("[%s] %s - %s: %s changed from '%s' to '%s'",
			e.Date.UTC().Format("2006-01-02 15:04"), e.Ticket, e.Author, e.Field, e.From, e.To))
	}

	prompt := fmt.Sprintf(`Analyze these JIRA ticket changes from the last %d days (%d changes across %d tickets) and provide a concise, actionable summary.

Changes:
%s

Please provide a brief summary focusing on:
1. Major progress and completions
2. Active work areas
3. Any blockers or concerning patterns
4. Notable status changes
5. Key trends

Keep it concise (3-5 bullet points) and actionable for a team standup.`,
		days, len(entries), ticketCount, strings.Join(lines, "\n"))

	if extraContext != "" {
		prompt += fmt.Sprintf("\n\nAdditional context/instructions: %s", extraContext)
	}
	return prompt
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("llm: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := "unexpected status"
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("llm: api error (status %d): %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

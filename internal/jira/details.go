package jira

import (
	"encoding/json"
	"time"
)

// IssueDetails is the drill-down view: the issue summary plus its
// complete change and comment history. The full history is what gets
// cached; callers narrow it to a time window with FilterByAge.
type IssueDetails struct {
	Key         string         `json:"key"`
	Summary     string         `json:"summary"`
	Status      string         `json:"status"`
	Assignee    string         `json:"assignee"`
	Priority    string         `json:"priority"`
	Description string         `json:"description,omitempty"`
	Estimation  string         `json:"estimation,omitempty"`
	Sprint      string         `json:"sprint,omitempty"`
	SprintState string         `json:"sprintState,omitempty"`
	Changes     []ChangeEntry  `json:"changes"`
	Comments    []CommentEntry `json:"comments"`
}

// ChangeEntry is one field transition from the changelog.
type ChangeEntry struct {
	Date   time.Time `json:"date"`
	Author string    `json:"author"`
	Field  string    `json:"field"`
	From   string    `json:"from"`
	To     string    `json:"to"`
}

// CommentEntry is one issue comment.
type CommentEntry struct {
	Date   time.Time `json:"date"`
	Author string    `json:"author"`
	Body   string    `json:"body"`
}

// FilterByAge returns a copy of d keeping only changes and comments
// newer than the cutoff. The summary fields are unaffected.
func (d IssueDetails) FilterByAge(cutoff time.Time) IssueDetails {
	filtered := d
	filtered.Changes = []ChangeEntry{}
	filtered.Comments = []CommentEntry{}
	for _, ch := range d.Changes {
		if !ch.Date.Before(cutoff) {
			filtered.Changes = append(filtered.Changes, ch)
		}
	}
	for _, cm := range d.Comments {
		if !cm.Date.Before(cutoff) {
			filtered.Comments = append(filtered.Comments, cm)
		}
	}
	return filtered
}

// HasActivity reports whether any change or comment survived
// filtering; exports and summaries can omit dormant tickets.
func (d IssueDetails) HasActivity() bool {
	return len(d.Changes) > 0 || len(d.Comments) > 0
}

func parseIssueDetails(key string, w wireIssue, ids customFieldIDs) IssueDetails {
	details := IssueDetails{
		Key:      key,
		Summary:  fieldString(w.Fields, "summary"),
		Status:   "Unknown",
		Assignee: "Unassigned",
		Priority: "None",
		Changes:  []ChangeEntry{},
		Comments: []CommentEntry{},
	}
	if details.Summary == "" {
		details.Summary = "No summary"
	}
	if status := fieldNamed(w.Fields, "status"); status != nil && status.Name != "" {
		details.Status = status.Name
	}
	if name := fieldUser(w.Fields, "assignee"); name != "" {
		details.Assignee = name
	}
	if p := fieldNamed(w.Fields, "priority"); p != nil && p.Name != "" {
		details.Priority = p.Name
	}
	details.Description = fieldString(w.Fields, "description")
	details.Estimation = parseEstimation(w.Fields[ids.Estimation])
	details.Sprint, details.SprintState = parseSprint(w.Fields[ids.Sprint])

	if w.Changelog != nil {
		for _, history := range w.Changelog.Histories {
			created, ok := parseJiraTime(history.Created)
			if !ok {
				continue
			}
			author := history.Author.DisplayName
			if author == "" {
				author = "Unknown"
			}
			for _, item := range history.Items {
				details.Changes = append(details.Changes, ChangeEntry{
					Date:   created,
					Author: author,
					Field:  item.Field,
					From:   orNone(item.FromString),
					To:     orNone(item.ToString),
				})
			}
		}
	}

	if raw, ok := w.Fields["comment"]; ok {
		var wrapper struct {
			Comments []struct {
				Created string   `json:"created"`
				Author  wireUser `json:"author"`
				Body    string   `json:"body"`
			} `json:"comments"`
		}
		if json.Unmarshal(raw, &wrapper) == nil {
			for _, c := range wrapper.Comments {
				created, ok := parseJiraTime(c.Created)
				if !ok {
					continue
				}
				author := c.Author.DisplayName
				if author == "" {
					author = "Unknown"
				}
				details.Comments = append(details.Comments, CommentEntry{
					Date:   created,
					Author: author,
					Body:   c.Body,
				})
			}
		}
	}

	return details
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

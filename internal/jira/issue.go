package jira

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Issue is the ticket projection the dashboard renders. Derived fields
// (epic/parent resolution across the three hierarchy conventions,
// sprint extraction, estimation coercion) are computed at parse time
// so callers never see raw custom-field IDs.
type Issue struct {
	Key              string      `json:"key"`
	Summary          string      `json:"summary"`
	Status           string      `json:"status"`
	StatusCategory   string      `json:"statusCategory"`
	Assignee         string      `json:"assignee"`
	Reporter         string      `json:"reporter"`
	Priority         string      `json:"priority"`
	StoryPoints      string      `json:"storyPoints,omitempty"`
	Type             string      `json:"type"`
	EpicKey          string      `json:"epicKey,omitempty"`
	EpicName         string      `json:"epicName,omitempty"`
	ParentKey        string      `json:"parentKey,omitempty"`
	ParentName       string      `json:"parentName,omitempty"`
	IssueLinks       []IssueLink `json:"issueLinks,omitempty"`
	Subtasks         []Subtask   `json:"subtasks,omitempty"`
	Resolution       string      `json:"resolution,omitempty"`
	StatusChangeDate *time.Time  `json:"statusChangeDate,omitempty"`
	Sprint           string      `json:"sprint,omitempty"`
	SprintState      string      `json:"sprintState,omitempty"`
}

// IssueLink is one directed relationship to another issue.
type IssueLink struct {
	Type    string `json:"type"`
	Key     string `json:"key"`
	Summary string `json:"summary"`
}

// Subtask is a child issue reference.
type Subtask struct {
	Key     string `json:"key"`
	Summary string `json:"summary"`
	Status  string `json:"status"`
}

// wireIssue is the raw REST shape. Fields is kept as a raw map because
// custom fields have per-instance dynamic IDs.
type wireIssue struct {
	Key       string                     `json:"key"`
	Fields    map[string]json.RawMessage `json:"fields"`
	Changelog *wireChangelog             `json:"changelog"`
}

type wireChangelog struct {
	Histories []wireHistory `json:"histories"`
}

type wireHistory struct {
	Created string    `json:"created"`
	Author  wireUser  `json:"author"`
	Items   []wireOp  `json:"items"`
}

type wireOp struct {
	Field      string `json:"field"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
}

type wireUser struct {
	DisplayName string `json:"displayName"`
}

type wireNamed struct {
	Name           string `json:"name"`
	StatusCategory *struct {
		Key string `json:"key"`
	} `json:"statusCategory"`
}

type wireLinkedIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary   string     `json:"summary"`
		Status    *wireNamed `json:"status"`
		IssueType *wireNamed `json:"issuetype"`
	} `json:"fields"`
}

type wireIssueLink struct {
	Type struct {
		Inward  string `json:"inward"`
		Outward string `json:"outward"`
	} `json:"type"`
	InwardIssue  *wireLinkedIssue `json:"inwardIssue"`
	OutwardIssue *wireLinkedIssue `json:"outwardIssue"`
}

func parseIssue(w wireIssue, ids customFieldIDs) Issue {
	issue := Issue{
		Key:            w.Key,
		Summary:        fieldString(w.Fields, "summary"),
		Status:         "Unknown",
		StatusCategory: "other",
		Assignee:       "Unassigned",
		Reporter:       "Unknown",
		Priority:       "None",
		Type:           "Task",
	}

	if status := fieldNamed(w.Fields, "status"); status != nil {
		if status.Name != "" {
			issue.Status = status.Name
		}
		if status.StatusCategory != nil && status.StatusCategory.Key != "" {
			issue.StatusCategory = status.StatusCategory.Key
		}
	}
	if name := fieldUser(w.Fields, "assignee"); name != "" {
		issue.Assignee = name
	}
	if name := fieldUser(w.Fields, "reporter"); name != "" {
		issue.Reporter = name
	}
	if p := fieldNamed(w.Fields, "priority"); p != nil && p.Name != "" {
		issue.Priority = p.Name
	}
	if it := fieldNamed(w.Fields, "issuetype"); it != nil && it.Name != "" {
		issue.Type = it.Name
	}
	if res := fieldNamed(w.Fields, "resolution"); res != nil {
		issue.Resolution = res.Name
	}

	issue.StoryPoints = parseEstimation(w.Fields[ids.Estimation])
	issue.Sprint, issue.SprintState = parseSprint(w.Fields[ids.Sprint])

	parseHierarchy(&issue, w.Fields, ids)
	parseLinks(&issue, w.Fields)
	parseSubtasks(&issue, w.Fields)

	issue.StatusChangeDate = lastStatusChange(w.Changelog)

	return issue
}

// parseHierarchy fills epic/parent keys across the three conventions:
// the native parent field (cloud hierarchies and subtasks, where an
// Epic-typed parent is also the epic), the Epic Link custom field
// (server/DC and older cloud), and the Parent Link custom field.
func parseHierarchy(issue *Issue, fields map[string]json.RawMessage, ids customFieldIDs) {
	if raw, ok := fields["parent"]; ok {
		var parent wireLinkedIssue
		if json.Unmarshal(raw, &parent) == nil && parent.Key != "" {
			issue.ParentKey = parent.Key
			issue.ParentName = parent.Fields.Summary
			if issue.ParentName == "" {
				issue.ParentName = parent.Key
			}
			if parent.Fields.IssueType != nil && strings.EqualFold(parent.Fields.IssueType.Name, "epic") {
				issue.EpicKey = issue.ParentKey
				issue.EpicName = issue.ParentName
			}
		}
	}
	if issue.EpicKey == "" && ids.EpicLink != "" {
		if link := rawString(fields[ids.EpicLink]); link != "" {
			issue.EpicKey = link
			issue.EpicName = link
		}
	}
	if issue.ParentKey == "" && ids.ParentLink != "" {
		if link := rawString(fields[ids.ParentLink]); link != "" {
			issue.ParentKey = link
			issue.ParentName = link
		}
	}
}

func parseLinks(issue *Issue, fields map[string]json.RawMessage) {
	raw, ok := fields["issuelinks"]
	if !ok {
		return
	}
	var links []wireIssueLink
	if json.Unmarshal(raw, &links) != nil {
		return
	}
	for _, link := range links {
		if link.OutwardIssue != nil {
			issue.IssueLinks = append(issue.IssueLinks, IssueLink{
				Type:    link.Type.Outward,
				Key:     link.OutwardIssue.Key,
				Summary: link.OutwardIssue.Fields.Summary,
			})
		}
		if link.InwardIssue != nil {
			issue.IssueLinks = append(issue.IssueLinks, IssueLink{
				Type:    link.Type.Inward,
				Key:     link.InwardIssue.Key,
				Summary: link.InwardIssue.Fields.Summary,
			})
		}
	}
}

func parseSubtasks(issue *Issue, fields map[string]json.RawMessage) {
	raw, ok := fields["subtasks"]
	if !ok {
		return
	}
	var subs []wireLinkedIssue
	if json.Unmarshal(raw, &subs) != nil {
		return
	}
	for _, sub := range subs {
		st := Subtask{Key: sub.Key, Summary: sub.Fields.Summary, Status: "Unknown"}
		if sub.Fields.Status != nil && sub.Fields.Status.Name != "" {
			st.Status = sub.Fields.Status.Name
		}
		issue.Subtasks = append(issue.Subtasks, st)
	}
}

// parseEstimation coerces the estimation custom field, which may be a
// number (story points), a string (t-shirt size), or an option object
// with a value/name, into display text. Whole floats lose the ".0".
func parseEstimation(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var num float64
	if json.Unmarshal(raw, &num) == nil {
		// json.Marshal renders whole floats without a decimal part,
		// so 3.0 story points display as "3".
		return jsonNumber(num)
	}
	if s := rawString(raw); s != "" {
		return s
	}
	var opt struct {
		Value string `json:"value"`
		Name  string `json:"name"`
	}
	if json.Unmarshal(raw, &opt) == nil {
		if opt.Value != "" {
			return opt.Value
		}
		return opt.Name
	}
	return strings.Trim(string(raw), `"`)
}

func jsonNumber(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

var (
	sprintNamePattern  = regexp.MustCompile(`name=([^,\]]+)`)
	sprintStatePattern = regexp.MustCompile(`state=([^,\]]+)`)
)

// parseSprint extracts the most recent sprint (last array element)
// from the sprint custom field, which is either a greenhopper toString
// blob or a structured object depending on instance age.
func parseSprint(raw json.RawMessage) (name, state string) {
	if len(raw) == 0 {
		return "", ""
	}

	var asStrings []string
	if json.Unmarshal(raw, &asStrings) == nil && len(asStrings) > 0 {
		last := asStrings[len(asStrings)-1]
		if m := sprintNamePattern.FindStringSubmatch(last); m != nil {
			name = m[1]
		}
		if m := sprintStatePattern.FindStringSubmatch(last); m != nil {
			state = strings.ToLower(m[1])
		}
		return name, state
	}

	var asObjects []struct {
		Name  string `json:"name"`
		State string `json:"state"`
	}
	if json.Unmarshal(raw, &asObjects) == nil && len(asObjects) > 0 {
		last := asObjects[len(asObjects)-1]
		name = last.Name
		if name == "" {
			name = "Unknown Sprint"
		}
		return name, strings.ToLower(last.State)
	}

	return "", ""
}

// lastStatusChange finds the most recent status transition in the
// changelog.
func lastStatusChange(cl *wireChangelog) *time.Time {
	if cl == nil {
		return nil
	}
	for i := len(cl.Histories) - 1; i >= 0; i-- {
		for _, item := range cl.Histories[i].Items {
			if item.Field == "status" {
				if ts, ok := parseJiraTime(cl.Histories[i].Created); ok {
					return &ts
				}
				return nil
			}
		}
	}
	return nil
}

// jiraTimeLayout is Jira's REST timestamp format. RFC 3339 is accepted
// as a fallback for instances behind normalizing proxies.
const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

func parseJiraTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(jiraTimeLayout, s); err == nil {
		return ts, true
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

func fieldString(fields map[string]json.RawMessage, name string) string {
	return rawString(fields[name])
}

func fieldUser(fields map[string]json.RawMessage, name string) string {
	raw, ok := fields[name]
	if !ok {
		return ""
	}
	var u wireUser
	if json.Unmarshal(raw, &u) != nil {
		return ""
	}
	return u.DisplayName
}

func fieldNamed(fields map[string]json.RawMessage, name string) *wireNamed {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return nil
	}
	var n wireNamed
	if json.Unmarshal(raw, &n) != nil {
		return nil
	}
	return &n
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

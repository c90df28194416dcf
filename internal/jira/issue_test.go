package jira

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEstimation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"whole float", "5.0", "5"},
		{"fractional", "2.5", "2.5"},
		{"string size", `"XL"`, "XL"},
		{"option object value", `{"value":"M","id":"123"}`, "M"},
		{"option object name", `{"name":"Large"}`, "Large"},
		{"absent", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw json.RawMessage
			if tt.raw != "" {
				raw = json.RawMessage(tt.raw)
			}
			assert.Equal(t, tt.want, parseEstimation(raw))
		})
	}
}

func TestParseSprint_ObjectForm(t *testing.T) {
	raw := json.RawMessage(`[{"name":"Sprint 4","state":"ACTIVE"},{"name":"Sprint 5","state":"FUTURE"}]`)
	name, state := parseSprint(raw)
	assert.Equal(t, "Sprint 5", name)
	assert.Equal(t, "future", state)
}

func TestParseSprint_GreenhopperString(t *testing.T) {
	raw := json.RawMessage(`["com.atlassian.greenhopper.service.sprint.Sprint@14b1c359[id=123,rapidViewId=456,state=ACTIVE,name=Sprint 1,startDate=2026-01-01]"]`)
	name, state := parseSprint(raw)
	assert.Equal(t, "Sprint 1", name)
	assert.Equal(t, "active", state)
}

func TestParseJiraTime(t *testing.T) {
	ts, ok := parseJiraTime("2026-08-19T09:30:00.000+0000")
	require.True(t, ok)
	assert.Equal(t, 2026, ts.Year())

	_, ok = parseJiraTime("not a date")
	assert.False(t, ok)
}

func TestFilterByAge(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	details := IssueDetails{
		Key: "X-1",
		Changes: []ChangeEntry{
			{Date: now.AddDate(0, 0, -2), Field: "status"},
			{Date: now.AddDate(0, 0, -30), Field: "assignee"},
		},
		Comments: []CommentEntry{
			{Date: now.AddDate(0, 0, -40), Body: "old"},
		},
	}

	recent := details.FilterByAge(now.AddDate(0, 0, -7))
	require.Len(t, recent.Changes, 1)
	assert.Equal(t, "status", recent.Changes[0].Field)
	assert.Empty(t, recent.Comments)
	assert.True(t, recent.HasActivity())

	none := details.FilterByAge(now)
	assert.False(t, none.HasActivity())

	// The receiver is untouched.
	assert.Len(t, details.Changes, 2)
}

func TestProjectRef_StripsDisplayDefaults(t *testing.T) {
	ref := ProjectRef(Issue{Key: "X-1", Assignee: "Unassigned", Reporter: "Unknown"})
	assert.Empty(t, ref.Assignee)
	assert.Empty(t, ref.Reporter)

	ref = ProjectRef(Issue{Key: "X-2", Assignee: "Ada", Reporter: "Grace", EpicKey: "E-1"})
	assert.Equal(t, "Ada", ref.Assignee)
	assert.Equal(t, "Grace", ref.Reporter)
	assert.Equal(t, "E-1", ref.EpicKey)
}

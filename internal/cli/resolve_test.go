package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newJiraStub serves the minimal tracker surface the CLI touches:
// custom-field discovery, search, and issue details.
func newJiraStub(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/api/2/field", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("POST /rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"total": 2,
			"issues": [
				{"key": "OPS-1", "fields": {"summary": "Fix the widget", "status": {"name": "In Progress"}}},
				{"key": "OPS-2", "fields": {"summary": "Update docs", "status": {"name": "To Do"}}}
			]
		}`))
	})
	mux.HandleFunc("GET /rest/api/2/issue/{key}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"key": "` + r.PathValue("key") + `",
			"fields": {"summary": "Fix the widget", "status": {"name": "In Progress"}}
		}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestResolve_WithoutCredentials(t *testing.T) {
	t.Setenv("JIRA_HOST", "")
	t.Setenv("JIRA_TOKEN", "")
	path := writeDefinitions(t, validDefinitions)

	_, _, err := execute(t, "resolve", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "JIRA not configured")
}

func TestResolve_Text(t *testing.T) {
	stub := newJiraStub(t)
	t.Setenv("JIRA_HOST", stub.URL)
	t.Setenv("JIRA_TOKEN", "token")
	path := writeDefinitions(t, validDefinitions)

	stdout, _, err := execute(t, "resolve", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, `workstream "Active Bugs"`)
	assert.Contains(t, stdout, "2 issue(s)")
	assert.Contains(t, stdout, "OPS-1 OPS-2")
}

func TestResolve_JSON(t *testing.T) {
	stub := newJiraStub(t)
	t.Setenv("JIRA_HOST", stub.URL)
	t.Setenv("JIRA_TOKEN", "token")
	path := writeDefinitions(t, validDefinitions)

	stdout, _, err := execute(t, "--format", "json", "resolve", path)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Workstream string `json:"workstream"`
			Outcome    struct {
				Aggregate struct {
					Issues []struct {
						Key string `json:"key"`
					} `json:"issues"`
				} `json:"aggregate"`
			} `json:"outcome"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Active Bugs", resp.Data.Workstream)
	require.Len(t, resp.Data.Outcome.Aggregate.Issues, 2)
	assert.Equal(t, "OPS-1", resp.Data.Outcome.Aggregate.Issues[0].Key)
}

func TestResolve_UnknownWorkstream(t *testing.T) {
	path := writeDefinitions(t, validDefinitions)

	_, _, err := execute(t, "resolve", path, "--workstream", "Nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `"Nope" not found`)
}

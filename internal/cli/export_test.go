package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport_UnknownType(t *testing.T) {
	path := writeDefinitions(t, validDefinitions)

	_, _, err := execute(t, "export", path, "--type", "pdf")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "pdf")
}

func TestExport_MarkdownToStdout(t *testing.T) {
	stub := newJiraStub(t)
	t.Setenv("JIRA_HOST", stub.URL)
	t.Setenv("JIRA_TOKEN", "token")
	path := writeDefinitions(t, validDefinitions)

	stdout, _, err := execute(t, "export", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "# Active Bugs")
	assert.Contains(t, stdout, "## Queries")
	assert.Contains(t, stdout, "project = OPS AND type = Bug")
	assert.Contains(t, stdout, "OPS-1")
}

func TestExport_CSVToFile(t *testing.T) {
	stub := newJiraStub(t)
	t.Setenv("JIRA_HOST", stub.URL)
	t.Setenv("JIRA_TOKEN", "token")
	path := writeDefinitions(t, validDefinitions)
	out := filepath.Join(t.TempDir(), "tickets.csv")

	stdout, _, err := execute(t, "export", path, "--type", "csv", "-o", out)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "key,summary,status"))
	assert.True(t, strings.HasPrefix(lines[1], "OPS-1,"))
	assert.True(t, strings.HasPrefix(lines[2], "OPS-2,"))
}

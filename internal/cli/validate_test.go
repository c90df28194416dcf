package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidFile(t *testing.T) {
	path := writeDefinitions(t, validDefinitions)

	stdout, _, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "valid")
	assert.Contains(t, stdout, "Team Alpha")
	assert.Contains(t, stdout, "Active Bugs")
}

func TestValidate_ValidFileJSON(t *testing.T) {
	path := writeDefinitions(t, validDefinitions)

	stdout, _, err := execute(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidate_UnknownKind(t *testing.T) {
	path := writeDefinitions(t, `
page: {
	title: "Team"
	workstreams: [{
		name: "Broken"
		stack: [{
			kind:       "graphql"
			expression: "whatever"
		}]
	}]
}
`)

	stdout, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Validation failed")
	assert.Contains(t, stdout, "graphql")
}

func TestValidate_JQLUnknownReference(t *testing.T) {
	path := writeDefinitions(t, `
page: {
	title: "Team"
	workstreams: [{
		name: "Broken"
		stack: [{
			expression: "{nosuchbinding} AND status = Done"
		}]
	}]
}
`)

	stdout, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "unresolved reference")
	assert.Contains(t, stdout, "nosuchbinding")
}

func TestValidate_ForwardReference(t *testing.T) {
	path := writeDefinitions(t, `
page: {
	title: "Team"
	workstreams: [{
		name: "Broken"
		stack: [{
			kind:       "setop"
			expression: "{query2} UNION {query1}"
		}, {
			expression: "project = OPS"
		}]
	}]
}
`)

	stdout, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "unresolved reference")
}

func TestValidate_MissingFile(t *testing.T) {
	_, _, err := execute(t, "validate", filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

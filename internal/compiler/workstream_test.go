package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pioj/pioj/internal/query"
)

func compilePage(t *testing.T, src string) (*PageDef, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompilePage(v.LookupPath(cue.ParsePath("page")))
}

func TestCompilePageBasic(t *testing.T) {
	def, err := compilePage(t, `
		page: {
			title: "Sprint board"
			workstreams: [
				{
					name: "My issues"
					stack: [
						{name: "mine", kind: "jql", expression: "assignee = currentUser()"},
						{kind: "foreach", expression: "FOREACH {mine}: parent = {issue}"},
						{kind: "setop", expression: "{query1} UNION {query2}"},
					]
				},
			]
		}
	`)
	require.NoError(t, err)

	assert.Equal(t, "Sprint board", def.Title)
	require.Len(t, def.Workstreams, 1)

	ws := def.Workstreams[0]
	assert.Equal(t, "My issues", ws.Name)
	require.Len(t, ws.Stack, 3)
	assert.Equal(t, "mine", ws.Stack[0].Name)
	assert.Equal(t, query.KindJQL, ws.Stack[0].Kind)
	assert.Equal(t, query.KindForEach, ws.Stack[1].Kind)
	assert.Equal(t, query.KindSetOp, ws.Stack[2].Kind)
}

func TestCompileStepKindDefaultsToJQL(t *testing.T) {
	def, err := compilePage(t, `
		page: {
			title: "Board"
			workstreams: [{
				name: "Plain"
				stack: [{expression: "project = OPS"}]
			}]
		}
	`)
	require.NoError(t, err)
	assert.Equal(t, query.KindJQL, def.Workstreams[0].Stack[0].Kind)
}

func TestCompilePageMissingTitle(t *testing.T) {
	_, err := compilePage(t, `
		page: {
			workstreams: [{
				name: "W"
				stack: [{expression: "project = OPS"}]
			}]
		}
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")
	assert.Contains(t, err.Error(), "required")
}

func TestCompileWorkstreamEmptyStack(t *testing.T) {
	_, err := compilePage(t, `
		page: {
			title: "Board"
			workstreams: [{
				name: "Empty"
				stack: []
			}]
		}
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one query")
}

func TestCompileWorkstreamUnknownKind(t *testing.T) {
	_, err := compilePage(t, `
		page: {
			title: "Board"
			workstreams: [{
				name: "Bad"
				stack: [{kind: "graphql", expression: "whatever"}]
			}]
		}
	`)
	require.Error(t, err)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Message, "graphql")
}

func TestCompileWorkstreamForwardReference(t *testing.T) {
	_, err := compilePage(t, `
		page: {
			title: "Board"
			workstreams: [{
				name: "Forward"
				stack: [
					{kind: "foreach", expression: "FOREACH {query2}: parent = {issue}"},
					{expression: "project = OPS"},
				]
			}]
		}
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved reference")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.cue")
	src := `page: {
	title: "Ops"
	workstreams: [{
		name: "Escalations"
		stack: [{expression: "project = OPS AND priority = Highest"}]
	}]
}`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	def, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Ops", def.Title)
	require.Len(t, def.Workstreams, 1)
}

func TestLoadFileSyntaxErrorHasPosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(path, []byte("page: {\n\ttitle: \n}"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
}

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferences(t *testing.T) {
	refs := references("project = X AND {query1} AND { open bugs }")
	assert.Equal(t, []string{"query1", "open bugs"}, refs)

	assert.Empty(t, references("project = X"))
}

func TestParseForEach(t *testing.T) {
	fe, perr := parseForEach(1, "FOREACH {query1}: parent = {issue}")
	require.Nil(t, perr)
	assert.Equal(t, "query1", fe.Ref)
	assert.Equal(t, "parent = {issue}", fe.Template)
}

func TestParseForEach_CaseAndWhitespace(t *testing.T) {
	fe, perr := parseForEach(0, "  foreach  {epics} :  \"Epic Link\" = {issue}")
	require.Nil(t, perr)
	assert.Equal(t, "epics", fe.Ref)
	assert.Equal(t, `"Epic Link" = {issue}`, fe.Template)
}

func TestParseForEach_Malformed(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"missing binding", "FOREACH : parent = {issue}"},
		{"missing colon", "FOREACH {query1} parent = {issue}"},
		{"empty template", "FOREACH {query1}:   "},
		{"not a foreach", "project = X"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, perr := parseForEach(2, tt.expr)
			require.NotNil(t, perr)
			assert.Equal(t, 2, perr.Step)
		})
	}
}

func TestParseSetOp(t *testing.T) {
	so, perr := parseSetOp(2, "{query1} SUBTRACT {done}")
	require.Nil(t, perr)
	assert.Equal(t, OpSubtract, so.Op)
	assert.Equal(t, "query1", so.RefA)
	assert.Equal(t, "done", so.RefB)
}

func TestParseSetOp_OperatorCaseInsensitive(t *testing.T) {
	so, perr := parseSetOp(0, "{a} xor {b}")
	require.Nil(t, perr)
	assert.Equal(t, OpXor, so.Op)
}

func TestParseSetOp_Malformed(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"unknown operator", "{a} MERGE {b}"},
		{"missing operand", "{a} UNION"},
		{"bare keys", "a UNION b"},
		{"trailing junk", "{a} UNION {b} UNION {c}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, perr := parseSetOp(0, tt.expr)
			require.NotNil(t, perr)
		})
	}
}

func TestParseKind_RoundTrip(t *testing.T) {
	for _, k := range []Kind{KindJQL, KindForEach, KindSetOp} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	// The original's wire label is accepted too.
	k, err := ParseKind("SET_OPERATION")
	require.NoError(t, err)
	assert.Equal(t, KindSetOp, k)

	_, err = ParseKind("sql")
	assert.Error(t, err)
}

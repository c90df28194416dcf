package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssemble_FirstSeenOrderAcrossSteps(t *testing.T) {
	steps := []Result{
		{SourceName: "query1", Issues: refs("A", "B")},
		{SourceName: "query2", Issues: refs("B", "C")},
		{SourceName: "query3", Issues: refs("B")},
	}

	agg := Assemble(steps)
	assert.Equal(t, []string{"A", "B", "C"}, agg.Keys())
	assert.False(t, agg.Truncated)
}

func TestAssemble_TruncationIsORAcrossSteps(t *testing.T) {
	steps := []Result{
		{Issues: refs("A")},
		{Issues: refs("B"), Truncated: true},
		{Issues: refs("C")},
	}

	assert.True(t, Assemble(steps).Truncated)
}

func TestAssemble_Empty(t *testing.T) {
	agg := Assemble(nil)
	assert.Empty(t, agg.Issues)
	assert.False(t, agg.Truncated)
}

func TestAssemble_KeepsRichestFirstSeenRef(t *testing.T) {
	first := IssueRef{Key: "A", Assignee: "Ada"}
	steps := []Result{
		{Issues: []IssueRef{first}},
		{Issues: []IssueRef{{Key: "A"}}},
	}

	agg := Assemble(steps)
	assert.Equal(t, []IssueRef{first}, agg.Issues, "the first-seen ref wins")
}

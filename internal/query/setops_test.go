package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_Union(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want []string
	}{
		{"disjoint", []string{"A", "B"}, []string{"C"}, []string{"A", "B", "C"}},
		{"overlap keeps a order then b remainder", []string{"A", "B"}, []string{"B", "C"}, []string{"A", "B", "C"}},
		{"empty left", nil, []string{"X"}, []string{"X"}},
		{"empty right", []string{"X"}, nil, []string{"X"}},
		{"both empty", nil, nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Apply(OpUnion, tt.a, tt.b))
		})
	}
}

func TestApply_Intersect(t *testing.T) {
	got := Apply(OpIntersect, []string{"A", "B", "C"}, []string{"C", "A"})
	assert.Equal(t, []string{"A", "C"}, got, "intersection keeps a's order")

	assert.Empty(t, Apply(OpIntersect, []string{"A"}, []string{"B"}))
}

func TestApply_Subtract(t *testing.T) {
	got := Apply(OpSubtract, []string{"A", "B", "C"}, []string{"B"})
	assert.Equal(t, []string{"A", "C"}, got)

	// Not commutative: operand order matters.
	ab := Apply(OpSubtract, []string{"A", "B"}, []string{"B", "C"})
	ba := Apply(OpSubtract, []string{"B", "C"}, []string{"A", "B"})
	assert.Equal(t, []string{"A"}, ab)
	assert.Equal(t, []string{"C"}, ba)
	assert.NotEqual(t, toSet(ab), toSet(ba))
}

func TestApply_Xor(t *testing.T) {
	got := Apply(OpXor, []string{"A", "B"}, []string{"B", "C"})
	assert.Equal(t, []string{"A", "C"}, got, "a-exclusive members first, then b-exclusive")
}

// TestApply_SetEqualityProperties covers the algebraic properties:
// UNION and XOR are commutative as sets, and op(a,a) collapses to
// empty for SUBTRACT/XOR and to a for UNION/INTERSECT.
func TestApply_SetEqualityProperties(t *testing.T) {
	a := []string{"A", "B", "C"}
	b := []string{"C", "D"}

	assert.Equal(t, toSet(Apply(OpUnion, a, b)), toSet(Apply(OpUnion, b, a)))
	assert.Equal(t, toSet(Apply(OpXor, a, b)), toSet(Apply(OpXor, b, a)))

	assert.Empty(t, Apply(OpSubtract, a, a))
	assert.Empty(t, Apply(OpXor, a, a))
	assert.Equal(t, a, Apply(OpUnion, a, a))
	assert.Equal(t, a, Apply(OpIntersect, a, a))
}

func TestParseOp(t *testing.T) {
	for _, op := range []Op{OpUnion, OpIntersect, OpSubtract, OpXor} {
		parsed, err := ParseOp(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}

	_, err := ParseOp("MERGE")
	assert.Error(t, err)
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

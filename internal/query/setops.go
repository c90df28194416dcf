package query

import "fmt"

// Op is a set-algebra operator over two ordered issue-key sequences.
// Closed enum; Apply dispatches exhaustively.
type Op int

const (
	// OpUnion keeps every key from a, then b's remainder.
	OpUnion Op = iota

	// OpIntersect keeps keys present in both, in a's order.
	OpIntersect

	// OpSubtract keeps a's keys absent from b, in a's order.
	// Not commutative: operand order comes verbatim from the user.
	OpSubtract

	// OpXor keeps keys in exactly one operand: a's exclusive members
	// in a's order, then b's exclusive members in b's order.
	OpXor
)

// String returns the operator token as written in expressions.
func (op Op) String() string {
	switch op {
	case OpUnion:
		return "UNION"
	case OpIntersect:
		return "INTERSECT"
	case OpSubtract:
		return "SUBTRACT"
	case OpXor:
		return "XOR"
	default:
		return fmt.Sprintf("Op(%d)", int(op))
	}
}

// ParseOp maps an operator token to its Op.
func ParseOp(s string) (Op, error) {
	switch s {
	case "UNION":
		return OpUnion, nil
	case "INTERSECT":
		return OpIntersect, nil
	case "SUBTRACT":
		return OpSubtract, nil
	case "XOR":
		return OpXor, nil
	default:
		return 0, fmt.Errorf("unknown set operator %q", s)
	}
}

// Apply computes op over two ordered key sequences treated as sets.
// Inputs are assumed duplicate-free (step results are deduplicated at
// construction); outputs are deterministic in the orders documented
// on each operator.
func Apply(op Op, a, b []string) []string {
	switch op {
	case OpUnion:
		return union(a, b)
	case OpIntersect:
		return intersect(a, b)
	case OpSubtract:
		return subtract(a, b)
	case OpXor:
		return xor(a, b)
	default:
		panic(fmt.Sprintf("query: unhandled set operator %d", int(op)))
	}
}

func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, k := range a {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range b {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func intersect(a, b []string) []string {
	inB := keySet(b)
	out := make([]string, 0, len(a))
	for _, k := range a {
		if inB[k] {
			out = append(out, k)
		}
	}
	return out
}

func subtract(a, b []string) []string {
	inB := keySet(b)
	out := make([]string, 0, len(a))
	for _, k := range a {
		if !inB[k] {
			out = append(out, k)
		}
	}
	return out
}

func xor(a, b []string) []string {
	inA := keySet(a)
	inB := keySet(b)
	out := make([]string, 0, len(a)+len(b))
	for _, k := range a {
		if !inB[k] {
			out = append(out, k)
		}
	}
	for _, k := range b {
		if !inA[k] {
			out = append(out, k)
		}
	}
	return out
}

func keySet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

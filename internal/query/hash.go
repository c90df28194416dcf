package query

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// stackDomain is the domain-separation prefix for stack hashes. The
// version suffix leaves room for an algorithm change without colliding
// with old hashes. Format: SHA256(domain + 0x00 + canonical JSON).
const stackDomain = "pioj/stack/v1"

// StackHash computes a stable content hash of a query stack. Stored
// result snapshots carry the hash of the stack they were resolved
// from; a mismatch with the current stack marks the snapshot stale.
//
// The serialization is canonical: object keys sorted, strings NFC
// normalized, no HTML escaping. Field order, map iteration order, and
// Unicode composition differences therefore never change the hash.
func StackHash(defs []Definition) (string, error) {
	steps := make([]any, len(defs))
	for i, def := range defs {
		steps[i] = map[string]any{
			"name":       def.Name,
			"kind":       def.Kind.String(),
			"expression": def.Expression,
		}
	}

	canonical, err := marshalCanonical(steps)
	if err != nil {
		return "", fmt.Errorf("stack hash: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(stackDomain))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// marshalCanonical serializes the value shapes StackHash produces:
// strings, ints, bools, []any, and map[string]any.
func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case string:
		return marshalCanonicalString(val)
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := marshalCanonical(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := marshalCanonicalString(k)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := marshalCanonical(val[k])
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// marshalCanonicalString encodes a string with NFC normalization and
// without HTML escaping, so visually identical expressions hash the
// same regardless of Unicode composition or < > & handling.
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder appends a newline.
	result := buf.Bytes()
	if n := len(result); n > 0 && result[n-1] == '\n' {
		result = result[:n-1]
	}
	return result, nil
}

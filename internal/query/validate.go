package query

import "fmt"

// ValidateStack checks a query stack statically, without executing any
// searches. It catches exactly the errors the resolver would treat as
// fatal: malformed FOREACH and set operation expressions, references
// to bindings that are not yet defined, and duplicate binding names.
// Every {token} in a JQL expression is a binding reference, so unknown
// ones are reference errors here just as they are at resolution time.
func ValidateStack(defs []Definition) error {
	bound := make(map[string]bool, len(defs)*2)

	for i, def := range defs {
		if def.Expression == "" {
			return &ParseError{Step: i, Message: "empty expression"}
		}

		switch def.Kind {
		case KindJQL:
			for _, ref := range references(def.Expression) {
				if !bound[ref] {
					return &ParseError{Step: i, Ref: ref, Message: "unresolved reference"}
				}
			}
		case KindForEach:
			fe, perr := parseForEach(i, def.Expression)
			if perr != nil {
				return perr
			}
			if !bound[fe.Ref] {
				return &ParseError{Step: i, Ref: fe.Ref, Message: "unresolved reference"}
			}
		case KindSetOp:
			so, perr := parseSetOp(i, def.Expression)
			if perr != nil {
				return perr
			}
			for _, ref := range []string{so.RefA, so.RefB} {
				if !bound[ref] {
					return &ParseError{Step: i, Ref: ref, Message: "unresolved reference"}
				}
			}
		default:
			return &ParseError{Step: i, Message: fmt.Sprintf("unknown query kind %q", def.Kind)}
		}

		alias := fmt.Sprintf("query%d", i+1)
		if bound[alias] {
			// An earlier user name claimed this step's positional
			// alias; the resolver would reject the rebind here.
			return &ParseError{Step: i, Ref: alias, Message: "duplicate binding"}
		}
		bound[alias] = true
		if def.Name != "" && def.Name != alias {
			if bound[def.Name] {
				return &ParseError{Step: i, Ref: def.Name, Message: "duplicate binding"}
			}
			bound[def.Name] = true
		}
	}

	return nil
}

// Package compiler loads workstream definition files written in CUE
// and compiles them into query stacks the resolver can execute.
//
// A definition file declares one page with its workstreams:
//
//	page: {
//		title: "Sprint board"
//		workstreams: [
//			{
//				name: "My issues"
//				stack: [
//					{name: "mine", kind: "jql", expression: "assignee = currentUser()"},
//					{kind: "foreach", expression: "FOREACH {mine}: parent = {issue}"},
//				]
//			},
//		]
//	}
//
// Uses CUE SDK's Go API directly (not CLI subprocess), so schema
// violations surface with file:line:column positions.
package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/pioj/pioj/internal/query"
)

// PageDef is a compiled definition file: one page and its workstreams.
type PageDef struct {
	Title       string
	Workstreams []WorkstreamDef
}

// WorkstreamDef is a named query stack as declared in a definition
// file, before it gets a store ID.
type WorkstreamDef struct {
	Name  string
	Stack []query.Definition
}

// LoadFile reads and compiles a CUE definition file.
func LoadFile(path string) (*PageDef, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition file: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	return CompilePage(v.LookupPath(cue.ParsePath("page")))
}

// CompilePage parses a CUE value into a PageDef and validates every
// stack statically.
func CompilePage(v cue.Value) (*PageDef, error) {
	if !v.Exists() {
		return nil, &CompileError{
			Field:   "page",
			Message: "definition file must declare a top-level page struct",
			Pos:     v.Pos(),
		}
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &PageDef{}

	titleVal := v.LookupPath(cue.ParsePath("title"))
	if !titleVal.Exists() {
		return nil, &CompileError{
			Field:   "page.title",
			Message: "title is required",
			Pos:     v.Pos(),
		}
	}
	title, err := titleVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	def.Title = title

	wsVal := v.LookupPath(cue.ParsePath("workstreams"))
	if !wsVal.Exists() {
		return nil, &CompileError{
			Field:   "page.workstreams",
			Message: "at least one workstream is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := wsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		ws, err := CompileWorkstream(iter.Value())
		if err != nil {
			return nil, err
		}
		def.Workstreams = append(def.Workstreams, *ws)
	}
	if len(def.Workstreams) == 0 {
		return nil, &CompileError{
			Field:   "page.workstreams",
			Message: "at least one workstream is required",
			Pos:     wsVal.Pos(),
		}
	}

	return def, nil
}

// CompileWorkstream parses a CUE value into a WorkstreamDef and runs
// the static stack checks (forward-only references, duplicate binding
// names, expression syntax).
func CompileWorkstream(v cue.Value) (*WorkstreamDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	ws := &WorkstreamDef{}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{
			Field:   "workstream.name",
			Message: "name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	ws.Name = name

	stackVal := v.LookupPath(cue.ParsePath("stack"))
	if !stackVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("workstream.%s.stack", name),
			Message: "stack is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := stackVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	step := 0
	for iter.Next() {
		step++
		def, err := compileStep(name, step, iter.Value())
		if err != nil {
			return nil, err
		}
		ws.Stack = append(ws.Stack, def)
	}
	if len(ws.Stack) == 0 {
		return nil, &CompileError{
			Field:   fmt.Sprintf("workstream.%s.stack", name),
			Message: "stack must contain at least one query",
			Pos:     stackVal.Pos(),
		}
	}

	if err := query.ValidateStack(ws.Stack); err != nil {
		return nil, &CompileError{
			Field:   fmt.Sprintf("workstream.%s.stack", name),
			Message: err.Error(),
			Pos:     stackVal.Pos(),
		}
	}

	return ws, nil
}

// compileStep parses one stack entry. Kind defaults to "jql" when
// omitted, matching the most common stack shape.
func compileStep(wsName string, step int, v cue.Value) (query.Definition, error) {
	var def query.Definition

	field := func(name string) string {
		return fmt.Sprintf("workstream.%s.stack[%d].%s", wsName, step-1, name)
	}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return def, formatCUEError(err)
		}
		def.Name = name
	}

	def.Kind = query.KindJQL
	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if kindVal.Exists() {
		label, err := kindVal.String()
		if err != nil {
			return def, formatCUEError(err)
		}
		def.Kind, err = query.ParseKind(label)
		if err != nil {
			return def, &CompileError{
				Field:   field("kind"),
				Message: err.Error(),
				Pos:     kindVal.Pos(),
			}
		}
	}

	exprVal := v.LookupPath(cue.ParsePath("expression"))
	if !exprVal.Exists() {
		return def, &CompileError{
			Field:   field("expression"),
			Message: "expression is required",
			Pos:     v.Pos(),
		}
	}
	expr, err := exprVal.String()
	if err != nil {
		return def, formatCUEError(err)
	}
	def.Expression = expr

	return def, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

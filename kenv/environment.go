// Package kenv implements the evaluator's per-run state: a stack of
// namespaces, a depth cursor, an import namespace, and the in-flight
// evaluation trace used for unhandled-error diagnostics.
package kenv

import (
	"github.com/azhaoli/kylu/kerr"
	"github.com/azhaoli/kylu/namespace"
	"github.com/azhaoli/kylu/tree"
)

// Environment is created with one empty namespace (global) at depth 0. It
// is pushed/popped on block entry/exit, object method invocation, and
// combinator application, and never shrinks below one namespace.
type Environment struct {
	Data   []*namespace.NameSpace
	Depth  int
	Import *namespace.NameSpace
	Trace  []kerr.TraceFrame
}

// New creates a fresh Environment with an empty global namespace.
func New() *Environment {
	return &Environment{
		Data:   []*namespace.NameSpace{namespace.New()},
		Depth:  0,
		Import: namespace.New(),
	}
}

// Top returns the namespace currently in scope.
func (e *Environment) Top() *namespace.NameSpace {
	return e.Data[e.Depth]
}

// Global returns the outermost (depth 0) namespace, the one shown by the
// REPL's /bindings directive.
func (e *Environment) Global() *namespace.NameSpace {
	return e.Data[0]
}

// PushScope clones the current top namespace and pushes it as a new
// layer, returning the new depth. The evaluator enters a `{...}` block the
// same way, through PushNamespace(Top().Clone()).
func (e *Environment) PushScope() int {
	e.Data = append(e.Data, e.Top().Clone())
	e.Depth++
	return e.Depth
}

// PushNamespace pushes an independently constructed namespace (a call's
// parameter bindings, an object instance's merged scope) rather than a
// clone of the current top.
func (e *Environment) PushNamespace(ns *namespace.NameSpace) int {
	e.Data = append(e.Data, ns)
	e.Depth++
	return e.Depth
}

// PopScope undoes the most recent Push{Scope,Namespace}. The environment
// never shrinks below one namespace.
func (e *Environment) PopScope() {
	if len(e.Data) <= 1 {
		return
	}
	e.Data = e.Data[:len(e.Data)-1]
	e.Depth--
}

// At returns the namespace at a specific depth, used to resolve the `[@]`
// back-link a call frame installs to reach its caller's scope.
func (e *Environment) At(depth int) *namespace.NameSpace {
	return e.Data[depth]
}

// PushTrace records entry into evaluating t, for the unhandled-error trace
// dump.
func (e *Environment) PushTrace(t *tree.Tree) {
	e.Trace = append(e.Trace, kerr.TraceFrame{Kind: t.Kind, Tag: t.Kind.String(), Span: t.Span})
}

// PopTrace undoes PushTrace on successful return.
func (e *Environment) PopTrace() {
	if len(e.Trace) > 0 {
		e.Trace = e.Trace[:len(e.Trace)-1]
	}
}

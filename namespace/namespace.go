// Package namespace implements Kylu's insertion-ordered binding table: an
// ordered mapping from key-tree to value-tree backing one lexical scope.
//
// Bindings are stored as shared cells so nested scopes can expose the
// same binding cell. A NameSpace's own slice of cell pointers is what
// "pushing a scope" clones: the slice header is copied (so a new binding
// appended in a child scope only grows the child's own slice, and is
// invisible once the child is discarded), but each existing cell is the
// same pointer in both parent and child, so an update through `<-` to an
// already-bound name mutates the cell in place and is visible in the
// parent after the child scope ends: writes via existing bindings survive
// a pop, new bindings introduced in the inner layer don't.
package namespace

import (
	"fmt"
	"strings"

	"github.com/azhaoli/kylu/kerr"
	"github.com/azhaoli/kylu/tree"
)

// cell is one shared binding: a key-tree paired with a mutable value slot.
type cell struct {
	key   *tree.Tree
	value *tree.Tree
}

// NameSpace is an ordered list of binding cells. The zero value is an
// empty, usable namespace.
type NameSpace struct {
	cells []*cell
}

// New returns an empty NameSpace.
func New() *NameSpace {
	return &NameSpace{}
}

// FromPairs builds a NameSpace with fresh, independent cells from parallel
// key/value Field children, e.g. binding a call's declared parameters
// against its evaluated arguments. Returns ArgMismatch if the lengths
// differ.
func FromPairs(keys, values *tree.Tree) (*NameSpace, *kerr.Err) {
	if len(keys.Children) != len(values.Children) {
		return nil, kerr.NewTyped(kerr.ArgMismatch, keys,
			fmt.Sprintf("%d", len(keys.Children)), fmt.Sprintf("%d", len(values.Children)), "")
	}
	ns := &NameSpace{cells: make([]*cell, len(keys.Children))}
	for i := range keys.Children {
		ns.cells[i] = &cell{key: keys.Children[i], value: values.Children[i]}
	}
	return ns, nil
}

func (ns *NameSpace) findIndex(key *tree.Tree) int {
	for i, c := range ns.cells {
		if c.key.Equal(key) {
			return i
		}
	}
	return -1
}

// Get looks up key by tree equality, returning VoidReference (with a
// "did you mean" suggestion against this namespace's own bindings) if
// absent.
func (ns *NameSpace) Get(key *tree.Tree) (*tree.Tree, *kerr.Err) {
	if i := ns.findIndex(key); i >= 0 {
		return ns.cells[i].value, nil
	}
	return nil, kerr.NewVoidReference(key, ns.Keys())
}

// Set updates the binding for key in place if it exists, else appends a
// fresh cell. Either way the final value is returned.
func (ns *NameSpace) Set(key, value *tree.Tree) *tree.Tree {
	if i := ns.findIndex(key); i >= 0 {
		ns.cells[i].value = value
		return value
	}
	ns.cells = append(ns.cells, &cell{key: key, value: value})
	return value
}

// Upsert is an alias of Set that names its update-or-insert semantics
// explicitly. Object field access merges caller bindings with the same
// semantics (through Extend, which calls Set), so a bound method parameter
// that shadows a caller binding never ends up duplicated.
func (ns *NameSpace) Upsert(key, value *tree.Tree) *tree.Tree {
	return ns.Set(key, value)
}

// Extend upserts every binding from other into ns, in other's insertion
// order. Used so an object-method block can also see the caller's current
// scope.
func (ns *NameSpace) Extend(other *NameSpace) {
	for _, c := range other.cells {
		ns.Set(c.key, c.value)
	}
}

// Clone copies this NameSpace's cell list into a new, independently
// growable NameSpace. Existing cells remain shared (see package doc);
// this is the "push a scope" primitive used for block entry.
func (ns *NameSpace) Clone() *NameSpace {
	return &NameSpace{cells: append([]*cell(nil), ns.cells...)}
}

// AsInstance packages ns's bindings as an ObjectInstance tree tagged with
// label: the representation used for `[!]` self-reflection and for
// exposing a loaded module's top-level namespace under the importing
// environment's import namespace.
func (ns *NameSpace) AsInstance(label string) *tree.Tree {
	keys := make([]*tree.Tree, len(ns.cells))
	values := make([]*tree.Tree, len(ns.cells))
	for i, c := range ns.cells {
		keys[i] = c.key
		values[i] = c.value
	}
	keysField := tree.New(tree.Field, tree.Span{}, keys)
	valuesField := tree.New(tree.Field, tree.Span{}, values)
	return tree.NewObjectInstance(label, tree.Span{}, keysField, valuesField)
}

// Keys returns the bound Symbol names in insertion order, used by the
// fuzzy "did you mean" suggestion on VoidReference diagnostics.
func (ns *NameSpace) Keys() []string {
	out := make([]string, 0, len(ns.cells))
	for _, c := range ns.cells {
		if name, kind := c.key.ID(); kind == "Symbol" {
			out = append(out, name)
		}
	}
	return out
}

// Show renders "<name> <- <value>", one per line, insertion order: the
// format printed by the REPL's /bindings and /extensions directives.
func (ns *NameSpace) Show() string {
	if len(ns.cells) == 0 {
		return "nothing to show"
	}
	var b strings.Builder
	for _, c := range ns.cells {
		fmt.Fprintf(&b, "%-20s <- %s\n", c.key.Decode(), c.value.Decode())
	}
	return b.String()
}

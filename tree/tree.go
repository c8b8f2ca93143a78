// Package tree implements the single recursive value that represents
// tokens, AST nodes, and runtime values throughout Kylu. Tokenizer,
// Parser and Evaluator all produce and consume *Tree; there is no
// separate token type or runtime value type.
package tree

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the discriminant of a Tree. Payload interpretation and the set
// of meaningful Children depend entirely on Kind; see the Tree field
// comments and the constructors below.
type Kind uint8

const (
	// Leaves (tokens and runtime scalars)
	String Kind = iota
	Number
	Boolean
	Symbol
	Operator
	Misc
	Void

	// Compound forms (AST and runtime alike)
	OperatorExpression
	Call
	Combinator
	ObjectDefinition
	ObjectInstance
	If
	Loop
	Field
	List
	Parenthesis
)

func (k Kind) String() string {
	switch k {
	case String:
		return "String"
	case Number:
		return "Number"
	case Boolean:
		return "Boolean"
	case Symbol:
		return "Symbol"
	case Operator:
		return "Operator"
	case Misc:
		return "MiscCharacter"
	case Void:
		return "Void"
	case OperatorExpression:
		return "OperatorExpression"
	case Call:
		return "Call"
	case Combinator:
		return "Combinator"
	case ObjectDefinition:
		return "Object"
	case ObjectInstance:
		return "ObjectInstance"
	case If:
		return "IfExpression"
	case Loop:
		return "LoopExpression"
	case Field:
		return "Field"
	case List:
		return "List"
	case Parenthesis:
		return "Parenthesis"
	default:
		return "Unknown"
	}
}

// Span is a byte-offset range [Start, End) into the source that produced a
// Tree. Synthesized trees (evaluator results, reduced literals) carry the
// zero Span.
type Span struct {
	Start int
	End   int
}

// Tree is the unified recursive datum. Only the payload field matching Kind
// is meaningful; see the constructors below for which field each Kind uses.
type Tree struct {
	Kind     Kind
	Span     Span
	Children []*Tree

	// Text carries: String contents, Symbol identifier, Operator text,
	// Misc raw character, OperatorExpression operator text, ObjectInstance
	// class name, Loop variant ("cond" | "iter").
	Text string

	// Num carries the Number payload.
	Num float32

	// Bool carries the Boolean payload.
	Bool bool

	// Precedence carries an Operator's binding precedence. Lower numbers
	// bind tighter: 1 (":") through 5 (assignment and comparison).
	Precedence uint8
}

// New builds a leaf or compound Tree. Children may be nil for leaves.
func New(kind Kind, span Span, children []*Tree) *Tree {
	return &Tree{Kind: kind, Span: span, Children: children}
}

func NewString(s string) *Tree  { return &Tree{Kind: String, Text: s} }
func NewNumber(n float32) *Tree { return &Tree{Kind: Number, Num: n} }
func NewBoolean(b bool) *Tree   { return &Tree{Kind: Boolean, Bool: b} }
func NewSymbol(name string) *Tree { return &Tree{Kind: Symbol, Text: name} }
func NewVoid() *Tree            { return &Tree{Kind: Void} }
func NewMisc(raw string) *Tree  { return &Tree{Kind: Misc, Text: raw} }

func NewOperator(text string, precedence uint8) *Tree {
	return &Tree{Kind: Operator, Text: text, Precedence: precedence}
}

// NewOperatorExpression builds an OperatorExpression [left, right] spanning
// from left's start to right's end.
func NewOperatorExpression(op string, left, right *Tree) *Tree {
	return &Tree{
		Kind:     OperatorExpression,
		Text:     op,
		Span:     Span{left.Span.Start, right.Span.End},
		Children: []*Tree{left, right},
	}
}

// NewObjectInstance tags an instance with its class name and [keys, values]
// Field children.
func NewObjectInstance(class string, span Span, keys, values *Tree) *Tree {
	return &Tree{Kind: ObjectInstance, Text: class, Span: span, Children: []*Tree{keys, values}}
}

// NewLoop tags a loop with its variant ("cond" | "iter").
func NewLoop(variant string, span Span, children []*Tree) *Tree {
	return &Tree{Kind: Loop, Text: variant, Span: span, Children: children}
}

// Equal compares two trees by kind (including payload) and children,
// pairwise, recursively. Spans are ignored.
func (t *Tree) Equal(other *Tree) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case String, Symbol, Operator, Misc, OperatorExpression, ObjectInstance, Loop:
		if t.Text != other.Text {
			return false
		}
	case Number:
		if t.Num != other.Num {
			return false
		}
	case Boolean:
		if t.Bool != other.Bool {
			return false
		}
	}
	if t.Kind == Operator && t.Precedence != other.Precedence {
		return false
	}
	if len(t.Children) != len(other.Children) {
		return false
	}
	for i := range t.Children {
		if !t.Children[i].Equal(other.Children[i]) {
			return false
		}
	}
	return true
}

// Clone deep-copies a Tree. Used wherever the evaluator must hand out an
// independent subtree (e.g. relabeling a returned object instance).
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Children != nil {
		clone.Children = make([]*Tree, len(t.Children))
		for i, c := range t.Children {
			clone.Children[i] = c.Clone()
		}
	}
	return &clone
}

// Type reports the user-facing type name of a runtime value, the string
// tested by the `type()` builtin and reported in TypeMismatch diagnostics.
func (t *Tree) Type() string {
	if t.Kind == Parenthesis {
		// A Parenthesis degrades to its single inner value's type.
		if len(t.Children) == 1 && len(t.Children[0].Children) == 1 {
			return t.Children[0].Children[0].Type()
		}
	}
	return t.Kind.String()
}

// ID returns the (identity-text, kind-name) pair used throughout the
// parser and evaluator to dispatch on "what is this, specifically" rather
// than just its Kind.
func (t *Tree) ID() (string, string) {
	switch t.Kind {
	case String, Symbol, Operator, Misc, OperatorExpression, ObjectInstance, Loop:
		return t.Text, t.Kind.String()
	case Parenthesis:
		return "_", "Parenthesis"
	default:
		return "_", t.Kind.String()
	}
}

// Show renders a Tree's debug form: (tag[ -->child child...]).
func (t *Tree) Show() string {
	var tag string
	switch t.Kind {
	case String:
		tag = "str: " + t.Text
	case Number:
		tag = "num: " + formatNumber(t.Num)
	case Boolean:
		tag = "bool: " + strconv.FormatBool(t.Bool)
	case Symbol:
		tag = "sym: " + t.Text
	case Operator:
		tag = "oper: " + t.Text
	case OperatorExpression:
		tag = "opex: " + t.Text
	case ObjectInstance:
		tag = "inst: " + t.Text
	case Field:
		tag = "[!]"
	case List:
		tag = "[_]"
	case Parenthesis:
		tag = "(_)"
	case ObjectDefinition:
		tag = "obj"
	case Combinator:
		tag = "com"
	case Call:
		tag = "call"
	case If:
		tag = "ifs"
	case Loop:
		tag = "loop: " + t.Text
	case Misc:
		tag = t.Text
	case Void:
		tag = "void"
	}
	if len(t.Children) == 0 {
		return fmt.Sprintf("(%s)", tag)
	}
	var kids strings.Builder
	for _, c := range t.Children {
		kids.WriteString(c.Show())
	}
	return fmt.Sprintf("(%s -->%s)", tag, kids.String())
}

// Decode renders a Tree's user-facing textual form, used by the `write`
// builtin and by error messages that embed a value's contents.
func (t *Tree) Decode() string {
	switch t.Kind {
	case String:
		return t.Text
	case Number:
		return formatNumber(t.Num)
	case Boolean:
		return strconv.FormatBool(t.Bool)
	case Symbol:
		return t.Text
	case Operator:
		return t.Text
	case Field:
		parts := make([]string, len(t.Children))
		for i, c := range t.Children {
			parts[i] = c.Decode()
		}
		return strings.Join(parts, ", ")
	case List:
		return "[" + t.Children[0].Decode() + "]"
	case Parenthesis:
		return "(" + t.Children[0].Decode() + ")"
	default:
		return t.Show()
	}
}

func formatNumber(n float32) string {
	return strconv.FormatFloat(float64(n), 'g', -1, 32)
}

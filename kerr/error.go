// Package kerr implements Kylu's tagged error-with-cause-tree: the value
// that doubles as a language-level error (catchable by the `:expect`
// combinator) and as the payload of an unhandled-exception diagnostic dump.
package kerr

import (
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/azhaoli/kylu/tree"
)

// Kind tags the category of an Err. The three Signal kinds are never
// user-visible failures: they implement non-local control flow and are
// caught at fixed points in the evaluator, never by `:expect`.
type Kind uint8

const (
	// Parse errors. These surface with no cause tree (the parser's stack
	// doesn't carry one reliably at the point of failure) and halt the
	// current file.
	MissingSeparator Kind = iota
	UnmatchedBracket
	UnknownToken
	ResolutionFailure
	EndOfFile
	UnknownSyntax

	// Runtime errors. Catchable via `: expect(e)(Kind, handler)`.
	VoidReference
	UndefinedOperation
	TypeMismatch
	IndexError
	ArgMismatch
	FileError
	Conversion
	FatalError
	CustomError

	// Signals. Never catchable by `:expect`; their Kind-name is "Signal",
	// which user code cannot match against (ErrorClass::Signal in the
	// original only ever compares equal to itself, never to a string the
	// language surfaces through `type()`/`to_node`).
	StopIteration
	ResetIteration
	StopFunction
)

// name returns the tag matched against by an `: expect(e)(Kind, handler)`
// combinator and reported in diagnostics headers.
func (k Kind) name() string {
	switch k {
	case MissingSeparator:
		return "MissingSeparator"
	case UnmatchedBracket:
		return "UnmatchedBracket"
	case UnknownToken:
		return "UnknownToken"
	case ResolutionFailure:
		return "ResolutionFailure"
	case EndOfFile:
		return "EndOfFile"
	case UnknownSyntax:
		return "UnknownSyntax"
	case VoidReference:
		return "VoidReference"
	case UndefinedOperation:
		return "UndefinedOperation"
	case TypeMismatch:
		return "TypeMismatch"
	case IndexError:
		return "IndexError"
	case ArgMismatch:
		return "ArgMismatch"
	case FileError:
		return "File"
	case Conversion:
		return "Conversion"
	case FatalError:
		return "FatalError"
	case CustomError:
		return "CustomError"
	case StopIteration, ResetIteration, StopFunction:
		return "Signal"
	default:
		return "Unknown"
	}
}

// IsSignal reports whether k is one of the non-local-control-flow signal
// kinds, which propagate like errors but are never user-visible failures.
func (k Kind) IsSignal() bool {
	return k == StopIteration || k == ResetIteration || k == StopFunction
}

// IsParse reports whether k belongs to the parse-error family (no cause
// tree, fatal for the current file).
func (k Kind) IsParse() bool {
	return k <= UnknownSyntax
}

// Err is Kylu's tagged error value. It carries the tree that caused it
// (Void for errors raised before a cause tree exists, e.g. most parse
// errors) plus kind-specific detail used only for diagnostics text.
type Err struct {
	Kind   Kind
	Cause  *tree.Tree
	Detail string // free-form detail, e.g. the missing separator or offending name
	A, B   string // kind-specific secondary detail (types compared, etc.)
}

// New builds a runtime/signal Err with an explicit cause tree.
func New(kind Kind, cause *tree.Tree, detail string) *Err {
	return &Err{Kind: kind, Cause: cause, Detail: detail}
}

// NewVoidReference builds a VoidReference Err for an unresolved key,
// attaching a "did you mean" suggestion against the namespace's current
// bindings when one is close enough.
func NewVoidReference(key *tree.Tree, candidates []string) *Err {
	name := "_"
	if n, kind := key.ID(); kind == "Symbol" {
		name = n
	}
	suggestion := ""
	if ranks := fuzzy.RankFindFold(name, candidates); len(ranks) > 0 {
		suggestion = ranks[0].Target
	}
	return &Err{Kind: VoidReference, Cause: key, Detail: name, A: suggestion}
}

// NewTyped builds an Err with two extra detail strings, used by
// UndefinedOperation (operator, left type, right type -ish) and
// TypeMismatch (expected, found).
func NewTyped(kind Kind, cause *tree.Tree, detail, a, b string) *Err {
	return &Err{Kind: kind, Cause: cause, Detail: detail, A: a, B: b}
}

// ParseErr builds a parse-time Err with no cause tree.
func ParseErr(kind Kind, detail string) *Err {
	return &Err{Kind: kind, Cause: tree.NewVoid(), Detail: detail}
}

// ParseErrTyped builds a parse-time Err carrying a secondary detail string
// (e.g. MissingSeparator's "element before the gap", ResolutionFailure's
// reason text).
func ParseErrTyped(kind Kind, detail, a string) *Err {
	return &Err{Kind: kind, Cause: tree.NewVoid(), Detail: detail, A: a}
}

// Error satisfies the standard library's error interface so an *Err
// composes with fmt.Errorf/errors.Is at program boundaries.
func (e *Err) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind.name(), e.describe())
}

func (e *Err) describe() string {
	switch e.Kind {
	case MissingSeparator:
		return fmt.Sprintf("expected separator %q after element %s", e.Detail, e.A)
	case UnmatchedBracket:
		return fmt.Sprintf("bracket %q was never closed", e.Detail)
	case UnknownToken:
		return "unrecognized token"
	case ResolutionFailure:
		return fmt.Sprintf("failed to resolve element %s, %s", e.Detail, e.A)
	case EndOfFile:
		return "scanner reached the end of the source"
	case UnknownSyntax:
		return fmt.Sprintf("unrecognized syntax identifier %q", e.Detail)
	case VoidReference:
		if e.A != "" {
			return fmt.Sprintf("reference %q has no associated value (did you mean %q?)", e.Detail, e.A)
		}
		return fmt.Sprintf("reference %q has no associated value", e.Detail)
	case UndefinedOperation:
		return fmt.Sprintf("operation %q is not defined for types %s, %s", e.Detail, e.A, e.B)
	case TypeMismatch:
		return fmt.Sprintf("expected type %q, found type %q", e.Detail, e.A)
	case IndexError:
		return fmt.Sprintf("index %s is out of range for list %s", e.Detail, e.A)
	case ArgMismatch:
		return fmt.Sprintf("expected %s arguments, found %s", e.Detail, e.A)
	case FileError:
		return fmt.Sprintf("an error occurred while processing the file %q: %s", e.Detail, e.A)
	case Conversion:
		return fmt.Sprintf("%s %q cannot be converted to type %s", e.A, e.Detail, e.B)
	case FatalError:
		return fmt.Sprintf("an unrecoverable error has occurred: %s", e.Detail)
	case CustomError:
		return e.Detail
	case StopIteration, ResetIteration, StopFunction:
		return fmt.Sprintf("signal %s cannot be invoked outside its associated block", e.Kind.name())
	default:
		return "unknown error"
	}
}

// ToNode projects a runtime error's Kind to its tag name as a *tree.Tree
// String, the value tested inside an `:expect` handler
// (`caught_error = "VoidReference"`). Parse errors have no meaningful
// projection and refuse the conversion.
func (e *Err) ToNode() (*tree.Tree, *Err) {
	if e.Kind.IsParse() {
		return nil, &Err{Kind: CustomError, Cause: tree.NewVoid(), Detail: "parsing errors cannot be converted to nodes"}
	}
	return tree.NewString(e.Kind.name()), nil
}

// Matches reports whether this error's kind-tag equals the identifier text
// carried by an `:expect(Kind)` clause.
func (e *Err) Matches(kindIdentifier string) bool {
	return e.Kind.name() == kindIdentifier
}

// ValidateType returns t unchanged if its user-facing Type() matches
// expected, else a TypeMismatch Err.
func ValidateType(t *tree.Tree, expected string) (*tree.Tree, *Err) {
	if t.Type() == expected {
		return t, nil
	}
	return nil, NewTyped(TypeMismatch, t, expected, t.Type(), "")
}

// ValidateArgsLen returns t unchanged if it has exactly n children, else an
// ArgMismatch Err.
func ValidateArgsLen(t *tree.Tree, n int) (*tree.Tree, *Err) {
	if len(t.Children) == n {
		return t, nil
	}
	return nil, NewTyped(ArgMismatch, t, fmt.Sprintf("%d", n), fmt.Sprintf("%d", len(t.Children)), "")
}

// IntoNumber, IntoBoolean and IntoString unwrap a Tree's scalar payload,
// returning TypeMismatch if its Kind doesn't match. These live here rather
// than as *tree.Tree methods because tree must not import kerr.
func IntoNumber(t *tree.Tree) (float32, *Err) {
	if t.Kind != tree.Number {
		return 0, NewTyped(TypeMismatch, t, "Number", t.Type(), "")
	}
	return t.Num, nil
}

func IntoBoolean(t *tree.Tree) (bool, *Err) {
	if t.Kind != tree.Boolean {
		return false, NewTyped(TypeMismatch, t, "Boolean", t.Type(), "")
	}
	return t.Bool, nil
}

func IntoString(t *tree.Tree) (string, *Err) {
	if t.Kind == tree.String || t.Kind == tree.Symbol {
		return t.Text, nil
	}
	return "", NewTyped(TypeMismatch, t, "String", t.Type(), "")
}

// TraceFrame is one entry of the evaluator's in-flight call trace, pushed
// on entry to evaluate and popped on successful return.
type TraceFrame struct {
	Kind tree.Kind
	Tag  string
	Span tree.Span
}

// Throw renders the unhandled-exception diagnostic: a header, a one-line
// kind-parameterised description, then a trace frame per in-flight
// evaluation, each showing its span, a structural tag, and the
// corresponding source slice.
func (e *Err) Throw(source string, trace []TraceFrame) string {
	var b strings.Builder
	b.WriteString("----------------------------------- AN UNHANDLED EXCEPTION HAS OCCURRED! --------\n")
	fmt.Fprintf(&b, "%s\n", e.Error())
	b.WriteString("---------------------------------------------------------------------------------\n")
	for _, frame := range trace {
		start, end := frame.Span.Start, frame.Span.End
		slice := ""
		if start >= 0 && end <= len(source) && start <= end {
			slice = source[start:end]
		}
		fmt.Fprintf(&b, "[-] (%d, %d)----(%s)-> %s\n", start, end, frame.Tag, slice)
	}
	return b.String()
}

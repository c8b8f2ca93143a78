// Package eval implements Kylu's tree-walking evaluator and its module
// import mechanism. evaluate dispatches on a Tree's Kind, mutating an
// Environment for bindings, spawning child scopes for blocks, applying
// operators, resolving symbols, performing calls, and iterating loops.
// A single *kenv.Environment is passed by pointer and mutated via
// PushNamespace/PopScope as evaluation enters and leaves nested scopes.
package eval

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/azhaoli/kylu/kenv"
	"github.com/azhaoli/kylu/kerr"
	"github.com/azhaoli/kylu/namespace"
	"github.com/azhaoli/kylu/parser"
	"github.com/azhaoli/kylu/stdlib"
	"github.com/azhaoli/kylu/tree"
)

// FileLoader reads a source file's contents for the `ext` import builtin.
// The evaluator never touches the filesystem directly; this narrow seam
// is supplied by the outer collaborator (cmd/kylu, internal/repl).
type FileLoader func(path string) (string, error)

// DiagnosticSink reports an unhandled error inside an imported module.
// Import failures of this kind are reported but do not abort the host
// evaluation; they are handed off here instead of being printed directly
// with fmt/os, keeping the core filesystem- and stderr-free.
type DiagnosticSink func(message string)

// Evaluator holds one run's Environment plus its injected collaborators.
type Evaluator struct {
	env  *kenv.Environment
	load FileLoader
	diag DiagnosticSink
}

// New creates an Evaluator with a fresh Environment.
func New(load FileLoader, diag DiagnosticSink) *Evaluator {
	return &Evaluator{env: kenv.New(), load: load, diag: diag}
}

// Env exposes the run's Environment, used by callers for diagnostics
// (Trace) and REPL directives (Global, Import).
func (e *Evaluator) Env() *kenv.Environment {
	return e.env
}

// Run evaluates a parsed program's top-level statements directly against
// the current scope, without the scope push/pop a nested Field block gets
// from dispatch. A top-level program and a `{...}` block share a Kind
// (Field) but not a scoping rule: a top-level binding like `x <- 1 + 2 * 3`
// must land in the global namespace, so the statements here run directly
// against e.env.Top() rather than a clone that gets discarded when the
// block exits.
func (e *Evaluator) Run(program *tree.Tree) (*tree.Tree, *kerr.Err) {
	result := tree.NewVoid()
	for _, stmt := range program.Children {
		v, err := e.Evaluate(stmt)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

// Evaluate dispatches on t's Kind. It satisfies stdlib.Host so the
// built-in dispatcher can evaluate call arguments without importing this
// package.
func (e *Evaluator) Evaluate(t *tree.Tree) (*tree.Tree, *kerr.Err) {
	e.env.PushTrace(t)
	result, err := e.dispatch(t)
	if err != nil {
		return nil, err
	}
	e.env.PopTrace()
	return result, nil
}

func (e *Evaluator) dispatch(t *tree.Tree) (*tree.Tree, *kerr.Err) {
	switch t.Kind {
	case tree.OperatorExpression:
		return e.operExprEval(t)
	case tree.Field:
		return e.evalScope(e.env.Top().Clone(), t)
	case tree.List:
		return e.evalCollection(t.Children[0])
	case tree.Parenthesis:
		wrapped, err := e.evalCollection(t.Children[0])
		if err != nil {
			return nil, err
		}
		return wrapped.Children[0].Children[0], nil
	case tree.Call:
		return e.callEval(t)
	case tree.If:
		return e.ifEval(t)
	case tree.Loop:
		return e.loopEval(t)
	case tree.Combinator:
		name, _ := t.Children[0].ID()
		return nil, kerr.New(kerr.CustomError, t, fmt.Sprintf("cannot invoke %q combinator, no target specified", name))
	case tree.Symbol:
		if t.Text == "[!]" {
			return e.env.Top().AsInstance("<ident>"), nil
		}
		if v, err := e.env.Import.Get(t); err == nil {
			return v, nil
		}
		return e.env.Top().Get(t)
	default:
		return t, nil
	}
}

// evalCollection evaluates tree's children in order, wrapping the results
// as a List[Field[...]]. Used both for List literals and (via its inner
// Field) for evaluating a Call's argument list.
func (e *Evaluator) evalCollection(t *tree.Tree) (*tree.Tree, *kerr.Err) {
	evaluated := make([]*tree.Tree, len(t.Children))
	for i, branch := range t.Children {
		v, err := e.Evaluate(branch)
		if err != nil {
			return nil, err
		}
		evaluated[i] = v
	}
	return tree.New(tree.List, t.Span, []*tree.Tree{tree.New(tree.Field, tree.Span{}, evaluated)}), nil
}

// evalScope pushes scope, evaluates body's children in order, stopping at
// the first error, and pops. The result is the last child's value, or
// Void for an empty body.
func (e *Evaluator) evalScope(scope *namespace.NameSpace, body *tree.Tree) (*tree.Tree, *kerr.Err) {
	e.env.PushNamespace(scope)
	defer e.env.PopScope()

	result := tree.NewVoid()
	for _, branch := range body.Children {
		v, err := e.Evaluate(branch)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

func externLink(depth int) *tree.Tree {
	return &tree.Tree{Kind: tree.ObjectInstance, Text: "<extern_link>", Children: []*tree.Tree{tree.NewNumber(float32(depth))}}
}

func (e *Evaluator) operExprEval(t *tree.Tree) (*tree.Tree, *kerr.Err) {
	if t.Text == "<-" {
		value, err := e.Evaluate(t.Children[1])
		if err != nil {
			return nil, err
		}
		key, kerrv := kerr.ValidateType(t.Children[0], "Symbol")
		if kerrv != nil {
			return nil, kerrv
		}
		return e.env.Top().Set(key, value), nil
	}
	if t.Text == ":" {
		return e.objectExprEval(t)
	}

	lOp, err := e.Evaluate(t.Children[0])
	if err != nil {
		return nil, err
	}
	rOp, err := e.Evaluate(t.Children[1])
	if err != nil {
		return nil, err
	}
	op := t.Text

	switch {
	case lOp.Kind == tree.Number && rOp.Kind == tree.Number:
		n1, n2 := lOp.Num, rOp.Num
		switch op {
		case "+":
			return tree.NewNumber(n1 + n2), nil
		case "-":
			return tree.NewNumber(n1 - n2), nil
		case "*":
			return tree.NewNumber(n1 * n2), nil
		case "/":
			return tree.NewNumber(n1 / n2), nil
		case "%":
			return tree.NewNumber(float32(math.Mod(float64(n1), float64(n2)))), nil
		case "^":
			return tree.NewNumber(float32(math.Pow(float64(n1), float64(n2)))), nil
		case ">":
			return tree.NewBoolean(n1 > n2), nil
		case "<":
			return tree.NewBoolean(n1 < n2), nil
		case "=":
			return tree.NewBoolean(n1 == n2), nil
		default:
			return nil, kerr.NewTyped(kerr.UndefinedOperation, t, op, "Number", "Number")
		}
	case lOp.Kind == tree.String && rOp.Kind == tree.String:
		if op == "=" {
			return tree.NewBoolean(lOp.Text == rOp.Text), nil
		}
		return nil, kerr.NewTyped(kerr.UndefinedOperation, t, op, "String", "String")
	case lOp.Kind == tree.List || rOp.Kind == tree.List:
		list, other := lOp, rOp
		if lOp.Kind != tree.List {
			list, other = rOp, lOp
		}
		switch op {
		case "=":
			return tree.NewBoolean(list.Equal(other)), nil
		case "+":
			elems := append(append([]*tree.Tree{}, list.Children[0].Children...), other)
			return tree.New(tree.List, tree.Span{}, []*tree.Tree{tree.New(tree.Field, tree.Span{}, elems)}), nil
		default:
			return nil, kerr.NewTyped(kerr.UndefinedOperation, t, op, "List", other.Type())
		}
	default:
		return nil, kerr.NewTyped(kerr.UndefinedOperation, t, op, lOp.Type(), rOp.Type())
	}
}

// objectExprEval implements the `:` operator. The LHS is always evaluated
// first, eagerly; only the Combinator/expect branch is allowed to inspect
// its error instead of propagating it immediately.
func (e *Evaluator) objectExprEval(t *tree.Tree) (*tree.Tree, *kerr.Err) {
	expr := t.Children[1]
	operand, operandErr := e.Evaluate(t.Children[0])

	if expr.Kind == tree.Combinator {
		head, headKind := expr.Children[0].ID()
		if head == "expect" && headKind == "Symbol" {
			return e.handleError(operand, operandErr, expr)
		}
		if operandErr != nil {
			return nil, operandErr
		}
		return e.applyCombinator(operand, expr)
	}

	if operandErr != nil {
		return nil, operandErr
	}
	object := operand

	switch object.Kind {
	case tree.List:
		return e.indexList(object, expr)
	case tree.ObjectInstance:
		return e.accessInstance(object, expr)
	default:
		return nil, kerr.NewTyped(kerr.UndefinedOperation, object, ":", object.Type(), expr.Type())
	}
}

// handleError implements the `expect` combinator: on success, pass the
// value through; on an Error whose kind-tag matches the combinator's
// first call-Field element by name, bind the caught error and evaluate
// the handler body; any other error, and any signal, re-raises.
func (e *Evaluator) handleError(operand *tree.Tree, operandErr *kerr.Err, expr *tree.Tree) (*tree.Tree, *kerr.Err) {
	if operandErr == nil {
		return operand, nil
	}
	wantName, _ := expr.Children[2].Children[0].ID()
	if operandErr.Kind.IsSignal() || !operandErr.Matches(wantName) {
		return nil, operandErr
	}
	caught, toNodeErr := operandErr.ToNode()
	if toNodeErr != nil {
		return nil, operandErr
	}

	binderField, err := kerr.ValidateArgsLen(expr.Children[1], 1)
	if err != nil {
		return nil, err
	}
	binder, err := kerr.ValidateType(binderField.Children[0], "Symbol")
	if err != nil {
		return nil, err
	}

	scope := e.env.Top().Clone()
	scope.Set(binder, caught)
	body := expr.Children[2].Children[1]
	bodyField := body
	if body.Kind != tree.Field {
		bodyField = tree.New(tree.Field, body.Span, []*tree.Tree{body})
	}
	return e.evalScope(scope, bodyField)
}

// applyCombinator implements the non-expect Combinator form: bind the
// evaluated object under the combinator's parameter name, then evaluate
// its call-Field's children directly as a Call. Ported as-is from
// object_expr_eval's generic branch, including reusing the call-Field's
// own two children as the synthesized Call's [callee, args] pair rather
// than wrapping expr.Children[2] itself as the callee.
func (e *Evaluator) applyCombinator(object *tree.Tree, expr *tree.Tree) (*tree.Tree, *kerr.Err) {
	binderField, err := kerr.ValidateArgsLen(expr.Children[1], 1)
	if err != nil {
		return nil, err
	}
	binder, err := kerr.ValidateType(binderField.Children[0], "Symbol")
	if err != nil {
		return nil, err
	}

	scope := e.env.Top().Clone()
	scope.Set(binder, object)
	e.env.PushNamespace(scope)
	defer e.env.PopScope()

	call := tree.New(tree.Call, expr.Span, expr.Children[2].Children)
	return e.callEval(call)
}

// indexList implements `list : [i]` (element access) and
// `list : [start, stop]` (slicing): `[10,20,30] : [0,2]` -> `[10,20]`.
// The start/stop bounds come from the evaluated index List; the
// bounds check is against the sliced list's own element count.
func (e *Evaluator) indexList(object, expr *tree.Tree) (*tree.Tree, *kerr.Err) {
	sliceList, err := e.Evaluate(expr)
	if err != nil {
		return nil, err
	}
	slice := sliceList.Children[0]
	array := object.Children[0]

	switch len(slice.Children) {
	case 1:
		index, ierr := kerr.IntoNumber(slice.Children[0])
		if ierr != nil {
			return nil, ierr
		}
		if int(index) < 0 || int(index) >= len(array.Children) {
			return nil, kerr.NewTyped(kerr.IndexError, object, fmt.Sprintf("%g", index), object.Decode(), "")
		}
		return array.Children[int(index)], nil
	case 2:
		start, serr := kerr.IntoNumber(slice.Children[0])
		if serr != nil {
			return nil, serr
		}
		stop, serr := kerr.IntoNumber(slice.Children[1])
		if serr != nil {
			return nil, serr
		}
		if start > stop || start < 0 || int(stop) > len(array.Children) {
			return nil, kerr.NewTyped(kerr.IndexError, object, fmt.Sprintf("%g", start), object.Decode(), "")
		}
		return tree.New(tree.List, tree.Span{}, []*tree.Tree{tree.New(tree.Field, tree.Span{}, array.Children[int(start):int(stop)])}), nil
	default:
		return nil, kerr.NewTyped(kerr.IndexError, object, "2", object.Decode(), "")
	}
}

// accessInstance implements object-field/method access: it builds the
// instance's namespace (or, for the `<extern_link>` back-link form,
// reuses the caller's own namespace at the recorded depth), extends it
// with the current scope's bindings so the block can still see its
// surroundings, and evaluates expr as a block in that namespace.
func (e *Evaluator) accessInstance(object, expr *tree.Tree) (*tree.Tree, *kerr.Err) {
	instOf := object.Text
	operations := expr
	if operations.Kind != tree.Field {
		operations = tree.New(tree.Field, expr.Span, []*tree.Tree{expr})
	}

	var targetNS *namespace.NameSpace
	if instOf == "<extern_link>" {
		depth, err := kerr.IntoNumber(object.Children[0])
		if err != nil {
			return nil, err
		}
		targetNS = e.env.At(int(depth)).Clone()
	} else {
		ns, err := namespace.FromPairs(object.Children[0], object.Children[1])
		if err != nil {
			return nil, err
		}
		targetNS = ns
	}
	targetNS.Extend(e.env.Top())

	result, err := e.evalScope(targetNS, operations)
	if err != nil {
		if err.Kind == kerr.StopFunction {
			return err.Cause, nil
		}
		return nil, err
	}
	if result.Kind == tree.ObjectInstance && result.Text == "<ident>" {
		relabeled := result.Clone()
		relabeled.Text = instOf
		return relabeled, nil
	}
	return result, nil
}

// callEval implements Call evaluation: the built-in dispatcher is tried
// first; a non-Void result wins. Otherwise the callee must resolve to an
// ObjectDefinition, whose params are bound against the evaluated
// arguments in a fresh namespace carrying a `[@]` back-link to the
// caller's scope.
func (e *Evaluator) callEval(t *tree.Tree) (*tree.Tree, *kerr.Err) {
	stdlibResult, err := stdlib.Call(e, t)
	if err != nil {
		return nil, err
	}

	var result *tree.Tree
	var resultErr *kerr.Err
	if stdlibResult.Kind != tree.Void {
		result, resultErr = stdlibResult, nil
	} else {
		calleeVal, cerr := e.Evaluate(t.Children[0])
		if cerr != nil {
			return nil, cerr
		}
		object, verr := kerr.ValidateType(calleeVal, "Object")
		if verr != nil {
			return nil, verr
		}
		argsList, aerr := e.evalCollection(t.Children[1])
		if aerr != nil {
			return nil, aerr
		}
		funcNS, nerr := namespace.FromPairs(object.Children[0], argsList.Children[0])
		if nerr != nil {
			return nil, nerr
		}
		funcNS.Set(tree.NewSymbol("[@]"), externLink(e.env.Depth))
		result, resultErr = e.evalScope(funcNS, object.Children[1])
	}

	if resultErr != nil {
		if resultErr.Kind == kerr.StopFunction {
			return resultErr.Cause, nil
		}
		return nil, resultErr
	}
	if result.Kind == tree.ObjectInstance && result.Text == "<ident>" {
		label := "<anon>"
		if name, kind := t.Children[0].ID(); kind == "Symbol" {
			label = name
		}
		relabeled := result.Clone()
		relabeled.Text = label
		return relabeled, nil
	}
	return result, nil
}

func (e *Evaluator) ifEval(t *tree.Tree) (*tree.Tree, *kerr.Err) {
	for _, clause := range t.Children {
		cond, err := e.Evaluate(clause.Children[0])
		if err != nil {
			return nil, err
		}
		truth, berr := kerr.IntoBoolean(cond)
		if berr != nil {
			return nil, berr
		}
		if truth {
			return e.evalScope(e.env.Top().Clone(), clause.Children[1])
		}
		if len(clause.Children) == 3 {
			return e.evalScope(e.env.Top().Clone(), clause.Children[2])
		}
	}
	return tree.NewVoid(), nil
}

func (e *Evaluator) loopEval(t *tree.Tree) (*tree.Tree, *kerr.Err) {
	switch t.Text {
	case "cond":
		condition := t.Children[0].Children[0]
		body := t.Children[1]
		var collected []*tree.Tree
		for {
			condVal, err := e.Evaluate(condition)
			if err != nil {
				return nil, err
			}
			truth, berr := kerr.IntoBoolean(condVal)
			if berr != nil {
				return nil, berr
			}
			if !truth {
				break
			}
			v, ierr := e.evalScope(e.env.Top().Clone(), body)
			if ierr != nil {
				if ierr.Kind == kerr.StopIteration {
					break
				}
				if ierr.Kind == kerr.ResetIteration {
					continue
				}
				return nil, ierr
			}
			collected = append(collected, v)
		}
		return tree.New(tree.List, t.Span, []*tree.Tree{tree.New(tree.Field, t.Span, collected)}), nil

	case "iter":
		index := t.Children[0].Children[0]
		iterableVal, err := e.Evaluate(t.Children[0].Children[1])
		if err != nil {
			return nil, err
		}
		iterable, verr := kerr.ValidateType(iterableVal, "List")
		if verr != nil {
			return nil, verr
		}

		var body *tree.Tree
		if len(t.Children) == 2 {
			body = t.Children[len(t.Children)-1]
		} else {
			body = tree.New(tree.Field, t.Span, []*tree.Tree{tree.NewLoop("iter", t.Span, t.Children[1:])})
		}

		loopScope := e.env.Top().Clone()
		var collected []*tree.Tree
		for _, elem := range iterable.Children[0].Children {
			loopScope.Set(index, elem)
			v, ierr := e.evalScope(loopScope.Clone(), body)
			if ierr != nil {
				if ierr.Kind == kerr.StopIteration {
					break
				}
				if ierr.Kind == kerr.ResetIteration {
					continue
				}
				return nil, ierr
			}
			collected = append(collected, v)
		}
		return tree.New(tree.List, t.Span, []*tree.Tree{tree.New(tree.Field, tree.Span{}, collected)}), nil

	default:
		return t, nil
	}
}

// Import loads path via the injected FileLoader, parses and evaluates it
// in a fresh Environment, and installs its global namespace into this
// Evaluator's import namespace under the file's basename (extension
// stripped). A file that cannot be read is a FileError; a parse or
// evaluation failure inside an otherwise-readable file is reported
// through DiagnosticSink and swallowed rather than aborting the host.
//
// Import returns the installed module instance rather than Void on
// success: callEval's stdlib-result check treats a literal Void return as
// its "not a builtin" sentinel, so a real builtin that succeeds must
// never return Void on the success path.
func (e *Evaluator) Import(path string) (*tree.Tree, *kerr.Err) {
	source, ioErr := e.load(path)
	if ioErr != nil || source == "" {
		return nil, kerr.New(kerr.FileError, tree.NewVoid(), path)
	}

	guest := New(e.load, e.diag)
	program, parseErr := parser.Parse(source)
	if parseErr != nil {
		e.diag(parseErr.Throw(source, nil))
		return tree.NewBoolean(false), nil
	}
	if _, evalErr := guest.Run(program); evalErr != nil {
		e.diag(evalErr.Throw(source, guest.env.Trace))
		return tree.NewBoolean(false), nil
	}

	base := filepath.Base(path)
	label := strings.TrimSuffix(base, filepath.Ext(base))
	module := guest.env.Global().AsInstance("<extension>")
	e.env.Import.Set(tree.NewSymbol(label), module)
	return module, nil
}

// Package stdlib implements Kylu's fixed built-in function table: the
// dispatcher every Call first consults before falling back to a
// user-defined Object of the same name. A symbol name the table doesn't
// recognize returns Void with a nil error so the caller can fall through
// to its own namespace lookup.
package stdlib

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/azhaoli/kylu/kerr"
	"github.com/azhaoli/kylu/tree"
)

// Host is the minimal surface stdlib needs from its caller: evaluating an
// already-parsed argument subtree in the caller's current scope, and
// importing a source file as a freshly evaluated module. Defined here
// rather than imported from package eval to avoid an eval<->stdlib import
// cycle, since eval imports stdlib to dispatch builtins. Go's structural
// typing lets *eval.Evaluator satisfy Host without either package naming
// the other.
type Host interface {
	Evaluate(t *tree.Tree) (*tree.Tree, *kerr.Err)
	Import(path string) (*tree.Tree, *kerr.Err)
}

// Call evaluates a Call tree's arguments left to right, then dispatches
// the callee's symbol name against the builtin table. Returning a Void
// with a nil error signals "not a builtin" to the caller, which should
// then resolve the callee as a user-defined value.
func Call(host Host, callTree *tree.Tree) (*tree.Tree, *kerr.Err) {
	name, kind := callTree.Children[0].ID()
	if kind != "Symbol" {
		return tree.NewVoid(), nil
	}

	rawArgs := callTree.Children[1].Children
	evaluated := make([]*tree.Tree, len(rawArgs))
	for i, branch := range rawArgs {
		v, err := host.Evaluate(branch)
		if err != nil {
			return nil, err
		}
		evaluated[i] = v
	}
	args := tree.New(tree.Field, tree.Span{}, evaluated)

	switch name {
	case "write":
		return write(args), nil
	case "prompt":
		if _, err := kerr.ValidateArgsLen(args, 1); err != nil {
			return nil, err
		}
		return prompt(args)
	case "out":
		if _, err := kerr.ValidateArgsLen(args, 1); err != nil {
			return nil, err
		}
		return nil, kerr.New(kerr.StopFunction, args.Children[0], "")
	case "stop":
		if _, err := kerr.ValidateArgsLen(args, 1); err != nil {
			return nil, err
		}
		return nil, kerr.New(kerr.StopIteration, args.Children[0], "")
	case "reset":
		if _, err := kerr.ValidateArgsLen(args, 0); err != nil {
			return nil, err
		}
		return nil, kerr.New(kerr.ResetIteration, tree.NewVoid(), "")
	case "type":
		if _, err := kerr.ValidateArgsLen(args, 1); err != nil {
			return nil, err
		}
		return tree.NewString(args.Children[0].Type()), nil
	case "span":
		if _, err := kerr.ValidateArgsLen(args, 2); err != nil {
			return nil, err
		}
		return span(args)
	case "toNumber":
		if _, err := kerr.ValidateArgsLen(args, 1); err != nil {
			return nil, err
		}
		return toNumber(args.Children[0])
	case "intersect":
		if _, err := kerr.ValidateArgsLen(args, 2); err != nil {
			return nil, err
		}
		return intersect(args)
	case "len":
		if _, err := kerr.ValidateArgsLen(args, 1); err != nil {
			return nil, err
		}
		return length(args)
	case "in":
		if _, err := kerr.ValidateArgsLen(args, 2); err != nil {
			return nil, err
		}
		return contains(args)
	case "ext":
		if _, err := kerr.ValidateArgsLen(args, 1); err != nil {
			return nil, err
		}
		return ext(host, args)
	default:
		return tree.NewVoid(), nil
	}
}

// write concatenates every argument's Decode()d text, translating the
// String literal "$n" to a newline, prints it to stdout, and returns the
// evaluated arguments unchanged as a Field.
func write(args *tree.Tree) *tree.Tree {
	var b strings.Builder
	for _, a := range args.Children {
		if a.Kind == tree.String && a.Text == "$n" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(a.Decode())
	}
	fmt.Print(b.String())
	return args
}

var stdin = bufio.NewReader(os.Stdin)

// prompt writes its one argument as a line prefix, reads a line from
// stdin, and returns it as a String.
func prompt(args *tree.Tree) (*tree.Tree, *kerr.Err) {
	label, err := kerr.IntoString(args.Children[0])
	if err != nil {
		return nil, err
	}
	fmt.Print(label)
	line, _ := stdin.ReadString('\n')
	return tree.NewString(strings.TrimRight(line, "\r\n")), nil
}

// span builds the N-dimensional coordinate list between two same-length
// List bounds: span([0], [3]) -> [0, 1, 2]; span([0,0], [2,2]) -> every
// (x, y) pair in that box, each as its own List. Recurses one bound
// dimension at a time and cross-joins the result with the remaining
// dimensions.
func span(args *tree.Tree) (*tree.Tree, *kerr.Err) {
	arr1T, err := kerr.ValidateType(args.Children[0], "List")
	if err != nil {
		return nil, err
	}
	arr2T, err := kerr.ValidateType(args.Children[1], "List")
	if err != nil {
		return nil, err
	}
	return spanRec(arr1T, arr2T)
}

func spanRec(arr1T, arr2T *tree.Tree) (*tree.Tree, *kerr.Err) {
	arr1 := arr1T.Children[0]
	arr2 := arr2T.Children[0]
	if len(arr1.Children) != len(arr2.Children) {
		return nil, kerr.NewTyped(kerr.IndexError, arr1, fmt.Sprintf("%d", len(arr2.Children)), arr1.Decode(), "")
	}

	x1f, err := kerr.IntoNumber(arr1.Children[0])
	if err != nil {
		return nil, err
	}
	x2f, err := kerr.IntoNumber(arr2.Children[0])
	if err != nil {
		return nil, err
	}
	x1, x2 := int(x1f), int(x2f)

	var rangeX []*tree.Tree
	for v := x1; v < x2; v++ {
		rangeX = append(rangeX, tree.NewNumber(float32(v)))
	}

	if len(arr1.Children) == 1 {
		return listOf(tree.New(tree.Field, tree.Span{}, rangeX)), nil
	}

	inner1 := listOf(tree.New(tree.Field, tree.Span{}, arr1.Children[1:]))
	inner2 := listOf(tree.New(tree.Field, tree.Span{}, arr2.Children[1:]))
	rangeYList, err := spanRec(inner1, inner2)
	if err != nil {
		return nil, err
	}
	rangeY := rangeYList.Children[0].Children

	var result []*tree.Tree
	for _, x := range rangeX {
		for _, y := range rangeY {
			elem := []*tree.Tree{x}
			if y.Kind == tree.List {
				elem = append(elem, y.Children[0].Children...)
			} else {
				elem = append(elem, y)
			}
			result = append(result, listOf(tree.New(tree.Field, tree.Span{}, elem)))
		}
	}
	return listOf(tree.New(tree.Field, tree.Span{}, result)), nil
}

func listOf(field *tree.Tree) *tree.Tree {
	return tree.New(tree.List, tree.Span{}, []*tree.Tree{field})
}

var numberLiteral = regexp.MustCompile(`^-?[0-9]+\.?[0-9]*$`)

// toNumber converts a Boolean, String, or pass-through Number to Number.
func toNumber(target *tree.Tree) (*tree.Tree, *kerr.Err) {
	switch target.Kind {
	case tree.Number:
		return target, nil
	case tree.Boolean:
		if target.Bool {
			return tree.NewNumber(1), nil
		}
		return tree.NewNumber(0), nil
	case tree.String:
		if !numberLiteral.MatchString(target.Text) {
			return nil, kerr.NewTyped(kerr.Conversion, target, target.Text, "String", "Number")
		}
		n, _ := strconv.ParseFloat(target.Text, 32)
		return tree.NewNumber(float32(n)), nil
	default:
		return nil, kerr.NewTyped(kerr.Conversion, target, target.Decode(), target.Type(), "Number")
	}
}

// intersect returns the List of elements present (by structural equality)
// in both argument Lists, order and duplicates following the first list.
func intersect(args *tree.Tree) (*tree.Tree, *kerr.Err) {
	aT, err := kerr.ValidateType(args.Children[0], "List")
	if err != nil {
		return nil, err
	}
	bT, err := kerr.ValidateType(args.Children[1], "List")
	if err != nil {
		return nil, err
	}
	var shared []*tree.Tree
	for _, elemA := range aT.Children[0].Children {
		for _, elemB := range bT.Children[0].Children {
			if elemA.Equal(elemB) {
				shared = append(shared, elemA)
				break
			}
		}
	}
	return listOf(tree.New(tree.Field, tree.Span{}, shared)), nil
}

// length returns a List's element count as a Number.
func length(args *tree.Tree) (*tree.Tree, *kerr.Err) {
	t, err := kerr.ValidateType(args.Children[0], "List")
	if err != nil {
		return nil, err
	}
	return tree.NewNumber(float32(len(t.Children[0].Children))), nil
}

// contains reports whether a value is structurally equal to any element
// of a List.
func contains(args *tree.Tree) (*tree.Tree, *kerr.Err) {
	search := args.Children[0]
	targetT, err := kerr.ValidateType(args.Children[1], "List")
	if err != nil {
		return nil, err
	}
	for _, elem := range targetT.Children[0].Children {
		if search.Equal(elem) {
			return tree.NewBoolean(true), nil
		}
	}
	return tree.NewBoolean(false), nil
}

// ext loads a Kylu source file as an extension module. The file-reading
// and module-evaluation policy lives entirely behind Host.Import, so
// stdlib itself never touches the filesystem.
func ext(host Host, args *tree.Tree) (*tree.Tree, *kerr.Err) {
	path, err := kerr.IntoString(args.Children[0])
	if err != nil {
		return nil, err
	}
	return host.Import(path)
}

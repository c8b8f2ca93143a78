package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhaoli/kylu/kerr"
	"github.com/azhaoli/kylu/parser"
	"github.com/azhaoli/kylu/tree"
)

func newEvaluator() *Evaluator {
	return New(nil, func(string) {})
}

func run(t *testing.T, e *Evaluator, source string) *tree.Tree {
	t.Helper()
	program, perr := parser.Parse(source)
	require.Nil(t, perr, "unexpected parse error")
	result, eerr := e.Run(program)
	require.Nil(t, eerr, "unexpected eval error")
	return result
}

func TestArithmeticPrecedenceAndAssignment(t *testing.T) {
	e := newEvaluator()
	got := run(t, e, "x <- 1 + 2 * 3")
	assert.True(t, got.Equal(tree.NewNumber(7)))

	x, err := e.Env().Global().Get(tree.NewSymbol("x"))
	require.Nil(t, err)
	assert.True(t, x.Equal(tree.NewNumber(7)), "x must land in the global namespace")
}

func TestPercentIsFloatingPointRemainder(t *testing.T) {
	e := newEvaluator()
	got := run(t, e, "7.5 % 2")
	assert.True(t, got.Equal(tree.NewNumber(1.5)))
}

func TestCaretIsExponentiation(t *testing.T) {
	e := newEvaluator()
	got := run(t, e, "2 ^ 10")
	assert.True(t, got.Equal(tree.NewNumber(1024)))
}

func TestStringEquality(t *testing.T) {
	e := newEvaluator()
	got := run(t, e, `'abc' = 'abc'`)
	assert.True(t, got.Equal(tree.NewBoolean(true)))
}

func TestListElementAccess(t *testing.T) {
	e := newEvaluator()
	got := run(t, e, "[10, 20, 30] : [1]")
	assert.True(t, got.Equal(tree.NewNumber(20)))
}

func TestListSliceMatchesWorkedExample(t *testing.T) {
	// [10, 20, 30] : [0, 2] -> List [10, 20].
	e := newEvaluator()
	got := run(t, e, "[10, 20, 30] : [0, 2]")
	want, perr := parser.Parse("[10, 20]")
	require.Nil(t, perr)
	wantVal, eerr := e.Run(want)
	require.Nil(t, eerr)
	assert.True(t, got.Equal(wantVal), "got %s", got.Show())
}

func TestListSliceRejectsOutOfRangeStop(t *testing.T) {
	e := newEvaluator()
	program, perr := parser.Parse("[10, 20, 30] : [0, 4]")
	require.Nil(t, perr)
	_, eerr := e.Run(program)
	require.NotNil(t, eerr)
	assert.Equal(t, kerr.IndexError, eerr.Kind)
}

func TestListIndexOutOfRange(t *testing.T) {
	e := newEvaluator()
	program, perr := parser.Parse("[10, 20, 30] : [9]")
	require.Nil(t, perr)
	_, eerr := e.Run(program)
	require.NotNil(t, eerr)
	assert.Equal(t, kerr.IndexError, eerr.Kind)
}

func TestListConcatenation(t *testing.T) {
	e := newEvaluator()
	got := run(t, e, "[1, 2] + 3")
	want, _ := parser.Parse("[1, 2, 3]")
	wantVal, _ := e.Run(want)
	assert.True(t, got.Equal(wantVal))
}

func TestIfTakesFirstTrueClause(t *testing.T) {
	e := newEvaluator()
	got := run(t, e, "if (False) {1} {2}")
	assert.True(t, got.Equal(tree.NewNumber(2)))

	got = run(t, e, "if (True) {1} {2}")
	assert.True(t, got.Equal(tree.NewNumber(1)))
}

func TestIfChainStopsAtFirstMatch(t *testing.T) {
	e := newEvaluator()
	got := run(t, e, "if (False) {1} if (True) {2} if (True) {3}")
	assert.True(t, got.Equal(tree.NewNumber(2)))
}

func TestLoopCondAccumulatesAndMutatesOuterBinding(t *testing.T) {
	e := newEvaluator()
	run(t, e, "x <- 0")
	got := run(t, e, "loop cond (x < 3) { x <- x + 1 }")

	x, err := e.Env().Global().Get(tree.NewSymbol("x"))
	require.Nil(t, err)
	assert.True(t, x.Equal(tree.NewNumber(3)))

	want, _ := parser.Parse("[1, 2, 3]")
	wantVal, _ := e.Run(want)
	assert.True(t, got.Equal(wantVal), "got %s", got.Show())
}

func TestLoopCondStopEndsIterationEarly(t *testing.T) {
	e := newEvaluator()
	run(t, e, "x <- 0")
	got := run(t, e, "loop cond (x < 10) { x <- x + 1 if (x = 3) { stop(x) } x }")
	want, _ := parser.Parse("[1, 2]")
	wantVal, _ := e.Run(want)
	assert.True(t, got.Equal(wantVal), "got %s", got.Show())
}

func TestLoopIterCollectsElementsWithoutLeakingIndex(t *testing.T) {
	e := newEvaluator()
	got := run(t, e, "loop iter (i, [1, 2, 3]) { i }")
	want, _ := parser.Parse("[1, 2, 3]")
	wantVal, _ := e.Run(want)
	assert.True(t, got.Equal(wantVal), "got %s", got.Show())

	_, err := e.Env().Global().Get(tree.NewSymbol("i"))
	require.NotNil(t, err, "loop index must not leak into the enclosing scope")
	assert.Equal(t, kerr.VoidReference, err.Kind)
}

func TestLoopIterMutatesPreExistingOuterBinding(t *testing.T) {
	e := newEvaluator()
	run(t, e, "total <- 0")
	run(t, e, "loop iter (n, [1, 2, 3]) { total <- total + n }")

	total, err := e.Env().Global().Get(tree.NewSymbol("total"))
	require.Nil(t, err)
	assert.True(t, total.Equal(tree.NewNumber(6)))
}

func TestObjectDefinitionAndCall(t *testing.T) {
	e := newEvaluator()
	run(t, e, "double <- obj (n) {n * 2}")
	got := run(t, e, "double(5)")
	assert.True(t, got.Equal(tree.NewNumber(10)))
}

func TestObjectOutSignalUnwindsToCallBoundary(t *testing.T) {
	e := newEvaluator()
	run(t, e, "early <- obj (n) { if (n < 0) { out('negative') } n }")
	got := run(t, e, "early(-3)")
	assert.True(t, got.Equal(tree.NewString("negative")))

	got = run(t, e, "early(3)")
	assert.True(t, got.Equal(tree.NewNumber(3)))
}

func TestExpectCombinatorCatchesMatchingVoidReference(t *testing.T) {
	e := newEvaluator()
	got := run(t, e, "y : expect(e)(VoidReference, 0)")
	assert.True(t, got.Equal(tree.NewNumber(0)))
}

func TestExpectCombinatorPassesThroughOnSuccess(t *testing.T) {
	e := newEvaluator()
	run(t, e, "y <- 7")
	got := run(t, e, "y : expect(e)(VoidReference, 0)")
	assert.True(t, got.Equal(tree.NewNumber(7)))
}

func TestExpectCombinatorBindsCaughtErrorKind(t *testing.T) {
	e := newEvaluator()
	got := run(t, e, "y : expect(e)(VoidReference, e)")
	assert.True(t, got.Equal(tree.NewString("VoidReference")))
}

func TestExpectCombinatorReraisesOnKindMismatch(t *testing.T) {
	e := newEvaluator()
	program, perr := parser.Parse("(1 + 'a') : expect(e)(VoidReference, 0)")
	require.Nil(t, perr)
	_, eerr := e.Run(program)
	require.NotNil(t, eerr)
	assert.Equal(t, kerr.UndefinedOperation, eerr.Kind)
}

func TestSelfReferenceReflectsCurrentScope(t *testing.T) {
	e := newEvaluator()
	run(t, e, "x <- 5")
	got := run(t, e, "[!]")
	require.Equal(t, tree.ObjectInstance, got.Kind)
	assert.Equal(t, "<ident>", got.Text)
}

func TestCombinatorWithoutTargetIsCustomError(t *testing.T) {
	e := newEvaluator()
	program, perr := parser.Parse("expect(e)(VoidReference, 0)")
	require.Nil(t, perr)
	_, eerr := e.Run(program)
	require.NotNil(t, eerr)
	assert.Equal(t, kerr.CustomError, eerr.Kind)
}

func TestImportInstallsGuestGlobalsUnderBasenameLabel(t *testing.T) {
	files := map[string]string{"lib.ky": "answer <- 42"}
	e := New(func(path string) (string, error) {
		src, ok := files[path]
		if !ok {
			return "", assertNotFoundError{path}
		}
		return src, nil
	}, func(string) {})

	got := run(t, e, "ext('lib.ky')")
	require.Equal(t, tree.ObjectInstance, got.Kind)
	assert.Equal(t, "<extension>", got.Text)

	module, err := e.Env().Import.Get(tree.NewSymbol("lib"))
	require.Nil(t, err)
	require.Equal(t, tree.ObjectInstance, module.Kind)
	assert.Equal(t, "<extension>", module.Text)
}

type assertNotFoundError struct{ path string }

func (a assertNotFoundError) Error() string { return "not found: " + a.path }

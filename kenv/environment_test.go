package kenv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhaoli/kylu/namespace"
	"github.com/azhaoli/kylu/tree"
)

func TestNewStartsWithOneGlobalNamespaceAtDepthZero(t *testing.T) {
	e := New()
	assert.Equal(t, 0, e.Depth)
	assert.Same(t, e.Top(), e.Global())
	assert.Len(t, e.Data, 1)
}

func TestPushScopeClonesTopAndSharesExistingBindings(t *testing.T) {
	e := New()
	e.Top().Set(tree.NewSymbol("x"), tree.NewNumber(1))
	e.PushScope()
	assert.Equal(t, 1, e.Depth)

	e.Top().Set(tree.NewSymbol("x"), tree.NewNumber(2))
	e.PopScope()
	got, err := e.Top().Get(tree.NewSymbol("x"))
	require.Nil(t, err)
	assert.True(t, got.Equal(tree.NewNumber(2)), "update to a pre-existing binding must survive pop")
}

func TestPushScopeDiscardsNewBindingsOnPop(t *testing.T) {
	e := New()
	e.PushScope()
	e.Top().Set(tree.NewSymbol("y"), tree.NewNumber(9))
	e.PopScope()
	_, err := e.Top().Get(tree.NewSymbol("y"))
	require.NotNil(t, err, "a binding introduced after push must not survive pop")
}

func TestPopScopeNeverShrinksBelowOneNamespace(t *testing.T) {
	e := New()
	e.PopScope()
	assert.Equal(t, 0, e.Depth)
	assert.Len(t, e.Data, 1)
}

func TestPushNamespaceInstallsAnIndependentLayer(t *testing.T) {
	e := New()
	fresh := namespace.New()
	fresh.Set(tree.NewSymbol("n"), tree.NewNumber(42))
	depth := e.PushNamespace(fresh)
	assert.Equal(t, 1, depth)
	assert.Same(t, fresh, e.Top())

	_, err := e.Global().Get(tree.NewSymbol("n"))
	require.NotNil(t, err, "a pushed namespace's bindings must not leak into the caller's global scope")
}

func TestAtReturnsTheNamespaceAtAGivenDepth(t *testing.T) {
	e := New()
	e.PushScope()
	e.PushScope()
	assert.Same(t, e.Global(), e.At(0))
	assert.Same(t, e.Top(), e.At(2))
}

func TestPushAndPopTraceIsLastInFirstOut(t *testing.T) {
	e := New()
	e.PushTrace(tree.New(tree.OperatorExpression, tree.Span{Start: 0, End: 1}, nil))
	e.PushTrace(tree.New(tree.Call, tree.Span{Start: 2, End: 3}, nil))
	require.Len(t, e.Trace, 2)
	assert.Equal(t, tree.Call, e.Trace[1].Kind)

	e.PopTrace()
	require.Len(t, e.Trace, 1)
	assert.Equal(t, tree.OperatorExpression, e.Trace[0].Kind)

	e.PopTrace()
	e.PopTrace()
	assert.Len(t, e.Trace, 0, "popping an empty trace must not panic or underflow")
}

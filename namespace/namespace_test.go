package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhaoli/kylu/kerr"
	"github.com/azhaoli/kylu/tree"
)

func TestSetThenGetRoundTrips(t *testing.T) {
	ns := New()
	ns.Set(tree.NewSymbol("x"), tree.NewNumber(1))
	got, err := ns.Get(tree.NewSymbol("x"))
	require.Nil(t, err)
	assert.True(t, got.Equal(tree.NewNumber(1)))
}

func TestGetOnMissingKeyReturnsVoidReference(t *testing.T) {
	ns := New()
	_, err := ns.Get(tree.NewSymbol("missing"))
	require.NotNil(t, err)
	assert.Equal(t, kerr.VoidReference, err.Kind)
}

func TestGetSuggestsClosestBoundName(t *testing.T) {
	ns := New()
	ns.Set(tree.NewSymbol("counter"), tree.NewNumber(0))
	_, err := ns.Get(tree.NewSymbol("countr"))
	require.NotNil(t, err)
	assert.Equal(t, "counter", err.A)
}

func TestCloneSharesExistingCellsButNotNewAppends(t *testing.T) {
	parent := New()
	parent.Set(tree.NewSymbol("x"), tree.NewNumber(1))
	child := parent.Clone()

	// Writing through an existing binding is visible in both: shared cell.
	child.Set(tree.NewSymbol("x"), tree.NewNumber(2))
	got, err := parent.Get(tree.NewSymbol("x"))
	require.Nil(t, err)
	assert.True(t, got.Equal(tree.NewNumber(2)), "update to an existing binding must be visible in the parent")

	// A brand new binding in the child must not leak into the parent.
	child.Set(tree.NewSymbol("y"), tree.NewNumber(9))
	_, err = parent.Get(tree.NewSymbol("y"))
	require.NotNil(t, err, "a new binding introduced in a clone must not appear in the original")
	assert.Equal(t, kerr.VoidReference, err.Kind)
}

func TestFromPairsRejectsMismatchedLengths(t *testing.T) {
	keys := tree.New(tree.Field, tree.Span{}, []*tree.Tree{tree.NewSymbol("a"), tree.NewSymbol("b")})
	values := tree.New(tree.Field, tree.Span{}, []*tree.Tree{tree.NewNumber(1)})
	_, err := FromPairs(keys, values)
	require.NotNil(t, err)
	assert.Equal(t, kerr.ArgMismatch, err.Kind)
}

func TestExtendUpsertsWithoutDuplicatingExistingKeys(t *testing.T) {
	a := New()
	a.Set(tree.NewSymbol("x"), tree.NewNumber(1))
	b := New()
	b.Set(tree.NewSymbol("x"), tree.NewNumber(2))
	b.Set(tree.NewSymbol("y"), tree.NewNumber(3))

	a.Extend(b)
	assert.Len(t, a.Keys(), 2)
	got, _ := a.Get(tree.NewSymbol("x"))
	assert.True(t, got.Equal(tree.NewNumber(2)))
}

func TestAsInstanceCapturesKeysAndValuesInOrder(t *testing.T) {
	ns := New()
	ns.Set(tree.NewSymbol("a"), tree.NewNumber(1))
	ns.Set(tree.NewSymbol("b"), tree.NewNumber(2))
	inst := ns.AsInstance("<ident>")

	require.Equal(t, tree.ObjectInstance, inst.Kind)
	assert.Equal(t, "<ident>", inst.Text)
	require.Len(t, inst.Children[0].Children, 2)
	assert.Equal(t, "a", inst.Children[0].Children[0].Text)
	assert.True(t, inst.Children[1].Children[1].Equal(tree.NewNumber(2)))
}

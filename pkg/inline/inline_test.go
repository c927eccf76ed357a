package inline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lemonberrylabs/splice/pkg/resolve"
	"github.com/lemonberrylabs/splice/pkg/tree"
	"github.com/lemonberrylabs/splice/pkg/types"
)

// plusOne is fn(x: int) => x + 1.
func plusOne() *tree.Lambda {
	x := tree.Param("x", types.TypeInt)
	return tree.Func(types.TypeInt, tree.Add(x, tree.Int(1)), x)
}

func TestExpandWithoutSplicesIsIdentity(t *testing.T) {
	x := tree.Param("x", types.TypeInt)
	roots := []tree.Node{
		tree.Int(3),
		x,
		tree.Mul(tree.Add(x, tree.Int(1)), tree.Int(2)),
		tree.CallOf("math.max", x, tree.Int(0)),
		tree.If(tree.Bool(true), tree.ListOf(x), tree.Null()),
		tree.Func(types.TypeInt, tree.Neg(x), x),
	}
	for _, root := range roots {
		out, err := Expand(root)
		require.NoError(t, err)
		require.True(t, tree.Equal(root, out), "%s became %s", tree.Format(root), tree.Format(out))
	}
}

func TestExpandSingleLevel(t *testing.T) {
	out, err := Expand(tree.Use(tree.FuncConst(plusOne()), tree.Int(3)))
	require.NoError(t, err)
	require.True(t, tree.Equal(tree.Add(tree.Int(3), tree.Int(1)), out), tree.Format(out))
}

func TestExpandTransitive(t *testing.T) {
	f := plusOne()
	y := tree.Param("y", types.TypeInt)
	g := tree.Func(types.TypeInt, tree.Mul(tree.Use(tree.FuncConst(f), y), tree.Int(2)), y)

	out, err := Expand(tree.Use(tree.FuncConst(g), tree.Int(3)))
	require.NoError(t, err)
	require.Equal(t, "(3 + 1) * 2", tree.Format(out))
	require.Zero(t, tree.CountSplices(out))
}

func TestExpandSpliceInArgument(t *testing.T) {
	f := plusOne()
	out, err := Expand(tree.Use(tree.FuncConst(f), tree.Use(tree.FuncConst(f), tree.Int(1))))
	require.NoError(t, err)
	require.Equal(t, "1 + 1 + 1", tree.Format(out))
}

func TestExpandArityMismatch(t *testing.T) {
	x := tree.Param("x", types.TypeAny)
	y := tree.Param("y", types.TypeAny)
	two := tree.Func(types.TypeAny, tree.Add(x, y), x, y)

	_, err := Expand(tree.Use(tree.FuncConst(two), tree.Int(1)))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrArityMismatch), err.Error())

	var ee *types.ExprError
	require.True(t, errors.As(err, &ee))
	require.Contains(t, ee.Message, "2 parameter(s)")
	require.Contains(t, ee.Message, "1 argument(s)")
}

func TestExpandInvalidCallee(t *testing.T) {
	x := tree.Param("x", types.TypeAny)
	tests := []struct {
		name   string
		callee tree.Node
		cause  error
	}{
		{"method call", tree.CallOf("getF"), ErrUnsupportedExpressionShape},
		{"parameter", x, ErrUnsupportedExpressionShape},
		{"not a function", tree.Int(7), nil},
		{"missing static", tree.Static("nope"), types.Sentinel(types.TagKeyError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Expand(tree.Use(tt.callee, tree.Int(1)))
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidCalleeExpression), err.Error())
			if tt.cause != nil {
				require.True(t, errors.Is(err, tt.cause), err.Error())
			}
		})
	}
}

func TestExpandEmptySplice(t *testing.T) {
	_, err := Expand(&tree.Call{Method: tree.UseMethod})
	require.True(t, errors.Is(err, ErrInvalidCalleeExpression))
}

func TestExpandScoping(t *testing.T) {
	// g = fn(x) => use(f, x * 10), f = fn(x) => x + 1; both parameters are named x.
	f := plusOne()
	gx := tree.Param("x", types.TypeInt)
	g := tree.Func(types.TypeInt, tree.Use(tree.FuncConst(f), tree.Mul(gx, tree.Int(10))), gx)

	out, err := Expand(tree.Use(tree.FuncConst(g), tree.Int(2)))
	require.NoError(t, err)
	require.Equal(t, "2 * 10 + 1", tree.Format(out))
}

func TestExpandArgumentReferencesOuterParameter(t *testing.T) {
	// Outer parameters not bound by any splice survive in the output.
	outer := tree.Param("n", types.TypeInt)
	root := tree.Func(types.TypeInt, tree.Use(tree.FuncConst(plusOne()), outer), outer)

	out, err := New().ExpandLambda(root)
	require.NoError(t, err)
	require.Same(t, outer, out.Params[0])
	require.Equal(t, types.TypeInt, out.Result)
	bin := out.Body.(*tree.Binary)
	require.Same(t, outer, bin.Left)
}

func TestExpandDoesNotMutateInput(t *testing.T) {
	f := plusOne()
	y := tree.Param("y", types.TypeInt)
	g := tree.Func(types.TypeInt, tree.Mul(tree.Use(tree.FuncConst(f), y), tree.Int(2)), y)
	root := tree.Use(tree.FuncConst(g), tree.Int(3))

	rootBefore, fBefore, gBefore := tree.Format(root), tree.Format(f), tree.Format(g)
	_, err := Expand(root)
	require.NoError(t, err)
	_, err = Expand(root)
	require.NoError(t, err)
	require.Equal(t, rootBefore, tree.Format(root))
	require.Equal(t, fBefore, tree.Format(f))
	require.Equal(t, gBefore, tree.Format(g))
}

func TestExpandDuplicateParameterLastBindingWins(t *testing.T) {
	x := tree.Param("x", types.TypeAny)
	dup := tree.Func(types.TypeAny, x, x, x)

	out, err := Expand(tree.Use(tree.FuncConst(dup), tree.Int(1), tree.Int(2)))
	require.NoError(t, err)
	require.True(t, tree.Equal(tree.Int(2), out))
}

func TestExpandSharedArgumentSubtree(t *testing.T) {
	// The rewritten argument is reused at every occurrence of the parameter.
	x := tree.Param("x", types.TypeAny)
	twice := tree.Func(types.TypeAny, tree.Add(x, x), x)

	out, err := Expand(tree.Use(tree.FuncConst(twice), tree.CallOf("rand")))
	require.NoError(t, err)
	bin := out.(*tree.Binary)
	require.Same(t, bin.Left, bin.Right)
}

func TestExpandStatics(t *testing.T) {
	lib := types.NewOrderedMap()
	lib.Set("inc", tree.FuncValue(plusOne()))
	e := New(WithStatics(resolve.StaticMap{"lib": types.NewMap(lib)}))

	out, err := e.Expand(tree.Use(tree.Field(tree.Static("lib"), "inc"), tree.Int(4)))
	require.NoError(t, err)
	require.Equal(t, "4 + 1", tree.Format(out))
}

func TestExpandRecursionLimit(t *testing.T) {
	// loop = fn(x) => use(loop, x)
	x := tree.Param("x", types.TypeAny)
	loop := tree.Func(types.TypeAny, nil, x)
	loop.Body = tree.Use(tree.Static("loop"), x)
	statics := resolve.StaticMap{"loop": tree.FuncValue(loop)}

	_, err := New(WithStatics(statics), WithMaxDepth(16)).Expand(tree.Use(tree.Static("loop"), tree.Int(1)))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrRecursion), err.Error())
	require.True(t, errors.Is(err, types.Sentinel(types.TagResourceLimitError)))
}

func TestExpandDepthWithinLimit(t *testing.T) {
	// A chain of n nested splices succeeds with a limit of n.
	const n = 8
	var body tree.Node = tree.Int(0)
	for i := 0; i < n; i++ {
		body = tree.Use(tree.FuncConst(plusOne()), body)
	}
	out, err := New(WithMaxDepth(n)).Expand(body)
	require.NoError(t, err)
	require.Zero(t, tree.CountSplices(out))
}

func TestExpandMalformedTree(t *testing.T) {
	out, err := Expand(&tree.Binary{Op: tree.OpAdd, Left: nil, Right: tree.Int(1)})
	require.Nil(t, out)
	var ee *types.ExprError
	require.True(t, errors.As(err, &ee), "expected *types.ExprError, got %v", err)
	require.ErrorIs(t, err, ErrUnsupportedExpressionShape)
}

func TestExpandErrorReturnsNoTree(t *testing.T) {
	out, err := Expand(tree.Add(tree.Int(1), tree.Use(tree.Int(2))))
	require.Error(t, err)
	require.Nil(t, out)
}

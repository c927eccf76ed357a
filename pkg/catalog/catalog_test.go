package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lemonberrylabs/splice/pkg/inline"
	"github.com/lemonberrylabs/splice/pkg/store"
	"github.com/lemonberrylabs/splice/pkg/tree"
	"github.com/lemonberrylabs/splice/pkg/types"
)

const parent = "projects/p/locations/l"

const pricing = `
constants:
  factor: 3
functions:
  inc:
    params: [x]
    body: x + 1
main:
  params: [n]
  body: use(inc, n) * factor
`

func TestCreateAndRun(t *testing.T) {
	c := New(store.New())

	rec, err := c.Create(parent, "pricing", pricing, "demo")
	require.NoError(t, err)
	require.Equal(t, parent+"/libraries/pricing", rec.Name)

	run, err := c.Run(context.Background(), rec.Name, types.NewInt(4))
	require.NoError(t, err)
	require.Equal(t, store.RunSucceeded, run.State)
	require.Equal(t, "15", run.Result)
	require.Equal(t, "4", run.Argument)
	require.Equal(t, "fn(n) => (n + 1) * factor", run.Expanded)
	require.Equal(t, rec.RevisionID, run.LibraryRevisionID)

	runs := c.Store().ListRuns(rec.Name)
	require.Len(t, runs, 1)
}

func TestRunFailureIsRecorded(t *testing.T) {
	c := New(store.New())
	rec, err := c.Create(parent, "div", "main:\n  params: [x]\n  body: x / 0", "")
	require.NoError(t, err)

	run, err := c.Run(context.Background(), rec.Name, types.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, store.RunFailed, run.State)
	require.NotNil(t, run.Error)
	require.Contains(t, run.Error.Payload, "ZeroDivisionError")
}

func TestRunUnserializableResult(t *testing.T) {
	c := New(store.New())
	rec, err := c.Create(parent, "fnval", "main: fn(x) => x", "")
	require.NoError(t, err)

	run, err := c.Run(context.Background(), rec.Name, types.Null)
	require.NoError(t, err)
	require.Equal(t, store.RunFailed, run.State)
}

func TestCreateInvalid(t *testing.T) {
	c := New(store.New())

	_, err := c.Create(parent, "bad", "main:\n  body: 1 +", "")
	require.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = c.Create(parent, "bad", "steps: []", "")
	require.ErrorIs(t, err, ErrInvalidDefinition)

	require.Empty(t, c.Store().ListLibraries(parent))
}

func TestUpdateRecompiles(t *testing.T) {
	c := New(store.New())
	rec, err := c.Create(parent, "pricing", pricing, "")
	require.NoError(t, err)

	_, err = c.Update(rec.Name, "main: 7", "")
	require.NoError(t, err)

	run, err := c.Run(context.Background(), rec.Name, types.Null)
	require.NoError(t, err)
	require.Equal(t, "7", run.Result)

	_, err = c.Update(rec.Name, "main: [", "")
	require.ErrorIs(t, err, ErrInvalidDefinition)

	updated, err := c.Update(rec.Name, "", "new description")
	require.NoError(t, err)
	require.Equal(t, "main: 7", updated.SourceCode)
	require.Equal(t, "new description", updated.Description)

	_, err = c.Update(parent+"/libraries/missing", "main: 1", "")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLibraryCompilesStoredSource(t *testing.T) {
	s := store.New()
	rec, err := s.CreateLibrary(parent, "direct", pricing, "")
	require.NoError(t, err)

	c := New(s)
	lib, got, err := c.Library(rec.Name)
	require.NoError(t, err)
	require.Equal(t, rec.RevisionID, got.RevisionID)
	require.NotNil(t, lib.Main())

	again, _, err := c.Library(rec.Name)
	require.NoError(t, err)
	require.Same(t, lib, again)
}

func TestExpand(t *testing.T) {
	c := New(store.New())
	rec, err := c.Create(parent, "pricing", pricing, "")
	require.NoError(t, err)

	n, err := c.Expand(rec.Name, "use(inc, use(inc, 2))")
	require.NoError(t, err)
	require.Equal(t, "2 + 1 + 1", tree.Format(n))

	_, err = c.Expand(rec.Name, "use(inc)")
	require.ErrorIs(t, err, ErrInvalidExpression)
	require.ErrorIs(t, err, inline.ErrArityMismatch)

	_, err = c.Expand(rec.Name, "1 +")
	require.ErrorIs(t, err, ErrInvalidExpression)

	_, err = c.Expand(parent+"/libraries/missing", "1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDelete(t *testing.T) {
	c := New(store.New())
	rec, err := c.Create(parent, "pricing", pricing, "")
	require.NoError(t, err)

	require.NoError(t, c.Delete(rec.Name))
	_, _, err = c.Library(rec.Name)
	require.True(t, errors.Is(err, store.ErrNotFound))
	require.ErrorIs(t, c.Delete(rec.Name), store.ErrNotFound)
}

func TestRunRespectsMaxDepth(t *testing.T) {
	src := `
functions:
  a:
    params: [x]
    body: x + 1
  b:
    params: [x]
    body: use(a, x) * 2
main:
  params: [x]
  body: use(b, x)
`
	c := New(store.New(), WithMaxDepth(2))
	rec, err := c.Create(parent, "deep", src, "")
	require.NoError(t, err)

	run, err := c.Run(context.Background(), rec.Name, types.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, store.RunSucceeded, run.State)
	require.Equal(t, "4", run.Result)
}

// Package catalog ties stored library documents to their compiled form and
// runs their entry points, recording each run in the store. The REST, gRPC
// and web front ends all go through a Catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lemonberrylabs/splice/pkg/eval"
	"github.com/lemonberrylabs/splice/pkg/parser"
	"github.com/lemonberrylabs/splice/pkg/runtime"
	"github.com/lemonberrylabs/splice/pkg/stdlib"
	"github.com/lemonberrylabs/splice/pkg/store"
	"github.com/lemonberrylabs/splice/pkg/tree"
	"github.com/lemonberrylabs/splice/pkg/types"
)

var (
	// ErrInvalidDefinition wraps parse and compile errors of library source.
	ErrInvalidDefinition = errors.New("invalid library definition")

	// ErrInvalidExpression wraps syntax and expansion errors of ad hoc
	// expressions.
	ErrInvalidExpression = errors.New("invalid expression")
)

// Catalog is safe for concurrent use.
type Catalog struct {
	store    *store.Store
	funcs    eval.Functions
	maxDepth int

	mu       sync.RWMutex
	compiled map[string]*entry
}

type entry struct {
	revision string
	lib      *runtime.Library
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithFunctions sets the built-in registry runs use. The default is
// stdlib.NewRegistry().
func WithFunctions(f eval.Functions) Option {
	return func(c *Catalog) { c.funcs = f }
}

// WithMaxDepth bounds splice expansion and invocation depth for every
// library compiled by the catalog.
func WithMaxDepth(n int) Option {
	return func(c *Catalog) { c.maxDepth = n }
}

// New creates a catalog over s.
func New(s *store.Store, opts ...Option) *Catalog {
	c := &Catalog{
		store:    s,
		compiled: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.funcs == nil {
		c.funcs = stdlib.NewRegistry()
	}
	return c
}

// Store returns the underlying store.
func (c *Catalog) Store() *store.Store { return c.store }

// Compile parses and compiles source without storing it.
func (c *Catalog) Compile(source string) (*runtime.Library, error) {
	src, err := parser.Parse([]byte(source))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	lib, err := runtime.Compile(src, runtime.WithMaxDepth(c.maxDepth))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	return lib, nil
}

// Create validates source and stores it as parent/libraries/libraryID.
func (c *Catalog) Create(parent, libraryID, source, description string) (*store.Library, error) {
	lib, err := c.Compile(source)
	if err != nil {
		return nil, err
	}
	rec, err := c.store.CreateLibrary(parent, libraryID, source, description)
	if err != nil {
		return nil, err
	}
	c.remember(rec, lib)
	return rec, nil
}

// Update replaces the source of a stored library. An empty source keeps the
// current one and only updates the description.
func (c *Catalog) Update(name, source, description string) (*store.Library, error) {
	var lib *runtime.Library
	if source == "" {
		cur, err := c.store.GetLibrary(name)
		if err != nil {
			return nil, err
		}
		source = cur.SourceCode
	} else {
		var err error
		if lib, err = c.Compile(source); err != nil {
			return nil, err
		}
	}
	rec, err := c.store.UpdateLibrary(name, source, description)
	if err != nil {
		return nil, err
	}
	if lib != nil {
		c.remember(rec, lib)
	}
	return rec, nil
}

// Delete removes a stored library.
func (c *Catalog) Delete(name string) error {
	if err := c.store.DeleteLibrary(name); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.compiled, name)
	c.mu.Unlock()
	return nil
}

// Library returns the stored record of name and its compiled form,
// compiling it on first use after each revision.
func (c *Catalog) Library(name string) (*runtime.Library, *store.Library, error) {
	rec, err := c.store.GetLibrary(name)
	if err != nil {
		return nil, nil, err
	}

	c.mu.RLock()
	e, ok := c.compiled[name]
	c.mu.RUnlock()
	if ok && e.revision == rec.RevisionID {
		return e.lib, rec, nil
	}

	lib, err := c.Compile(rec.SourceCode)
	if err != nil {
		return nil, nil, err
	}
	c.remember(rec, lib)
	return lib, rec, nil
}

func (c *Catalog) remember(rec *store.Library, lib *runtime.Library) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compiled[rec.Name] = &entry{revision: rec.RevisionID, lib: lib}
}

// Expand parses expression in the static scope of library name and expands
// its splice points.
func (c *Catalog) Expand(name, expression string) (tree.Node, error) {
	lib, _, err := c.Library(name)
	if err != nil {
		return nil, err
	}
	n, err := lib.Expand(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExpression, err)
	}
	return n, nil
}

// Run evaluates the main function of library name with args and records the
// run. Evaluation failures are recorded on the returned run, not returned as
// errors.
func (c *Catalog) Run(ctx context.Context, name string, args types.Value) (*store.Run, error) {
	lib, _, err := c.Library(name)
	if err != nil {
		return nil, err
	}
	run, err := c.store.CreateRun(name, args)
	if err != nil {
		return nil, err
	}

	result, err := runtime.NewEngine(lib, c.funcs).Run(ctx, args)
	if err != nil {
		err = c.store.FailRun(run.Name, err)
	} else {
		expanded := ""
		if result.Expanded != nil {
			expanded = tree.Format(result.Expanded)
		}
		err = c.store.CompleteRun(run.Name, result.Value, expanded)
	}
	if err != nil {
		return nil, err
	}
	return c.store.GetRun(run.Name)
}

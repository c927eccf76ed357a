// Package store provides in-memory storage for libraries and runs.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lemonberrylabs/splice/pkg/types"
)

// Lookup failures. Returned errors wrap one of these.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotActive     = errors.New("not active")
)

// LibraryState represents the state of a stored library.
type LibraryState string

const (
	LibraryActive LibraryState = "ACTIVE"
)

// RunState represents the state of a run of a library's main function.
type RunState string

const (
	RunActive    RunState = "ACTIVE"
	RunSucceeded RunState = "SUCCEEDED"
	RunFailed    RunState = "FAILED"
	RunCancelled RunState = "CANCELLED"
)

// Library represents a stored library document.
type Library struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	State       LibraryState      `json:"state"`
	RevisionID  string            `json:"revisionId"`
	CreateTime  time.Time         `json:"createTime"`
	UpdateTime  time.Time         `json:"updateTime"`
	SourceCode  string            `json:"sourceContents"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// Run represents one evaluation of a library's main function.
type Run struct {
	Name              string    `json:"name"`
	State             RunState  `json:"state"`
	Argument          string    `json:"argument,omitempty"`
	Result            string    `json:"result,omitempty"`
	Expanded          string    `json:"expanded,omitempty"`
	Error             *RunError `json:"error,omitempty"`
	StartTime         time.Time `json:"startTime"`
	EndTime           time.Time `json:"endTime,omitempty"`
	LibraryRevisionID string    `json:"libraryRevisionId"`
}

// RunError represents the error of a failed run.
type RunError struct {
	Payload string `json:"payload"`
	Context string `json:"context,omitempty"`
}

// Store is a thread-safe in-memory storage for libraries and runs. Returned
// records are copies; callers may keep them without holding locks.
type Store struct {
	mu        sync.RWMutex
	libraries map[string]*Library
	runs      map[string]*Run

	// Counters for generating unique IDs
	runCounter int64
	revCounter int64
}

// New creates a new empty store.
func New() *Store {
	return &Store{
		libraries: make(map[string]*Library),
		runs:      make(map[string]*Run),
	}
}

// LibraryName joins a parent ("projects/p/locations/l") and a library ID.
func LibraryName(parent, libraryID string) string {
	return fmt.Sprintf("%s/libraries/%s", parent, libraryID)
}

// CreateLibrary stores a new library document.
func (s *Store) CreateLibrary(parent, libraryID, sourceCode, description string) (*Library, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := LibraryName(parent, libraryID)
	if _, exists := s.libraries[name]; exists {
		return nil, fmt.Errorf("library '%s' %w", name, ErrAlreadyExists)
	}

	now := time.Now()
	lib := &Library{
		Name:        name,
		Description: description,
		State:       LibraryActive,
		RevisionID:  s.nextRevision(),
		CreateTime:  now,
		UpdateTime:  now,
		SourceCode:  sourceCode,
	}
	s.libraries[name] = lib
	return lib.clone(), nil
}

// GetLibrary retrieves a library by its full name.
func (s *Store) GetLibrary(name string) (*Library, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lib, ok := s.libraries[name]
	if !ok {
		return nil, fmt.Errorf("library '%s' %w", name, ErrNotFound)
	}
	return lib.clone(), nil
}

// ListLibraries returns all libraries under a parent, sorted by name.
func (s *Store) ListLibraries(parent string) []*Library {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Library
	prefix := parent + "/libraries/"
	for name, lib := range s.libraries {
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			result = append(result, lib.clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// UpdateLibrary replaces a library's source code and assigns a new
// revision. An empty description keeps the current one.
func (s *Store) UpdateLibrary(name, sourceCode, description string) (*Library, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lib, ok := s.libraries[name]
	if !ok {
		return nil, fmt.Errorf("library '%s' %w", name, ErrNotFound)
	}

	lib.SourceCode = sourceCode
	if description != "" {
		lib.Description = description
	}
	lib.RevisionID = s.nextRevision()
	lib.UpdateTime = time.Now()

	return lib.clone(), nil
}

// DeleteLibrary removes a library. Its runs are kept.
func (s *Store) DeleteLibrary(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.libraries[name]; !ok {
		return fmt.Errorf("library '%s' %w", name, ErrNotFound)
	}
	delete(s.libraries, name)
	return nil
}

// nextRevision must be called with s.mu held.
func (s *Store) nextRevision() string {
	s.revCounter++
	return fmt.Sprintf("%06d-000", s.revCounter)
}

// CreateRun creates an active run record for a library.
func (s *Store) CreateRun(libraryName string, argument types.Value) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lib, ok := s.libraries[libraryName]
	if !ok {
		return nil, fmt.Errorf("library '%s' %w", libraryName, ErrNotFound)
	}

	s.runCounter++
	name := fmt.Sprintf("%s/runs/run-%d", libraryName, s.runCounter)

	var argStr string
	if !argument.IsNull() {
		b, err := argument.MarshalJSON()
		if err != nil {
			return nil, err
		}
		argStr = string(b)
	}

	run := &Run{
		Name:              name,
		State:             RunActive,
		Argument:          argStr,
		StartTime:         time.Now(),
		LibraryRevisionID: lib.RevisionID,
	}
	s.runs[name] = run
	return run.clone(), nil
}

// GetRun retrieves a run by name.
func (s *Store) GetRun(name string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[name]
	if !ok {
		return nil, fmt.Errorf("run '%s' %w", name, ErrNotFound)
	}
	return run.clone(), nil
}

// ListRuns returns all runs of a library, oldest first.
func (s *Store) ListRuns(libraryName string) []*Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Run
	prefix := libraryName + "/runs/"
	for name, run := range s.runs {
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			result = append(result, run.clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].StartTime.Before(result[j].StartTime)
		}
		return runNumber(result[i].Name) < runNumber(result[j].Name)
	})
	return result
}

// runNumber extracts the counter suffix of a run name.
func runNumber(name string) int64 {
	var n int64
	if i := strings.LastIndex(name, "/run-"); i >= 0 {
		fmt.Sscanf(name[i+len("/run-"):], "%d", &n)
	}
	return n
}

// CompleteRun marks a run as succeeded with a result and, optionally, the
// expanded form of the function that produced it.
func (s *Store) CompleteRun(name string, result types.Value, expanded string) error {
	b, err := result.MarshalJSON()
	if err != nil {
		return s.FailRun(name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run, err := s.activeRun(name)
	if err != nil {
		return err
	}
	run.State = RunSucceeded
	run.EndTime = time.Now()
	run.Result = string(b)
	run.Expanded = expanded
	return nil
}

// FailRun marks a run as failed with an error. Expression errors are stored
// as their JSON map form.
func (s *Store) FailRun(name string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, lookupErr := s.activeRun(name)
	if lookupErr != nil {
		return lookupErr
	}

	run.State = RunFailed
	run.EndTime = time.Now()

	payload := err.Error()
	var ee *types.ExprError
	if errors.As(err, &ee) {
		if b, mErr := ee.ToValue().MarshalJSON(); mErr == nil {
			payload = string(b)
		}
	}
	run.Error = &RunError{Payload: payload}
	return nil
}

// CancelRun marks an active run as cancelled.
func (s *Store) CancelRun(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, err := s.activeRun(name)
	if err != nil {
		return err
	}
	run.State = RunCancelled
	run.EndTime = time.Now()
	return nil
}

// activeRun must be called with s.mu held.
func (s *Store) activeRun(name string) (*Run, error) {
	run, ok := s.runs[name]
	if !ok {
		return nil, fmt.Errorf("run '%s' %w", name, ErrNotFound)
	}
	if run.State != RunActive {
		return nil, fmt.Errorf("run '%s' is %w (state: %s)", name, ErrNotActive, run.State)
	}
	return run, nil
}

func (l *Library) clone() *Library {
	c := *l
	if l.Labels != nil {
		c.Labels = make(map[string]string, len(l.Labels))
		for k, v := range l.Labels {
			c.Labels[k] = v
		}
	}
	return &c
}

func (r *Run) clone() *Run {
	c := *r
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	return &c
}

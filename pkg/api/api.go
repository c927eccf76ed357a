// Package api implements the REST API for deploying libraries, expanding
// expressions against them and running their main functions. Resource
// names follow the Google Cloud style
// projects/{project}/locations/{location}/libraries/{library}.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/lemonberrylabs/splice/pkg/catalog"
	"github.com/lemonberrylabs/splice/pkg/store"
	"github.com/lemonberrylabs/splice/pkg/tree"
	"github.com/lemonberrylabs/splice/pkg/types"
)

// MaxIDLength is the maximum length of a library ID.
const MaxIDLength = 128

var validLibraryID = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Server is the REST API server.
type Server struct {
	app     *fiber.App
	catalog *catalog.Catalog
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	accessLog bool
}

// WithAccessLog enables request logging.
func WithAccessLog() Option {
	return func(c *serverConfig) { c.accessLog = true }
}

// New creates a new API server.
func New(cat *catalog.Catalog, opts ...Option) *Server {
	var cfg serverConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	srv := &Server{catalog: cat}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})
	if cfg.accessLog {
		app.Use(logger.New())
	}

	const libraries = "/v1/projects/:project/locations/:location/libraries"

	// Libraries API
	app.Post(libraries, srv.createLibrary)
	app.Get(libraries, srv.listLibraries)
	app.Get(libraries+"/:library", srv.getLibrary)
	app.Patch(libraries+"/:library", srv.updateLibrary)
	app.Delete(libraries+"/:library", srv.deleteLibrary)
	app.Post(libraries+"/:library\\:expand", srv.expand)

	// Runs API
	app.Post(libraries+"/:library/runs", srv.createRun)
	app.Get(libraries+"/:library/runs", srv.listRuns)
	app.Get(libraries+"/:library/runs/:run", srv.getRun)
	app.Post(libraries+"/:library/runs/:run\\:cancel", srv.cancelRun)

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing and for
// mounting the web UI).
func (s *Server) App() *fiber.App {
	return s.app
}

// --- Library Handlers ---

type libraryRequest struct {
	SourceContents string            `json:"sourceContents"`
	Description    string            `json:"description"`
	Labels         map[string]string `json:"labels"`
}

func (s *Server) createLibrary(c *fiber.Ctx) error {
	libraryID := c.Query("libraryId")
	if libraryID == "" {
		return writeError(c, 400, "INVALID_ARGUMENT", "libraryId query parameter is required")
	}
	if !validLibraryID.MatchString(libraryID) || len(libraryID) > MaxIDLength {
		return writeError(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid libraryId %q", libraryID))
	}

	var req libraryRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if req.SourceContents == "" {
		return writeError(c, 400, "INVALID_ARGUMENT", "sourceContents is required")
	}

	lib, err := s.catalog.Create(buildParent(c), libraryID, req.SourceContents, req.Description)
	if err != nil {
		return errorResponse(c, err)
	}

	// The resource is returned directly: creation completes synchronously.
	return c.Status(200).JSON(libraryToJSON(lib))
}

func (s *Server) getLibrary(c *fiber.Ctx) error {
	lib, err := s.catalog.Store().GetLibrary(buildLibraryName(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(libraryToJSON(lib))
}

func (s *Server) listLibraries(c *fiber.Ctx) error {
	libraries := s.catalog.Store().ListLibraries(buildParent(c))

	items := make([]fiber.Map, len(libraries))
	for i, lib := range libraries {
		items[i] = libraryToJSON(lib)
	}

	return c.JSON(fiber.Map{
		"libraries": items,
	})
}

func (s *Server) updateLibrary(c *fiber.Ctx) error {
	var req libraryRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	lib, err := s.catalog.Update(buildLibraryName(c), req.SourceContents, req.Description)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"name":     fmt.Sprintf("projects/-/locations/-/operations/update-%s", c.Params("library")),
		"done":     true,
		"response": libraryToJSON(lib),
	})
}

func (s *Server) deleteLibrary(c *fiber.Ctx) error {
	if err := s.catalog.Delete(buildLibraryName(c)); err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"name": fmt.Sprintf("projects/-/locations/-/operations/delete-%s", c.Params("library")),
		"done": true,
	})
}

type expandRequest struct {
	Expression string `json:"expression"`
}

func (s *Server) expand(c *fiber.Ctx) error {
	var req expandRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if strings.TrimSpace(req.Expression) == "" {
		return writeError(c, 400, "INVALID_ARGUMENT", "expression is required")
	}

	n, err := s.catalog.Expand(buildLibraryName(c), req.Expression)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"source":   req.Expression,
		"expanded": tree.Format(n),
	})
}

// --- Run Handlers ---

type createRunRequest struct {
	Argument string `json:"argument"`
}

func (s *Server) createRun(c *fiber.Ctx) error {
	var req createRunRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return writeError(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	args, err := ParseArgument(req.Argument)
	if err != nil {
		return writeError(c, 400, "INVALID_ARGUMENT", err.Error())
	}

	run, err := s.catalog.Run(c.UserContext(), buildLibraryName(c), args)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(200).JSON(runToJSON(run))
}

func (s *Server) getRun(c *fiber.Ctx) error {
	run, err := s.catalog.Store().GetRun(buildRunName(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(runToJSON(run))
}

func (s *Server) listRuns(c *fiber.Ctx) error {
	runs := s.catalog.Store().ListRuns(buildLibraryName(c))

	items := make([]fiber.Map, len(runs))
	for i, run := range runs {
		items[i] = runToJSON(run)
	}

	return c.JSON(fiber.Map{
		"runs": items,
	})
}

func (s *Server) cancelRun(c *fiber.Ctx) error {
	name := buildRunName(c)
	if err := s.catalog.Store().CancelRun(name); err != nil {
		return errorResponse(c, err)
	}
	run, err := s.catalog.Store().GetRun(name)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(runToJSON(run))
}

// ParseArgument decodes a JSON run argument. The empty string is null.
func ParseArgument(argument string) (types.Value, error) {
	if argument == "" {
		return types.Null, nil
	}
	var raw interface{}
	if err := json.Unmarshal([]byte(argument), &raw); err != nil {
		return types.Null, fmt.Errorf("invalid argument JSON: %v", err)
	}
	return types.ValueFromJSON(raw), nil
}

// --- Directory Loading ---

// LoadDir loads all .yaml, .yml and .json library files from dir and
// deploys them. The file name (sans extension) becomes the library ID.
// Files that fail to parse are skipped with a warning.
func (s *Server) LoadDir(dir, project, location string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading libraries directory: %w", err)
	}

	parent := fmt.Sprintf("projects/%s/locations/%s", project, location)
	loaded := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}

		base := strings.TrimSuffix(name, ext)
		libraryID := strings.ToLower(base)

		if libraryID != base {
			log.Printf("Warning: lowercased library ID %q (from file %q)", libraryID, name)
		}

		if !validLibraryID.MatchString(libraryID) || len(libraryID) > MaxIDLength {
			log.Printf("Warning: skipping file %q, invalid library ID %q", name, libraryID)
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Printf("Warning: could not read %q: %v", name, err)
			continue
		}

		if _, err := s.catalog.Create(parent, libraryID, string(data), ""); err != nil {
			log.Printf("Warning: could not deploy %q: %v", name, err)
			continue
		}

		loaded++
		log.Printf("Loaded library %q from %s", libraryID, name)
	}

	log.Printf("Loaded %d library file(s) from %s", loaded, dir)
	return loaded, nil
}

// --- Helpers ---

// errorResponse maps store, catalog and expression errors to HTTP statuses.
func errorResponse(c *fiber.Ctx, err error) error {
	var ee *types.ExprError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return writeError(c, 404, "NOT_FOUND", err.Error())
	case errors.Is(err, store.ErrAlreadyExists):
		return writeError(c, 409, "ALREADY_EXISTS", err.Error())
	case errors.Is(err, store.ErrNotActive):
		return writeError(c, 400, "FAILED_PRECONDITION", err.Error())
	case errors.Is(err, catalog.ErrInvalidDefinition), errors.Is(err, catalog.ErrInvalidExpression):
		return writeError(c, 400, "INVALID_ARGUMENT", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return writeError(c, 499, "CANCELLED", err.Error())
	case errors.As(err, &ee):
		return writeError(c, 400, "INVALID_ARGUMENT", err.Error())
	}
	return writeError(c, 500, "INTERNAL", err.Error())
}

func writeError(c *fiber.Ctx, code int, status, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
			"status":  status,
		},
	})
}

func buildParent(c *fiber.Ctx) string {
	return fmt.Sprintf("projects/%s/locations/%s", c.Params("project"), c.Params("location"))
}

func buildLibraryName(c *fiber.Ctx) string {
	return store.LibraryName(buildParent(c), c.Params("library"))
}

func buildRunName(c *fiber.Ctx) string {
	return fmt.Sprintf("%s/runs/%s", buildLibraryName(c), c.Params("run"))
}

func libraryToJSON(lib *store.Library) fiber.Map {
	return fiber.Map{
		"name":           lib.Name,
		"description":    lib.Description,
		"state":          lib.State,
		"revisionId":     lib.RevisionID,
		"createTime":     lib.CreateTime.Format(time.RFC3339),
		"updateTime":     lib.UpdateTime.Format(time.RFC3339),
		"sourceContents": lib.SourceCode,
	}
}

func runToJSON(run *store.Run) fiber.Map {
	result := fiber.Map{
		"name":              run.Name,
		"state":             run.State,
		"startTime":         run.StartTime.Format(time.RFC3339),
		"libraryRevisionId": run.LibraryRevisionID,
	}

	if run.Argument != "" {
		result["argument"] = run.Argument
	}
	if run.Result != "" {
		result["result"] = run.Result
	}
	if run.Expanded != "" {
		result["expanded"] = run.Expanded
	}
	if run.Error != nil {
		result["error"] = fiber.Map{
			"payload": run.Error.Payload,
			"context": run.Error.Context,
		}
	}
	if !run.EndTime.IsZero() {
		result["endTime"] = run.EndTime.Format(time.RFC3339)
	}

	return result
}

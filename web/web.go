// Package web provides the embedded web UI: a dashboard of deployed
// libraries and recent runs, and per-library pages showing every function
// before and after splice expansion.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/splice/pkg/catalog"
	"github.com/lemonberrylabs/splice/pkg/store"
	"github.com/lemonberrylabs/splice/pkg/tree"
	"github.com/lemonberrylabs/splice/pkg/types"
)

//go:embed templates/*.html
var templateFS embed.FS

// Handler serves the web UI pages.
type Handler struct {
	catalog  *catalog.Catalog
	project  string
	location string
	funcMap  template.FuncMap
}

// pageData wraps all page-specific data with common fields.
type pageData struct {
	NavActive string
	Project   string
	Location  string
	Data      interface{}
}

// New creates a new web UI handler.
func New(cat *catalog.Catalog, project, location string) *Handler {
	return &Handler{
		catalog:  cat,
		project:  project,
		location: location,
		funcMap: template.FuncMap{
			"shortName":  shortName,
			"timeAgo":    timeAgo,
			"formatTime": formatTime,
			"duration":   duration,
			"stateClass": stateClass,
			"stateIcon":  stateIcon,
			"truncate":   truncate,
			"libraryID":  libraryID,
			"runID":      runID,
			"countLines": countLines,
		},
	}
}

func (h *Handler) render(c *fiber.Ctx, page string, navActive string, data interface{}) error {
	// Each page is parsed with the layout on its own so that the
	// "content" blocks of different pages do not collide.
	tmpl, err := template.New("").Funcs(h.funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
	if err != nil {
		return c.Status(500).SendString(fmt.Sprintf("template error: %v", err))
	}

	pd := pageData{
		NavActive: navActive,
		Project:   h.project,
		Location:  h.location,
		Data:      data,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, page, pd); err != nil {
		return c.Status(500).SendString(fmt.Sprintf("template error: %v", err))
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.Send(buf.Bytes())
}

// Register adds web UI routes to the Fiber app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/ui", h.dashboard)
	app.Get("/ui/libraries/:id", h.libraryDetail)
	app.Get("/ui/runs/:library/:run", h.runDetail)

	// Redirect root to UI
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/ui")
	})
}

func (h *Handler) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", h.project, h.location)
}

// --- Page Data Types ---

type dashboardContent struct {
	Libraries      []*libraryView
	RecentRuns     []*runView
	SucceededCount int
	FailedCount    int
}

type libraryView struct {
	*store.Library
	ID       string
	RunCount int
}

type runView struct {
	*store.Run
	LibraryID string
	RunID     string
}

type functionView struct {
	Name     string
	Source   string
	Expanded string
	Error    string
	Splices  int
	IsMain   bool
}

type constantView struct {
	Name  string
	Value string
}

type libraryDetailContent struct {
	Library   *store.Library
	ID        string
	Error     string
	Constants []constantView
	Functions []functionView
	Runs      []*runView
}

type runDetailContent struct {
	Run       *store.Run
	LibraryID string
	RunID     string
}

type notFoundContent struct {
	Message string
}

// --- Page Handlers ---

func (h *Handler) dashboard(c *fiber.Ctx) error {
	st := h.catalog.Store()
	libraries := st.ListLibraries(h.parent())

	sort.Slice(libraries, func(i, j int) bool {
		return libraries[i].UpdateTime.After(libraries[j].UpdateTime)
	})

	var views []*libraryView
	var allRuns []*runView
	var succeeded, failed int

	for _, lib := range libraries {
		runs := st.ListRuns(lib.Name)
		views = append(views, &libraryView{Library: lib, ID: libraryID(lib.Name), RunCount: len(runs)})
		for _, r := range runs {
			allRuns = append(allRuns, newRunView(r))
			switch r.State {
			case store.RunSucceeded:
				succeeded++
			case store.RunFailed:
				failed++
			}
		}
	}

	sort.SliceStable(allRuns, func(i, j int) bool {
		return allRuns[i].StartTime.After(allRuns[j].StartTime)
	})

	recent := allRuns
	if len(recent) > 10 {
		recent = recent[:10]
	}

	return h.render(c, "dashboard.html", "dashboard", dashboardContent{
		Libraries:      views,
		RecentRuns:     recent,
		SucceededCount: succeeded,
		FailedCount:    failed,
	})
}

func (h *Handler) libraryDetail(c *fiber.Ctx) error {
	id := c.Params("id")
	name := store.LibraryName(h.parent(), id)

	rec, err := h.catalog.Store().GetLibrary(name)
	if err != nil {
		return h.render(c.Status(404), "not_found.html", "", notFoundContent{
			Message: fmt.Sprintf("Library '%s' not found", id),
		})
	}

	content := libraryDetailContent{Library: rec, ID: id}

	lib, _, err := h.catalog.Library(name)
	if err != nil {
		content.Error = err.Error()
	} else {
		for _, cname := range lib.ConstantNames() {
			v, _ := lib.Constant(cname)
			content.Constants = append(content.Constants, constantView{Name: cname, Value: formatValue(v)})
		}
		for _, fn := range lib.Functions() {
			content.Functions = append(content.Functions, describeFunction(lib.Inliner().ExpandLambda, fn, fn == lib.Main()))
		}
	}

	runs := h.catalog.Store().ListRuns(name)
	for i := len(runs) - 1; i >= 0; i-- {
		content.Runs = append(content.Runs, newRunView(runs[i]))
	}

	return h.render(c, "library_detail.html", "libraries", content)
}

func (h *Handler) runDetail(c *fiber.Ctx) error {
	libID := c.Params("library")
	id := c.Params("run")
	name := fmt.Sprintf("%s/runs/%s", store.LibraryName(h.parent(), libID), id)

	run, err := h.catalog.Store().GetRun(name)
	if err != nil {
		return h.render(c.Status(404), "not_found.html", "", notFoundContent{
			Message: fmt.Sprintf("Run '%s' not found", id),
		})
	}

	return h.render(c, "run_detail.html", "libraries", runDetailContent{
		Run:       run,
		LibraryID: libID,
		RunID:     id,
	})
}

func describeFunction(expand func(*tree.Lambda) (*tree.Lambda, error), fn *tree.Lambda, isMain bool) functionView {
	v := functionView{
		Name:    fn.Name,
		Source:  tree.Format(fn),
		Splices: tree.CountSplices(fn),
		IsMain:  isMain,
	}
	expanded, err := expand(fn)
	if err != nil {
		v.Error = err.Error()
		return v
	}
	v.Expanded = tree.Format(expanded)
	return v
}

func newRunView(r *store.Run) *runView {
	return &runView{Run: r, LibraryID: libraryID(r.Name), RunID: runID(r.Name)}
}

func formatValue(v types.Value) string {
	b, err := v.MarshalJSON()
	if err != nil {
		return v.String()
	}
	return string(b)
}

// --- Template Helpers ---

func shortName(fullName string) string {
	parts := strings.Split(fullName, "/")
	return parts[len(parts)-1]
}

// segmentAfter returns the path segment following key in a resource name.
func segmentAfter(name, key string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		if p == key && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return name
}

func libraryID(name string) string { return segmentAfter(name, "libraries") }

func runID(name string) string { return segmentAfter(name, "runs") }

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	default:
		return plural(int(d.Hours()/24), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func duration(start, end time.Time) string {
	if end.IsZero() {
		return fmt.Sprintf("%s (running)", formatDuration(time.Since(start)))
	}
	return formatDuration(end.Sub(start))
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

func stateClass(state store.RunState) string {
	switch state {
	case store.RunActive:
		return "state-active"
	case store.RunSucceeded:
		return "state-succeeded"
	case store.RunFailed:
		return "state-failed"
	case store.RunCancelled:
		return "state-cancelled"
	default:
		return ""
	}
}

func stateIcon(state store.RunState) template.HTML {
	switch state {
	case store.RunActive:
		return "&#9654;"
	case store.RunSucceeded:
		return "&#10003;"
	case store.RunFailed:
		return "&#10007;"
	case store.RunCancelled:
		return "&#9632;"
	default:
		return "&#8226;"
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

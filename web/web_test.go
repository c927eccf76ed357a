package web

import (
	"context"
	"html"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/splice/pkg/catalog"
	"github.com/lemonberrylabs/splice/pkg/store"
	"github.com/lemonberrylabs/splice/pkg/types"
)

const parent = "projects/test-project/locations/us-central1"

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

func setupTestApp(t *testing.T) (*fiber.App, *catalog.Catalog) {
	t.Helper()
	cat := catalog.New(store.New())
	h := New(cat, "test-project", "us-central1")
	app := fiber.New()
	h.Register(app)
	return app, cat
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	// Compare against rendered text: html/template escapes '+' and '>'.
	return resp.StatusCode, html.UnescapeString(string(body))
}

func TestDashboardEmpty(t *testing.T) {
	app, _ := setupTestApp(t)

	code, html := get(t, app, "/ui")
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, html)
	}
	if !strings.Contains(html, "Dashboard") {
		t.Error("expected Dashboard in response")
	}
	if !strings.Contains(html, "Splice") {
		t.Error("expected brand in response")
	}
	if !strings.Contains(html, "No libraries deployed") {
		t.Error("expected empty state message")
	}
}

func TestDashboardWithData(t *testing.T) {
	app, cat := setupTestApp(t)

	rec, err := cat.Create(parent, "pricing", pricing, "Pricing rules")
	if err != nil {
		t.Fatalf("failed to create library: %v", err)
	}
	if _, err := cat.Run(context.Background(), rec.Name, types.NewInt(4)); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	code, html := get(t, app, "/ui")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.Contains(html, "pricing") {
		t.Error("expected library name in response")
	}
	if !strings.Contains(html, "1 succeeded") {
		t.Error("expected succeeded count in response")
	}
	if !strings.Contains(html, "/ui/runs/pricing/run-") {
		t.Error("expected link to recent run")
	}
}

func TestLibraryDetail(t *testing.T) {
	app, cat := setupTestApp(t)

	if _, err := cat.Create(parent, "pricing", pricing, "Test desc"); err != nil {
		t.Fatalf("failed to create library: %v", err)
	}

	code, html := get(t, app, "/ui/libraries/pricing")
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, html)
	}
	if !strings.Contains(html, "Test desc") {
		t.Error("expected description in response")
	}
	if !strings.Contains(html, "use(inc, n) * factor") {
		t.Error("expected main source in response")
	}
	if !strings.Contains(html, "fn(n) => (n + 1) * factor") {
		t.Error("expected expanded main in response")
	}
	if !strings.Contains(html, "factor") || !strings.Contains(html, "<code>3</code>") {
		t.Error("expected constant in response")
	}
}

func TestLibraryDetailShowsExpansionError(t *testing.T) {
	app, cat := setupTestApp(t)

	src := "functions:\n  loop:\n    params: [x]\n    body: use(loop, x)\nmain:\n  params: [x]\n  body: use(loop, x)\n"
	if _, err := cat.Create(parent, "loop", src, ""); err != nil {
		t.Fatalf("failed to create library: %v", err)
	}

	code, html := get(t, app, "/ui/libraries/loop")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.Contains(html, `class="error"`) {
		t.Error("expected expansion error in response")
	}
}

func TestRunDetail(t *testing.T) {
	app, cat := setupTestApp(t)

	rec, _ := cat.Create(parent, "pricing", pricing, "")
	run, err := cat.Run(context.Background(), rec.Name, types.NewInt(4))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	code, html := get(t, app, "/ui/runs/pricing/"+runID(run.Name))
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, html)
	}
	if !strings.Contains(html, "SUCCEEDED") {
		t.Error("expected run state in response")
	}
	if !strings.Contains(html, "<pre>15</pre>") {
		t.Error("expected run result in response")
	}
}

func TestNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	for _, path := range []string{"/ui/libraries/nonexistent", "/ui/runs/nonexistent/run-1"} {
		code, html := get(t, app, path)
		if code != 404 {
			t.Errorf("%s: expected 404, got %d", path, code)
		}
		if !strings.Contains(html, "Not Found") {
			t.Errorf("%s: expected not found message", path)
		}
	}
}

func TestRootRedirect(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 302 {
		t.Fatalf("expected 302 redirect, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/ui" {
		t.Fatalf("expected redirect to /ui, got %s", loc)
	}
}

func TestHelpers(t *testing.T) {
	name := parent + "/libraries/pricing/runs/run-3"
	if got := libraryID(name); got != "pricing" {
		t.Errorf("libraryID = %q", got)
	}
	if got := runID(name); got != "run-3" {
		t.Errorf("runID = %q", got)
	}
	if got := truncate("abcdef", 3); got != "abc..." {
		t.Errorf("truncate = %q", got)
	}
	if got := countLines("a\nb"); got != 2 {
		t.Errorf("countLines = %d", got)
	}
}

package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lemonberrylabs/splice/pkg/catalog"
	"github.com/lemonberrylabs/splice/pkg/store"
)

const base = "/v1/projects/test-project/locations/us-central1/libraries"

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

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(catalog.New(store.New()))
}

func do(t *testing.T, srv *Server, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: invalid JSON response %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func createPricing(t *testing.T, srv *Server) {
	t.Helper()
	code, body := do(t, srv, "POST", base+"?libraryId=pricing", map[string]string{
		"sourceContents": pricing,
		"description":    "demo",
	})
	if code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d: %v", code, body)
	}
}

func errorStatus(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	s, _ := e["status"].(string)
	return s
}

func TestLibraryCRUD(t *testing.T) {
	srv := newTestServer(t)
	createPricing(t, srv)

	code, body := do(t, srv, "GET", base+"/pricing", nil)
	if code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", code)
	}
	if body["name"] != "projects/test-project/locations/us-central1/libraries/pricing" {
		t.Errorf("unexpected name %v", body["name"])
	}
	if body["description"] != "demo" || body["revisionId"] != "000001-000" {
		t.Errorf("unexpected library %v", body)
	}

	code, body = do(t, srv, "GET", base, nil)
	if code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", code)
	}
	if libs, _ := body["libraries"].([]interface{}); len(libs) != 1 {
		t.Errorf("expected 1 library, got %v", body["libraries"])
	}

	code, body = do(t, srv, "PATCH", base+"/pricing", map[string]string{"sourceContents": "main: 7"})
	if code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %v", code, body)
	}
	if body["done"] != true {
		t.Errorf("expected done operation, got %v", body)
	}
	resp, _ := body["response"].(map[string]interface{})
	if resp["sourceContents"] != "main: 7" || resp["revisionId"] != "000002-000" {
		t.Errorf("unexpected updated library %v", resp)
	}

	code, _ = do(t, srv, "DELETE", base+"/pricing", nil)
	if code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", code)
	}
	code, body = do(t, srv, "GET", base+"/pricing", nil)
	if code != http.StatusNotFound || errorStatus(body) != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND after delete, got %d %v", code, body)
	}
}

func TestCreateLibraryErrors(t *testing.T) {
	srv := newTestServer(t)
	createPricing(t, srv)

	tests := []struct {
		name   string
		query  string
		body   map[string]string
		code   int
		status string
	}{
		{"missing id", "", map[string]string{"sourceContents": "main: 1"}, 400, "INVALID_ARGUMENT"},
		{"invalid id", "?libraryId=Bad.Name", map[string]string{"sourceContents": "main: 1"}, 400, "INVALID_ARGUMENT"},
		{"missing source", "?libraryId=empty", map[string]string{}, 400, "INVALID_ARGUMENT"},
		{"syntax error", "?libraryId=broken", map[string]string{"sourceContents": "main: 1 +"}, 400, "INVALID_ARGUMENT"},
		{"duplicate", "?libraryId=pricing", map[string]string{"sourceContents": "main: 1"}, 409, "ALREADY_EXISTS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, srv, "POST", base+tt.query, tt.body)
			if code != tt.code || errorStatus(body) != tt.status {
				t.Errorf("expected %d %s, got %d %v", tt.code, tt.status, code, body)
			}
		})
	}
}

func TestExpand(t *testing.T) {
	srv := newTestServer(t)
	createPricing(t, srv)

	code, body := do(t, srv, "POST", base+"/pricing:expand", map[string]string{"expression": "use(inc, use(inc, 2))"})
	if code != http.StatusOK {
		t.Fatalf("expand: expected 200, got %d: %v", code, body)
	}
	if body["expanded"] != "2 + 1 + 1" {
		t.Errorf("unexpected expansion %v", body["expanded"])
	}

	code, body = do(t, srv, "POST", base+"/pricing:expand", map[string]string{"expression": "use(inc, 1, 2)"})
	if code != http.StatusBadRequest || errorStatus(body) != "INVALID_ARGUMENT" {
		t.Errorf("expected arity error, got %d %v", code, body)
	}

	code, body = do(t, srv, "POST", base+"/pricing:expand", map[string]string{"expression": " "})
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty expression, got %d %v", code, body)
	}

	code, _ = do(t, srv, "POST", base+"/missing:expand", map[string]string{"expression": "1"})
	if code != http.StatusNotFound {
		t.Errorf("expected 404 for missing library, got %d", code)
	}
}

func TestRuns(t *testing.T) {
	srv := newTestServer(t)
	createPricing(t, srv)

	code, body := do(t, srv, "POST", base+"/pricing/runs", map[string]string{"argument": "4"})
	if code != http.StatusOK {
		t.Fatalf("create run: expected 200, got %d: %v", code, body)
	}
	if body["state"] != "SUCCEEDED" || body["result"] != "15" {
		t.Errorf("unexpected run %v", body)
	}
	if body["expanded"] != "fn(n) => (n + 1) * factor" {
		t.Errorf("unexpected expanded main %v", body["expanded"])
	}
	name, _ := body["name"].(string)
	if !strings.HasPrefix(name, "projects/test-project/locations/us-central1/libraries/pricing/runs/") {
		t.Fatalf("unexpected run name %q", name)
	}

	code, body = do(t, srv, "GET", "/v1/"+name, nil)
	if code != http.StatusOK || body["result"] != "15" {
		t.Errorf("get run: got %d %v", code, body)
	}

	code, body = do(t, srv, "POST", base+"/pricing/runs", map[string]string{"argument": `"text"`})
	if code != http.StatusOK {
		t.Fatalf("create run: expected 200, got %d: %v", code, body)
	}
	if body["state"] != "FAILED" {
		t.Errorf("expected FAILED run for string argument, got %v", body)
	}
	if e, _ := body["error"].(map[string]interface{}); e == nil || !strings.Contains(e["payload"].(string), "TypeError") {
		t.Errorf("expected TypeError payload, got %v", body["error"])
	}

	code, body = do(t, srv, "GET", base+"/pricing/runs", nil)
	if code != http.StatusOK {
		t.Fatalf("list runs: expected 200, got %d", code)
	}
	if runs, _ := body["runs"].([]interface{}); len(runs) != 2 {
		t.Errorf("expected 2 runs, got %v", body["runs"])
	}

	code, body = do(t, srv, "POST", "/v1/"+name+":cancel", nil)
	if code != http.StatusBadRequest || errorStatus(body) != "FAILED_PRECONDITION" {
		t.Errorf("expected FAILED_PRECONDITION cancelling a finished run, got %d %v", code, body)
	}

	code, body = do(t, srv, "POST", base+"/pricing/runs", map[string]string{"argument": "{not json"})
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad argument, got %d %v", code, body)
	}

	code, _ = do(t, srv, "POST", base+"/missing/runs", map[string]string{})
	if code != http.StatusNotFound {
		t.Errorf("expected 404 for missing library, got %d", code)
	}
}

func TestParseArgument(t *testing.T) {
	v, err := ParseArgument("")
	if err != nil || !v.IsNull() {
		t.Errorf("empty argument: got %v, %v", v, err)
	}
	v, err = ParseArgument(`{"a": [1, 2]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := v.String(); !strings.Contains(got, "a") {
		t.Errorf("unexpected value %s", got)
	}
	if _, err := ParseArgument("{"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"pricing.yaml": pricing,
		"Upper.yml":    "main: 2",
		"broken.yaml":  "main: 1 +",
		"data.json":    `{"main": "3"}`,
		"notes.txt":    "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	srv := newTestServer(t)
	n, err := srv.LoadDir(dir, "test-project", "us-central1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 libraries loaded, got %d", n)
	}

	code, _ := do(t, srv, "GET", base+"/upper", nil)
	if code != http.StatusOK {
		t.Errorf("expected lowercased library id, got %d", code)
	}

	if _, err := srv.LoadDir(filepath.Join(dir, "missing"), "p", "l"); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLoadExampleLibraries(t *testing.T) {
	srv := newTestServer(t)
	n, err := srv.LoadDir(filepath.Join("..", "..", "examples", "libraries"), "test-project", "us-central1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 example libraries, got %d", n)
	}

	code, body := do(t, srv, "POST", base+"/geometry/runs", map[string]string{"argument": `{"a": 3, "b": 4}`})
	if code != http.StatusOK || body["state"] != "SUCCEEDED" {
		t.Fatalf("geometry run: got %d %v", code, body)
	}

	code, body = do(t, srv, "POST", base+"/pricing/runs", map[string]string{
		"argument": `{"item": {"price": 10.0, "quantity": 6}, "tier": "standard"}`,
	})
	if code != http.StatusOK || body["state"] != "SUCCEEDED" {
		t.Fatalf("pricing run: got %d %v", code, body)
	}
}

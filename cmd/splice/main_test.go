package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

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

func writeLibrary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	if err := os.WriteFile(path, []byte(pricing), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestExpandCommand(t *testing.T) {
	path := writeLibrary(t)

	out, err := execute(t, "expand", path)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if !strings.Contains(out, "inc = fn(x) => x + 1") {
		t.Errorf("missing inc in output:\n%s", out)
	}
	if !strings.Contains(out, "main = fn(n) => (n + 1) * factor") {
		t.Errorf("missing expanded main in output:\n%s", out)
	}

	out, err = execute(t, "expand", path, "use(inc, 41)")
	if err != nil {
		t.Fatalf("expand expression: %v", err)
	}
	if strings.TrimSpace(out) != "41 + 1" {
		t.Errorf("unexpected expansion %q", out)
	}
}

func TestEvalCommand(t *testing.T) {
	path := writeLibrary(t)

	out, err := execute(t, "eval", path, "--arg", "4")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if strings.TrimSpace(out) != "15" {
		t.Errorf("unexpected result %q", out)
	}

	if _, err := execute(t, "eval", path, "--arg", `"four"`); err == nil {
		t.Error("expected type error")
	}
	if _, err := execute(t, "eval", filepath.Join(t.TempDir(), "missing.yaml"), "--arg", ""); err == nil {
		t.Error("expected error for missing file")
	}
}

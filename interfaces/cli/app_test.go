package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/factrun/example/hello"
)

const helloRunfile = `
agent:
  id: hello
  session: demo
runner:
  max_iterations: 10
store:
  backend: memory
`

func newTestApp(t *testing.T) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	app := New().WithOutput(stdout, stderr)
	app.RegisterAgent("hello", hello.Spec)
	return app, stdout, stderr
}

func writeRunfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	app, stdout, _ := newTestApp(t)

	if err := app.ExecuteWithArgs(context.Background(), []string{"version"}); err != nil {
		t.Fatalf("version error: %v", err)
	}
	if !strings.Contains(stdout.String(), "factrun version") {
		t.Errorf("output = %q", stdout.String())
	}
}

func TestAgentsCommand(t *testing.T) {
	app, stdout, _ := newTestApp(t)

	if err := app.ExecuteWithArgs(context.Background(), []string{"agents"}); err != nil {
		t.Fatalf("agents error: %v", err)
	}
	if strings.TrimSpace(stdout.String()) != "hello" {
		t.Errorf("output = %q", stdout.String())
	}
}

func TestValidateCommand(t *testing.T) {
	app, stdout, _ := newTestApp(t)
	path := writeRunfile(t, helloRunfile)

	if err := app.ExecuteWithArgs(context.Background(), []string{"validate", "-c", path}); err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if !strings.Contains(stdout.String(), "valid (0 warnings)") {
		t.Errorf("output = %q", stdout.String())
	}
}

func TestValidateUnknownAgent(t *testing.T) {
	app, _, _ := newTestApp(t)
	path := writeRunfile(t, strings.Replace(helloRunfile, "id: hello", "id: nope", 1))

	err := app.ExecuteWithArgs(context.Background(), []string{"validate", "-c", path})
	if err == nil || !strings.Contains(err.Error(), "unknown agent") {
		t.Fatalf("error = %v, want unknown agent", err)
	}
}

func TestRunCommand(t *testing.T) {
	app, stdout, _ := newTestApp(t)
	path := writeRunfile(t, helloRunfile)

	if err := app.ExecuteWithArgs(context.Background(), []string{"run", "-c", path}); err != nil {
		t.Fatalf("run error: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "outcome:   completed") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "said_hello") {
		t.Errorf("output = %q", out)
	}
}

func TestRunCommandJSON(t *testing.T) {
	app, stdout, _ := newTestApp(t)
	path := writeRunfile(t, helloRunfile)

	if err := app.ExecuteWithArgs(context.Background(), []string{"run", "-c", path, "--json"}); err != nil {
		t.Fatalf("run error: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, `"outcome": "completed"`) {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, `"iteration": 2`) {
		t.Errorf("output = %q", out)
	}
}

func TestRunCommandRequiresConfig(t *testing.T) {
	app, _, _ := newTestApp(t)

	if err := app.ExecuteWithArgs(context.Background(), []string{"run"}); err == nil {
		t.Fatal("expected missing --config error")
	}
}

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lithammer/dedent"

	"github.com/tapestry/tapestry/pkg/fault"
	"github.com/tapestry/tapestry/pkg/stores"
)

const testBuildfile = `
	(def-production cc 0 *.c *.o)
	(def-action each cc (write $target compiled true))
	(def-sources main.c)
	(def-macro clean (system rm -f (wildcard-glob *.o)))
`

func testDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"Buildfile": dedent.Dedent(testBuildfile),
		"main.c":    "int main() { return 0; }\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// execute runs the command line and returns its output and exit code.
func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand("test", "none", "today")
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	code := fault.Report(&stderr, err)
	return stdout.String(), stderr.String(), code
}

func TestBuildCommand(t *testing.T) {
	dir := testDir(t)

	_, stderr, code := execute(t, "-C", dir)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(stderr, "built 1 target(s)") {
		t.Errorf("stderr = %q, want build count", stderr)
	}
	data, err := os.ReadFile(filepath.Join(dir, "main.o"))
	if err != nil {
		t.Fatalf("target not built: %v", err)
	}
	if string(data) != "compiled\n" {
		t.Errorf("main.o = %q", data)
	}

	_, stderr, code = execute(t, "-C", dir, "build", "clean")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "main.o")); !os.IsNotExist(err) {
		t.Errorf("main.o still exists after clean: %v", err)
	}
}

func TestBuildCommandFailure(t *testing.T) {
	dir := testDir(t)

	_, stderr, code := execute(t, "-C", dir, "build", "missing.o")
	if code != fault.DefaultRC {
		t.Errorf("exit code = %d, want %d", code, fault.DefaultRC)
	}
	if !strings.Contains(stderr, "location error") {
		t.Errorf("stderr = %q, want a location error", stderr)
	}
}

func TestInvalidFlag(t *testing.T) {
	_, _, code := execute(t, "--no-such-flag")
	if code != fault.ExitBug {
		t.Errorf("exit code = %d, want %d", code, fault.ExitBug)
	}
}

func TestTargetsCommand(t *testing.T) {
	dir := testDir(t)

	stdout, stderr, code := execute(t, "-C", dir, "targets")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if stdout != "main.o\n" {
		t.Errorf("targets = %q, want %q", stdout, "main.o\n")
	}
	if _, err := os.Stat(filepath.Join(dir, "main.o")); !os.IsNotExist(err) {
		t.Errorf("listing targets built main.o")
	}

	stdout, _, code = execute(t, "-C", dir, "--json", "targets", "--end")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	var targets []string
	if err := json.Unmarshal([]byte(stdout), &targets); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if diff := cmp.Diff([]string{"main.o"}, targets); diff != "" {
		t.Errorf("end targets mismatch (-want +got):\n%s", diff)
	}
}

func TestFunctionsCommand(t *testing.T) {
	dir := testDir(t)

	stdout, stderr, code := execute(t, "-C", dir, "functions")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	for _, name := range []string{"def-production", "def-sources", "wildcard", "echo"} {
		if !strings.Contains(stdout, name) {
			t.Errorf("function list is missing %s", name)
		}
	}

	stdout, _, code = execute(t, "-C", dir, "functions", "def-action")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "(def-action") {
		t.Errorf("usage = %q", stdout)
	}

	_, stderr, code = execute(t, "-C", dir, "functions", "no-such-function")
	if code == 0 {
		t.Errorf("unknown function succeeded")
	}
	if !strings.Contains(stderr, "no-such-function") {
		t.Errorf("stderr = %q, want the function name", stderr)
	}
}

func TestHistoryCommand(t *testing.T) {
	dir := testDir(t)

	if _, stderr, code := execute(t, "-C", dir, "--history"); code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}

	stdout, stderr, code := execute(t, "-C", dir, "--json", "history")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	var runs []stores.Run
	if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].Status != stores.RunStatusSucceeded || runs[0].Built != 1 {
		t.Errorf("run = %+v", runs[0])
	}

	stdout, _, code = execute(t, "-C", dir, "history", runs[0].ID)
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "main.o") || !strings.Contains(stdout, "succeeded") {
		t.Errorf("run details = %q", stdout)
	}
}

func TestDepth(t *testing.T) {
	tests := []struct {
		src  string
		want int
	}{
		{"(echo a)", 0},
		{"(def-macro x", 1},
		{"(echo \"(\"", 1},
		{"(echo \"\\\")\")", 0},
		{"))", -2},
	}
	for _, tt := range tests {
		if got := depth(tt.src); got != tt.want {
			t.Errorf("depth(%q) = %d, want %d", tt.src, got, tt.want)
		}
	}
}

func TestEventsFlag(t *testing.T) {
	dir := testDir(t)

	_, stderr, code := execute(t, "-C", dir, "-q", "--events")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	for _, typ := range []string{"run.started", "target.built", "run.completed"} {
		if !strings.Contains(stderr, `"type":"`+typ+`"`) {
			t.Errorf("stderr is missing a %s event:\n%s", typ, stderr)
		}
	}
}

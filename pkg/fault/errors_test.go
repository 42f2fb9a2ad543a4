package fault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lithammer/dedent"
)

func TestMessageKeyOrder(t *testing.T) {
	err := New(KindBuild, "action failed").
		With("zone", "/src/").
		With("target", "a.o").
		With("action", "cc").
		With("skipped", nil).
		WithOrder("target", "action")

	want := strings.TrimPrefix(dedent.Dedent(`
		error class: build error
		details    : action failed
		target     : a.o
		action     : cc
		zone       : /src/
	`), "\n")

	if got := err.Message(); got != want {
		t.Errorf("Message() =\n%q\nwant\n%q", got, want)
	}
}

func TestMessageListsAndOrigin(t *testing.T) {
	err := New(KindParameter, "expected literal").
		With("usage", []string{"(read <file>)", "reads lines"}).
		With("token", "ignored").
		At(Origin{File: "Buildfile", Line: 3, Position: 7})

	got := err.Message()
	if strings.Contains(got, "ignored") {
		t.Errorf("token key must not be reported:\n%s", got)
	}
	if !strings.Contains(got, "usage      : (read <file>)\n             reads lines\n") {
		t.Errorf("list value not aligned:\n%s", got)
	}
	if !strings.HasSuffix(got, "\nat-file    : Buildfile\nat-line    : 3\nat-position: 7\n") {
		t.Errorf("provenance missing:\n%s", got)
	}
}

func TestAtKeepsFirstOrigin(t *testing.T) {
	err := New(KindSyntax, "x").At(Origin{Line: 1}).At(Origin{Line: 9})
	if err.Origin.Line != 1 {
		t.Errorf("Origin.Line = %d, want 1", err.Origin.Line)
	}
}

func TestWrapPassesThroughFaults(t *testing.T) {
	orig := New(KindTarget, "target not found")
	wrapped := fmt.Errorf("context: %w", orig)

	if got := Wrap(KindRuntime, "other", wrapped); got != orig {
		t.Errorf("Wrap() = %v, want original fault", got)
	}

	plain := errors.New("disk on fire")
	got := Wrap(KindRuntime, "io failed", plain)
	if got.Kind != KindRuntime || !errors.Is(got, plain) {
		t.Errorf("Wrap() = %v, want runtime error wrapping cause", got)
	}
	if v, _ := got.Get("cause"); v != "disk on fire" {
		t.Errorf("cause = %v", v)
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(KindLoad, "unable to open instructions file"))
	if !IsKind(err, KindLoad) {
		t.Error("IsKind(load) = false")
	}
	if IsKind(err, KindBuild) {
		t.Error("IsKind(build) = true")
	}
	if !errors.Is(err, New(KindLoad, "")) {
		t.Error("errors.Is by kind failed")
	}
}

func TestReport(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		rc     int
		header string
	}{
		{"nil", nil, ExitOK, ""},
		{"single", New(KindAbort, "stop").WithRC(20), 20, "an error occurred during processing:"},
		{"cancelled", fmt.Errorf("run: %w", context.Canceled), ExitCancelled, ">>> ...build cancelled."},
		{"bug", errors.New("nil map"), ExitBug, ">>> caught a bug!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if rc := Report(&buf, tt.err); rc != tt.rc {
				t.Errorf("Report() rc = %d, want %d", rc, tt.rc)
			}
			if !strings.HasPrefix(buf.String(), tt.header) {
				t.Errorf("Report() output = %q, want prefix %q", buf.String(), tt.header)
			}
		})
	}
}

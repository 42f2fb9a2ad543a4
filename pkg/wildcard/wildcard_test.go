package wildcard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMatchString(t *testing.T) {
	tests := []struct {
		pattern string
		text    string
		want    bool
	}{
		{"*.c", "a.c", true},
		{"*.c", "/home/src/a.c", true},
		{"*.c", "a.cc", false},
		{"*.c", "abc", false},
		{"?.o", "x.o", true},
		{"?.o", "xy.o", false},
		{"?.o", "/src/x.o", true},
		{"?.o", "/src/xy.o", false},
		{"b.c", "/src/ab.c", false},
		{"b.c", "/src/b.c", true},
		{"/src/*.c", "/src/a.c", true},
		{"/src/*.c", "/p/src/a.c", false},
		{"src/**/*.c", "/p/src/a.c", true},
		{"src/**/*.c", "/p/src/lib/deep/a.c", true},
		{"**/*.h", "include/x.h", true},
		{"**/*.h", "x.h", true},
		{`a\*.c`, "a*.c", true},
		{`a\*.c`, "ab.c", false},
		{"lib+x.a", "lib+x.a", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"~"+tt.text, func(t *testing.T) {
			w, err := Compile(tt.pattern)
			if err != nil {
				t.Fatalf("Compile(%q) error = %v", tt.pattern, err)
			}
			if got := w.MatchString(tt.text); got != tt.want {
				t.Errorf("MatchString(%q) = %v, want %v (regexp %s)", tt.text, got, tt.want, w.Intermediate())
			}
		})
	}
}

func TestMatchGroups(t *testing.T) {
	w := MustCompile("*-?.c")
	m := w.Match("/src/main-x.c")
	if m == nil {
		t.Fatal("Match() = nil")
	}
	want := &Match{Groups: []string{"main-x.c", "main", "x"}, Pre: "/src/", Post: ""}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("Match() mismatch (-want +got):\n%s", diff)
	}
}

func TestSplice(t *testing.T) {
	tests := []struct {
		pattern string
		into    string
		text    string
		want    string
		ok      bool
	}{
		{"*.c", "*.o", "a.c", "a.o", true},
		{"*.c", "*.o", "/home/src/a.c", "/home/src/a.o", true},
		{"*.c", "*.o", "a.h", "", false},
		{"*-*.c", "*_*.o", "x-y.c", "x_y.o", true},
		{"src/**/*.c", "obj/**/*.o", "/p/src/a/b/m.c", "/p/obj/a/b/m.o", true},
		{"src/**/*.c", "obj/**/*.o", "/p/src/m.c", "/p/obj/m.o", true},
		{"*.c", "*.o *.d", "m.c", "m.o .d", true},
		{"*.c", "fixed.o", "m.c", "fixed.o", true},
		{"?.c", "?.o", "/src/a.c", "/src/a.o", true},
		{"?.c", "?.o", "/src/long.c", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text+"->"+tt.into, func(t *testing.T) {
			got, ok := MustCompile(tt.pattern).Splice(tt.into, tt.text)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Splice(%q, %q) = %q, %v; want %q, %v", tt.into, tt.text, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"a.c", 0},
		{"*.c", 1},
		{"*-?.c", 2},
		{"**/*.c", 2},
		{"src/**/x", 1},
		{`\*.c`, 0},
		{`\\*.c`, 1},
		{"", 0},
	}
	for _, tt := range tests {
		if got := Count(tt.in); got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestHasDirectory(t *testing.T) {
	if HasDirectory("a.c") {
		t.Error("HasDirectory(a.c) = true")
	}
	if !HasDirectory("src/a.c") {
		t.Error("HasDirectory(src/a.c) = false")
	}
}

func TestGlob(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.o", "b.o", "c.c", "sub/d.o", "sub/deep/e.o", ".hidden.o"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		pattern string
		want    []string
	}{
		{"*.o", []string{"a.o", "b.o"}},
		{"sub/*.o", []string{"sub/d.o"}},
		{"**/*.o", []string{"a.o", "b.o", "sub/d.o", "sub/deep/e.o"}},
		{"c.c", []string{"c.c"}},
		{"missing.c", []string{}},
		{"*.x", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := Glob(dir, tt.pattern)
			if err != nil {
				t.Fatalf("Glob() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Glob(%q) mismatch (-want +got):\n%s", tt.pattern, diff)
			}
		})
	}
}

package interp

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/tapestry/tapestry/pkg/fault"
	"github.com/tapestry/tapestry/pkg/location"
)

type fixture struct {
	ip  *Interpreter
	out *bytes.Buffer
	dir string
}

func newFixture(t *testing.T, src string, options map[string]string) *fixture {
	t.Helper()
	dir := t.TempDir()
	out := &bytes.Buffer{}
	ip, err := New(strings.NewReader(src), Config{
		File:      "Buildfile",
		Locations: location.NewFrom(dir, dir, ""),
		Environ:   []string{},
		Options:   options,
		Stdout:    out,
		Stderr:    out,
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &fixture{ip: ip, out: out, dir: dir}
}

// eval runs src as a program and returns the value of its last call.
func eval(t *testing.T, src string) (Value, string) {
	t.Helper()
	f := newFixture(t, "", nil)
	v, err := f.ip.Eval(context.Background(), src, "test")
	if err != nil {
		t.Fatalf("Eval(%q) error = %v", src, err)
	}
	return v, f.out.String()
}

func evalError(t *testing.T, src string) *fault.Error {
	t.Helper()
	f := newFixture(t, "", nil)
	_, err := f.ip.Eval(context.Background(), src, "test")
	if err == nil {
		t.Fatalf("Eval(%q) succeeded, want error", src)
	}
	e, ok := fault.As(err)
	if !ok {
		t.Fatalf("Eval(%q) error = %v, want *fault.Error", src, err)
	}
	return e
}

func TestExpansion(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Value
	}{
		{"plain", `(return text)`, "text"},
		{"scalar", `(set $a x) (return "<$a>")`, "<x>"},
		{"braces", `(set $a x) (return "${a}-${a}")`, "x-x"},
		{"simple reference keeps type", `(set $a (l x y)) (return $a)`, List{"x", "y"}},
		{"cross product", `(set $a (l x y)) (return "$a$a")`, List{"xx", "xy", "yx", "yy"}},
		{"braced cross product", `(set $a (l x y)) (return "${a}-${a}")`, List{"x-x", "x-y", "y-x", "y-y"}},
		{"hyphen continues a name", `(set $a (l x y)) (return "$a-$a")`, List{"x", "y"}},
		{"fan out", `(set $a (l 1 2 3)) (return "f$a.c")`, List{"f1.c", "f2.c", "f3.c"}},
		{"nested lists flatten", `(set $a (l x (l y z))) (return "-$a")`, List{"-x", "-y", "-z"}},
		{"empty list", `(set $a (empty)) (return "-$a")`, List{}},
		{"undefined", `(return "[$nothing]")`, "[]"},
		{"escaped", `(set $a x) (return "\\$a")`, "$a"},
		{"values stay literal", `(set $a "\\$b") (set $b y) (return "$a.")`, "$b."},
		{"hyphenated names", `(set $a-b v) (return "$a-b")`, "v"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := eval(t, tt.src)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestControl(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Value
	}{
		{"if true", `(if (eq? a a) yes no)`, "yes"},
		{"if false", `(if (eq? a b) yes no)`, "no"},
		{"if false without else", `(if false yes)`, ""},
		{"each returns last", `(each $x (l a b c) (return "<$x>"))`, "<c>"},
		{"each empty", `(each $x (empty) (return $x))`, List{}},
		{"map", `(map $x (l 1 2 3) (return "<$x>"))`, List{"<1>", "<2>", "<3>"}},
		{"select", `(select $x (l 0 1 2) (return $x))`, List{"1", "2"}},
		{"loop variable persists", `(each $x (l a b) (return $x)) (return $x)`, "b"},
		{"do returns last", `(do (return a) (return b))`, "b"},
		{"do variable", `(set $code (q (return hi))) (do $code)`, "hi"},
		{"collect", `(collect a (l b) c)`, List{"a", List{"b"}, "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := eval(t, tt.src)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLogicAndConversions(t *testing.T) {
	tests := []struct {
		src  string
		want Value
	}{
		{`(and true false)`, "false"},
		{`(or "" 1)`, "true"},
		{`(not "")`, "true"},
		{`(xor 1 0)`, "true"},
		{`(xor 1 1)`, "false"},
		{`(gt? 10 9)`, "true"},
		{`(lt? 10 9)`, "false"},
		{`(eq? (l a b) (l a b))`, "true"},
		{`(eq? a (l a))`, "false"},
		{`(scalar? a)`, "true"},
		{`(vector? (empty))`, "true"},
		{`(scalar (l a b))`, "2"},
		{`(vector a)`, List{"a"}},
		{`(vector 0)`, List{}},
		{`(boolean 0)`, false},
		{`(integer 12x)`, 12},
		{`(nil)`, ""},
		{`(newline)`, "\n"},
		{`(true)`, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, _ := eval(t, tt.src)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVectors(t *testing.T) {
	tests := []struct {
		src  string
		want Value
	}{
		{`(at (l a b c) 1)`, "b"},
		{`(at (l a b c) -1)`, "c"},
		{`(at (l a b c) 7)`, ""},
		{`(at (l a b c) (l 0 5 2))`, List{"a", "", "c"}},
		{`(join (l a (l b c)) -)`, "a-b-c"},
		{`(diff (l a b c b) (l b))`, List{"a", "c"}},
		{`(flatten (l a (l b (l c))))`, List{"a", "b", "c"}},
		{`(merge a (l b c))`, List{"a", "b", "c"}},
		{`(reverse (l a b c))`, List{"c", "b", "a"}},
		{`(member? (l a b) b)`, "true"},
		{`(member? (l a b) z)`, "false"},
		{`(q a)`, "a"},
		{`(q (a (b)))`, List{"a", List{"b"}}},
		{`(' a $b)`, List{"a", "$b"}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, _ := eval(t, tt.src)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPatterns(t *testing.T) {
	tests := []struct {
		src  string
		want Value
	}{
		{`(regex abc "b")`, "true"},
		{`(regex abc "^b")`, "false"},
		{`(regex a1b22 "[0-9]+" "<$0>")`, "a<1>b<22>"},
		{`(regex "k=v" "(\\w)=(\\w)" "$2=$1")`, "v=k"},
		{`(wildcard foo.c *.c)`, "true"},
		{`(wildcard foo.h *.c)`, "false"},
		{`(wildcard foo.c *.c "$1.o")`, "foo.o"},
		{`(wildcard foo.h *.c "$1.o")`, ""},
		{`(wildcard-splice foo.c *.c *.o)`, "foo.o"},
		{`(wildcard-splice src/a/b.c src/**/*.c obj/**/*.o)`, "obj/a/b.o"},
		{`(wildcard-splice foo.h *.c *.o)`, ""},
		{`(wildcard ab.c b.c)`, "false"},
		{`(wildcard xy.o ?.o)`, "false"},
		{`(wildcard x/a.c ?.c "$1.o")`, "x/a.o"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, _ := eval(t, tt.src)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUserFunctions(t *testing.T) {
	got, _ := eval(t, `
		(def-function greet ($who:scalar-expression) (return "hi $who"))
		(greet bob)`)
	if got != "hi bob" {
		t.Errorf("greet = %#v, want hi bob", got)
	}

	got, _ = eval(t, `
		(def-function inner () (return "[$v]"))
		(def-function outer ($v) (inner))
		(outer x)`)
	if got != "[]" {
		t.Errorf("inner saw caller locals: %#v", got)
	}

	got, _ = eval(t, `
		(def-function raw ($code:any) (return $code))
		(raw (echo $x))`)
	if diff := cmp.Diff(List{"echo", "$x"}, got); diff != "" {
		t.Errorf("raw parameter mismatch (-want +got):\n%s", diff)
	}

	got, _ = eval(t, `(def-function named () (return x))`)
	if got != "named" {
		t.Errorf("def-function returned %#v, want named", got)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		kind    fault.Kind
		details string
	}{
		{"undefined function", `(nope)`, fault.KindRuntime, "undefined function"},
		{"arity", `(if a)`, fault.KindSyntax, "invalid parameter count"},
		{"user arity", `(def-function f ($a) (return $a)) (f)`, fault.KindSyntax, "invalid parameter count"},
		{"parameter mode", `(set notavariable 1)`, fault.KindParameter, "expected variable-name"},
		{"invalid type", `(def-function f ($x:bogus) (return x))`, fault.KindParameter, "invalid type: bogus"},
		{"include style", `(include foo x)`, fault.KindParameter, "include must use one of the mainline functions: do, collect, l, return"},
		{"missing include", `(include do missing.tap)`, fault.KindLoad, "unable to open instructions file"},
		{"do needs calls", `(do a)`, fault.KindParameter, "expected function-call"},
		{"abort", `(abort stop 3)`, fault.KindAbort, "stop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := evalError(t, tt.src)
			if e.Kind != tt.kind || e.Details != tt.details {
				t.Errorf("error = %s %q, want %s %q", e.Kind, e.Details, tt.kind, tt.details)
			}
			if e.Origin == nil {
				t.Error("error has no origin")
			}
		})
	}

	e := evalError(t, `(abort stop 3)`)
	if e.RC != 3 || !e.IsFatal() {
		t.Errorf("abort rc = %d fatal = %v, want 3 true", e.RC, e.IsFatal())
	}

	e = evalError(t, `(def-function f ($ok (nested)) (return x))`)
	if v, _ := e.Get("subparameter"); v != 2 {
		t.Errorf("subparameter = %v, want 2", v)
	}
}

func TestDefBeforeSet(t *testing.T) {
	f := newFixture(t, "(set $q 1)", map[string]string{OptionDefBeforeSet: "true"})
	if err := f.ip.Run(context.Background()); err == nil {
		t.Fatal("Run() succeeded, want variable undefined")
	}

	f = newFixture(t, "(def $q) (set $q 1)", map[string]string{OptionDefBeforeSet: "true"})
	if err := f.ip.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v, _ := f.ip.Globals().Lookup("q"); v != "1" {
		t.Errorf("q = %#v, want 1", v)
	}
	if !f.ip.Ran() {
		t.Error("Ran() = false after Run")
	}
}

func TestOptions(t *testing.T) {
	_, out := eval(t, `(option print-separator ,) (option print-terminator ";") (print (l a (l b)))`)
	if out != "a,b;" {
		t.Errorf("print output = %q, want a,b;", out)
	}

	got, out := eval(t, `(print (empty))`)
	if out != "false\n" || got != "1" {
		t.Errorf("print (empty) = %#v, output %q", got, out)
	}

	e := evalError(t, `(option nonsense 1)`)
	if e.Details != "unknown option" {
		t.Errorf("unknown option error = %q", e.Details)
	}
}

func TestInclude(t *testing.T) {
	f := newFixture(t, `(include do first.tap second.tap) (return "$z$y")`, nil)
	if err := os.WriteFile(filepath.Join(f.dir, "first.tap"), []byte("(set $z a)"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.dir, "second.tap"), []byte("(set $y b)"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := f.ip.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v, _ := f.ip.Globals().Lookup("y"); v != "b" {
		t.Errorf("y = %#v, want b", v)
	}

	if err := os.WriteFile(filepath.Join(f.dir, "list.tap"), []byte("a (l b c)"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := f.ip.Eval(context.Background(), "(include collect list.tap)", "test")
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if diff := cmp.Diff(List{"a", List{"b", "c"}}, got); diff != "" {
		t.Errorf("include collect mismatch (-want +got):\n%s", diff)
	}
}

func TestIO(t *testing.T) {
	f := newFixture(t, "", nil)
	ctx := context.Background()
	run := func(src string) Value {
		t.Helper()
		v, err := f.ip.Eval(ctx, src, "test")
		if err != nil {
			t.Fatalf("Eval(%q) error = %v", src, err)
		}
		return v
	}

	if got := run(`(write out.txt (l a b) true)`); got != "2" {
		t.Errorf("write = %#v, want 2", got)
	}
	run(`(write out.txt c)`)
	if diff := cmp.Diff(List{"a", "b", "c"}, run(`(read out.txt)`)); diff != "" {
		t.Errorf("read mismatch (-want +got):\n%s", diff)
	}
	if got := run(`(exists? out.txt)`); got != "true" {
		t.Errorf("exists? = %#v", got)
	}
	if got := run(`(delete out.txt)`); got != "true" {
		t.Errorf("delete = %#v", got)
	}
	if got := run(`(delete out.txt)`); got != "false" {
		t.Errorf("second delete = %#v", got)
	}
	if got := run(`(touch new.txt)`); got != "true" {
		t.Errorf("touch = %#v", got)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "new.txt")); err != nil {
		t.Errorf("touch did not create the file: %v", err)
	}

	f.out.Reset()
	if got := run(`(echo a (l b c))`); got != "3" {
		t.Errorf("echo = %#v, want 3", got)
	}
	if f.out.String() != "a b c\n" {
		t.Errorf("echo output = %q", f.out.String())
	}

	e := evalError(t, `(read missing.txt)`)
	if e.Details != "unable to open stream" {
		t.Errorf("read error = %q", e.Details)
	}
}

func TestCommands(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no shell available")
	}
	f := newFixture(t, "", nil)
	ctx := context.Background()

	if got, _ := f.ip.Eval(ctx, `(system true)`, ""); got != "true" {
		t.Errorf("system true = %#v", got)
	}
	if got, _ := f.ip.Eval(ctx, `(system sh -c "exit 1")`, ""); got != "false" {
		t.Errorf("system exit 1 = %#v", got)
	}
	if got, _ := f.ip.Eval(ctx, `(system false)`, ""); got != "true" {
		t.Errorf("system false = %#v, want the dropped word to leave an empty command", got)
	}
	if got, _ := f.ip.Eval(ctx, `(system touch "with space.txt")`, ""); got != "true" {
		t.Errorf("system touch = %#v", got)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "with space.txt")); err != nil {
		t.Errorf("command did not run in the current directory: %v", err)
	}

	got, err := f.ip.Eval(ctx, `(pipe-in echo "a  b")`, "")
	if err != nil {
		t.Fatalf("pipe-in error = %v", err)
	}
	if diff := cmp.Diff(List{"a  b"}, got); diff != "" {
		t.Errorf("pipe-in mismatch (-want +got):\n%s", diff)
	}

	f.out.Reset()
	got, err = f.ip.Eval(ctx, `(pipe-out cat (l x y))`, "")
	if err != nil {
		t.Fatalf("pipe-out error = %v", err)
	}
	if got != "2" || f.out.String() != "x\ny\n" {
		t.Errorf("pipe-out = %#v, output %q", got, f.out.String())
	}
}

func TestAssembleCommand(t *testing.T) {
	got := assembleCommand([]string{"cc", "-o", "a b", `say "hi"`})
	if want := `cc -o "a b" "say \"hi\""`; got != want {
		t.Errorf("assembleCommand() = %s, want %s", got, want)
	}
}

func TestInterpreterTest(t *testing.T) {
	_, out := eval(t, `(set-global $g 1) (def-function inspect ($a) (interpreter-test)) (inspect v)`)
	want := strings.Join([]string{
		strings.Repeat("-", 60),
		Product,
		" | (interpreter-test) invoked in local scope",
		" | command interpreter operating correctly",
		" | ",
		" +- local variables ",
		" |  +- a=[v]",
		" | ",
		" +- global variables ",
		"    +- g=[1]",
		"",
	}, "\n")
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("interpreter-test output mismatch (-want +got):\n%s", diff)
	}
}

func TestCancellation(t *testing.T) {
	f := newFixture(t, "(echo never)", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.ip.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if f.out.Len() != 0 {
		t.Errorf("output after cancellation: %q", f.out.String())
	}
}

func TestRegisterOverridesBuiltin(t *testing.T) {
	f := newFixture(t, "", nil)
	f.ip.Register(&Function{Name: "echo", Min: 0, Max: Unbounded, Handler: func(c *Call) (Value, error) {
		return "replaced", nil
	}})
	got, err := f.ip.Eval(context.Background(), "(echo a)", "")
	if err != nil || got != "replaced" {
		t.Errorf("Eval() = %#v, %v", got, err)
	}
	if _, ok := Builtins()["echo"]; !ok {
		t.Error("Builtins() lost echo")
	}
}

package graph

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/tapestry/tapestry/pkg/fault"
)

type owner struct {
	home, targets string
}

func (o *owner) Home() string { return o.home }

func (o *owner) ActualTarget(logical string) string {
	return o.targets + filepath.Base(logical)
}

type recorder struct {
	events []string
}

func (r *recorder) NotifyAddSource(n *Node, sources, targets int, action string) {
	r.events = append(r.events, "source "+n.Logical()+" "+action)
}

func (r *recorder) NotifyAddTarget(n *Node, sources, targets int, action string) {
	r.events = append(r.events, "target "+n.Logical()+" "+action)
}

func logicals(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Logical()
	}
	return out
}

func TestProduceIsIdempotent(t *testing.T) {
	g := New(nil, zerolog.Nop())
	a := g.Produce("/src/a.c")
	if b := g.Produce("/src/a.c"); a != b {
		t.Fatal("Produce() returned a different node for the same location")
	}
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
	if a.Filename() != "a.c" || a.Actual() != "/src/a.c" {
		t.Errorf("node = %s %s", a.Filename(), a.Actual())
	}
}

func TestFind(t *testing.T) {
	g := New(nil, zerolog.Nop())
	g.Produce("/x")

	n, err := g.Find("/x", true)
	if err != nil || n == nil {
		t.Fatalf("Find(/x) = %v, %v", n, err)
	}
	n, err = g.Find("/y", false)
	if err != nil || n != nil {
		t.Fatalf("Find(/y, false) = %v, %v", n, err)
	}
	_, err = g.Find("/y", true)
	if !fault.IsKind(err, fault.KindLocation) {
		t.Fatalf("Find(/y, true) error = %v, want location error", err)
	}
}

func TestIndexCollision(t *testing.T) {
	g := New(nil, zerolog.Nop())
	g.Produce("/x")
	if _, err := g.create("/x"); !fault.IsKind(err, fault.KindLocation) {
		t.Fatalf("create() error = %v, want location error", err)
	}
	if g.Len() != 1 {
		t.Errorf("Len() = %d after collision", g.Len())
	}
}

func TestReference(t *testing.T) {
	g := New(nil, zerolog.Nop())
	if !g.Reference("/a", "/b", "") {
		t.Error("first Reference() = false")
	}
	if g.Reference("/a", "/b", "") {
		t.Error("second Reference() = true")
	}
	if g.Reference("/a", "/a", "") {
		t.Error("self Reference() = true")
	}
	a := g.Produce("/a")
	if diff := cmp.Diff([]string{"/b"}, logicals(a.References())); diff != "" {
		t.Errorf("References() mismatch (-want +got):\n%s", diff)
	}
}

func TestReferenceManyOncePerAnalyzer(t *testing.T) {
	g := New(nil, zerolog.Nop())
	if !g.ReferenceMany("/a.c", []string{"/a.h", "/b.h"}, "includes") {
		t.Fatal("first ReferenceMany() = false")
	}
	if g.ReferenceMany("/a.c", []string{"/c.h"}, "includes") {
		t.Fatal("repeated analyzer ReferenceMany() = true")
	}
	a := g.Produce("/a.c")
	if !a.Analyzed("includes") || a.Analyzed("other") {
		t.Error("Analyzed() bookkeeping wrong")
	}
	if diff := cmp.Diff([]string{"/a.h", "/b.h"}, logicals(a.References())); diff != "" {
		t.Errorf("References() mismatch (-want +got):\n%s", diff)
	}
}

func TestLink(t *testing.T) {
	g := New(nil, zerolog.Nop())
	added, err := g.Link("/a.c", "/a.o", "cc")
	if err != nil || !added {
		t.Fatalf("Link() = %v, %v", added, err)
	}
	added, err = g.Link("/a.c", "/a.o", "cc")
	if err != nil || added {
		t.Fatalf("repeated Link() = %v, %v", added, err)
	}

	src, tgt := g.Produce("/a.c"), g.Produce("/a.o")
	if src.Target() {
		t.Error("source reports Target()")
	}
	if !tgt.Target() || tgt.Extension().Action() != "cc" {
		t.Error("target lost its action")
	}
	if got := src.Extension().ActionFor(tgt); got != "cc" {
		t.Errorf("ActionFor() = %q", got)
	}
	if diff := cmp.Diff([]string{"/a.c"}, logicals(tgt.Extension().Components())); diff != "" {
		t.Errorf("Components() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/a.o"}, logicals(src.Extension().TargetsBy("cc"))); diff != "" {
		t.Errorf("TargetsBy() mismatch (-want +got):\n%s", diff)
	}
}

func TestLinkSecondActionFails(t *testing.T) {
	g := New(nil, zerolog.Nop())
	if _, err := g.Link("/a.c", "/a.o", "cc"); err != nil {
		t.Fatal(err)
	}
	_, err := g.Link("/b.c", "/a.o", "as")
	if err == nil {
		t.Fatal("Link() with a second action succeeded")
	}
	tgt := g.Produce("/a.o")
	if diff := cmp.Diff([]string{"/a.c"}, logicals(tgt.Extension().Sources())); diff != "" {
		t.Errorf("Sources() mismatch (-want +got):\n%s", diff)
	}
}

func TestComponent(t *testing.T) {
	g := New(nil, zerolog.Nop())
	if !g.Component("/lib.a", "/app") {
		t.Error("first Component() = false")
	}
	if g.Component("/lib.a", "/app") {
		t.Error("second Component() = true")
	}
	if g.Produce("/app").Target() {
		t.Error("a component alone must not make a target")
	}
}

func TestObserversAreNotified(t *testing.T) {
	g := New(nil, zerolog.Nop())
	r := &recorder{}
	g.Produce("/a.c").Notify(r)
	g.Produce("/a.c").Notify(r)
	g.Produce("/a.o").Notify(r)

	if _, err := g.Link("/a.c", "/a.o", "cc"); err != nil {
		t.Fatal(err)
	}
	want := []string{"target /a.c cc", "source /a.o cc"}
	if diff := cmp.Diff(want, r.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestTouchAndUntouch(t *testing.T) {
	g := New(nil, zerolog.Nop())
	a, b := g.Produce("/a"), g.Produce("/b")
	a.Touch("analyzer")
	b.Touch("analyzer")
	a.Touch("build")

	g.Untouch("analyzer")
	if a.Touched("analyzer") || b.Touched("analyzer") {
		t.Error("Untouch() left a flag set")
	}
	if !a.Built() || b.Built() {
		t.Error("Untouch() changed an unrelated flag")
	}
}

func TestLockdown(t *testing.T) {
	o := &owner{home: "/src/", targets: "/out/"}
	g := New(func(location string) Owner {
		if strings.HasPrefix(location, "/src/") {
			return o
		}
		return nil
	}, zerolog.Nop())

	if _, err := g.Link("/src/a.c", "/src/a.o", "cc"); err != nil {
		t.Fatal(err)
	}
	g.Produce("/elsewhere/x")
	g.Lockdown()

	if got := g.Produce("/src/a.o").Actual(); got != "/out/a.o" {
		t.Errorf("target Actual() = %q, want /out/a.o", got)
	}
	if got := g.Produce("/src/a.c").Actual(); got != "/src/a.c" {
		t.Errorf("source Actual() = %q", got)
	}
	if got := g.Produce("/elsewhere/x").Owner(nil); got != nil {
		t.Errorf("Owner() = %v, want nil", got)
	}
	if got := g.Produce("/src/late").Owner(nil); got != o {
		t.Error("node created after lockdown has no owner")
	}
}

func TestOwnerBeforeLockdown(t *testing.T) {
	o := &owner{home: "/src/", targets: "/src/"}
	fallback := &owner{home: "/"}
	g := New(func(location string) Owner {
		if strings.HasPrefix(location, "/src/") {
			return o
		}
		return nil
	}, zerolog.Nop())

	if got := g.Produce("/src/a").Owner(fallback); got != o {
		t.Error("Owner() did not resolve before lockdown")
	}
	if got := g.Produce("/tmp/a").Owner(fallback); got != fallback {
		t.Error("Owner() did not use the fallback")
	}
}

func TestAttributes(t *testing.T) {
	g := New(nil, zerolog.Nop())
	n := g.Produce("/a")
	if n.HasAttribute("kind") || n.Attribute("kind") != "" {
		t.Fatal("unset attribute is not empty")
	}
	n.SetAttribute("kind", "header")
	if !n.HasAttribute("kind") || n.Attribute("kind") != "header" {
		t.Errorf("Attribute() = %v", n.Attribute("kind"))
	}
}

func TestNewer(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)

	write := func(name string, mtime time.Time) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
		return path
	}
	oldC := write("a.c", base.Add(-time.Hour))
	newH := write("a.h", base.Add(time.Minute))
	oldI := write("b.h", base.Add(-time.Hour))

	g := New(nil, zerolog.Nop())
	g.Reference(oldC, oldI, "")
	g.Reference(oldI, oldC, "")
	c := g.Produce(oldC)

	if c.Newer(base, true) {
		t.Error("old file with old references reported newer")
	}
	g.Reference(oldI, newH, "")
	if c.Newer(base, false) {
		t.Error("Newer() without references followed references")
	}
	if !c.Newer(base, true) {
		t.Error("Newer() missed a transitive reference")
	}
	if !g.Produce(filepath.Join(dir, "missing")).Modified().IsZero() {
		t.Error("missing file has a modification time")
	}
}

func TestToDOT(t *testing.T) {
	g := New(nil, zerolog.Nop())
	if _, err := g.Link("/a.c", "/a.o", "cc"); err != nil {
		t.Fatal(err)
	}
	g.Reference("/a.c", "/a.h", "")
	g.Component("/lib.a", "/a.o")

	dot := g.ToDOT(nil)
	for _, want := range []string{
		"digraph BuildGraph {",
		`n0 [label="/a.c"];`,
		`n0 -> n1 [style=solid, label="cc"];`,
		"n0 -> n2 [style=dashed];",
		"n3 -> n1 [style=dotted];",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() missing %q in:\n%s", want, dot)
		}
	}
}

func TestWriteTree(t *testing.T) {
	g := New(nil, zerolog.Nop())
	if _, err := g.Link("/a.c", "/a.o", "cc"); err != nil {
		t.Fatal(err)
	}
	g.Reference("/a.c", "/a.h", "")
	g.Reference("/a.h", "/a.c", "")

	var buf bytes.Buffer
	if err := WriteTree(&buf, g.Produce("/a.o"), nil); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"/a.o", "/a.c", "/a.h", "/a.c (cycle)"} {
		if !strings.Contains(out, want) {
			t.Errorf("WriteTree() missing %q in:\n%s", want, out)
		}
	}
}

// Package location resolves paths against a zone's directories.
//
// A Manager tracks three directories: the zone home, the target directory
// and the current directory. File operations resolve relative paths against
// the current directory held here rather than the process working directory,
// so several zones can interleave work safely.
package location

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tapestry/tapestry/pkg/fault"
)

// MaxBack is how many directories above a base a contracted path may climb.
const MaxBack = 3

// Manager holds the directories of one zone. Directory values always end
// with a slash.
type Manager struct {
	home    string
	targets string
	current string
}

// New creates a manager. home is resolved against the process working
// directory; targets is resolved against home.
func New(home, targets string) (*Manager, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fault.Wrap(fault.KindDirectory, "unable to determine working directory", err)
	}
	return NewFrom(wd, home, targets), nil
}

// NewFrom creates a manager whose home is resolved against base.
func NewFrom(base, home, targets string) *Manager {
	m := &Manager{home: Directory(home, base)}
	m.current = m.home
	if targets == "" {
		targets = m.home
	}
	m.targets = Directory(targets, m.home)
	return m
}

// Home returns the zone home directory.
func (m *Manager) Home() string { return m.home }

// Targets returns the zone target directory.
func (m *Manager) Targets() string { return m.targets }

// Current returns the directory relative paths resolve against.
func (m *Manager) Current() string { return m.current }

// Retargetted reports whether targets are placed outside the home directory.
func (m *Manager) Retargetted() bool { return m.home != m.targets }

// OffsetHome resolves path against the home directory.
func (m *Manager) OffsetHome(path string) string { return File(path, m.home) }

// OffsetTargets resolves path against the target directory.
func (m *Manager) OffsetTargets(path string) string { return File(path, m.targets) }

// OffsetCurrent resolves path against the current directory.
func (m *Manager) OffsetCurrent(path string) string { return File(path, m.current) }

// RelativeHome contracts path relative to the home directory.
func (m *Manager) RelativeHome(path string) string { return Contract(path, m.home) }

// RelativeTargets contracts path relative to the target directory.
func (m *Manager) RelativeTargets(path string) string { return Contract(path, m.targets) }

// RelativeCurrent contracts path relative to the current directory.
func (m *Manager) RelativeCurrent(path string) string { return Contract(path, m.current) }

// UseHome makes the home directory, or a directory below it, current.
func (m *Manager) UseHome(offset string) error {
	return m.use(m.OffsetHome(offset), false)
}

// UseTargets makes the target directory, or a directory below it, current,
// creating it when missing.
func (m *Manager) UseTargets(offset string) error {
	return m.use(m.OffsetTargets(offset), true)
}

// UseCurrent moves the current directory relative to itself.
func (m *Manager) UseCurrent(offset string) error {
	return m.use(m.OffsetCurrent(offset), false)
}

func (m *Manager) use(path string, create bool) error {
	info, err := os.Stat(path)
	if err != nil && create {
		if mkErr := os.MkdirAll(path, 0o755); mkErr != nil {
			return directoryError("unable to create directory", path)
		}
		info, err = os.Stat(path)
	}
	if err != nil || !info.IsDir() {
		return directoryError("unable to change directory", path)
	}
	m.current = Directory(path, "")
	return nil
}

func directoryError(details, path string) *fault.Error {
	return fault.New(fault.KindDirectory, details).With("path", path)
}

// String implements fmt.Stringer.
func (m *Manager) String() string {
	return fmt.Sprintf("home=%s targets=%s current=%s", m.home, m.targets, m.current)
}

// Directory expands path against relativeTo and returns it with a trailing
// slash. An empty relativeTo leaves a relative path unexpanded.
func Directory(path, relativeTo string) string {
	p := expand(path, relativeTo)
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// File expands path against relativeTo. Paths naming an existing directory
// get a trailing slash.
func File(path, relativeTo string) string {
	p := expand(path, relativeTo)
	if strings.HasSuffix(p, "/") {
		return p
	}
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		p += "/"
	}
	return p
}

func expand(path, relativeTo string) string {
	if relativeTo == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(relativeTo, path)
	}
	return filepath.Clean(path)
}

// Contract returns path relative to relativeTo when it lies inside it or
// within MaxBack directories above it; otherwise the absolute path.
func Contract(path, relativeTo string) string {
	base := Directory(relativeTo, "")
	normalized := File(path, base)

	for level := 0; level <= MaxBack; level++ {
		current := base
		if level > 0 {
			current = Directory(filepath.Join(base, strings.Repeat("../", level)), "")
		}
		if strings.HasPrefix(normalized, current) {
			return strings.Repeat("../", level) + normalized[len(current):]
		}
	}
	return normalized
}

// Absolute reports whether path is absolute.
func Absolute(path string) bool {
	return filepath.IsAbs(path)
}

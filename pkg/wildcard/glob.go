package wildcard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Glob returns the filesystem paths matching pattern. Relative patterns are
// resolved against dir and their results are returned relative to dir.
// Entries whose name starts with a dot are skipped unless the pattern names
// hidden files explicitly.
func Glob(dir, pattern string) ([]string, error) {
	abs := pattern
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(dir, pattern)
	}

	if Count(abs) == 0 {
		if _, err := os.Stat(unescape(abs)); err != nil {
			return []string{}, nil
		}
		return []string{pattern}, nil
	}

	src, _ := translate(abs)
	re, err := regexp.Compile(`\A` + src + `\z`)
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}

	root, depth := globRoot(abs)
	hidden := strings.Contains(pattern, "/.") || strings.HasPrefix(pattern, ".")

	matches := []string{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return nil
		}
		if path == root {
			return nil
		}
		if !hidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if re.MatchString(path) {
			if filepath.IsAbs(pattern) {
				matches = append(matches, path)
			} else if rel, relErr := filepath.Rel(dir, path); relErr == nil {
				matches = append(matches, rel)
			}
		}
		if d.IsDir() && depth >= 0 && segments(root, path) >= depth {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// globRoot returns the deepest directory of abs free of wildcards, and how
// many more segments a match may have, or -1 when "**/" allows any depth.
func globRoot(abs string) (string, int) {
	segs := strings.Split(abs, "/")
	i := 0
	for i < len(segs) && Count(segs[i]) == 0 {
		i++
	}
	root := strings.Join(segs[:i], "/")
	if root == "" {
		root = "/"
	}
	if strings.Contains(abs, "**/") {
		return unescape(root), -1
	}
	return unescape(root), len(segs) - i
}

func segments(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}

func unescape(s string) string {
	var b strings.Builder
	for _, p := range scan(s) {
		if len(p.text) == 2 && p.text[0] == '\\' {
			b.WriteString(p.text[1:])
			continue
		}
		b.WriteString(p.text)
	}
	return b.String()
}

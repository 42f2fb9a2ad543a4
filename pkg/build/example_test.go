package build_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tapestry/tapestry/pkg/build"
)

func ExampleSession_Run() {
	dir, err := os.MkdirTemp("", "tapestry-example")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer os.RemoveAll(dir)

	buildfile := `
(def-production cc 0 *.c *.o)
(def-action each cc (write $target (l "compiled from" $source) true))
(def-sources main.c util.c)
(def-macro clean (system rm -f (wildcard-glob *.o)))
`
	_ = os.WriteFile(filepath.Join(dir, "Buildfile"), []byte(buildfile), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "main.c"), nil, 0o644)
	_ = os.WriteFile(filepath.Join(dir, "util.c"), nil, 0o644)

	s, err := build.NewSession(build.Options{Home: dir, Environ: []string{}, Stdout: os.Stdout})
	if err != nil {
		fmt.Println(err)
		return
	}
	count, err := s.Run(context.Background(), nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("built", count)
	fmt.Println("macros", s.Root().Macros())

	data, _ := os.ReadFile(filepath.Join(dir, "main.o"))
	fmt.Print(string(data))
	// Output:
	// built 2
	// macros [clean]
	// compiled from
	// main.c
}

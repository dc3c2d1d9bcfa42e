// Package datafile locates input files across a list of search directories.
package datafile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDirs are searched when no directories are configured.
var DefaultDirs = []string{"../data", "data"}

// ErrNotFound is returned when a data file exists in none of the search directories.
var ErrNotFound = errors.New("data file not found")

// NotFoundError names every path that was tried.
type NotFoundError struct {
	Name  string
	Tried []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found (tried %s)", e.Name, strings.Join(e.Tried, ", "))
}

// Is lets errors.Is match ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Resolve returns the first existing dir/name over dirs. An absolute name or
// one containing a directory is checked as given first.
func Resolve(name string, dirs []string) (string, error) {
	if len(dirs) == 0 {
		dirs = DefaultDirs
	}

	var candidates []string
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		candidates = append(candidates, name)
	}
	for _, d := range dirs {
		candidates = append(candidates, filepath.Join(d, name))
	}

	for _, p := range candidates {
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", &NotFoundError{Name: name, Tried: candidates}
}

// Sidecars lists the companion files a shapefile needs next to its .shp.
var Sidecars = []string{".shx", ".dbf"}

// ResolveShapefile resolves a .shp and checks its required sidecars sit
// beside it.
func ResolveShapefile(name string, dirs []string) (string, error) {
	p, err := Resolve(name, dirs)
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(p, filepath.Ext(p))
	var missing []string
	for _, ext := range Sidecars {
		if _, err := os.Stat(base + ext); err != nil {
			missing = append(missing, base+ext)
		}
	}
	if len(missing) > 0 {
		return "", &NotFoundError{Name: filepath.Base(base) + strings.Join(Sidecars, "/"), Tried: missing}
	}
	return p, nil
}

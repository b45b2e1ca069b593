// Package filefinder resolves logical asset names to files across a list of
// root directories, the first root containing the file winning.
package filefinder

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"
)

type Finder struct {
	// Roots are searched in order.
	Roots []string
}

func New(roots ...string) *Finder {
	return &Finder{Roots: roots}
}

// Find looks for <root>/<category>/<rel>.<ext> in every root and returns
// the first regular file found. rel cannot escape the category directory.
func (f *Finder) Find(category, rel, ext string) (string, bool) {
	if f == nil {
		return "", false
	}
	name := path.Clean("/" + filepath.ToSlash(rel))
	if name == "/" {
		return "", false
	}
	if ext != "" {
		name += "." + strings.TrimPrefix(ext, ".")
	}
	for _, root := range f.Roots {
		candidate := filepath.Join(root, filepath.FromSlash(category), filepath.FromSlash(name))
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return candidate, true
			}
			return abs, true
		}
	}
	return "", false
}

// IncludePaths returns the category directory inside every root, in root order.
func (f *Finder) IncludePaths(category string) []string {
	if f == nil {
		return nil
	}
	paths := make([]string, 0, len(f.Roots))
	for _, root := range f.Roots {
		paths = append(paths, filepath.Join(root, filepath.FromSlash(category)))
	}
	return paths
}

// Render returns the contents of the file at filename. If vars is not
// empty, the contents are executed as a text/template with vars as data,
// so a stylesheet can use e.g. {{.headerColor}}.
func Render(filename string, vars map[string]any) (string, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	if len(vars) == 0 {
		return string(b), nil
	}
	tmpl, err := template.New(filepath.Base(filename)).Parse(string(b))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", filename, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render %s: %w", filename, err)
	}
	return buf.String(), nil
}

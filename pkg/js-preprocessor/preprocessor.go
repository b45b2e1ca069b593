// Package jspreprocessor concatenates JavaScript sources by following
// directive comments such as
//
//	//= require "widgets/menu"
//	//= assume <jquery>
//
// Every resolved file is emitted at most once per run.
package jspreprocessor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	filefinder "github.com/ericselin/asset-cache/pkg/file-finder"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is matched by every ResolutionError.
var ErrNotFound = errors.New("javascript dependency not found")

const directiveMarker = "//="

var directiveRe = regexp.MustCompile(`^\s*//=[ \t]+([a-z]+)[ \t]+(?:"(.*?)"|<(.*?)>)\s*$`)

type Command int

const (
	// Requires inlines the expanded file in place of the directive.
	Requires Command = iota + 1
	// Assumes expands the file only to mark its dependencies as included.
	Assumes
)

var commandAliases = map[string]Command{
	"require":  Requires,
	"requires": Requires,
	"include":  Requires,
	"includes": Requires,
	"assume":   Assumes,
	"assumes":  Assumes,
}

type Directive struct {
	Command Command
	Path    string
	// Search is set for <path> directives, which are looked up in the
	// include paths instead of next to the including file.
	Search bool
}

// ParseDirective parses a single directive line. It returns false for lines
// that are not well formed directives, including unknown commands.
func ParseDirective(line string) (Directive, bool) {
	m := directiveRe.FindStringSubmatch(line)
	if m == nil {
		return Directive{}, false
	}
	cmd, ok := commandAliases[m[1]]
	if !ok {
		return Directive{}, false
	}
	d := Directive{Command: cmd, Path: m[2]}
	if strings.HasSuffix(strings.TrimSpace(line), ">") {
		d.Path = m[3]
		d.Search = true
	}
	return d, true
}

// ResolutionError is returned when a directive path cannot be found.
type ResolutionError struct {
	// Context is the file containing the directive.
	Context     string
	Path        string
	SearchPaths []string
}

func (e *ResolutionError) Error() string {
	if len(e.SearchPaths) > 0 {
		return fmt.Sprintf("error in %s: %s could not be found in %s",
			e.Context, e.Path, strings.Join(e.SearchPaths, string(os.PathListSeparator)))
	}
	return fmt.Sprintf("error in %s: %s does not exist", e.Context, e.Path)
}

func (e *ResolutionError) Unwrap() error { return ErrNotFound }

// Included is the set of resolved absolute paths already processed in a run.
type Included map[string]struct{}

func (in Included) Has(file string) bool {
	_, ok := in[file]
	return ok
}

func (in Included) Add(file string) { in[file] = struct{}{} }

type Preprocessor struct {
	// IncludePaths are searched in order for <path> directives.
	IncludePaths []string
	// Vars are substituted into every file when it is loaded.
	Vars map[string]any
	// Extension is appended to directive paths. Defaults to ".js".
	Extension string
	Logger    *zerolog.Logger
}

// Load expands entryFile and everything it requires.
func (p *Preprocessor) Load(ctx context.Context, entryFile string) (string, error) {
	entry, err := canonical(entryFile)
	if err != nil {
		return "", err
	}
	included := Included{}
	included.Add(entry)
	return p.expand(ctx, entry, included)
}

func (p *Preprocessor) expand(ctx context.Context, file string, included Included) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, err := filefinder.Render(file, p.Vars)
	if err != nil {
		return "", err
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), directiveMarker) {
			continue
		}
		d, ok := ParseDirective(line)
		if !ok {
			continue
		}
		resolved, err := p.resolve(file, d)
		if err != nil {
			return "", err
		}
		if included.Has(resolved) {
			p.logger().Trace().Str("file", resolved).Str("context", file).Msg("Already included")
			lines[i] = ""
			continue
		}
		included.Add(resolved)

		expanded, err := p.expand(ctx, resolved, included)
		if err != nil {
			return "", err
		}
		switch d.Command {
		case Requires:
			lines[i] = expanded
		case Assumes:
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (p *Preprocessor) resolve(including string, d Directive) (string, error) {
	ext := p.Extension
	if ext == "" {
		ext = ".js"
	}
	name := filepath.FromSlash(d.Path + ext)

	if d.Search {
		for _, dir := range p.IncludePaths {
			candidate := filepath.Join(dir, name)
			if exists(candidate) {
				return canonical(candidate)
			}
		}
		return "", &ResolutionError{Context: including, Path: name, SearchPaths: p.IncludePaths}
	}

	candidate := name
	if !filepath.IsAbs(name) {
		candidate = filepath.Join(filepath.Dir(including), name)
	}
	if !exists(candidate) {
		return "", &ResolutionError{Context: including, Path: candidate}
	}
	return canonical(candidate)
}

func (p *Preprocessor) logger() *zerolog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return &log.Logger
}

func exists(name string) bool {
	info, err := os.Stat(name)
	return err == nil && !info.IsDir()
}

// canonical returns the absolute, symlink-free form of name.
func canonical(name string) (string, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

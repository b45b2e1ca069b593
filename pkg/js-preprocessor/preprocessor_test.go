package jspreprocessor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestParseDirective(t *testing.T) {
	cases := []struct {
		line string
		want Directive
		ok   bool
	}{
		{`//= require "lib/a"`, Directive{Requires, "lib/a", false}, true},
		{`  //=   includes   <vendor/jquery>  `, Directive{Requires, "vendor/jquery", true}, true},
		{"//=\tassume\t\"b\"", Directive{Assumes, "b", false}, true},
		{`//= assumes <c>`, Directive{Assumes, "c", true}, true},
		{`//= frobnicate "a"`, Directive{}, false},
		{`//=require "a"`, Directive{}, false},
		{`//= require a`, Directive{}, false},
		{`//= require "a" trailing`, Directive{}, false},
		{`//= Require "a"`, Directive{}, false},
	}
	for _, c := range cases {
		got, ok := ParseDirective(c.line)
		require.Equal(t, c.ok, ok, "ParseDirective(%q)", c.line)
		require.Equal(t, c.want, got, "ParseDirective(%q)", c.line)
	}
}

func TestLoadInlinesRequiresOnce(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"entry.js": "//= require \"dep\"\n//= require \"other\"\nentry();",
		"other.js": "//= require \"dep\"\nother();",
		"dep.js":   "dep();",
	})

	p := &Preprocessor{}
	out, err := p.Load(context.Background(), filepath.Join(dir, "entry.js"))
	require.NoError(t, err)
	require.Equal(t, "dep();\n\nother();\nentry();", out)
}

func TestLoadAssumesEmitsNothing(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"entry.js":     "//= assume \"framework\"\n//= require \"framework\"\n//= require \"lib/core\"\napp();",
		"framework.js": "//= require \"lib/core\"\nframework();",
		"lib/core.js":  "core();",
	})

	p := &Preprocessor{}
	out, err := p.Load(context.Background(), filepath.Join(dir, "entry.js"))
	require.NoError(t, err)
	require.Equal(t, "\n\n\napp();", out)
}

func TestLoadSearchesIncludePathsInOrder(t *testing.T) {
	app, module := t.TempDir(), t.TempDir()
	writeFiles(t, app, map[string]string{"util.js": "appUtil();"})
	writeFiles(t, module, map[string]string{
		"util.js":  "moduleUtil();",
		"extra.js": "extra();",
	})
	src := t.TempDir()
	writeFiles(t, src, map[string]string{"main.js": "//= require <util>\n//= require <extra>\nmain();"})

	p := &Preprocessor{IncludePaths: []string{app, module}}
	out, err := p.Load(context.Background(), filepath.Join(src, "main.js"))
	require.NoError(t, err)
	require.Equal(t, "appUtil();\nextra();\nmain();", out)
}

func TestLoadResolvesRelativeToIncludingFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.js":         "//= require \"widgets/menu\"\nmain();",
		"widgets/menu.js": "//= require \"item\"\nmenu();",
		"widgets/item.js": "item();",
		"item.js":         "wrongItem();",
	})

	p := &Preprocessor{}
	out, err := p.Load(context.Background(), filepath.Join(dir, "main.js"))
	require.NoError(t, err)
	require.Equal(t, "item();\nmenu();\nmain();", out)
}

func TestLoadBreaksCycles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.js": "//= require \"b\"\na();",
		"b.js": "//= require \"a\"\nb();",
	})

	p := &Preprocessor{}
	out, err := p.Load(context.Background(), filepath.Join(dir, "a.js"))
	require.NoError(t, err)
	require.Equal(t, "\nb();\na();", out)
}

func TestLoadLeavesUnparseableDirectives(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.js": "//= this is a comment\n//= frobnicate \"x\"\nmain();",
	})

	p := &Preprocessor{}
	out, err := p.Load(context.Background(), filepath.Join(dir, "main.js"))
	require.NoError(t, err)
	require.Equal(t, "//= this is a comment\n//= frobnicate \"x\"\nmain();", out)
}

func TestLoadSubstitutesVars(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.js":   "//= require \"config\"\nstart();",
		"config.js": "var api = \"{{.api}}\";",
	})

	p := &Preprocessor{Vars: map[string]any{"api": "https://api.example.com"}}
	out, err := p.Load(context.Background(), filepath.Join(dir, "main.js"))
	require.NoError(t, err)
	require.Equal(t, "var api = \"https://api.example.com\";\nstart();", out)
}

func TestLoadReportsMissingDependency(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"quoted.js": "//= require \"missing\"",
		"angle.js":  "//= require <missing>",
	})

	p := &Preprocessor{IncludePaths: []string{filepath.Join(dir, "lib")}}

	_, err := p.Load(context.Background(), filepath.Join(dir, "quoted.js"))
	require.ErrorIs(t, err, ErrNotFound)
	var rerr *ResolutionError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, "missing.js", filepath.Base(rerr.Path))
	require.Empty(t, rerr.SearchPaths)

	_, err = p.Load(context.Background(), filepath.Join(dir, "angle.js"))
	require.ErrorIs(t, err, ErrNotFound)
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, []string{filepath.Join(dir, "lib")}, rerr.SearchPaths)
	require.Contains(t, err.Error(), "could not be found in")
}

func TestLoadCustomExtension(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"main.mjs": "//= require \"dep\"\nmain();",
		"dep.mjs":  "dep();",
	})

	p := &Preprocessor{Extension: ".mjs"}
	out, err := p.Load(context.Background(), filepath.Join(dir, "main.mjs"))
	require.NoError(t, err)
	require.Equal(t, "dep();\nmain();", out)
}

func TestLoadHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"main.js": "main();"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &Preprocessor{}
	_, err := p.Load(ctx, filepath.Join(dir, "main.js"))
	require.ErrorIs(t, err, context.Canceled)
}

package assetcache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ericselin/asset-cache/cache"
	"github.com/ericselin/asset-cache/pkg/minifier"

	"github.com/rs/zerolog"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		filename := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filename, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// newTestCache creates an asset cache rooted in a temp dir holding files.
func newTestCache(t *testing.T, files map[string]string, configure func(*Config)) *AssetCache {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, files)

	logger := zerolog.Nop()
	config := DefaultConfig()
	config.Logger = &logger
	config.Server.Roots = []string{root}
	config.Server.CacheDir = filepath.Join(t.TempDir(), "cache")
	if configure != nil {
		configure(&config)
	}

	a, err := New(config)
	if err != nil {
		t.Fatalf("Could not create asset cache: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func get(a *AssetCache, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.ServeHTTP(rr, httptest.NewRequest("GET", target, nil))
	return rr
}

func TestCSSIsServedFromCacheOnSecondRequest(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"css/main.css": "body{color:red}",
	}, func(c *Config) {
		c.CSS.Cache = true
	})

	rr := get(a, "/assets/css/main.css")
	if rr.Code != http.StatusOK {
		t.Fatalf("Status is %d with body %s", rr.Code, rr.Body)
	}
	if cs := rr.Header().Get("Cache-Status"); cs != "Asset-Cache; fwd=uri-miss; stored" {
		t.Fatalf("Cache-Status is '%s'", cs)
	}

	// change the file, the cached version should still be served
	writeFiles(t, a.config.Server.Roots[0], map[string]string{"css/main.css": "body{color:blue}"})

	rr = get(a, "/assets/css/main.css")
	if cs := rr.Header().Get("Cache-Status"); cs != "Asset-Cache; hit" {
		t.Fatalf("Cache-Status is '%s'", cs)
	}
	if body := rr.Body.String(); body != "body{color:red}" {
		t.Fatalf("Body is %s", body)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/css" {
		t.Fatalf("Content-Type is %s", ct)
	}
}

func TestCSSCacheFileLayout(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"css/main.css": "body{color:red}",
	}, func(c *Config) {
		c.CSS.Cache = true
	})

	get(a, "/assets/css/main.css?v=2")

	filename := filepath.Join(a.config.Server.CacheDir, cache.ShardedName("/assets/css/main.css?v=2"))
	b, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("Cache file not written: %v", err)
	}
	if string(b) != "body{color:red}" {
		t.Fatalf("Cache file contains %s", b)
	}
}

func TestCSSImportsAreAggregated(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"css/main.css":  "@import \"reset.css\";\nbody{background:url(../img/bg.png);}",
		"css/reset.css": "html{margin:0;}",
	}, func(c *Config) {
		c.CSS.ProcessImports = true
	})

	rr := get(a, "http://example.com/assets/css/main.css")
	if rr.Code != http.StatusOK {
		t.Fatalf("Status is %d with body %s", rr.Code, rr.Body)
	}
	expected := "html{margin:0;}\nbody{background:url(\"/assets/img/bg.png\");}"
	if body := rr.Body.String(); body != expected {
		t.Fatalf("Body is %q", body)
	}
	if cs := rr.Header().Get("Cache-Status"); cs != "Asset-Cache; fwd=bypass" {
		t.Fatalf("Cache-Status is '%s'", cs)
	}
}

func TestCSSImportsUseConfiguredBaseURL(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"css/main.css":    "@import url(\"/assets/css/fonts/a.css\");\nmain{}",
		"css/fonts/a.css": "@font-face{src:url(a.woff)}",
	}, func(c *Config) {
		c.Server.BaseURL = "https://cdn.example.org"
		c.CSS.ProcessImports = true
	})

	rr := get(a, "/assets/css/main.css")
	expected := "@font-face{src:url(\"/assets/css/fonts/a.woff\")}\nmain{}"
	if body := rr.Body.String(); body != expected {
		t.Fatalf("Body is %q", body)
	}
}

func TestCSSVarsAreRendered(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"css/theme.css": "h1{color:{{.headerColor}}}",
	}, func(c *Config) {
		c.CSS.Vars = map[string]any{"headerColor": "#333"}
	})

	rr := get(a, "/assets/css/theme.css")
	if body := rr.Body.String(); body != "h1{color:#333}" {
		t.Fatalf("Body is %s", body)
	}
}

func TestJavaScriptDependenciesAreInlinedOnce(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"javascript/app.js":      "//= require \"lib/util\"\n//= require <vendor>\napp();",
		"javascript/lib/util.js": "util();",
		"javascript/vendor.js":   "//= require \"lib/util\"\nvendor();",
	}, nil)

	rr := get(a, "/assets/javascript/app.js")
	if rr.Code != http.StatusOK {
		t.Fatalf("Status is %d with body %s", rr.Code, rr.Body)
	}
	if body := rr.Body.String(); body != "util();\n\nvendor();\napp();" {
		t.Fatalf("Body is %q", body)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/x-javascript" {
		t.Fatalf("Content-Type is %s", ct)
	}
}

func TestJavaScriptAssumes(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"javascript/page.js": "//= assume <base>\n//= require <base>\n//= require <dep>\npage();",
		"javascript/base.js": "//= require <dep>\nbase();",
		"javascript/dep.js":  "dep();",
	}, nil)

	rr := get(a, "/assets/javascript/page.js")
	if body := rr.Body.String(); body != "\n\n\npage();" {
		t.Fatalf("Body is %q", body)
	}
}

func TestNotFound(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"javascript/app.js": "//= require \"missing\"\napp();",
	}, nil)

	for _, target := range []string{
		"/assets/css/missing.css",
		"/assets/css/noext",
		"/assets/javascript/missing.js",
		"/assets/javascript/app.js",
		"/assets/unknown/file.css",
	} {
		if rr := get(a, target); rr.Code != http.StatusNotFound {
			t.Fatalf("Status for %s is %d", target, rr.Code)
		}
	}
}

func TestOnlySuccessesAreCached(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"javascript/app.js": "//= require \"missing\"\napp();",
	}, func(c *Config) {
		c.JavaScript.Cache = true
		c.JavaScript.CacheMode = CacheModeMemory
	})

	get(a, "/assets/javascript/app.js")
	get(a, "/assets/javascript/other.js")

	if n := a.stores[CacheModeMemory].(*cache.MemoryStore).Len(); n != 0 {
		t.Fatalf("Cache has %d entries", n)
	}
}

func TestCategoriesShareStores(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"css/main.css":      "main{}",
		"javascript/app.js": "app();",
	}, func(c *Config) {
		c.CSS.Cache = true
		c.CSS.CacheMode = CacheModeMemory
		c.JavaScript.Cache = true
		c.JavaScript.CacheMode = CacheModeMemory
	})

	get(a, "/assets/css/main.css")
	get(a, "/assets/javascript/app.js")

	if len(a.stores) != 1 {
		t.Fatalf("Got %d stores", len(a.stores))
	}
	if n := a.stores[CacheModeMemory].(*cache.MemoryStore).Len(); n != 2 {
		t.Fatalf("Cache has %d entries", n)
	}
}

func TestSQLiteCacheMode(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"css/main.css": "main{}",
	}, func(c *Config) {
		c.Server.SQLitePath = filepath.Join(t.TempDir(), "cache.db")
		c.CSS.Cache = true
		c.CSS.CacheMode = CacheModeSQLite
	})

	get(a, "/assets/css/main.css")
	rr := get(a, "/assets/css/main.css")
	if cs := rr.Header().Get("Cache-Status"); cs != "Asset-Cache; hit" {
		t.Fatalf("Cache-Status is '%s'", cs)
	}
	if body := rr.Body.String(); body != "main{}" {
		t.Fatalf("Body is %s", body)
	}
}

func TestCompression(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"css/main.css":      "/* header */\nbody {\n  color: red;\n}\n",
		"javascript/app.js": "// comment\nvar a = 1;\n",
	}, func(c *Config) {
		c.CSS.Compress = true
		c.JavaScript.Compress = true
		c.JavaScript.CompressConfig = minifier.Config{Type: minifier.TypeMinify}
	})

	if body := get(a, "/assets/css/main.css").Body.String(); body != "body{color:red}" {
		t.Fatalf("CSS body is %q", body)
	}
	if body := get(a, "/assets/javascript/app.js").Body.String(); body != "var a=1" {
		t.Fatalf("JS body is %q", body)
	}
}

func TestUnknownCompressionType(t *testing.T) {
	config := DefaultConfig()
	config.CSS.Compress = true
	config.CSS.CompressConfig.Type = "packer"
	if _, err := New(config); !errors.Is(err, ErrConfig) {
		t.Fatalf("Expected config error, got %v", err)
	}
}

func TestUnknownCacheMode(t *testing.T) {
	config := DefaultConfig()
	config.JavaScript.Cache = true
	config.JavaScript.CacheMode = "tape"
	if _, err := New(config); !errors.Is(err, ErrConfig) {
		t.Fatalf("Expected config error, got %v", err)
	}
}

func TestDocRootMode(t *testing.T) {
	docRoot := t.TempDir()
	a := newTestCache(t, map[string]string{
		"css/main.css":  "main{}",
		"css/other.css": "other{}",
	}, func(c *Config) {
		c.Server.DocRoot = docRoot
		c.Server.URLRewriting = true
		c.CSS.Cache = true
		c.CSS.CacheMode = CacheModeDocRoot
	})
	writeFiles(t, docRoot, map[string]string{"assets/css/other.css": "stale{}"})

	rr := get(a, "/assets/css/main.css")
	if rr.Code != http.StatusOK {
		t.Fatalf("Status is %d with body %s", rr.Code, rr.Body)
	}
	b, err := os.ReadFile(filepath.Join(docRoot, "assets", "css", "main.css"))
	if err != nil || string(b) != "main{}" {
		t.Fatalf("Materialized file is %s (%v)", b, err)
	}

	// never overwrite a file in the document root
	if rr := get(a, "/assets/css/other.css"); rr.Code != http.StatusNotFound {
		t.Fatalf("Status is %d", rr.Code)
	}
	if b, _ := os.ReadFile(filepath.Join(docRoot, "assets", "css", "other.css")); string(b) != "stale{}" {
		t.Fatalf("File was overwritten with %s", b)
	}
}

func TestDocRootModeNeedsRewriting(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"css/main.css": "main{}",
	}, func(c *Config) {
		c.Server.DocRoot = t.TempDir()
		c.CSS.Cache = true
		c.CSS.CacheMode = CacheModeDocRoot
	})

	if rr := get(a, "/assets/css/main.css"); rr.Code != http.StatusInternalServerError {
		t.Fatalf("Status is %d", rr.Code)
	}
}

func TestStaticRoute(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"swf/player.swf": "FWS\x0a",
	}, func(c *Config) {
		c.Routes = []StaticRoute{{
			Pattern: "/assets/flash-plugins/<plugin>.swf",
			File:    "swf/<plugin>.swf",
		}}
	})

	rr := get(a, "/assets/flash-plugins/player.swf")
	if rr.Code != http.StatusOK {
		t.Fatalf("Status is %d with body %s", rr.Code, rr.Body)
	}
	if body := rr.Body.String(); body != "FWS\x0a" {
		t.Fatalf("Body is %q", body)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/x-shockwave-flash" {
		t.Fatalf("Content-Type is %s", ct)
	}

	if rr := get(a, "/assets/flash-plugins/missing.swf"); rr.Code != http.StatusNotFound {
		t.Fatalf("Status is %d", rr.Code)
	}
}

func TestStaticTarget(t *testing.T) {
	h := &staticHandler{route: StaticRoute{File: "swf/<plugin>/<name>.swf"}}
	target := h.Target(map[string]string{"plugin": "video", "name": "player"})
	if target != "swf/video/player.swf" {
		t.Fatalf("Target is %s", target)
	}
	if p := chiPattern("/assets/<a>/<b>.swf"); p != "/assets/{a}/{b}.swf" {
		t.Fatalf("Pattern is %s", p)
	}
}

func TestRulesAreApplied(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"css/main.css": "main{}",
	}, func(c *Config) {
		c.CSS.Cache = true
		c.Rules = Rules{{Prefix: "/assets/css/", Override: "public, max-age=31536000"}}
	})

	for i := 0; i < 2; i++ {
		rr := get(a, "/assets/css/main.css")
		if cc := rr.Header().Get("Cache-Control"); cc != "public, max-age=31536000" {
			t.Fatalf("Cache-Control is '%s' on request %d", cc, i)
		}
	}
	if cc := get(a, "/assets/css/missing.css").Header().Get("Cache-Control"); cc != "" {
		t.Fatalf("Cache-Control on 404 is '%s'", cc)
	}
}

func TestWarm(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"css/main.css": "main{}",
	}, func(c *Config) {
		c.CSS.Cache = true
		c.CSS.CacheMode = CacheModeMemory
	})

	if err := a.Warm(context.Background(), "/assets/css/main.css"); err != nil {
		t.Fatal(err)
	}
	if cs := get(a, "/assets/css/main.css").Header().Get("Cache-Status"); cs != "Asset-Cache; hit" {
		t.Fatalf("Cache-Status is '%s'", cs)
	}
	if err := a.Warm(context.Background(), "/assets/css/missing.css"); err == nil {
		t.Fatal("Expected error warming missing asset")
	}
}

func TestBuildSkipsCache(t *testing.T) {
	a := newTestCache(t, map[string]string{
		"css/main.css":      "main{}",
		"javascript/app.js": "app();",
	}, func(c *Config) {
		c.CSS.Cache = true
		c.CSS.CacheMode = CacheModeMemory
	})

	body, err := a.Build(context.Background(), KindCSS, "main.css")
	if err != nil || string(body) != "main{}" {
		t.Fatalf("Body is %s (%v)", body, err)
	}
	if n := a.stores[CacheModeMemory].(*cache.MemoryStore).Len(); n != 0 {
		t.Fatalf("Cache has %d entries", n)
	}
	body, err = a.Build(context.Background(), KindJavaScript, "app")
	if err != nil || string(body) != "app();" {
		t.Fatalf("Body is %s (%v)", body, err)
	}
	if _, err := a.Build(context.Background(), KindJavaScript, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected not found, got %v", err)
	}
	if _, err := a.Build(context.Background(), "images", "x"); err == nil {
		t.Fatal("Expected error for unknown kind")
	}
}

func TestRecover(t *testing.T) {
	a := &AssetCache{log: zerolog.Nop()}
	rr := httptest.NewRecorder()
	func() {
		defer a.recover(rr, httptest.NewRequest("GET", "/assets/css/main.css", nil))
		panic("boom")
	}()
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Status is %d", rr.Code)
	}
}

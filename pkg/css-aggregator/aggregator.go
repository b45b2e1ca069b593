// Package cssaggregator inlines @import'ed stylesheets into a single
// stylesheet, rewriting url(...) references so they stay correct.
package cssaggregator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	urlresolver "github.com/ericselin/asset-cache/pkg/url-resolver"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	bareImportRe = regexp.MustCompile(`@import\s+(?:"([^"]+)"|'([^']+)')`)
	// non-greedy up to the first ")" not preceded by a backslash
	urlRe    = regexp.MustCompile(`url\(.*?[^\\]\)`)
	importRe = regexp.MustCompile(`^\s*@import\s+url\("([^"]+)"\)`)
)

// Loader loads the stylesheet at url. It returns handled == false to let the
// aggregator fetch the url itself.
type Loader func(ctx context.Context, url string) (text string, handled bool, err error)

// Fetcher loads any url the Loader did not handle.
type Fetcher func(ctx context.Context, url string) (string, error)

type Options struct {
	// Root, if set, turns absolute urls on the same origin as Root back into
	// root-relative ones ("/img/bg.png") once aggregation is done.
	Root string
	// Loader is tried before Fetcher for every stylesheet.
	Loader Loader
	// Fetcher defaults to DefaultFetcher.
	Fetcher Fetcher
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

type aggregation struct {
	opts     Options
	log      zerolog.Logger
	imported map[string]struct{}
}

// Aggregate loads the stylesheet at entryURL and recursively inlines every
// "@import url(...)" line, each imported stylesheet at most once.
func Aggregate(ctx context.Context, entryURL string, opts Options) (string, error) {
	if opts.Fetcher == nil {
		opts.Fetcher = DefaultFetcher
	}
	a := &aggregation{
		opts:     opts,
		imported: map[string]struct{}{entryURL: {}},
	}
	if opts.Logger != nil {
		a.log = *opts.Logger
	} else {
		a.log = log.Logger
	}

	output, err := a.importURL(ctx, entryURL)
	if err != nil {
		return "", err
	}
	if opts.Root != "" {
		output = relativize(output, opts.Root)
	}
	return output, nil
}

func (a *aggregation) importURL(ctx context.Context, u string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	contents, err := a.load(ctx, u)
	if err != nil {
		return "", err
	}
	contents = MakeURLsAbsolute(contents, u)

	if !strings.Contains(contents, "@import") {
		return contents, nil
	}
	lines := strings.Split(contents, "\n")
	for i, line := range lines {
		m := importRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		target := m[1]
		if _, seen := a.imported[target]; seen {
			a.log.Trace().Str("url", target).Msg("Dropping duplicate import")
			lines[i] = ""
			continue
		}
		a.imported[target] = struct{}{}
		a.log.Trace().Str("url", target).Str("from", u).Msg("Inlining import")
		imported, err := a.importURL(ctx, target)
		if err != nil {
			return "", err
		}
		lines[i] = imported
	}
	return strings.Join(lines, "\n"), nil
}

func (a *aggregation) load(ctx context.Context, u string) (string, error) {
	if a.opts.Loader != nil {
		text, handled, err := a.opts.Loader(ctx, u)
		if err != nil {
			return "", err
		}
		if handled {
			return text, nil
		}
	}
	text, err := a.opts.Fetcher(ctx, u)
	if err != nil {
		return "", fmt.Errorf("load stylesheet %s: %w", u, err)
	}
	return text, nil
}

// MakeURLsAbsolute wraps bare `@import "x"` strings in url() and resolves
// every url(...) reference in contents against base. Each distinct literal
// is resolved once.
func MakeURLsAbsolute(contents, base string) string {
	contents = bareImportRe.ReplaceAllStringFunc(contents, func(s string) string {
		m := bareImportRe.FindStringSubmatch(s)
		return `@import url("` + m[1] + m[2] + `")`
	})

	resolved := make(map[string]string)
	return urlRe.ReplaceAllStringFunc(contents, func(literal string) string {
		if r, ok := resolved[literal]; ok {
			return r
		}
		u := strings.Trim(literal[len("url("):len(literal)-1], `"' `)
		r := `url("` + urlresolver.Join(u, base) + `")`
		resolved[literal] = r
		return r
	})
}

func relativize(contents, root string) string {
	origin := urlresolver.Origin(root)
	if origin == "" {
		return contents
	}
	return strings.ReplaceAll(contents, `url("`+origin+`/`, `url("/`)
}

// DefaultFetcher reads file:// urls from disk and GETs http(s) urls.
func DefaultFetcher(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "file":
		b, err := os.ReadFile(u.Path)
		return string(b), err
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return "", err
		}
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", err
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return "", fmt.Errorf("unexpected status %d", res.StatusCode)
		}
		b, err := io.ReadAll(res.Body)
		return string(b), err
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
}

package assetcache

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	cssaggregator "github.com/ericselin/asset-cache/pkg/css-aggregator"
	filefinder "github.com/ericselin/asset-cache/pkg/file-finder"
)

// cssHandler serves {prefix}/css/<file>.css.
type cssHandler struct {
	*category
	finder *filefinder.Finder
	// routePrefix is "{prefix}/css/"
	routePrefix string
}

func (h *cssHandler) BeforeServe(ex *Exchange) error {
	file, ok := strings.CutSuffix(ex.Params["*"], ".css")
	if !ok || file == "" {
		return fmt.Errorf("%w: %s", ErrNotFound, ex.Path)
	}
	ex.Params["file"] = file
	return h.category.BeforeServe(ex)
}

func (h *cssHandler) Build(ctx context.Context, ex *Exchange) error {
	var (
		output string
		err    error
	)
	if !h.config.ProcessImports {
		output, err = h.load(ex.Params["file"])
	} else {
		output, err = cssaggregator.Aggregate(ctx, ex.AbsoluteURL(), cssaggregator.Options{
			Root:   ex.BaseURL,
			Loader: h.localLoader(ex.BaseURL),
			Logger: &h.log,
		})
	}
	if err != nil {
		return err
	}
	ex.Status = http.StatusOK
	ex.Body = []byte(output)
	return nil
}

// load renders the stylesheet for a route file parameter.
func (h *cssHandler) load(file string) (string, error) {
	filename, ok := h.finder.Find(h.config.Directory, file, "css")
	if !ok {
		return "", fmt.Errorf("%w: unable to find CSS file %s", ErrNotFound, file)
	}
	return filefinder.Render(filename, h.config.Vars)
}

// localLoader loads stylesheets served by this handler from disk instead of
// over HTTP. Everything else is left to the aggregator.
func (h *cssHandler) localLoader(baseURL string) cssaggregator.Loader {
	return func(_ context.Context, url string) (string, bool, error) {
		rest, ok := strings.CutPrefix(url, baseURL)
		if !ok {
			return "", false, nil
		}
		p, _, _ := strings.Cut("/"+rest, "?")
		p, _, _ = strings.Cut(p, "#")
		file, ok := strings.CutPrefix(p, h.routePrefix)
		if !ok {
			return "", false, nil
		}
		file, ok = strings.CutSuffix(file, ".css")
		if !ok || file == "" {
			return "", false, nil
		}
		h.log.Trace().Str("url", url).Str("file", file).Msg("Loading local stylesheet")
		text, err := h.load(file)
		return text, true, err
	}
}

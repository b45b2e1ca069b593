package assetcache

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"regexp"
	"strings"

	filefinder "github.com/ericselin/asset-cache/pkg/file-finder"
)

var routeParamRe = regexp.MustCompile(`<([A-Za-z_][A-Za-z0-9_]*)>`)

// chiPattern turns "/assets/flash-plugins/<plugin>.swf" into
// "/assets/flash-plugins/{plugin}.swf".
func chiPattern(pattern string) string {
	return routeParamRe.ReplaceAllString(pattern, "{$1}")
}

// staticHandler serves a single file mapping from the route table.
type staticHandler struct {
	*category
	finder *filefinder.Finder
	route  StaticRoute
}

// Target substitutes the route parameters into the route file.
func (h *staticHandler) Target(params map[string]string) string {
	return routeParamRe.ReplaceAllStringFunc(h.route.File, func(m string) string {
		if v, ok := params[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

func (h *staticHandler) Build(_ context.Context, ex *Exchange) error {
	target := path.Clean("/" + h.Target(ex.Params))
	dir, base := path.Split(target)
	ext := path.Ext(base)
	first, rest, _ := strings.Cut(strings.Trim(dir, "/"), "/")
	rel := path.Join(rest, strings.TrimSuffix(base, ext))

	filename, ok := h.finder.Find(first, rel, ext)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	body, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	h.log.Trace().Str("file", filename).Msg("Serving static file")
	ex.Status = http.StatusOK
	ex.Body = body
	return nil
}

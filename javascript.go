package assetcache

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	filefinder "github.com/ericselin/asset-cache/pkg/file-finder"
	jspreprocessor "github.com/ericselin/asset-cache/pkg/js-preprocessor"
)

// jsHandler serves {prefix}/javascript/<file>.js.
type jsHandler struct {
	*category
	finder *filefinder.Finder
}

func (h *jsHandler) BeforeServe(ex *Exchange) error {
	file, ok := strings.CutSuffix(ex.Params["*"], ".js")
	if !ok || file == "" {
		return fmt.Errorf("%w: %s", ErrNotFound, ex.Path)
	}
	ex.Params["file"] = file
	return h.category.BeforeServe(ex)
}

func (h *jsHandler) Build(ctx context.Context, ex *Exchange) error {
	file := ex.Params["file"]
	filename, ok := h.finder.Find(h.config.Directory, file, "js")
	if !ok {
		return fmt.Errorf("%w: unable to find JavaScript file %s", ErrNotFound, file)
	}

	includePaths := append([]string{}, h.config.IncludePaths...)
	includePaths = append(includePaths, h.finder.IncludePaths(h.config.Directory)...)
	preprocessor := jspreprocessor.Preprocessor{
		IncludePaths: includePaths,
		Vars:         h.config.Vars,
		Logger:       &h.log,
	}
	output, err := preprocessor.Load(ctx, filename)
	if err != nil {
		return err
	}
	ex.Status = http.StatusOK
	ex.Body = []byte(output)
	return nil
}

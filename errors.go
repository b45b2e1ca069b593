package assetcache

import (
	"errors"
	"net/http"

	"github.com/ericselin/asset-cache/cache"
	jspreprocessor "github.com/ericselin/asset-cache/pkg/js-preprocessor"
)

var (
	// ErrNotFound is returned when the requested asset cannot be found.
	ErrNotFound = errors.New("asset not found")
	// ErrConfig is returned for invalid configuration, such as an unknown
	// cache mode or compression type.
	ErrConfig = errors.New("invalid configuration")
)

// statusFor maps a pipeline error to the HTTP status sent to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, jspreprocessor.ErrNotFound),
		errors.Is(err, cache.ErrFileExists):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

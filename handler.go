package assetcache

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/ericselin/asset-cache/cache"
	"github.com/ericselin/asset-cache/pkg/minifier"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Exchange is a single asset request as it moves through the pipeline.
type Exchange struct {
	// Path is the URL path of the request.
	Path string
	// RequestURI is the path plus raw query. It identifies cache entries.
	RequestURI string
	// BaseURL is the absolute site URL, always ending with "/".
	BaseURL string
	// Params are the route parameters, "*" being the wildcard.
	Params map[string]string

	Status int
	Header http.Header
	Body   []byte
}

func newExchange(r *http.Request, baseURL string) *Exchange {
	ex := &Exchange{
		Path:       r.URL.Path,
		RequestURI: r.URL.RequestURI(),
		BaseURL:    baseURL,
		Params:     map[string]string{},
		Status:     http.StatusOK,
		Header:     http.Header{},
	}
	if ex.BaseURL == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		host := r.Host
		if host == "" {
			host = "localhost"
		}
		ex.BaseURL = scheme + "://" + host + "/"
	}
	if !strings.HasSuffix(ex.BaseURL, "/") {
		ex.BaseURL += "/"
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			ex.Params[key] = rctx.URLParams.Values[i]
		}
	}
	return ex
}

// AbsoluteURL returns the request as an absolute URL.
func (ex *Exchange) AbsoluteURL() string {
	return strings.TrimSuffix(ex.BaseURL, "/") + ex.RequestURI
}

// Handler builds one kind of asset.
type Handler interface {
	// BeforeServe runs before the cache lookup. It binds the content type
	// and rejects requests it cannot serve.
	BeforeServe(ex *Exchange) error
	// Build produces the body of a cache miss.
	Build(ctx context.Context, ex *Exchange) error
	// AfterServe post-processes a built body, e.g. minifies it.
	AfterServe(ctx context.Context, ex *Exchange) error
	// CacheStrategy returns the store for built bodies, or nil if caching
	// is disabled.
	CacheStrategy() cache.Store
}

// category holds what all handlers of an asset category share.
type category struct {
	config   CategoryConfig
	store    cache.Store
	minifier minifier.Minifier
	codeType minifier.CodeType
	log      zerolog.Logger
}

func (c *category) BeforeServe(ex *Exchange) error {
	ex.Header.Set("Content-Type", ContentType(path.Ext(ex.Path), c.config.ContentType))
	return nil
}

func (c *category) AfterServe(ctx context.Context, ex *Exchange) error {
	if c.minifier == nil || ex.Status != http.StatusOK {
		return nil
	}
	out, err := c.minifier.Minify(ctx, c.codeType, string(ex.Body))
	if err != nil {
		return err
	}
	c.log.Trace().Int("before", len(ex.Body)).Int("after", len(out)).Msg("Minified")
	ex.Body = []byte(out)
	return nil
}

func (c *category) CacheStrategy() cache.Store {
	return c.store
}

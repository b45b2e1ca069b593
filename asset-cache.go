package assetcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/ericselin/asset-cache/cache"
	filefinder "github.com/ericselin/asset-cache/pkg/file-finder"
	"github.com/ericselin/asset-cache/pkg/minifier"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Asset kinds accepted by Build.
const (
	KindCSS        = "css"
	KindJavaScript = "javascript"
)

type AssetCache struct {
	config Config
	log    zerolog.Logger
	finder *filefinder.Finder
	// stores are shared between categories using the same cache mode
	stores map[string]cache.Store
	rules  Rules
	router chi.Router
	css    *cssHandler
	js     *jsHandler
}

// New sets up the stores, handlers and routes described by config.
func New(config Config) (*AssetCache, error) {
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = log.Logger
	} else {
		logger = *config.Logger
	}

	a := &AssetCache{
		config: config,
		log:    logger,
		finder: filefinder.New(config.Server.Roots...),
		stores: map[string]cache.Store{},
		rules:  config.Rules,
	}

	prefix := strings.TrimSuffix(config.Server.Prefix, "/")

	cssCategory, err := a.newCategory("css", config.CSS, minifier.CSS)
	if err != nil {
		return nil, a.closeOnError(err)
	}
	a.css = &cssHandler{
		category:    cssCategory,
		finder:      a.finder,
		routePrefix: prefix + "/css/",
	}

	jsCategory, err := a.newCategory("javascript", config.JavaScript, minifier.JS)
	if err != nil {
		return nil, a.closeOnError(err)
	}
	a.js = &jsHandler{category: jsCategory, finder: a.finder}

	router := chi.NewRouter()
	router.Use(
		hlog.NewHandler(a.log),
		hlog.RequestIDHandler("req_id", "Request-Id"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Debug().
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("Sending response to client")
		}),
	)
	router.Get(prefix+"/css/*", a.serve(a.css))
	router.Get(prefix+"/javascript/*", a.serve(a.js))

	for _, route := range config.Routes {
		cfg, err := route.CategoryConfig(config.Static)
		if err != nil {
			return nil, a.closeOnError(err)
		}
		var codeType minifier.CodeType
		switch path.Ext(route.File) {
		case ".css":
			codeType = minifier.CSS
		case ".js":
			codeType = minifier.JS
		}
		staticCategory, err := a.newCategory(route.Pattern, cfg, codeType)
		if err != nil {
			return nil, a.closeOnError(err)
		}
		if codeType == "" {
			// only text assets can be minified
			staticCategory.minifier = nil
		}
		a.log.Trace().Str("pattern", route.Pattern).Str("file", route.File).Msg("Adding static route")
		router.Get(chiPattern(route.Pattern), a.serve(&staticHandler{
			category: staticCategory,
			finder:   a.finder,
			route:    route,
		}))
	}
	a.router = router

	return a, nil
}

func (a *AssetCache) newCategory(name string, cfg CategoryConfig, codeType minifier.CodeType) (*category, error) {
	c := &category{
		config:   cfg,
		codeType: codeType,
		log:      a.log.With().Str("category", name).Logger(),
	}
	if cfg.Cache {
		store, err := a.store(cfg.CacheMode)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		c.store = store
	}
	if cfg.Compress {
		m, err := minifier.New(cfg.CompressConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConfig, name, err)
		}
		c.minifier = m
	}
	return c, nil
}

// store returns the store for a cache mode, creating it on first use.
func (a *AssetCache) store(mode string) (cache.Store, error) {
	if s, ok := a.stores[mode]; ok {
		return s, nil
	}
	server := a.config.Server
	var (
		s   cache.Store
		err error
	)
	switch mode {
	case CacheModeDir:
		s = cache.NewDirStore(server.CacheDir)
	case CacheModeDocRoot:
		s = cache.NewDocRootStore(server.DocRoot, server.URLRewriting)
	case CacheModeSQLite:
		filename := server.SQLitePath
		if filename == "memory" {
			filename = ""
		}
		s, err = cache.NewSQLiteStore(filename)
	case CacheModeMemory:
		s, err = cache.NewMemoryStore(server.MemoryEntries)
	case CacheModeS3:
		s, err = cache.NewS3Store(server.S3)
	default:
		return nil, fmt.Errorf("%w: unknown cache mode %q", ErrConfig, mode)
	}
	if err != nil {
		return nil, err
	}
	a.log.Debug().Str("mode", mode).Msg("Created cache store")
	a.stores[mode] = s
	return s, nil
}

func (a *AssetCache) closeOnError(err error) error {
	if closeErr := a.Close(); closeErr != nil {
		a.log.Error().Err(closeErr).Msg("Could not close cache stores")
	}
	return err
}

// Close releases the stores that hold resources, such as the SQLite db.
func (a *AssetCache) Close() error {
	var errs []error
	for mode, s := range a.stores {
		if closer, ok := s.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", mode, err))
			}
		}
	}
	return errors.Join(errs...)
}

// ServeHTTP implements the http.Handler interface.
func (a *AssetCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer a.recover(w, r)
	a.router.ServeHTTP(w, r)
}

// recover recovers from panics and sends a 500 to the client.
func (a *AssetCache) recover(w http.ResponseWriter, r *http.Request) {
	if err := recover(); err != nil {
		a.log.WithLevel(zerolog.PanicLevel).
			Interface("error", err).
			Str("url", r.URL.String()).
			Msg("Panic in asset handler")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// serve adapts a Handler to chi.
func (a *AssetCache) serve(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := getLogger(r)
		ex := newExchange(r, a.config.Server.BaseURL)

		cs, err := a.process(r, h, ex)
		if err != nil {
			status := statusFor(err)
			if status == http.StatusNotFound {
				logger.Debug().Err(err).Str("url", r.URL.String()).Msg("Asset not found")
			} else {
				logger.Error().Err(err).Str("url", r.URL.String()).Msg("Could not serve asset")
			}
			http.Error(w, err.Error(), status)
			return
		}

		copyHeader(w.Header(), ex.Header)
		w.Header().Set("Cache-Status", cs.String())
		w.WriteHeader(ex.Status)
		if _, err := w.Write(ex.Body); err != nil {
			logger.Error().Err(err).Msg("Could not write response body to client")
		}
		logger.Trace().Msgf("Wrote body (%d bytes)", len(ex.Body))
	}
}

// process runs the pipeline for one request:
// classify, cache lookup, build, minify, cache store.
// Nothing is written to the client here, so a fatal store error can still
// turn into an error response.
func (a *AssetCache) process(r *http.Request, h Handler, ex *Exchange) (CacheStatus, error) {
	ctx := r.Context()
	logger := getLogger(r)
	cs := CacheStatus{}

	if err := h.BeforeServe(ex); err != nil {
		return cs, err
	}

	store := h.CacheStrategy()
	if store == nil {
		cs.Forward(CacheStatusFwdBypass)
	} else {
		body, ok, err := store.Load(ctx, ex.RequestURI)
		if err != nil {
			logger.Error().Err(err).Str("key", ex.RequestURI).Msg("Could not retrieve from cache")
		} else if ok {
			logger.Trace().Str("key", ex.RequestURI).Msg("Serving from cache")
			cs.Hit()
			ex.Status = http.StatusOK
			ex.Body = body
			a.rules.Apply(r, ex.Status, ex.Header)
			return cs, nil
		}
		cs.Forward(CacheStatusFwdUriMiss)
	}

	if err := h.Build(ctx, ex); err != nil {
		return cs, err
	}
	if err := h.AfterServe(ctx, ex); err != nil {
		return cs, err
	}
	a.rules.Apply(r, ex.Status, ex.Header)

	// only successes are cached
	if store == nil || ex.Status != http.StatusOK {
		return cs, nil
	}
	logger.Trace().Str("key", ex.RequestURI).Msg("Writing to cache")
	err := store.Save(ctx, ex.RequestURI, ex.Body)
	switch {
	case err == nil:
		cs.Stored()
	case errors.Is(err, cache.ErrFileExists):
		return cs, err
	case errors.Is(err, cache.ErrRewriteInactive):
		return cs, fmt.Errorf("%w: %w", ErrConfig, err)
	default:
		logger.Error().Err(err).Str("key", ex.RequestURI).Msg("Could not write to cache")
	}
	return cs, nil
}

// Warm requests requestURI (e.g. "/assets/css/main.css") through the full
// pipeline, storing the result in the cache if the category caches.
func (a *AssetCache) Warm(ctx context.Context, requestURI string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURI, nil)
	if err != nil {
		return err
	}
	rs := NewResponseSaver(nil)
	a.ServeHTTP(rs, req)
	if rs.StatusCode() != http.StatusOK {
		return fmt.Errorf("warm %s: status %d: %s", requestURI, rs.StatusCode(), strings.TrimSpace(string(rs.Body())))
	}
	a.log.Debug().Str("url", requestURI).Str("cacheStatus", rs.Header().Get("Cache-Status")).Msg("Warmed asset")
	return nil
}

// Build builds a single asset of the given kind without touching the cache.
// The file is relative to the category directory, with or without its
// extension.
func (a *AssetCache) Build(ctx context.Context, kind, file string) ([]byte, error) {
	var (
		h   Handler
		ext string
	)
	switch kind {
	case KindCSS:
		h, ext = a.css, ".css"
	case KindJavaScript:
		h, ext = a.js, ".js"
	default:
		return nil, fmt.Errorf("unknown asset kind %q", kind)
	}

	file = strings.TrimPrefix(strings.TrimSuffix(file, ext), "/")
	requestPath := fmt.Sprintf("%s/%s/%s%s", strings.TrimSuffix(a.config.Server.Prefix, "/"), kind, file, ext)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestPath, nil)
	if err != nil {
		return nil, err
	}
	ex := newExchange(req, a.config.Server.BaseURL)
	ex.Params["*"] = file + ext

	if err := h.BeforeServe(ex); err != nil {
		return nil, err
	}
	if err := h.Build(ctx, ex); err != nil {
		return nil, err
	}
	if err := h.AfterServe(ctx, ex); err != nil {
		return nil, err
	}
	return ex.Body, nil
}

// getLogger returns the logger from the request context.
// If no logger is found, it will return the default logger.
func getLogger(r *http.Request) *zerolog.Logger {
	logger := hlog.FromRequest(r)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &log.Logger
	}
	return logger
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

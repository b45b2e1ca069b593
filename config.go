package assetcache

import (
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/ericselin/asset-cache/cache"
	"github.com/ericselin/asset-cache/pkg/minifier"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Cache modes accepted in CategoryConfig.CacheMode.
const (
	CacheModeDir     = "cache_dir"
	CacheModeDocRoot = "doc_root"
	CacheModeSQLite  = "sqlite"
	CacheModeMemory  = "memory"
	CacheModeS3      = "s3"
)

type Config struct {
	Server     ServerConfig   `yaml:"server"`
	CSS        CategoryConfig `yaml:"css"`
	JavaScript CategoryConfig `yaml:"javascript"`
	// Static holds the defaults for every static route.
	Static CategoryConfig `yaml:"static"`
	Routes []StaticRoute  `yaml:"routes"`
	Rules  Rules          `yaml:"rules"`
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger `yaml:"-"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
	// BaseURL is the absolute URL of the site, e.g. "https://example.com/".
	// It is derived from the request host if empty.
	BaseURL string `yaml:"baseURL"`
	// Prefix is the path below which the css and javascript routes live.
	Prefix string `yaml:"prefix"`
	// Roots are searched in order for asset files.
	Roots []string `yaml:"roots"`
	// DocRoot is the public document root used by the doc_root cache mode.
	DocRoot      string `yaml:"docRoot"`
	URLRewriting bool   `yaml:"urlRewriting"`
	CacheDir     string `yaml:"cacheDir"`
	// SQLitePath is the db file of the sqlite cache mode ("memory" for an
	// in-memory db).
	SQLitePath    string         `yaml:"sqlitePath"`
	MemoryEntries int            `yaml:"memoryEntries"`
	S3            cache.S3Config `yaml:"s3"`
	LogLevel      string         `yaml:"logLevel"`
}

type CategoryConfig struct {
	Cache     bool   `yaml:"cache"`
	CacheMode string `yaml:"cacheMode"`
	// ContentType overrides the content type derived from the extension.
	ContentType string `yaml:"contentType"`
	// Directory is the directory below each root holding the category.
	Directory      string          `yaml:"directory"`
	Vars           map[string]any  `yaml:"vars"`
	Compress       bool            `yaml:"compress"`
	CompressConfig minifier.Config `yaml:"compressConfig"`
	ProcessImports bool            `yaml:"processImports"`
	IncludePaths   []string        `yaml:"includePaths"`
}

// StaticRoute maps a request path pattern to a file, e.g.
//
//	pattern: /assets/flash-plugins/<plugin>.swf
//	file: swf/<plugin>.swf
//
// Config overrides the static category defaults for this route.
type StaticRoute struct {
	Pattern string    `yaml:"pattern"`
	File    string    `yaml:"file"`
	Config  yaml.Node `yaml:"config"`
}

// CategoryConfig returns the static defaults with the route overrides
// applied.
func (sr StaticRoute) CategoryConfig(defaults CategoryConfig) (CategoryConfig, error) {
	cfg := defaults
	cfg.Vars = maps.Clone(defaults.Vars)
	if sr.Config.Kind == 0 {
		return cfg, nil
	}
	if err := sr.Config.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: route %s: %w", ErrConfig, sr.Pattern, err)
	}
	return cfg, nil
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen:     ":8080",
			Prefix:     "/assets",
			Roots:      []string{"."},
			CacheDir:   "cache",
			SQLitePath: "cache.db",
			LogLevel:   "debug",
		},
		CSS: CategoryConfig{
			CacheMode:      CacheModeDir,
			ContentType:    "text/css",
			Directory:      "css",
			CompressConfig: minifier.Config{Type: minifier.TypeStrip},
		},
		JavaScript: CategoryConfig{
			CacheMode:      CacheModeDir,
			ContentType:    "application/x-javascript",
			Directory:      "javascript",
			CompressConfig: minifier.Config{Type: minifier.TypeStrip},
		},
		Static: CategoryConfig{
			CacheMode:      CacheModeDir,
			CompressConfig: minifier.Config{Type: minifier.TypeStrip},
		},
	}
}

// LoadConfig reads the yaml file at filename on top of DefaultConfig.
// Unknown keys are ignored. ASSET_CACHE_* environment variables, also read
// from a .env file, override the file.
func LoadConfig(filename string) (Config, error) {
	config := DefaultConfig()
	if filename != "" {
		configBytes, err := os.ReadFile(filename)
		if err != nil {
			return config, err
		}
		if err := yaml.Unmarshal(configBytes, &config); err != nil {
			return config, fmt.Errorf("%w: %s: %w", ErrConfig, filename, err)
		}
	}

	// a missing .env file is fine
	_ = godotenv.Load()
	if v := os.Getenv("ASSET_CACHE_LISTEN"); v != "" {
		config.Server.Listen = v
	}
	if v := os.Getenv("ASSET_CACHE_BASE_URL"); v != "" {
		config.Server.BaseURL = v
	}
	if v := os.Getenv("ASSET_CACHE_LOG_LEVEL"); v != "" {
		config.Server.LogLevel = v
	}

	return config, config.Validate()
}

// Validate reports configuration that would only fail once a request is
// served.
func (c Config) Validate() error {
	if c.Server.Prefix != "" && !strings.HasPrefix(c.Server.Prefix, "/") {
		return fmt.Errorf("%w: prefix %q must start with /", ErrConfig, c.Server.Prefix)
	}
	if _, err := zerolog.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("%w: log level: %w", ErrConfig, err)
	}
	categories := map[string]CategoryConfig{
		"css":        c.CSS,
		"javascript": c.JavaScript,
		"static":     c.Static,
	}
	for _, route := range c.Routes {
		if route.Pattern == "" || route.File == "" {
			return fmt.Errorf("%w: static routes need a pattern and a file", ErrConfig)
		}
		cfg, err := route.CategoryConfig(c.Static)
		if err != nil {
			return err
		}
		categories[route.Pattern] = cfg
	}
	for name, cfg := range categories {
		if err := c.validateCategory(cfg); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (c Config) validateCategory(cfg CategoryConfig) error {
	if cfg.Cache {
		switch cfg.CacheMode {
		case CacheModeDir, CacheModeSQLite, CacheModeMemory, CacheModeS3:
		case CacheModeDocRoot:
			if c.Server.DocRoot == "" {
				return fmt.Errorf("%w: doc_root cache mode needs server.docRoot", ErrConfig)
			}
			if !c.Server.URLRewriting {
				return fmt.Errorf("%w: %w", ErrConfig, cache.ErrRewriteInactive)
			}
		default:
			return fmt.Errorf("%w: unknown cache mode %q", ErrConfig, cfg.CacheMode)
		}
	}
	if cfg.Compress {
		if _, err := minifier.New(cfg.CompressConfig); err != nil {
			return fmt.Errorf("%w: %w", ErrConfig, err)
		}
	}
	return nil
}

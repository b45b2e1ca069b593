// Package minifier shrinks stylesheets and scripts, either in process or by
// piping them through an external compressor.
package minifier

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type CodeType string

const (
	CSS CodeType = "css"
	JS  CodeType = "js"
)

// Engine types accepted in Config.Type.
const (
	TypeStrip         = "strip"
	TypeMinify        = "minify"
	TypeYUICompressor = "yuicompressor"
	TypeExternal      = "external"
	// jsmin and jsminplus are accepted for existing javascript configs
	TypeJSMin     = "jsmin"
	TypeJSMinPlus = "jsminplus"
)

var (
	// ErrUnknownType is returned by New for an unsupported engine type.
	ErrUnknownType = errors.New("unknown compression type")
	// ErrProcess is matched by every ProcessError.
	ErrProcess = errors.New("compressor process failed")
)

type Minifier interface {
	Minify(ctx context.Context, ct CodeType, source string) (string, error)
}

// Config selects and configures an engine. It is the compressConfig record
// of a category.
type Config struct {
	Type string `yaml:"type"`
	// Options are extra arguments for external engines, split on whitespace.
	Options string `yaml:"options"`
	// Command overrides the external command line. For yuicompressor it
	// defaults to "java -jar yuicompressor.jar".
	Command string        `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

// New returns the engine named by cfg.Type.
func New(cfg Config) (Minifier, error) {
	switch cfg.Type {
	case TypeStrip, TypeJSMin:
		return Strip{}, nil
	case TypeMinify, TypeJSMinPlus:
		return NewInProcess(), nil
	case TypeYUICompressor:
		if cfg.Command == "" {
			cfg.Command = "java -jar yuicompressor.jar"
		}
		return NewExternal(cfg)
	case TypeExternal:
		return NewExternal(cfg)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, cfg.Type)
	}
}

// Func adapts a function to the Minifier interface.
type Func func(ctx context.Context, ct CodeType, source string) (string, error)

func (f Func) Minify(ctx context.Context, ct CodeType, source string) (string, error) {
	return f(ctx, ct, source)
}

package minifier

import (
	"context"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
)

var mediaTypes = map[CodeType]string{
	CSS: "text/css",
	JS:  "application/javascript",
}

// InProcess minifies with github.com/tdewolff/minify.
type InProcess struct {
	m *minify.M
}

func NewInProcess() *InProcess {
	m := minify.New()
	m.AddFunc(mediaTypes[CSS], css.Minify)
	m.AddFunc(mediaTypes[JS], js.Minify)
	return &InProcess{m: m}
}

func (p *InProcess) Minify(_ context.Context, ct CodeType, source string) (string, error) {
	mediaType, ok := mediaTypes[ct]
	if !ok {
		return "", minify.ErrNotExist
	}
	return p.m.String(mediaType, source)
}

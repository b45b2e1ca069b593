package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DocRootStore writes bodies into the public document root at the location
// matching the request path. With the usual "serve the file if it exists"
// rewrite rules, the front-end server then serves later requests without
// reaching this process, so Load never hits.
type DocRootStore struct {
	Root string
	// RewriteActive must be true: without URL rewriting the materialized
	// files are never served.
	RewriteActive bool
}

func NewDocRootStore(root string, rewriteActive bool) *DocRootStore {
	return &DocRootStore{Root: root, RewriteActive: rewriteActive}
}

// Filename maps a request path onto the document root. The query string is
// ignored, escapes are decoded and the path cannot escape the root.
func (s *DocRootStore) Filename(requestPath string) string {
	p, _, _ := strings.Cut(requestPath, "?")
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	return filepath.Join(s.Root, filepath.FromSlash(path.Clean("/"+p)))
}

func (s *DocRootStore) Load(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (s *DocRootStore) Save(_ context.Context, requestPath string, body []byte) error {
	if !s.RewriteActive {
		return ErrRewriteInactive
	}
	name := s.Filename(requestPath)
	if _, err := os.Lstat(name); err == nil {
		return fmt.Errorf("%w: %s", ErrFileExists, name)
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o777); err != nil {
		return err
	}
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o666)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrFileExists, name)
	}
	if err != nil {
		return err
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// DirStore keeps raw bodies in a sharded cache directory:
// <Root>/<key[0:2]>/<key>.raw.txt
type DirStore struct {
	Root string
}

func NewDirStore(root string) *DirStore {
	return &DirStore{Root: root}
}

func (s *DirStore) filename(requestPath string) string {
	return filepath.Join(s.Root, filepath.FromSlash(ShardedName(requestPath)))
}

func (s *DirStore) Load(_ context.Context, requestPath string) ([]byte, bool, error) {
	b, err := os.ReadFile(s.filename(requestPath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *DirStore) Save(_ context.Context, requestPath string, body []byte) error {
	name := s.filename(requestPath)
	// MkdirAll succeeds if another request created the shard first
	if err := os.MkdirAll(filepath.Dir(name), 0o777); err != nil {
		return err
	}
	// write beside the target and rename so readers never see a partial body
	f, err := os.CreateTemp(filepath.Dir(name), filepath.Base(name)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

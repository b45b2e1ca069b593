package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"path"
)

// Store persists built asset bodies, keyed by request path.
// The request path is the path plus raw query of the request, without
// scheme or host, e.g. "/assets/css/site.css?v=2".
//
// Implementations must be thread-safe!
type Store interface {
	// Load returns the stored body for the request path, if any.
	Load(ctx context.Context, requestPath string) ([]byte, bool, error)
	// Save stores body for the request path. The bytes are stored verbatim.
	Save(ctx context.Context, requestPath string, body []byte) error
}

var (
	// ErrFileExists is returned by DocRootStore when the target file is
	// already present in the document root.
	ErrFileExists = errors.New("file already exists in document root")
	// ErrRewriteInactive is returned by DocRootStore when URL rewriting is
	// not enabled, which would make the stored files unreachable.
	ErrRewriteInactive = errors.New("document root caching only works with URL rewriting")
)

// Key is the hex encoded SHA-1 digest of the request path.
func Key(requestPath string) string {
	sum := sha1.Sum([]byte(requestPath))
	return hex.EncodeToString(sum[:])
}

// ShardedName returns "<key[0:2]>/<key>.raw.txt", the slash separated
// location of an entry below a cache root.
func ShardedName(requestPath string) string {
	key := Key(requestPath)
	return path.Join(key[:2], key+".raw.txt")
}

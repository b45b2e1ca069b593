package cache

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore keeps raw bodies in a single SQLite table keyed by digest.
type SQLiteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteStore opens (and if needed creates) the db at filename.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteStore(filename string) (*SQLiteStore, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS assets (
			key TEXT PRIMARY KEY,
			request_path TEXT,
			bytes BLOB
		)`,
		"PRAGMA journal_mode=WAL",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &SQLiteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, requestPath string) ([]byte, bool, error) {
	var bytes []byte
	err := s.db.QueryRowContext(ctx, "SELECT bytes FROM assets WHERE key = ?", Key(requestPath)).Scan(&bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if bytes == nil {
		bytes = []byte{}
	}
	return bytes, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, requestPath string, body []byte) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if body == nil {
		body = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO assets (key, request_path, bytes) VALUES (?, ?, ?)",
		Key(requestPath), requestPath, body)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rs/zerolog/log"

	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
)

// DefaultSQLitePath is the database file used when none is configured.
const DefaultSQLitePath = "./http-sqlite.db"

// SQLiteCache stores entries in a single SQLite table.
type SQLiteCache struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteCache opens (and creates if needed) the database at filename.
func NewSQLiteCache(filename string) (*SQLiteCache, error) {
	if filename == "" {
		return nil, fmt.Errorf("sqlite: empty file name")
	}
	db, err := sql.Open("sqlite", sqliteDSN(filename))
	if err != nil {
		return nil, err
	}
	return newSQLiteCache(db)
}

// NewInMemorySQLiteCache opens a private in-memory database.
func NewInMemorySQLiteCache() (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// every connection would get its own in-memory database
	db.SetMaxOpenConns(1)
	return newSQLiteCache(db)
}

// sqliteDSN adds the pragmas the driver applies to every new connection.
func sqliteDSN(filename string) string {
	sep := "?"
	if strings.Contains(filename, "?") {
		sep = "&"
	}
	return filename + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func newSQLiteCache(db *sql.DB) (*SQLiteCache, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		req_key TEXT NOT NULL UNIQUE,
		store BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	_, err = db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS cache_req_key_idx ON cache (req_key)")
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteCache{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s *SQLiteCache) Get(ctx context.Context, method string, u *url.URL) (Entry, bool, error) {
	k := key(method, u)
	var blob []byte
	err := s.db.QueryRowContext(ctx, "SELECT store FROM cache WHERE req_key = ?", k).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	entry, err := decodeEntry(k, blob)
	if err != nil {
		s.purgeCorrupt(ctx, k, blob)
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (s *SQLiteCache) Put(ctx context.Context, method string, u *url.URL, res httpmessage.Response, policy httpmessage.Policy) (httpmessage.Response, error) {
	blob, err := encodeEntry(res, policy)
	if err != nil {
		return res, err
	}
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err = s.db.ExecContext(ctx, "INSERT OR REPLACE INTO cache (req_key, store) VALUES (?, ?)", key(method, u), blob)
	return res, err
}

func (s *SQLiteCache) Delete(ctx context.Context, method string, u *url.URL) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM cache WHERE req_key = ?", key(method, u))
	return err
}

func (s *SQLiteCache) Clear(ctx context.Context) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM cache")
	return err
}

func (s *SQLiteCache) Close() error {
	return s.db.Close()
}

// purgeCorrupt removes an undecodable blob unless it was replaced meanwhile.
func (s *SQLiteCache) purgeCorrupt(ctx context.Context, k string, blob []byte) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cache WHERE req_key = ? AND store = ?", k, blob); err != nil {
		log.Warn().Err(err).Str("key", k).Msg("Could not purge corrupt cache entry")
	}
}

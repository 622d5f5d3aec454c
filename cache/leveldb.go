package cache

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
)

// LevelDBCache stores entries in a LevelDB database, keyed by cache key.
type LevelDBCache struct {
	db *leveldb.DB
	// serializes compare-and-delete of corrupt entries with writes
	writeMutex sync.Mutex
}

func NewLevelDBCache(dir string) (*LevelDBCache, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBCache{db: db}, nil
}

// NewInMemoryLevelDBCache opens a database that lives in memory only.
func NewInMemoryLevelDBCache() (*LevelDBCache, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBCache{db: db}, nil
}

func (l *LevelDBCache) Get(ctx context.Context, method string, u *url.URL) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	k := key(method, u)
	blob, err := l.db.Get([]byte(k), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	entry, err := decodeEntry(k, blob)
	if err != nil {
		l.purgeCorrupt(k, blob)
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (l *LevelDBCache) Put(ctx context.Context, method string, u *url.URL, res httpmessage.Response, policy httpmessage.Policy) (httpmessage.Response, error) {
	blob, err := encodeEntry(res, policy)
	if err != nil {
		return res, err
	}
	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, l.db.Put([]byte(key(method, u)), blob, nil)
}

func (l *LevelDBCache) Delete(ctx context.Context, method string, u *url.URL) error {
	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.db.Delete([]byte(key(method, u)), nil)
}

func (l *LevelDBCache) Clear(ctx context.Context) error {
	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()
	iter := l.db.NewIterator(nil, nil)
	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(iter.Key())
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.db.Write(batch, nil)
}

func (l *LevelDBCache) Close() error {
	return l.db.Close()
}

func (l *LevelDBCache) purgeCorrupt(k string, blob []byte) {
	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()
	current, err := l.db.Get([]byte(k), nil)
	if err != nil || !bytes.Equal(current, blob) {
		return
	}
	if err := l.db.Delete([]byte(k), nil); err != nil {
		log.Warn().Err(err).Str("key", k).Msg("Could not purge corrupt cache entry")
	}
}

package cache

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tinylib/msgp/msgp"
	"golang.org/x/crypto/sha3"

	httpmessage "github.com/always-cache/client-cache/pkg/http-message"
)

// DiskCache stores every entry in its own file. The file name is the SHA3-256
// hash of the cache key, fanned out over 256 sub-directories by the first
// byte of the hash. Each file records the key so that hash collisions are
// detected on read.
type DiskCache struct {
	baseDir string

	// clearMu is held shared by per-key operations and exclusively by Clear.
	clearMu sync.RWMutex
	mu      sync.Mutex
	locks   map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func NewDiskCache(baseDir string) (*DiskCache, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("disk cache: empty directory")
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{
		baseDir: abs,
		locks:   make(map[string]*entryLock),
	}, nil
}

func (d *DiskCache) Get(ctx context.Context, method string, u *url.URL) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	k := key(method, u)
	file, err := os.ReadFile(d.path(k))
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	storedKey, blob, err := readEnvelope(file)
	if err != nil {
		log.Warn().Err(err).Str("key", k).Msg("Could not read cache file")
		d.purgeCorrupt(k, file)
		return Entry{}, false, nil
	}
	if storedKey != k {
		// hash collision, the file belongs to another key
		return Entry{}, false, nil
	}
	entry, err := decodeEntry(k, blob)
	if err != nil {
		d.purgeCorrupt(k, file)
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (d *DiskCache) Put(ctx context.Context, method string, u *url.URL, res httpmessage.Response, policy httpmessage.Policy) (httpmessage.Response, error) {
	blob, err := encodeEntry(res, policy)
	if err != nil {
		return res, err
	}
	k := key(method, u)
	unlock := d.lockEntry(k)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return res, err
	}

	filePath := d.path(k)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return res, err
	}
	tempFile, err := os.CreateTemp(filepath.Dir(filePath), ".cache-*")
	if err != nil {
		return res, err
	}
	tempName := tempFile.Name()
	_, err = tempFile.Write(appendEnvelope(nil, k, blob))
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return res, err
	}
	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return res, err
	}
	return res, nil
}

func (d *DiskCache) Delete(ctx context.Context, method string, u *url.URL) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := key(method, u)
	unlock := d.lockEntry(k)
	defer unlock()
	filePath := d.path(k)
	// only remove the file if it holds this key
	if file, err := os.ReadFile(filePath); err == nil {
		if storedKey, _, err := readEnvelope(file); err == nil && storedKey != k {
			return nil
		}
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes all fan-out directories. Writers wait until it is done.
func (d *DiskCache) Clear(ctx context.Context) error {
	d.clearMu.Lock()
	defer d.clearMu.Unlock()
	entries, err := os.ReadDir(d.baseDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !entry.IsDir() || len(entry.Name()) != 2 {
			continue
		}
		if err := os.RemoveAll(filepath.Join(d.baseDir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (d *DiskCache) Close() error {
	return nil
}

func (d *DiskCache) path(k string) string {
	sum := sha3.Sum256([]byte(k))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(d.baseDir, name[:2], name[2:])
}

func (d *DiskCache) purgeCorrupt(k string, file []byte) {
	unlock := d.lockEntry(k)
	defer unlock()
	filePath := d.path(k)
	current, err := os.ReadFile(filePath)
	if err != nil || !bytes.Equal(current, file) {
		return
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("key", k).Msg("Could not purge corrupt cache file")
	}
}

func (d *DiskCache) lockEntry(k string) func() {
	d.clearMu.RLock()
	d.mu.Lock()
	lock := d.locks[k]
	if lock == nil {
		lock = &entryLock{}
		d.locks[k] = lock
	}
	lock.refs++
	d.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		d.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(d.locks, k)
		}
		d.mu.Unlock()
		d.clearMu.RUnlock()
	}
}

func appendEnvelope(b []byte, k string, blob []byte) []byte {
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendString(b, k)
	return msgp.AppendBytes(b, blob)
}

func readEnvelope(b []byte) (string, []byte, error) {
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return "", nil, err
	}
	if n != 2 {
		return "", nil, fmt.Errorf("envelope has %d elements", n)
	}
	k, b, err := msgp.ReadStringBytes(b)
	if err != nil {
		return "", nil, err
	}
	blob, _, err := msgp.ReadBytesZC(b)
	if err != nil {
		return "", nil, err
	}
	return k, blob, nil
}

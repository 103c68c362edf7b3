package broadcast

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dohr-michael/polybridge/internal/persist"
)

// Cache persists broadcast payloads to local disk keyed by id, using the
// same frame codec the wire protocol uses. A host invoked repeatedly (the
// standalone CLI, or a restarted gateway) can hand a broadcast id to the
// driver without re-supplying the payload once it has been cached once.
type Cache struct {
	dir string
	enc persist.Encryptor
}

// NewCache creates a broadcast file cache rooted at dir. enc may be nil,
// leaving cached files in plaintext.
func NewCache(dir string, enc persist.Encryptor) *Cache {
	return &Cache{dir: dir, enc: enc}
}

func (c *Cache) path(id int64) string {
	return filepath.Join(c.dir, fmt.Sprintf("broadcast-%d.bin", id))
}

// Put writes payload to the cache under id, creating the cache directory if
// needed.
func (c *Cache) Put(id int64, payload []byte) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("broadcast cache: mkdir %s: %w", c.dir, err)
	}
	return persist.WriteBroadcastFile(c.path(id), payload, c.enc)
}

// Get reads a previously cached payload back for id.
func (c *Cache) Get(id int64) ([]byte, error) {
	return persist.ReadBroadcastFile(c.path(id), c.enc)
}

// Has reports whether id has a cached payload, without reading it.
func (c *Cache) Has(id int64) bool {
	_, err := os.Stat(c.path(id))
	return err == nil
}

// Package discoverycache persists the orchestrator's discovery progress —
// the last block scanned for GameCreated events, and the set of game IDs
// already known — so a restart resumes from where it left off instead of
// re-scanning from genesis (a supplemented feature beyond the distilled
// spec; see spec §4.8 step 2). It is grounded on storage.LevelDB, the
// teacher's key-value layer, repurposed from blockchain state to this
// narrower bookkeeping role.
package discoverycache

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tolelom/gamemaster/storage"
)

var lastBlockKey = []byte("lastScannedBlock")

const gameKeyPrefix = "game:"

// Cache wraps a storage.DB with the two concerns the orchestrator's
// startup sequence needs.
type Cache struct {
	db storage.DB
}

// New wraps db (typically a *storage.LevelDB opened under the daemon's
// data directory).
func New(db storage.DB) *Cache {
	return &Cache{db: db}
}

// LastScannedBlock returns the last block height the historical scan
// completed through, and false if nothing has been recorded yet.
func (c *Cache) LastScannedBlock() (uint64, bool, error) {
	val, err := c.db.Get(lastBlockKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("discoverycache: read last scanned block: %w", err)
	}
	return binary.BigEndian.Uint64(val), true, nil
}

// SetLastScannedBlock records progress after a successful scan.
func (c *Cache) SetLastScannedBlock(height uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, height)
	if err := c.db.Set(lastBlockKey, buf); err != nil {
		return fmt.Errorf("discoverycache: write last scanned block: %w", err)
	}
	return nil
}

func gameKey(gameID uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", gameKeyPrefix, gameID))
}

// AddGame records gameID as known, so a later restart's historical scan
// doesn't need to re-surface it to re-seed the registry.
func (c *Cache) AddGame(gameID uint64) error {
	if err := c.db.Set(gameKey(gameID), []byte{1}); err != nil {
		return fmt.Errorf("discoverycache: record game %d: %w", gameID, err)
	}
	return nil
}

// KnownGames returns every game ID previously recorded via AddGame.
func (c *Cache) KnownGames() ([]uint64, error) {
	it := c.db.NewIterator([]byte(gameKeyPrefix))
	defer it.Release()

	var ids []uint64
	for it.Next() {
		var id uint64
		key := it.Key()[len(gameKeyPrefix):]
		if _, err := fmt.Sscanf(string(key), "%d", &id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("discoverycache: iterate known games: %w", err)
	}
	return ids, nil
}

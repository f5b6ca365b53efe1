// Package swapdb is the persisted-state store backing swapd.Driver,
// following channeldb/db.go's single-database, bucket-per-concern,
// versioned-migration idiom: one bbolt database file, one bucket keyed by
// swap ID, each entry holding the latest serialized swap snapshot. Unlike
// channeldb, swapdb has only ever had one schema, so its migration list
// carries a single no-op version rather than an empty one - the hook
// exists so a future schema change has somewhere to attach, the same
// reason channeldb keeps the machinery even between versions that need no
// migration.
package swapdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/lightninglabs/xmrswap/internal/build"
)

var log = build.NewSubLogger("SWDB")

const (
	dbFileName       = "swapd.db"
	dbFilePermission = 0o600
)

var swapBucket = []byte("swaps")

// migration mutates the bucket layout of an older database version to
// match the current one.
type migration func(tx *bolt.Tx) error

// schemaVersions lists every schema this database has ever had. Only one
// exists so far; the slice is kept (rather than a single constant) so
// that the day a second version is needed, syncVersions already knows how
// to walk from 0 to 1.
var schemaVersions = []migration{
	nil, // version 0: the base schema - swapBucket, nothing to migrate.
}

var metaBucket = []byte("meta")
var versionKey = []byte("version")

// ErrNotFound is returned by Get when no snapshot is stored for a swap ID.
var ErrNotFound = errors.New("swapdb: no snapshot stored for swap id")

// Store is the persisted-state store. It is safe for concurrent use; bbolt
// serializes all writes internally.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the swapd database rooted at dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("swapdb: creating data dir: %w", err)
	}

	path := filepath.Join(dataDir, dbFileName)
	db, err := bolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return nil, fmt.Errorf("swapdb: opening %s: %w", path, err)
	}

	store := &Store{db: db}
	if err := store.initBuckets(); err != nil {
		db.Close()
		return nil, err
	}
	if err := store.syncVersions(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(swapBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
}

func (s *Store) syncVersions() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)

		var current uint32
		if raw := meta.Get(versionKey); raw != nil {
			current = byteOrderUint32(raw)
		}

		for v := int(current) + 1; v < len(schemaVersions); v++ {
			mig := schemaVersions[v]
			if mig == nil {
				continue
			}
			log.Infof("applying swapdb migration to version %d", v)
			if err := mig(tx); err != nil {
				return fmt.Errorf("swapdb: migration to version %d: %w", v, err)
			}
		}

		latest := uint32(len(schemaVersions) - 1)
		return meta.Put(versionKey, uint32Bytes(latest))
	})
}

func byteOrderUint32(b []byte) uint32 {
	if len(b) != 4 {
		return 0
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func uint32Bytes(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// Put stores snapshot as the latest persisted state for swapID, overwriting
// whatever was stored before. Per spec.md §9's crash-recovery requirement,
// swapd.Driver calls this before acknowledging any effect, so a restart
// never replays an already-performed side effect twice.
func (s *Store) Put(swapID string, snapshot []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(swapBucket).Put([]byte(swapID), snapshot)
	})
}

// Get returns the latest persisted snapshot for swapID, or ErrNotFound if
// none exists.
func (s *Store) Get(swapID string) ([]byte, error) {
	var snapshot []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(swapBucket).Get([]byte(swapID))
		if raw == nil {
			return ErrNotFound
		}
		snapshot = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Delete removes a swap's persisted snapshot once it reaches a terminal
// state and has been fully reported to the caller.
func (s *Store) Delete(swapID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(swapBucket).Delete([]byte(swapID))
	})
}

// List returns every swap ID with a persisted snapshot, used by
// swapd.NewManager on startup to track every swap still in flight.
func (s *Store) List() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(swapBucket).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}
